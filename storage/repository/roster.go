/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package repository

import (
	"context"

	"github.com/conclave-im/conclave/model/rostermodel"
)

// Roster defines roster repository operations.
type Roster interface {
	// UpsertRosterItem inserts a new roster item entity into storage,
	// or updates it in case it's been previously inserted.
	UpsertRosterItem(ctx context.Context, ri *rostermodel.Item) (rostermodel.Version, error)

	// DeleteRosterItem deletes a roster item entity from storage.
	DeleteRosterItem(ctx context.Context, username, jid string) (rostermodel.Version, error)

	// FetchRosterItems retrieves from storage all roster item entities
	// associated to a given user.
	FetchRosterItems(ctx context.Context, username string) ([]rostermodel.Item, rostermodel.Version, error)

	// FetchRosterItem retrieves from storage a roster item entity.
	FetchRosterItem(ctx context.Context, username, jid string) (*rostermodel.Item, error)

	// UpsertRosterNotification inserts a new roster notification entity
	// into storage, or updates it in case it's been previously inserted.
	UpsertRosterNotification(ctx context.Context, rn *rostermodel.Notification) error

	// DeleteRosterNotification deletes a roster notification entity from storage.
	DeleteRosterNotification(ctx context.Context, contact, jid string) error

	// FetchRosterNotifications retrieves from storage all roster notifications
	// associated to a given contact.
	FetchRosterNotifications(ctx context.Context, contact string) ([]rostermodel.Notification, error)
}
