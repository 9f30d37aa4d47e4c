/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package repository

import (
	"context"

	"github.com/conclave-im/conclave/model/groupmodel"
)

// Group defines shared group repository operations.
type Group interface {
	// UpsertGroup inserts a new shared group entity into storage, or updates it if previously inserted.
	UpsertGroup(ctx context.Context, group *groupmodel.Group) error

	// DeleteGroup deletes a shared group entity from storage.
	DeleteGroup(ctx context.Context, name string) error

	// FetchGroup retrieves a shared group entity from storage.
	FetchGroup(ctx context.Context, name string) (*groupmodel.Group, error)

	// FetchGroups retrieves all shared group entities from storage.
	FetchGroups(ctx context.Context) ([]groupmodel.Group, error)

	// FetchUserGroups retrieves all shared groups a given user is member of.
	FetchUserGroups(ctx context.Context, username string) ([]groupmodel.Group, error)
}
