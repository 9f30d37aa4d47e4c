/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package storage

import (
	"context"

	"github.com/conclave-im/conclave/model"
	"github.com/conclave-im/conclave/model/groupmodel"
	mucmodel "github.com/conclave-im/conclave/model/muc"
	pubsubmodel "github.com/conclave-im/conclave/model/pubsub"
	"github.com/conclave-im/conclave/model/rostermodel"
	"github.com/conclave-im/conclave/storage/repository"
)

// disabledContainer is used as global container until an actual one is set.
type disabledContainer struct{}

func (*disabledContainer) User() repository.User           { return &disabledRepositories{} }
func (*disabledContainer) Roster() repository.Roster       { return &disabledRepositories{} }
func (*disabledContainer) Group() repository.Group         { return &disabledRepositories{} }
func (*disabledContainer) Room() repository.Room           { return &disabledRepositories{} }
func (*disabledContainer) BlockList() repository.BlockList { return &disabledRepositories{} }
func (*disabledContainer) PubSub() repository.PubSub       { return &disabledRepositories{} }

func (*disabledContainer) Close(_ context.Context) error { return nil }

type disabledRepositories struct{}

func (*disabledRepositories) UpsertUser(_ context.Context, _ *model.User) error    { return nil }
func (*disabledRepositories) DeleteUser(_ context.Context, _ string) error         { return nil }
func (*disabledRepositories) FetchUser(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}
func (*disabledRepositories) UserExists(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (*disabledRepositories) UpsertRosterItem(_ context.Context, _ *rostermodel.Item) (rostermodel.Version, error) {
	return rostermodel.Version{}, nil
}
func (*disabledRepositories) DeleteRosterItem(_ context.Context, _, _ string) (rostermodel.Version, error) {
	return rostermodel.Version{}, nil
}
func (*disabledRepositories) FetchRosterItems(_ context.Context, _ string) ([]rostermodel.Item, rostermodel.Version, error) {
	return nil, rostermodel.Version{}, nil
}
func (*disabledRepositories) FetchRosterItem(_ context.Context, _, _ string) (*rostermodel.Item, error) {
	return nil, nil
}
func (*disabledRepositories) UpsertRosterNotification(_ context.Context, _ *rostermodel.Notification) error {
	return nil
}
func (*disabledRepositories) DeleteRosterNotification(_ context.Context, _, _ string) error {
	return nil
}
func (*disabledRepositories) FetchRosterNotifications(_ context.Context, _ string) ([]rostermodel.Notification, error) {
	return nil, nil
}

func (*disabledRepositories) UpsertGroup(_ context.Context, _ *groupmodel.Group) error { return nil }
func (*disabledRepositories) DeleteGroup(_ context.Context, _ string) error            { return nil }
func (*disabledRepositories) FetchGroup(_ context.Context, _ string) (*groupmodel.Group, error) {
	return nil, nil
}
func (*disabledRepositories) FetchGroups(_ context.Context) ([]groupmodel.Group, error) {
	return nil, nil
}
func (*disabledRepositories) FetchUserGroups(_ context.Context, _ string) ([]groupmodel.Group, error) {
	return nil, nil
}

func (*disabledRepositories) UpsertRoom(_ context.Context, _ *mucmodel.Room) error { return nil }
func (*disabledRepositories) DeleteRoom(_ context.Context, _ string) error         { return nil }
func (*disabledRepositories) FetchRoom(_ context.Context, _ string) (*mucmodel.Room, error) {
	return nil, nil
}
func (*disabledRepositories) FetchRooms(_ context.Context) ([]*mucmodel.Room, error) {
	return nil, nil
}
func (*disabledRepositories) RoomExists(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (*disabledRepositories) InsertBlockListItem(_ context.Context, _ *model.BlockListItem) error {
	return nil
}
func (*disabledRepositories) DeleteBlockListItem(_ context.Context, _ *model.BlockListItem) error {
	return nil
}
func (*disabledRepositories) FetchBlockListItems(_ context.Context, _ string) ([]model.BlockListItem, error) {
	return nil, nil
}

func (*disabledRepositories) UpsertNode(_ context.Context, _ *pubsubmodel.Node) error { return nil }
func (*disabledRepositories) FetchNode(_ context.Context, _, _ string) (*pubsubmodel.Node, error) {
	return nil, nil
}
func (*disabledRepositories) FetchNodes(_ context.Context, _ string) ([]pubsubmodel.Node, error) {
	return nil, nil
}
func (*disabledRepositories) FetchSubscribedNodes(_ context.Context, _ string) ([]pubsubmodel.Node, error) {
	return nil, nil
}
func (*disabledRepositories) DeleteNode(_ context.Context, _, _ string) error { return nil }
func (*disabledRepositories) UpsertNodeItem(_ context.Context, _ *pubsubmodel.Item, _, _ string, _ int) error {
	return nil
}
func (*disabledRepositories) DeleteNodeItem(_ context.Context, _, _, _ string) error { return nil }
func (*disabledRepositories) FetchNodeItems(_ context.Context, _, _ string) ([]pubsubmodel.Item, error) {
	return nil, nil
}
func (*disabledRepositories) FetchNodeItemsWithIDs(_ context.Context, _, _ string, _ []string) ([]pubsubmodel.Item, error) {
	return nil, nil
}
func (*disabledRepositories) FetchNodeLastItem(_ context.Context, _, _ string) (*pubsubmodel.Item, error) {
	return nil, nil
}
func (*disabledRepositories) UpsertNodeAffiliation(_ context.Context, _ *pubsubmodel.Affiliation, _, _ string) error {
	return nil
}
func (*disabledRepositories) FetchNodeAffiliation(_ context.Context, _, _, _ string) (*pubsubmodel.Affiliation, error) {
	return nil, nil
}
func (*disabledRepositories) FetchNodeAffiliations(_ context.Context, _, _ string) ([]pubsubmodel.Affiliation, error) {
	return nil, nil
}
func (*disabledRepositories) DeleteNodeAffiliation(_ context.Context, _, _, _ string) error {
	return nil
}
func (*disabledRepositories) UpsertNodeSubscription(_ context.Context, _ *pubsubmodel.Subscription, _, _ string) error {
	return nil
}
func (*disabledRepositories) FetchNodeSubscriptions(_ context.Context, _, _ string) ([]pubsubmodel.Subscription, error) {
	return nil, nil
}
func (*disabledRepositories) DeleteNodeSubscription(_ context.Context, _, _, _ string) error {
	return nil
}
