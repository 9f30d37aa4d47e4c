/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/conclave-im/conclave/model"
	"github.com/conclave-im/conclave/model/groupmodel"
	mucmodel "github.com/conclave-im/conclave/model/muc"
	pubsubmodel "github.com/conclave-im/conclave/model/pubsub"
	"github.com/conclave-im/conclave/model/rostermodel"
	"github.com/conclave-im/conclave/storage/boltdb"
	"github.com/conclave-im/conclave/storage/memstorage"
	"github.com/conclave-im/conclave/storage/mysql"
	"github.com/conclave-im/conclave/storage/pgsql"
	"github.com/conclave-im/conclave/storage/repository"
)

var (
	instMu sync.RWMutex
	inst   repository.Container
)

func init() {
	inst = &disabledContainer{}
}

// New initializes the storage subsystem and returns associated container.
func New(config *Config) (repository.Container, error) {
	switch config.Type {
	case MySQL:
		return mysql.New(config.MySQL)
	case PostgreSQL:
		return pgsql.New(config.PostgreSQL)
	case BoltDB:
		return boltdb.New(config.BoltDB)
	case Memory:
		return memstorage.New(), nil
	default:
		return nil, fmt.Errorf("storage: unrecognized storage type: %d", config.Type)
	}
}

// Set sets the global storage container.
func Set(container repository.Container) {
	instMu.Lock()
	inst = container
	instMu.Unlock()
}

// Unset disables a previously set global storage container.
func Unset() {
	Set(&disabledContainer{})
}

func instance() repository.Container {
	instMu.RLock()
	c := inst
	instMu.RUnlock()
	return c
}

// UpsertUser inserts a new user entity into storage, or updates it if previously inserted.
func UpsertUser(ctx context.Context, user *model.User) error {
	return instance().User().UpsertUser(ctx, user)
}

// DeleteUser deletes a user entity from storage.
func DeleteUser(ctx context.Context, username string) error {
	return instance().User().DeleteUser(ctx, username)
}

// FetchUser retrieves a user entity from storage.
func FetchUser(ctx context.Context, username string) (*model.User, error) {
	return instance().User().FetchUser(ctx, username)
}

// UserExists tells whether or not a user exists within storage.
func UserExists(ctx context.Context, username string) (bool, error) {
	return instance().User().UserExists(ctx, username)
}

// UpsertRosterItem inserts a new roster item entity into storage,
// or updates it in case it's been previously inserted.
func UpsertRosterItem(ctx context.Context, ri *rostermodel.Item) (rostermodel.Version, error) {
	return instance().Roster().UpsertRosterItem(ctx, ri)
}

// DeleteRosterItem deletes a roster item entity from storage.
func DeleteRosterItem(ctx context.Context, username, jid string) (rostermodel.Version, error) {
	return instance().Roster().DeleteRosterItem(ctx, username, jid)
}

// FetchRosterItems retrieves from storage all roster item entities associated to a given user.
func FetchRosterItems(ctx context.Context, username string) ([]rostermodel.Item, rostermodel.Version, error) {
	return instance().Roster().FetchRosterItems(ctx, username)
}

// FetchRosterItem retrieves from storage a roster item entity.
func FetchRosterItem(ctx context.Context, username, jid string) (*rostermodel.Item, error) {
	return instance().Roster().FetchRosterItem(ctx, username, jid)
}

// UpsertRosterNotification inserts a new roster notification entity
// into storage, or updates it in case it's been previously inserted.
func UpsertRosterNotification(ctx context.Context, rn *rostermodel.Notification) error {
	return instance().Roster().UpsertRosterNotification(ctx, rn)
}

// DeleteRosterNotification deletes a roster notification entity from storage.
func DeleteRosterNotification(ctx context.Context, contact, jid string) error {
	return instance().Roster().DeleteRosterNotification(ctx, contact, jid)
}

// FetchRosterNotifications retrieves from storage all roster notifications associated to a given contact.
func FetchRosterNotifications(ctx context.Context, contact string) ([]rostermodel.Notification, error) {
	return instance().Roster().FetchRosterNotifications(ctx, contact)
}

// UpsertGroup inserts a new shared group entity into storage, or updates it if previously inserted.
func UpsertGroup(ctx context.Context, group *groupmodel.Group) error {
	return instance().Group().UpsertGroup(ctx, group)
}

// DeleteGroup deletes a shared group entity from storage.
func DeleteGroup(ctx context.Context, name string) error {
	return instance().Group().DeleteGroup(ctx, name)
}

// FetchGroup retrieves a shared group entity from storage.
func FetchGroup(ctx context.Context, name string) (*groupmodel.Group, error) {
	return instance().Group().FetchGroup(ctx, name)
}

// FetchGroups retrieves all shared group entities from storage.
func FetchGroups(ctx context.Context) ([]groupmodel.Group, error) {
	return instance().Group().FetchGroups(ctx)
}

// FetchUserGroups retrieves all shared groups a given user is member of.
func FetchUserGroups(ctx context.Context, username string) ([]groupmodel.Group, error) {
	return instance().Group().FetchUserGroups(ctx, username)
}

// UpsertRoom inserts a new room entity into storage, or updates it if previously inserted.
func UpsertRoom(ctx context.Context, room *mucmodel.Room) error {
	return instance().Room().UpsertRoom(ctx, room)
}

// DeleteRoom deletes a room entity from storage.
func DeleteRoom(ctx context.Context, roomName string) error {
	return instance().Room().DeleteRoom(ctx, roomName)
}

// FetchRoom retrieves a room entity from storage.
func FetchRoom(ctx context.Context, roomName string) (*mucmodel.Room, error) {
	return instance().Room().FetchRoom(ctx, roomName)
}

// FetchRooms retrieves all room entities from storage.
func FetchRooms(ctx context.Context) ([]*mucmodel.Room, error) {
	return instance().Room().FetchRooms(ctx)
}

// RoomExists tells whether or not a room exists within storage.
func RoomExists(ctx context.Context, roomName string) (bool, error) {
	return instance().Room().RoomExists(ctx, roomName)
}

// InsertBlockListItem inserts a block list item entity into storage if not previously inserted.
func InsertBlockListItem(ctx context.Context, item *model.BlockListItem) error {
	return instance().BlockList().InsertBlockListItem(ctx, item)
}

// DeleteBlockListItem deletes a block list item entity from storage.
func DeleteBlockListItem(ctx context.Context, item *model.BlockListItem) error {
	return instance().BlockList().DeleteBlockListItem(ctx, item)
}

// FetchBlockListItems retrieves from storage all block list item entities associated to a given user.
func FetchBlockListItems(ctx context.Context, username string) ([]model.BlockListItem, error) {
	return instance().BlockList().FetchBlockListItems(ctx, username)
}

// UpsertNode inserts a new pubsub node entity into storage, or updates it if previously inserted.
func UpsertNode(ctx context.Context, node *pubsubmodel.Node) error {
	return instance().PubSub().UpsertNode(ctx, node)
}

// FetchNode retrieves from storage a pubsub node entity.
func FetchNode(ctx context.Context, host, name string) (*pubsubmodel.Node, error) {
	return instance().PubSub().FetchNode(ctx, host, name)
}

// FetchNodes retrieves from storage all node entities associated with a host.
func FetchNodes(ctx context.Context, host string) ([]pubsubmodel.Node, error) {
	return instance().PubSub().FetchNodes(ctx, host)
}

// FetchSubscribedNodes retrieves from storage all nodes to which a given jid is subscribed.
func FetchSubscribedNodes(ctx context.Context, jid string) ([]pubsubmodel.Node, error) {
	return instance().PubSub().FetchSubscribedNodes(ctx, jid)
}

// DeleteNode deletes a pubsub node from storage.
func DeleteNode(ctx context.Context, host, name string) error {
	return instance().PubSub().DeleteNode(ctx, host, name)
}

// UpsertNodeItem inserts a new pubsub node item entity into storage, or updates it if previously inserted.
func UpsertNodeItem(ctx context.Context, item *pubsubmodel.Item, host, name string, maxNodeItems int) error {
	return instance().PubSub().UpsertNodeItem(ctx, item, host, name, maxNodeItems)
}

// DeleteNodeItem deletes a pubsub node item from storage.
func DeleteNodeItem(ctx context.Context, host, name, itemID string) error {
	return instance().PubSub().DeleteNodeItem(ctx, host, name, itemID)
}

// FetchNodeItems retrieves all items associated to a node.
func FetchNodeItems(ctx context.Context, host, name string) ([]pubsubmodel.Item, error) {
	return instance().PubSub().FetchNodeItems(ctx, host, name)
}

// FetchNodeItemsWithIDs retrieves all items matching any of the passed identifiers.
func FetchNodeItemsWithIDs(ctx context.Context, host, name string, identifiers []string) ([]pubsubmodel.Item, error) {
	return instance().PubSub().FetchNodeItemsWithIDs(ctx, host, name, identifiers)
}

// FetchNodeLastItem retrieves last published node item.
func FetchNodeLastItem(ctx context.Context, host, name string) (*pubsubmodel.Item, error) {
	return instance().PubSub().FetchNodeLastItem(ctx, host, name)
}

// UpsertNodeAffiliation inserts a new pubsub node affiliation into storage, or updates it if previously inserted.
func UpsertNodeAffiliation(ctx context.Context, affiliation *pubsubmodel.Affiliation, host, name string) error {
	return instance().PubSub().UpsertNodeAffiliation(ctx, affiliation, host, name)
}

// FetchNodeAffiliation retrieves a concrete node affiliation from storage.
func FetchNodeAffiliation(ctx context.Context, host, name, jid string) (*pubsubmodel.Affiliation, error) {
	return instance().PubSub().FetchNodeAffiliation(ctx, host, name, jid)
}

// FetchNodeAffiliations retrieves all affiliations associated to a node.
func FetchNodeAffiliations(ctx context.Context, host, name string) ([]pubsubmodel.Affiliation, error) {
	return instance().PubSub().FetchNodeAffiliations(ctx, host, name)
}

// DeleteNodeAffiliation deletes a pubsub node affiliation from storage.
func DeleteNodeAffiliation(ctx context.Context, jid, host, name string) error {
	return instance().PubSub().DeleteNodeAffiliation(ctx, jid, host, name)
}

// UpsertNodeSubscription inserts a new pubsub node subscription into storage, or updates it if previously inserted.
func UpsertNodeSubscription(ctx context.Context, subscription *pubsubmodel.Subscription, host, name string) error {
	return instance().PubSub().UpsertNodeSubscription(ctx, subscription, host, name)
}

// FetchNodeSubscriptions retrieves all subscriptions associated to a node.
func FetchNodeSubscriptions(ctx context.Context, host, name string) ([]pubsubmodel.Subscription, error) {
	return instance().PubSub().FetchNodeSubscriptions(ctx, host, name)
}

// DeleteNodeSubscription deletes a pubsub node subscription from storage.
func DeleteNodeSubscription(ctx context.Context, jid, host, name string) error {
	return instance().PubSub().DeleteNodeSubscription(ctx, jid, host, name)
}
