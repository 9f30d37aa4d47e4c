/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package boltdb

import (
	"context"

	"github.com/conclave-im/conclave/model/groupmodel"
	bolt "go.etcd.io/bbolt"
)

type boltDBGroup struct {
	*boltDBStorage
}

func newGroup(db *bolt.DB) *boltDBGroup {
	return &boltDBGroup{boltDBStorage: newStorage(db)}
}

// UpsertGroup inserts a new shared group entity into storage, or updates it in case it's been previously inserted.
func (b *boltDBGroup) UpsertGroup(_ context.Context, group *groupmodel.Group) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return b.upsert(group, groupKey(group.Name), tx)
	})
}

// DeleteGroup deletes a shared group entity from storage.
func (b *boltDBGroup) DeleteGroup(_ context.Context, name string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return b.delete(groupKey(name), tx)
	})
}

// FetchGroup retrieves from storage a shared group entity.
func (b *boltDBGroup) FetchGroup(_ context.Context, name string) (*groupmodel.Group, error) {
	var group groupmodel.Group
	err := b.db.View(func(tx *bolt.Tx) error {
		return b.fetch(&group, groupKey(name), tx)
	})
	switch err {
	case nil:
		return &group, nil
	case errEntityNotFound:
		return nil, nil
	default:
		return nil, err
	}
}

// FetchGroups retrieves from storage all shared group entities.
func (b *boltDBGroup) FetchGroups(_ context.Context) ([]groupmodel.Group, error) {
	var groups []groupmodel.Group
	err := b.db.View(func(tx *bolt.Tx) error {
		return b.forEachKeyInTx([]byte("sharedGroups:"), tx, func(k []byte) error {
			var group groupmodel.Group
			if err := b.fetch(&group, k, tx); err != nil {
				return err
			}
			groups = append(groups, group)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// FetchUserGroups retrieves from storage all shared groups a given user belongs to.
func (b *boltDBGroup) FetchUserGroups(ctx context.Context, username string) ([]groupmodel.Group, error) {
	groups, err := b.FetchGroups(ctx)
	if err != nil {
		return nil, err
	}
	var ret []groupmodel.Group
	for _, group := range groups {
		if group.IsMember(username) {
			ret = append(ret, group)
		}
	}
	return ret, nil
}

func groupKey(name string) []byte {
	return []byte("sharedGroups:" + name)
}
