/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package boltdb

import (
	"context"

	"github.com/conclave-im/conclave/model"
	bolt "go.etcd.io/bbolt"
)

type boltDBBlockList struct {
	*boltDBStorage
}

func newBlockList(db *bolt.DB) *boltDBBlockList {
	return &boltDBBlockList{boltDBStorage: newStorage(db)}
}

// InsertBlockListItem inserts a block list item entity into storage if not previously inserted.
func (b *boltDBBlockList) InsertBlockListItem(_ context.Context, item *model.BlockListItem) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		var items []model.BlockListItem
		if err := b.fetchSlice(&items, blockListItemsKey(item.Username), tx); err != nil {
			return err
		}
		for _, itm := range items {
			if itm.JID == item.JID {
				return nil
			}
		}
		items = append(items, *item)
		return b.upsertSlice(&items, blockListItemsKey(item.Username), tx)
	})
}

// DeleteBlockListItem deletes a block list item entity from storage.
func (b *boltDBBlockList) DeleteBlockListItem(_ context.Context, item *model.BlockListItem) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		var items []model.BlockListItem
		if err := b.fetchSlice(&items, blockListItemsKey(item.Username), tx); err != nil {
			return err
		}
		for i, itm := range items {
			if itm.JID == item.JID {
				items = append(items[:i], items[i+1:]...)
				return b.upsertSlice(&items, blockListItemsKey(item.Username), tx)
			}
		}
		return nil
	})
}

// FetchBlockListItems retrieves from storage all block list items associated to a given user.
func (b *boltDBBlockList) FetchBlockListItems(_ context.Context, username string) ([]model.BlockListItem, error) {
	var items []model.BlockListItem
	err := b.db.View(func(tx *bolt.Tx) error {
		return b.fetchSlice(&items, blockListItemsKey(username), tx)
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func blockListItemsKey(username string) []byte {
	return []byte("blockListItems:" + username)
}
