/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package memstorage

import (
	"context"

	"github.com/conclave-im/conclave/model"
)

// InsertBlockListItem inserts a block list item entity into storage if not previously inserted.
func (m *Storage) InsertBlockListItem(_ context.Context, item *model.BlockListItem) error {
	return m.inWriteLock(func() error {
		var items []model.BlockListItem
		if err := m.getSlice(blockListItemsKey(item.Username), &items); err != nil {
			return err
		}
		for _, itm := range items {
			if itm.JID == item.JID {
				return nil
			}
		}
		items = append(items, *item)
		return m.saveSlice(blockListItemsKey(item.Username), &items)
	})
}

// DeleteBlockListItem deletes a block list item entity from storage.
func (m *Storage) DeleteBlockListItem(_ context.Context, item *model.BlockListItem) error {
	return m.inWriteLock(func() error {
		var items []model.BlockListItem
		if err := m.getSlice(blockListItemsKey(item.Username), &items); err != nil {
			return err
		}
		for i, itm := range items {
			if itm.JID == item.JID {
				items = append(items[:i], items[i+1:]...)
				return m.saveSlice(blockListItemsKey(item.Username), &items)
			}
		}
		return nil
	})
}

// FetchBlockListItems retrieves from storage all block list item entities
// associated to a given user.
func (m *Storage) FetchBlockListItems(_ context.Context, username string) ([]model.BlockListItem, error) {
	var items []model.BlockListItem
	err := m.inReadLock(func() error {
		return m.getSlice(blockListItemsKey(username), &items)
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func blockListItemsKey(username string) string {
	return "blockListItems:" + username
}
