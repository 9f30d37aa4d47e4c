/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package boltdb

import (
	"context"

	"github.com/conclave-im/conclave/model/rostermodel"
	bolt "go.etcd.io/bbolt"
)

type boltDBRoster struct {
	*boltDBStorage
}

func newRoster(db *bolt.DB) *boltDBRoster {
	return &boltDBRoster{boltDBStorage: newStorage(db)}
}

// UpsertRosterItem inserts a new roster item entity into storage,
// or updates it in case it's been previously inserted.
func (b *boltDBRoster) UpsertRosterItem(_ context.Context, ri *rostermodel.Item) (rostermodel.Version, error) {
	var v rostermodel.Version
	err := b.db.Update(func(tx *bolt.Tx) error {
		var items []rostermodel.Item
		if err := b.fetchSlice(&items, rosterItemsKey(ri.Username), tx); err != nil {
			return err
		}
		upserted := *ri
		if upserted.ID == 0 {
			seq, err := bucket(tx).NextSequence()
			if err != nil {
				return err
			}
			upserted.ID = int64(seq)
		}
		var found bool
		for i, item := range items {
			if item.JID == ri.JID {
				if item.ID != 0 {
					upserted.ID = item.ID
				}
				items[i] = upserted
				found = true
				break
			}
		}
		if !found {
			items = append(items, upserted)
		}
		ri.ID = upserted.ID

		var err error
		v, err = b.bumpRosterVer(ri.Username, false, tx)
		if err != nil {
			return err
		}
		for i := range items {
			items[i].Ver = v.Ver
		}
		ri.Ver = v.Ver
		return b.upsertSlice(&items, rosterItemsKey(ri.Username), tx)
	})
	if err != nil {
		return rostermodel.Version{}, err
	}
	return v, nil
}

// DeleteRosterItem deletes a roster item entity from storage.
func (b *boltDBRoster) DeleteRosterItem(_ context.Context, username, jid string) (rostermodel.Version, error) {
	var v rostermodel.Version
	err := b.db.Update(func(tx *bolt.Tx) error {
		var items []rostermodel.Item
		if err := b.fetchSlice(&items, rosterItemsKey(username), tx); err != nil {
			return err
		}
		for i, item := range items {
			if item.JID == jid {
				items = append(items[:i], items[i+1:]...)
				if err := b.upsertSlice(&items, rosterItemsKey(username), tx); err != nil {
					return err
				}
				break
			}
		}
		var err error
		v, err = b.bumpRosterVer(username, true, tx)
		return err
	})
	if err != nil {
		return rostermodel.Version{}, err
	}
	return v, nil
}

// FetchRosterItems retrieves from storage all roster item entities associated to a given user.
func (b *boltDBRoster) FetchRosterItems(_ context.Context, username string) ([]rostermodel.Item, rostermodel.Version, error) {
	var items []rostermodel.Item
	var v rostermodel.Version
	err := b.db.View(func(tx *bolt.Tx) error {
		if err := b.fetchSlice(&items, rosterItemsKey(username), tx); err != nil {
			return err
		}
		err := b.fetch(&v, rosterVersionKey(username), tx)
		if err != nil && err != errEntityNotFound {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, rostermodel.Version{}, err
	}
	return items, v, nil
}

// FetchRosterItem retrieves from storage a roster item entity.
func (b *boltDBRoster) FetchRosterItem(_ context.Context, username, jid string) (*rostermodel.Item, error) {
	var ret *rostermodel.Item
	err := b.db.View(func(tx *bolt.Tx) error {
		var items []rostermodel.Item
		if err := b.fetchSlice(&items, rosterItemsKey(username), tx); err != nil {
			return err
		}
		for _, item := range items {
			if item.JID == jid {
				it := item
				ret = &it
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// UpsertRosterNotification inserts a new roster notification entity
// into storage, or updates it in case it's been previously inserted.
func (b *boltDBRoster) UpsertRosterNotification(_ context.Context, rn *rostermodel.Notification) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		var rns []rostermodel.Notification
		if err := b.fetchSlice(&rns, rosterNotificationsKey(rn.Contact), tx); err != nil {
			return err
		}
		var found bool
		for i, n := range rns {
			if n.JID == rn.JID {
				rns[i] = *rn
				found = true
				break
			}
		}
		if !found {
			rns = append(rns, *rn)
		}
		return b.upsertSlice(&rns, rosterNotificationsKey(rn.Contact), tx)
	})
}

// DeleteRosterNotification deletes a roster notification entity from storage.
func (b *boltDBRoster) DeleteRosterNotification(_ context.Context, contact, jid string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		var rns []rostermodel.Notification
		if err := b.fetchSlice(&rns, rosterNotificationsKey(contact), tx); err != nil {
			return err
		}
		for i, n := range rns {
			if n.JID == jid {
				rns = append(rns[:i], rns[i+1:]...)
				return b.upsertSlice(&rns, rosterNotificationsKey(contact), tx)
			}
		}
		return nil
	})
}

// FetchRosterNotifications retrieves from storage all roster notifications associated to a given contact.
func (b *boltDBRoster) FetchRosterNotifications(_ context.Context, contact string) ([]rostermodel.Notification, error) {
	var rns []rostermodel.Notification
	err := b.db.View(func(tx *bolt.Tx) error {
		return b.fetchSlice(&rns, rosterNotificationsKey(contact), tx)
	})
	if err != nil {
		return nil, err
	}
	return rns, nil
}

// bumpRosterVer increments a user roster version.
func (b *boltDBRoster) bumpRosterVer(username string, isDeletion bool, tx *bolt.Tx) (rostermodel.Version, error) {
	var v rostermodel.Version
	err := b.fetch(&v, rosterVersionKey(username), tx)
	if err != nil && err != errEntityNotFound {
		return rostermodel.Version{}, err
	}
	v.Ver++
	if isDeletion {
		v.DeletionVer = v.Ver
	}
	if err := b.upsert(&v, rosterVersionKey(username), tx); err != nil {
		return rostermodel.Version{}, err
	}
	return v, nil
}

func rosterItemsKey(username string) []byte {
	return []byte("rosterItems:" + username)
}

func rosterVersionKey(username string) []byte {
	return []byte("rosterVersions:" + username)
}

func rosterNotificationsKey(contact string) []byte {
	return []byte("rosterNotifications:" + contact)
}
