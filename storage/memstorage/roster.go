/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package memstorage

import (
	"context"

	"github.com/conclave-im/conclave/model/rostermodel"
)

// UpsertRosterItem inserts a new roster item entity into storage,
// or updates it in case it's been previously inserted.
func (m *Storage) UpsertRosterItem(_ context.Context, ri *rostermodel.Item) (rostermodel.Version, error) {
	var v rostermodel.Version
	err := m.inWriteLock(func() error {
		var items []rostermodel.Item
		if err := m.getSlice(rosterItemsKey(ri.Username), &items); err != nil {
			return err
		}
		upserted := *ri
		if upserted.ID == 0 {
			m.rosterItemIDCounter++
			upserted.ID = m.rosterItemIDCounter
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
		v, err = m.bumpRosterVer(ri.Username, false)
		if err != nil {
			return err
		}
		for i := range items {
			if items[i].JID == ri.JID {
				items[i].Ver = v.Ver
			}
		}
		ri.Ver = v.Ver
		return m.saveSlice(rosterItemsKey(ri.Username), &items)
	})
	if err != nil {
		return rostermodel.Version{}, err
	}
	return v, nil
}

// DeleteRosterItem deletes a roster item entity from storage.
func (m *Storage) DeleteRosterItem(_ context.Context, username, jid string) (rostermodel.Version, error) {
	var v rostermodel.Version
	err := m.inWriteLock(func() error {
		var items []rostermodel.Item
		if err := m.getSlice(rosterItemsKey(username), &items); err != nil {
			return err
		}
		for i, item := range items {
			if item.JID == jid {
				items = append(items[:i], items[i+1:]...)
				if err := m.saveSlice(rosterItemsKey(username), &items); err != nil {
					return err
				}
				break
			}
		}
		var err error
		v, err = m.bumpRosterVer(username, true)
		return err
	})
	if err != nil {
		return rostermodel.Version{}, err
	}
	return v, nil
}

// FetchRosterItems retrieves from storage all roster item entities
// associated to a given user.
func (m *Storage) FetchRosterItems(_ context.Context, username string) ([]rostermodel.Item, rostermodel.Version, error) {
	var items []rostermodel.Item
	var v rostermodel.Version
	err := m.inReadLock(func() error {
		if err := m.getSlice(rosterItemsKey(username), &items); err != nil {
			return err
		}
		_, err := m.getEntity(rosterVersionKey(username), &v)
		return err
	})
	if err != nil {
		return nil, rostermodel.Version{}, err
	}
	return items, v, nil
}

// FetchRosterItem retrieves from storage a roster item entity.
func (m *Storage) FetchRosterItem(_ context.Context, username, jid string) (*rostermodel.Item, error) {
	var ret *rostermodel.Item
	err := m.inReadLock(func() error {
		var items []rostermodel.Item
		if err := m.getSlice(rosterItemsKey(username), &items); err != nil {
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
func (m *Storage) UpsertRosterNotification(_ context.Context, rn *rostermodel.Notification) error {
	return m.inWriteLock(func() error {
		var rns []rostermodel.Notification
		if err := m.getSlice(rosterNotificationsKey(rn.Contact), &rns); err != nil {
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
		return m.saveSlice(rosterNotificationsKey(rn.Contact), &rns)
	})
}

// DeleteRosterNotification deletes a roster notification entity from storage.
func (m *Storage) DeleteRosterNotification(_ context.Context, contact, jid string) error {
	return m.inWriteLock(func() error {
		var rns []rostermodel.Notification
		if err := m.getSlice(rosterNotificationsKey(contact), &rns); err != nil {
			return err
		}
		for i, n := range rns {
			if n.JID == jid {
				rns = append(rns[:i], rns[i+1:]...)
				return m.saveSlice(rosterNotificationsKey(contact), &rns)
			}
		}
		return nil
	})
}

// FetchRosterNotifications retrieves from storage all roster notifications
// associated to a given contact.
func (m *Storage) FetchRosterNotifications(_ context.Context, contact string) ([]rostermodel.Notification, error) {
	var rns []rostermodel.Notification
	err := m.inReadLock(func() error {
		return m.getSlice(rosterNotificationsKey(contact), &rns)
	})
	if err != nil {
		return nil, err
	}
	return rns, nil
}

// bumpRosterVer increments a user roster version. Callers must hold the write lock.
func (m *Storage) bumpRosterVer(username string, isDeletion bool) (rostermodel.Version, error) {
	var v rostermodel.Version
	if _, err := m.getEntity(rosterVersionKey(username), &v); err != nil {
		return rostermodel.Version{}, err
	}
	v.Ver++
	if isDeletion {
		v.DeletionVer = v.Ver
	}
	if err := m.saveEntity(rosterVersionKey(username), &v); err != nil {
		return rostermodel.Version{}, err
	}
	return v, nil
}

func rosterItemsKey(username string) string {
	return "rosterItems:" + username
}

func rosterVersionKey(username string) string {
	return "rosterVersions:" + username
}

func rosterNotificationsKey(contact string) string {
	return "rosterNotifications:" + contact
}
