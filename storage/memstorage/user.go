/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package memstorage

import (
	"context"

	"github.com/conclave-im/conclave/model"
)

// UpsertUser inserts a new user entity into storage, or updates it if previously inserted.
func (m *Storage) UpsertUser(_ context.Context, user *model.User) error {
	return m.inWriteLock(func() error {
		return m.saveEntity(userKey(user.Username), user)
	})
}

// DeleteUser deletes a user entity from storage.
func (m *Storage) DeleteUser(_ context.Context, username string) error {
	return m.inWriteLock(func() error {
		delete(m.b, userKey(username))
		return nil
	})
}

// FetchUser retrieves a user entity from storage.
func (m *Storage) FetchUser(_ context.Context, username string) (*model.User, error) {
	var usr model.User
	var ok bool
	err := m.inReadLock(func() error {
		var fnErr error
		ok, fnErr = m.getEntity(userKey(username), &usr)
		return fnErr
	})
	switch {
	case err != nil:
		return nil, err
	case ok:
		return &usr, nil
	default:
		return nil, nil
	}
}

// UserExists tells whether or not a user exists within storage.
func (m *Storage) UserExists(_ context.Context, username string) (bool, error) {
	var ok bool
	err := m.inReadLock(func() error {
		ok = m.b[userKey(username)] != nil
		return nil
	})
	return ok, err
}

func userKey(username string) string {
	return "users:" + username
}
