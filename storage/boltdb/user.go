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

type boltDBUser struct {
	*boltDBStorage
}

func newUser(db *bolt.DB) *boltDBUser {
	return &boltDBUser{boltDBStorage: newStorage(db)}
}

// UpsertUser inserts a new user entity into storage, or updates it in case it's been previously inserted.
func (b *boltDBUser) UpsertUser(_ context.Context, user *model.User) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return b.upsert(user, userKey(user.Username), tx)
	})
}

// DeleteUser deletes a user entity from storage.
func (b *boltDBUser) DeleteUser(_ context.Context, username string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return b.delete(userKey(username), tx)
	})
}

// FetchUser retrieves from storage a user entity.
func (b *boltDBUser) FetchUser(_ context.Context, username string) (*model.User, error) {
	var usr model.User
	err := b.db.View(func(tx *bolt.Tx) error {
		return b.fetch(&usr, userKey(username), tx)
	})
	switch err {
	case nil:
		return &usr, nil
	case errEntityNotFound:
		return nil, nil
	default:
		return nil, err
	}
}

// UserExists returns whether or not a user exists within storage.
func (b *boltDBUser) UserExists(_ context.Context, username string) (bool, error) {
	err := b.db.View(func(tx *bolt.Tx) error {
		return b.fetch(nil, userKey(username), tx)
	})
	switch err {
	case nil:
		return true, nil
	case errEntityNotFound:
		return false, nil
	default:
		return false, err
	}
}

func userKey(username string) []byte {
	return []byte("users:" + username)
}
