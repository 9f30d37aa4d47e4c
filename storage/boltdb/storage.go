/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package boltdb

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/conclave-im/conclave/model/serializer"
	bolt "go.etcd.io/bbolt"
)

var (
	// errEntityNotFound represents an entity not found error
	errEntityNotFound = errors.New("boltdb: entity not found")

	// errWrongEntityType represents an invalid entity type error
	errWrongEntityType = errors.New("boltdb: wrong entity type")
)

var entitiesBucket = []byte("entities")

// boltDBStorage represents a BoltDB base storage sub system.
type boltDBStorage struct {
	db *bolt.DB
}

// newStorage returns a new BoltDB base storage instance.
func newStorage(db *bolt.DB) *boltDBStorage {
	return &boltDBStorage{db: db}
}

func bucket(tx *bolt.Tx) *bolt.Bucket {
	return tx.Bucket(entitiesBucket)
}

// fetch retrieves and deserializes a database entity.
func (b *boltDBStorage) fetch(entity interface{}, key []byte, tx *bolt.Tx) error {
	val := bucket(tx).Get(key)
	if val == nil {
		return errEntityNotFound
	}
	if entity == nil {
		return nil
	}
	gd, ok := entity.(serializer.Deserializer)
	if !ok {
		return fmt.Errorf("%v: %T", errWrongEntityType, entity)
	}
	return serializer.Deserialize(val, gd)
}

// upsert inserts or updates a serializable entity into database.
func (b *boltDBStorage) upsert(entity interface{}, key []byte, tx *bolt.Tx) error {
	gs, ok := entity.(serializer.Serializer)
	if !ok {
		return fmt.Errorf("%v: %T", errWrongEntityType, entity)
	}
	val, err := serializer.Serialize(gs)
	if err != nil {
		return err
	}
	return bucket(tx).Put(key, val)
}

// fetchSlice retrieves and deserializes a database slice.
func (b *boltDBStorage) fetchSlice(slice interface{}, key []byte, tx *bolt.Tx) error {
	val := bucket(tx).Get(key)
	if val == nil {
		return nil
	}
	return serializer.DeserializeSlice(val, slice)
}

// upsertSlice inserts or updates a serializable slice into database.
func (b *boltDBStorage) upsertSlice(slice interface{}, key []byte, tx *bolt.Tx) error {
	val, err := serializer.SerializeSlice(slice)
	if err != nil {
		return err
	}
	return bucket(tx).Put(key, val)
}

// delete deletes a key.
func (b *boltDBStorage) delete(key []byte, tx *bolt.Tx) error {
	return bucket(tx).Delete(key)
}

// forEachKeyInTx iterates all entities matching a given prefix within a transaction.
func (b *boltDBStorage) forEachKeyInTx(prefix []byte, tx *bolt.Tx, f func(k []byte) error) error {
	c := bucket(tx).Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		if err := f(k); err != nil {
			return err
		}
	}
	return nil
}
