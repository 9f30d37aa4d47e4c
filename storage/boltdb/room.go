/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package boltdb

import (
	"context"

	mucmodel "github.com/conclave-im/conclave/model/muc"
	bolt "go.etcd.io/bbolt"
)

type boltDBRoom struct {
	*boltDBStorage
}

func newRoom(db *bolt.DB) *boltDBRoom {
	return &boltDBRoom{boltDBStorage: newStorage(db)}
}

// UpsertRoom inserts a new room entity into storage, or updates it in case it's been previously inserted.
func (b *boltDBRoom) UpsertRoom(_ context.Context, room *mucmodel.Room) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if room.ID < 0 {
			seq, err := bucket(tx).NextSequence()
			if err != nil {
				return err
			}
			room.ID = int64(seq)
		}
		return b.upsert(room, roomKey(room.Name), tx)
	})
}

// DeleteRoom deletes a room entity from storage.
func (b *boltDBRoom) DeleteRoom(_ context.Context, roomName string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return b.delete(roomKey(roomName), tx)
	})
}

// FetchRoom retrieves from storage a room entity.
func (b *boltDBRoom) FetchRoom(_ context.Context, roomName string) (*mucmodel.Room, error) {
	var room mucmodel.Room
	err := b.db.View(func(tx *bolt.Tx) error {
		return b.fetch(&room, roomKey(roomName), tx)
	})
	switch err {
	case nil:
		return &room, nil
	case errEntityNotFound:
		return nil, nil
	default:
		return nil, err
	}
}

// FetchRooms retrieves from storage all room entities.
func (b *boltDBRoom) FetchRooms(_ context.Context) ([]*mucmodel.Room, error) {
	var rooms []*mucmodel.Room
	err := b.db.View(func(tx *bolt.Tx) error {
		return b.forEachKeyInTx([]byte("rooms:"), tx, func(k []byte) error {
			var room mucmodel.Room
			if err := b.fetch(&room, k, tx); err != nil {
				return err
			}
			rooms = append(rooms, &room)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

// RoomExists returns whether or not a room exists within storage.
func (b *boltDBRoom) RoomExists(_ context.Context, roomName string) (bool, error) {
	err := b.db.View(func(tx *bolt.Tx) error {
		return b.fetch(nil, roomKey(roomName), tx)
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

func roomKey(roomName string) []byte {
	return []byte("rooms:" + roomName)
}
