/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package memstorage

import (
	"context"
	"sort"

	mucmodel "github.com/conclave-im/conclave/model/muc"
)

// UpsertRoom inserts a new room entity into storage, or updates it if previously inserted.
func (m *Storage) UpsertRoom(_ context.Context, room *mucmodel.Room) error {
	return m.inWriteLock(func() error {
		if room.ID < 0 {
			m.roomIDCounter++
			room.ID = m.roomIDCounter
		}
		return m.saveEntity(roomKey(room.Name), room)
	})
}

// DeleteRoom deletes a room entity from storage.
func (m *Storage) DeleteRoom(_ context.Context, roomName string) error {
	return m.inWriteLock(func() error {
		delete(m.b, roomKey(roomName))
		return nil
	})
}

// FetchRoom retrieves a room entity from storage.
func (m *Storage) FetchRoom(_ context.Context, roomName string) (*mucmodel.Room, error) {
	var room mucmodel.Room
	var ok bool
	err := m.inReadLock(func() error {
		var fnErr error
		ok, fnErr = m.getEntity(roomKey(roomName), &room)
		return fnErr
	})
	switch {
	case err != nil:
		return nil, err
	case ok:
		return &room, nil
	default:
		return nil, nil
	}
}

// FetchRooms retrieves all room entities from storage.
func (m *Storage) FetchRooms(_ context.Context) ([]*mucmodel.Room, error) {
	var rooms []*mucmodel.Room
	err := m.inReadLock(func() error {
		return m.forEachKeyPrefix("rooms:", func(k string) error {
			var room mucmodel.Room
			if _, err := m.getEntity(k, &room); err != nil {
				return err
			}
			rooms = append(rooms, &room)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Name < rooms[j].Name })
	return rooms, nil
}

// RoomExists tells whether or not a room exists within storage.
func (m *Storage) RoomExists(_ context.Context, roomName string) (bool, error) {
	var ok bool
	err := m.inReadLock(func() error {
		ok = m.b[roomKey(roomName)] != nil
		return nil
	})
	return ok, err
}

func roomKey(roomName string) string {
	return "rooms:" + roomName
}
