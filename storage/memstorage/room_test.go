/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package memstorage

import (
	"context"
	"testing"

	mucmodel "github.com/conclave-im/conclave/model/muc"
	"github.com/conclave-im/conclave/xmpp/jid"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorageUpsertRoom(t *testing.T) {
	r := testStorageRoom(t, "lobby")
	s := New()

	s.ActivateMockedError()
	require.Equal(t, ErrMocked, s.UpsertRoom(context.Background(), r))
	s.DeactivateMockedError()

	require.Nil(t, s.UpsertRoom(context.Background(), r))
	require.True(t, r.ID > 0)

	assignedID := r.ID
	require.Nil(t, s.UpsertRoom(context.Background(), r))
	require.Equal(t, assignedID, r.ID)
}

func TestMemoryStorageFetchRoom(t *testing.T) {
	r := testStorageRoom(t, "lobby")
	s := New()
	_ = s.UpsertRoom(context.Background(), r)

	room, err := s.FetchRoom(context.Background(), "garden")
	require.Nil(t, err)
	require.Nil(t, room)

	room, err = s.FetchRoom(context.Background(), "lobby")
	require.Nil(t, err)
	require.NotNil(t, room)
	require.Equal(t, "lobby", room.Name)
	require.Equal(t, r.RoomJID.String(), room.RoomJID.String())

	ok, err := s.RoomExists(context.Background(), "lobby")
	require.Nil(t, err)
	require.True(t, ok)
}

func TestMemoryStorageFetchRooms(t *testing.T) {
	s := New()
	_ = s.UpsertRoom(context.Background(), testStorageRoom(t, "lobby"))
	_ = s.UpsertRoom(context.Background(), testStorageRoom(t, "garden"))

	rooms, err := s.FetchRooms(context.Background())
	require.Nil(t, err)
	require.Equal(t, 2, len(rooms))
	require.Equal(t, "garden", rooms[0].Name)
	require.Equal(t, "lobby", rooms[1].Name)
}

func TestMemoryStorageDeleteRoom(t *testing.T) {
	s := New()
	_ = s.UpsertRoom(context.Background(), testStorageRoom(t, "lobby"))

	require.Nil(t, s.DeleteRoom(context.Background(), "lobby"))

	ok, err := s.RoomExists(context.Background(), "lobby")
	require.Nil(t, err)
	require.False(t, ok)
}

func testStorageRoom(t *testing.T, name string) *mucmodel.Room {
	t.Helper()
	j, err := jid.NewWithString(name+"@conference.jackal.im", true)
	require.Nil(t, err)
	return mucmodel.NewRoom(name, j, &mucmodel.RoomConfig{Public: true, Persistent: true, HistCnt: 20})
}
