/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package boltdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/conclave-im/conclave/model"
	mucmodel "github.com/conclave-im/conclave/model/muc"
	pubsubmodel "github.com/conclave-im/conclave/model/pubsub"
	"github.com/conclave-im/conclave/model/rostermodel"
	"github.com/conclave-im/conclave/storage/repository"
	"github.com/conclave-im/conclave/xmpp/jid"
	"github.com/stretchr/testify/require"
)

func TestBoltDBStorageUser(t *testing.T) {
	c := testBoltDBContainer(t)

	err := c.User().UpsertUser(context.Background(), &model.User{Username: "ortuman"})
	require.Nil(t, err)

	usr, err := c.User().FetchUser(context.Background(), "ortuman")
	require.Nil(t, err)
	require.NotNil(t, usr)
	require.Equal(t, "ortuman", usr.Username)

	ok, err := c.User().UserExists(context.Background(), "ortuman")
	require.Nil(t, err)
	require.True(t, ok)

	err = c.User().DeleteUser(context.Background(), "ortuman")
	require.Nil(t, err)

	ok, err = c.User().UserExists(context.Background(), "ortuman")
	require.Nil(t, err)
	require.False(t, ok)
}

func TestBoltDBStorageRosterItems(t *testing.T) {
	c := testBoltDBContainer(t)

	ri := rostermodel.Item{
		Username:     "ortuman",
		JID:          "romeo@jackal.im",
		Subscription: rostermodel.SubscriptionBoth,
	}
	v, err := c.Roster().UpsertRosterItem(context.Background(), &ri)
	require.Nil(t, err)
	require.Equal(t, 1, v.Ver)
	require.True(t, ri.ID > 0)

	id := ri.ID
	v, err = c.Roster().UpsertRosterItem(context.Background(), &ri)
	require.Nil(t, err)
	require.Equal(t, 2, v.Ver)
	require.Equal(t, id, ri.ID)

	items, ver, err := c.Roster().FetchRosterItems(context.Background(), "ortuman")
	require.Nil(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 2, ver.Ver)

	v, err = c.Roster().DeleteRosterItem(context.Background(), "ortuman", "romeo@jackal.im")
	require.Nil(t, err)
	require.Equal(t, 3, v.Ver)
	require.Equal(t, 3, v.DeletionVer)
}

func TestBoltDBStorageRoom(t *testing.T) {
	c := testBoltDBContainer(t)

	j, _ := jid.NewWithString("lobby@conference.jackal.im", true)
	room := mucmodel.NewRoom("lobby", j, &mucmodel.RoomConfig{Public: true, Persistent: true, HistCnt: 20})

	err := c.Room().UpsertRoom(context.Background(), room)
	require.Nil(t, err)
	require.True(t, room.ID > 0)

	id := room.ID
	err = c.Room().UpsertRoom(context.Background(), room)
	require.Nil(t, err)
	require.Equal(t, id, room.ID)

	got, err := c.Room().FetchRoom(context.Background(), "lobby")
	require.Nil(t, err)
	require.NotNil(t, got)
	require.Equal(t, id, got.ID)

	rooms, err := c.Room().FetchRooms(context.Background())
	require.Nil(t, err)
	require.Len(t, rooms, 1)

	err = c.Room().DeleteRoom(context.Background(), "lobby")
	require.Nil(t, err)

	ok, err := c.Room().RoomExists(context.Background(), "lobby")
	require.Nil(t, err)
	require.False(t, ok)
}

func TestBoltDBStoragePubSubItems(t *testing.T) {
	c := testBoltDBContainer(t)

	node := pubsubmodel.Node{Host: "ortuman@jackal.im", Name: "princely_musings"}
	err := c.PubSub().UpsertNode(context.Background(), &node)
	require.Nil(t, err)

	for _, identifier := range []string{"1", "2", "3"} {
		err := c.PubSub().UpsertNodeItem(context.Background(), &pubsubmodel.Item{
			ID:        identifier,
			Publisher: "ortuman@jackal.im",
		}, "ortuman@jackal.im", "princely_musings", 2)
		require.Nil(t, err)
	}
	items, err := c.PubSub().FetchNodeItems(context.Background(), "ortuman@jackal.im", "princely_musings")
	require.Nil(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "2", items[0].ID)
	require.Equal(t, "3", items[1].ID)

	last, err := c.PubSub().FetchNodeLastItem(context.Background(), "ortuman@jackal.im", "princely_musings")
	require.Nil(t, err)
	require.NotNil(t, last)
	require.Equal(t, "3", last.ID)

	err = c.PubSub().DeleteNode(context.Background(), "ortuman@jackal.im", "princely_musings")
	require.Nil(t, err)

	n, err := c.PubSub().FetchNode(context.Background(), "ortuman@jackal.im", "princely_musings")
	require.Nil(t, err)
	require.Nil(t, n)
}

func testBoltDBContainer(t *testing.T) repository.Container {
	t.Helper()
	c, err := New(&Config{Path: filepath.Join(t.TempDir(), "conclave.db")})
	require.Nil(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}
