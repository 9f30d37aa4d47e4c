/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package memstorage

import (
	"context"
	"testing"

	"github.com/conclave-im/conclave/model/rostermodel"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorageUpsertRosterItem(t *testing.T) {
	ri := rostermodel.Item{
		Username:     "ortuman",
		JID:          "juliet@jackal.im",
		Name:         "Juliet",
		Subscription: rostermodel.SubscriptionBoth,
		Groups:       []string{"people"},
	}
	s := New()

	v, err := s.UpsertRosterItem(context.Background(), &ri)
	require.Nil(t, err)
	require.Equal(t, 1, v.Ver)
	require.True(t, ri.ID > 0)

	firstID := ri.ID
	ri.Name = "Juliet Capulet"
	v, err = s.UpsertRosterItem(context.Background(), &ri)
	require.Nil(t, err)
	require.Equal(t, 2, v.Ver)
	require.Equal(t, firstID, ri.ID)

	items, ver, err := s.FetchRosterItems(context.Background(), "ortuman")
	require.Nil(t, err)
	require.Equal(t, 1, len(items))
	require.Equal(t, "Juliet Capulet", items[0].Name)
	require.Equal(t, 2, ver.Ver)
}

func TestMemoryStorageFetchRosterItem(t *testing.T) {
	ri := rostermodel.Item{
		Username:     "ortuman",
		JID:          "juliet@jackal.im",
		Subscription: rostermodel.SubscriptionBoth,
	}
	s := New()
	_, _ = s.UpsertRosterItem(context.Background(), &ri)

	got, err := s.FetchRosterItem(context.Background(), "ortuman", "romeo@jackal.im")
	require.Nil(t, err)
	require.Nil(t, got)

	got, err = s.FetchRosterItem(context.Background(), "ortuman", "juliet@jackal.im")
	require.Nil(t, err)
	require.NotNil(t, got)
	require.Equal(t, "juliet@jackal.im", got.JID)
}

func TestMemoryStorageDeleteRosterItem(t *testing.T) {
	ri := rostermodel.Item{
		Username:     "ortuman",
		JID:          "juliet@jackal.im",
		Subscription: rostermodel.SubscriptionBoth,
	}
	s := New()
	_, _ = s.UpsertRosterItem(context.Background(), &ri)

	v, err := s.DeleteRosterItem(context.Background(), "ortuman", "juliet@jackal.im")
	require.Nil(t, err)
	require.Equal(t, 2, v.Ver)
	require.Equal(t, 2, v.DeletionVer)

	items, _, err := s.FetchRosterItems(context.Background(), "ortuman")
	require.Nil(t, err)
	require.Equal(t, 0, len(items))
}

func TestMemoryStorageRosterNotifications(t *testing.T) {
	rn := rostermodel.Notification{
		Contact:  "juliet",
		JID:      "ortuman@jackal.im",
		Presence: testSubscribePresence(t),
	}
	s := New()

	require.Nil(t, s.UpsertRosterNotification(context.Background(), &rn))

	rns, err := s.FetchRosterNotifications(context.Background(), "juliet")
	require.Nil(t, err)
	require.Equal(t, 1, len(rns))
	require.Equal(t, "ortuman@jackal.im", rns[0].JID)

	require.Nil(t, s.DeleteRosterNotification(context.Background(), "juliet", "ortuman@jackal.im"))

	rns, err = s.FetchRosterNotifications(context.Background(), "juliet")
	require.Nil(t, err)
	require.Equal(t, 0, len(rns))
}
