/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package memstorage

import (
	"context"
	"testing"
	"time"

	pubsubmodel "github.com/conclave-im/conclave/model/pubsub"
	"github.com/conclave-im/conclave/xmpp"
	"github.com/stretchr/testify/require"
)

// stored node options must round trip through the serialized options
// map, which rejects empty access and publish models
func testNodeOptions() pubsubmodel.Options {
	return pubsubmodel.Options{
		AccessModel:           pubsubmodel.Open,
		PublishModel:          pubsubmodel.Publishers,
		SendLastPublishedItem: pubsubmodel.Never,
	}
}

func TestMemoryStorageUpsertNode(t *testing.T) {
	node := pubsubmodel.Node{Host: "ortuman@jackal.im", Name: "princely_musings", Options: testNodeOptions()}
	s := New()
	require.Nil(t, s.UpsertNode(context.Background(), &node))

	got, err := s.FetchNode(context.Background(), "ortuman@jackal.im", "princely_musings")
	require.Nil(t, err)
	require.NotNil(t, got)
	require.Equal(t, "princely_musings", got.Name)
}

func TestMemoryStorageFetchNodes(t *testing.T) {
	s := New()
	_ = s.UpsertNode(context.Background(), &pubsubmodel.Node{Host: "ortuman@jackal.im", Name: "princely_musings", Options: testNodeOptions()})
	_ = s.UpsertNode(context.Background(), &pubsubmodel.Node{Host: "ortuman@jackal.im", Name: "bookmarks", Options: testNodeOptions()})
	_ = s.UpsertNode(context.Background(), &pubsubmodel.Node{Host: "juliet@jackal.im", Name: "bookmarks", Options: testNodeOptions()})

	nodes, err := s.FetchNodes(context.Background(), "ortuman@jackal.im")
	require.Nil(t, err)
	require.Equal(t, 2, len(nodes))
}

func TestMemoryStorageDeleteNode(t *testing.T) {
	s := New()
	_ = s.UpsertNode(context.Background(), &pubsubmodel.Node{Host: "ortuman@jackal.im", Name: "princely_musings", Options: testNodeOptions()})
	_ = s.UpsertNodeItem(context.Background(), &pubsubmodel.Item{ID: "1"}, "ortuman@jackal.im", "princely_musings", 10)

	require.Nil(t, s.DeleteNode(context.Background(), "ortuman@jackal.im", "princely_musings"))

	node, err := s.FetchNode(context.Background(), "ortuman@jackal.im", "princely_musings")
	require.Nil(t, err)
	require.Nil(t, node)

	items, err := s.FetchNodeItems(context.Background(), "ortuman@jackal.im", "princely_musings")
	require.Nil(t, err)
	require.Equal(t, 0, len(items))
}

func TestMemoryStorageNodeItems(t *testing.T) {
	s := New()
	host, name := "ortuman@jackal.im", "princely_musings"

	payload := xmpp.NewElementName("entry")
	_ = s.UpsertNodeItem(context.Background(), &pubsubmodel.Item{ID: "1", Publisher: "ortuman@jackal.im", Payload: payload, Stamp: time.Now()}, host, name, 2)
	_ = s.UpsertNodeItem(context.Background(), &pubsubmodel.Item{ID: "2", Publisher: "ortuman@jackal.im"}, host, name, 2)
	_ = s.UpsertNodeItem(context.Background(), &pubsubmodel.Item{ID: "3", Publisher: "ortuman@jackal.im"}, host, name, 2)

	items, err := s.FetchNodeItems(context.Background(), host, name)
	require.Nil(t, err)
	require.Equal(t, 2, len(items)) // oldest item got evicted
	require.Equal(t, "2", items[0].ID)
	require.Equal(t, "3", items[1].ID)

	last, err := s.FetchNodeLastItem(context.Background(), host, name)
	require.Nil(t, err)
	require.NotNil(t, last)
	require.Equal(t, "3", last.ID)

	items, err = s.FetchNodeItemsWithIDs(context.Background(), host, name, []string{"3"})
	require.Nil(t, err)
	require.Equal(t, 1, len(items))

	require.Nil(t, s.DeleteNodeItem(context.Background(), host, name, "2"))
	items, err = s.FetchNodeItems(context.Background(), host, name)
	require.Nil(t, err)
	require.Equal(t, 1, len(items))
}

func TestMemoryStorageNodeAffiliations(t *testing.T) {
	s := New()
	host, name := "ortuman@jackal.im", "princely_musings"

	aff := pubsubmodel.Affiliation{JID: "ortuman@jackal.im", Affiliation: pubsubmodel.Owner}
	require.Nil(t, s.UpsertNodeAffiliation(context.Background(), &aff, host, name))

	got, err := s.FetchNodeAffiliation(context.Background(), host, name, "ortuman@jackal.im")
	require.Nil(t, err)
	require.NotNil(t, got)
	require.Equal(t, pubsubmodel.Owner, got.Affiliation)

	affs, err := s.FetchNodeAffiliations(context.Background(), host, name)
	require.Nil(t, err)
	require.Equal(t, 1, len(affs))

	require.Nil(t, s.DeleteNodeAffiliation(context.Background(), "ortuman@jackal.im", host, name))
	affs, err = s.FetchNodeAffiliations(context.Background(), host, name)
	require.Nil(t, err)
	require.Equal(t, 0, len(affs))
}

func TestMemoryStorageNodeSubscriptions(t *testing.T) {
	s := New()
	host, name := "ortuman@jackal.im", "princely_musings"

	_ = s.UpsertNode(context.Background(), &pubsubmodel.Node{Host: host, Name: name, Options: testNodeOptions()})

	sub := pubsubmodel.Subscription{SubID: "s1", JID: "juliet@jackal.im", Subscription: pubsubmodel.Subscribed}
	require.Nil(t, s.UpsertNodeSubscription(context.Background(), &sub, host, name))

	subs, err := s.FetchNodeSubscriptions(context.Background(), host, name)
	require.Nil(t, err)
	require.Equal(t, 1, len(subs))

	nodes, err := s.FetchSubscribedNodes(context.Background(), "juliet@jackal.im")
	require.Nil(t, err)
	require.Equal(t, 1, len(nodes))
	require.Equal(t, name, nodes[0].Name)

	require.Nil(t, s.DeleteNodeSubscription(context.Background(), "juliet@jackal.im", host, name))
	subs, err = s.FetchNodeSubscriptions(context.Background(), host, name)
	require.Nil(t, err)
	require.Equal(t, 0, len(subs))
}
