/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package roster

import (
	"context"
	"testing"

	"github.com/conclave-im/conclave/event"
	"github.com/conclave-im/conclave/group"
	"github.com/conclave-im/conclave/model/groupmodel"
	"github.com/conclave-im/conclave/model/rostermodel"
	"github.com/conclave-im/conclave/router"
	"github.com/conclave-im/conclave/storage"
	"github.com/conclave-im/conclave/storage/memstorage"
	"github.com/conclave-im/conclave/stream"
	"github.com/conclave-im/conclave/xmpp"
	"github.com/conclave-im/conclave/xmpp/jid"
	"github.com/pborman/uuid"
	"github.com/stretchr/testify/require"
)

func TestRoster_SharedGroupMerge(t *testing.T) {
	r, mgr, bus, shutdown := setupRosterTest()
	defer shutdown()
	ctx := context.Background()

	_, _ = storage.UpsertRosterItem(ctx, &rostermodel.Item{
		Username:     "carol",
		JID:          "dave@jackal.im",
		Subscription: rostermodel.SubscriptionNone,
		Groups:       []string{"Buddies"},
	})
	_, err := mgr.CreateGroup(ctx, "engineering", "Engineering", groupmodel.VisibleToMembers, nil)
	require.Nil(t, err)
	require.Nil(t, mgr.AddUser(ctx, "engineering", "carol@jackal.im"))
	require.Nil(t, mgr.AddUser(ctx, "engineering", "dave@jackal.im"))
	require.Nil(t, mgr.AddUser(ctx, "engineering", "erin@jackal.im"))

	ros := New(&Config{}, r, mgr, nil, bus)
	defer func() { _ = ros.Shutdown() }()

	ur, err := ros.getRoster(ctx, "carol")
	require.Nil(t, err)

	// stored personal item sharing a group with the owner becomes mutual
	dave := ur.item("dave@jackal.im")
	require.NotNil(t, dave)
	require.NotEqual(t, int64(0), dave.ID)
	require.Equal(t, rostermodel.SubscriptionBoth, dave.Subscription)
	require.Equal(t, []string{"Engineering"}, dave.SharedGroups)
	require.Equal(t, []string{"Buddies"}, dave.Groups)

	// shared only item is implied, mutual and not persisted
	erin := ur.item("erin@jackal.im")
	require.NotNil(t, erin)
	require.Equal(t, int64(0), erin.ID)
	require.Equal(t, rostermodel.SubscriptionBoth, erin.Subscription)
	require.True(t, erin.IsOnlyShared())

	stored, err := storage.FetchRosterItem(ctx, "carol", "erin@jackal.im")
	require.Nil(t, err)
	require.Nil(t, stored)
}

func TestRoster_OneDirectionalVisibility(t *testing.T) {
	r, mgr, bus, shutdown := setupRosterTest()
	defer shutdown()
	ctx := context.Background()

	// carol's own group is hidden from non-members while gina's group is
	// projected to everyone, so visibility is not reciprocal
	_, err := mgr.CreateGroup(ctx, "staff", "Staff", groupmodel.VisibleToMembers, nil)
	require.Nil(t, err)
	_, err = mgr.CreateGroup(ctx, "support", "Support", groupmodel.VisibleToEverybody, nil)
	require.Nil(t, err)
	require.Nil(t, mgr.AddUser(ctx, "staff", "carol@jackal.im"))
	require.Nil(t, mgr.AddUser(ctx, "support", "gina@jackal.im"))

	ros := New(&Config{}, r, mgr, nil, bus)
	defer func() { _ = ros.Shutdown() }()

	ur, err := ros.getRoster(ctx, "carol")
	require.Nil(t, err)

	gina := ur.item("gina@jackal.im")
	require.NotNil(t, gina)
	require.NotEqual(t, rostermodel.SubscriptionBoth, gina.Subscription)
	require.Equal(t, rostermodel.SubscriptionTo, gina.Subscription)

	// gina cannot see carol at all
	ur, err = ros.getRoster(ctx, "gina")
	require.Nil(t, err)
	require.Nil(t, ur.item("carol@jackal.im"))
}

func TestRoster_GroupEventWidensSubscription(t *testing.T) {
	r, mgr, bus, shutdown := setupRosterTest()
	defer shutdown()
	ctx := context.Background()

	_, _ = storage.UpsertRosterItem(ctx, &rostermodel.Item{
		Username:     "carol",
		JID:          "dave@jackal.im",
		Subscription: rostermodel.SubscriptionNone,
	})
	_, err := mgr.CreateGroup(ctx, "engineering", "Engineering", groupmodel.VisibleToMembers, nil)
	require.Nil(t, err)
	require.Nil(t, mgr.AddUser(ctx, "engineering", "carol@jackal.im"))

	ros := New(&Config{}, r, mgr, nil, bus)
	defer func() { _ = ros.Shutdown() }()

	stm := bindRosterStream(r, "carol", "balcony")

	ur, err := ros.getRoster(ctx, "carol")
	require.Nil(t, err)
	require.Equal(t, rostermodel.SubscriptionNone, ur.item("dave@jackal.im").Subscription)

	// no subscription handshake: group computation alone widens the item
	require.Nil(t, mgr.AddUser(ctx, "engineering", "dave@jackal.im"))

	ur, err = ros.getRoster(ctx, "carol")
	require.Nil(t, err)
	dave := ur.item("dave@jackal.im")
	require.Equal(t, rostermodel.SubscriptionBoth, dave.Subscription)
	require.Equal(t, []string{"Engineering"}, dave.SharedGroups)

	push := stm.ReceiveElement()
	require.Equal(t, "iq", push.Name())
	q := push.Elements().ChildNamespace("query", rosterNamespace)
	require.NotNil(t, q)
	itm := q.Elements().Child("item")
	require.Equal(t, "dave@jackal.im", itm.Attributes().Get("jid"))
	require.Equal(t, "both", itm.Attributes().Get("subscription"))

	// stored subscription state is untouched: widening is derived, not persisted
	stored, _ := storage.FetchRosterItem(ctx, "carol", "dave@jackal.im")
	require.Equal(t, rostermodel.SubscriptionNone, stored.Subscription)
}

func TestRoster_GroupUserDeletedDropsSharedOnlyItem(t *testing.T) {
	r, mgr, bus, shutdown := setupRosterTest()
	defer shutdown()
	ctx := context.Background()

	_, err := mgr.CreateGroup(ctx, "engineering", "Engineering", groupmodel.VisibleToMembers, nil)
	require.Nil(t, err)
	require.Nil(t, mgr.AddUser(ctx, "engineering", "carol@jackal.im"))
	require.Nil(t, mgr.AddUser(ctx, "engineering", "erin@jackal.im"))

	ros := New(&Config{}, r, mgr, nil, bus)
	defer func() { _ = ros.Shutdown() }()

	stm := bindRosterStream(r, "carol", "balcony")

	ur, err := ros.getRoster(ctx, "carol")
	require.Nil(t, err)
	require.NotNil(t, ur.item("erin@jackal.im"))

	require.Nil(t, mgr.DeleteUser(ctx, "engineering", "erin@jackal.im"))

	require.Nil(t, ur.item("erin@jackal.im"))

	push := stm.ReceiveElement()
	require.Equal(t, "iq", push.Name())
	itm := push.Elements().ChildNamespace("query", rosterNamespace).Elements().Child("item")
	require.Equal(t, "remove", itm.Attributes().Get("subscription"))
}

func TestRoster_GroupRenamedRetagsItems(t *testing.T) {
	r, mgr, bus, shutdown := setupRosterTest()
	defer shutdown()
	ctx := context.Background()

	_, err := mgr.CreateGroup(ctx, "engineering", "Engineering", groupmodel.VisibleToMembers, nil)
	require.Nil(t, err)
	require.Nil(t, mgr.AddUser(ctx, "engineering", "carol@jackal.im"))
	require.Nil(t, mgr.AddUser(ctx, "engineering", "erin@jackal.im"))

	ros := New(&Config{}, r, mgr, nil, bus)
	defer func() { _ = ros.Shutdown() }()

	stm := bindRosterStream(r, "carol", "balcony")

	ur, err := ros.getRoster(ctx, "carol")
	require.Nil(t, err)
	require.Equal(t, []string{"Engineering"}, ur.item("erin@jackal.im").SharedGroups)

	require.Nil(t, mgr.RenameGroup(ctx, "engineering", "Eng Team"))

	require.Equal(t, []string{"Eng Team"}, ur.item("erin@jackal.im").SharedGroups)

	push := stm.ReceiveElement()
	itm := push.Elements().ChildNamespace("query", rosterNamespace).Elements().Child("item")
	require.Equal(t, "Eng Team", itm.Elements().Child("group").Text())
}

func TestRoster_WidenSubscription(t *testing.T) {
	require.Equal(t, rostermodel.SubscriptionBoth,
		widenSubscription(rostermodel.SubscriptionTo, rostermodel.SubscriptionFrom))
	require.Equal(t, rostermodel.SubscriptionBoth,
		widenSubscription(rostermodel.SubscriptionFrom, rostermodel.SubscriptionTo))
	require.Equal(t, rostermodel.SubscriptionBoth,
		widenSubscription(rostermodel.SubscriptionBoth, rostermodel.SubscriptionNone))
	require.Equal(t, rostermodel.SubscriptionTo,
		widenSubscription(rostermodel.SubscriptionNone, rostermodel.SubscriptionTo))
	require.Equal(t, rostermodel.SubscriptionFrom,
		widenSubscription(rostermodel.SubscriptionFrom, rostermodel.SubscriptionNone))
}

func setupRosterTest() (*router.Router, *group.Manager, *event.Bus, func()) {
	s := memstorage.New()
	storage.Set(s)
	r, _ := router.New(&router.Config{Hosts: []string{"jackal.im"}})
	bus := event.NewBus()
	mgr := group.NewManager(bus)
	return r, mgr, bus, func() {
		storage.Unset()
	}
}

func bindRosterStream(r *router.Router, username, resource string) *stream.MockC2S {
	userJID, _ := jid.New(username, "jackal.im", resource, true)
	stm := stream.NewMockC2S(uuid.New(), userJID)
	stm.SetPresence(xmpp.NewPresence(userJID.ToBareJID(), userJID, xmpp.AvailableType))
	stm.SetValue(rosterRequestedCtxKey, true)
	r.Bind(stm)
	return stm
}
