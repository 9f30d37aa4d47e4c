/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package router

import (
	"context"
	"testing"

	"github.com/conclave-im/conclave/model"
	"github.com/conclave-im/conclave/storage"
	"github.com/conclave-im/conclave/storage/memstorage"
	"github.com/conclave-im/conclave/stream"
	"github.com/conclave-im/conclave/xmpp"
	"github.com/conclave-im/conclave/xmpp/jid"
	"github.com/pborman/uuid"
	"github.com/stretchr/testify/require"
)

func TestRouter_EmptyConfig(t *testing.T) {
	r, _ := New(&Config{})
	require.True(t, r.IsLocalHost("localhost"))
	require.Equal(t, 1, len(r.HostNames()))
}

func TestRouter_RegisterHost(t *testing.T) {
	r, _ := New(&Config{Hosts: []string{"jackal.im"}})
	require.False(t, r.IsLocalHost("conference.jackal.im"))

	r.RegisterHost("conference.jackal.im")
	require.True(t, r.IsLocalHost("conference.jackal.im"))
	require.Equal(t, 2, len(r.HostNames()))
	require.Equal(t, "conference.jackal.im", r.DefaultHostName())
}

func TestRouter_Binding(t *testing.T) {
	r, _, shutdown := setupTest()
	defer shutdown()

	j1, _ := jid.NewWithString("ortuman@jackal.im/balcony", false)
	j2, _ := jid.NewWithString("ortuman@jackal.im/garden", false)
	j3, _ := jid.NewWithString("hamlet@jackal.im/balcony", false)
	j4, _ := jid.NewWithString("romeo@jackal.im/balcony", false)
	j5, _ := jid.NewWithString("juliet@jackal.im/garden", false)
	j6, _ := jid.NewWithString("juliet@jackal.im", false) // empty resource
	j7, _ := jid.NewWithString("juliet@jackal.im/yard", false)
	stm1 := stream.NewMockC2S(uuid.New(), j1)
	stm2 := stream.NewMockC2S(uuid.New(), j2)
	stm3 := stream.NewMockC2S(uuid.New(), j3)
	stm4 := stream.NewMockC2S(uuid.New(), j4)
	stm5 := stream.NewMockC2S(uuid.New(), j5)
	stm6 := stream.NewMockC2S(uuid.New(), j6)

	r.Bind(stm1)
	r.Bind(stm2)
	r.Bind(stm3)
	r.Bind(stm4)
	r.Bind(stm5)
	r.Bind(stm6)

	require.Equal(t, 2, len(r.UserStreams("ortuman")))
	require.Equal(t, 1, len(r.UserStreams("hamlet")))
	require.Equal(t, 1, len(r.UserStreams("romeo")))
	require.Equal(t, 1, len(r.UserStreams("juliet")))

	r.Unbind(j7)
	r.Unbind(j6)
	r.Unbind(j5)
	r.Unbind(j4)
	r.Unbind(j3)
	r.Unbind(j2)
	r.Unbind(j1)

	require.Equal(t, 0, len(r.UserStreams("ortuman")))
	require.Equal(t, 0, len(r.UserStreams("hamlet")))
	require.Equal(t, 0, len(r.UserStreams("romeo")))
	require.Equal(t, 0, len(r.UserStreams("juliet")))
}

func TestRouter_Routing(t *testing.T) {
	r, s, shutdown := setupTest()
	defer shutdown()

	j1, _ := jid.NewWithString("ortuman@jackal.im/balcony", false)
	j2, _ := jid.NewWithString("ortuman@jackal.im/garden", false)
	j3, _ := jid.NewWithString("hamlet@jackal.im/balcony", false)
	j4, _ := jid.NewWithString("hamlet@jackal.im/garden", false)
	j5, _ := jid.NewWithString("hamlet@jackal.im", false)
	j6, _ := jid.NewWithString("juliet@example.org/garden", false)
	stm1 := stream.NewMockC2S(uuid.New(), j1)
	stm2 := stream.NewMockC2S(uuid.New(), j2)
	stm3 := stream.NewMockC2S(uuid.New(), j3)

	r.Bind(stm1)
	r.Bind(stm2)

	iqID := uuid.New()
	iq := xmpp.NewIQType(iqID, xmpp.SetType)
	iq.SetFromJID(j1)
	iq.SetToJID(j6)

	// non local domain
	require.Equal(t, ErrNotLocalHost, r.Route(context.Background(), iq))

	iq.SetToJID(j3)
	require.Equal(t, ErrNotExistingAccount, r.Route(context.Background(), iq))

	s.ActivateMockedError()
	require.Equal(t, memstorage.ErrMocked, r.Route(context.Background(), iq))
	s.DeactivateMockedError()

	_ = storage.UpsertUser(context.Background(), &model.User{Username: "hamlet"})
	require.Equal(t, ErrNotAuthenticated, r.Route(context.Background(), iq))

	stm4 := stream.NewMockC2S(uuid.New(), j4)
	r.Bind(stm4)
	require.Equal(t, ErrResourceNotFound, r.Route(context.Background(), iq))

	r.Bind(stm3)
	require.Nil(t, r.Route(context.Background(), iq))
	elem := stm3.ReceiveElement()
	require.Equal(t, iqID, elem.ID())

	// broadcast stanza
	iq.SetToJID(j5)
	require.Nil(t, r.Route(context.Background(), iq))
	elem = stm3.ReceiveElement()
	require.Equal(t, iqID, elem.ID())
	elem = stm4.ReceiveElement()
	require.Equal(t, iqID, elem.ID())

	// send message to highest priority
	p1 := xmpp.NewElementName("presence")
	p1.SetFrom(j3.String())
	p1.SetTo(j3.String())
	p1.SetType(xmpp.AvailableType)
	pr1 := xmpp.NewElementName("priority")
	pr1.SetText("2")
	p1.AppendElement(pr1)
	presence1, _ := xmpp.NewPresenceFromElement(p1, j3, j3)
	stm3.SetPresence(presence1)

	p2 := xmpp.NewElementName("presence")
	p2.SetFrom(j4.String())
	p2.SetTo(j4.String())
	p2.SetType(xmpp.AvailableType)
	pr2 := xmpp.NewElementName("priority")
	pr2.SetText("1")
	p2.AppendElement(pr2)
	presence2, _ := xmpp.NewPresenceFromElement(p2, j4, j4)
	stm4.SetPresence(presence2)

	msgID := uuid.New()
	msg := xmpp.NewMessageType(msgID, xmpp.ChatType)
	msg.SetFromJID(j1)
	msg.SetToJID(j5)
	require.Nil(t, r.Route(context.Background(), msg))
	elem = stm3.ReceiveElement()
	require.Equal(t, msgID, elem.ID())
}

func TestRouter_BlockedJID(t *testing.T) {
	r, _, shutdown := setupTest()
	defer shutdown()

	j1, _ := jid.NewWithString("ortuman@jackal.im/balcony", false)
	j2, _ := jid.NewWithString("hamlet@jackal.im/balcony", false)
	j3, _ := jid.NewWithString("hamlet@jackal.im/garden", false)
	j4, _ := jid.NewWithString("juliet@jackal.im/garden", false)
	stm1 := stream.NewMockC2S(uuid.New(), j1)
	stm2 := stream.NewMockC2S(uuid.New(), j2)

	r.Bind(stm1)
	r.Bind(stm2)

	// node + domain + resource
	_ = storage.InsertBlockListItem(context.Background(), &model.BlockListItem{
		Username: "ortuman",
		JID:      "hamlet@jackal.im/garden",
	})
	require.False(t, r.IsBlockedJID(context.Background(), j2, "ortuman"))
	require.True(t, r.IsBlockedJID(context.Background(), j3, "ortuman"))

	_ = storage.DeleteBlockListItem(context.Background(), &model.BlockListItem{
		Username: "ortuman",
		JID:      "hamlet@jackal.im/garden",
	})

	// node + domain
	_ = storage.InsertBlockListItem(context.Background(), &model.BlockListItem{
		Username: "ortuman",
		JID:      "hamlet@jackal.im",
	})
	r.ReloadBlockList("ortuman")

	require.True(t, r.IsBlockedJID(context.Background(), j2, "ortuman"))
	require.True(t, r.IsBlockedJID(context.Background(), j3, "ortuman"))
	require.False(t, r.IsBlockedJID(context.Background(), j4, "ortuman"))

	_ = storage.DeleteBlockListItem(context.Background(), &model.BlockListItem{
		Username: "ortuman",
		JID:      "hamlet@jackal.im",
	})

	// domain + resource
	_ = storage.InsertBlockListItem(context.Background(), &model.BlockListItem{
		Username: "ortuman",
		JID:      "jackal.im/balcony",
	})
	r.ReloadBlockList("ortuman")

	require.True(t, r.IsBlockedJID(context.Background(), j2, "ortuman"))
	require.False(t, r.IsBlockedJID(context.Background(), j3, "ortuman"))
	require.False(t, r.IsBlockedJID(context.Background(), j4, "ortuman"))

	_ = storage.DeleteBlockListItem(context.Background(), &model.BlockListItem{
		Username: "ortuman",
		JID:      "jackal.im/balcony",
	})

	// domain
	_ = storage.InsertBlockListItem(context.Background(), &model.BlockListItem{
		Username: "ortuman",
		JID:      "jackal.im",
	})
	r.ReloadBlockList("ortuman")

	require.True(t, r.IsBlockedJID(context.Background(), j2, "ortuman"))
	require.True(t, r.IsBlockedJID(context.Background(), j3, "ortuman"))
	require.True(t, r.IsBlockedJID(context.Background(), j4, "ortuman"))

	// test blocked routing
	iq := xmpp.NewIQType(uuid.New(), xmpp.GetType)
	iq.SetFromJID(j2)
	iq.SetToJID(j1)
	require.Equal(t, ErrBlockedJID, r.Route(context.Background(), iq))
}

func setupTest() (*Router, *memstorage.Storage, func()) {
	s := memstorage.New()
	storage.Set(s)
	r, _ := New(&Config{Hosts: []string{"jackal.im"}})
	return r, s, func() {
		storage.Unset()
	}
}
