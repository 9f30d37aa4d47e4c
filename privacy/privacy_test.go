/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package privacy

import (
	"testing"

	"github.com/conclave-im/conclave/xmpp"
	"github.com/conclave-im/conclave/xmpp/jid"
	"github.com/stretchr/testify/require"
)

func TestPrivacy_NoListAllows(t *testing.T) {
	m := NewManager()
	require.False(t, m.ShouldBlockPacket("carol", testPresence(t, "carol@jackal.im/desktop", "dave@jackal.im")))
}

func TestPrivacy_ActiveOverDefault(t *testing.T) {
	m := NewManager()
	denyJID, _ := jid.NewWithString("dave@jackal.im", true)

	m.UpsertList("carol", &List{Name: "deny-dave", Items: []Item{
		{JID: denyJID, Allow: false, Order: 1},
	}})
	m.UpsertList("carol", &List{Name: "allow-all", Items: nil})

	require.Nil(t, m.SetDefaultList("carol", "deny-dave"))
	p := testPresence(t, "carol@jackal.im/desktop", "dave@jackal.im")
	require.True(t, m.ShouldBlockPacket("carol", p))

	require.Nil(t, m.SetActiveList("carol", "allow-all"))
	require.False(t, m.ShouldBlockPacket("carol", p))

	m.UnsetActiveList("carol")
	require.True(t, m.ShouldBlockPacket("carol", p))
}

func TestPrivacy_OrderDecides(t *testing.T) {
	m := NewManager()
	allowJID, _ := jid.NewWithString("dave@jackal.im/hall", true)
	denyJID, _ := jid.NewWithString("dave@jackal.im", true)

	m.UpsertList("carol", &List{Name: "l", Items: []Item{
		{JID: denyJID, Allow: false, Order: 2},
		{JID: allowJID, Allow: true, Order: 1},
	}})
	require.Nil(t, m.SetDefaultList("carol", "l"))

	require.False(t, m.ShouldBlockPacket("carol", testPresence(t, "carol@jackal.im/desktop", "dave@jackal.im/hall")))
	require.True(t, m.ShouldBlockPacket("carol", testPresence(t, "carol@jackal.im/desktop", "dave@jackal.im/office")))
}

func TestPrivacy_InboundPeer(t *testing.T) {
	m := NewManager()
	denyJID, _ := jid.NewWithString("dave@jackal.im", true)

	m.UpsertList("carol", &List{Name: "l", Items: []Item{
		{JID: denyJID, Allow: false, Order: 1},
	}})
	require.Nil(t, m.SetDefaultList("carol", "l"))

	// inbound packet from dave, peer is the origin
	require.True(t, m.ShouldBlockPacket("carol", testPresence(t, "dave@jackal.im/office", "carol@jackal.im")))
	// inbound from somebody else passes
	require.False(t, m.ShouldBlockPacket("carol", testPresence(t, "erin@jackal.im/office", "carol@jackal.im")))
}

func TestPrivacy_RemoveList(t *testing.T) {
	m := NewManager()
	denyJID, _ := jid.NewWithString("dave@jackal.im", true)

	m.UpsertList("carol", &List{Name: "l", Items: []Item{
		{JID: denyJID, Allow: false, Order: 1},
	}})
	require.Equal(t, ErrListNotFound, m.SetActiveList("carol", "nope"))
	require.Nil(t, m.SetDefaultList("carol", "l"))

	m.RemoveList("carol", "l")
	require.False(t, m.ShouldBlockPacket("carol", testPresence(t, "carol@jackal.im/desktop", "dave@jackal.im")))
}

func testPresence(t *testing.T, from, to string) *xmpp.Presence {
	t.Helper()
	fromJID, err := jid.NewWithString(from, true)
	require.Nil(t, err)
	toJID, err := jid.NewWithString(to, true)
	require.Nil(t, err)
	p := xmpp.NewPresence(fromJID, toJID, xmpp.AvailableType)
	return p
}
