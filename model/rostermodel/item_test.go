/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package rostermodel

import (
	"testing"

	"github.com/conclave-im/conclave/xmpp"
	"github.com/stretchr/testify/require"
)

func TestRosterItem_NewItem(t *testing.T) {
	elem := xmpp.NewElementName("item")
	_, err := NewItem(elem)
	require.NotNil(t, err) // missing jid

	elem.SetAttribute("jid", "dave@jackal.im")
	elem.SetAttribute("subscription", SubscriptionTo)
	elem.SetAttribute("ask", "subscribe")
	gr := xmpp.NewElementName("group")
	gr.SetText("Buddies")
	elem.AppendElement(gr)

	ri, err := NewItem(elem)
	require.Nil(t, err)
	require.Equal(t, "dave@jackal.im", ri.JID)
	require.Equal(t, SubscriptionTo, ri.Subscription)
	require.True(t, ri.Ask)
	require.Equal(t, []string{"Buddies"}, ri.Groups)

	elem.SetAttribute("subscription", "mutual")
	_, err = NewItem(elem)
	require.NotNil(t, err)
}

func TestRosterItem_Element(t *testing.T) {
	ri := &Item{
		Username:     "carol",
		JID:          "dave@jackal.im",
		Subscription: SubscriptionBoth,
		Groups:       []string{"Buddies"},
		SharedGroups: []string{"Engineering"},
	}
	elem := ri.Element()
	require.Equal(t, "item", elem.Name())
	require.Equal(t, SubscriptionBoth, elem.Attributes().Get("subscription"))

	groups := elem.Elements().Children("group")
	require.Len(t, groups, 2)
	require.Equal(t, "Buddies", groups[0].Text())
	require.Equal(t, "Engineering", groups[1].Text())
}

func TestRosterItem_SharedGroups(t *testing.T) {
	ri := &Item{Username: "carol", JID: "dave@jackal.im", Subscription: SubscriptionBoth}
	require.False(t, ri.IsShared())

	ri.AddSharedGroup("Engineering")
	ri.AddSharedGroup("Engineering")
	ri.AddInvisibleSharedGroup("Management")
	require.Len(t, ri.SharedGroups, 1)
	require.True(t, ri.IsShared())
	require.True(t, ri.IsOnlyShared())
	require.Zero(t, ri.ID)

	// personal state promotes the item out of shared-only
	ri.Groups = []string{"Buddies"}
	require.False(t, ri.IsOnlyShared())

	ri.RemoveSharedGroup("Engineering")
	ri.RemoveSharedGroup("Management")
	require.False(t, ri.IsShared())
}
