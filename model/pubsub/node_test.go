/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package pubsubmodel

import (
	"bytes"
	"testing"
	"time"

	"github.com/conclave-im/conclave/xmpp"
	"github.com/stretchr/testify/require"
)

func TestPubSubNode_Hierarchy(t *testing.T) {
	root := &Node{Host: "jackal.im", Collection: true}
	require.True(t, root.IsRoot())

	leaf := &Node{Host: "jackal.im", Name: "princely_musings/weather", Parent: "princely_musings"}
	require.False(t, leaf.IsRoot())
	require.True(t, leaf.IsChildOf("princely_musings"))
	require.Equal(t, "weather", leaf.LocalName())
}

func TestPubSubNode_Serialization(t *testing.T) {
	n := &Node{
		Host:   "ortuman@jackal.im",
		Name:   "princely_musings",
		Parent: "",
		Options: Options{
			Title:                 "Princely Musings",
			PersistItems:          true,
			MaxItems:              10,
			AccessModel:           Presence,
			PublishModel:          Publishers,
			SendLastPublishedItem: OnSubAndPresence,
			NotificationType:      "headline",
		},
	}
	buf := new(bytes.Buffer)
	require.Nil(t, n.ToBytes(buf))

	n2 := &Node{}
	require.Nil(t, n2.FromBytes(buf))
	require.Equal(t, n.Host, n2.Host)
	require.Equal(t, n.Name, n2.Name)
	require.Equal(t, Presence, n2.Options.AccessModel)
	require.Equal(t, Publishers, n2.Options.PublishModel)
	require.Equal(t, int64(10), n2.Options.MaxItems)
}

func TestPubSubItem_Serialization(t *testing.T) {
	payload := xmpp.NewElementNamespace("entry", "http://www.w3.org/2005/Atom")
	i := &Item{
		ID:        "item-1",
		Node:      "princely_musings",
		Publisher: "ortuman@jackal.im",
		Payload:   payload,
		Stamp:     time.Now().UTC(),
	}
	buf := new(bytes.Buffer)
	require.Nil(t, i.ToBytes(buf))

	i2 := &Item{}
	require.Nil(t, i2.FromBytes(buf))
	require.Equal(t, i.ID, i2.ID)
	require.Equal(t, i.Node, i2.Node)
	require.NotNil(t, i2.Payload)
	require.Equal(t, "entry", i2.Payload.Name())
	require.True(t, i.Stamp.Equal(i2.Stamp))
}

func TestPubSubOptions_EmptyModelsRejected(t *testing.T) {
	var opt Options

	m, err := opt.Map()
	require.Nil(t, err)

	// a zero value options map misses the access and publish models and
	// must not deserialize into a usable node configuration
	_, err = NewOptionsFromMap(m)
	require.NotNil(t, err)
}
