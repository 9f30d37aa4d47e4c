/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package memstorage

import (
	"context"
	"testing"

	"github.com/conclave-im/conclave/xmpp"
	"github.com/conclave-im/conclave/xmpp/jid"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorageClose(t *testing.T) {
	s := New()
	require.NotNil(t, s.User())
	require.NotNil(t, s.Roster())
	require.NotNil(t, s.Group())
	require.NotNil(t, s.Room())
	require.NotNil(t, s.BlockList())
	require.NotNil(t, s.PubSub())
	require.Nil(t, s.Close(context.Background()))
}

func testSubscribePresence(t *testing.T) *xmpp.Presence {
	t.Helper()
	from, err := jid.NewWithString("ortuman@jackal.im", true)
	require.Nil(t, err)
	to, err := jid.NewWithString("juliet@jackal.im", true)
	require.Nil(t, err)
	return xmpp.NewPresence(from, to, xmpp.SubscribeType)
}
