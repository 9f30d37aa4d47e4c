/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package mucmodel

import (
	"fmt"
	"testing"
	"time"

	"github.com/conclave-im/conclave/xmpp"
	"github.com/stretchr/testify/require"
)

func TestModelHistory_Append(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Append(testHistoryMessage(t, fmt.Sprintf("m%d", i)), "alice@jackal.im/balcony", "lobby@conference.jackal.im/alice", false)
	}
	require.Equal(t, 3, h.Len())

	msgs := h.Messages(-1, time.Time{})
	require.Len(t, msgs, 3)
	require.Equal(t, "m2", msgs[0].Elements().Child("body").Text())
	require.Equal(t, "m4", msgs[2].Elements().Child("body").Text())

	// session binding is stripped, sender is the room nickname JID
	require.Equal(t, "lobby@conference.jackal.im/alice", msgs[0].From())
	require.Equal(t, 0, len(msgs[0].To()))

	msgs = h.Messages(1, time.Time{})
	require.Len(t, msgs, 1)
	require.Equal(t, "m4", msgs[0].Elements().Child("body").Text())
}

func TestModelHistory_Disabled(t *testing.T) {
	h := NewHistory(0)
	h.Append(testHistoryMessage(t, "hi"), "alice@jackal.im/balcony", "lobby@conference.jackal.im/alice", false)
	require.Equal(t, 0, h.Len())
}

func TestModelHistory_AnonymityRewrite(t *testing.T) {
	h := NewHistory(10)
	h.Append(testHistoryMessage(t, "hi"), "alice@jackal.im/balcony", "lobby@conference.jackal.im/alice", false)
	h.Append(testHistoryMessage(t, "there"), "bob@jackal.im/garden", "lobby@conference.jackal.im/bob", false)

	for _, m := range h.Messages(-1, time.Time{}) {
		delay := m.Elements().ChildNamespace("delay", "urn:xmpp:delay")
		require.NotNil(t, delay)
		require.Equal(t, "lobby@conference.jackal.im/"+delayNickOf(m), delay.Attributes().Get("from"))
	}

	h.RewriteFrom(true)
	msgs := h.Messages(-1, time.Time{})
	delay := msgs[0].Elements().ChildNamespace("delay", "urn:xmpp:delay")
	require.Equal(t, "alice@jackal.im/balcony", delay.Attributes().Get("from"))
	delay = msgs[1].Elements().ChildNamespace("delay", "urn:xmpp:delay")
	require.Equal(t, "bob@jackal.im/garden", delay.Attributes().Get("from"))

	h.RewriteFrom(false)
	msgs = h.Messages(-1, time.Time{})
	delay = msgs[0].Elements().ChildNamespace("delay", "urn:xmpp:delay")
	require.Equal(t, "lobby@conference.jackal.im/alice", delay.Attributes().Get("from"))
}

func delayNickOf(m *xmpp.Element) string {
	switch m.Elements().Child("body").Text() {
	case "hi":
		return "alice"
	default:
		return "bob"
	}
}

func testHistoryMessage(t *testing.T, body string) *xmpp.Element {
	t.Helper()
	m := xmpp.NewElementName("message")
	m.SetType(xmpp.GroupChatType)
	m.SetFrom("ignored@jackal.im/session")
	m.SetTo("lobby@conference.jackal.im")
	b := xmpp.NewElementName("body")
	b.SetText(body)
	m.AppendElement(b)
	return m
}
