/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package stream

import (
	"context"

	"github.com/conclave-im/conclave/xmpp"
	"github.com/conclave-im/conclave/xmpp/jid"
)

// InStream represents a generic incoming stream.
type InStream interface {
	ID() string
	Disconnect(ctx context.Context, err error)
}

// InOutStream represents a generic incoming/outgoing stream.
type InOutStream interface {
	InStream
	SendElement(ctx context.Context, elem xmpp.XElement)
}

// C2S represents a client-to-server XMPP stream.
type C2S interface {
	InOutStream

	Context() context.Context

	SetValue(key, value interface{})
	Value(key interface{}) interface{}

	Username() string
	Domain() string
	Resource() string

	JID() *jid.JID

	Presence() *xmpp.Presence
}
