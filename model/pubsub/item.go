/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package pubsubmodel

import (
	"bytes"
	"encoding/gob"
	"time"

	"github.com/conclave-im/conclave/xmpp"
)

// Item represents a unit of content published to a leaf node,
// queued for durable storage.
type Item struct {
	ID        string
	Node      string
	Publisher string
	Payload   xmpp.XElement
	Stamp     time.Time
}

// FromBytes deserializes an Item entity from its binary representation.
func (i *Item) FromBytes(buf *bytes.Buffer) error {
	dec := gob.NewDecoder(buf)
	if err := dec.Decode(&i.ID); err != nil {
		return err
	}
	if err := dec.Decode(&i.Node); err != nil {
		return err
	}
	if err := dec.Decode(&i.Publisher); err != nil {
		return err
	}
	if err := dec.Decode(&i.Stamp); err != nil {
		return err
	}
	var hasPayload bool
	if err := dec.Decode(&hasPayload); err != nil {
		return err
	}
	if hasPayload {
		elem := xmpp.NewElementFromGob(dec)
		i.Payload = elem
	}
	return nil
}

// ToBytes converts an Item entity to its binary representation.
func (i *Item) ToBytes(buf *bytes.Buffer) error {
	enc := gob.NewEncoder(buf)
	if err := enc.Encode(i.ID); err != nil {
		return err
	}
	if err := enc.Encode(i.Node); err != nil {
		return err
	}
	if err := enc.Encode(i.Publisher); err != nil {
		return err
	}
	if err := enc.Encode(i.Stamp); err != nil {
		return err
	}
	hasPayload := i.Payload != nil
	if err := enc.Encode(hasPayload); err != nil {
		return err
	}
	if i.Payload != nil {
		el := xmpp.NewElementFromElement(i.Payload)
		el.ToGob(enc)
	}
	return nil
}
