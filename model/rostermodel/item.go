/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package rostermodel

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/conclave-im/conclave/xmpp"
	"github.com/conclave-im/conclave/xmpp/jid"
)

// roster item subscription values
const (
	SubscriptionNone   = "none"
	SubscriptionFrom   = "from"
	SubscriptionTo     = "to"
	SubscriptionBoth   = "both"
	SubscriptionRemove = "remove"
)

// Item represents a roster item entity. An item synthesized purely from
// shared group membership keeps ID == 0 and never reaches durable storage
// until the user promotes it with an explicit action.
type Item struct {
	ID                    int64
	Username              string
	JID                   string
	Name                  string
	Subscription          string
	Ask                   bool
	Ver                   int
	Groups                []string
	SharedGroups          []string
	InvisibleSharedGroups []string
}

// NewItem parses an XML element returning a derived roster item instance.
func NewItem(elem xmpp.XElement) (*Item, error) {
	if elem.Name() != "item" {
		return nil, fmt.Errorf("invalid item element name: %s", elem.Name())
	}
	ri := &Item{}
	if jidStr := elem.Attributes().Get("jid"); len(jidStr) > 0 {
		j, err := jid.NewWithString(jidStr, false)
		if err != nil {
			return nil, err
		}
		ri.JID = j.String()
	} else {
		return nil, errors.New("item 'jid' attribute is required")
	}
	ri.Name = elem.Attributes().Get("name")

	subscription := elem.Attributes().Get("subscription")
	if len(subscription) > 0 {
		switch subscription {
		case SubscriptionBoth, SubscriptionFrom, SubscriptionTo, SubscriptionNone, SubscriptionRemove:
			break
		default:
			return nil, fmt.Errorf("unrecognized 'subscription' enum type: %s", subscription)
		}
		ri.Subscription = subscription
	}
	ask := elem.Attributes().Get("ask")
	if len(ask) > 0 {
		if ask != "subscribe" {
			return nil, fmt.Errorf("unrecognized 'ask' enum type: %s", ask)
		}
		ri.Ask = true
	}
	groups := elem.Elements().Children("group")
	for _, group := range groups {
		if group.Attributes().Count() > 0 {
			return nil, errors.New("group element must not contain any attribute")
		}
		if len(group.Text()) > 0 {
			ri.Groups = append(ri.Groups, group.Text())
		}
	}
	return ri, nil
}

// Element returns a roster item XML element representation. Visible shared
// groups are rendered alongside the personal ones; invisible shared groups
// only contribute to subscription inference and are never displayed.
func (ri *Item) Element() xmpp.XElement {
	riJID := ri.ContactJID()
	item := xmpp.NewElementName("item")
	item.SetAttribute("jid", riJID.ToBareJID().String())
	if len(ri.Name) > 0 {
		item.SetAttribute("name", ri.Name)
	}
	if len(ri.Subscription) > 0 {
		item.SetAttribute("subscription", ri.Subscription)
	}
	if ri.Ask {
		item.SetAttribute("ask", "subscribe")
	}
	for _, group := range ri.Groups {
		gr := xmpp.NewElementName("group")
		gr.SetText(group)
		item.AppendElement(gr)
	}
	for _, group := range ri.SharedGroups {
		gr := xmpp.NewElementName("group")
		gr.SetText(group)
		item.AppendElement(gr)
	}
	return item
}

// ContactJID parses and returns roster item contact JID.
func (ri *Item) ContactJID() *jid.JID {
	j, _ := jid.NewWithString(ri.JID, true)
	return j
}

// IsShared tells whether the item is projected from at least one shared group.
func (ri *Item) IsShared() bool {
	return len(ri.SharedGroups) > 0 || len(ri.InvisibleSharedGroups) > 0
}

// IsOnlyShared tells whether the item exists solely because of shared group
// membership, with no personal state attached.
func (ri *Item) IsOnlyShared() bool {
	return ri.IsShared() && len(ri.Groups) == 0 && !ri.Ask
}

// AddSharedGroup attaches a visible shared group to the item.
func (ri *Item) AddSharedGroup(group string) {
	for _, g := range ri.SharedGroups {
		if g == group {
			return
		}
	}
	ri.SharedGroups = append(ri.SharedGroups, group)
}

// AddInvisibleSharedGroup attaches a non-displayed shared group to the item.
func (ri *Item) AddInvisibleSharedGroup(group string) {
	for _, g := range ri.InvisibleSharedGroups {
		if g == group {
			return
		}
	}
	ri.InvisibleSharedGroups = append(ri.InvisibleSharedGroups, group)
}

// RemoveSharedGroup detaches a shared group, visible or not, from the item.
func (ri *Item) RemoveSharedGroup(group string) {
	ri.SharedGroups = removeGroup(ri.SharedGroups, group)
	ri.InvisibleSharedGroups = removeGroup(ri.InvisibleSharedGroups, group)
}

func removeGroup(groups []string, group string) []string {
	res := groups[:0]
	for _, g := range groups {
		if g != group {
			res = append(res, g)
		}
	}
	if len(res) == 0 {
		return nil
	}
	return res
}

// FromBytes deserializes an Item entity from its gob binary representation.
func (ri *Item) FromBytes(buf *bytes.Buffer) error {
	dec := gob.NewDecoder(buf)
	if err := dec.Decode(&ri.ID); err != nil {
		return err
	}
	if err := dec.Decode(&ri.Username); err != nil {
		return err
	}
	if err := dec.Decode(&ri.JID); err != nil {
		return err
	}
	if err := dec.Decode(&ri.Name); err != nil {
		return err
	}
	if err := dec.Decode(&ri.Subscription); err != nil {
		return err
	}
	if err := dec.Decode(&ri.Ask); err != nil {
		return err
	}
	if err := dec.Decode(&ri.Ver); err != nil {
		return err
	}
	if err := dec.Decode(&ri.Groups); err != nil {
		return err
	}
	if err := dec.Decode(&ri.SharedGroups); err != nil {
		return err
	}
	return dec.Decode(&ri.InvisibleSharedGroups)
}

// ToBytes converts an Item entity to its gob binary representation.
func (ri *Item) ToBytes(buf *bytes.Buffer) error {
	enc := gob.NewEncoder(buf)
	if err := enc.Encode(&ri.ID); err != nil {
		return err
	}
	if err := enc.Encode(&ri.Username); err != nil {
		return err
	}
	if err := enc.Encode(&ri.JID); err != nil {
		return err
	}
	if err := enc.Encode(&ri.Name); err != nil {
		return err
	}
	if err := enc.Encode(&ri.Subscription); err != nil {
		return err
	}
	if err := enc.Encode(&ri.Ask); err != nil {
		return err
	}
	if err := enc.Encode(&ri.Ver); err != nil {
		return err
	}
	if err := enc.Encode(&ri.Groups); err != nil {
		return err
	}
	if err := enc.Encode(&ri.SharedGroups); err != nil {
		return err
	}
	return enc.Encode(&ri.InvisibleSharedGroups)
}
