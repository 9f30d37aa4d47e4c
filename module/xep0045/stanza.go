/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package xep0045

import (
	"github.com/conclave-im/conclave/log"
	mucmodel "github.com/conclave-im/conclave/model/muc"
	"github.com/conclave-im/conclave/module/xep0004"
	"github.com/conclave-im/conclave/xmpp"
	"github.com/conclave-im/conclave/xmpp/jid"
	"github.com/google/uuid"
)

func isPresenceToEnterRoom(presence *xmpp.Presence) bool {
	if presence.Type() != "" {
		return false
	}
	x := presence.Elements().ChildNamespace("x", mucNamespace)
	if x == nil || len(x.Text()) != 0 || x.Elements().Count() > 2 {
		return false
	}
	return true
}

func isChangingStatus(presence *xmpp.Presence) bool {
	show := presence.Elements().Child("show")
	status := presence.Elements().Child("status")
	return show != nil || status != nil
}

func isInvite(message *xmpp.Message) bool {
	x := message.Elements().ChildNamespace("x", mucNamespaceUser)
	return x != nil && x.Elements().Child("invite") != nil
}

func isDeclineInvitation(message *xmpp.Message) bool {
	x := message.Elements().ChildNamespace("x", mucNamespaceUser)
	return x != nil && x.Elements().Child("decline") != nil
}

func getPasswordFromPresence(presence *xmpp.Presence) string {
	x := presence.Elements().ChildNamespace("x", mucNamespace)
	if x == nil {
		return ""
	}
	pwd := x.Elements().Child("password")
	if pwd == nil {
		return ""
	}
	return pwd.Text()
}

func getInvitedUserJID(message *xmpp.Message) *jid.JID {
	invJIDStr := message.Elements().Child("x").Elements().Child("invite").Attributes().Get("to")
	invJID, _ := jid.NewWithString(invJIDStr, true)
	return invJID
}

func getInvitationStanza(room *mucmodel.Room, inviteFrom, inviteTo *jid.JID,
	message *xmpp.Message) xmpp.Stanza {
	inviteEl := xmpp.NewElementName("invite").SetAttribute("from", inviteFrom.String())
	reasonEl := message.Elements().Child("x").Elements().Child("invite").Elements().Child("reason")
	if reasonEl != nil {
		inviteEl.AppendElement(reasonEl)
	}
	xEl := xmpp.NewElementNamespace("x", mucNamespaceUser).AppendElement(inviteEl)
	msgEl := xmpp.NewElementName("message").AppendElement(xEl).SetID(message.ID())
	msg, err := xmpp.NewMessageFromElement(msgEl, room.RoomJID, inviteTo)
	if err != nil {
		log.Error(err)
		return nil
	}
	return msg
}

func getDeclineStanza(room *mucmodel.Room, message *xmpp.Message) xmpp.Stanza {
	toStr := message.Elements().Child("x").Elements().Child("decline").Attributes().Get("to")
	to, err := jid.NewWithString(toStr, true)
	if err != nil {
		return nil
	}
	declineEl := xmpp.NewElementName("decline").SetAttribute("from",
		message.FromJID().ToBareJID().String())
	reasonEl := message.Elements().Child("x").Elements().Child("decline").Elements().Child("reason")
	if reasonEl != nil {
		declineEl.AppendElement(reasonEl)
	}
	xEl := xmpp.NewElementNamespace("x", mucNamespaceUser).AppendElement(declineEl)
	msgEl := xmpp.NewElementName("message").AppendElement(xEl).SetID(message.ID())
	msg, err := xmpp.NewMessageFromElement(msgEl, room.RoomJID, to)
	if err != nil {
		log.Error(err)
		return nil
	}
	return msg
}

func getOccupantStatusStanza(o *mucmodel.Occupant, to *jid.JID,
	selfNotifying, includeUserJID bool) xmpp.Stanza {
	x := newOccupantAffiliationRoleElement(o, includeUserJID)
	if selfNotifying {
		x.AppendElement(newStatusElement("110"))
	}
	el := xmpp.NewElementName("presence").AppendElement(x).SetID(uuid.New().String())

	p, err := xmpp.NewPresenceFromElement(el, o.OccupantJID, to)
	if err != nil {
		log.Error(err)
		return nil
	}
	return p
}

func getOccupantSelfPresenceStanza(o *mucmodel.Occupant, to *jid.JID, nonAnonymous bool,
	id string) xmpp.Stanza {
	x := newOccupantAffiliationRoleElement(o, false).AppendElement(newStatusElement("110"))
	if nonAnonymous {
		x.AppendElement(newStatusElement("100"))
	}
	el := xmpp.NewElementName("presence").AppendElement(x).SetID(id)
	p, err := xmpp.NewPresenceFromElement(el, o.OccupantJID, to)
	if err != nil {
		log.Error(err)
		return nil
	}
	return p
}

// getOccupantUnavailableStanza notifies an occupant's nickname change, carrying
// the new nick and status code 303.
func getOccupantUnavailableStanza(o *mucmodel.Occupant, from, to *jid.JID,
	selfNotifying, includeUserJID bool) xmpp.Stanza {
	x := newOccupantAffiliationRoleElement(o, includeUserJID)

	itemEl := xmpp.NewElementFromElement(x.Elements().Child("item"))
	itemEl.SetAttribute("nick", o.OccupantJID.Resource())
	x.RemoveElements("item")
	x.AppendElement(itemEl)

	x.AppendElement(newStatusElement("303"))
	if selfNotifying {
		x.AppendElement(newStatusElement("110"))
	}

	el := xmpp.NewElementName("presence").AppendElement(x).SetID(uuid.New().String())
	el.SetType("unavailable")
	p, err := xmpp.NewPresenceFromElement(el, from, to)
	if err != nil {
		log.Error(err)
		return nil
	}
	return p
}

func getOccupantExitStanza(o *mucmodel.Occupant, to *jid.JID, selfNotifying bool) xmpp.Stanza {
	x := newOccupantAffiliationRoleElement(o, false)
	if selfNotifying {
		x.AppendElement(newStatusElement("110"))
	}
	el := xmpp.NewElementName("presence").AppendElement(x).SetID(uuid.New().String())
	el.SetType("unavailable")
	p, err := xmpp.NewPresenceFromElement(el, o.OccupantJID, to)
	if err != nil {
		log.Error(err)
		return nil
	}
	return p
}

func getOccupantRemovedStanza(o *mucmodel.Occupant, to *jid.JID, actor, reason, code string,
	selfNotifying bool) xmpp.Stanza {
	item := newItemElement(string(o.Affiliation()), "none")
	if actor != "" {
		item.AppendElement(xmpp.NewElementName("actor").SetAttribute("nick", actor))
	}
	if reason != "" {
		item.AppendElement(xmpp.NewElementName("reason").SetText(reason))
	}
	x := xmpp.NewElementNamespace("x", mucNamespaceUser).AppendElement(item)
	x.AppendElement(newStatusElement(code))
	if selfNotifying {
		x.AppendElement(newStatusElement("110"))
	}
	el := xmpp.NewElementName("presence").AppendElement(x).SetID(uuid.New().String())
	el.SetType("unavailable")
	p, err := xmpp.NewPresenceFromElement(el, o.OccupantJID, to)
	if err != nil {
		log.Error(err)
		return nil
	}
	return p
}

func getOccupantChangeStanza(o *mucmodel.Occupant, to *jid.JID, reason string,
	selfNotifying, includeUserJID bool) xmpp.Stanza {
	x := newOccupantAffiliationRoleElement(o, includeUserJID)
	if reason != "" {
		item := xmpp.NewElementFromElement(x.Elements().Child("item"))
		item.AppendElement(xmpp.NewElementName("reason").SetText(reason))
		x.RemoveElements("item")
		x.AppendElement(item)
	}
	if selfNotifying {
		x.AppendElement(newStatusElement("110"))
	}
	el := xmpp.NewElementName("presence").AppendElement(x).SetID(uuid.New().String())
	p, err := xmpp.NewPresenceFromElement(el, o.OccupantJID, to)
	if err != nil {
		log.Error(err)
		return nil
	}
	return p
}

func getRoomDestroyedStanza(o *mucmodel.Occupant, to *jid.JID, reason, altJID string) xmpp.Stanza {
	item := newItemElement("none", "none")
	destroy := xmpp.NewElementName("destroy")
	if altJID != "" {
		destroy.SetAttribute("jid", altJID)
	}
	if reason != "" {
		destroy.AppendElement(xmpp.NewElementName("reason").SetText(reason))
	}
	x := xmpp.NewElementNamespace("x", mucNamespaceUser)
	x.AppendElement(item)
	x.AppendElement(destroy)

	el := xmpp.NewElementName("presence").AppendElement(x).SetID(uuid.New().String())
	el.SetType("unavailable")
	p, err := xmpp.NewPresenceFromElement(el, o.OccupantJID, to)
	if err != nil {
		log.Error(err)
		return nil
	}
	return p
}

func getRoomSubjectStanza(subject string, from, to *jid.JID) xmpp.Stanza {
	s := xmpp.NewElementName("subject").SetText(subject)
	m := xmpp.NewElementName("message").SetType("groupchat").SetID(uuid.New().String())
	m.AppendElement(s)
	message, err := xmpp.NewMessageFromElement(m, from, to)
	if err != nil {
		log.Error(err)
		return nil
	}
	return message
}

// getAckStanza is the self presence the room creator receives, carrying the
// assigned nickname (210) along with owner affiliation and the locked room
// creation flag (201).
func getAckStanza(from, to *jid.JID) xmpp.Stanza {
	e := xmpp.NewElementNamespace("x", mucNamespaceUser)
	e.AppendElement(newItemElement("owner", "moderator"))
	e.AppendElement(newStatusElement("110"))
	e.AppendElement(newStatusElement("201"))
	e.AppendElement(newStatusElement("210"))

	presence := xmpp.NewElementName("presence").AppendElement(e)
	ack, err := xmpp.NewPresenceFromElement(presence, from, to)
	if err != nil {
		log.Error(err)
		return nil
	}
	return ack
}

func getFormStanza(iq *xmpp.IQ, form *xep0004.DataForm) xmpp.Stanza {
	query := xmpp.NewElementNamespace("query", mucNamespaceOwner)
	query.AppendElement(form.Element())

	e := xmpp.NewElementName("iq").SetID(iq.ID()).SetType("result").AppendElement(query)
	stanza, err := xmpp.NewIQFromElement(e, iq.ToJID(), iq.FromJID())
	if err != nil {
		log.Error(err)
		return nil
	}
	return stanza
}

func newItemElement(affiliation, role string) *xmpp.Element {
	i := xmpp.NewElementName("item")
	if affiliation == "" {
		affiliation = "none"
	}
	if role == "" {
		role = "none"
	}
	i.SetAttribute("affiliation", affiliation)
	i.SetAttribute("role", role)
	return i
}

func newStatusElement(code string) *xmpp.Element {
	s := xmpp.NewElementName("status")
	s.SetAttribute("code", code)
	return s
}

func newOccupantAffiliationRoleElement(o *mucmodel.Occupant, includeUserJID bool) *xmpp.Element {
	item := newItemElement(string(o.Affiliation()), string(o.Role()))
	if includeUserJID {
		item.SetAttribute("jid", o.BareJID.String())
	}
	e := xmpp.NewElementNamespace("x", mucNamespaceUser)
	e.AppendElement(item)
	return e
}

func addResourceToBareJID(bareJID *jid.JID, resource string) *jid.JID {
	res, _ := jid.NewWithString(bareJID.String()+"/"+resource, true)
	return res
}
