/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package xep0045

import (
	"context"

	"github.com/conclave-im/conclave/log"
	mucmodel "github.com/conclave-im/conclave/model/muc"
	"github.com/conclave-im/conclave/xmpp"
	"github.com/google/uuid"
)

func (s *Muc) messageEveryone(ctx context.Context, room *mucmodel.Room, message *xmpp.Message) {
	sender := s.getSenderOccupant(ctx, room, message)
	if sender == nil {
		return
	}
	if room.Config.Moderated && (sender.IsVisitor() || sender.HasNoRole()) {
		_ = s.router.Route(ctx, message.ForbiddenError())
		return
	}

	room.History().Append(message, message.FromJID().String(),
		sender.OccupantJID.String(), room.Config.NonAnonymous())

	msgEl := roomMessageElement(message, message.ID(), false)
	for _, o := range room.AllOccupants() {
		s.messageOccupant(ctx, o, sender, msgEl)
	}
}

func (s *Muc) changeSubject(ctx context.Context, room *mucmodel.Room, message *xmpp.Message) {
	sender := s.getSenderOccupant(ctx, room, message)
	if sender == nil {
		return
	}
	if !room.Config.AllowSubjChange && !sender.IsModerator() {
		_ = s.router.Route(ctx, message.ForbiddenError())
		return
	}
	subject := message.Elements().Child("subject").Text()
	room.SetSubject(subject)

	if err := s.saveRoom(ctx, room); err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, message.InternalServerError())
		return
	}

	for _, o := range room.AllOccupants() {
		for _, resource := range o.GetAllResources() {
			to := addResourceToBareJID(o.BareJID, resource)
			_ = s.router.Route(ctx, getRoomSubjectStanza(subject, sender.OccupantJID, to))
		}
	}
}

func (s *Muc) sendPM(ctx context.Context, room *mucmodel.Room, message *xmpp.Message) {
	sender := s.getSenderOccupant(ctx, room, message)
	if sender == nil {
		return
	}
	if !room.Config.OccupantCanSendPM(sender) {
		_ = s.router.Route(ctx, message.NotAllowedError())
		return
	}
	target, err := room.OccupantByNickname(message.ToJID().Resource())
	if err != nil {
		_ = s.router.Route(ctx, message.ItemNotFoundError())
		return
	}

	s.messageOccupant(ctx, target, sender, roomMessageElement(message, message.ID(), true))
}

func (s *Muc) inviteUser(ctx context.Context, room *mucmodel.Room, message *xmpp.Message) {
	sender := s.getSenderOccupant(ctx, room, message)
	if sender == nil {
		return
	}
	if !room.Config.AllowInvites && !sender.IsModerator() {
		_ = s.router.Route(ctx, message.ForbiddenError())
		return
	}
	invJID := getInvitedUserJID(message)
	if invJID == nil {
		_ = s.router.Route(ctx, message.JidMalformedError())
		return
	}

	room.InviteUser(invJID.ToBareJID().String())
	if err := s.saveRoom(ctx, room); err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, message.InternalServerError())
		return
	}

	inviteFrom := sender.OccupantJID
	if room.Config.NonAnonymous() {
		inviteFrom = sender.BareJID
	}
	inv := getInvitationStanza(room, inviteFrom, invJID, message)
	if inv != nil {
		_ = s.router.Route(ctx, inv)
	}
}

func (s *Muc) declineInvitation(ctx context.Context, room *mucmodel.Room, message *xmpp.Message) {
	userBareJID := message.FromJID().ToBareJID().String()
	if !room.UserIsInvited(userBareJID) {
		_ = s.router.Route(ctx, message.ForbiddenError())
		return
	}
	room.DeleteInvite(userBareJID)
	if err := s.saveRoom(ctx, room); err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, message.InternalServerError())
		return
	}

	decline := getDeclineStanza(room, message)
	if decline == nil {
		_ = s.router.Route(ctx, message.BadRequestError())
		return
	}
	_ = s.router.Route(ctx, decline)
}

func (s *Muc) getSenderOccupant(ctx context.Context, room *mucmodel.Room,
	message *xmpp.Message) *mucmodel.Occupant {
	occs := room.OccupantsByUser(message.FromJID().ToBareJID().String())
	if len(occs) == 0 {
		_ = s.router.Route(ctx, message.NotAcceptableError())
		return nil
	}
	return occs[0]
}

// roomMessageElement strips session addressing from a received message and
// retags it for room delivery.
func roomMessageElement(message *xmpp.Message, id string, private bool) *xmpp.Element {
	msgEl := xmpp.NewElementFromElement(message)
	msgEl.RemoveAttribute("from")
	msgEl.RemoveAttribute("to")
	if id != "" {
		msgEl.SetID(id)
	} else {
		msgEl.SetID(uuid.New().String())
	}
	if private {
		msgEl.SetType("chat")
		msgEl.AppendElement(xmpp.NewElementNamespace("x", mucNamespaceUser))
	} else {
		msgEl.SetType("groupchat")
	}
	return msgEl
}

func (s *Muc) messageOccupant(ctx context.Context, occ, sender *mucmodel.Occupant,
	msgEl *xmpp.Element) {
	for _, resource := range occ.GetAllResources() {
		to := addResourceToBareJID(occ.BareJID, resource)
		msg, err := xmpp.NewMessageFromElement(msgEl, sender.OccupantJID, to)
		if err != nil {
			log.Error(err)
			continue
		}
		_ = s.router.Route(ctx, msg)
	}
}
