/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package xep0045

import (
	"context"
	"strconv"
	"time"

	"github.com/conclave-im/conclave/log"
	mucmodel "github.com/conclave-im/conclave/model/muc"
	"github.com/conclave-im/conclave/xmpp"
	"github.com/conclave-im/conclave/xmpp/jid"
	"github.com/google/uuid"
)

func (s *Muc) enterRoom(ctx context.Context, room *mucmodel.Room, presence *xmpp.Presence) {
	if !presence.ToJID().IsFull() {
		_ = s.router.Route(ctx, presence.JidMalformedError())
		return
	}
	if room == nil {
		s.createRoom(ctx, presence)
		return
	}
	s.joinExistingRoom(ctx, room, presence)
}

// createRoom creates a locked room on first entry. The creator joins as
// owner and has to submit the configuration form, or request an instant
// room, before anyone else may enter.
func (s *Muc) createRoom(ctx context.Context, presence *xmpp.Presence) {
	occJID := presence.ToJID()
	room := mucmodel.NewRoom(occJID.Node(), occJID.ToBareJID(), s.GetDefaultRoomConfig())

	occ, err := mucmodel.NewOccupant(occJID, presence.FromJID().ToBareJID())
	if err != nil {
		_ = s.router.Route(ctx, presence.JidMalformedError())
		return
	}
	if err := room.SetAffiliation(occ.BareJID.String(), mucmodel.Owner); err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, presence.InternalServerError())
		return
	}
	if err := room.Join(occ, getPasswordFromPresence(presence), true); err != nil {
		_ = s.router.Route(ctx, s.joinErrorStanza(presence, err))
		return
	}
	occ.AddResource(presence.FromJID().Resource())
	occ.SetPresence(presence)

	if err := s.saveRoom(ctx, room); err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, presence.InternalServerError())
		return
	}
	log.Infof("muc: new room created, room JID is %s", room.RoomJID.String())

	_ = s.router.Route(ctx, getAckStanza(occJID, presence.FromJID()))
}

func (s *Muc) joinExistingRoom(ctx context.Context, room *mucmodel.Room, presence *xmpp.Presence) {
	userJID := presence.FromJID()
	userBareJID := userJID.ToBareJID().String()
	occJID := presence.ToJID()

	// a user already in the room attaches an extra resource under its nickname
	if prev, err := room.OccupantByNickname(occJID.Resource()); err == nil &&
		prev.BareJID.String() == userBareJID {
		prev.AddResource(userJID.Resource())
		prev.SetPresence(presence)
		s.sendJoinAck(ctx, room, prev, presence)
		return
	}

	// a user already in the room cannot enter again under a different nickname
	if room.UserIsInRoom(userBareJID) {
		_ = s.router.Route(ctx, presence.NotAcceptableError())
		return
	}

	// service administrators enter every room as owners
	if s.cfg.IsSysadmin(userBareJID) && room.AffiliationOf(userBareJID) != mucmodel.Owner {
		if err := room.SetAffiliation(userBareJID, mucmodel.Owner); err != nil {
			log.Error(err)
		}
	}

	occ, err := mucmodel.NewOccupant(occJID, userJID.ToBareJID())
	if err != nil {
		_ = s.router.Route(ctx, presence.JidMalformedError())
		return
	}
	if err := room.Join(occ, getPasswordFromPresence(presence), false); err != nil {
		_ = s.router.Route(ctx, s.joinErrorStanza(presence, err))
		return
	}
	occ.AddResource(userJID.Resource())
	occ.SetPresence(presence)

	if err := s.saveRoom(ctx, room); err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, presence.InternalServerError())
		return
	}

	s.notifyRoomEnter(ctx, room, occ)
	s.sendJoinAck(ctx, room, occ, presence)
}

func (s *Muc) joinErrorStanza(presence *xmpp.Presence, err error) xmpp.Stanza {
	switch err {
	case mucmodel.ErrRoomLocked:
		return presence.ItemNotFoundError()
	case mucmodel.ErrForbidden:
		return presence.ForbiddenError()
	case mucmodel.ErrRegistrationRequired:
		return presence.RegistrationRequiredError()
	case mucmodel.ErrNotAuthorized:
		return presence.NotAuthorizedError()
	case mucmodel.ErrConflict:
		return presence.ConflictError()
	case mucmodel.ErrNotAllowed:
		return presence.ServiceUnavailableError()
	default:
		log.Error(err)
		return presence.InternalServerError()
	}
}

// notifyRoomEnter announces the new occupant to everybody already present.
func (s *Muc) notifyRoomEnter(ctx context.Context, room *mucmodel.Room, newOcc *mucmodel.Occupant) {
	for _, o := range room.AllOccupants() {
		if o.BareJID.String() == newOcc.BareJID.String() {
			continue
		}
		for _, resource := range o.GetAllResources() {
			to := addResourceToBareJID(o.BareJID, resource)
			p := getOccupantStatusStanza(newOcc, to, false,
				room.Config.OccupantCanDiscoverRealJID(o))
			_ = s.router.Route(ctx, p)
		}
	}
}

// sendJoinAck delivers the room roster, self presence, discussion history and
// subject to the resource that just entered.
func (s *Muc) sendJoinAck(ctx context.Context, room *mucmodel.Room, occ *mucmodel.Occupant,
	presence *xmpp.Presence) {
	to := presence.FromJID()

	for _, o := range room.AllOccupants() {
		if o.BareJID.String() == occ.BareJID.String() {
			continue
		}
		p := getOccupantStatusStanza(o, to, false, room.Config.OccupantCanDiscoverRealJID(occ))
		_ = s.router.Route(ctx, p)
	}

	p := getOccupantSelfPresenceStanza(occ, to, room.Config.NonAnonymous(), presence.ID())
	_ = s.router.Route(ctx, p)

	s.sendRoomHistory(ctx, room, presence, to)

	if subject := room.Subject(); len(subject) > 0 {
		_ = s.router.Route(ctx, getRoomSubjectStanza(subject, room.RoomJID, to))
	}
}

func (s *Muc) sendRoomHistory(ctx context.Context, room *mucmodel.Room, presence *xmpp.Presence,
	to *jid.JID) {
	maxStanzas, since := historyLimitsFromPresence(presence)
	for _, el := range room.History().Messages(maxStanzas, since) {
		from, err := jid.NewWithString(el.Attributes().Get("from"), true)
		if err != nil {
			continue
		}
		msg, err := xmpp.NewMessageFromElement(el, from, to)
		if err != nil {
			log.Error(err)
			continue
		}
		_ = s.router.Route(ctx, msg)
	}
}

func historyLimitsFromPresence(presence *xmpp.Presence) (maxStanzas int, since time.Time) {
	maxStanzas = -1
	x := presence.Elements().ChildNamespace("x", mucNamespace)
	if x == nil {
		return
	}
	h := x.Elements().Child("history")
	if h == nil {
		return
	}
	if v := h.Attributes().Get("maxstanzas"); len(v) > 0 {
		if n, err := strconv.Atoi(v); err == nil {
			maxStanzas = n
		}
	}
	if v := h.Attributes().Get("since"); len(v) > 0 {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			since = t
		}
	}
	return
}

func (s *Muc) exitRoom(ctx context.Context, room *mucmodel.Room, presence *xmpp.Presence) {
	if room == nil {
		_ = s.router.Route(ctx, presence.ItemNotFoundError())
		return
	}
	occ, err := room.OccupantByNickname(presence.ToJID().Resource())
	if err != nil || occ.BareJID.String() != presence.FromJID().ToBareJID().String() {
		_ = s.router.Route(ctx, presence.ForbiddenError())
		return
	}

	occ.DeleteResource(presence.FromJID().Resource())
	if len(occ.GetAllResources()) > 0 {
		// other resources are still joined, just drop this one
		_ = s.router.Route(ctx, getOccupantExitStanza(occ, presence.FromJID(), true))
		return
	}

	empty, err := room.Leave(occ.Nickname())
	if err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, presence.InternalServerError())
		return
	}
	_ = occ.SetRole(mucmodel.NoRole)

	_ = s.router.Route(ctx, getOccupantExitStanza(occ, presence.FromJID(), true))
	for _, o := range room.AllOccupants() {
		for _, resource := range o.GetAllResources() {
			to := addResourceToBareJID(o.BareJID, resource)
			_ = s.router.Route(ctx, getOccupantExitStanza(occ, to, false))
		}
	}

	if empty && !room.Config.Persistent {
		if err := s.dropRoom(ctx, room); err != nil {
			log.Error(err)
		}
		return
	}
	if err := s.saveRoom(ctx, room); err != nil {
		log.Error(err)
	}
}

func (s *Muc) changeNickname(ctx context.Context, room *mucmodel.Room, presence *xmpp.Presence) {
	if room == nil {
		_ = s.router.Route(ctx, presence.ItemNotFoundError())
		return
	}
	occs := room.OccupantsByUser(presence.FromJID().ToBareJID().String())
	if len(occs) == 0 {
		_ = s.router.Route(ctx, presence.ForbiddenError())
		return
	}
	oldJID := occs[0].OccupantJID

	occ, err := room.ChangeNickname(oldJID.Resource(), presence.ToJID().Resource())
	switch err {
	case nil:
	case mucmodel.ErrConflict:
		_ = s.router.Route(ctx, presence.ConflictError())
		return
	case mucmodel.ErrNotFound:
		_ = s.router.Route(ctx, presence.ItemNotFoundError())
		return
	default:
		log.Error(err)
		_ = s.router.Route(ctx, presence.InternalServerError())
		return
	}
	occ.SetPresence(presence)

	if err := s.saveRoom(ctx, room); err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, presence.InternalServerError())
		return
	}

	for _, o := range room.AllOccupants() {
		selfNotifying := o.BareJID.String() == occ.BareJID.String()
		includeUserJID := room.Config.OccupantCanDiscoverRealJID(o)
		for _, resource := range o.GetAllResources() {
			to := addResourceToBareJID(o.BareJID, resource)
			_ = s.router.Route(ctx, getOccupantUnavailableStanza(occ, oldJID, to,
				selfNotifying, includeUserJID))
			_ = s.router.Route(ctx, getOccupantStatusStanza(occ, to, selfNotifying,
				includeUserJID))
		}
	}
}

func (s *Muc) changeStatus(ctx context.Context, room *mucmodel.Room, presence *xmpp.Presence) {
	if room == nil {
		_ = s.router.Route(ctx, presence.ItemNotFoundError())
		return
	}
	occ, err := room.OccupantByNickname(presence.ToJID().Resource())
	if err != nil || occ.BareJID.String() != presence.FromJID().ToBareJID().String() {
		_ = s.router.Route(ctx, presence.ForbiddenError())
		return
	}
	occ.SetPresence(presence)

	for _, o := range room.AllOccupants() {
		if o.BareJID.String() == occ.BareJID.String() {
			continue
		}
		xEl := newOccupantAffiliationRoleElement(occ, room.Config.OccupantCanDiscoverRealJID(o))
		for _, resource := range o.GetAllResources() {
			to := addResourceToBareJID(o.BareJID, resource)
			el := xmpp.NewElementFromElement(presence)
			el.AppendElement(xEl)
			el.SetID(uuid.New().String())
			p, err := xmpp.NewPresenceFromElement(el, occ.OccupantJID, to)
			if err != nil {
				log.Error(err)
				continue
			}
			_ = s.router.Route(ctx, p)
		}
	}
}
