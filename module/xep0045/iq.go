/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package xep0045

import (
	"context"

	"github.com/conclave-im/conclave/log"
	mucmodel "github.com/conclave-im/conclave/model/muc"
	"github.com/conclave-im/conclave/module/xep0004"
	"github.com/conclave-im/conclave/storage"
	"github.com/conclave-im/conclave/xmpp"
	"github.com/conclave-im/conclave/xmpp/jid"
)

func (s *Muc) processIQOwner(ctx context.Context, room *mucmodel.Room, iq *xmpp.IQ) {
	sender, errStanza := s.getOwnerFromIQ(room, iq)
	if errStanza != nil {
		_ = s.router.Route(ctx, errStanza)
		return
	}

	switch {
	case isIQForInstantRoomCreate(iq):
		s.createInstantRoom(ctx, room, iq)
	case isIQForRoomDestroy(iq):
		s.destroyRoom(ctx, room, iq, sender)
	case isIQForRoomConfigRequest(iq):
		s.sendRoomConfiguration(ctx, room, iq)
	case isIQForRoomConfigSubmission(iq):
		s.processRoomConfiguration(ctx, room, iq)
	default:
		_ = s.router.Route(ctx, iq.BadRequestError())
	}
}

func (s *Muc) processIQAdmin(ctx context.Context, room *mucmodel.Room, iq *xmpp.IQ) {
	switch {
	case iq.IsGet():
		s.getOccupantList(ctx, room, iq)
	case iq.IsSet():
		s.modifyOccupantList(ctx, room, iq)
	default:
		_ = s.router.Route(ctx, iq.BadRequestError())
	}
}

func isIQForInstantRoomCreate(iq *xmpp.IQ) bool {
	if !iq.IsSet() {
		return false
	}
	x := iq.Elements().Child("query").Elements().Child("x")
	if x == nil {
		return false
	}
	if x.Namespace() != xep0004.FormNamespace || x.Type() != xep0004.Submit ||
		x.Elements().Count() != 0 {
		return false
	}
	return true
}

func (s *Muc) createInstantRoom(ctx context.Context, room *mucmodel.Room, iq *xmpp.IQ) {
	room.Unlock()
	if err := s.saveRoom(ctx, room); err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, iq.InternalServerError())
		return
	}
	_ = s.router.Route(ctx, iq.ResultIQ())
}

func isIQForRoomConfigRequest(iq *xmpp.IQ) bool {
	if !iq.IsGet() {
		return false
	}
	return iq.Elements().Child("query").Elements().Count() == 0
}

func (s *Muc) sendRoomConfiguration(ctx context.Context, room *mucmodel.Room, iq *xmpp.IQ) {
	configForm := s.getRoomConfigForm(ctx, room)
	stanza := getFormStanza(iq, configForm)
	if stanza == nil {
		_ = s.router.Route(ctx, iq.InternalServerError())
		return
	}
	_ = s.router.Route(ctx, stanza)
}

func isIQForRoomConfigSubmission(iq *xmpp.IQ) bool {
	if !iq.IsSet() {
		return false
	}
	form := iq.Elements().Child("query").Elements().Child("x")
	if form == nil || form.Namespace() != xep0004.FormNamespace || form.Type() != xep0004.Submit {
		return false
	}
	return true
}

func (s *Muc) processRoomConfiguration(ctx context.Context, room *mucmodel.Room, iq *xmpp.IQ) {
	formEl := iq.Elements().Child("query").Elements().Child("x")
	form, err := xep0004.NewFormFromElement(formEl)
	if err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, iq.BadRequestError())
		return
	}

	if ok := s.updateRoomWithForm(ctx, room, form); !ok {
		_ = s.router.Route(ctx, iq.NotAcceptableError())
		return
	}
	_ = s.router.Route(ctx, iq.ResultIQ())
}

func isIQForRoomDestroy(iq *xmpp.IQ) bool {
	if !iq.IsSet() {
		return false
	}
	return iq.Elements().Child("query").Elements().Child("destroy") != nil
}

func (s *Muc) destroyRoom(ctx context.Context, room *mucmodel.Room, iq *xmpp.IQ,
	sender *mucmodel.Occupant) {
	destroyEl := iq.Elements().Child("query").Elements().Child("destroy")
	reason := ""
	if r := destroyEl.Elements().Child("reason"); r != nil {
		reason = r.Text()
	}
	altJID := destroyEl.Attributes().Get("jid")

	for _, o := range room.AllOccupants() {
		for _, resource := range o.GetAllResources() {
			to := addResourceToBareJID(o.BareJID, resource)
			p := getRoomDestroyedStanza(o, to, reason, altJID)
			if p != nil {
				_ = s.router.Route(ctx, p)
			}
		}
		if _, err := room.Leave(o.Nickname()); err != nil {
			log.Error(err)
		}
	}

	_ = s.rooms.Del(room.RoomJID.String())
	if err := storage.DeleteRoom(ctx, room.Name); err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, iq.InternalServerError())
		return
	}
	log.Infof("muc: room %s destroyed by %s", room.RoomJID.String(), sender.BareJID.String())
	_ = s.router.Route(ctx, iq.ResultIQ())
}

func (s *Muc) getOccupantList(ctx context.Context, room *mucmodel.Room, iq *xmpp.IQ) {
	sender, errStanza := s.getOccupantFromIQ(room, iq)
	if errStanza != nil {
		_ = s.router.Route(ctx, errStanza)
		return
	}

	filter := getFilterFromIQ(iq)
	itemsEl := xmpp.NewElementNamespace("query", mucNamespaceAdmin)
	includeUserJID := room.Config.OccupantCanDiscoverRealJID(sender)

	switch filter {
	case "moderator", "participant", "visitor":
		if !sender.IsModerator() {
			_ = s.router.Route(ctx, iq.ForbiddenError())
			return
		}
		for _, o := range room.AllOccupants() {
			if string(o.Role()) != filter {
				continue
			}
			item := newItemElement(string(o.Affiliation()), string(o.Role()))
			item.SetAttribute("nick", o.Nickname())
			if includeUserJID {
				item.SetAttribute("jid", o.BareJID.String())
			}
			itemsEl.AppendElement(item)
		}
	case "owner", "admin", "member", "outcast":
		if !sender.IsAdmin() && !sender.IsOwner() {
			_ = s.router.Route(ctx, iq.ForbiddenError())
			return
		}
		for _, bareJID := range s.affiliationList(room, mucmodel.Affiliation(filter)) {
			item := newItemElement(filter, "")
			item.SetAttribute("jid", bareJID)
			itemsEl.AppendElement(item)
		}
	default:
		_ = s.router.Route(ctx, iq.BadRequestError())
		return
	}

	resEl := xmpp.NewElementName("iq").SetID(iq.ID()).SetType("result").AppendElement(itemsEl)
	res, err := xmpp.NewIQFromElement(resEl, room.RoomJID, iq.FromJID())
	if err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, iq.InternalServerError())
		return
	}
	_ = s.router.Route(ctx, res)
}

func (s *Muc) affiliationList(room *mucmodel.Room, aff mucmodel.Affiliation) []string {
	switch aff {
	case mucmodel.Owner:
		return room.Owners()
	case mucmodel.Admin:
		return room.Admins()
	case mucmodel.Member:
		return room.Members()
	case mucmodel.Outcast:
		return room.Outcasts()
	}
	return nil
}

func getFilterFromIQ(iq *xmpp.IQ) string {
	item := iq.Elements().Child("query").Elements().Child("item")
	if item == nil {
		return ""
	}
	if aff := item.Attributes().Get("affiliation"); aff != "" {
		return aff
	}
	return item.Attributes().Get("role")
}

// modifyOccupantList applies a batch of role and affiliation changes. Each
// item is accepted or rejected on its own, a rejected item never aborts the
// rest of the batch. The IQ results when at least one item was applied.
func (s *Muc) modifyOccupantList(ctx context.Context, room *mucmodel.Room, iq *xmpp.IQ) {
	sender, errStanza := s.getOccupantFromIQ(room, iq)
	if errStanza != nil {
		_ = s.router.Route(ctx, errStanza)
		return
	}

	items := iq.Elements().Child("query").Elements().Children("item")
	if len(items) == 0 {
		_ = s.router.Route(ctx, iq.BadRequestError())
		return
	}

	applied, rejected := 0, 0
	affChanges := make(map[string]mucmodel.Affiliation)
	var affOrder []string
	affReasons := make(map[string]string)
	reservedNicks := make(map[string]string)

	for _, item := range items {
		if role := item.Attributes().Get("role"); role != "" {
			if s.modifyOccupantRole(ctx, room, sender, item) {
				applied++
			} else {
				rejected++
			}
			continue
		}
		aff := item.Attributes().Get("affiliation")
		if aff == "" {
			rejected++
			continue
		}
		bareJID, err := jid.NewWithString(item.Attributes().Get("jid"), false)
		if err != nil {
			rejected++
			continue
		}
		target := bareJID.ToBareJID().String()
		if !s.senderCanAssignAffiliation(room, sender, target, mucmodel.Affiliation(aff)) {
			rejected++
			continue
		}
		affChanges[target] = mucmodel.Affiliation(aff)
		affOrder = append(affOrder, target)
		affReasons[target] = getReasonFromItem(item)

		// a member item may carry a reserved nickname, honored only when
		// the service restricts nicknames
		if nick := item.Attributes().Get("nick"); nick != "" && s.cfg.RestrictNicknames &&
			mucmodel.Affiliation(aff) == mucmodel.Member {
			reservedNicks[target] = nick
		}
	}

	failed := room.SetAffiliations(affChanges, affOrder)
	for bareJID, err := range failed {
		log.Debugf("muc: affiliation change for %s rejected: %v", bareJID, err)
		rejected++
	}
	for _, bareJID := range affOrder {
		if _, ok := failed[bareJID]; ok {
			continue
		}
		applied++
		if nick, ok := reservedNicks[bareJID]; ok {
			if err := room.SetReservedNickname(bareJID, nick); err != nil {
				log.Debugf("muc: could not reserve nickname %s for %s: %v", nick, bareJID, err)
			}
		}
		s.applyAffiliationChange(ctx, room, sender, bareJID, affChanges[bareJID],
			affReasons[bareJID])
	}

	if err := s.saveRoom(ctx, room); err != nil {
		log.Error(err)
	}
	if applied == 0 && rejected > 0 {
		_ = s.router.Route(ctx, iq.NotAllowedError())
		return
	}
	_ = s.router.Route(ctx, iq.ResultIQ())
}

func (s *Muc) senderCanAssignAffiliation(room *mucmodel.Room, sender *mucmodel.Occupant,
	targetBareJID string, aff mucmodel.Affiliation) bool {
	if sender.BareJID.String() == targetBareJID {
		return false
	}
	if !sender.IsAdmin() && !sender.IsOwner() {
		return false
	}
	cur := room.AffiliationOf(targetBareJID)
	switch aff {
	case mucmodel.Outcast:
		if cur == mucmodel.Owner || cur == mucmodel.Admin {
			return sender.IsOwner()
		}
		return true
	case mucmodel.NoAffiliation, mucmodel.Member:
		return sender.Affiliation().IsHigherThan(cur)
	case mucmodel.Admin, mucmodel.Owner:
		return sender.IsOwner()
	}
	return false
}

// applyAffiliationChange propagates an already recorded affiliation change to
// the live occupants of the affected user.
func (s *Muc) applyAffiliationChange(ctx context.Context, room *mucmodel.Room,
	sender *mucmodel.Occupant, bareJID string, aff mucmodel.Affiliation, reason string) {
	occs := room.OccupantsByUser(bareJID)
	if aff == mucmodel.Outcast {
		for _, occ := range occs {
			s.removeOccupant(ctx, room, occ, sender.Nickname(), reason, "301")
		}
		return
	}
	for _, occ := range occs {
		_ = occ.SetAffiliation(aff)
		_ = occ.SetRole(mucmodel.RoleForAffiliation(aff, room.Config.Moderated))
		s.notifyOccupantChange(ctx, room, occ, reason)
	}
	// losing membership of a members-only room means losing entry
	if aff == mucmodel.NoAffiliation && !room.Config.Open {
		for _, occ := range occs {
			s.removeOccupant(ctx, room, occ, sender.Nickname(), reason, "321")
		}
	}
}

func (s *Muc) modifyOccupantRole(ctx context.Context, room *mucmodel.Room,
	sender *mucmodel.Occupant, item xmpp.XElement) bool {
	nick := item.Attributes().Get("nick")
	occ, err := room.OccupantByNickname(nick)
	if err != nil {
		return false
	}
	newRole := mucmodel.Role(item.Attributes().Get("role"))
	if !newRole.Valid() || !sender.CanChangeRole(occ, newRole) {
		return false
	}
	reason := getReasonFromItem(item)

	if newRole == mucmodel.NoRole {
		s.removeOccupant(ctx, room, occ, sender.Nickname(), reason, "307")
		return true
	}
	if err := occ.SetRole(newRole); err != nil {
		return false
	}
	s.notifyOccupantChange(ctx, room, occ, reason)
	return true
}

// removeOccupant expels an occupant, notifying it and the
// remaining occupants with the given status code.
func (s *Muc) removeOccupant(ctx context.Context, room *mucmodel.Room, occ *mucmodel.Occupant,
	actor, reason, code string) {
	if _, err := room.Leave(occ.Nickname()); err != nil {
		log.Error(err)
		return
	}
	_ = occ.SetRole(mucmodel.NoRole)

	for _, resource := range occ.GetAllResources() {
		to := addResourceToBareJID(occ.BareJID, resource)
		p := getOccupantRemovedStanza(occ, to, actor, reason, code, true)
		if p != nil {
			_ = s.router.Route(ctx, p)
		}
	}
	for _, o := range room.AllOccupants() {
		for _, resource := range o.GetAllResources() {
			to := addResourceToBareJID(o.BareJID, resource)
			p := getOccupantRemovedStanza(occ, to, actor, reason, code, false)
			if p != nil {
				_ = s.router.Route(ctx, p)
			}
		}
	}
}

func (s *Muc) notifyOccupantChange(ctx context.Context, room *mucmodel.Room,
	occ *mucmodel.Occupant, reason string) {
	for _, o := range room.AllOccupants() {
		selfNotifying := o.BareJID.String() == occ.BareJID.String()
		includeUserJID := room.Config.OccupantCanDiscoverRealJID(o)
		for _, resource := range o.GetAllResources() {
			to := addResourceToBareJID(o.BareJID, resource)
			p := getOccupantChangeStanza(occ, to, reason, selfNotifying, includeUserJID)
			if p != nil {
				_ = s.router.Route(ctx, p)
			}
		}
	}
}

func getReasonFromItem(item xmpp.XElement) string {
	reason := item.Elements().Child("reason")
	if reason == nil {
		return ""
	}
	return reason.Text()
}

func (s *Muc) getOccupantFromIQ(room *mucmodel.Room, iq *xmpp.IQ) (*mucmodel.Occupant, xmpp.Stanza) {
	occs := room.OccupantsByUser(iq.FromJID().ToBareJID().String())
	if len(occs) == 0 {
		return nil, iq.ForbiddenError()
	}
	return occs[0], nil
}

func (s *Muc) getOwnerFromIQ(room *mucmodel.Room, iq *xmpp.IQ) (*mucmodel.Occupant, xmpp.Stanza) {
	occ, errStanza := s.getOccupantFromIQ(room, iq)
	if errStanza != nil {
		return nil, errStanza
	}
	if !occ.IsOwner() {
		return nil, iq.ForbiddenError()
	}
	return occ, nil
}
