/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package xep0060

import (
	"context"

	"github.com/conclave-im/conclave/log"
	pubsubmodel "github.com/conclave-im/conclave/model/pubsub"
	"github.com/conclave-im/conclave/storage"
	"github.com/conclave-im/conclave/xmpp"
	"github.com/conclave-im/conclave/xmpp/jid"
	"github.com/google/uuid"
)

func (s *PubSub) subscribe(ctx context.Context, iq *xmpp.IQ, subscribe xmpp.XElement) {
	node := s.fetchNode(ctx, iq, subscribe)
	if node == nil {
		return
	}
	fromBareJID := iq.FromJID().ToBareJID().String()
	subJID := subscribe.Attributes().Get("jid")
	if subJID != fromBareJID {
		_ = s.router.Route(ctx, iq.BadRequestError())
		return
	}
	aff, err := s.fetchAffiliation(ctx, node, fromBareJID)
	if err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, iq.InternalServerError())
		return
	}
	owner, err := s.nodeOwner(ctx, node)
	if err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, iq.InternalServerError())
		return
	}
	ac := &accessChecker{
		owner:               owner,
		accessModel:         node.Options.AccessModel,
		rosterAllowedGroups: node.Options.RosterGroupsAllowed,
		affiliation:         aff,
	}
	if err := ac.checkAccess(ctx, fromBareJID); err != nil {
		switch err {
		case errOutcastMember:
			_ = s.router.Route(ctx, iq.ForbiddenError())
		case errPresenceSubscriptionRequired, errNotInRosterGroup, errNotOnWhiteList:
			_ = s.router.Route(ctx, iq.NotAuthorizedError())
		default:
			log.Error(err)
			_ = s.router.Route(ctx, iq.InternalServerError())
		}
		return
	}
	sub := &pubsubmodel.Subscription{
		SubID:        uuid.New().String(),
		JID:          fromBareJID,
		Subscription: pubsubmodel.Subscribed,
	}
	if err := storage.UpsertNodeSubscription(ctx, sub, node.Host, node.Name); err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, iq.InternalServerError())
		return
	}
	subscriptionEl := xmpp.NewElementName("subscription").
		SetAttribute("node", node.Name).
		SetAttribute("jid", fromBareJID).
		SetAttribute("subid", sub.SubID).
		SetAttribute("subscription", sub.Subscription)

	pubSubEl := xmpp.NewElementNamespace("pubsub", pubsubNamespace)
	pubSubEl.AppendElement(subscriptionEl)

	result := iq.ResultIQ()
	result.AppendElement(pubSubEl)
	_ = s.router.Route(ctx, result)

	if node.Options.NotifySub {
		s.notifyOwners(ctx, node, subscriptionEl)
	}
	if node.Options.SendLastPublishedItem != pubsubmodel.Never {
		s.sendLastPublishedItem(ctx, node, iq.FromJID())
	}
}

func (s *PubSub) unsubscribe(ctx context.Context, iq *xmpp.IQ, unsubscribe xmpp.XElement) {
	node := s.fetchNode(ctx, iq, unsubscribe)
	if node == nil {
		return
	}
	fromBareJID := iq.FromJID().ToBareJID().String()
	subJID := unsubscribe.Attributes().Get("jid")
	if subJID != fromBareJID {
		_ = s.router.Route(ctx, iq.BadRequestError())
		return
	}
	subs, err := storage.FetchNodeSubscriptions(ctx, node.Host, node.Name)
	if err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, iq.InternalServerError())
		return
	}
	var found bool
	for _, sub := range subs {
		if sub.JID == fromBareJID {
			found = true
			break
		}
	}
	if !found {
		_ = s.router.Route(ctx, iq.NotAcceptableError())
		return
	}
	if err := storage.DeleteNodeSubscription(ctx, fromBareJID, node.Host, node.Name); err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, iq.InternalServerError())
		return
	}
	_ = s.router.Route(ctx, iq.ResultIQ())
}

func (s *PubSub) notifyOwners(ctx context.Context, node *pubsubmodel.Node, notification xmpp.XElement) {
	affiliations, err := storage.FetchNodeAffiliations(ctx, node.Host, node.Name)
	if err != nil {
		log.Error(err)
		return
	}
	fromJID, _ := jid.NewWithString(s.cfg.Host, true)
	for _, aff := range affiliations {
		if aff.Affiliation != pubsubmodel.Owner {
			continue
		}
		toJID, err := jid.NewWithString(aff.JID, true)
		if err != nil {
			continue
		}
		s.routeEvent(ctx, fromJID, toJID, node, notification)
	}
}

// sendLastPublishedItem delivers the newest item of a node to a freshly
// subscribed entity. A recent publish may still be queued for storage,
// so the in-memory last item wins over the stored one.
func (s *PubSub) sendLastPublishedItem(ctx context.Context, node *pubsubmodel.Node, to *jid.JID) {
	item, err := s.lastItems.Get(s.lastItemKey(node))
	if err != nil {
		stored, err := storage.FetchNodeLastItem(ctx, node.Host, node.Name)
		if err != nil {
			log.Error(err)
			return
		}
		if stored == nil {
			return
		}
		item = stored
	}
	fromJID, _ := jid.NewWithString(s.cfg.Host, true)
	s.routeEvent(ctx, fromJID, to, node, itemsNotificationElement(node, item))
}
