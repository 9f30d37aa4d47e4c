/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package xep0060

import (
	"bytes"
	"context"
	"time"

	"github.com/conclave-im/conclave/log"
	pubsubmodel "github.com/conclave-im/conclave/model/pubsub"
	"github.com/conclave-im/conclave/storage"
	"github.com/conclave-im/conclave/xmpp"
	"github.com/google/uuid"
)

func (s *PubSub) publishItem(ctx context.Context, iq *xmpp.IQ, publish xmpp.XElement) {
	name := publish.Attributes().Get("node")
	if len(name) == 0 {
		_ = s.router.Route(ctx, iq.BadRequestError())
		return
	}
	node, err := storage.FetchNode(ctx, s.cfg.Host, name)
	if err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, iq.InternalServerError())
		return
	}
	if node == nil {
		// auto-create on first publish, subject to the creation policy
		if !s.canCreateNode(iq.FromJID()) {
			_ = s.router.Route(ctx, iq.ForbiddenError())
			return
		}
		parent, ok := s.checkParentCollection(ctx, iq, name)
		if !ok {
			return
		}
		node = &pubsubmodel.Node{
			Host:    s.cfg.Host,
			Name:    name,
			Parent:  parent,
			Options: s.cfg.DefaultNodeOptions,
		}
		if err := storage.UpsertNode(ctx, node); err != nil {
			log.Error(err)
			_ = s.router.Route(ctx, iq.InternalServerError())
			return
		}
		aff := &pubsubmodel.Affiliation{
			JID:         iq.FromJID().ToBareJID().String(),
			Affiliation: pubsubmodel.Owner,
		}
		if err := storage.UpsertNodeAffiliation(ctx, aff, node.Host, node.Name); err != nil {
			log.Error(err)
			_ = s.router.Route(ctx, iq.InternalServerError())
			return
		}
	}
	if node.Collection {
		_ = s.router.Route(ctx, iq.NotAllowedError())
		return
	}
	allowed, err := s.canPublish(ctx, node, iq.FromJID().ToBareJID().String())
	if err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, iq.InternalServerError())
		return
	}
	if !allowed {
		_ = s.router.Route(ctx, iq.ForbiddenError())
		return
	}
	itemEl := publish.Elements().Child("item")
	if itemEl == nil {
		_ = s.router.Route(ctx, iq.BadRequestError())
		return
	}
	var payload xmpp.XElement
	if children := itemEl.Elements().All(); len(children) > 0 {
		payload = children[0]
	}
	if max := node.Options.MaxPayloadSize; max > 0 && payload != nil {
		buf := bytes.NewBuffer(nil)
		payload.ToXML(buf, true)
		if int64(buf.Len()) > max {
			_ = s.router.Route(ctx, iq.NotAcceptableError())
			return
		}
	}
	itemID := itemEl.Attributes().Get("id")
	if len(itemID) == 0 {
		itemID = uuid.New().String()
	}
	item := pubsubmodel.Item{
		ID:        itemID,
		Node:      node.Name,
		Publisher: iq.FromJID().String(),
		Payload:   payload,
		Stamp:     time.Now(),
	}
	if node.Options.PersistItems {
		s.flusher.enqueueAdd(item, node.Host, node.Name)
	}
	s.lastItems.Set(s.lastItemKey(node), &item)

	if node.Options.DeliverNotifications {
		s.notifySubscribers(ctx, node, itemsNotificationElement(node, &item))
	}
	result := iq.ResultIQ()
	publishEl := xmpp.NewElementName("publish").SetAttribute("node", node.Name)
	publishEl.AppendElement(xmpp.NewElementName("item").SetAttribute("id", itemID))
	pubSubEl := xmpp.NewElementNamespace("pubsub", pubsubNamespace)
	pubSubEl.AppendElement(publishEl)
	result.AppendElement(pubSubEl)
	_ = s.router.Route(ctx, result)
}

func (s *PubSub) retractItem(ctx context.Context, iq *xmpp.IQ, retract xmpp.XElement) {
	node := s.fetchNode(ctx, iq, retract)
	if node == nil {
		return
	}
	itemEl := retract.Elements().Child("item")
	if itemEl == nil {
		_ = s.router.Route(ctx, iq.BadRequestError())
		return
	}
	itemID := itemEl.Attributes().Get("id")
	if len(itemID) == 0 {
		_ = s.router.Route(ctx, iq.BadRequestError())
		return
	}
	allowed, err := s.canPublish(ctx, node, iq.FromJID().ToBareJID().String())
	if err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, iq.InternalServerError())
		return
	}
	if !allowed {
		_ = s.router.Route(ctx, iq.ForbiddenError())
		return
	}
	s.flusher.enqueueDelete(node.Host, node.Name, itemID)

	if last, err := s.lastItems.Get(s.lastItemKey(node)); err == nil && last.ID == itemID {
		_ = s.lastItems.Del(s.lastItemKey(node))
	}
	if node.Options.NotifyRetract {
		itemsEl := xmpp.NewElementName("items").SetAttribute("node", node.Name)
		itemsEl.AppendElement(xmpp.NewElementName("retract").SetAttribute("id", itemID))
		s.notifySubscribers(ctx, node, itemsEl)
	}
	_ = s.router.Route(ctx, iq.ResultIQ())
}

func (s *PubSub) retrieveItems(ctx context.Context, iq *xmpp.IQ, items xmpp.XElement) {
	node := s.fetchNode(ctx, iq, items)
	if node == nil {
		return
	}
	fromBareJID := iq.FromJID().ToBareJID().String()
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
		_ = s.router.Route(ctx, iq.ForbiddenError())
		return
	}
	var identifiers []string
	for _, itemEl := range items.Elements().Children("item") {
		if id := itemEl.Attributes().Get("id"); len(id) > 0 {
			identifiers = append(identifiers, id)
		}
	}
	var stored []pubsubmodel.Item
	if len(identifiers) > 0 {
		stored, err = storage.FetchNodeItemsWithIDs(ctx, node.Host, node.Name, identifiers)
	} else {
		stored, err = storage.FetchNodeItems(ctx, node.Host, node.Name)
	}
	if err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, iq.InternalServerError())
		return
	}
	itemsEl := xmpp.NewElementName("items").SetAttribute("node", node.Name)
	for i := range stored {
		itemEl := xmpp.NewElementName("item").SetAttribute("id", stored[i].ID)
		if stored[i].Payload != nil {
			itemEl.AppendElement(stored[i].Payload)
		}
		itemsEl.AppendElement(itemEl)
	}
	pubSubEl := xmpp.NewElementNamespace("pubsub", pubsubNamespace)
	pubSubEl.AppendElement(itemsEl)

	result := iq.ResultIQ()
	result.AppendElement(pubSubEl)
	_ = s.router.Route(ctx, result)
}

// canPublish applies the node publisher model.
func (s *PubSub) canPublish(ctx context.Context, node *pubsubmodel.Node, bareJID string) (bool, error) {
	if s.cfg.IsServiceAdmin(bareJID) {
		return true, nil
	}
	switch node.Options.PublishModel {
	case pubsubmodel.Open:
		return true, nil

	case pubsubmodel.Publishers:
		aff, err := s.fetchAffiliation(ctx, node, bareJID)
		if err != nil {
			return false, err
		}
		if aff == nil {
			return false, nil
		}
		return aff.Affiliation == pubsubmodel.Owner || aff.Affiliation == pubsubmodel.Publisher, nil

	case pubsubmodel.Subscribers:
		subs, err := storage.FetchNodeSubscriptions(ctx, node.Host, node.Name)
		if err != nil {
			return false, err
		}
		for _, sub := range subs {
			if sub.JID == bareJID && sub.Subscription == pubsubmodel.Subscribed {
				return true, nil
			}
		}
		return false, nil
	}
	return false, nil
}

func itemsNotificationElement(node *pubsubmodel.Node, item *pubsubmodel.Item) xmpp.XElement {
	itemEl := xmpp.NewElementName("item").SetAttribute("id", item.ID)
	if node.Options.DeliverPayloads && item.Payload != nil {
		itemEl.AppendElement(item.Payload)
	}
	itemsEl := xmpp.NewElementName("items").SetAttribute("node", node.Name)
	itemsEl.AppendElement(itemEl)
	return itemsEl
}
