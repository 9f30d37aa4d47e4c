/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package xep0060

import (
	"context"
	"strings"

	"github.com/conclave-im/conclave/log"
	pubsubmodel "github.com/conclave-im/conclave/model/pubsub"
	"github.com/conclave-im/conclave/module/xep0004"
	"github.com/conclave-im/conclave/storage"
	"github.com/conclave-im/conclave/xmpp"
	"github.com/google/uuid"
)

const nodeTypeFieldVar = "pubsub#node_type"

func (s *PubSub) createNode(ctx context.Context, iq *xmpp.IQ, create, configure xmpp.XElement) {
	fromJID := iq.FromJID()
	if !s.canCreateNode(fromJID) {
		_ = s.router.Route(ctx, iq.ForbiddenError())
		return
	}
	name := create.Attributes().Get("node")
	var instantNode bool
	if len(name) == 0 {
		name = uuid.New().String()
		instantNode = true
	}
	n, err := storage.FetchNode(ctx, s.cfg.Host, name)
	if err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, iq.InternalServerError())
		return
	}
	if n != nil {
		_ = s.router.Route(ctx, iq.ConflictError())
		return
	}
	parent, ok := s.checkParentCollection(ctx, iq, name)
	if !ok {
		return
	}
	opts := s.cfg.DefaultNodeOptions
	collection := false
	if configure != nil {
		form := configure.Elements().ChildNamespace("x", xep0004.FormNamespace)
		if form != nil {
			dataForm, err := xep0004.NewFormFromElement(form)
			if err != nil {
				_ = s.router.Route(ctx, iq.BadRequestError())
				return
			}
			parsed, err := pubsubmodel.NewOptionsFromSubmitForm(dataForm)
			if err != nil {
				_ = s.router.Route(ctx, iq.BadRequestError())
				return
			}
			opts = *parsed
			collection = dataForm.Fields.ValueForField(nodeTypeFieldVar) == "collection"
		}
	}
	node := &pubsubmodel.Node{
		Host:       s.cfg.Host,
		Name:       name,
		Parent:     parent,
		Collection: collection,
		Options:    opts,
	}
	ownerBareJID := fromJID.ToBareJID().String()
	if err := storage.UpsertNode(ctx, node); err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, iq.InternalServerError())
		return
	}
	aff := &pubsubmodel.Affiliation{JID: ownerBareJID, Affiliation: pubsubmodel.Owner}
	if err := storage.UpsertNodeAffiliation(ctx, aff, node.Host, node.Name); err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, iq.InternalServerError())
		return
	}
	sub := &pubsubmodel.Subscription{
		SubID:        uuid.New().String(),
		JID:          ownerBareJID,
		Subscription: pubsubmodel.Subscribed,
	}
	if err := storage.UpsertNodeSubscription(ctx, sub, node.Host, node.Name); err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, iq.InternalServerError())
		return
	}
	// items queued for a previously deleted node with the same name must
	// not surface on the new one
	s.flusher.cancelNode(node.Host, node.Name)

	result := iq.ResultIQ()
	if instantNode {
		pubSubEl := xmpp.NewElementNamespace("pubsub", pubsubNamespace)
		pubSubEl.AppendElement(xmpp.NewElementName("create").SetAttribute("node", name))
		result.AppendElement(pubSubEl)
	}
	_ = s.router.Route(ctx, result)
}

// checkParentCollection resolves the collection a node name hangs from.
// Top level names hang from the unnamed root; nested names require every
// ancestor to exist as a collection node.
func (s *PubSub) checkParentCollection(ctx context.Context, iq *xmpp.IQ, name string) (string, bool) {
	i := strings.LastIndexByte(name, '/')
	if i < 0 {
		return "", true
	}
	parentName := name[:i]
	parent, err := storage.FetchNode(ctx, s.cfg.Host, parentName)
	if err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, iq.InternalServerError())
		return "", false
	}
	if parent == nil || !parent.Collection {
		_ = s.router.Route(ctx, iq.ItemNotFoundError())
		return "", false
	}
	return parentName, true
}

func (s *PubSub) getNodeConfiguration(ctx context.Context, iq *xmpp.IQ, configure xmpp.XElement) {
	node := s.fetchNode(ctx, iq, configure)
	if node == nil {
		return
	}
	fromBareJID := iq.FromJID().ToBareJID().String()
	owner, err := s.isNodeOwner(ctx, node, fromBareJID)
	if err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, iq.InternalServerError())
		return
	}
	if !owner {
		_ = s.router.Route(ctx, iq.ForbiddenError())
		return
	}
	rosterGroups, err := s.ownerRosterGroups(ctx, iq.FromJID().Node())
	if err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, iq.InternalServerError())
		return
	}
	configureEl := xmpp.NewElementName("configure").SetAttribute("node", node.Name)
	configureEl.AppendElement(node.Options.Form(rosterGroups).Element())

	pubSubEl := xmpp.NewElementNamespace("pubsub", pubsubOwnerNamespace)
	pubSubEl.AppendElement(configureEl)

	result := iq.ResultIQ()
	result.AppendElement(pubSubEl)
	_ = s.router.Route(ctx, result)
}

func (s *PubSub) setNodeConfiguration(ctx context.Context, iq *xmpp.IQ, configure xmpp.XElement) {
	node := s.fetchNode(ctx, iq, configure)
	if node == nil {
		return
	}
	fromBareJID := iq.FromJID().ToBareJID().String()
	owner, err := s.isNodeOwner(ctx, node, fromBareJID)
	if err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, iq.InternalServerError())
		return
	}
	if !owner {
		_ = s.router.Route(ctx, iq.ForbiddenError())
		return
	}
	form := configure.Elements().ChildNamespace("x", xep0004.FormNamespace)
	if form == nil {
		_ = s.router.Route(ctx, iq.BadRequestError())
		return
	}
	dataForm, err := xep0004.NewFormFromElement(form)
	if err != nil {
		_ = s.router.Route(ctx, iq.BadRequestError())
		return
	}
	opts, err := pubsubmodel.NewOptionsFromSubmitForm(dataForm)
	if err != nil {
		_ = s.router.Route(ctx, iq.BadRequestError())
		return
	}
	node.Options = *opts
	if err := storage.UpsertNode(ctx, node); err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, iq.InternalServerError())
		return
	}
	if node.Options.NotifyConfig {
		configEl := xmpp.NewElementName("configuration").SetAttribute("node", node.Name)
		s.notifySubscribers(ctx, node, configEl)
	}
	_ = s.router.Route(ctx, iq.ResultIQ())
}

func (s *PubSub) deleteNode(ctx context.Context, iq *xmpp.IQ, del xmpp.XElement) {
	node := s.fetchNode(ctx, iq, del)
	if node == nil {
		return
	}
	if node.IsRoot() {
		_ = s.router.Route(ctx, iq.NotAllowedError())
		return
	}
	fromBareJID := iq.FromJID().ToBareJID().String()
	owner, err := s.isNodeOwner(ctx, node, fromBareJID)
	if err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, iq.InternalServerError())
		return
	}
	if !owner {
		_ = s.router.Route(ctx, iq.ForbiddenError())
		return
	}
	targets := []pubsubmodel.Node{*node}
	if node.Collection {
		descendants, err := s.fetchDescendants(ctx, node)
		if err != nil {
			log.Error(err)
			_ = s.router.Route(ctx, iq.InternalServerError())
			return
		}
		targets = append(targets, descendants...)
	}
	for i := range targets {
		target := targets[i]
		if target.Options.NotifyDelete {
			deleteEl := xmpp.NewElementName("delete").SetAttribute("node", target.Name)
			s.notifySubscribers(ctx, &target, deleteEl)
		}
		if err := storage.DeleteNode(ctx, target.Host, target.Name); err != nil {
			log.Error(err)
			_ = s.router.Route(ctx, iq.InternalServerError())
			return
		}
		s.flusher.cancelNode(target.Host, target.Name)
		_ = s.lastItems.Del(s.lastItemKey(&target))
	}
	_ = s.router.Route(ctx, iq.ResultIQ())
}

func (s *PubSub) fetchDescendants(ctx context.Context, node *pubsubmodel.Node) ([]pubsubmodel.Node, error) {
	nodes, err := storage.FetchNodes(ctx, node.Host)
	if err != nil {
		return nil, err
	}
	var descendants []pubsubmodel.Node
	prefix := node.Name + "/"
	for _, n := range nodes {
		if strings.HasPrefix(n.Name, prefix) {
			descendants = append(descendants, n)
		}
	}
	return descendants, nil
}

func (s *PubSub) ownerRosterGroups(ctx context.Context, username string) ([]string, error) {
	items, _, err := storage.FetchRosterItems(ctx, username)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var groups []string
	for _, itm := range items {
		for _, g := range itm.Groups {
			if _, ok := seen[g]; ok {
				continue
			}
			seen[g] = struct{}{}
			groups = append(groups, g)
		}
	}
	return groups, nil
}
