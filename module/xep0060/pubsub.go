/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package xep0060

import (
	"context"

	"github.com/c-pro/geche"
	"github.com/conclave-im/conclave/log"
	pubsubmodel "github.com/conclave-im/conclave/model/pubsub"
	"github.com/conclave-im/conclave/router"
	"github.com/conclave-im/conclave/runqueue"
	"github.com/conclave-im/conclave/storage"
	"github.com/conclave-im/conclave/xmpp"
	"github.com/conclave-im/conclave/xmpp/jid"
	"github.com/google/uuid"
)

const (
	pubsubNamespace      = "http://jabber.org/protocol/pubsub"
	pubsubOwnerNamespace = "http://jabber.org/protocol/pubsub#owner"
	pubsubEventNamespace = "http://jabber.org/protocol/pubsub#event"
)

// PubSub represents the publish-subscribe service. Nodes form a tree
// rooted at an unnamed collection node; published items are handed to a
// background flusher that writes them to storage in batches.
type PubSub struct {
	cfg    *Config
	router *router.Router

	flusher   *flusher
	lastItems geche.Geche[string, *pubsubmodel.Item]

	runQueue *runqueue.RunQueue
}

// New returns an initialized publish-subscribe service. The service
// claims its own hostname on the router and guarantees the root
// collection node exists.
func New(cfg *Config, r *router.Router) *PubSub {
	if len(cfg.Host) == 0 || r.IsLocalHost(cfg.Host) {
		log.Errorf("pubsub: service could not be started, invalid hostname")
		return nil
	}
	s := &PubSub{
		cfg:       cfg,
		router:    r,
		flusher:   newFlusher(cfg.FlushInterval, cfg.FlushBatchSize, cfg.MaxNodeItems),
		lastItems: geche.NewMapCache[string, *pubsubmodel.Item](),
		runQueue:  runqueue.New("xep0060"),
	}
	r.RegisterHost(cfg.Host)
	if err := s.ensureRootNode(context.Background()); err != nil {
		log.Error(err)
	}
	return s
}

// MatchesIQ tells whether an IQ is addressed to the pubsub service.
func (s *PubSub) MatchesIQ(iq *xmpp.IQ) bool {
	return iq.ToJID().Domain() == s.cfg.Host
}

// ProcessIQ processes a pubsub IQ on the service queue.
func (s *PubSub) ProcessIQ(ctx context.Context, iq *xmpp.IQ) {
	s.runQueue.Post(func() {
		s.processIQ(ctx, iq)
	})
}

// QueueDepths reports how many published items await durable addition
// and deletion. Growing numbers signal an unreachable store.
func (s *PubSub) QueueDepths() (add, del int32) {
	return s.flusher.depths()
}

// Flush forces an immediate persistence run and waits for it.
func (s *PubSub) Flush() {
	s.flusher.flush()
}

// Shutdown waits until every pending operation has run and stops the
// persistence flusher after a last best effort run.
func (s *PubSub) Shutdown() error {
	c := make(chan struct{})
	s.runQueue.Post(func() { close(c) })
	<-c
	s.flusher.stop()
	return nil
}

func (s *PubSub) processIQ(ctx context.Context, iq *xmpp.IQ) {
	if el := iq.Elements().ChildNamespace("pubsub", pubsubNamespace); el != nil {
		s.processRequest(ctx, iq, el)
		return
	}
	if el := iq.Elements().ChildNamespace("pubsub", pubsubOwnerNamespace); el != nil {
		s.processOwnerRequest(ctx, iq, el)
		return
	}
	_ = s.router.Route(ctx, iq.BadRequestError())
}

func (s *PubSub) processRequest(ctx context.Context, iq *xmpp.IQ, pubSubEl xmpp.XElement) {
	switch {
	case iq.IsSet():
		if create := pubSubEl.Elements().Child("create"); create != nil {
			s.createNode(ctx, iq, create, pubSubEl.Elements().Child("configure"))
			return
		}
		if publish := pubSubEl.Elements().Child("publish"); publish != nil {
			s.publishItem(ctx, iq, publish)
			return
		}
		if retract := pubSubEl.Elements().Child("retract"); retract != nil {
			s.retractItem(ctx, iq, retract)
			return
		}
		if subscribe := pubSubEl.Elements().Child("subscribe"); subscribe != nil {
			s.subscribe(ctx, iq, subscribe)
			return
		}
		if unsubscribe := pubSubEl.Elements().Child("unsubscribe"); unsubscribe != nil {
			s.unsubscribe(ctx, iq, unsubscribe)
			return
		}
	case iq.IsGet():
		if items := pubSubEl.Elements().Child("items"); items != nil {
			s.retrieveItems(ctx, iq, items)
			return
		}
	}
	_ = s.router.Route(ctx, iq.ServiceUnavailableError())
}

func (s *PubSub) processOwnerRequest(ctx context.Context, iq *xmpp.IQ, pubSubEl xmpp.XElement) {
	if configure := pubSubEl.Elements().Child("configure"); configure != nil {
		switch {
		case iq.IsGet():
			s.getNodeConfiguration(ctx, iq, configure)
			return
		case iq.IsSet():
			s.setNodeConfiguration(ctx, iq, configure)
			return
		}
	}
	if del := pubSubEl.Elements().Child("delete"); del != nil && iq.IsSet() {
		s.deleteNode(ctx, iq, del)
		return
	}
	_ = s.router.Route(ctx, iq.ServiceUnavailableError())
}

func (s *PubSub) ensureRootNode(ctx context.Context) error {
	n, err := storage.FetchNode(ctx, s.cfg.Host, "")
	if err != nil {
		return err
	}
	if n != nil {
		return nil
	}
	root := &pubsubmodel.Node{
		Host:       s.cfg.Host,
		Collection: true,
		Options:    s.cfg.DefaultNodeOptions,
	}
	return storage.UpsertNode(ctx, root)
}

// canCreateNode applies the service node creation policy: everyone when
// unrestricted, otherwise sysadmins, the allow-list and service
// components only.
func (s *PubSub) canCreateNode(creator *jid.JID) bool {
	if !s.cfg.NodeCreationRestricted {
		return true
	}
	if creator.IsServer() {
		return true
	}
	return s.cfg.IsServiceAdmin(creator.ToBareJID().String())
}

func (s *PubSub) fetchNode(ctx context.Context, iq *xmpp.IQ, cmdEl xmpp.XElement) *pubsubmodel.Node {
	name := cmdEl.Attributes().Get("node")
	if len(name) == 0 {
		_ = s.router.Route(ctx, iq.BadRequestError())
		return nil
	}
	node, err := storage.FetchNode(ctx, s.cfg.Host, name)
	if err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, iq.InternalServerError())
		return nil
	}
	if node == nil {
		_ = s.router.Route(ctx, iq.ItemNotFoundError())
		return nil
	}
	return node
}

func (s *PubSub) fetchAffiliation(ctx context.Context, node *pubsubmodel.Node, bareJID string) (*pubsubmodel.Affiliation, error) {
	return storage.FetchNodeAffiliation(ctx, node.Host, node.Name, bareJID)
}

// nodeOwner returns the bare JID holding the owner affiliation of a node.
func (s *PubSub) nodeOwner(ctx context.Context, node *pubsubmodel.Node) (string, error) {
	affiliations, err := storage.FetchNodeAffiliations(ctx, node.Host, node.Name)
	if err != nil {
		return "", err
	}
	for _, aff := range affiliations {
		if aff.Affiliation == pubsubmodel.Owner {
			return aff.JID, nil
		}
	}
	return "", nil
}

func (s *PubSub) isNodeOwner(ctx context.Context, node *pubsubmodel.Node, bareJID string) (bool, error) {
	if s.cfg.IsServiceAdmin(bareJID) {
		return true, nil
	}
	aff, err := s.fetchAffiliation(ctx, node, bareJID)
	if err != nil {
		return false, err
	}
	return aff != nil && aff.Affiliation == pubsubmodel.Owner, nil
}

// notifySubscribers sends an event wrapping the notification element to
// every subscribed entity of a node.
func (s *PubSub) notifySubscribers(ctx context.Context, node *pubsubmodel.Node, notification xmpp.XElement) {
	subs, err := storage.FetchNodeSubscriptions(ctx, node.Host, node.Name)
	if err != nil {
		log.Error(err)
		return
	}
	fromJID, _ := jid.NewWithString(s.cfg.Host, true)
	for _, sub := range subs {
		if sub.Subscription != pubsubmodel.Subscribed {
			continue
		}
		toJID, err := jid.NewWithString(sub.JID, true)
		if err != nil {
			continue
		}
		s.routeEvent(ctx, fromJID, toJID, node, notification)
	}
}

func (s *PubSub) routeEvent(ctx context.Context, from, to *jid.JID, node *pubsubmodel.Node, notification xmpp.XElement) {
	eventEl := xmpp.NewElementNamespace("event", pubsubEventNamespace)
	eventEl.AppendElement(notification)

	msgEl := xmpp.NewElementName("message").SetID(uuid.New().String()).AppendElement(eventEl)
	if nt := node.Options.NotificationType; len(nt) > 0 {
		msgEl.SetType(nt)
	}
	msg, err := xmpp.NewMessageFromElement(msgEl, from, to)
	if err != nil {
		log.Error(err)
		return
	}
	if err := s.router.Route(ctx, msg); err != nil {
		log.Warnf("pubsub: failed to route event to %s: %v", to, err)
	}
}

func (s *PubSub) lastItemKey(node *pubsubmodel.Node) string {
	return node.Host + "\x00" + node.Name
}
