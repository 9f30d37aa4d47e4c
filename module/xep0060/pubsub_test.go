/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package xep0060

import (
	"context"
	"testing"
	"time"

	pubsubmodel "github.com/conclave-im/conclave/model/pubsub"
	"github.com/conclave-im/conclave/module/xep0004"
	"github.com/conclave-im/conclave/router"
	"github.com/conclave-im/conclave/storage"
	"github.com/conclave-im/conclave/storage/memstorage"
	"github.com/conclave-im/conclave/stream"
	"github.com/conclave-im/conclave/xmpp"
	"github.com/conclave-im/conclave/xmpp/jid"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestPubSub_CreateNode(t *testing.T) {
	r, _, shutdown := setupPubSubTest()
	defer shutdown()
	ctx := context.Background()

	s := newTestService(t, r, false)
	defer func() { _ = s.Shutdown() }()

	stm := bindPubSubStream(r, "ortuman", "balcony")

	iq := pubsubIQ(stm.JID(), xmpp.SetType, pubsubNamespace,
		xmpp.NewElementName("create").SetAttribute("node", "princely_musings"))
	require.True(t, s.MatchesIQ(iq))
	s.ProcessIQ(ctx, iq)

	elem := stm.ReceiveElement()
	require.Equal(t, xmpp.ResultType, elem.Type())

	node, err := storage.FetchNode(ctx, "pubsub.jackal.im", "princely_musings")
	require.Nil(t, err)
	require.NotNil(t, node)
	require.False(t, node.Collection)

	aff, err := storage.FetchNodeAffiliation(ctx, "pubsub.jackal.im", "princely_musings", "ortuman@jackal.im")
	require.Nil(t, err)
	require.NotNil(t, aff)
	require.Equal(t, pubsubmodel.Owner, aff.Affiliation)

	subs, err := storage.FetchNodeSubscriptions(ctx, "pubsub.jackal.im", "princely_musings")
	require.Nil(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, "ortuman@jackal.im", subs[0].JID)
}

func TestPubSub_CreateNodeRestricted(t *testing.T) {
	r, _, shutdown := setupPubSubTest()
	defer shutdown()
	ctx := context.Background()

	s := newTestService(t, r, true)
	defer func() { _ = s.Shutdown() }()

	stm := bindPubSubStream(r, "ortuman", "balcony")

	iq := pubsubIQ(stm.JID(), xmpp.SetType, pubsubNamespace,
		xmpp.NewElementName("create").SetAttribute("node", "princely_musings"))
	s.ProcessIQ(ctx, iq)

	elem := stm.ReceiveElement()
	require.Equal(t, xmpp.ErrorType, elem.Type())
	require.NotNil(t, elem.Error().Elements().Child("forbidden"))

	// sysadmins bypass the restriction
	adm := bindPubSubStream(r, "admin", "balcony")
	iq = pubsubIQ(adm.JID(), xmpp.SetType, pubsubNamespace,
		xmpp.NewElementName("create").SetAttribute("node", "princely_musings"))
	s.ProcessIQ(ctx, iq)

	elem = adm.ReceiveElement()
	require.Equal(t, xmpp.ResultType, elem.Type())
}

func TestPubSub_RootCollectionHierarchy(t *testing.T) {
	r, _, shutdown := setupPubSubTest()
	defer shutdown()
	ctx := context.Background()

	s := newTestService(t, r, false)
	defer func() { _ = s.Shutdown() }()

	// the unnamed root collection is bootstrapped with the service
	root, err := storage.FetchNode(ctx, "pubsub.jackal.im", "")
	require.Nil(t, err)
	require.NotNil(t, root)
	require.True(t, root.IsRoot())

	stm := bindPubSubStream(r, "ortuman", "balcony")

	// nested nodes require an existing parent collection
	iq := pubsubIQ(stm.JID(), xmpp.SetType, pubsubNamespace,
		xmpp.NewElementName("create").SetAttribute("node", "blogs/ortuman"))
	s.ProcessIQ(ctx, iq)
	elem := stm.ReceiveElement()
	require.Equal(t, xmpp.ErrorType, elem.Type())

	createEl := xmpp.NewElementName("create").SetAttribute("node", "blogs")
	configureEl := xmpp.NewElementName("configure")
	configureEl.AppendElement(nodeSubmitForm("", "collection").Element())

	iq = pubsubIQ(stm.JID(), xmpp.SetType, pubsubNamespace, createEl, configureEl)
	s.ProcessIQ(ctx, iq)
	elem = stm.ReceiveElement()
	require.Equal(t, xmpp.ResultType, elem.Type())

	iq = pubsubIQ(stm.JID(), xmpp.SetType, pubsubNamespace,
		xmpp.NewElementName("create").SetAttribute("node", "blogs/ortuman"))
	s.ProcessIQ(ctx, iq)
	elem = stm.ReceiveElement()
	require.Equal(t, xmpp.ResultType, elem.Type())

	node, err := storage.FetchNode(ctx, "pubsub.jackal.im", "blogs/ortuman")
	require.Nil(t, err)
	require.NotNil(t, node)
	require.True(t, node.IsChildOf("blogs"))
	require.Equal(t, "ortuman", node.LocalName())
}

func TestPubSub_PublishAndNotify(t *testing.T) {
	r, _, shutdown := setupPubSubTest()
	defer shutdown()
	ctx := context.Background()

	s := newTestService(t, r, false)
	defer func() { _ = s.Shutdown() }()

	owner := bindPubSubStream(r, "ortuman", "balcony")
	sub := bindPubSubStream(r, "noelia", "yard")

	createTestNode(t, ctx, s, owner)
	subscribeToTestNode(t, ctx, s, sub)

	payload := xmpp.NewElementNamespace("entry", "http://www.w3.org/2005/Atom")
	itemEl := xmpp.NewElementName("item").SetAttribute("id", "ae890ac52d0df67ed7cfdf51b644e901")
	itemEl.AppendElement(payload)
	publishEl := xmpp.NewElementName("publish").SetAttribute("node", "princely_musings")
	publishEl.AppendElement(itemEl)

	iq := pubsubIQ(owner.JID(), xmpp.SetType, pubsubNamespace, publishEl)
	s.ProcessIQ(ctx, iq)

	// the owner subscription gets the event, then the result
	elem := owner.ReceiveElement()
	require.Equal(t, "message", elem.Name())
	elem = owner.ReceiveElement()
	require.Equal(t, xmpp.ResultType, elem.Type())

	elem = sub.ReceiveElement()
	require.Equal(t, "message", elem.Name())
	eventEl := elem.Elements().ChildNamespace("event", pubsubEventNamespace)
	require.NotNil(t, eventEl)
	itemsEl := eventEl.Elements().Child("items")
	require.NotNil(t, itemsEl)
	require.Equal(t, "princely_musings", itemsEl.Attributes().Get("node"))
	require.NotNil(t, itemsEl.Elements().Child("item").Elements().Child("entry"))

	// the item awaits durable storage until the next flush run
	add, _ := s.QueueDepths()
	require.Equal(t, int32(1), add)

	s.Flush()
	add, _ = s.QueueDepths()
	require.Equal(t, int32(0), add)

	items, err := storage.FetchNodeItems(ctx, "pubsub.jackal.im", "princely_musings")
	require.Nil(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "ae890ac52d0df67ed7cfdf51b644e901", items[0].ID)
}

func TestPubSub_SubscribeReceivesLastPublishedItem(t *testing.T) {
	r, _, shutdown := setupPubSubTest()
	defer shutdown()
	ctx := context.Background()

	s := newTestService(t, r, false)
	defer func() { _ = s.Shutdown() }()

	owner := bindPubSubStream(r, "ortuman", "balcony")
	createTestNode(t, ctx, s, owner)

	itemEl := xmpp.NewElementName("item").SetAttribute("id", "i0")
	itemEl.AppendElement(xmpp.NewElementName("entry"))
	publishEl := xmpp.NewElementName("publish").SetAttribute("node", "princely_musings")
	publishEl.AppendElement(itemEl)

	s.ProcessIQ(ctx, pubsubIQ(owner.JID(), xmpp.SetType, pubsubNamespace, publishEl))
	_ = owner.ReceiveElement() // event
	_ = owner.ReceiveElement() // result

	// the item is still queued, yet a new subscriber receives it
	sub := bindPubSubStream(r, "noelia", "yard")
	subscribeToTestNode(t, ctx, s, sub)

	elem := sub.ReceiveElement()
	require.Equal(t, "message", elem.Name())
	eventEl := elem.Elements().ChildNamespace("event", pubsubEventNamespace)
	require.NotNil(t, eventEl)
	require.Equal(t, "i0", eventEl.Elements().Child("items").Elements().Child("item").Attributes().Get("id"))
}

func TestPubSub_RetractNotifies(t *testing.T) {
	r, _, shutdown := setupPubSubTest()
	defer shutdown()
	ctx := context.Background()

	s := newTestService(t, r, false)
	defer func() { _ = s.Shutdown() }()

	owner := bindPubSubStream(r, "ortuman", "balcony")
	createTestNode(t, ctx, s, owner)

	itemEl := xmpp.NewElementName("item").SetAttribute("id", "i0")
	publishEl := xmpp.NewElementName("publish").SetAttribute("node", "princely_musings")
	publishEl.AppendElement(itemEl)
	s.ProcessIQ(ctx, pubsubIQ(owner.JID(), xmpp.SetType, pubsubNamespace, publishEl))
	_ = owner.ReceiveElement() // event
	_ = owner.ReceiveElement() // result

	retractEl := xmpp.NewElementName("retract").SetAttribute("node", "princely_musings")
	retractEl.AppendElement(xmpp.NewElementName("item").SetAttribute("id", "i0"))
	s.ProcessIQ(ctx, pubsubIQ(owner.JID(), xmpp.SetType, pubsubNamespace, retractEl))

	elem := owner.ReceiveElement()
	require.Equal(t, "message", elem.Name())
	eventEl := elem.Elements().ChildNamespace("event", pubsubEventNamespace)
	require.NotNil(t, eventEl)
	require.Equal(t, "i0", eventEl.Elements().Child("items").Elements().Child("retract").Attributes().Get("id"))

	elem = owner.ReceiveElement()
	require.Equal(t, xmpp.ResultType, elem.Type())

	// both the queued addition and the deletion drain away
	s.Flush()
	add, del := s.QueueDepths()
	require.Equal(t, int32(0), add)
	require.Equal(t, int32(0), del)

	items, err := storage.FetchNodeItems(ctx, "pubsub.jackal.im", "princely_musings")
	require.Nil(t, err)
	require.Len(t, items, 0)
}

func TestPubSub_DeleteNodeCancelsQueuedItems(t *testing.T) {
	r, _, shutdown := setupPubSubTest()
	defer shutdown()
	ctx := context.Background()

	s := newTestService(t, r, false)
	defer func() { _ = s.Shutdown() }()

	owner := bindPubSubStream(r, "ortuman", "balcony")
	createTestNode(t, ctx, s, owner)

	for _, id := range []string{"i0", "i1"} {
		publishEl := xmpp.NewElementName("publish").SetAttribute("node", "princely_musings")
		publishEl.AppendElement(xmpp.NewElementName("item").SetAttribute("id", id))
		s.ProcessIQ(ctx, pubsubIQ(owner.JID(), xmpp.SetType, pubsubNamespace, publishEl))
		_ = owner.ReceiveElement() // event
		_ = owner.ReceiveElement() // result
	}
	add, _ := s.QueueDepths()
	require.Equal(t, int32(2), add)

	deleteEl := xmpp.NewElementName("delete").SetAttribute("node", "princely_musings")
	s.ProcessIQ(ctx, pubsubIQ(owner.JID(), xmpp.SetType, pubsubOwnerNamespace, deleteEl))

	// deletion notification precedes the result
	elem := owner.ReceiveElement()
	require.Equal(t, "message", elem.Name())
	eventEl := elem.Elements().ChildNamespace("event", pubsubEventNamespace)
	require.NotNil(t, eventEl)
	require.Equal(t, "princely_musings", eventEl.Elements().Child("delete").Attributes().Get("node"))

	elem = owner.ReceiveElement()
	require.Equal(t, xmpp.ResultType, elem.Type())

	node, err := storage.FetchNode(ctx, "pubsub.jackal.im", "princely_musings")
	require.Nil(t, err)
	require.Nil(t, node)

	s.Flush()
	add, _ = s.QueueDepths()
	require.Equal(t, int32(0), add)

	items, err := storage.FetchNodeItems(ctx, "pubsub.jackal.im", "princely_musings")
	require.Nil(t, err)
	require.Len(t, items, 0)
}

func TestPubSub_NodeConfiguration(t *testing.T) {
	r, _, shutdown := setupPubSubTest()
	defer shutdown()
	ctx := context.Background()

	s := newTestService(t, r, false)
	defer func() { _ = s.Shutdown() }()

	owner := bindPubSubStream(r, "ortuman", "balcony")
	createTestNode(t, ctx, s, owner)

	configureEl := xmpp.NewElementName("configure").SetAttribute("node", "princely_musings")
	s.ProcessIQ(ctx, pubsubIQ(owner.JID(), xmpp.GetType, pubsubOwnerNamespace, configureEl))

	elem := owner.ReceiveElement()
	require.Equal(t, xmpp.ResultType, elem.Type())
	formEl := elem.Elements().Child("pubsub").Elements().Child("configure").
		Elements().ChildNamespace("x", xep0004.FormNamespace)
	require.NotNil(t, formEl)

	// outsiders may not reconfigure the node
	outsider := bindPubSubStream(r, "noelia", "yard")
	submitEl := xmpp.NewElementName("configure").SetAttribute("node", "princely_musings")
	submitEl.AppendElement(nodeSubmitForm("Musings", "").Element())
	s.ProcessIQ(ctx, pubsubIQ(outsider.JID(), xmpp.SetType, pubsubOwnerNamespace, submitEl))

	elem = outsider.ReceiveElement()
	require.Equal(t, xmpp.ErrorType, elem.Type())

	submitEl = xmpp.NewElementName("configure").SetAttribute("node", "princely_musings")
	submitEl.AppendElement(nodeSubmitForm("Musings", "").Element())
	s.ProcessIQ(ctx, pubsubIQ(owner.JID(), xmpp.SetType, pubsubOwnerNamespace, submitEl))

	elem = owner.ReceiveElement()
	require.Equal(t, xmpp.ResultType, elem.Type())

	node, err := storage.FetchNode(ctx, "pubsub.jackal.im", "princely_musings")
	require.Nil(t, err)
	require.Equal(t, "Musings", node.Options.Title)
}

func TestPubSub_RetrieveItems(t *testing.T) {
	r, _, shutdown := setupPubSubTest()
	defer shutdown()
	ctx := context.Background()

	s := newTestService(t, r, false)
	defer func() { _ = s.Shutdown() }()

	owner := bindPubSubStream(r, "ortuman", "balcony")
	createTestNode(t, ctx, s, owner)

	for _, id := range []string{"i0", "i1"} {
		publishEl := xmpp.NewElementName("publish").SetAttribute("node", "princely_musings")
		publishEl.AppendElement(xmpp.NewElementName("item").SetAttribute("id", id))
		s.ProcessIQ(ctx, pubsubIQ(owner.JID(), xmpp.SetType, pubsubNamespace, publishEl))
		_ = owner.ReceiveElement() // event
		_ = owner.ReceiveElement() // result
	}
	s.Flush()

	itemsEl := xmpp.NewElementName("items").SetAttribute("node", "princely_musings")
	s.ProcessIQ(ctx, pubsubIQ(owner.JID(), xmpp.GetType, pubsubNamespace, itemsEl))

	elem := owner.ReceiveElement()
	require.Equal(t, xmpp.ResultType, elem.Type())
	resItems := elem.Elements().Child("pubsub").Elements().Child("items")
	require.NotNil(t, resItems)
	require.Equal(t, 2, resItems.Elements().Count())
}

func setupPubSubTest() (*router.Router, *memstorage.Storage, func()) {
	s := memstorage.New()
	storage.Set(s)
	r, _ := router.New(&router.Config{Hosts: []string{"jackal.im"}})
	return r, s, func() {
		storage.Unset()
	}
}

func newTestService(t *testing.T, r *router.Router, restricted bool) *PubSub {
	cfg := &Config{
		Host:                   "pubsub.jackal.im",
		Name:                   defaultServiceName,
		NodeCreationRestricted: restricted,
		Sysadmins:              []string{"admin@jackal.im"},
		FlushInterval:          time.Hour,
		FlushBatchSize:         defaultFlushBatch,
		MaxNodeItems:           defaultMaxNodeItems,
		DefaultNodeOptions:     defaultNodeOptions(),
	}
	s := New(cfg, r)
	require.NotNil(t, s)
	return s
}

func bindPubSubStream(r *router.Router, username, resource string) *stream.MockC2S {
	userJID, _ := jid.New(username, "jackal.im", resource, true)
	stm := stream.NewMockC2S(uuid.New().String(), userJID)
	stm.SetPresence(xmpp.NewPresence(userJID.ToBareJID(), userJID, xmpp.AvailableType))
	r.Bind(stm)
	return stm
}

func pubsubIQ(from *jid.JID, iqType, namespace string, children ...xmpp.XElement) *xmpp.IQ {
	toJID, _ := jid.NewWithString("pubsub.jackal.im", true)
	iq := xmpp.NewIQType(uuid.New().String(), iqType)
	iq.SetFromJID(from)
	iq.SetToJID(toJID)
	pubSubEl := xmpp.NewElementNamespace("pubsub", namespace)
	for _, child := range children {
		pubSubEl.AppendElement(child)
	}
	iq.AppendElement(pubSubEl)
	return iq
}

func createTestNode(t *testing.T, ctx context.Context, s *PubSub, owner *stream.MockC2S) {
	t.Helper()
	iq := pubsubIQ(owner.JID(), xmpp.SetType, pubsubNamespace,
		xmpp.NewElementName("create").SetAttribute("node", "princely_musings"))
	s.ProcessIQ(ctx, iq)
	elem := owner.ReceiveElement()
	require.Equal(t, xmpp.ResultType, elem.Type())
}

func subscribeToTestNode(t *testing.T, ctx context.Context, s *PubSub, stm *stream.MockC2S) {
	t.Helper()
	subscribeEl := xmpp.NewElementName("subscribe").
		SetAttribute("node", "princely_musings").
		SetAttribute("jid", stm.JID().ToBareJID().String())
	s.ProcessIQ(ctx, pubsubIQ(stm.JID(), xmpp.SetType, pubsubNamespace, subscribeEl))
	elem := stm.ReceiveElement()
	require.Equal(t, xmpp.ResultType, elem.Type())
	subscriptionEl := elem.Elements().Child("pubsub").Elements().Child("subscription")
	require.NotNil(t, subscriptionEl)
	require.Equal(t, pubsubmodel.Subscribed, subscriptionEl.Attributes().Get("subscription"))
}

func nodeSubmitForm(title, nodeType string) *xep0004.DataForm {
	form := &xep0004.DataForm{Type: xep0004.Submit}
	form.Fields = append(form.Fields, xep0004.Field{
		Var:    xep0004.FormType,
		Type:   xep0004.Hidden,
		Values: []string{"http://jabber.org/protocol/pubsub#node_config"},
	})
	form.Fields = append(form.Fields, xep0004.Field{Var: "pubsub#title", Values: []string{title}})
	form.Fields = append(form.Fields, xep0004.Field{Var: "pubsub#deliver_notifications", Values: []string{"true"}})
	form.Fields = append(form.Fields, xep0004.Field{Var: "pubsub#deliver_payloads", Values: []string{"true"}})
	form.Fields = append(form.Fields, xep0004.Field{Var: "pubsub#persist_items", Values: []string{"true"}})
	form.Fields = append(form.Fields, xep0004.Field{Var: "pubsub#access_model", Values: []string{pubsubmodel.Open}})
	form.Fields = append(form.Fields, xep0004.Field{Var: "pubsub#publish_model", Values: []string{pubsubmodel.Publishers}})
	form.Fields = append(form.Fields, xep0004.Field{Var: "pubsub#send_last_published_item", Values: []string{pubsubmodel.OnSub}})
	if len(nodeType) > 0 {
		form.Fields = append(form.Fields, xep0004.Field{Var: nodeTypeFieldVar, Values: []string{nodeType}})
	}
	return form
}
