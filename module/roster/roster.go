/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package roster

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/conclave-im/conclave/event"
	"github.com/conclave-im/conclave/group"
	"github.com/conclave-im/conclave/log"
	"github.com/conclave-im/conclave/model/rostermodel"
	"github.com/conclave-im/conclave/privacy"
	"github.com/conclave-im/conclave/router"
	"github.com/conclave-im/conclave/runqueue"
	"github.com/conclave-im/conclave/storage"
	"github.com/conclave-im/conclave/xmpp"
	"github.com/conclave-im/conclave/xmpp/jid"
	"github.com/pborman/uuid"
)

const rosterNamespace = "jabber:iq:roster"

const rosterRequestedCtxKey = "roster:requested"

// Config represents a roster module configuration.
type Config struct {
	Versioning bool `yaml:"versioning"`
}

// Roster represents the roster server module. Besides answering roster get
// and set requests it merges personally stored contact items with the items
// implied by shared group membership, keeps the merged roster of every user
// cached in memory and drives subscription handshakes and presence
// broadcasting.
type Roster struct {
	cfg      *Config
	router   *router.Router
	groups   *group.Manager
	checker  privacy.Checker
	cache    *rosterCache
	online   sync.Map
	runQueue *runqueue.RunQueue
}

// New returns a roster module instance. When a bus is given the module
// subscribes itself to shared group events to keep cached rosters current.
func New(cfg *Config, r *router.Router, groups *group.Manager, checker privacy.Checker, bus *event.Bus) *Roster {
	ros := &Roster{
		cfg:      cfg,
		router:   r,
		groups:   groups,
		checker:  checker,
		cache:    newRosterCache(),
		runQueue: runqueue.New("roster"),
	}
	if bus != nil {
		bus.Subscribe(event.GroupUserAdded, ros.handleGroupEvent, event.DefaultPriority)
		bus.Subscribe(event.GroupUserDeleted, ros.handleGroupEvent, event.DefaultPriority)
		bus.Subscribe(event.GroupRenamed, ros.handleGroupEvent, event.DefaultPriority)
		bus.Subscribe(event.GroupVisibilityChanged, ros.handleGroupEvent, event.DefaultPriority)
	}
	return ros
}

// MatchesIQ returns whether or not an IQ should be processed by the roster
// module.
func (r *Roster) MatchesIQ(iq *xmpp.IQ) bool {
	return iq.Elements().ChildNamespace("query", rosterNamespace) != nil
}

// ProcessIQ processes a roster IQ taking according actions over the
// associated stream.
func (r *Roster) ProcessIQ(ctx context.Context, iq *xmpp.IQ) {
	r.runQueue.Post(func() {
		q := iq.Elements().ChildNamespace("query", rosterNamespace)
		switch {
		case iq.IsGet():
			r.sendRoster(ctx, iq, q)
		case iq.IsSet():
			r.updateRoster(ctx, iq, q)
		default:
			_ = r.router.Route(ctx, iq.BadRequestError())
		}
	})
}

// ProcessPresence processes a roster presence taking according actions over
// the associated streams.
func (r *Roster) ProcessPresence(ctx context.Context, presence *xmpp.Presence) {
	r.runQueue.Post(func() {
		if err := r.processPresence(ctx, presence); err != nil {
			log.Error(err)
		}
	})
}

// Shutdown shuts down the roster module waiting for pending activity to be
// processed.
func (r *Roster) Shutdown() error {
	c := make(chan struct{})
	r.runQueue.Post(func() { close(c) })
	<-c
	return nil
}

func (r *Roster) sendRoster(ctx context.Context, iq *xmpp.IQ, query xmpp.XElement) {
	if query.Elements().Count() > 0 {
		_ = r.router.Route(ctx, iq.BadRequestError())
		return
	}
	userJID := iq.FromJID()

	log.Infof("retrieving user roster... (%s/%s)", userJID.Node(), userJID.Resource())

	ur, err := r.getRoster(ctx, userJID.Node())
	if err != nil {
		log.Error(err)
		_ = r.router.Route(ctx, iq.InternalServerError())
		return
	}
	items, ver := ur.snapshot()

	v := parseVer(query.Attributes().Get("ver"))

	res := iq.ResultIQ()
	if !r.cfg.Versioning || v == 0 || v < ver.DeletionVer {
		// push the whole roster
		q := xmpp.NewElementNamespace("query", rosterNamespace)
		if r.cfg.Versioning {
			q.SetAttribute("ver", fmt.Sprintf("v%d", ver.Ver))
		}
		for _, itm := range items {
			q.AppendElement(itm.Element())
		}
		res.AppendElement(q)
		_ = r.router.Route(ctx, res)
	} else {
		// push roster changes, skipping items implied by group membership
		_ = r.router.Route(ctx, res)
		for _, itm := range items {
			if itm.ID == 0 || itm.Ver <= v {
				continue
			}
			pushIQ := xmpp.NewIQType(uuid.New(), xmpp.SetType)
			pushIQ.SetFromJID(userJID.ToBareJID())
			pushIQ.SetToJID(userJID)
			q := xmpp.NewElementNamespace("query", rosterNamespace)
			q.SetAttribute("ver", fmt.Sprintf("v%d", itm.Ver))
			q.AppendElement(itm.Element())
			pushIQ.AppendElement(q)
			_ = r.router.Route(ctx, pushIQ)
		}
	}
	r.markRequested(userJID)
}

func (r *Roster) updateRoster(ctx context.Context, iq *xmpp.IQ, query xmpp.XElement) {
	itms := query.Elements().Children("item")
	if len(itms) != 1 {
		_ = r.router.Route(ctx, iq.BadRequestError())
		return
	}
	ri, err := rostermodel.NewItem(itms[0])
	if err != nil {
		_ = r.router.Route(ctx, iq.BadRequestError())
		return
	}
	ri.Username = iq.FromJID().Node()

	switch ri.Subscription {
	case rostermodel.SubscriptionRemove:
		switch err := r.removeItem(ctx, ri, iq.FromJID().ToBareJID()); err {
		case nil:
		case errSharedItemRemove:
			_ = r.router.Route(ctx, iq.NotAllowedError())
			return
		default:
			log.Error(err)
			_ = r.router.Route(ctx, iq.InternalServerError())
			return
		}
	default:
		if err := r.updateItem(ctx, ri, iq.FromJID().ToBareJID()); err != nil {
			log.Error(err)
			_ = r.router.Route(ctx, iq.InternalServerError())
			return
		}
	}
	_ = r.router.Route(ctx, iq.ResultIQ())
}

// updateItem creates or updates the user item associated to the given
// contact. Editing an item that so far existed only through shared group
// membership promotes it to a durably stored one, preserving the derived
// subscription state.
func (r *Roster) updateItem(ctx context.Context, ri *rostermodel.Item, userJID *jid.JID) error {
	username := userJID.Node()
	contactJID := ri.ContactJID().ToBareJID()

	log.Infof("updating roster item - contact: %s (%s)", contactJID, username)

	usrRi, err := storage.FetchRosterItem(ctx, username, contactJID.String())
	if err != nil {
		return err
	}
	if usrRi != nil {
		// update stored roster item
		if len(ri.Name) > 0 {
			usrRi.Name = ri.Name
		}
		usrRi.Groups = ri.Groups

	} else if shared := r.cachedItem(ctx, username, contactJID.String()); shared != nil {
		// promote a shared only item
		usrRi = &rostermodel.Item{
			Username:              username,
			JID:                   contactJID.String(),
			Name:                  ri.Name,
			Subscription:          shared.Subscription,
			Ask:                   shared.Ask,
			Groups:                ri.Groups,
			SharedGroups:          shared.SharedGroups,
			InvisibleSharedGroups: shared.InvisibleSharedGroups,
		}
	} else {
		usrRi = &rostermodel.Item{
			Username:     username,
			JID:          contactJID.String(),
			Name:         ri.Name,
			Subscription: rostermodel.SubscriptionNone,
			Groups:       ri.Groups,
			Ask:          ri.Ask,
		}
	}
	return r.upsertItem(ctx, usrRi, userJID)
}

func (r *Roster) removeItem(ctx context.Context, ri *rostermodel.Item, userJID *jid.JID) error {
	var unsubscribe, unsubscribed *xmpp.Presence

	username := userJID.Node()
	contactJID := ri.ContactJID().ToBareJID()

	log.Infof("removing roster item: %v (%s)", contactJID, username)

	usrRi, err := storage.FetchRosterItem(ctx, username, contactJID.String())
	if err != nil {
		return err
	}
	if usrRi == nil {
		if shared := r.cachedItem(ctx, username, contactJID.String()); shared != nil && shared.IsOnlyShared() {
			return errSharedItemRemove
		}
	}
	usrSub := rostermodel.SubscriptionNone
	if usrRi != nil {
		usrSub = usrRi.Subscription
		switch usrSub {
		case rostermodel.SubscriptionTo:
			unsubscribe = xmpp.NewPresence(userJID, contactJID, xmpp.UnsubscribeType)
		case rostermodel.SubscriptionFrom:
			unsubscribed = xmpp.NewPresence(userJID, contactJID, xmpp.UnsubscribedType)
		case rostermodel.SubscriptionBoth:
			unsubscribe = xmpp.NewPresence(userJID, contactJID, xmpp.UnsubscribeType)
			unsubscribed = xmpp.NewPresence(userJID, contactJID, xmpp.UnsubscribedType)
		}
		usrRi.Subscription = rostermodel.SubscriptionRemove
		usrRi.Ask = false

		if err := storage.DeleteRosterNotification(ctx, contactJID.Node(), userJID.String()); err != nil {
			return err
		}
		if err := r.deleteItem(ctx, usrRi, userJID); err != nil {
			return err
		}
	}

	if r.router.IsLocalHost(contactJID.Domain()) {
		cntRi, err := storage.FetchRosterItem(ctx, contactJID.Node(), userJID.String())
		if err != nil {
			return err
		}
		if cntRi != nil {
			if cntRi.Subscription == rostermodel.SubscriptionFrom || cntRi.Subscription == rostermodel.SubscriptionBoth {
				r.routePresencesFrom(ctx, contactJID, userJID, xmpp.UnavailableType)
			}
			switch cntRi.Subscription {
			case rostermodel.SubscriptionBoth:
				cntRi.Subscription = rostermodel.SubscriptionTo
			default:
				cntRi.Subscription = rostermodel.SubscriptionNone
			}
			if err := r.upsertItem(ctx, cntRi, contactJID); err != nil {
				return err
			}
		}
	}
	if unsubscribe != nil {
		_ = r.router.Route(ctx, unsubscribe)
	}
	if unsubscribed != nil {
		_ = r.router.Route(ctx, unsubscribed)
	}
	if usrSub == rostermodel.SubscriptionFrom || usrSub == rostermodel.SubscriptionBoth {
		r.routePresencesFrom(ctx, userJID, contactJID, xmpp.UnavailableType)
	}
	return nil
}

// upsertItem stores a roster item and notifies all requesting resources of
// the owner.
func (r *Roster) upsertItem(ctx context.Context, ri *rostermodel.Item, pushTo *jid.JID) error {
	v, err := storage.UpsertRosterItem(ctx, ri)
	if err != nil {
		return err
	}
	ri.Ver = v.Ver
	r.cache.invalidate(pushTo.Node())
	return r.pushItem(ctx, ri, pushTo)
}

// deleteItem removes a stored roster item and notifies all requesting
// resources of the owner.
func (r *Roster) deleteItem(ctx context.Context, ri *rostermodel.Item, pushTo *jid.JID) error {
	v, err := storage.DeleteRosterItem(ctx, ri.Username, ri.JID)
	if err != nil {
		return err
	}
	ri.Ver = v.Ver
	r.cache.invalidate(pushTo.Node())
	return r.pushItem(ctx, ri, pushTo)
}

// pushItem broadcasts a roster item update to every resource of the owner
// that previously requested the roster.
func (r *Roster) pushItem(ctx context.Context, ri *rostermodel.Item, to *jid.JID) error {
	query := xmpp.NewElementNamespace("query", rosterNamespace)
	if r.cfg.Versioning {
		query.SetAttribute("ver", fmt.Sprintf("v%d", ri.Ver))
	}
	query.AppendElement(ri.Element())

	stms := r.router.UserStreams(to.Node())
	for _, stm := range stms {
		requested, _ := stm.Value(rosterRequestedCtxKey).(bool)
		if !requested {
			continue
		}
		pushIQ := xmpp.NewIQType(uuid.New(), xmpp.SetType)
		pushIQ.SetFromJID(to.ToBareJID())
		pushIQ.SetToJID(stm.JID())
		pushIQ.AppendElement(query)
		stm.SendElement(ctx, pushIQ)
	}
	return nil
}

// markRequested flags the requesting resource so that subsequent roster
// pushes reach it.
func (r *Roster) markRequested(userJID *jid.JID) {
	for _, stm := range r.router.UserStreams(userJID.Node()) {
		if stm.Resource() == userJID.Resource() {
			stm.SetValue(rosterRequestedCtxKey, true)
		}
	}
}

func parseVer(ver string) int {
	if len(ver) > 0 && ver[0] == 'v' {
		v, _ := strconv.Atoi(ver[1:])
		return v
	}
	return 0
}
