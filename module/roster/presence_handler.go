/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package roster

import (
	"context"

	"github.com/conclave-im/conclave/log"
	"github.com/conclave-im/conclave/model/rostermodel"
	"github.com/conclave-im/conclave/storage"
	"github.com/conclave-im/conclave/xmpp"
	"github.com/conclave-im/conclave/xmpp/jid"
)

func (r *Roster) processPresence(ctx context.Context, presence *xmpp.Presence) error {
	switch presence.Type() {
	case xmpp.SubscribeType:
		return r.processSubscribe(ctx, presence)
	case xmpp.SubscribedType:
		return r.processSubscribed(ctx, presence)
	case xmpp.UnsubscribeType:
		return r.processUnsubscribe(ctx, presence)
	case xmpp.UnsubscribedType:
		return r.processUnsubscribed(ctx, presence)
	case xmpp.ProbeType:
		return r.processProbePresence(ctx, presence)
	case xmpp.AvailableType, xmpp.UnavailableType:
		return r.processAvailablePresence(ctx, presence)
	}
	return nil
}

func (r *Roster) processSubscribe(ctx context.Context, presence *xmpp.Presence) error {
	userJID := presence.FromJID().ToBareJID()
	contactJID := presence.ToJID().ToBareJID()

	log.Infof("processing 'subscribe' - contact: %s (%s)", contactJID, userJID)

	if r.router.IsLocalHost(userJID.Domain()) {
		usrRi, err := storage.FetchRosterItem(ctx, userJID.Node(), contactJID.String())
		if err != nil {
			return err
		}
		if usrRi != nil {
			switch usrRi.Subscription {
			case rostermodel.SubscriptionTo, rostermodel.SubscriptionBoth:
				return nil // already subscribed
			default:
				if !usrRi.Ask {
					usrRi.Ask = true
				} else {
					return nil // notification already sent
				}
			}
		} else {
			// create roster item if not previously created
			usrRi = &rostermodel.Item{
				Username:     userJID.Node(),
				JID:          contactJID.String(),
				Subscription: rostermodel.SubscriptionNone,
				Ask:          true,
			}
		}
		if err := r.upsertItem(ctx, usrRi, userJID); err != nil {
			return err
		}
	}
	// stamp the presence stanza of type "subscribe" with the user's bare JID as the 'from' address
	p := xmpp.NewPresence(userJID, contactJID, xmpp.SubscribeType)
	p.AppendElements(presence.Elements().All())

	if r.router.IsLocalHost(contactJID.Domain()) {
		// archive roster approval notification
		rn := &rostermodel.Notification{
			Contact:  contactJID.Node(),
			JID:      userJID.String(),
			Presence: p,
		}
		if err := storage.UpsertRosterNotification(ctx, rn); err != nil {
			return err
		}
	}
	r.routeIsolated(ctx, p)
	return nil
}

func (r *Roster) processSubscribed(ctx context.Context, presence *xmpp.Presence) error {
	userJID := presence.ToJID().ToBareJID()
	contactJID := presence.FromJID().ToBareJID()

	log.Infof("processing 'subscribed' - user: %s (%s)", userJID, contactJID)

	if r.router.IsLocalHost(contactJID.Domain()) {
		if _, err := r.deleteNotification(ctx, contactJID.Node(), userJID); err != nil {
			return err
		}
		cntRi, err := storage.FetchRosterItem(ctx, contactJID.Node(), userJID.String())
		if err != nil {
			return err
		}
		if cntRi != nil {
			switch cntRi.Subscription {
			case rostermodel.SubscriptionTo:
				cntRi.Subscription = rostermodel.SubscriptionBoth
			case rostermodel.SubscriptionNone:
				cntRi.Subscription = rostermodel.SubscriptionFrom
			}
		} else {
			// create roster item if not previously created
			cntRi = &rostermodel.Item{
				Username:     contactJID.Node(),
				JID:          userJID.String(),
				Subscription: rostermodel.SubscriptionFrom,
				Ask:          false,
			}
		}
		if err := r.upsertItem(ctx, cntRi, contactJID); err != nil {
			return err
		}
	}
	// stamp the presence stanza of type "subscribed" with the contact's bare JID as the 'from' address
	p := xmpp.NewPresence(contactJID, userJID, xmpp.SubscribedType)
	p.AppendElements(presence.Elements().All())

	if r.router.IsLocalHost(userJID.Domain()) {
		usrRi, err := storage.FetchRosterItem(ctx, userJID.Node(), contactJID.String())
		if err != nil {
			return err
		}
		if usrRi != nil {
			switch usrRi.Subscription {
			case rostermodel.SubscriptionFrom:
				usrRi.Subscription = rostermodel.SubscriptionBoth
			case rostermodel.SubscriptionNone:
				usrRi.Subscription = rostermodel.SubscriptionTo
			default:
				return nil
			}
			usrRi.Ask = false
			if err := r.upsertItem(ctx, usrRi, userJID); err != nil {
				return err
			}
		}
	}
	r.routeIsolated(ctx, p)
	r.routePresencesFrom(ctx, contactJID, userJID, xmpp.AvailableType)
	return nil
}

func (r *Roster) processUnsubscribe(ctx context.Context, presence *xmpp.Presence) error {
	userJID := presence.FromJID().ToBareJID()
	contactJID := presence.ToJID().ToBareJID()

	log.Infof("processing 'unsubscribe' - contact: %s (%s)", contactJID, userJID)

	usrSub := rostermodel.SubscriptionNone
	if r.router.IsLocalHost(userJID.Domain()) {
		usrRi, err := storage.FetchRosterItem(ctx, userJID.Node(), contactJID.String())
		if err != nil {
			return err
		}
		if usrRi != nil {
			usrSub = usrRi.Subscription
			switch usrSub {
			case rostermodel.SubscriptionBoth:
				usrRi.Subscription = rostermodel.SubscriptionFrom
			default:
				usrRi.Subscription = rostermodel.SubscriptionNone
			}
			if err := r.upsertItem(ctx, usrRi, userJID); err != nil {
				return err
			}
		}
	}
	// stamp the presence stanza of type "unsubscribe" with the user's bare JID as the 'from' address
	p := xmpp.NewPresence(userJID, contactJID, xmpp.UnsubscribeType)
	p.AppendElements(presence.Elements().All())

	if r.router.IsLocalHost(contactJID.Domain()) {
		cntRi, err := storage.FetchRosterItem(ctx, contactJID.Node(), userJID.String())
		if err != nil {
			return err
		}
		if cntRi != nil {
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
	r.routeIsolated(ctx, p)

	if usrSub == rostermodel.SubscriptionTo || usrSub == rostermodel.SubscriptionBoth {
		r.routePresencesFrom(ctx, contactJID, userJID, xmpp.UnavailableType)
	}
	return nil
}

func (r *Roster) processUnsubscribed(ctx context.Context, presence *xmpp.Presence) error {
	userJID := presence.ToJID().ToBareJID()
	contactJID := presence.FromJID().ToBareJID()

	log.Infof("processing 'unsubscribed' - user: %s (%s)", userJID, contactJID)

	cntSub := rostermodel.SubscriptionNone
	deleted := false
	if r.router.IsLocalHost(contactJID.Domain()) {
		var err error
		deleted, err = r.deleteNotification(ctx, contactJID.Node(), userJID)
		if err != nil {
			return err
		}
		// do not change subscription state when cancelling a pending subscription request
		if !deleted {
			cntRi, err := storage.FetchRosterItem(ctx, contactJID.Node(), userJID.String())
			if err != nil {
				return err
			}
			if cntRi != nil {
				cntSub = cntRi.Subscription
				switch cntSub {
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
	}
	// stamp the presence stanza of type "unsubscribed" with the contact's bare JID as the 'from' address
	p := xmpp.NewPresence(contactJID, userJID, xmpp.UnsubscribedType)
	p.AppendElements(presence.Elements().All())

	if r.router.IsLocalHost(userJID.Domain()) {
		usrRi, err := storage.FetchRosterItem(ctx, userJID.Node(), contactJID.String())
		if err != nil {
			return err
		}
		if usrRi != nil {
			if !usrRi.Ask { // pending out
				switch usrRi.Subscription {
				case rostermodel.SubscriptionBoth:
					usrRi.Subscription = rostermodel.SubscriptionFrom
				default:
					usrRi.Subscription = rostermodel.SubscriptionNone
				}
			}
			usrRi.Ask = false
			if err := r.upsertItem(ctx, usrRi, userJID); err != nil {
				return err
			}
		}
	}
	r.routeIsolated(ctx, p)

	if cntSub == rostermodel.SubscriptionFrom || cntSub == rostermodel.SubscriptionBoth {
		r.routePresencesFrom(ctx, contactJID, userJID, xmpp.UnavailableType)
	}
	return nil
}

func (r *Roster) processProbePresence(ctx context.Context, presence *xmpp.Presence) error {
	userJID := presence.ToJID().ToBareJID()
	contactJID := presence.FromJID().ToBareJID()

	log.Infof("processing 'probe' - user: %s (%s)", userJID, contactJID)

	ur, err := r.getRoster(ctx, userJID.Node())
	if err != nil {
		return err
	}
	itm := ur.item(contactJID.String())
	usr, err := storage.FetchUser(ctx, userJID.Node())
	if err != nil {
		return err
	}
	if usr == nil || itm == nil || (itm.Subscription != rostermodel.SubscriptionBoth && itm.Subscription != rostermodel.SubscriptionFrom) {
		r.routeIsolated(ctx, xmpp.NewPresence(userJID, contactJID, xmpp.UnsubscribedType))
		return nil
	}
	if usr.LastPresence != nil {
		p := xmpp.NewPresence(usr.LastPresence.FromJID(), contactJID, usr.LastPresence.Type())
		p.AppendElements(usr.LastPresence.Elements().All())
		r.routeIsolated(ctx, p)
	}
	return nil
}

func (r *Roster) processAvailablePresence(ctx context.Context, presence *xmpp.Presence) error {
	fromJID := presence.FromJID()

	userJID := fromJID.ToBareJID()
	contactJID := presence.ToJID().ToBareJID()

	replyOnBehalf := r.router.IsLocalHost(userJID.Domain()) && userJID.Matches(contactJID, jid.MatchesBare)

	// keep track of available presences
	if presence.IsAvailable() {
		log.Infof("processing 'available' - user: %s", fromJID)
		if _, loaded := r.online.LoadOrStore(fromJID.String(), presence); !loaded {
			if replyOnBehalf {
				if err := r.deliverRosterPresences(ctx, userJID); err != nil {
					return err
				}
			}
		}
	} else {
		log.Infof("processing 'unavailable' - user: %s", fromJID)
		r.online.Delete(fromJID.String())
	}
	if replyOnBehalf {
		return r.broadcastPresence(ctx, presence)
	}
	return r.router.Route(ctx, presence)
}

// deliverRosterPresences sends a just connected user its pending approval
// notifications followed by the available presences of every subscribed
// contact.
func (r *Roster) deliverRosterPresences(ctx context.Context, userJID *jid.JID) error {
	rns, err := storage.FetchRosterNotifications(ctx, userJID.Node())
	if err != nil {
		return err
	}
	for _, rn := range rns {
		fromJID, _ := jid.NewWithString(rn.JID, true)
		p := xmpp.NewPresence(fromJID, userJID, xmpp.SubscribeType)
		if rn.Presence != nil {
			p.AppendElements(rn.Presence.Elements().All())
		}
		r.routeIsolated(ctx, p)
	}

	ur, err := r.getRoster(ctx, userJID.Node())
	if err != nil {
		return err
	}
	items, _ := ur.snapshot()
	for _, itm := range items {
		switch itm.Subscription {
		case rostermodel.SubscriptionTo, rostermodel.SubscriptionBoth:
			contactJID := itm.ContactJID()
			if !r.router.IsLocalHost(contactJID.Domain()) {
				r.routeIsolated(ctx, xmpp.NewPresence(userJID, contactJID, xmpp.ProbeType))
				continue
			}
			r.routePresencesFrom(ctx, contactJID, userJID, xmpp.AvailableType)
		}
	}
	return nil
}

// broadcastPresence delivers a presence change to every contact subscribed
// to the sender, shared group contacts included. The recipient list is
// snapshotted before any delivery, recipients blocked by the sender's
// privacy list are dropped, and a failed delivery never aborts the
// remaining ones.
func (r *Roster) broadcastPresence(ctx context.Context, presence *xmpp.Presence) error {
	fromJID := presence.FromJID()

	ur, err := r.getRoster(ctx, fromJID.Node())
	if err != nil {
		return err
	}
	items, _ := ur.snapshot()

	var outbound []*xmpp.Presence
	for _, itm := range items {
		switch itm.Subscription {
		case rostermodel.SubscriptionFrom, rostermodel.SubscriptionBoth:
			p := xmpp.NewPresence(fromJID, itm.ContactJID(), presence.Type())
			p.AppendElements(presence.Elements().All())
			if r.checker != nil && r.checker.ShouldBlockPacket(fromJID.Node(), p) {
				continue
			}
			outbound = append(outbound, p)
		}
	}
	for _, p := range outbound {
		r.routeIsolated(ctx, p)
	}

	// update last received presence
	usr, err := storage.FetchUser(ctx, fromJID.Node())
	if err != nil {
		return err
	}
	if usr != nil {
		usr.LastPresence = presence
		return storage.UpsertUser(ctx, usr)
	}
	return nil
}

// routePresencesFrom forwards the current presence of every online resource
// of a user to the given destination.
func (r *Roster) routePresencesFrom(ctx context.Context, from *jid.JID, to *jid.JID, presenceType string) {
	for _, stm := range r.router.UserStreams(from.Node()) {
		p := xmpp.NewPresence(stm.JID(), to.ToBareJID(), presenceType)
		if presence := stm.Presence(); presence != nil && presence.IsAvailable() {
			p.AppendElements(presence.Elements().All())
		}
		r.routeIsolated(ctx, p)
	}
}

// routeIsolated routes a stanza logging any failure instead of propagating
// it, so that one broken route does not starve the remaining recipients.
func (r *Roster) routeIsolated(ctx context.Context, stanza xmpp.Stanza) {
	if err := r.router.Route(ctx, stanza); err != nil {
		log.Warnf("roster: failed to route stanza to %s: %v", stanza.ToJID(), err)
	}
}

func (r *Roster) deleteNotification(ctx context.Context, contact string, userJID *jid.JID) (bool, error) {
	rns, err := storage.FetchRosterNotifications(ctx, contact)
	if err != nil {
		return false, err
	}
	found := false
	for _, rn := range rns {
		if rn.JID == userJID.String() {
			found = true
			break
		}
	}
	if !found {
		return false, nil
	}
	if err := storage.DeleteRosterNotification(ctx, contact, userJID.String()); err != nil {
		return false, err
	}
	return true, nil
}
