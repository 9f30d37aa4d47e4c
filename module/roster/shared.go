/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package roster

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/c-pro/geche"
	"github.com/conclave-im/conclave/event"
	"github.com/conclave-im/conclave/group"
	"github.com/conclave-im/conclave/log"
	"github.com/conclave-im/conclave/model/groupmodel"
	"github.com/conclave-im/conclave/model/rostermodel"
	"github.com/conclave-im/conclave/storage"
	"github.com/conclave-im/conclave/xmpp/jid"
	"golang.org/x/sync/singleflight"
)

// errSharedItemRemove is returned when trying to remove an item that exists
// only through shared group membership.
var errSharedItemRemove = errors.New("roster: cannot remove a shared group item")

// userRoster holds the merged roster of a single user: durably stored items
// plus the items implied by shared group membership. Implied items carry a
// zero ID and never reach storage until promoted by an explicit user edit.
type userRoster struct {
	username string

	mu    sync.RWMutex
	ver   rostermodel.Version
	items map[string]*rostermodel.Item
}

// snapshot returns a copy of every roster item, sorted by contact JID, plus
// the stored roster version.
func (ur *userRoster) snapshot() ([]rostermodel.Item, rostermodel.Version) {
	ur.mu.RLock()
	defer ur.mu.RUnlock()

	items := make([]rostermodel.Item, 0, len(ur.items))
	for _, itm := range ur.items {
		items = append(items, *itm)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].JID < items[j].JID })
	return items, ur.ver
}

// item returns a copy of the roster item associated to a contact, if any.
func (ur *userRoster) item(contactJID string) *rostermodel.Item {
	ur.mu.RLock()
	defer ur.mu.RUnlock()

	itm := ur.items[contactJID]
	if itm == nil {
		return nil
	}
	cp := *itm
	return &cp
}

// rosterCache keeps the merged roster of every active user, built at most
// once per user through a singleflight group.
type rosterCache struct {
	entries geche.Geche[string, *userRoster]
	flight  singleflight.Group
}

func newRosterCache() *rosterCache {
	return &rosterCache{entries: geche.NewMapCache[string, *userRoster]()}
}

// load returns the cached roster of a user, building it through buildFn on
// first access. Concurrent first accesses share a single build.
func (rc *rosterCache) load(username string, buildFn func() (*userRoster, error)) (*userRoster, error) {
	if ur, err := rc.entries.Get(username); err == nil {
		return ur, nil
	}
	v, err, _ := rc.flight.Do(username, func() (interface{}, error) {
		if ur, err := rc.entries.Get(username); err == nil {
			return ur, nil
		}
		ur, err := buildFn()
		if err != nil {
			return nil, err
		}
		rc.entries.Set(username, ur)
		return ur, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*userRoster), nil
}

func (rc *rosterCache) invalidate(username string) {
	_ = rc.entries.Del(username)
}

func (rc *rosterCache) invalidateAll() {
	for username := range rc.entries.Snapshot() {
		_ = rc.entries.Del(username)
	}
}

// getRoster returns the merged roster of a user, building it on first
// access.
func (r *Roster) getRoster(ctx context.Context, username string) (*userRoster, error) {
	return r.cache.load(username, func() (*userRoster, error) {
		return r.buildRoster(ctx, username)
	})
}

// cachedItem returns the merged roster item of a user for a contact, or nil
// when no such item exists.
func (r *Roster) cachedItem(ctx context.Context, username, contactJID string) *rostermodel.Item {
	ur, err := r.getRoster(ctx, username)
	if err != nil {
		log.Error(err)
		return nil
	}
	return ur.item(contactJID)
}

// buildRoster merges the durably stored items of a user with the items
// implied by shared group membership, projecting the members of every group
// visible to the user. Contacts without a stored item get their subscription
// derived from group visibility; stored personal items sharing a group with
// the user are widened to a mutual subscription instead.
func (r *Roster) buildRoster(ctx context.Context, username string) (*userRoster, error) {
	ownerBare := r.bareJIDString(username)

	stored, ver, err := storage.FetchRosterItems(ctx, username)
	if err != nil {
		return nil, err
	}
	ownerGroups, err := r.groups.UserGroups(ctx, ownerBare)
	if err != nil {
		return nil, err
	}
	visibleGroups, err := r.groups.VisibleGroups(ctx, ownerBare)
	if err != nil {
		return nil, err
	}
	sortGroups(visibleGroups)

	ur := &userRoster{
		username: username,
		ver:      ver,
		items:    make(map[string]*rostermodel.Item, len(stored)),
	}
	for i := range stored {
		itm := stored[i]
		itm.SharedGroups = nil
		itm.InvisibleSharedGroups = nil
		ur.items[itm.JID] = &itm
	}
	for gi := range visibleGroups {
		g := &visibleGroups[gi]
		for _, member := range g.Members() {
			if member == ownerBare {
				continue
			}
			if _, err := r.mergeSharedContact(ctx, ur, ownerBare, ownerGroups, member, g); err != nil {
				return nil, err
			}
		}
	}
	return ur, nil
}

// mergeSharedContact derives or widens the roster entry of a contact that is
// reachable through shared group g, returning the resulting item when the
// entry changed.
func (r *Roster) mergeSharedContact(ctx context.Context, ur *userRoster, ownerBare string, ownerGroups []groupmodel.Group, contactBare string, g *groupmodel.Group) (*rostermodel.Item, error) {
	visible := group.IsGroupVisibleTo(g, ownerBare, ownerGroups)

	contactGroups, err := r.groups.UserGroups(ctx, contactBare)
	if err != nil {
		return nil, err
	}
	derived := derivedSubscription(ownerBare, ownerGroups, contactBare, contactGroups, g)

	ur.mu.Lock()
	defer ur.mu.Unlock()

	itm := ur.items[contactBare]
	if itm == nil {
		itm = &rostermodel.Item{
			Username:     ur.username,
			JID:          contactBare,
			Subscription: derived,
		}
		ur.items[contactBare] = itm
		attachSharedGroup(itm, g.RosterName(), visible)
		cp := *itm
		return &cp, nil
	}
	attachSharedGroup(itm, g.RosterName(), visible)
	target := derived
	if itm.ID != 0 && g.IsMember(ownerBare) {
		// a stored personal contact sharing a group with the owner is mutual
		target = rostermodel.SubscriptionBoth
	}
	widened := widenSubscription(itm.Subscription, target)
	if widened == itm.Subscription {
		return nil, nil
	}
	itm.Subscription = widened
	cp := *itm
	return &cp, nil
}

// derivedSubscription resolves the subscription state of a contact implied
// by shared group membership. Reciprocal visibility yields a mutual
// subscription. One directional visibility defaults to "from", refined to
// "to" when the contact belongs to the group that triggered the derivation;
// during a full roster build the triggering group is the owner's first
// shared group, in name order, that contains the contact.
func derivedSubscription(ownerBare string, ownerGroups []groupmodel.Group, contactBare string, contactGroups []groupmodel.Group, triggering *groupmodel.Group) string {
	if group.MutuallyVisible(ownerBare, ownerGroups, contactBare, contactGroups) {
		return rostermodel.SubscriptionBoth
	}
	for _, g := range contactGroups {
		if g.Name == triggering.Name {
			return rostermodel.SubscriptionTo
		}
	}
	return rostermodel.SubscriptionFrom
}

// widenSubscription merges a derived subscription into the current one.
// Subscriptions only ever widen: "to" plus "from" becomes "both" and no
// transition ever narrows an existing state.
func widenSubscription(current, derived string) string {
	switch {
	case current == rostermodel.SubscriptionBoth || derived == rostermodel.SubscriptionBoth:
		return rostermodel.SubscriptionBoth
	case current == rostermodel.SubscriptionTo && derived == rostermodel.SubscriptionFrom:
		return rostermodel.SubscriptionBoth
	case current == rostermodel.SubscriptionFrom && derived == rostermodel.SubscriptionTo:
		return rostermodel.SubscriptionBoth
	case current == rostermodel.SubscriptionNone || current == "":
		return derived
	}
	return current
}

func attachSharedGroup(itm *rostermodel.Item, rosterName string, visible bool) {
	if visible {
		itm.AddSharedGroup(rosterName)
	} else {
		itm.AddInvisibleSharedGroup(rosterName)
	}
}

func (r *Roster) handleGroupEvent(ctx context.Context, ev *event.Event) error {
	inf, ok := ev.Info.(*event.GroupEventInfo)
	if !ok {
		return nil
	}
	switch ev.Name {
	case event.GroupUserAdded:
		return r.groupUserAdded(ctx, inf)
	case event.GroupUserDeleted:
		return r.groupUserDeleted(ctx, inf)
	case event.GroupRenamed:
		return r.groupRenamed(ctx, inf)
	case event.GroupVisibilityChanged:
		r.cache.invalidateAll()
	}
	return nil
}

// groupUserAdded incrementally re-derives the roster entry for the added
// member in the cached roster of every other group member.
func (r *Roster) groupUserAdded(ctx context.Context, inf *event.GroupEventInfo) error {
	g, err := r.groups.GetGroup(ctx, inf.GroupName)
	if err != nil {
		return err
	}
	if g == nil {
		return nil
	}
	r.invalidateBare(inf.Username)

	for username, ur := range r.cache.entries.Snapshot() {
		ownerBare := r.bareJIDString(username)
		if ownerBare == inf.Username {
			continue
		}
		ownerGroups, err := r.groups.UserGroups(ctx, ownerBare)
		if err != nil {
			return err
		}
		if !group.IsGroupVisibleTo(g, ownerBare, ownerGroups) {
			continue
		}
		itm, err := r.mergeSharedContact(ctx, ur, ownerBare, ownerGroups, inf.Username, g)
		if err != nil {
			return err
		}
		if itm != nil {
			r.pushCachedItem(ctx, itm, ownerBare)
		}
	}
	return nil
}

// groupUserDeleted detaches the group from the removed member's entry in
// every cached roster. Entries that existed only through that group are
// dropped; stored personal items keep their subscription untouched.
func (r *Roster) groupUserDeleted(ctx context.Context, inf *event.GroupEventInfo) error {
	rosterNames := []string{inf.GroupName}
	if g, err := r.groups.GetGroup(ctx, inf.GroupName); err != nil {
		return err
	} else if g != nil && g.RosterName() != inf.GroupName {
		rosterNames = append(rosterNames, g.RosterName())
	}
	r.invalidateBare(inf.Username)

	for username, ur := range r.cache.entries.Snapshot() {
		ur.mu.Lock()
		itm := ur.items[inf.Username]
		if itm == nil {
			ur.mu.Unlock()
			continue
		}
		attached := false
		for _, name := range rosterNames {
			for _, sg := range itm.SharedGroups {
				if sg == name {
					attached = true
				}
			}
			for _, sg := range itm.InvisibleSharedGroups {
				if sg == name {
					attached = true
				}
			}
		}
		if !attached {
			ur.mu.Unlock()
			continue
		}
		for _, name := range rosterNames {
			itm.RemoveSharedGroup(name)
		}
		var push *rostermodel.Item
		if itm.ID == 0 && !itm.IsShared() {
			delete(ur.items, inf.Username)
			push = &rostermodel.Item{
				Username:     username,
				JID:          inf.Username,
				Subscription: rostermodel.SubscriptionRemove,
			}
		} else {
			cp := *itm
			push = &cp
		}
		ur.mu.Unlock()
		r.pushCachedItem(ctx, push, r.bareJIDString(username))
	}
	return nil
}

// groupRenamed rewrites the group tag on every cached roster item that
// carries the previous roster name.
func (r *Roster) groupRenamed(ctx context.Context, inf *event.GroupEventInfo) error {
	g, err := r.groups.GetGroup(ctx, inf.GroupName)
	if err != nil {
		return err
	}
	if g == nil {
		return nil
	}
	newName := g.RosterName()
	for username, ur := range r.cache.entries.Snapshot() {
		ur.mu.Lock()
		var changed []*rostermodel.Item
		for _, itm := range ur.items {
			renamed := false
			for _, sg := range itm.SharedGroups {
				if sg == inf.PrevName {
					renamed = true
				}
			}
			if !renamed {
				continue
			}
			itm.RemoveSharedGroup(inf.PrevName)
			itm.AddSharedGroup(newName)
			cp := *itm
			changed = append(changed, &cp)
		}
		ur.mu.Unlock()
		for _, itm := range changed {
			r.pushCachedItem(ctx, itm, r.bareJIDString(username))
		}
	}
	return nil
}

func (r *Roster) pushCachedItem(ctx context.Context, itm *rostermodel.Item, ownerBare string) {
	ownerJID, err := jid.NewWithString(ownerBare, true)
	if err != nil {
		return
	}
	if err := r.pushItem(ctx, itm, ownerJID); err != nil {
		log.Error(err)
	}
}

func (r *Roster) invalidateBare(bare string) {
	r.cache.invalidate(nodeOf(bare))
}

func (r *Roster) bareJIDString(username string) string {
	return username + "@" + r.router.DefaultHostName()
}

func nodeOf(bare string) string {
	j, err := jid.NewWithString(bare, true)
	if err != nil {
		return bare
	}
	return j.Node()
}

func sortGroups(groups []groupmodel.Group) {
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
}
