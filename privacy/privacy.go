/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package privacy

import (
	"errors"
	"sort"
	"sync"

	"github.com/conclave-im/conclave/xmpp"
	"github.com/conclave-im/conclave/xmpp/jid"
)

// ErrListNotFound is returned when activating a list that does not exist.
var ErrListNotFound = errors.New("privacy: list not found")

// Checker decides whether an outbound packet should be withheld from its
// destination on behalf of a user.
type Checker interface {
	ShouldBlockPacket(username string, packet xmpp.Stanza) bool
}

// Item is a single privacy list rule matched against the packet peer JID.
type Item struct {
	JID   *jid.JID
	Allow bool
	Order int
}

// List is a named, ordered set of privacy rules. The first matching item
// decides; a packet matched by no item is allowed.
type List struct {
	Name  string
	Items []Item
}

// Manager holds per-user privacy lists with active and default selection.
// Resolution order per user is active list, else default list, else none.
type Manager struct {
	mu       sync.RWMutex
	lists    map[string]map[string]*List
	active   map[string]string
	defaults map[string]string
}

// NewManager returns an initialized privacy list manager.
func NewManager() *Manager {
	return &Manager{
		lists:    make(map[string]map[string]*List),
		active:   make(map[string]string),
		defaults: make(map[string]string),
	}
}

// UpsertList stores a privacy list for a user, replacing any list with the
// same name. Items are kept sorted by ascending order value.
func (m *Manager) UpsertList(username string, list *List) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sort.SliceStable(list.Items, func(i, j int) bool { return list.Items[i].Order < list.Items[j].Order })
	ul := m.lists[username]
	if ul == nil {
		ul = make(map[string]*List)
		m.lists[username] = ul
	}
	ul[list.Name] = list
}

// RemoveList deletes a user's privacy list, clearing any active or default
// selection pointing at it.
func (m *Manager) RemoveList(username, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.lists[username], name)
	if m.active[username] == name {
		delete(m.active, username)
	}
	if m.defaults[username] == name {
		delete(m.defaults, username)
	}
}

// SetActiveList selects a user's active list.
func (m *Manager) SetActiveList(username, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lists[username][name] == nil {
		return ErrListNotFound
	}
	m.active[username] = name
	return nil
}

// UnsetActiveList clears a user's active list selection.
func (m *Manager) UnsetActiveList(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, username)
}

// SetDefaultList selects a user's default list.
func (m *Manager) SetDefaultList(username, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lists[username][name] == nil {
		return ErrListNotFound
	}
	m.defaults[username] = name
	return nil
}

// ShouldBlockPacket reports whether the user's effective privacy list blocks
// the packet. The peer JID is the packet destination when the user is the
// sender, and the packet origin otherwise.
func (m *Manager) ShouldBlockPacket(username string, packet xmpp.Stanza) bool {
	list := m.effectiveList(username)
	if list == nil {
		return false
	}
	peerJID := packet.ToJID()
	if packet.FromJID() != nil && packet.FromJID().Node() != username {
		peerJID = packet.FromJID()
	}
	if peerJID == nil {
		return false
	}
	for _, it := range list.Items {
		if it.JID == nil || jidMatchesRule(peerJID, it.JID) {
			return !it.Allow
		}
	}
	return false
}

func (m *Manager) effectiveList(username string) *List {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if name, ok := m.active[username]; ok {
		return m.lists[username][name]
	}
	if name, ok := m.defaults[username]; ok {
		return m.lists[username][name]
	}
	return nil
}

func jidMatchesRule(j, ruleJID *jid.JID) bool {
	if ruleJID.IsFullWithUser() {
		return j.Matches(ruleJID, jid.MatchesNode|jid.MatchesDomain|jid.MatchesResource)
	} else if ruleJID.IsFullWithServer() {
		return j.Matches(ruleJID, jid.MatchesDomain|jid.MatchesResource)
	} else if ruleJID.IsBare() {
		return j.Matches(ruleJID, jid.MatchesNode|jid.MatchesDomain)
	}
	return j.Matches(ruleJID, jid.MatchesDomain)
}
