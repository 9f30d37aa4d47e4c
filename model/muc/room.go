/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package mucmodel

import (
	"bytes"
	"encoding/gob"
	"sync"

	"github.com/c-pro/geche"
	"github.com/conclave-im/conclave/xmpp/jid"
)

// Room represents a multi-user chat room. The occupant registries are
// concurrent-safe keyed maps so presence lookups never contend with room
// mutations. Compound check-and-mutate operations serialize on a per-room
// mutex, never on a service-wide lock.
type Room struct {
	ID      int64 // -1 until first saved
	Name    string
	RoomJID *jid.JID
	Desc    string
	Config  *RoomConfig
	Locked  bool

	mu        sync.RWMutex
	subject   string
	occupants geche.Geche[string, *Occupant] // nickname -> occupant
	userNicks geche.Geche[string, []string]  // bare JID -> nicknames
	owners    map[string]bool
	admins    map[string]bool
	members   map[string]string // bare JID -> reserved nickname, may be empty
	outcasts  map[string]bool
	invited   map[string]bool
	history   *History
}

// NewRoom creates a locked room pending its creator's configuration.
func NewRoom(name string, roomJID *jid.JID, config *RoomConfig) *Room {
	return &Room{
		ID:        -1,
		Name:      name,
		RoomJID:   roomJID,
		Config:    config,
		Locked:    true,
		occupants: geche.NewMapCache[string, *Occupant](),
		userNicks: geche.NewMapCache[string, []string](),
		owners:    make(map[string]bool),
		admins:    make(map[string]bool),
		members:   make(map[string]string),
		outcasts:  make(map[string]bool),
		invited:   make(map[string]bool),
		history:   NewHistory(config.HistCnt),
	}
}

// Join runs the admission checks and registers the occupant. On success the
// occupant's affiliation and role have been assigned from the room state.
func (r *Room) Join(o *Occupant, password string, isCreator bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bareJID := o.BareJID.String()
	if r.Locked && !isCreator {
		return ErrRoomLocked
	}
	aff := r.affiliationOf(bareJID)
	if aff == Outcast {
		return ErrForbidden
	}
	if !r.Config.Open && aff == NoAffiliation && !r.invited[bareJID] && !isCreator {
		return ErrRegistrationRequired
	}
	if r.Config.PwdProtected && !r.Config.CheckPassword(password) {
		return ErrNotAuthorized
	}
	nick := o.Nickname()
	if prev, err := r.occupants.Get(nick); err == nil && prev.BareJID.String() != bareJID {
		return ErrConflict
	}
	if owner, ok := r.reservedBy(nick); ok && owner != bareJID {
		return ErrConflict
	}
	if reserved := r.members[bareJID]; len(reserved) > 0 && reserved != nick {
		return ErrConflict
	}
	if r.Config.MaxOccCnt > 0 && r.occupants.Len() >= r.Config.MaxOccCnt {
		return ErrNotAllowed
	}
	_ = o.SetAffiliation(aff)
	_ = o.SetRole(RoleForAffiliation(aff, r.Config.Moderated))
	r.occupants.Set(nick, o)
	r.attachNickLocked(bareJID, nick)
	delete(r.invited, bareJID)
	return nil
}

// Leave removes the occupant registered under nickname. It reports whether
// the room became empty.
func (r *Room) Leave(nickname string) (empty bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, getErr := r.occupants.Get(nickname)
	if getErr != nil {
		return false, ErrNotFound
	}
	_ = r.occupants.Del(nickname)
	r.detachNickLocked(o.BareJID.String(), nickname)
	return r.occupants.Len() == 0, nil
}

// ChangeNickname re-registers an occupant under a new nickname.
func (r *Room) ChangeNickname(oldNick, newNick string) (*Occupant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, err := r.occupants.Get(oldNick)
	if err != nil {
		return nil, ErrNotFound
	}
	if _, err := r.occupants.Get(newNick); err == nil {
		return nil, ErrConflict
	}
	if owner, ok := r.reservedBy(newNick); ok && owner != o.BareJID.String() {
		return nil, ErrConflict
	}
	newJID, err := jid.New(r.RoomJID.Node(), r.RoomJID.Domain(), newNick, true)
	if err != nil {
		return nil, err
	}
	_ = r.occupants.Del(oldNick)
	o.OccupantJID = newJID
	r.occupants.Set(newNick, o)
	r.detachNickLocked(o.BareJID.String(), oldNick)
	r.attachNickLocked(o.BareJID.String(), newNick)
	return o, nil
}

// OccupantByNickname returns the occupant registered under nickname.
func (r *Room) OccupantByNickname(nickname string) (*Occupant, error) {
	o, err := r.occupants.Get(nickname)
	if err != nil {
		return nil, ErrNotFound
	}
	return o, nil
}

// OccupantsByUser returns every occupant belonging to a bare JID.
func (r *Room) OccupantsByUser(bareJID string) []*Occupant {
	nicks, err := r.userNicks.Get(bareJID)
	if err != nil {
		return nil
	}
	var res []*Occupant
	for _, nick := range nicks {
		if o, err := r.occupants.Get(nick); err == nil {
			res = append(res, o)
		}
	}
	return res
}

// UserIsInRoom tells whether a bare JID has at least one occupant in the room.
func (r *Room) UserIsInRoom(bareJID string) bool {
	nicks, err := r.userNicks.Get(bareJID)
	return err == nil && len(nicks) > 0
}

// AllOccupants returns a snapshot of the occupant registry. Callers routing
// stanzas must iterate the snapshot, never the live registry, so no room
// lock is held during delivery.
func (r *Room) AllOccupants() []*Occupant {
	snap := r.occupants.Snapshot()
	res := make([]*Occupant, 0, len(snap))
	for _, o := range snap {
		res = append(res, o)
	}
	return res
}

// OccupantCount returns the number of registered occupants.
func (r *Room) OccupantCount() int {
	return r.occupants.Len()
}

// SetAffiliation updates a user's affiliation, enforcing that a room never
// loses its last owner. The check and the mutation are atomic with respect
// to other affiliation changes on the same room.
func (r *Room) SetAffiliation(bareJID string, aff Affiliation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setAffiliationLocked(bareJID, aff)
}

// SetAffiliations applies a batch of affiliation changes. Items are applied
// all-or-nothing individually; a rejected item does not abort the rest.
// The returned map holds the error for every rejected bare JID.
func (r *Room) SetAffiliations(changes map[string]Affiliation, order []string) map[string]error {
	r.mu.Lock()
	defer r.mu.Unlock()

	failed := make(map[string]error)
	for _, bareJID := range order {
		if err := r.setAffiliationLocked(bareJID, changes[bareJID]); err != nil {
			failed[bareJID] = err
		}
	}
	return failed
}

func (r *Room) setAffiliationLocked(bareJID string, aff Affiliation) error {
	if !aff.Valid() {
		return ErrNotAllowed
	}
	if aff != Owner && r.owners[bareJID] && len(r.owners) == 1 {
		return ErrConflict
	}
	reserved := r.members[bareJID]
	delete(r.owners, bareJID)
	delete(r.admins, bareJID)
	delete(r.members, bareJID)
	delete(r.outcasts, bareJID)
	switch aff {
	case Owner:
		r.owners[bareJID] = true
	case Admin:
		r.admins[bareJID] = true
	case Member:
		r.members[bareJID] = reserved
	case Outcast:
		r.outcasts[bareJID] = true
	}
	return nil
}

// AffiliationOf returns the affiliation registered for a bare JID.
func (r *Room) AffiliationOf(bareJID string) Affiliation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.affiliationOf(bareJID)
}

func (r *Room) affiliationOf(bareJID string) Affiliation {
	switch {
	case r.owners[bareJID]:
		return Owner
	case r.admins[bareJID]:
		return Admin
	case r.outcasts[bareJID]:
		return Outcast
	default:
		if _, ok := r.members[bareJID]; ok {
			return Member
		}
	}
	return NoAffiliation
}

// Owners returns the owner bare JIDs.
func (r *Room) Owners() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return boolMapKeys(r.owners)
}

// Admins returns the admin bare JIDs.
func (r *Room) Admins() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return boolMapKeys(r.admins)
}

// Members returns the member bare JIDs.
func (r *Room) Members() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]string, 0, len(r.members))
	for j := range r.members {
		res = append(res, j)
	}
	return res
}

// Outcasts returns the banned bare JIDs.
func (r *Room) Outcasts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return boolMapKeys(r.outcasts)
}

// SetReservedNickname reserves a nickname for a member.
func (r *Room) SetReservedNickname(bareJID, nick string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[bareJID]; !ok {
		return ErrNotFound
	}
	if owner, ok := r.reservedBy(nick); ok && owner != bareJID {
		return ErrConflict
	}
	r.members[bareJID] = nick
	return nil
}

// ReservedNickname returns the nickname reserved by a member, if any.
func (r *Room) ReservedNickname(bareJID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.members[bareJID]
}

func (r *Room) reservedBy(nick string) (string, bool) {
	if len(nick) == 0 {
		return "", false
	}
	for j, n := range r.members {
		if n == nick {
			return j, true
		}
	}
	return "", false
}

// InviteUser grants a pending invitation, letting the user enter a
// members-only room once.
func (r *Room) InviteUser(bareJID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invited[bareJID] = true
}

// UserIsInvited tells whether a bare JID holds a pending invitation.
func (r *Room) UserIsInvited(bareJID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.invited[bareJID]
}

// DeleteInvite withdraws a pending invitation.
func (r *Room) DeleteInvite(bareJID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.invited, bareJID)
}

// Unlock opens the room after its initial configuration has been accepted.
func (r *Room) Unlock() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Locked = false
}

// IsLocked tells whether the room is still pending configuration.
func (r *Room) IsLocked() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Locked
}

// SetSubject updates the room subject.
func (r *Room) SetSubject(subject string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subject = subject
}

// Subject returns the room subject.
func (r *Room) Subject() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.subject
}

// History returns the room's message history buffer.
func (r *Room) History() *History {
	return r.history
}

func (r *Room) attachNickLocked(bareJID, nick string) {
	nicks, _ := r.userNicks.Get(bareJID)
	for _, n := range nicks {
		if n == nick {
			return
		}
	}
	r.userNicks.Set(bareJID, append(nicks, nick))
}

func (r *Room) detachNickLocked(bareJID, nick string) {
	nicks, err := r.userNicks.Get(bareJID)
	if err != nil {
		return
	}
	res := nicks[:0]
	for _, n := range nicks {
		if n != nick {
			res = append(res, n)
		}
	}
	if len(res) == 0 {
		_ = r.userNicks.Del(bareJID)
		return
	}
	r.userNicks.Set(bareJID, res)
}

func boolMapKeys(m map[string]bool) []string {
	res := make([]string, 0, len(m))
	for k := range m {
		res = append(res, k)
	}
	return res
}

// FromBytes deserializes a Room entity from its gob binary representation.
// Occupants and history are session state and are not part of it.
func (r *Room) FromBytes(buf *bytes.Buffer) error {
	dec := gob.NewDecoder(buf)
	if err := dec.Decode(&r.ID); err != nil {
		return err
	}
	if err := dec.Decode(&r.Name); err != nil {
		return err
	}
	j, err := jid.NewFromBytes(buf)
	if err != nil {
		return err
	}
	r.RoomJID = j
	if err := dec.Decode(&r.Desc); err != nil {
		return err
	}
	if err := dec.Decode(&r.subject); err != nil {
		return err
	}
	c, err := NewConfigFromBytes(buf)
	if err != nil {
		return err
	}
	r.Config = c
	if err := dec.Decode(&r.Locked); err != nil {
		return err
	}
	if err := dec.Decode(&r.owners); err != nil {
		return err
	}
	if err := dec.Decode(&r.admins); err != nil {
		return err
	}
	if err := dec.Decode(&r.members); err != nil {
		return err
	}
	if err := dec.Decode(&r.outcasts); err != nil {
		return err
	}
	r.invited = make(map[string]bool)
	r.occupants = geche.NewMapCache[string, *Occupant]()
	r.userNicks = geche.NewMapCache[string, []string]()
	r.history = NewHistory(r.Config.HistCnt)
	return nil
}

// ToBytes converts a Room entity to its gob binary representation.
func (r *Room) ToBytes(buf *bytes.Buffer) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	enc := gob.NewEncoder(buf)
	if err := enc.Encode(&r.ID); err != nil {
		return err
	}
	if err := enc.Encode(&r.Name); err != nil {
		return err
	}
	if err := r.RoomJID.ToBytes(buf); err != nil {
		return err
	}
	if err := enc.Encode(&r.Desc); err != nil {
		return err
	}
	if err := enc.Encode(&r.subject); err != nil {
		return err
	}
	if err := r.Config.ToBytes(buf); err != nil {
		return err
	}
	if err := enc.Encode(&r.Locked); err != nil {
		return err
	}
	if err := enc.Encode(&r.owners); err != nil {
		return err
	}
	if err := enc.Encode(&r.admins); err != nil {
		return err
	}
	if err := enc.Encode(&r.members); err != nil {
		return err
	}
	return enc.Encode(&r.outcasts)
}

// NewRoomFromBytes creates and returns a new Room element from its bytes representation.
func NewRoomFromBytes(buf *bytes.Buffer) (*Room, error) {
	r := &Room{}
	if err := r.FromBytes(buf); err != nil {
		return nil, err
	}
	return r, nil
}
