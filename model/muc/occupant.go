/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package mucmodel

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/conclave-im/conclave/xmpp"
	"github.com/conclave-im/conclave/xmpp/jid"
)

// Affiliation represents a long-lived relationship between a user and a room,
// kept regardless of whether the user is currently connected.
type Affiliation string

const (
	// Outcast represents a banned user.
	Outcast Affiliation = "outcast"

	// NoAffiliation represents a user with no registered relationship to the room.
	NoAffiliation Affiliation = "none"

	// Member represents a registered room member.
	Member Affiliation = "member"

	// Admin represents a room administrator.
	Admin Affiliation = "admin"

	// Owner represents a room owner.
	Owner Affiliation = "owner"
)

// Role represents a session-scoped privilege level inside a room,
// assigned at join time.
type Role string

const (
	// NoRole represents an occupant with no role, i.e. kicked from the room.
	NoRole Role = "none"

	// Visitor represents an occupant that may not send messages to a moderated room.
	Visitor Role = "visitor"

	// Participant represents an occupant that may talk in the room.
	Participant Role = "participant"

	// Moderator represents an occupant with kick and voice privileges.
	Moderator Role = "moderator"
)

var affiliationWeights = map[Affiliation]int{
	Outcast:       -1,
	NoAffiliation: 0,
	Member:        1,
	Admin:         2,
	Owner:         3,
}

var roleWeights = map[Role]int{
	NoRole:      0,
	Visitor:     1,
	Participant: 2,
	Moderator:   3,
}

// Valid tells whether a is a recognized affiliation value.
func (a Affiliation) Valid() bool {
	_, ok := affiliationWeights[a]
	return ok
}

// IsHigherThan compares two affiliations by privilege.
func (a Affiliation) IsHigherThan(b Affiliation) bool {
	return affiliationWeights[a] > affiliationWeights[b]
}

// Valid tells whether r is a recognized role value.
func (r Role) Valid() bool {
	_, ok := roleWeights[r]
	return ok
}

// IsHigherThan compares two roles by privilege.
func (r Role) IsHigherThan(r2 Role) bool {
	return roleWeights[r] > roleWeights[r2]
}

// RoleForAffiliation returns the role an occupant acquires when joining a room,
// derived from its affiliation and the room's moderation flag.
func RoleForAffiliation(aff Affiliation, moderated bool) Role {
	switch aff {
	case Owner, Admin:
		return Moderator
	case Member:
		return Participant
	default:
		if moderated {
			return Visitor
		}
		return Participant
	}
}

// Occupant represents a user present in a room under a nickname.
// Multiple resources of the same bare JID may share a single occupant.
type Occupant struct {
	OccupantJID *jid.JID
	BareJID     *jid.JID
	affiliation Affiliation
	role        Role
	resources   map[string]bool
	presence    *xmpp.Presence
}

// NewOccupant creates an occupant entity given its room address and user bare JID.
func NewOccupant(occJID, userJID *jid.JID) (*Occupant, error) {
	if !occJID.IsFullWithUser() {
		return nil, fmt.Errorf("mucmodel: occupant JID %s is not a full JID", occJID.String())
	}
	if !userJID.IsBare() {
		return nil, fmt.Errorf("mucmodel: user JID %s is not a bare JID", userJID.String())
	}
	o := &Occupant{
		OccupantJID: occJID,
		BareJID:     userJID,
		affiliation: NoAffiliation,
		role:        NoRole,
		resources:   make(map[string]bool),
	}
	return o, nil
}

// Nickname returns the room nickname the occupant is known by.
func (o *Occupant) Nickname() string {
	return o.OccupantJID.Resource()
}

// SetAffiliation assigns the occupant affiliation.
func (o *Occupant) SetAffiliation(aff Affiliation) error {
	if !aff.Valid() {
		return fmt.Errorf("mucmodel: unrecognized affiliation: %s", aff)
	}
	o.affiliation = aff
	return nil
}

// Affiliation returns the occupant affiliation.
func (o *Occupant) Affiliation() Affiliation {
	return o.affiliation
}

// SetRole assigns the occupant role.
func (o *Occupant) SetRole(role Role) error {
	if !role.Valid() {
		return fmt.Errorf("mucmodel: unrecognized role: %s", role)
	}
	o.role = role
	return nil
}

// Role returns the occupant role.
func (o *Occupant) Role() Role {
	return o.role
}

// SetPresence stores the occupant's last broadcast presence.
func (o *Occupant) SetPresence(presence *xmpp.Presence) {
	o.presence = presence
}

// Presence returns the occupant's last broadcast presence.
func (o *Occupant) Presence() *xmpp.Presence {
	return o.presence
}

func (o *Occupant) IsOwner() bool       { return o.affiliation == Owner }
func (o *Occupant) IsAdmin() bool       { return o.affiliation == Admin }
func (o *Occupant) IsMember() bool      { return o.affiliation == Member }
func (o *Occupant) IsOutcast() bool     { return o.affiliation == Outcast }
func (o *Occupant) IsModerator() bool   { return o.role == Moderator }
func (o *Occupant) IsParticipant() bool { return o.role == Participant }
func (o *Occupant) IsVisitor() bool     { return o.role == Visitor }
func (o *Occupant) HasNoRole() bool     { return o.role == NoRole }

// GetAllResources returns the set of resources attached to the occupant.
func (o *Occupant) GetAllResources() []string {
	resources := make([]string, 0, len(o.resources))
	for r := range o.resources {
		resources = append(resources, r)
	}
	return resources
}

// HasResource tells whether a given resource is attached to the occupant.
func (o *Occupant) HasResource(s string) bool {
	_, found := o.resources[s]
	return found
}

// AddResource attaches a resource to the occupant.
func (o *Occupant) AddResource(s string) {
	o.resources[s] = true
}

// DeleteResource detaches a resource from the occupant.
func (o *Occupant) DeleteResource(s string) {
	delete(o.resources, s)
}

// HasHigherAffiliation tells whether o outranks k.
func (o *Occupant) HasHigherAffiliation(k *Occupant) bool {
	return o.affiliation.IsHigherThan(k.affiliation)
}

// CanChangeRole tells whether o is allowed to assign the given role to target.
// Owners and admins are never demoted by a lesser occupant.
func (o *Occupant) CanChangeRole(target *Occupant, role Role) bool {
	if (target.IsOwner() || target.IsAdmin()) && !o.IsOwner() {
		return false
	}
	switch role {
	case NoRole:
		return o.IsModerator() && o.HasHigherAffiliation(target)
	case Visitor:
		return o.IsModerator() && target.IsParticipant()
	case Participant:
		return o.IsModerator() && target.IsVisitor() || o.IsAdmin() && !target.IsOwner()
	case Moderator:
		return o.IsAdmin() || o.IsOwner()
	}
	return false
}

// CanChangeAffiliation tells whether o is allowed to assign the given
// affiliation to target. Banning an owner or admin requires ownership.
func (o *Occupant) CanChangeAffiliation(target *Occupant, affiliation Affiliation) bool {
	if o.OccupantJID.String() == target.OccupantJID.String() {
		return false
	}
	if !o.IsAdmin() && !o.IsOwner() {
		return false
	}
	switch affiliation {
	case Outcast:
		if target.IsOwner() || target.IsAdmin() {
			return o.IsOwner()
		}
		return true
	case NoAffiliation, Member:
		return o.HasHigherAffiliation(target)
	case Admin, Owner:
		return o.IsOwner()
	}
	return false
}

// FromBytes deserializes an Occupant entity from its gob binary representation.
func (o *Occupant) FromBytes(buf *bytes.Buffer) error {
	dec := gob.NewDecoder(buf)
	j, err := jid.NewFromBytes(buf)
	if err != nil {
		return err
	}
	o.OccupantJID = j
	f, err := jid.NewFromBytes(buf)
	if err != nil {
		return err
	}
	o.BareJID = f
	if err := dec.Decode(&o.affiliation); err != nil {
		return err
	}
	if err := dec.Decode(&o.role); err != nil {
		return err
	}
	var resources []string
	if err := dec.Decode(&resources); err != nil {
		return err
	}
	o.resources = make(map[string]bool)
	for _, res := range resources {
		o.resources[res] = true
	}
	return nil
}

// ToBytes converts an Occupant entity to its gob binary representation.
func (o *Occupant) ToBytes(buf *bytes.Buffer) error {
	enc := gob.NewEncoder(buf)
	if err := o.OccupantJID.ToBytes(buf); err != nil {
		return err
	}
	if err := o.BareJID.ToBytes(buf); err != nil {
		return err
	}
	if err := enc.Encode(&o.affiliation); err != nil {
		return err
	}
	if err := enc.Encode(&o.role); err != nil {
		return err
	}
	resources := o.GetAllResources()
	if err := enc.Encode(&resources); err != nil {
		return err
	}
	return nil
}

// NewOccupantFromBytes creates and returns a new Occupant element from its bytes representation.
func NewOccupantFromBytes(buf *bytes.Buffer) (*Occupant, error) {
	o := &Occupant{}
	if err := o.FromBytes(buf); err != nil {
		return nil, err
	}
	return o, nil
}
