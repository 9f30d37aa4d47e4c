/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package groupmodel

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
)

var (
	// ErrGroupNotFound is returned when operating on a group that does not exist.
	ErrGroupNotFound = errors.New("groupmodel: group not found")

	// ErrInvalidVisibility is returned when an unrecognized visibility value is supplied.
	ErrInvalidVisibility = errors.New("groupmodel: invalid visibility")
)

// Visibility determines whose rosters a shared group is projected into.
type Visibility string

const (
	// VisibleToNobody keeps the group out of every roster.
	VisibleToNobody Visibility = "nobody"

	// VisibleToMembers projects the group into its own members' rosters.
	VisibleToMembers Visibility = "members"

	// VisibleToGroups projects the group into the rosters of the members
	// of an explicit list of groups, in addition to its own members.
	VisibleToGroups Visibility = "groups"

	// VisibleToEverybody projects the group into every user's roster.
	VisibleToEverybody Visibility = "everybody"
)

// Valid tells whether v is a recognized visibility value.
func (v Visibility) Valid() bool {
	switch v {
	case VisibleToNobody, VisibleToMembers, VisibleToGroups, VisibleToEverybody:
		return true
	}
	return false
}

// Group represents a shared roster group entity. Its membership is projected
// into members' rosters without individual subscription handshakes.
type Group struct {
	Name        string
	DisplayName string
	Visibility  Visibility
	VisibleTo   []string // group names, applies to VisibleToGroups
	members     map[string]bool
}

// New creates a shared group entity.
func New(name, displayName string, visibility Visibility) (*Group, error) {
	if len(name) == 0 {
		return nil, fmt.Errorf("groupmodel: group name must not be empty")
	}
	if !visibility.Valid() {
		return nil, fmt.Errorf("groupmodel: unrecognized visibility: %s", visibility)
	}
	return &Group{
		Name:        name,
		DisplayName: displayName,
		Visibility:  visibility,
		members:     make(map[string]bool),
	}, nil
}

// AddMember registers a user bare JID as a group member.
func (g *Group) AddMember(bareJID string) {
	g.members[bareJID] = true
}

// RemoveMember deregisters a user bare JID.
func (g *Group) RemoveMember(bareJID string) {
	delete(g.members, bareJID)
}

// IsMember tells whether a bare JID belongs to the group.
func (g *Group) IsMember(bareJID string) bool {
	return g.members[bareJID]
}

// Members returns the group's member bare JIDs.
func (g *Group) Members() []string {
	res := make([]string, 0, len(g.members))
	for j := range g.members {
		res = append(res, j)
	}
	return res
}

// RosterName returns the name shown in rosters.
func (g *Group) RosterName() string {
	if len(g.DisplayName) > 0 {
		return g.DisplayName
	}
	return g.Name
}

// VisibleToGroup tells whether the group list policy names the given group.
func (g *Group) VisibleToGroup(name string) bool {
	for _, n := range g.VisibleTo {
		if n == name {
			return true
		}
	}
	return false
}

// FromBytes deserializes a Group entity from its gob binary representation.
func (g *Group) FromBytes(buf *bytes.Buffer) error {
	dec := gob.NewDecoder(buf)
	if err := dec.Decode(&g.Name); err != nil {
		return err
	}
	if err := dec.Decode(&g.DisplayName); err != nil {
		return err
	}
	if err := dec.Decode(&g.Visibility); err != nil {
		return err
	}
	if err := dec.Decode(&g.VisibleTo); err != nil {
		return err
	}
	var members []string
	if err := dec.Decode(&members); err != nil {
		return err
	}
	g.members = make(map[string]bool, len(members))
	for _, m := range members {
		g.members[m] = true
	}
	return nil
}

// ToBytes converts a Group entity to its gob binary representation.
func (g *Group) ToBytes(buf *bytes.Buffer) error {
	enc := gob.NewEncoder(buf)
	if err := enc.Encode(&g.Name); err != nil {
		return err
	}
	if err := enc.Encode(&g.DisplayName); err != nil {
		return err
	}
	if err := enc.Encode(&g.Visibility); err != nil {
		return err
	}
	if err := enc.Encode(&g.VisibleTo); err != nil {
		return err
	}
	members := g.Members()
	return enc.Encode(&members)
}

// NewGroupFromBytes creates and returns a new Group element from its bytes representation.
func NewGroupFromBytes(buf *bytes.Buffer) (*Group, error) {
	g := &Group{}
	if err := g.FromBytes(buf); err != nil {
		return nil, err
	}
	return g, nil
}
