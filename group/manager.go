/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package group

import (
	"context"

	"github.com/conclave-im/conclave/event"
	"github.com/conclave-im/conclave/log"
	"github.com/conclave-im/conclave/model/groupmodel"
	"github.com/conclave-im/conclave/storage"
)

// Manager maintains shared groups and their memberships, and posts a bus
// event on every change so roster state can be recomputed incrementally.
type Manager struct {
	bus *event.Bus
}

// NewManager returns an initialized shared group manager.
func NewManager(bus *event.Bus) *Manager {
	return &Manager{bus: bus}
}

// CreateGroup creates and persists a new shared group.
func (m *Manager) CreateGroup(ctx context.Context, name, displayName string, visibility groupmodel.Visibility, visibleTo []string) (*groupmodel.Group, error) {
	g, err := groupmodel.New(name, displayName, visibility)
	if err != nil {
		return nil, err
	}
	g.VisibleTo = visibleTo
	if err := storage.UpsertGroup(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// DeleteGroup removes a shared group, posting a member-deleted event for
// every former member so their projected roster entries can be torn down.
func (m *Manager) DeleteGroup(ctx context.Context, name string) error {
	g, err := storage.FetchGroup(ctx, name)
	if err != nil {
		return err
	}
	if g == nil {
		return nil
	}
	if err := storage.DeleteGroup(ctx, name); err != nil {
		return err
	}
	for _, member := range g.Members() {
		m.post(ctx, event.GroupUserDeleted, &event.GroupEventInfo{GroupName: name, Username: member})
	}
	return nil
}

// GetGroup retrieves a shared group by name.
func (m *Manager) GetGroup(ctx context.Context, name string) (*groupmodel.Group, error) {
	return storage.FetchGroup(ctx, name)
}

// RenameGroup updates a group's roster display name.
func (m *Manager) RenameGroup(ctx context.Context, name, displayName string) error {
	g, err := storage.FetchGroup(ctx, name)
	if err != nil {
		return err
	}
	if g == nil {
		return nil
	}
	prevName := g.RosterName()
	g.DisplayName = displayName
	if err := storage.UpsertGroup(ctx, g); err != nil {
		return err
	}
	m.post(ctx, event.GroupRenamed, &event.GroupEventInfo{GroupName: name, PrevName: prevName})
	return nil
}

// SetVisibility updates a group's visibility policy.
func (m *Manager) SetVisibility(ctx context.Context, name string, visibility groupmodel.Visibility, visibleTo []string) error {
	if !visibility.Valid() {
		return groupmodel.ErrInvalidVisibility
	}
	g, err := storage.FetchGroup(ctx, name)
	if err != nil {
		return err
	}
	if g == nil {
		return nil
	}
	g.Visibility = visibility
	g.VisibleTo = visibleTo
	if err := storage.UpsertGroup(ctx, g); err != nil {
		return err
	}
	m.post(ctx, event.GroupVisibilityChanged, &event.GroupEventInfo{GroupName: name})
	return nil
}

// AddUser registers a user as a member of a shared group.
func (m *Manager) AddUser(ctx context.Context, groupName, userBareJID string) error {
	g, err := storage.FetchGroup(ctx, groupName)
	if err != nil {
		return err
	}
	if g == nil {
		return groupmodel.ErrGroupNotFound
	}
	if g.IsMember(userBareJID) {
		return nil
	}
	g.AddMember(userBareJID)
	if err := storage.UpsertGroup(ctx, g); err != nil {
		return err
	}
	m.post(ctx, event.GroupUserAdded, &event.GroupEventInfo{GroupName: groupName, Username: userBareJID})
	return nil
}

// DeleteUser deregisters a user from a shared group.
func (m *Manager) DeleteUser(ctx context.Context, groupName, userBareJID string) error {
	g, err := storage.FetchGroup(ctx, groupName)
	if err != nil {
		return err
	}
	if g == nil || !g.IsMember(userBareJID) {
		return nil
	}
	g.RemoveMember(userBareJID)
	if err := storage.UpsertGroup(ctx, g); err != nil {
		return err
	}
	m.post(ctx, event.GroupUserDeleted, &event.GroupEventInfo{GroupName: groupName, Username: userBareJID})
	return nil
}

// UserGroups returns all shared groups a user belongs to.
func (m *Manager) UserGroups(ctx context.Context, userBareJID string) ([]groupmodel.Group, error) {
	return storage.FetchUserGroups(ctx, userBareJID)
}

// VisibleGroups returns the shared groups projected into a user's roster:
// groups visible to everybody plus groups visible to the user under their
// membership-dependent policy.
func (m *Manager) VisibleGroups(ctx context.Context, userBareJID string) ([]groupmodel.Group, error) {
	groups, err := storage.FetchGroups(ctx)
	if err != nil {
		return nil, err
	}
	memberships, err := storage.FetchUserGroups(ctx, userBareJID)
	if err != nil {
		return nil, err
	}
	var res []groupmodel.Group
	for _, g := range groups {
		grp := g
		if IsGroupVisibleTo(&grp, userBareJID, memberships) {
			res = append(res, grp)
		}
	}
	return res, nil
}

// IsGroupVisibleTo tells whether group g is projected into the roster of the
// given user. memberships must hold the user's own shared groups.
func IsGroupVisibleTo(g *groupmodel.Group, userBareJID string, memberships []groupmodel.Group) bool {
	switch g.Visibility {
	case groupmodel.VisibleToEverybody:
		return true
	case groupmodel.VisibleToMembers:
		return g.IsMember(userBareJID)
	case groupmodel.VisibleToGroups:
		if g.IsMember(userBareJID) {
			return true
		}
		for _, mg := range memberships {
			if g.VisibleToGroup(mg.Name) {
				return true
			}
		}
	}
	return false
}

// MutuallyVisible tells whether two users can reciprocally see each other
// through their shared group memberships.
func MutuallyVisible(aBareJID string, aGroups []groupmodel.Group, bBareJID string, bGroups []groupmodel.Group) bool {
	return visibleThrough(bGroups, aBareJID, aGroups) && visibleThrough(aGroups, bBareJID, bGroups)
}

// visibleThrough tells whether some group of the contact projects the
// contact into the viewer's roster.
func visibleThrough(contactGroups []groupmodel.Group, viewerBareJID string, viewerGroups []groupmodel.Group) bool {
	for _, g := range contactGroups {
		grp := g
		if IsGroupVisibleTo(&grp, viewerBareJID, viewerGroups) {
			return true
		}
	}
	return false
}

func (m *Manager) post(ctx context.Context, evName string, inf *event.GroupEventInfo) {
	if m.bus == nil {
		return
	}
	if err := m.bus.Post(ctx, &event.Event{Name: evName, Info: inf, Sender: m}); err != nil {
		log.Warnf("group: event %s failed: %v", evName, err)
	}
}
