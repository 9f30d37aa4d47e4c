/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package memstorage

import (
	"context"
	"sort"

	"github.com/conclave-im/conclave/model/groupmodel"
)

// UpsertGroup inserts a new shared group entity into storage, or updates it if previously inserted.
func (m *Storage) UpsertGroup(_ context.Context, group *groupmodel.Group) error {
	return m.inWriteLock(func() error {
		return m.saveEntity(groupKey(group.Name), group)
	})
}

// DeleteGroup deletes a shared group entity from storage.
func (m *Storage) DeleteGroup(_ context.Context, name string) error {
	return m.inWriteLock(func() error {
		delete(m.b, groupKey(name))
		return nil
	})
}

// FetchGroup retrieves a shared group entity from storage.
func (m *Storage) FetchGroup(_ context.Context, name string) (*groupmodel.Group, error) {
	var g groupmodel.Group
	var ok bool
	err := m.inReadLock(func() error {
		var fnErr error
		ok, fnErr = m.getEntity(groupKey(name), &g)
		return fnErr
	})
	switch {
	case err != nil:
		return nil, err
	case ok:
		return &g, nil
	default:
		return nil, nil
	}
}

// FetchGroups retrieves all shared group entities from storage.
func (m *Storage) FetchGroups(_ context.Context) ([]groupmodel.Group, error) {
	var groups []groupmodel.Group
	err := m.inReadLock(func() error {
		return m.forEachKeyPrefix("groups:", func(k string) error {
			var g groupmodel.Group
			if _, err := m.getEntity(k, &g); err != nil {
				return err
			}
			groups = append(groups, g)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups, nil
}

// FetchUserGroups retrieves all shared groups a given user is member of.
func (m *Storage) FetchUserGroups(ctx context.Context, username string) ([]groupmodel.Group, error) {
	groups, err := m.FetchGroups(ctx)
	if err != nil {
		return nil, err
	}
	var ret []groupmodel.Group
	for _, g := range groups {
		if g.IsMember(username) {
			ret = append(ret, g)
		}
	}
	return ret, nil
}

func groupKey(name string) string {
	return "groups:" + name
}
