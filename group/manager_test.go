/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package group

import (
	"context"
	"testing"

	"github.com/conclave-im/conclave/event"
	"github.com/conclave-im/conclave/model/groupmodel"
	"github.com/conclave-im/conclave/storage"
	"github.com/conclave-im/conclave/storage/memstorage"
	"github.com/stretchr/testify/require"
)

func TestGroupManager_Membership(t *testing.T) {
	_, m := setupTest()
	defer storage.Unset()

	ctx := context.Background()
	_, err := m.CreateGroup(ctx, "engineering", "Engineering", groupmodel.VisibleToMembers, nil)
	require.Nil(t, err)

	require.Nil(t, m.AddUser(ctx, "engineering", "carol@jackal.im"))
	require.Nil(t, m.AddUser(ctx, "engineering", "dave@jackal.im"))

	groups, err := m.UserGroups(ctx, "carol@jackal.im")
	require.Nil(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, "engineering", groups[0].Name)

	require.Nil(t, m.DeleteUser(ctx, "engineering", "carol@jackal.im"))
	groups, err = m.UserGroups(ctx, "carol@jackal.im")
	require.Nil(t, err)
	require.Len(t, groups, 0)

	require.Equal(t, groupmodel.ErrGroupNotFound, m.AddUser(ctx, "sales", "carol@jackal.im"))
}

func TestGroupManager_Events(t *testing.T) {
	bus, m := setupTest()
	defer storage.Unset()

	var posted []string
	bus.Subscribe(event.GroupUserAdded, func(_ context.Context, ev *event.Event) error {
		inf := ev.Info.(*event.GroupEventInfo)
		posted = append(posted, "added:"+inf.Username)
		return nil
	}, event.DefaultPriority)
	bus.Subscribe(event.GroupUserDeleted, func(_ context.Context, ev *event.Event) error {
		inf := ev.Info.(*event.GroupEventInfo)
		posted = append(posted, "deleted:"+inf.Username)
		return nil
	}, event.DefaultPriority)

	ctx := context.Background()
	_, err := m.CreateGroup(ctx, "engineering", "", groupmodel.VisibleToMembers, nil)
	require.Nil(t, err)

	require.Nil(t, m.AddUser(ctx, "engineering", "carol@jackal.im"))
	require.Nil(t, m.AddUser(ctx, "engineering", "carol@jackal.im")) // no-op, already member
	require.Nil(t, m.DeleteUser(ctx, "engineering", "carol@jackal.im"))

	require.Equal(t, []string{"added:carol@jackal.im", "deleted:carol@jackal.im"}, posted)

	require.Nil(t, m.AddUser(ctx, "engineering", "dave@jackal.im"))
	posted = nil
	require.Nil(t, m.DeleteGroup(ctx, "engineering"))
	require.Equal(t, []string{"deleted:dave@jackal.im"}, posted)
}

func TestGroupManager_Visibility(t *testing.T) {
	_, m := setupTest()
	defer storage.Unset()

	ctx := context.Background()
	_, err := m.CreateGroup(ctx, "everyone", "", groupmodel.VisibleToEverybody, nil)
	require.Nil(t, err)
	_, err = m.CreateGroup(ctx, "engineering", "", groupmodel.VisibleToMembers, nil)
	require.Nil(t, err)
	_, err = m.CreateGroup(ctx, "managers", "", groupmodel.VisibleToGroups, []string{"engineering"})
	require.Nil(t, err)
	_, err = m.CreateGroup(ctx, "board", "", groupmodel.VisibleToNobody, nil)
	require.Nil(t, err)

	require.Nil(t, m.AddUser(ctx, "engineering", "carol@jackal.im"))
	require.Nil(t, m.AddUser(ctx, "board", "carol@jackal.im"))

	visible, err := m.VisibleGroups(ctx, "carol@jackal.im")
	require.Nil(t, err)

	var names []string
	for _, g := range visible {
		names = append(names, g.Name)
	}
	// everybody policy, own membership, and the group-list policy naming
	// carol's group; board stays hidden even from its own members
	require.ElementsMatch(t, []string{"everyone", "engineering", "managers"}, names)
}

func TestGroupManager_MutualVisibility(t *testing.T) {
	eng, _ := groupmodel.New("engineering", "", groupmodel.VisibleToGroups)
	eng.VisibleTo = []string{"sales"}
	eng.AddMember("carol@jackal.im")

	sales, _ := groupmodel.New("sales", "", groupmodel.VisibleToGroups)
	sales.VisibleTo = []string{"engineering"}
	sales.AddMember("dave@jackal.im")

	carolGroups := []groupmodel.Group{*eng}
	daveGroups := []groupmodel.Group{*sales}

	require.True(t, MutuallyVisible("carol@jackal.im", carolGroups, "dave@jackal.im", daveGroups))

	// drop the reciprocal direction
	sales.VisibleTo = nil
	daveGroups = []groupmodel.Group{*sales}
	require.False(t, MutuallyVisible("carol@jackal.im", carolGroups, "dave@jackal.im", daveGroups))
}

func setupTest() (*event.Bus, *Manager) {
	s := memstorage.New()
	storage.Set(s)
	bus := event.NewBus()
	return bus, NewManager(bus)
}
