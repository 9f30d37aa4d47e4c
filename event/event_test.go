/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package event

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBus_PriorityOrder(t *testing.T) {
	b := NewBus()

	var order []string
	b.Subscribe("ev", func(_ context.Context, _ *Event) error {
		order = append(order, "low")
		return nil
	}, LowPriority)
	b.Subscribe("ev", func(_ context.Context, _ *Event) error {
		order = append(order, "high")
		return nil
	}, HighPriority)

	err := b.Post(context.Background(), &Event{Name: "ev"})
	require.Nil(t, err)
	require.Equal(t, []string{"high", "low"}, order)
}

func TestBus_StopPropagation(t *testing.T) {
	b := NewBus()

	var reached bool
	b.Subscribe("ev", func(_ context.Context, _ *Event) error {
		return ErrStopped
	}, HighPriority)
	b.Subscribe("ev", func(_ context.Context, _ *Event) error {
		reached = true
		return nil
	}, DefaultPriority)

	err := b.Post(context.Background(), &Event{Name: "ev"})
	require.Nil(t, err)
	require.False(t, reached)
}

func TestBus_HandlerError(t *testing.T) {
	b := NewBus()

	errFailed := errors.New("event: failed")
	b.Subscribe("ev", func(_ context.Context, _ *Event) error {
		return errFailed
	}, DefaultPriority)

	err := b.Post(context.Background(), &Event{Name: "ev"})
	require.Equal(t, errFailed, err)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus()

	var count int
	hnd := func(_ context.Context, _ *Event) error {
		count++
		return nil
	}
	b.Subscribe("ev", hnd, DefaultPriority)

	require.Nil(t, b.Post(context.Background(), &Event{Name: "ev"}))
	require.Equal(t, 1, count)

	b.Unsubscribe("ev", hnd)
	require.Nil(t, b.Post(context.Background(), &Event{Name: "ev"}))
	require.Equal(t, 1, count)
}

func TestBus_Info(t *testing.T) {
	b := NewBus()

	var gotInfo *GroupEventInfo
	b.Subscribe(GroupUserAdded, func(_ context.Context, ev *Event) error {
		gotInfo, _ = ev.Info.(*GroupEventInfo)
		return nil
	}, DefaultPriority)

	err := b.Post(context.Background(), &Event{
		Name: GroupUserAdded,
		Info: &GroupEventInfo{GroupName: "engineering", Username: "ortuman@jackal.im"},
	})
	require.Nil(t, err)
	require.NotNil(t, gotInfo)
	require.Equal(t, "engineering", gotInfo.GroupName)
}
