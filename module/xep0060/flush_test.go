/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package xep0060

import (
	"context"
	"fmt"
	"testing"
	"time"

	pubsubmodel "github.com/conclave-im/conclave/model/pubsub"
	"github.com/conclave-im/conclave/storage"
	"github.com/conclave-im/conclave/storage/memstorage"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"
)

// newTestFlusher returns a flusher whose ticker never fires, so runs
// happen only on explicit flush calls, with a store breaker that
// recovers quickly.
func newTestFlusher(batchSize int) *flusher {
	f := newFlusher(time.Hour, batchSize, 1000)
	f.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "pubsub-store",
		Timeout: time.Millisecond * 50,
	})
	return f
}

func TestFlusher_DrainsInBatches(t *testing.T) {
	s := memstorage.New()
	storage.Set(s)
	defer storage.Unset()
	ctx := context.Background()

	f := newFlusher(time.Hour, 50, 1000)
	defer f.stop()

	for i := 0; i < 120; i++ {
		f.enqueueAdd(pubsubmodel.Item{
			ID:        fmt.Sprintf("i%d", i),
			Node:      "princely_musings",
			Publisher: "ortuman@jackal.im",
			Stamp:     time.Now(),
		}, "pubsub.jackal.im", "princely_musings")
	}
	add, _ := f.depths()
	require.Equal(t, int32(120), add)

	f.flush()
	add, _ = f.depths()
	require.Equal(t, int32(70), add)

	f.flush()
	f.flush()
	add, _ = f.depths()
	require.Equal(t, int32(0), add)

	items, err := storage.FetchNodeItems(ctx, "pubsub.jackal.im", "princely_musings")
	require.Nil(t, err)
	require.Len(t, items, 120)
}

func TestFlusher_FailedRunKeepsBatchQueued(t *testing.T) {
	s := memstorage.New()
	storage.Set(s)
	defer storage.Unset()
	ctx := context.Background()

	f := newTestFlusher(50)
	defer f.stop()

	for i := 0; i < 120; i++ {
		f.enqueueAdd(pubsubmodel.Item{
			ID:    fmt.Sprintf("i%d", i),
			Node:  "princely_musings",
			Stamp: time.Now(),
		}, "pubsub.jackal.im", "princely_musings")
	}
	f.flush()
	add, _ := f.depths()
	require.Equal(t, int32(70), add)

	s.ActivateMockedError()
	f.flush()
	add, _ = f.depths()
	require.Equal(t, int32(70), add)

	s.DeactivateMockedError()
	require.Eventually(t, func() bool {
		f.flush()
		add, _ := f.depths()
		return add == 0
	}, time.Second*2, time.Millisecond*20)

	items, err := storage.FetchNodeItems(ctx, "pubsub.jackal.im", "princely_musings")
	require.Nil(t, err)
	require.Len(t, items, 120)
}

func TestFlusher_RequeuesOnFailure(t *testing.T) {
	s := memstorage.New()
	storage.Set(s)
	defer storage.Unset()
	ctx := context.Background()

	f := newTestFlusher(50)
	defer f.stop()

	for i := 0; i < 3; i++ {
		f.enqueueAdd(pubsubmodel.Item{
			ID:    fmt.Sprintf("i%d", i),
			Node:  "princely_musings",
			Stamp: time.Now(),
		}, "pubsub.jackal.im", "princely_musings")
	}
	s.ActivateMockedError()
	f.flush()

	// failed writes stay queued
	add, _ := f.depths()
	require.Equal(t, int32(3), add)

	s.DeactivateMockedError()

	// wait for the store breaker to allow requests again
	require.Eventually(t, func() bool {
		f.flush()
		add, _ := f.depths()
		return add == 0
	}, time.Second*2, time.Millisecond*20)

	items, err := storage.FetchNodeItems(ctx, "pubsub.jackal.im", "princely_musings")
	require.Nil(t, err)
	require.Len(t, items, 3)
}

func TestFlusher_DeleteQueue(t *testing.T) {
	s := memstorage.New()
	storage.Set(s)
	defer storage.Unset()
	ctx := context.Background()

	item := pubsubmodel.Item{ID: "i0", Node: "princely_musings", Stamp: time.Now()}
	require.Nil(t, storage.UpsertNodeItem(ctx, &item, "pubsub.jackal.im", "princely_musings", 1000))

	f := newFlusher(time.Hour, 50, 1000)
	defer f.stop()

	f.enqueueDelete("pubsub.jackal.im", "princely_musings", "i0")
	_, del := f.depths()
	require.Equal(t, int32(1), del)

	f.flush()
	_, del = f.depths()
	require.Equal(t, int32(0), del)

	items, err := storage.FetchNodeItems(ctx, "pubsub.jackal.im", "princely_musings")
	require.Nil(t, err)
	require.Len(t, items, 0)
}

func TestFlusher_CancelNodeDropsQueuedItems(t *testing.T) {
	s := memstorage.New()
	storage.Set(s)
	defer storage.Unset()
	ctx := context.Background()

	f := newFlusher(time.Hour, 50, 1000)
	defer f.stop()

	f.enqueueAdd(pubsubmodel.Item{ID: "i0", Node: "princely_musings", Stamp: time.Now()},
		"pubsub.jackal.im", "princely_musings")
	f.enqueueAdd(pubsubmodel.Item{ID: "i1", Node: "other_node", Stamp: time.Now()},
		"pubsub.jackal.im", "other_node")

	f.cancelNode("pubsub.jackal.im", "princely_musings")

	// enqueued after cancellation, must survive
	f.enqueueAdd(pubsubmodel.Item{ID: "i2", Node: "princely_musings", Stamp: time.Now()},
		"pubsub.jackal.im", "princely_musings")

	f.flush()
	add, _ := f.depths()
	require.Equal(t, int32(0), add)

	items, err := storage.FetchNodeItems(ctx, "pubsub.jackal.im", "princely_musings")
	require.Nil(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "i2", items[0].ID)

	items, err = storage.FetchNodeItems(ctx, "pubsub.jackal.im", "other_node")
	require.Nil(t, err)
	require.Len(t, items, 1)
}

func TestFlusher_StopIsIdempotent(t *testing.T) {
	s := memstorage.New()
	storage.Set(s)
	defer storage.Unset()
	ctx := context.Background()

	f := newTestFlusher(50)
	f.enqueueAdd(pubsubmodel.Item{ID: "i0", Node: "princely_musings", Stamp: time.Now()},
		"pubsub.jackal.im", "princely_musings")

	f.stop()
	f.stop()

	// a flush on a stopped flusher returns immediately
	f.flush()

	// the final run drained the queue
	items, err := storage.FetchNodeItems(ctx, "pubsub.jackal.im", "princely_musings")
	require.Nil(t, err)
	require.Len(t, items, 1)
}

func TestFlusher_CancellationsPrunedWhenDrained(t *testing.T) {
	s := memstorage.New()
	storage.Set(s)
	defer storage.Unset()

	f := newTestFlusher(50)
	defer f.stop()

	f.enqueueAdd(pubsubmodel.Item{ID: "i0", Node: "princely_musings", Stamp: time.Now()},
		"pubsub.jackal.im", "princely_musings")
	f.cancelNode("pubsub.jackal.im", "princely_musings")

	f.flush()
	add, _ := f.depths()
	require.Equal(t, int32(0), add)

	var entries int
	f.cancelled.Range(func(_, _ interface{}) bool {
		entries++
		return true
	})
	require.Equal(t, 0, entries)
}
