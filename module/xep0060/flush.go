/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package xep0060

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conclave-im/conclave/log"
	pubsubmodel "github.com/conclave-im/conclave/model/pubsub"
	"github.com/conclave-im/conclave/runqueue/mpsc"
	"github.com/conclave-im/conclave/storage"
	"github.com/sony/gobreaker"
)

type addOp struct {
	seq  uint64
	host string
	node string
	item pubsubmodel.Item
}

type deleteOp struct {
	seq    uint64
	host   string
	node   string
	itemID string
}

// flusher drains the pending add and delete queues against storage on a
// fixed schedule. Producers push from any goroutine; only the flusher
// goroutine consumes, so there is never more than one run in flight.
// A failed write puts the item back on its queue, so nothing is lost
// while the store is unreachable, at the cost of strict ordering.
type flusher struct {
	interval     time.Duration
	batchSize    int
	maxNodeItems int

	add *mpsc.Queue
	del *mpsc.Queue

	addDepth int32
	delDepth int32

	seq       uint64
	cancelled sync.Map

	cb *gobreaker.CircuitBreaker

	flushCh  chan chan struct{}
	stopCh   chan chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

func newFlusher(interval time.Duration, batchSize, maxNodeItems int) *flusher {
	f := &flusher{
		interval:     interval,
		batchSize:    batchSize,
		maxNodeItems: maxNodeItems,
		add:          mpsc.New(),
		del:          mpsc.New(),
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "pubsub-store",
			Timeout: interval / 2,
		}),
		flushCh: make(chan chan struct{}),
		stopCh:  make(chan chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go f.loop()
	return f
}

// enqueueAdd queues an item for durable storage. Never blocks.
// The depth gauge moves before the sequence number is taken, so a zero
// depth guarantees no operation older than the current sequence is
// still pending.
func (f *flusher) enqueueAdd(item pubsubmodel.Item, host, node string) {
	atomic.AddInt32(&f.addDepth, 1)
	op := &addOp{seq: atomic.AddUint64(&f.seq, 1), host: host, node: node, item: item}
	f.add.Push(op)
}

// enqueueDelete queues an item removal. Never blocks.
func (f *flusher) enqueueDelete(host, node, itemID string) {
	atomic.AddInt32(&f.delDepth, 1)
	op := &deleteOp{seq: atomic.AddUint64(&f.seq, 1), host: host, node: node, itemID: itemID}
	f.del.Push(op)
}

// cancelNode drops every queued operation belonging to a node. Operations
// enqueued afterwards, e.g. for a recreated node with the same name, are
// kept.
func (f *flusher) cancelNode(host, node string) {
	f.cancelled.Store(host+"\x00"+node, atomic.LoadUint64(&f.seq))
}

// depths reports how many operations await durable storage on each queue.
func (f *flusher) depths() (add, del int32) {
	return atomic.LoadInt32(&f.addDepth), atomic.LoadInt32(&f.delDepth)
}

// flush forces a run and waits for its completion. Calling flush on a
// stopped flusher is a no-op.
func (f *flusher) flush() {
	c := make(chan struct{})
	select {
	case f.flushCh <- c:
		<-c
	case <-f.doneCh:
	}
}

// stop performs a last best effort run and terminates the flusher
// goroutine. Items still queued after the final run are dropped.
// Safe to call more than once.
func (f *flusher) stop() {
	f.stopOnce.Do(func() {
		c := make(chan struct{})
		f.stopCh <- c
		<-c
	})
}

func (f *flusher) loop() {
	tc := time.NewTicker(f.interval)
	defer tc.Stop()
	for {
		select {
		case <-tc.C:
			f.run(context.Background())
		case c := <-f.flushCh:
			f.run(context.Background())
			close(c)
		case c := <-f.stopCh:
			f.run(context.Background())
			close(f.doneCh)
			close(c)
			return
		}
	}
}

func (f *flusher) run(ctx context.Context) {
	// dequeue the whole batch up front, so a requeued failure is not
	// attempted twice within the same run
	adds := make([]*addOp, 0, f.batchSize)
	for len(adds) < f.batchSize {
		v := f.add.Pop()
		if v == nil {
			break
		}
		adds = append(adds, v.(*addOp))
	}
	dels := make([]*deleteOp, 0, f.batchSize)
	for len(dels) < f.batchSize {
		v := f.del.Pop()
		if v == nil {
			break
		}
		dels = append(dels, v.(*deleteOp))
	}
	for _, op := range adds {
		if f.isCancelled(op.host, op.node, op.seq) {
			atomic.AddInt32(&f.addDepth, -1)
			continue
		}
		item := op.item
		_, err := f.cb.Execute(func() (interface{}, error) {
			return nil, storage.UpsertNodeItem(ctx, &item, op.host, op.node, f.maxNodeItems)
		})
		if err != nil {
			log.Warnf("pubsub: failed to store item %s on node %s: %v", op.item.ID, op.node, err)
			f.add.Push(op)
			continue
		}
		atomic.AddInt32(&f.addDepth, -1)
	}
	for _, op := range dels {
		if f.isCancelled(op.host, op.node, op.seq) {
			atomic.AddInt32(&f.delDepth, -1)
			continue
		}
		_, err := f.cb.Execute(func() (interface{}, error) {
			return nil, storage.DeleteNodeItem(ctx, op.host, op.node, op.itemID)
		})
		if err != nil {
			log.Warnf("pubsub: failed to delete item %s from node %s: %v", op.itemID, op.node, err)
			f.del.Push(op)
			continue
		}
		atomic.AddInt32(&f.delDepth, -1)
	}
	// once both queues are empty no pending operation predates any stored
	// cancellation point, so the map entries have done their job; pruning
	// here keeps delete/recreate cycles from growing the map forever
	if atomic.LoadInt32(&f.addDepth) == 0 && atomic.LoadInt32(&f.delDepth) == 0 {
		f.cancelled.Range(func(k, _ interface{}) bool {
			f.cancelled.Delete(k)
			return true
		})
	}
}

func (f *flusher) isCancelled(host, node string, seq uint64) bool {
	v, ok := f.cancelled.Load(host + "\x00" + node)
	if !ok {
		return false
	}
	return seq <= v.(uint64)
}
