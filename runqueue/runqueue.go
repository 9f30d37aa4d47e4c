/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package runqueue

import (
	"sync/atomic"

	"github.com/conclave-im/conclave/log"
	"github.com/conclave-im/conclave/runqueue/mpsc"
)

const (
	idle int32 = iota
	running
)

// RunQueue serializes function execution: posted functions run one at a
// time, in post order, on a goroutine scheduled on demand.
type RunQueue struct {
	name         string
	queue        *mpsc.Queue
	messageCount int32
	state        int32
}

// New returns an initialized run queue.
func New(name string) *RunQueue {
	return &RunQueue{
		name:  name,
		queue: mpsc.New(),
	}
}

// Post enqueues fn for execution.
func (m *RunQueue) Post(fn func()) {
	m.queue.Push(fn)
	atomic.AddInt32(&m.messageCount, 1)
	m.schedule()
}

// Pending returns the number of functions waiting to run.
func (m *RunQueue) Pending() int32 {
	return atomic.LoadInt32(&m.messageCount)
}

func (m *RunQueue) schedule() {
	if atomic.CompareAndSwapInt32(&m.state, idle, running) {
		go m.process()
	}
}

func (m *RunQueue) process() {

process:
	m.run()

	atomic.StoreInt32(&m.state, idle)
	if atomic.LoadInt32(&m.messageCount) > 0 {
		// try setting the queue back to running
		if atomic.CompareAndSwapInt32(&m.state, idle, running) {
			goto process
		}
	}
}

func (m *RunQueue) run() {

	defer func() {
		if err := recover(); err != nil {
			log.Debugf("run queue %s panicked with error: %v", m.name, err)
		}
	}()

	for {
		if fn := m.queue.Pop(); fn != nil {
			fn.(func())()
			atomic.AddInt32(&m.messageCount, -1)
		} else {
			return
		}
	}
}
