/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

// Package mpsc provides an efficient implementation of a multi-producer,
// single-consumer lock-free queue. Producers never block on the consumer.
package mpsc

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

type node struct {
	next unsafe.Pointer
	val  interface{}
}

var nodePool = sync.Pool{New: func() interface{} { return &node{} }}

// Queue is a lock-free MPSC FIFO. Any goroutine may push, a single
// consumer goroutine pops.
type Queue struct {
	head unsafe.Pointer
	tail unsafe.Pointer
}

// New returns an empty queue.
func New() *Queue {
	q := &Queue{}
	stub := &node{}
	q.head = unsafe.Pointer(stub)
	q.tail = unsafe.Pointer(stub)
	return q
}

// Push adds x to the back of the queue.
func (q *Queue) Push(x interface{}) {
	n := nodePool.Get().(*node)
	n.val = x
	prev := (*node)(atomic.SwapPointer(&q.head, unsafe.Pointer(n)))
	atomic.StorePointer(&prev.next, unsafe.Pointer(n))
}

// Pop removes the item at the front of the queue, or returns nil if the
// queue is empty. Only the consumer may call it.
func (q *Queue) Pop() interface{} {
	tail := (*node)(q.tail)
	next := (*node)(atomic.LoadPointer(&tail.next))
	if next == nil {
		return nil
	}
	q.tail = unsafe.Pointer(next)
	v := next.val
	next.val = nil
	tail.next = nil
	nodePool.Put(tail)
	return v
}

// Empty tells whether the queue has no items. Only accurate when called
// from the consumer.
func (q *Queue) Empty() bool {
	tail := (*node)(q.tail)
	return atomic.LoadPointer(&tail.next) == nil
}
