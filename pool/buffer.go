/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package pool

import (
	"bytes"
	"sync"
)

// BufferPool represents a reusable bytes.Buffer pool.
type BufferPool struct {
	pool sync.Pool
}

// NewBufferPool returns an initialized buffer pool instance.
func NewBufferPool() *BufferPool {
	return &BufferPool{
		pool: sync.Pool{New: func() interface{} { return new(bytes.Buffer) }},
	}
}

// Get returns a cleared buffer instance from the pool.
func (bp *BufferPool) Get() *bytes.Buffer {
	return bp.pool.Get().(*bytes.Buffer)
}

// Put returns a buffer instance back to the pool.
func (bp *BufferPool) Put(buf *bytes.Buffer) {
	buf.Reset()
	bp.pool.Put(buf)
}
