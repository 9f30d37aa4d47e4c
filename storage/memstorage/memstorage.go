/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package memstorage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/conclave-im/conclave/model/serializer"
	"github.com/conclave-im/conclave/storage/repository"
)

// ErrMocked will be returned by every Storage method when mocked error is activated.
var ErrMocked = errors.New("memstorage: mocked error")

// Storage represents an in-memory storage container.
type Storage struct {
	mockErr uint32
	mu      sync.RWMutex
	b       map[string][]byte

	roomIDCounter       int64
	rosterItemIDCounter int64
}

// New returns a new in-memory storage container.
func New() *Storage {
	return &Storage{b: make(map[string][]byte)}
}

// User returns the user repository.
func (m *Storage) User() repository.User { return m }

// Roster returns the roster repository.
func (m *Storage) Roster() repository.Roster { return m }

// Group returns the shared group repository.
func (m *Storage) Group() repository.Group { return m }

// Room returns the chat room repository.
func (m *Storage) Room() repository.Room { return m }

// BlockList returns the block list repository.
func (m *Storage) BlockList() repository.BlockList { return m }

// PubSub returns the pubsub repository.
func (m *Storage) PubSub() repository.PubSub { return m }

// Close clears all stored entities.
func (m *Storage) Close(_ context.Context) error {
	return m.inWriteLock(func() error {
		m.b = make(map[string][]byte)
		return nil
	})
}

// ActivateMockedError makes every storage method fail with ErrMocked.
func (m *Storage) ActivateMockedError() {
	atomic.StoreUint32(&m.mockErr, 1)
}

// DeactivateMockedError deactivates mocked error.
func (m *Storage) DeactivateMockedError() {
	atomic.StoreUint32(&m.mockErr, 0)
}

func (m *Storage) inWriteLock(f func() error) error {
	if atomic.LoadUint32(&m.mockErr) == 1 {
		return ErrMocked
	}
	m.mu.Lock()
	err := f()
	m.mu.Unlock()
	return err
}

func (m *Storage) inReadLock(f func() error) error {
	if atomic.LoadUint32(&m.mockErr) == 1 {
		return ErrMocked
	}
	m.mu.RLock()
	err := f()
	m.mu.RUnlock()
	return err
}

// saveEntity stores a serialized entity under k. Callers must hold the write lock.
func (m *Storage) saveEntity(k string, entity serializer.Serializer) error {
	b, err := serializer.Serialize(entity)
	if err != nil {
		return err
	}
	m.b[k] = b
	return nil
}

// getEntity deserializes the entity stored under k. Callers must hold the read lock.
func (m *Storage) getEntity(k string, entity serializer.Deserializer) (bool, error) {
	b := m.b[k]
	if b == nil {
		return false, nil
	}
	if err := serializer.Deserialize(b, entity); err != nil {
		return false, err
	}
	return true, nil
}

// saveSlice stores a serialized entity slice under k. Callers must hold the write lock.
func (m *Storage) saveSlice(k string, slice interface{}) error {
	b, err := serializer.SerializeSlice(slice)
	if err != nil {
		return err
	}
	m.b[k] = b
	return nil
}

// getSlice deserializes the entity slice stored under k. Callers must hold the read lock.
func (m *Storage) getSlice(k string, slice interface{}) error {
	b := m.b[k]
	if b == nil {
		return nil
	}
	return serializer.DeserializeSlice(b, slice)
}

// forEachKeyPrefix invokes f for every stored key matching prefix. Callers must hold the read lock.
func (m *Storage) forEachKeyPrefix(prefix string, f func(k string) error) error {
	for k := range m.b {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if err := f(k); err != nil {
			return err
		}
	}
	return nil
}
