/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package event

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"sync"
)

// Priority defines handler execution priority. Handlers subscribed with a
// higher priority run first.
type Priority int32

const (
	// LowPriority defines low handler execution priority.
	LowPriority = Priority(-1000)

	// DefaultPriority defines default handler execution priority.
	DefaultPriority = Priority(0)

	// HighPriority defines high handler execution priority.
	HighPriority = Priority(1000)
)

// ErrStopped error is returned by a handler to halt event propagation.
var ErrStopped = errors.New("event: propagation stopped")

// Handler defines a generic event handler function.
type Handler func(ctx context.Context, ev *Event) error

// Event carries a posted event and its associated payload.
type Event struct {
	// Name is the posted event name.
	Name string

	// Info holds the event payload.
	Info interface{}

	// Sender identifies the event originator.
	Sender interface{}
}

type handler struct {
	h Handler
	p Priority
}

// Bus dispatches posted events to subscribed handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]handler
}

// NewBus returns a new initialized event bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]handler)}
}

// Subscribe registers a handler for an event name with a given priority.
func (b *Bus) Subscribe(evName string, hnd Handler, priority Priority) {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers := append(b.handlers[evName], handler{h: hnd, p: priority})
	sort.SliceStable(handlers, func(i, j int) bool { return handlers[i].p > handlers[j].p })
	b.handlers[evName] = handlers
}

// Unsubscribe removes a previously registered handler.
func (b *Bus) Unsubscribe(evName string, hnd Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers := b.handlers[evName]
	for i, h := range handlers {
		if reflect.ValueOf(h.h).Pointer() != reflect.ValueOf(hnd).Pointer() {
			continue
		}
		b.handlers[evName] = append(handlers[:i], handlers[i+1:]...)
		return
	}
}

// Post invokes all handlers subscribed to the event name, in priority order.
// A handler returning ErrStopped halts propagation without error. Any other
// handler error aborts propagation and is returned to the poster.
func (b *Bus) Post(ctx context.Context, ev *Event) error {
	b.mu.RLock()
	handlers := b.handlers[ev.Name]
	b.mu.RUnlock()

	for _, h := range handlers {
		switch err := h.h(ctx, ev); {
		case err == nil:
			break
		case errors.Is(err, ErrStopped):
			return nil
		default:
			return err
		}
	}
	return nil
}
