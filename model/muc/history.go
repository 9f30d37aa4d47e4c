/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package mucmodel

import (
	"sync"
	"time"

	"github.com/conclave-im/conclave/xmpp"
)

const delayNamespace = "urn:xmpp:delay"

type historyEntry struct {
	message     *xmpp.Element
	stamp       time.Time
	occupantJID string // real full JID of the sender
	nickJID     string // room nickname JID of the sender
}

// History is a bounded buffer of discussion messages replayed to new joiners.
// Stored messages carry a delayed delivery tag whose "from" attribute depends
// on the room's anonymity policy and is rewritten when that policy changes.
type History struct {
	mu       sync.RWMutex
	capacity int
	entries  []historyEntry
}

// NewHistory creates a history buffer retaining up to capacity messages.
// A non-positive capacity disables retention.
func NewHistory(capacity int) *History {
	return &History{capacity: capacity}
}

// Append stores a defensive copy of a broadcast message, stripped of session
// binding and tagged with its delivery timestamp.
func (h *History) Append(message xmpp.XElement, occupantJID, nickJID string, nonAnonymous bool) {
	if h.capacity <= 0 {
		return
	}
	stamp := time.Now()
	msg := xmpp.NewElementFromElement(message)
	msg.SetFrom(nickJID)
	msg.RemoveAttribute("to")
	msg.RemoveElementsNamespace("delay", delayNamespace)
	msg.DelayAt(stamp, delayFrom(occupantJID, nickJID, nonAnonymous), "")

	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, historyEntry{
		message:     msg,
		stamp:       stamp,
		occupantJID: occupantJID,
		nickJID:     nickJID,
	})
	if len(h.entries) > h.capacity {
		h.entries = h.entries[len(h.entries)-h.capacity:]
	}
}

// Messages returns copies of the buffered messages, newest last. A positive
// maxStanzas limits the result to the most recent messages, and a non-zero
// since drops messages older than it.
func (h *History) Messages(maxStanzas int, since time.Time) []*xmpp.Element {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entries := h.entries
	if !since.IsZero() {
		i := 0
		for ; i < len(entries); i++ {
			if !entries[i].stamp.Before(since) {
				break
			}
		}
		entries = entries[i:]
	}
	if maxStanzas >= 0 && len(entries) > maxStanzas {
		entries = entries[len(entries)-maxStanzas:]
	}
	res := make([]*xmpp.Element, 0, len(entries))
	for _, e := range entries {
		res = append(res, xmpp.NewElementFromElement(e.message))
	}
	return res
}

// Len returns the number of buffered messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// RewriteFrom updates the delayed delivery "from" attribute of every buffered
// message to match a new anonymity policy. It runs synchronously on the
// triggering thread so no message is ever replayed with a stale sender.
func (h *History) RewriteFrom(nonAnonymous bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, e := range h.entries {
		e.message.RemoveElementsNamespace("delay", delayNamespace)
		e.message.DelayAt(e.stamp, delayFrom(e.occupantJID, e.nickJID, nonAnonymous), "")
	}
}

func delayFrom(occupantJID, nickJID string, nonAnonymous bool) string {
	if nonAnonymous {
		return occupantJID
	}
	return nickJID
}
