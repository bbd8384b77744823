// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies who wrote a history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one message in a conversation.
type Entry struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	// Set on assistant entries while and after a run.
	Stage      string `json:"stage,omitempty"`
	Pending    bool   `json:"pending,omitempty"`
	Error      bool   `json:"error,omitempty"`
	Image      string `json:"image,omitempty"`
	ImageName  string `json:"image_name,omitempty"`
	ImageFresh bool   `json:"image_fresh,omitempty"`
}

// History is the ordered conversation of one chat session. Entries are
// append-only except pending ones, which Update rewrites while their run is
// in progress. Safe for concurrent use.
type History struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{}
}

// Append adds e, filling in ID and CreatedAt, and returns the stored entry.
func (h *History) Append(e Entry) Entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	h.entries = append(h.entries, e)
	return e
}

// Update applies fn to the pending entry with the given id and returns the
// result. ok is false when no such entry exists, for instance after Clear.
func (h *History) Update(id string, fn func(*Entry)) (e Entry, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := len(h.entries) - 1; i >= 0; i-- {
		cur := &h.entries[i]
		if cur.ID != id {
			continue
		}
		if !cur.Pending {
			return Entry{}, false
		}
		created := cur.CreatedAt
		fn(cur)
		cur.ID, cur.CreatedAt = id, created
		return *cur, true
	}
	return Entry{}, false
}

// Messages returns a copy of the entries.
func (h *History) Messages() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Clear removes every entry.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}

// Sessions maps chat session IDs to their histories.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*History
}

// NewSessions returns an empty session store.
func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[string]*History)}
}

// Get returns the history for id, creating it on first use.
func (s *Sessions) Get(id string) *History {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.sessions[id]
	if !ok {
		h = NewHistory()
		s.sessions[id] = h
	}
	return h
}
