// Package transcript holds the bounded, ordered message history shared by
// all requests of the conversation engine.
package transcript

import (
	"sync"
	"time"

	"github.com/xiaot623/gogo/chatengine/internal/domain"
)

// Store is the in-memory transcript. All mutations happen under one lock;
// a user/assistant pair is appended as a unit.
type Store struct {
	mu        sync.RWMutex
	turns     []domain.Turn
	retention Retention
	now       func() time.Time
	last      time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock makes the store stamp appended user and assistant turns itself,
// under the lock, so timestamps follow append order.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty transcript governed by the given retention policy.
func NewStore(retention Retention, opts ...Option) *Store {
	s := &Store{retention: retention}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxMessages returns the configured transcript bound.
func (s *Store) MaxMessages() int {
	return s.retention.MaxMessages
}

// Append adds a single turn. A system turn replaces the active one.
func (s *Store) Append(turn domain.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if turn.IsSystem() {
		s.replaceSystemLocked(turn)
	} else {
		turn.Timestamp = s.stampLocked(turn.Timestamp)
		s.turns = append(s.turns, turn)
	}
	s.retainLocked()
}

// AppendPair appends one completed exchange atomically and applies retention
// before releasing the lock.
func (s *Store) AppendPair(user, assistant domain.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Timestamp = s.stampLocked(user.Timestamp)
	assistant.Timestamp = s.stampLocked(assistant.Timestamp)
	s.turns = append(s.turns, user, assistant)
	s.retainLocked()
}

// ReplaceSystemTurn drops any system turn and installs turn at the front.
func (s *Store) ReplaceSystemTurn(turn domain.Turn) {
	turn.Role = domain.RoleSystem

	s.mu.Lock()
	defer s.mu.Unlock()

	s.replaceSystemLocked(turn)
	s.retainLocked()
}

// SystemTurn returns the active system turn, if any.
func (s *Store) SystemTurn() (domain.Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.turns {
		if t.IsSystem() {
			return t, true
		}
	}
	return domain.Turn{}, false
}

// Snapshot returns a copy of the last n turns (all turns when n <= 0).
// The window never starts with an assistant turn whose user turn was cut off.
func (s *Store) Snapshot(n int) []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if n > 0 && n < len(s.turns) {
		start = len(s.turns) - n
		if s.turns[start].Role == domain.RoleAssistant && s.turns[start-1].Role == domain.RoleUser {
			start++
		}
	}

	out := make([]domain.Turn, len(s.turns)-start)
	copy(out, s.turns[start:])
	return out
}

// Payload builds the prompt for one backend call: the active system turn,
// the most recent `recent` user/assistant turns and the new user turn.
func (s *Store) Payload(user domain.Turn, recent int) []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var system []domain.Turn
	var convo []domain.Turn
	for _, t := range s.turns {
		switch t.Role {
		case domain.RoleSystem:
			system = append(system, t)
		case domain.RoleUser, domain.RoleAssistant:
			convo = append(convo, t)
		}
	}
	if recent < 0 {
		recent = 0
	}
	if recent < len(convo) {
		convo = convo[len(convo)-recent:]
	}

	out := make([]domain.Turn, 0, len(system)+len(convo)+1)
	out = append(out, system...)
	out = append(out, convo...)
	out = append(out, user)
	return out
}

// Len returns the number of stored turns.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Clear empties the transcript.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
	s.last = time.Time{}
}

// Hydrate replaces the transcript with previously persisted turns. Only the
// latest system turn survives and retention is applied.
func (s *Store) Hydrate(turns []domain.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = nil
	s.last = time.Time{}
	for _, t := range turns {
		if !t.Role.Valid() {
			continue
		}
		if t.IsSystem() {
			s.replaceSystemLocked(t)
			continue
		}
		s.turns = append(s.turns, t)
		if t.Timestamp.After(s.last) {
			s.last = t.Timestamp
		}
	}
	if len(s.turns) <= s.retention.MaxMessages {
		return
	}

	// Hydrated data may exceed the bound; keep the newest turns that fit.
	var system []domain.Turn
	rest := s.turns
	if len(rest) > 0 && rest[0].IsSystem() {
		system, rest = rest[:1], rest[1:]
	}
	room := s.retention.MaxMessages - len(system)
	if room < 0 {
		room = 0
	}
	if room < len(rest) {
		rest = rest[len(rest)-room:]
	}
	s.turns = append(append([]domain.Turn{}, system...), rest...)
}

func (s *Store) replaceSystemLocked(turn domain.Turn) {
	kept := make([]domain.Turn, 0, len(s.turns)+1)
	kept = append(kept, turn)
	for _, t := range s.turns {
		if !t.IsSystem() {
			kept = append(kept, t)
		}
	}
	s.turns = kept
}

// stampLocked returns the timestamp for the next conversation turn: the
// store clock when set, otherwise at, never earlier than the previous one.
func (s *Store) stampLocked(at time.Time) time.Time {
	if s.now != nil {
		at = s.now()
	}
	if at.Before(s.last) {
		at = s.last
	}
	s.last = at
	return at
}

func (s *Store) retainLocked() {
	if s.retention.ShouldTrim(len(s.turns)) {
		s.turns = s.retention.Trim(s.turns)
	}
}
