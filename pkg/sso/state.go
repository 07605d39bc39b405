package sso

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultStateTTL is how long an in-flight login attempt survives before a
// sweep may reclaim it.
const DefaultStateTTL = 60 * time.Second

// StateStore is a concurrent, TTL-evicted map from opaque state tokens to
// in-flight login records. Constructed once per process and injected into
// the adapters; pending logins are process-wide state with no durability.
//
// Eviction is opportunistic: Sweep runs before each new challenge rather
// than on a background timer, so TTL precision is best-effort.
type StateStore struct {
	mu      sync.Mutex
	records map[string]*PendingLogin
	ttl     time.Duration
	now     func() time.Time

	onSweep func(removed int)
}

// NewStateStore creates a state store with the given TTL. A zero ttl uses
// DefaultStateTTL.
func NewStateStore(ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateStore{
		records: make(map[string]*PendingLogin),
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetSweepHook registers a callback invoked with the number of records each
// sweep removed. Used for metrics.
func (s *StateStore) SetSweepHook(fn func(removed int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSweep = fn
}

// Create inserts a new pending login under token. Fails with
// ErrDuplicateToken if the token is already registered.
func (s *StateStore) Create(token, protocolState string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[token]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateToken, token)
	}
	s.records[token] = &PendingLogin{
		StateToken:    token,
		ProtocolState: protocolState,
		CreatedAt:     s.now(),
	}
	return nil
}

// Get returns a copy of the record for token, or ErrNoMatchingState.
func (s *StateStore) Get(token string) (PendingLogin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[token]
	if !ok {
		return PendingLogin{}, ErrNoMatchingState
	}
	return clonePending(rec), nil
}

// Update applies fn to the record for token as a single critical section, so
// claim accumulation for one callback cannot interleave with concurrent
// operations on the same token.
func (s *StateStore) Update(token string, fn func(*PendingLogin)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[token]
	if !ok {
		return ErrNoMatchingState
	}
	fn(rec)
	rec.StateToken = token // The key is not mutable through Update.
	return nil
}

// Consume removes and returns the record for token in one critical section.
// Two callers presenting the same token cannot both receive the record, so a
// token mints at most one session.
func (s *StateStore) Consume(token string) (PendingLogin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[token]
	if !ok {
		return PendingLogin{}, ErrNoMatchingState
	}
	delete(s.records, token)
	return clonePending(rec), nil
}

// Remove deletes the record for token, if present.
func (s *StateStore) Remove(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, token)
}

// Sweep removes every record older than the TTL and reports how many were
// removed.
func (s *StateStore) Sweep() int {
	s.mu.Lock()
	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for token, rec := range s.records {
		if rec.CreatedAt.Before(cutoff) {
			delete(s.records, token)
			removed++
		}
	}
	hook := s.onSweep
	s.mu.Unlock()

	if hook != nil && removed > 0 {
		hook(removed)
	}
	return removed
}

// List returns a snapshot of all in-flight records, ordered by creation
// time. Diagnostic use only.
func (s *StateStore) List() []PendingLogin {
	s.mu.Lock()
	out := make([]PendingLogin, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, clonePending(rec))
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].StateToken < out[j].StateToken
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len reports the number of in-flight records.
func (s *StateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func clonePending(rec *PendingLogin) PendingLogin {
	out := *rec
	out.Folders = append([]string(nil), rec.Folders...)
	return out
}

// NewStateToken returns a fresh high-entropy opaque token correlating a
// challenge with its later callback.
func NewStateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
