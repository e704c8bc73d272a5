// pkg/memcache/sessions.go
package memcache

import (
	"sync"
	"time"

	"gatebot/internal/models/db_models"
)

type FunnelState string

const (
	StateIdle          FunnelState = "idle"
	StatePlanSelection FunnelState = "plan_selection"
	StateTermsPending  FunnelState = "terms_pending"
	StateChargeIssued  FunnelState = "charge_issued"
)

type SelectedPlan struct {
	Type   db_models.PlanType
	Amount float64
}

// Session is the per-user conversation state. Disposable: the ledger is the
// source of truth for anything monetary, a lost session is reconstructible.
type Session struct {
	State             FunnelState
	SelectedPlan      *SelectedPlan
	PendingMessageRef *int64
	LastActivityAt    time.Time
}

type SessionStore interface {
	Get(userID int64) (*Session, bool)

	// Put stores the session and refreshes its eviction deadline.
	Put(userID int64, s *Session)

	Delete(userID int64)
}

type entry struct {
	session   *Session
	expiresAt time.Time
}

type Sessions struct {
	mu   sync.RWMutex
	data map[int64]entry
	ttl  time.Duration
	now  func() time.Time
}

// NewSessions builds a TTL-evicting store. now is injectable for tests;
// pass nil for the wall clock.
func NewSessions(ttl time.Duration, now func() time.Time) *Sessions {
	if now == nil {
		now = time.Now
	}
	return &Sessions{
		data: make(map[int64]entry),
		ttl:  ttl,
		now:  now,
	}
}

func (s *Sessions) Get(userID int64) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[userID]
	if !ok {
		return nil, false
	}
	if s.now().After(e.expiresAt) {
		delete(s.data, userID) // cleanup expired
		return nil, false
	}
	return e.session, true
}

func (s *Sessions) Put(userID int64, sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[userID] = entry{
		session:   sess,
		expiresAt: s.now().Add(s.ttl),
	}
}

func (s *Sessions) Delete(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, userID)
}
