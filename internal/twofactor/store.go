// Package twofactor holds the short-lived state of the email-code login
// step: the pending code per user and the resend throttle bookkeeping.
// State lives either in process memory (single instance) or in Redis
// (multiple instances behind a load balancer).
package twofactor

import (
	"context"
	"sync"
	"time"
)

// PendingLogin is the second-factor challenge awaiting verification.
type PendingLogin struct {
	Code      string    `json:"code"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// ResendState tracks how many codes were re-sent and when the last one
// went out, so the cooldown and cap can be enforced.
type ResendState struct {
	Count      int       `json:"count"`
	LastSentAt time.Time `json:"last_sent_at"`
}

// CodeStore persists per-user two-factor state with a TTL. A nil result
// with a nil error means the entry is absent or expired.
type CodeStore interface {
	SavePending(ctx context.Context, userID string, pending PendingLogin, ttl time.Duration) error
	GetPending(ctx context.Context, userID string) (*PendingLogin, error)
	DeletePending(ctx context.Context, userID string) error

	SaveResendState(ctx context.Context, userID string, state ResendState, ttl time.Duration) error
	GetResendState(ctx context.Context, userID string) (*ResendState, error)
	DeleteResendState(ctx context.Context, userID string) error
}

type memoryEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// MemoryStore is the default single-instance CodeStore.
type MemoryStore struct {
	mu      sync.Mutex
	pending map[string]memoryEntry[PendingLogin]
	resend  map[string]memoryEntry[ResendState]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pending: make(map[string]memoryEntry[PendingLogin]),
		resend:  make(map[string]memoryEntry[ResendState]),
	}
}

func (s *MemoryStore) SavePending(_ context.Context, userID string, pending PendingLogin, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[userID] = memoryEntry[PendingLogin]{value: pending, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) GetPending(_ context.Context, userID string) (*PendingLogin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.pending[userID]
	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.pending, userID)
		return nil, nil
	}
	v := entry.value
	return &v, nil
}

func (s *MemoryStore) DeletePending(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, userID)
	return nil
}

func (s *MemoryStore) SaveResendState(_ context.Context, userID string, state ResendState, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resend[userID] = memoryEntry[ResendState]{value: state, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) GetResendState(_ context.Context, userID string) (*ResendState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.resend[userID]
	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.resend, userID)
		return nil, nil
	}
	v := entry.value
	return &v, nil
}

func (s *MemoryStore) DeleteResendState(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.resend, userID)
	return nil
}
