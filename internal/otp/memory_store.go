package otp

import (
	"context"
	"sync"
	"time"

	"github.com/ruralpay/cartable/internal/errs"
	"github.com/ruralpay/cartable/internal/models"
)

type memEntry struct {
	rec       record
	attempts  int
	used      bool
	expiresAt time.Time
}

type memCounter struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore keeps challenges in process. It backs tests and single-instance runs without Redis.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	rates   map[string]*memCounter
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memEntry),
		rates:   make(map[string]*memCounter),
		now:     time.Now,
	}
}

func (s *MemoryStore) live(handle string) (*memEntry, bool) {
	e, ok := s.entries[handle]
	if !ok {
		return nil, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, handle)
		return nil, false
	}
	return e, true
}

func (s *MemoryStore) Save(_ context.Context, c *models.Challenge, retention time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(c.Handle)
	if !ok {
		e = &memEntry{}
		s.entries[c.Handle] = e
	}
	e.rec = toRecord(c)
	e.expiresAt = s.now().Add(retention)
	return nil
}

func (s *MemoryStore) Load(_ context.Context, handle string) (*models.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(handle)
	if !ok {
		return nil, errs.ErrOTPNotFound
	}
	c := e.rec.challenge()
	c.Attempts = e.attempts
	return c, nil
}

func (s *MemoryStore) Delete(_ context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, handle)
	return nil
}

func (s *MemoryStore) IncrementAttempts(_ context.Context, handle string, _ time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(handle)
	if !ok {
		return 0, errs.ErrOTPNotFound
	}
	e.attempts++
	return e.attempts, nil
}

func (s *MemoryStore) ResetAttempts(_ context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.live(handle); ok {
		e.attempts = 0
	}
	return nil
}

func (s *MemoryStore) MarkUsed(_ context.Context, handle string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(handle)
	if !ok {
		return false, errs.ErrOTPNotFound
	}
	if e.used {
		return false, nil
	}
	e.used = true
	return true, nil
}

func (s *MemoryStore) IsUsed(_ context.Context, handle string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(handle)
	return ok && e.used, nil
}

func (s *MemoryStore) Hit(_ context.Context, actorID string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.rates[actorID]
	if !ok || !now.Before(c.expiresAt) {
		c = &memCounter{expiresAt: now.Add(window)}
		s.rates[actorID] = c
	}
	c.count++
	return c.count, nil
}
