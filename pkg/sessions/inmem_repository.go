package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMaxPending bounds how many pending sessions are held in memory.
// When full, the oldest is evicted and its owner has to log in again.
const DefaultMaxPending = 10000

// InMemoryPendingStore keeps pending sessions in an expiring LRU.
type InMemoryPendingStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, PendingSession]
	now   func() time.Time
}

type InMemoryOption func(*InMemoryPendingStore)

// WithStoreClock replaces time.Now when checking expiry.
func WithStoreClock(now func() time.Time) InMemoryOption {
	return func(s *InMemoryPendingStore) {
		s.now = now
	}
}

// NewInMemoryPendingStore evicts entries ttl after insertion. Each session's
// own ExpiresAt is also checked on read.
func NewInMemoryPendingStore(size int, ttl time.Duration, opts ...InMemoryOption) *InMemoryPendingStore {
	if size <= 0 {
		size = DefaultMaxPending
	}
	s := &InMemoryPendingStore{
		cache: expirable.NewLRU[string, PendingSession](size, nil, ttl),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryPendingStore) Create(ctx context.Context, session PendingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Add(session.JTI, session)
	return nil
}

func (s *InMemoryPendingStore) Get(ctx context.Context, jti string) (PendingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(jti)
}

func (s *InMemoryPendingStore) Consume(ctx context.Context, jti string) (PendingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.lookup(jti)
	if err != nil {
		return PendingSession{}, err
	}
	s.cache.Remove(jti)
	return session, nil
}

// lookup drops expired entries eagerly. Caller holds mu.
func (s *InMemoryPendingStore) lookup(jti string) (PendingSession, error) {
	session, ok := s.cache.Peek(jti)
	if !ok {
		return PendingSession{}, ErrNotFound
	}
	if session.Expired(s.now()) {
		s.cache.Remove(jti)
		return PendingSession{}, ErrNotFound
	}
	return session, nil
}

func (s *InMemoryPendingStore) Len() int {
	return s.cache.Len()
}
