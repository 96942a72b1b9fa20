package backupcode

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore keeps backup codes in process memory.
type InMemoryStore struct {
	mu    sync.RWMutex
	codes map[uuid.UUID][]Code
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{codes: make(map[uuid.UUID][]Code)}
}

func (s *InMemoryStore) Replace(ctx context.Context, accountID uuid.UUID, hashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[accountID] = newCodes(accountID, hashes, time.Now().UTC())
	return nil
}

// ConsumeMatching compares hashes outside the lock and then marks the code
// only if it is still unused and still part of the current set.
func (s *InMemoryStore) ConsumeMatching(ctx context.Context, accountID uuid.UUID, match MatchFunc) (bool, error) {
	s.mu.RLock()
	candidates := unusedCopy(s.codes[accountID])
	s.mu.RUnlock()

	for _, c := range candidates {
		if !match(c.Hash) {
			continue
		}
		s.mu.Lock()
		ok := markUsed(s.codes[accountID], c.ID, time.Now().UTC())
		s.mu.Unlock()
		return ok, nil
	}
	return false, nil
}

func (s *InMemoryStore) Clear(ctx context.Context, accountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, accountID)
	return nil
}

func (s *InMemoryStore) CountUnused(ctx context.Context, accountID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(unusedCopy(s.codes[accountID])), nil
}

func unusedCopy(codes []Code) []Code {
	out := make([]Code, 0, len(codes))
	for _, c := range codes {
		if !c.Used {
			out = append(out, c)
		}
	}
	return out
}

// markUsed flips the code with id to used. Caller holds the write lock.
func markUsed(codes []Code, id uuid.UUID, now time.Time) bool {
	for i := range codes {
		if codes[i].ID != id {
			continue
		}
		if codes[i].Used {
			return false
		}
		codes[i].Used = true
		codes[i].UsedAt = &now
		return true
	}
	return false
}
