package backupcode

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Code is one stored backup code. Only the bcrypt hash is persisted.
type Code struct {
	ID        uuid.UUID  `json:"id"`
	AccountID uuid.UUID  `json:"account_id"`
	Hash      string     `json:"code_hash"`
	Used      bool       `json:"used"`
	CreatedAt time.Time  `json:"created_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

// MatchFunc reports whether a stored hash matches the candidate being consumed.
type MatchFunc func(hash string) bool

// Store persists backup code sets.
//
// Replace swaps the whole set for an account in one step. ConsumeMatching
// marks at most one unused code whose hash satisfies match; when several
// callers race on the same code exactly one of them observes true.
type Store interface {
	Replace(ctx context.Context, accountID uuid.UUID, hashes []string) error
	ConsumeMatching(ctx context.Context, accountID uuid.UUID, match MatchFunc) (bool, error)
	Clear(ctx context.Context, accountID uuid.UUID) error
	CountUnused(ctx context.Context, accountID uuid.UUID) (int, error)
}

func newCodes(accountID uuid.UUID, hashes []string, now time.Time) []Code {
	codes := make([]Code, 0, len(hashes))
	for _, h := range hashes {
		codes = append(codes, Code{
			ID:        uuid.New(),
			AccountID: accountID,
			Hash:      h,
			CreatedAt: now,
		})
	}
	return codes
}
