package backupcode

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Service issues and consumes backup code sets on top of a Store.
type Service struct {
	store    Store
	count    int
	hashCost int
}

type Option func(*Service)

// WithCount sets how many codes one set contains.
func WithCount(n int) Option {
	return func(s *Service) {
		s.count = n
	}
}

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(s *Service) {
		s.hashCost = cost
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		count:    DefaultCount,
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue generates a fresh set, replaces whatever the account had, and
// returns the plaintext codes. They cannot be recovered afterwards.
func (s *Service) Issue(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	codes, err := Generate(s.count)
	if err != nil {
		return nil, err
	}

	hashes := make([]string, 0, len(codes))
	for _, c := range codes {
		h, err := bcrypt.GenerateFromPassword([]byte(c), s.hashCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash backup code: %w", err)
		}
		hashes = append(hashes, string(h))
	}

	if err := s.store.Replace(ctx, accountID, hashes); err != nil {
		return nil, fmt.Errorf("failed to store backup codes: %w", err)
	}
	return codes, nil
}

// Regenerate invalidates every code of the current set and issues a new one.
func (s *Service) Regenerate(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	codes, err := s.Issue(ctx, accountID)
	if err != nil {
		return nil, err
	}
	slog.Info("Backup codes regenerated", "account_id", accountID)
	return codes, nil
}

// Consume marks candidate as used if it matches an unused code of the
// current set. Matching is case-insensitive.
func (s *Service) Consume(ctx context.Context, accountID uuid.UUID, candidate string) (bool, error) {
	code := Normalize(candidate)
	if !IsWellFormed(code) {
		return false, nil
	}
	return s.store.ConsumeMatching(ctx, accountID, func(hash string) bool {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
	})
}

func (s *Service) Clear(ctx context.Context, accountID uuid.UUID) error {
	return s.store.Clear(ctx, accountID)
}

// Remaining returns how many codes of the current set are still unused.
func (s *Service) Remaining(ctx context.Context, accountID uuid.UUID) (int, error) {
	return s.store.CountUnused(ctx, accountID)
}
