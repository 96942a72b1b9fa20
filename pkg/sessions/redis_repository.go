package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "pending_session:"

// RedisPendingStore keeps pending sessions as JSON values whose TTL matches
// the session expiry. Consume relies on GETDEL, so only one caller can
// read a value before it is gone.
type RedisPendingStore struct {
	client *redis.Client
}

func NewRedisPendingStore(client *redis.Client) *RedisPendingStore {
	return &RedisPendingStore{client: client}
}

func (s *RedisPendingStore) Create(ctx context.Context, session PendingSession) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal pending session: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+session.JTI, data, ttl).Err(); err != nil {
		slog.Error("Failed to store pending session", "err", err)
		return fmt.Errorf("failed to store pending session: %w", err)
	}
	return nil
}

func (s *RedisPendingStore) Get(ctx context.Context, jti string) (PendingSession, error) {
	return s.decode(s.client.Get(ctx, redisKeyPrefix+jti).Bytes())
}

func (s *RedisPendingStore) Consume(ctx context.Context, jti string) (PendingSession, error) {
	return s.decode(s.client.GetDel(ctx, redisKeyPrefix+jti).Bytes())
}

func (s *RedisPendingStore) decode(data []byte, err error) (PendingSession, error) {
	if errors.Is(err, redis.Nil) {
		return PendingSession{}, ErrNotFound
	}
	if err != nil {
		return PendingSession{}, fmt.Errorf("failed to read pending session: %w", err)
	}
	var session PendingSession
	if err := json.Unmarshal(data, &session); err != nil {
		return PendingSession{}, fmt.Errorf("failed to unmarshal pending session: %w", err)
	}
	if session.Expired(time.Now()) {
		return PendingSession{}, ErrNotFound
	}
	return session, nil
}
