package sessions

import "context"

// PendingStore holds pending sessions until they are consumed or expire.
//
// Consume is atomic: when several callers consume the same JTI, exactly
// one receives the session and the others get ErrNotFound.
type PendingStore interface {
	Create(ctx context.Context, session PendingSession) error
	Get(ctx context.Context, jti string) (PendingSession, error)
	Consume(ctx context.Context, jti string) (PendingSession, error)
}
