package sessions

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for pending sessions that never existed, have
// expired, or were already consumed. Callers cannot tell these apart.
var ErrNotFound = errors.New("pending session not found")

// PendingSession records that a password check succeeded and a second
// factor is still owed. It is keyed by the pending token's JTI.
type PendingSession struct {
	JTI       string    `json:"jti"`
	AccountID uuid.UUID `json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s PendingSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
