package twofa

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the position of an account in the enrollment state machine.
type State string

const (
	StateDisabled            State = "DISABLED"
	StatePendingConfirmation State = "PENDING_CONFIRMATION"
	StateEnabled             State = "ENABLED"
)

// FactorState is the persisted second-factor record of one account.
// Secret and PendingSecret hold SecretCipher output, never plaintext.
type FactorState struct {
	AccountID     uuid.UUID `json:"account_id"`
	Enabled       bool      `json:"enabled"`
	Secret        string    `json:"secret,omitempty"`
	PendingSecret string    `json:"pending_secret,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (s FactorState) State() State {
	switch {
	case s.Enabled:
		return StateEnabled
	case s.PendingSecret != "":
		return StatePendingConfirmation
	default:
		return StateDisabled
	}
}

// ErrStateChanged is returned when a conditional transition finds the
// record in a different state than the caller expected.
var ErrStateChanged = errors.New("second factor state changed")

// StateRepository persists FactorState. Every transition is a
// compare-and-set on the stored record so that two racing callers cannot
// both succeed.
type StateRepository interface {
	// Get returns the state, or a DISABLED state when the account has no record.
	Get(ctx context.Context, accountID uuid.UUID) (FactorState, error)
	// SetPending stores a new pending secret unless the factor is enabled.
	SetPending(ctx context.Context, accountID uuid.UUID, pendingSecret string) error
	// Activate promotes the pending secret if it still equals expectedPending.
	Activate(ctx context.Context, accountID uuid.UUID, expectedPending string) error
	// Deactivate disables an enabled factor and drops both secrets.
	Deactivate(ctx context.Context, accountID uuid.UUID) error
}

// InMemoryStateRepository keeps factor state in process memory.
type InMemoryStateRepository struct {
	mu     sync.RWMutex
	states map[uuid.UUID]FactorState
}

func NewInMemoryStateRepository() *InMemoryStateRepository {
	return &InMemoryStateRepository{states: make(map[uuid.UUID]FactorState)}
}

func (r *InMemoryStateRepository) Get(ctx context.Context, accountID uuid.UUID) (FactorState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lookupState(r.states, accountID), nil
}

func (r *InMemoryStateRepository) SetPending(ctx context.Context, accountID uuid.UUID, pendingSecret string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	next, err := applySetPending(lookupState(r.states, accountID), pendingSecret)
	if err != nil {
		return err
	}
	r.states[accountID] = next
	return nil
}

func (r *InMemoryStateRepository) Activate(ctx context.Context, accountID uuid.UUID, expectedPending string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	next, err := applyActivate(lookupState(r.states, accountID), expectedPending)
	if err != nil {
		return err
	}
	r.states[accountID] = next
	return nil
}

func (r *InMemoryStateRepository) Deactivate(ctx context.Context, accountID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	next, err := applyDeactivate(lookupState(r.states, accountID))
	if err != nil {
		return err
	}
	r.states[accountID] = next
	return nil
}

func lookupState(states map[uuid.UUID]FactorState, accountID uuid.UUID) FactorState {
	if s, ok := states[accountID]; ok {
		return s
	}
	return FactorState{AccountID: accountID}
}

// The apply functions hold the transition rules shared by the map-backed repositories.

func applySetPending(cur FactorState, pendingSecret string) (FactorState, error) {
	if cur.Enabled {
		return cur, ErrStateChanged
	}
	cur.PendingSecret = pendingSecret
	cur.UpdatedAt = time.Now().UTC()
	return cur, nil
}

func applyActivate(cur FactorState, expectedPending string) (FactorState, error) {
	if cur.Enabled || cur.PendingSecret == "" || cur.PendingSecret != expectedPending {
		return cur, ErrStateChanged
	}
	cur.Enabled = true
	cur.Secret = cur.PendingSecret
	cur.PendingSecret = ""
	cur.UpdatedAt = time.Now().UTC()
	return cur, nil
}

func applyDeactivate(cur FactorState) (FactorState, error) {
	if !cur.Enabled {
		return cur, ErrStateChanged
	}
	cur.Enabled = false
	cur.Secret = ""
	cur.PendingSecret = ""
	cur.UpdatedAt = time.Now().UTC()
	return cur, nil
}
