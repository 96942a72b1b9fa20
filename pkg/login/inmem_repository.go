package login

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryAccountRepository implements AccountRepository in process memory.
type InMemoryAccountRepository struct {
	mu         sync.RWMutex
	accounts   map[uuid.UUID]Account
	byUsername map[string]uuid.UUID
}

func NewInMemoryAccountRepository() *InMemoryAccountRepository {
	return &InMemoryAccountRepository{
		accounts:   make(map[uuid.UUID]Account),
		byUsername: make(map[string]uuid.UUID),
	}
}

func (r *InMemoryAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (r *InMemoryAccountRepository) GetByUsername(ctx context.Context, username string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUsername[strings.TrimSpace(username)]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return r.accounts[id], nil
}

func (r *InMemoryAccountRepository) Create(ctx context.Context, account Account) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insert(account)
}

func (r *InMemoryAccountRepository) HasAdmin(ctx context.Context) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return hasAdmin(r.accounts), nil
}

func (r *InMemoryAccountRepository) CreateFirstAdmin(ctx context.Context, account Account) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hasAdmin(r.accounts) {
		return Account{}, ErrAlreadyInitialized
	}
	return r.insert(account)
}

// insert assumes mu is held for writing.
func (r *InMemoryAccountRepository) insert(account Account) (Account, error) {
	account = prepare(account, time.Now().UTC())
	if _, taken := r.byUsername[account.Username]; taken {
		return Account{}, ErrUsernameTaken
	}
	r.accounts[account.ID] = account
	r.byUsername[account.Username] = account.ID
	return account, nil
}

func hasAdmin(accounts map[uuid.UUID]Account) bool {
	for _, a := range accounts {
		if a.IsAdmin {
			return true
		}
	}
	return false
}
