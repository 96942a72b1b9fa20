package login

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const accountsFile = "accounts.json"

// FileAccountRepository implements AccountRepository on a JSON file.
type FileAccountRepository struct {
	dataDir  string
	accounts map[uuid.UUID]Account
	mutex    sync.RWMutex
}

type accountData struct {
	Accounts []Account `json:"accounts"`
}

func NewFileAccountRepository(dataDir string) (*FileAccountRepository, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileAccountRepository{
		dataDir:  dataDir,
		accounts: make(map[uuid.UUID]Account),
	}
	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	return repo, nil
}

func (r *FileAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (Account, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	account, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (r *FileAccountRepository) GetByUsername(ctx context.Context, username string) (Account, error) {
	username = strings.TrimSpace(username)
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	for _, a := range r.accounts {
		if a.Username == username {
			return a, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (r *FileAccountRepository) Create(ctx context.Context, account Account) (Account, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.insert(account)
}

func (r *FileAccountRepository) HasAdmin(ctx context.Context) (bool, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return hasAdmin(r.accounts), nil
}

func (r *FileAccountRepository) CreateFirstAdmin(ctx context.Context, account Account) (Account, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if hasAdmin(r.accounts) {
		return Account{}, ErrAlreadyInitialized
	}
	return r.insert(account)
}

// insert adds the account and persists, dropping it again if the save fails.
func (r *FileAccountRepository) insert(account Account) (Account, error) {
	account = prepare(account, time.Now().UTC())
	for _, a := range r.accounts {
		if a.Username == account.Username {
			return Account{}, ErrUsernameTaken
		}
	}
	r.accounts[account.ID] = account
	if err := r.save(); err != nil {
		delete(r.accounts, account.ID)
		return Account{}, err
	}
	return account, nil
}

func (r *FileAccountRepository) load() error {
	path := filepath.Join(r.dataDir, accountsFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var stored accountData
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for _, a := range stored.Accounts {
		r.accounts[a.ID] = a
	}
	return nil
}

// save writes through a temp file so a crash never leaves a torn file.
func (r *FileAccountRepository) save() error {
	stored := accountData{Accounts: make([]Account, 0, len(r.accounts))}
	for _, a := range r.accounts {
		stored.Accounts = append(stored.Accounts, a)
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %w", err)
	}

	path := filepath.Join(r.dataDir, accountsFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write accounts: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace accounts file: %w", err)
	}
	return nil
}
