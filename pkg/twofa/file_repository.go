package twofa

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

const factorStateFile = "twofa.json"

// FileStateRepository implements StateRepository on a JSON file.
type FileStateRepository struct {
	dataDir string
	states  map[uuid.UUID]FactorState
	mutex   sync.RWMutex
}

func NewFileStateRepository(dataDir string) (*FileStateRepository, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileStateRepository{
		dataDir: dataDir,
		states:  make(map[uuid.UUID]FactorState),
	}
	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	return repo, nil
}

func (r *FileStateRepository) Get(ctx context.Context, accountID uuid.UUID) (FactorState, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return lookupState(r.states, accountID), nil
}

func (r *FileStateRepository) SetPending(ctx context.Context, accountID uuid.UUID, pendingSecret string) error {
	return r.transition(accountID, func(cur FactorState) (FactorState, error) {
		return applySetPending(cur, pendingSecret)
	})
}

func (r *FileStateRepository) Activate(ctx context.Context, accountID uuid.UUID, expectedPending string) error {
	return r.transition(accountID, func(cur FactorState) (FactorState, error) {
		return applyActivate(cur, expectedPending)
	})
}

func (r *FileStateRepository) Deactivate(ctx context.Context, accountID uuid.UUID) error {
	return r.transition(accountID, applyDeactivate)
}

// transition applies fn and persists the result, rolling back on save failure.
func (r *FileStateRepository) transition(accountID uuid.UUID, fn func(FactorState) (FactorState, error)) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	previous, had := r.states[accountID]
	next, err := fn(lookupState(r.states, accountID))
	if err != nil {
		return err
	}
	r.states[accountID] = next

	if err := r.save(); err != nil {
		if had {
			r.states[accountID] = previous
		} else {
			delete(r.states, accountID)
		}
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (r *FileStateRepository) load() error {
	data, err := os.ReadFile(filepath.Join(r.dataDir, factorStateFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var states []FactorState
	if err := json.Unmarshal(data, &states); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	for _, s := range states {
		r.states[s.AccountID] = s
	}
	return nil
}

func (r *FileStateRepository) save() error {
	states := make([]FactorState, 0, len(r.states))
	for _, s := range r.states {
		states = append(states, s)
	}

	data, err := json.MarshalIndent(states, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	tempFile := filepath.Join(r.dataDir, factorStateFile+".tmp")
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, filepath.Join(r.dataDir, factorStateFile)); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
