package backupcode

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const backupCodesFile = "backup_codes.json"

// FileStore keeps backup codes in a JSON file, rewritten atomically on every change.
type FileStore struct {
	dataDir string
	mu      sync.RWMutex
	codes   map[uuid.UUID][]Code
}

func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	s := &FileStore{
		dataDir: dataDir,
		codes:   make(map[uuid.UUID][]Code),
	}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("failed to load backup codes: %w", err)
	}
	return s, nil
}

func (s *FileStore) Replace(ctx context.Context, accountID uuid.UUID, hashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, had := s.codes[accountID]
	s.codes[accountID] = newCodes(accountID, hashes, time.Now().UTC())
	if err := s.save(); err != nil {
		if had {
			s.codes[accountID] = previous
		} else {
			delete(s.codes, accountID)
		}
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (s *FileStore) ConsumeMatching(ctx context.Context, accountID uuid.UUID, match MatchFunc) (bool, error) {
	s.mu.RLock()
	candidates := unusedCopy(s.codes[accountID])
	s.mu.RUnlock()

	for _, c := range candidates {
		if !match(c.Hash) {
			continue
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if !markUsed(s.codes[accountID], c.ID, time.Now().UTC()) {
			return false, nil
		}
		if err := s.save(); err != nil {
			unmarkUsed(s.codes[accountID], c.ID)
			return false, fmt.Errorf("failed to save: %w", err)
		}
		return true, nil
	}
	return false, nil
}

func (s *FileStore) Clear(ctx context.Context, accountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, had := s.codes[accountID]
	if !had {
		return nil
	}
	delete(s.codes, accountID)
	if err := s.save(); err != nil {
		s.codes[accountID] = previous
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (s *FileStore) CountUnused(ctx context.Context, accountID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(unusedCopy(s.codes[accountID])), nil
}

func unmarkUsed(codes []Code, id uuid.UUID) {
	for i := range codes {
		if codes[i].ID == id {
			codes[i].Used = false
			codes[i].UsedAt = nil
			return
		}
	}
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(filepath.Join(s.dataDir, backupCodesFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var codes []Code
	if err := json.Unmarshal(data, &codes); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	for _, c := range codes {
		s.codes[c.AccountID] = append(s.codes[c.AccountID], c)
	}
	return nil
}

// save writes the file via a temp file and rename. Caller holds the write lock.
func (s *FileStore) save() error {
	all := make([]Code, 0)
	for _, codes := range s.codes {
		all = append(all, codes...)
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	tmp := filepath.Join(s.dataDir, backupCodesFile+".tmp")
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dataDir, backupCodesFile)); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
