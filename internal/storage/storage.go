package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"jarconsole/internal/models"
)

// HistoryStorage keeps accepted status listings on disk. Only listings that
// differ from the previous one are recorded, so each entry holds until the
// next one replaces it.
type HistoryStorage struct {
	mu      sync.RWMutex
	path    string
	limit   int
	history []models.StatusEntry
}

// NewHistoryStorage creates a storage instance and loads existing history if present.
func NewHistoryStorage(path string, limit int) (*HistoryStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}

	s := &HistoryStorage{path: path, limit: limit}
	if err := s.load(); err != nil {
		return nil, err
	}
	s.trimLocked()
	return s, nil
}

// Record appends entry when its rows differ from the latest stored ones and
// persists the history. It reports whether anything was written.
func (s *HistoryStorage) Record(entry models.StatusEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.history); n > 0 && models.SameItems(s.history[n-1].Items, entry.Items) {
		return false, nil
	}
	s.history = append(s.history, entry)
	s.trimLocked()
	return true, s.persist()
}

// Latest returns the latest status entry if it exists.
func (s *HistoryStorage) Latest() (models.StatusEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.history) == 0 {
		return models.StatusEntry{}, false
	}
	return s.history[len(s.history)-1], true
}

// History returns a copy of the entire history slice.
func (s *HistoryStorage) History() []models.StatusEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]models.StatusEntry, len(s.history))
	copy(copied, s.history)
	return copied
}

// HistoryN returns up to the n most recent entries, oldest first.
func (s *HistoryStorage) HistoryN(n int) []models.StatusEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if n > 0 && len(s.history) > n {
		start = len(s.history) - n
	}
	copied := make([]models.StatusEntry, len(s.history)-start)
	copy(copied, s.history[start:])
	return copied
}

func (s *HistoryStorage) trimLocked() {
	if s.limit > 0 && len(s.history) > s.limit {
		s.history = append([]models.StatusEntry(nil), s.history[len(s.history)-s.limit:]...)
	}
}

func (s *HistoryStorage) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.history = []models.StatusEntry{}
			return nil
		}
		return fmt.Errorf("read history: %w", err)
	}

	if len(data) == 0 {
		s.history = []models.StatusEntry{}
		return nil
	}

	var entries []models.StatusEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse history: %w", err)
	}

	s.history = entries
	return nil
}

func (s *HistoryStorage) persist() error {
	bytes, err := json.MarshalIndent(s.history, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, bytes, 0o644); err != nil {
		return fmt.Errorf("write temp history: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace history file: %w", err)
	}
	return nil
}
