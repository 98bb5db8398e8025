package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"domainwatch/internal/models"
)

// DetectionStorage journals detection batches to disk, keeping the newest limit entries.
type DetectionStorage struct {
	mu      sync.RWMutex
	path    string
	limit   int
	history []models.Detection
}

// NewDetectionStorage initialises storage and loads existing detections if present.
func NewDetectionStorage(path string, limit int) (*DetectionStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}
	store := &DetectionStorage{path: path, limit: limit}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

// Append records a detection batch and persists the journal.
func (s *DetectionStorage) Append(entry models.Detection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, entry)
	if s.limit > 0 && len(s.history) > s.limit {
		s.history = s.history[len(s.history)-s.limit:]
	}
	return writeJSONFile(s.path, s.history)
}

// History returns a copy of the newest n detections; n <= 0 returns all.
func (s *DetectionStorage) History(n int) []models.Detection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.history) == 0 {
		return nil
	}
	start := 0
	if n > 0 && n < len(s.history) {
		start = len(s.history) - n
	}
	out := make([]models.Detection, len(s.history)-start)
	copy(out, s.history[start:])
	return out
}

func (s *DetectionStorage) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.history = nil
			return nil
		}
		return fmt.Errorf("read detections: %w", err)
	}
	if len(data) == 0 {
		s.history = nil
		return nil
	}

	var entries []models.Detection
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse detections: %w", err)
	}
	if s.limit > 0 && len(entries) > s.limit {
		entries = entries[len(entries)-s.limit:]
	}
	s.history = entries
	return nil
}
