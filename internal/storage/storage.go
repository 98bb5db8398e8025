package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"domainwatch/internal/models"
)

// HistoryStore persists the set of domains that were already reported.
//
// Load returns an empty set together with any read or parse error so the
// caller can decide whether a damaged history is fatal.
type HistoryStore interface {
	Load(ctx context.Context) (models.DomainSet, error)
	Save(ctx context.Context, domains models.DomainSet) error
}

// FileHistory stores the domain history as a JSON array on disk.
type FileHistory struct {
	mu   sync.Mutex
	path string
}

// NewFileHistory creates the parent directory of path if needed.
func NewFileHistory(path string) (*FileHistory, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
	}
	return &FileHistory{path: path}, nil
}

// Path returns the history file location.
func (s *FileHistory) Path() string {
	return s.path
}

// Load reads the history file. A missing or empty file is an empty history.
func (s *FileHistory) Load(_ context.Context) (models.DomainSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.NewDomainSet(), nil
		}
		return models.NewDomainSet(), fmt.Errorf("read history: %w", err)
	}
	if len(data) == 0 {
		return models.NewDomainSet(), nil
	}

	var entries []string
	if err := json.Unmarshal(data, &entries); err != nil {
		return models.NewDomainSet(), fmt.Errorf("parse history: %w", err)
	}
	return models.NewDomainSet(entries...), nil
}

// Save overwrites the history file with the full set.
func (s *FileHistory) Save(_ context.Context, domains models.DomainSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return writeJSONFile(s.path, domains.Sorted())
}

func writeJSONFile(path string, payload any) error {
	bytes, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, bytes, 0o644); err != nil {
		return fmt.Errorf("write temp %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
