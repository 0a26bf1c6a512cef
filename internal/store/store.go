// Package store persists configuration entities as JSON files under a data
// directory. Every file access takes an advisory file lock so a GUI and a
// CLI invocation can share the same files; mutations follow a
// read-modify-write pattern and persist immediately.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/mbenning/stagehand/internal/entity"
)

// ErrNotFound is wrapped by every lookup miss.
var ErrNotFound = errors.New("not found")

const (
	projectsFile = "projects.json"
	globalsFile  = "global_scripts.json"
	groupsFile   = "script_groups.json"
	settingsFile = "settings.json"
	historyFile  = "history.json"
)

// Store keeps an in-memory copy of every entity file, loaded once at Open
// and rewritten after each mutation.
type Store struct {
	dir string

	mu       sync.RWMutex
	projects []entity.Project
	globals  []entity.GlobalScript
	groups   []entity.ScriptGroup
	settings entity.Settings
	history  []entity.ExecutionRecord
}

// Open loads the store rooted at dir, creating the directory if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &Store{dir: dir, settings: entity.DefaultSettings()}

	if err := loadIfExists(s.path(projectsFile), &s.projects); err != nil {
		return nil, err
	}
	if err := loadIfExists(s.path(globalsFile), &s.globals); err != nil {
		return nil, err
	}
	if err := loadIfExists(s.path(groupsFile), &s.groups); err != nil {
		return nil, err
	}
	if err := loadIfExists(s.path(settingsFile), &s.settings); err != nil {
		return nil, err
	}
	if err := loadIfExists(s.path(historyFile), &s.history); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the data directory backing the store.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func loadIfExists(path string, v any) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	return readJSONLocked(path, v)
}

func readJSONLocked(path string, v any) error {
	lock := flock.New(path)
	if err := lock.RLock(); err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer lock.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeJSONLocked(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	lock := flock.New(path)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer lock.Unlock()

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Settings returns the persisted application settings.
func (s *Store) Settings() entity.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings replaces and persists the application settings.
func (s *Store) UpdateSettings(settings entity.Settings) error {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	return writeJSONLocked(s.path(settingsFile), settings)
}

// AddExecutionRecord appends a history row and persists it.
func (s *Store) AddExecutionRecord(rec entity.ExecutionRecord) error {
	s.mu.Lock()
	s.history = append(s.history, rec)
	snapshot := append([]entity.ExecutionRecord(nil), s.history...)
	s.mu.Unlock()
	return writeJSONLocked(s.path(historyFile), snapshot)
}

// UpdateExecutionRecord applies fn to the record with the given id, if any,
// and persists the history.
func (s *Store) UpdateExecutionRecord(id string, fn func(*entity.ExecutionRecord)) error {
	s.mu.Lock()
	for i := range s.history {
		if s.history[i].ID == id {
			fn(&s.history[i])
			break
		}
	}
	snapshot := append([]entity.ExecutionRecord(nil), s.history...)
	s.mu.Unlock()
	return writeJSONLocked(s.path(historyFile), snapshot)
}

// ExecutionHistory returns up to limit most recent records for a script,
// newest first.
func (s *Store) ExecutionHistory(scriptID string, limit int) []entity.ExecutionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []entity.ExecutionRecord
	for i := len(s.history) - 1; i >= 0 && len(out) < limit; i-- {
		if s.history[i].ScriptID == scriptID {
			out = append(out, s.history[i])
		}
	}
	return out
}
