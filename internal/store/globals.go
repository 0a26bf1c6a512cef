package store

import (
	"fmt"
	"time"

	"github.com/mbenning/stagehand/internal/entity"
)

// GlobalScripts returns a copy of every global script.
func (s *Store) GlobalScripts() []entity.GlobalScript {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entity.GlobalScript(nil), s.globals...)
}

// GlobalScript returns the global script with the given id or name.
func (s *Store) GlobalScript(id string) (entity.GlobalScript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.globals {
		if g.ID == id || g.Name == id {
			return g, nil
		}
	}
	return entity.GlobalScript{}, fmt.Errorf("global script %q: %w", id, ErrNotFound)
}

// GlobalScriptByPath returns the script registered for a file path, used to
// keep rescans from duplicating entries.
func (s *Store) GlobalScriptByPath(path string) (entity.GlobalScript, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.globals {
		if g.ScriptPath != "" && g.ScriptPath == path {
			return g, true
		}
	}
	return entity.GlobalScript{}, false
}

// AddGlobalScript appends a global script and persists the file.
func (s *Store) AddGlobalScript(g entity.GlobalScript) error {
	s.mu.Lock()
	s.globals = append(s.globals, g)
	snapshot := append([]entity.GlobalScript(nil), s.globals...)
	s.mu.Unlock()
	return writeJSONLocked(s.path(globalsFile), snapshot)
}

// UpdateGlobalScript replaces the script with the same id.
func (s *Store) UpdateGlobalScript(g entity.GlobalScript) error {
	s.mu.Lock()
	found := false
	for i := range s.globals {
		if s.globals[i].ID == g.ID {
			g.UpdatedAt = time.Now().UTC()
			s.globals[i] = g
			found = true
			break
		}
	}
	snapshot := append([]entity.GlobalScript(nil), s.globals...)
	s.mu.Unlock()
	if !found {
		return fmt.Errorf("global script %q: %w", g.ID, ErrNotFound)
	}
	return writeJSONLocked(s.path(globalsFile), snapshot)
}

// RemoveGlobalScript deletes the script with the given id or name.
func (s *Store) RemoveGlobalScript(id string) error {
	s.mu.Lock()
	found := false
	for i := range s.globals {
		if s.globals[i].ID == id || s.globals[i].Name == id {
			s.globals = append(s.globals[:i], s.globals[i+1:]...)
			found = true
			break
		}
	}
	snapshot := append([]entity.GlobalScript(nil), s.globals...)
	s.mu.Unlock()
	if !found {
		return fmt.Errorf("global script %q: %w", id, ErrNotFound)
	}
	return writeJSONLocked(s.path(globalsFile), snapshot)
}

// ScriptGroups returns a copy of every script group.
func (s *Store) ScriptGroups() []entity.ScriptGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entity.ScriptGroup(nil), s.groups...)
}

// ScriptGroup returns the group with the given id or name.
func (s *Store) ScriptGroup(id string) (entity.ScriptGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.groups {
		if g.ID == id || g.Name == id {
			return g, nil
		}
	}
	return entity.ScriptGroup{}, fmt.Errorf("script group %q: %w", id, ErrNotFound)
}

// AddScriptGroup appends a group and persists the file.
func (s *Store) AddScriptGroup(g entity.ScriptGroup) error {
	s.mu.Lock()
	s.groups = append(s.groups, g)
	snapshot := append([]entity.ScriptGroup(nil), s.groups...)
	s.mu.Unlock()
	return writeJSONLocked(s.path(groupsFile), snapshot)
}

// UpdateScriptGroup replaces the group with the same id.
func (s *Store) UpdateScriptGroup(g entity.ScriptGroup) error {
	s.mu.Lock()
	found := false
	for i := range s.groups {
		if s.groups[i].ID == g.ID {
			s.groups[i] = g
			found = true
			break
		}
	}
	snapshot := append([]entity.ScriptGroup(nil), s.groups...)
	s.mu.Unlock()
	if !found {
		return fmt.Errorf("script group %q: %w", g.ID, ErrNotFound)
	}
	return writeJSONLocked(s.path(groupsFile), snapshot)
}

// RemoveScriptGroup deletes the group with the given id or name.
func (s *Store) RemoveScriptGroup(id string) error {
	s.mu.Lock()
	found := false
	for i := range s.groups {
		if s.groups[i].ID == id || s.groups[i].Name == id {
			s.groups = append(s.groups[:i], s.groups[i+1:]...)
			found = true
			break
		}
	}
	snapshot := append([]entity.ScriptGroup(nil), s.groups...)
	s.mu.Unlock()
	if !found {
		return fmt.Errorf("script group %q: %w", id, ErrNotFound)
	}
	return writeJSONLocked(s.path(groupsFile), snapshot)
}

// Export bundles global scripts and groups for sharing between machines.
type Export struct {
	ExportedAt time.Time             `json:"exportedAt"`
	Scripts    []entity.GlobalScript `json:"scripts"`
	Groups     []entity.ScriptGroup  `json:"groups,omitempty"`
}

// ExportGlobals writes every global script and group to path as JSON.
func (s *Store) ExportGlobals(path string) error {
	s.mu.RLock()
	exp := Export{
		ExportedAt: time.Now().UTC(),
		Scripts:    append([]entity.GlobalScript(nil), s.globals...),
		Groups:     append([]entity.ScriptGroup(nil), s.groups...),
	}
	s.mu.RUnlock()
	return writeJSONLocked(path, exp)
}

// ImportGlobals merges an export file into the store. Scripts and groups
// whose ids already exist are skipped; the count of imported scripts is
// returned.
func (s *Store) ImportGlobals(path string) (int, error) {
	var exp Export
	if err := readJSONLocked(path, &exp); err != nil {
		return 0, err
	}

	s.mu.Lock()
	known := make(map[string]bool, len(s.globals))
	for _, g := range s.globals {
		known[g.ID] = true
	}
	imported := 0
	for _, g := range exp.Scripts {
		if known[g.ID] {
			continue
		}
		s.globals = append(s.globals, g)
		imported++
	}
	knownGroups := make(map[string]bool, len(s.groups))
	for _, g := range s.groups {
		knownGroups[g.ID] = true
	}
	for _, g := range exp.Groups {
		if knownGroups[g.ID] {
			continue
		}
		s.groups = append(s.groups, g)
	}
	scripts := append([]entity.GlobalScript(nil), s.globals...)
	groups := append([]entity.ScriptGroup(nil), s.groups...)
	s.mu.Unlock()

	if err := writeJSONLocked(s.path(globalsFile), scripts); err != nil {
		return imported, err
	}
	if err := writeJSONLocked(s.path(groupsFile), groups); err != nil {
		return imported, err
	}
	return imported, nil
}
