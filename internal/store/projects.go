package store

import (
	"fmt"
	"time"

	"github.com/mbenning/stagehand/internal/entity"
)

// Projects returns a copy of every project.
func (s *Store) Projects() []entity.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entity.Project(nil), s.projects...)
}

// Project returns the project with the given id.
func (s *Store) Project(id string) (entity.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.projects {
		if p.ID == id {
			return p, nil
		}
	}
	return entity.Project{}, fmt.Errorf("project %q: %w", id, ErrNotFound)
}

// ProjectByName returns the project with the given name.
func (s *Store) ProjectByName(name string) (entity.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.projects {
		if p.Name == name {
			return p, nil
		}
	}
	return entity.Project{}, fmt.Errorf("project %q: %w", name, ErrNotFound)
}

// AddProject appends a project and persists the file.
func (s *Store) AddProject(p entity.Project) error {
	s.mu.Lock()
	s.projects = append(s.projects, p)
	snapshot := append([]entity.Project(nil), s.projects...)
	s.mu.Unlock()
	return writeJSONLocked(s.path(projectsFile), snapshot)
}

// UpdateProject replaces the project with the same id.
func (s *Store) UpdateProject(p entity.Project) error {
	s.mu.Lock()
	found := false
	for i := range s.projects {
		if s.projects[i].ID == p.ID {
			p.UpdatedAt = time.Now().UTC()
			s.projects[i] = p
			found = true
			break
		}
	}
	snapshot := append([]entity.Project(nil), s.projects...)
	s.mu.Unlock()
	if !found {
		return fmt.Errorf("project %q: %w", p.ID, ErrNotFound)
	}
	return writeJSONLocked(s.path(projectsFile), snapshot)
}

// RemoveProject deletes the project with the given id.
func (s *Store) RemoveProject(id string) error {
	s.mu.Lock()
	found := false
	for i := range s.projects {
		if s.projects[i].ID == id {
			s.projects = append(s.projects[:i], s.projects[i+1:]...)
			found = true
			break
		}
	}
	snapshot := append([]entity.Project(nil), s.projects...)
	s.mu.Unlock()
	if !found {
		return fmt.Errorf("project %q: %w", id, ErrNotFound)
	}
	return writeJSONLocked(s.path(projectsFile), snapshot)
}

// FindService locates a service by id across all projects.
func (s *Store) FindService(serviceID string) (entity.Project, entity.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.projects {
		for _, svc := range p.Services {
			if svc.ID == serviceID || svc.Name == serviceID {
				return p, svc, nil
			}
		}
	}
	return entity.Project{}, entity.Service{}, fmt.Errorf("service %q: %w", serviceID, ErrNotFound)
}

// FindScript locates a project script by id or name across all projects.
func (s *Store) FindScript(scriptID string) (entity.Project, entity.Script, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.projects {
		for _, sc := range p.Scripts {
			if sc.ID == scriptID || sc.Name == scriptID {
				return p, sc, nil
			}
		}
	}
	return entity.Project{}, entity.Script{}, fmt.Errorf("script %q: %w", scriptID, ErrNotFound)
}
