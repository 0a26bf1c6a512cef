// Package manifest loads a stagehand.yaml file declaring the services and
// setup scripts to supervise in headless runs.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/mbenning/stagehand/internal/engine"
)

// DefaultName is the manifest filename looked up in the working directory.
const DefaultName = "stagehand.yaml"

// Manifest is the parsed document.
type Manifest struct {
	Name     string              `yaml:"name,omitempty"`
	Services map[string]*Service `yaml:"services,omitempty"`
	Scripts  *ScriptBlock        `yaml:"scripts,omitempty"`
}

// Service declares one long-running process.
type Service struct {
	Command string            `yaml:"command"`
	Dir     string            `yaml:"dir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
	Mode    string            `yaml:"mode,omitempty"`
	Order   int               `yaml:"order,omitempty"`
}

// ScriptBlock declares one-shot setup scripts run before the services.
type ScriptBlock struct {
	Mode          string   `yaml:"mode,omitempty"`
	StopOnFailure *bool    `yaml:"stopOnFailure,omitempty"`
	Entries       []Script `yaml:"run"`
}

// Script is one entry of the setup block.
type Script struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Dir     string            `yaml:"dir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// Load reads and validates a manifest. Relative dirs resolve against the
// manifest's own directory; $VAR references in commands, dirs and env values
// are expanded from the environment.
func Load(path string) (*Manifest, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve manifest path: %w", err)
	}

	f, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	var doc Manifest
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", absPath, err)
	}

	base := filepath.Dir(absPath)
	for name, svc := range doc.Services {
		if svc == nil {
			return nil, fmt.Errorf("%s: service %q: empty definition", absPath, name)
		}
		svc.Command = os.ExpandEnv(svc.Command)
		if svc.Command == "" {
			return nil, fmt.Errorf("%s: service %q: command is required", absPath, name)
		}
		svc.Dir = resolveDir(base, os.ExpandEnv(svc.Dir))
		expandEnvValues(svc.Env)
	}
	if doc.Scripts != nil {
		for i := range doc.Scripts.Entries {
			entry := &doc.Scripts.Entries[i]
			entry.Command = os.ExpandEnv(entry.Command)
			if entry.Name == "" {
				return nil, fmt.Errorf("%s: scripts.run[%d]: name is required", absPath, i)
			}
			if entry.Command == "" {
				return nil, fmt.Errorf("%s: script %q: command is required", absPath, entry.Name)
			}
			entry.Dir = resolveDir(base, os.ExpandEnv(entry.Dir))
			expandEnvValues(entry.Env)
		}
	}
	return &doc, nil
}

func resolveDir(base, dir string) string {
	if dir == "" {
		return base
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Clean(filepath.Join(base, dir))
}

func expandEnvValues(env map[string]string) {
	for k, v := range env {
		env[k] = os.ExpandEnv(v)
	}
}

// ServiceSpecs converts the manifest services into launch specs, ordered by
// the declared order then name.
func (m *Manifest) ServiceSpecs() []engine.LaunchSpec {
	specs := make([]engine.LaunchSpec, 0, len(m.Services))
	for name, svc := range m.Services {
		specs = append(specs, engine.LaunchSpec{
			Category: engine.CategoryService,
			ID:       name,
			Dir:      svc.Dir,
			Shell:    svc.Command,
			Env:      svc.Env,
			Meta:     engine.Meta{Mode: svc.Mode},
		})
	}
	sort.Slice(specs, func(i, j int) bool {
		a, b := m.Services[specs[i].ID], m.Services[specs[j].ID]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return specs[i].ID < specs[j].ID
	})
	return specs
}

// ScriptSpecs converts the setup block into launch specs plus its scheduling
// mode. StopOnFailure defaults to true for sequential runs.
func (m *Manifest) ScriptSpecs() ([]engine.LaunchSpec, engine.GroupMode, bool) {
	if m.Scripts == nil || len(m.Scripts.Entries) == 0 {
		return nil, engine.GroupSequential, true
	}
	mode := engine.GroupSequential
	if m.Scripts.Mode == string(engine.GroupParallel) {
		mode = engine.GroupParallel
	}
	stopOnFailure := true
	if m.Scripts.StopOnFailure != nil {
		stopOnFailure = *m.Scripts.StopOnFailure
	}

	specs := make([]engine.LaunchSpec, 0, len(m.Scripts.Entries))
	for _, entry := range m.Scripts.Entries {
		specs = append(specs, engine.LaunchSpec{
			Category: engine.CategoryProjectScript,
			ID:       entry.Name,
			Dir:      entry.Dir,
			Shell:    entry.Command,
			Env:      entry.Env,
		})
	}
	return specs, mode, stopOnFailure
}
