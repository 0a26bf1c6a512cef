// Package entity defines the persisted configuration model: projects with
// their services and scripts, standalone global scripts with parameter
// schemas, and script groups. The JSON field names match the original
// on-disk format so existing data files keep loading.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// Service is a long-running command attached to a project. Modes map a mode
// name to a command override; arg presets map a preset name to extra
// arguments appended at launch.
type Service struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	WorkingDir       string            `json:"workingDir"`
	Command          string            `json:"command"`
	Modes            map[string]string `json:"modes,omitempty"`
	DefaultMode      string            `json:"defaultMode,omitempty"`
	ExtraArgs        string            `json:"extraArgs,omitempty"`
	ArgPresets       map[string]string `json:"argPresets,omitempty"`
	DefaultArgPreset string            `json:"defaultArgPreset,omitempty"`
	Port             int               `json:"port,omitempty"`
	EnvVars          map[string]string `json:"envVars,omitempty"`
	Order            int               `json:"order"`
}

// NewService builds a service with a fresh id.
func NewService(name, workingDir, command string) Service {
	return Service{
		ID:         uuid.NewString(),
		Name:       name,
		WorkingDir: workingDir,
		Command:    command,
	}
}

// CommandForMode resolves the command line for the given mode, falling back
// to the base command when the mode is unknown or empty.
func (s Service) CommandForMode(mode string) string {
	if mode != "" {
		if cmd, ok := s.Modes[mode]; ok && cmd != "" {
			return cmd
		}
	}
	return s.Command
}

// Script is a one-shot command attached to a project.
type Script struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Command     string `json:"command"`
	ScriptPath  string `json:"scriptPath,omitempty"`
	WorkingDir  string `json:"workingDir"`
	Order       int    `json:"order"`
}

// NewScript builds a project script with a fresh id.
func NewScript(name, workingDir, command string) Script {
	return Script{
		ID:         uuid.NewString(),
		Name:       name,
		WorkingDir: workingDir,
		Command:    command,
	}
}

// Project groups services and scripts under a root path.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	RootPath    string    `json:"rootPath"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Services    []Service `json:"services"`
	Scripts     []Script  `json:"scripts"`
}

// NewProject builds an empty project rooted at rootPath.
func NewProject(name, rootPath string) Project {
	now := time.Now().UTC()
	return Project{
		ID:        uuid.NewString(),
		Name:      name,
		RootPath:  rootPath,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ParamType classifies a script parameter for form rendering and command
// construction.
type ParamType string

const (
	ParamString ParamType = "string"
	ParamBool   ParamType = "bool"
	ParamNumber ParamType = "number"
	ParamEnum   ParamType = "enum"
	ParamPath   ParamType = "path"
)

// ScriptParameter describes one command-line parameter of a global script,
// typically derived from its --help output.
type ScriptParameter struct {
	Name         string    `json:"name"`
	Type         ParamType `json:"paramType"`
	ShortFlag    string    `json:"shortFlag,omitempty"`
	LongFlag     string    `json:"longFlag,omitempty"`
	Description  string    `json:"description,omitempty"`
	DefaultValue string    `json:"defaultValue,omitempty"`
	Required     bool      `json:"required"`
	EnumValues   []string  `json:"enumValues,omitempty"`
	// NArgs mirrors argparse: "+" for one-or-more, a digit string for a
	// fixed count, empty for a single value.
	NArgs string `json:"nargs,omitempty"`
}

// ParameterPreset is a named set of parameter values.
type ParameterPreset struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Values      map[string]string `json:"values"`
	Enabled     map[string]bool   `json:"enabled,omitempty"`
}

// GlobalScript is a reusable script independent of any project. Command may
// contain the {{SCRIPT_FILE}} placeholder, substituted with ScriptPath.
type GlobalScript struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Description      string            `json:"description,omitempty"`
	Command          string            `json:"command"`
	ScriptPath       string            `json:"scriptPath,omitempty"`
	WorkingDir       string            `json:"workingDir,omitempty"`
	Tags             []string          `json:"tags,omitempty"`
	Parameters       []ScriptParameter `json:"parameters,omitempty"`
	ParameterPresets []ParameterPreset `json:"parameterPresets,omitempty"`
	DefaultPresetID  string            `json:"defaultPresetId,omitempty"`
	EnvVars          map[string]string `json:"envVars,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
	Order            int               `json:"order"`
	AutoDiscovered   bool              `json:"autoDiscovered,omitempty"`
}

// NewGlobalScript builds a global script with a fresh id.
func NewGlobalScript(name, command, workingDir string) GlobalScript {
	now := time.Now().UTC()
	return GlobalScript{
		ID:         uuid.NewString(),
		Name:       name,
		Command:    command,
		WorkingDir: workingDir,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Preset returns the preset with the given id.
func (g GlobalScript) Preset(id string) (ParameterPreset, bool) {
	for _, p := range g.ParameterPresets {
		if p.ID == id || p.Name == id {
			return p, true
		}
	}
	return ParameterPreset{}, false
}

// GroupMode selects how a script group schedules its members.
type GroupMode string

const (
	GroupParallel   GroupMode = "parallel"
	GroupSequential GroupMode = "sequential"
)

// ScriptGroup is an ordered collection of global scripts executed together.
type ScriptGroup struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	ScriptIDs     []string  `json:"scriptIds"`
	ExecutionMode GroupMode `json:"executionMode"`
	StopOnFailure bool      `json:"stopOnFailure"`
	Order         int       `json:"order"`
}

// NewScriptGroup builds a group with a fresh id. StopOnFailure defaults to
// true, matching sequential usage.
func NewScriptGroup(name string, mode GroupMode) ScriptGroup {
	return ScriptGroup{
		ID:            uuid.NewString(),
		Name:          name,
		ExecutionMode: mode,
		StopOnFailure: true,
	}
}

// ExecutionRecord is one row of script run history.
type ExecutionRecord struct {
	ID         string            `json:"id"`
	ScriptID   string            `json:"scriptId"`
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt *time.Time        `json:"finishedAt,omitempty"`
	DurationMS int64             `json:"durationMs,omitempty"`
	Success    bool              `json:"success"`
	ExitCode   *int              `json:"exitCode,omitempty"`
	Parameters map[string]string `json:"parametersUsed,omitempty"`
	PresetName string            `json:"presetName,omitempty"`
}

// NewExecutionRecord starts a history row for the given script.
func NewExecutionRecord(scriptID string) ExecutionRecord {
	return ExecutionRecord{
		ID:        uuid.NewString(),
		ScriptID:  scriptID,
		StartedAt: time.Now().UTC(),
	}
}

// Settings is the persisted application configuration.
type Settings struct {
	ScriptsFolder   string   `json:"scriptsFolder,omitempty"`
	ScanExtensions  []string `json:"scanExtensions"`
	IgnoredPatterns []string `json:"ignoredPatterns"`
	AutoScan        bool     `json:"autoScanOnStartup"`
}

// DefaultSettings returns the scan defaults used when no settings file
// exists yet.
func DefaultSettings() Settings {
	return Settings{
		ScanExtensions:  []string{"sh", "bash", "zsh", "ps1", "bat", "cmd", "py", "js", "ts", "rb", "pl"},
		IgnoredPatterns: []string{"node_modules", ".git", "target", "__pycache__", ".venv"},
	}
}
