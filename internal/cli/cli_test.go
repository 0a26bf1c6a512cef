package cli

import (
	"testing"

	"github.com/mbenning/stagehand/internal/engine"
	"github.com/mbenning/stagehand/internal/entity"
	"github.com/mbenning/stagehand/internal/store"
)

func TestScriptCommandInterpreters(t *testing.T) {
	cases := []struct {
		ext  string
		want string
	}{
		{".sh", "bash {{SCRIPT_FILE}}"},
		{".PY", "python3 {{SCRIPT_FILE}}"},
		{".js", "node {{SCRIPT_FILE}}"},
		{".bat", "{{SCRIPT_FILE}}"},
		{".weird", "{{SCRIPT_FILE}}"},
	}
	for _, tc := range cases {
		if got := scriptCommand(tc.ext); got != tc.want {
			t.Errorf("scriptCommand(%q) = %q, want %q", tc.ext, got, tc.want)
		}
	}
}

func TestGroupSpecsAppliesDefaultPreset(t *testing.T) {
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	script := entity.NewGlobalScript("deploy", "deploy.sh", "/srv")
	script.Parameters = []entity.ScriptParameter{
		{Name: "env", Type: entity.ParamString, LongFlag: "--env"},
	}
	script.ParameterPresets = []entity.ParameterPreset{
		{ID: "p1", Name: "staging", Values: map[string]string{"env": "staging"}},
	}
	script.DefaultPresetID = "p1"
	if err := st.AddGlobalScript(script); err != nil {
		t.Fatalf("AddGlobalScript: %v", err)
	}

	group := entity.NewScriptGroup("release", entity.GroupSequential)
	group.ScriptIDs = []string{script.ID}

	specs, err := groupSpecs(st, group)
	if err != nil {
		t.Fatalf("groupSpecs: %v", err)
	}
	if len(specs) != 1 {
		t.Fatalf("specs = %+v", specs)
	}
	spec := specs[0]
	if spec.Category != engine.CategoryGlobalScript || spec.Program != "deploy.sh" {
		t.Fatalf("spec = %+v", spec)
	}
	if len(spec.Args) != 2 || spec.Args[0] != "--env" || spec.Args[1] != "staging" {
		t.Fatalf("args = %v, want preset applied", spec.Args)
	}
	if spec.Meta.Preset != "staging" {
		t.Fatalf("meta preset = %q", spec.Meta.Preset)
	}
}

func TestServiceSpecResolvesModeAndPreset(t *testing.T) {
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	p := entity.NewProject("web", "/srv/web")
	svc := entity.NewService("api", "", "go run .")
	svc.Modes = map[string]string{"debug": "dlv debug ."}
	svc.ArgPresets = map[string]string{"verbose": "-v"}
	svc.DefaultArgPreset = "verbose"
	svc.EnvVars = map[string]string{"API_PORT": "9000"}
	p.Services = append(p.Services, svc)
	if err := st.AddProject(p); err != nil {
		t.Fatalf("AddProject: %v", err)
	}

	spec, err := serviceSpec(st, "api", "debug", "")
	if err != nil {
		t.Fatalf("serviceSpec: %v", err)
	}
	if spec.Category != engine.CategoryService || spec.ID != "api" {
		t.Fatalf("spec = %+v", spec)
	}
	if spec.Shell != "dlv debug . -v" {
		t.Fatalf("shell = %q, want mode override plus default preset", spec.Shell)
	}
	if spec.Dir != "/srv/web" {
		t.Fatalf("dir = %q, want project root fallback", spec.Dir)
	}
	if spec.Env["API_PORT"] != "9000" {
		t.Fatalf("env = %v", spec.Env)
	}
	if spec.Meta.Mode != "debug" || spec.Meta.Preset != "verbose" {
		t.Fatalf("meta = %+v", spec.Meta)
	}

	if _, err := serviceSpec(st, "api", "", "canary"); err == nil {
		t.Fatalf("expected error for unknown arg preset")
	}
	if _, err := serviceSpec(st, "ghost", "", ""); err == nil {
		t.Fatalf("expected error for unknown service")
	}
}

func TestProjectScriptSpecDefaultsDirToProjectRoot(t *testing.T) {
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	p := entity.NewProject("web", "/srv/web")
	p.Scripts = append(p.Scripts, entity.NewScript("migrate", "", "make migrate"))
	if err := st.AddProject(p); err != nil {
		t.Fatalf("AddProject: %v", err)
	}

	spec, err := projectScriptSpec(st, "migrate")
	if err != nil {
		t.Fatalf("projectScriptSpec: %v", err)
	}
	if spec.Category != engine.CategoryProjectScript || spec.Shell != "make migrate" {
		t.Fatalf("spec = %+v", spec)
	}
	if spec.Dir != "/srv/web" {
		t.Fatalf("dir = %q, want project root fallback", spec.Dir)
	}

	if _, err := projectScriptSpec(st, "ghost"); err == nil {
		t.Fatalf("expected error for unknown script")
	}
}

func TestFindProjectByIDOrName(t *testing.T) {
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	p := entity.NewProject("web", "/srv/web")
	if err := st.AddProject(p); err != nil {
		t.Fatalf("AddProject: %v", err)
	}

	if got, err := findProject(st, p.ID); err != nil || got.ID != p.ID {
		t.Fatalf("lookup by id: %v %+v", err, got)
	}
	if got, err := findProject(st, "web"); err != nil || got.ID != p.ID {
		t.Fatalf("lookup by name: %v %+v", err, got)
	}
	if _, err := findProject(st, "ghost"); err == nil {
		t.Fatalf("expected error for unknown project")
	}
}

func TestGroupSpecsUnknownScript(t *testing.T) {
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	group := entity.NewScriptGroup("broken", entity.GroupSequential)
	group.ScriptIDs = []string{"missing"}

	if _, err := groupSpecs(st, group); err == nil {
		t.Fatalf("expected error for unknown member script")
	}
}
