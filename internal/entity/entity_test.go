package entity

import "testing"

func TestCommandForMode(t *testing.T) {
	svc := NewService("api", "/srv", "go run .")
	svc.Modes = map[string]string{"debug": "dlv debug ."}

	if got := svc.CommandForMode("debug"); got != "dlv debug ." {
		t.Errorf("debug mode = %q", got)
	}
	if got := svc.CommandForMode("release"); got != "go run ." {
		t.Errorf("unknown mode = %q, want base command", got)
	}
	if got := svc.CommandForMode(""); got != "go run ." {
		t.Errorf("empty mode = %q, want base command", got)
	}
}

func TestPresetLookupByIDOrName(t *testing.T) {
	g := NewGlobalScript("deploy", "deploy.sh", "")
	g.ParameterPresets = []ParameterPreset{
		{ID: "p1", Name: "staging", Values: map[string]string{"env": "staging"}},
	}

	if _, ok := g.Preset("p1"); !ok {
		t.Errorf("lookup by id failed")
	}
	if p, ok := g.Preset("staging"); !ok || p.Values["env"] != "staging" {
		t.Errorf("lookup by name failed: %+v", p)
	}
	if _, ok := g.Preset("production"); ok {
		t.Errorf("lookup of unknown preset succeeded")
	}
}

func TestNewScriptGroupDefaults(t *testing.T) {
	g := NewScriptGroup("setup", GroupSequential)
	if g.ID == "" {
		t.Errorf("missing id")
	}
	if !g.StopOnFailure {
		t.Errorf("StopOnFailure should default to true")
	}
}

func TestNewEntitiesGetDistinctIDs(t *testing.T) {
	a := NewGlobalScript("a", "echo a", "")
	b := NewGlobalScript("b", "echo b", "")
	if a.ID == b.ID || a.ID == "" {
		t.Fatalf("ids not unique: %q %q", a.ID, b.ID)
	}
}
