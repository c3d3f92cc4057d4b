package definition

import (
	"path/filepath"
	"testing"
)

func TestLoadFile(t *testing.T) {
	def, err := NewLoader().LoadFile(filepath.Join("testdata", "tickets.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if def.Table != "tickets" {
		t.Errorf("Table = %q, want tickets", def.Table)
	}
	if len(def.States) != 4 {
		t.Errorf("States = %v, want 4 states", def.States)
	}
	if len(def.Terminal) != 1 || def.Terminal[0] != "closed" {
		t.Errorf("Terminal = %v, want [closed]", def.Terminal)
	}
	if len(def.Transitions) != 4 {
		t.Errorf("Transitions = %d entries, want 4", len(def.Transitions))
	}

	escalate, ok := def.Transitions["escalate"]
	if !ok {
		t.Fatal("transition escalate missing")
	}
	if len(escalate.From) != 2 || escalate.To != "in_progress" {
		t.Errorf("escalate = %+v", escalate)
	}
	if got := escalate.Conditions["priority"]; len(got) != 2 || got[0] != "high" {
		t.Errorf("escalate conditions = %v", escalate.Conditions)
	}

	if len(def.Escalations) != 1 {
		t.Fatalf("Escalations = %+v, want 1 rule", def.Escalations)
	}
	if def.Escalations[0].TimeoutSeconds != 3600 || def.Escalations[0].Action != "notify_manager" {
		t.Errorf("escalation rule = %+v", def.Escalations[0])
	}

	if def.Permissions.Ownership == nil || def.Permissions.Ownership.Field != "user_id" {
		t.Errorf("Ownership = %+v", def.Permissions.Ownership)
	}
	if got := def.Permissions.Roles["support"]; len(got) != 5 {
		t.Errorf("support actions = %v", got)
	}

	if def.Checksum == "" {
		t.Error("Checksum not computed")
	}
	if def.SourceFile == "" {
		t.Error("SourceFile not recorded")
	}
}

func TestLoadFile_NotFound(t *testing.T) {
	if _, err := NewLoader().LoadFile(filepath.Join("testdata", "missing.yaml")); err == nil {
		t.Error("LoadFile() on missing file should error")
	}
}

func TestLoadAll_Recursive(t *testing.T) {
	defs, err := NewLoader().LoadAll([]string{"testdata"})
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}

	tables := make(map[string]bool, len(defs))
	for _, def := range defs {
		tables[def.Table] = true
	}
	if !tables["tickets"] || !tables["orders"] {
		t.Errorf("loaded tables = %v, want tickets and orders", tables)
	}
}

func TestLoadAll_MissingDirectory(t *testing.T) {
	if _, err := NewLoader().LoadAll([]string{"testdata/does-not-exist"}); err == nil {
		t.Error("LoadAll() on missing directory should error")
	}
}
