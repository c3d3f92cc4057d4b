package definition

import (
	"strings"
	"testing"

	"github.com/tabulahq/tabula/model"
)

func validDefinition() model.TableDefinition {
	return model.TableDefinition{
		Table:    "tickets",
		States:   []string{"open", "in_progress", "closed"},
		Terminal: []string{"closed"},
		Transitions: map[string]model.TransitionSpec{
			"start": {From: []string{"open"}, To: "in_progress", Roles: []string{"support"}},
			"close": {From: []string{"in_progress"}, To: "closed", Roles: []string{"admin"}},
		},
		Escalations: []model.EscalationSpec{
			{State: "open", TimeoutSeconds: 3600, Action: "notify_manager"},
		},
		Permissions: model.PermissionSpec{
			Roles: map[string][]string{
				"admin":   {"create", "read", "update", "delete", "start", "close"},
				"support": {"read", "update", "start"},
			},
			Ownership: &model.OwnershipSpec{Field: "user_id", ExemptRoles: []string{"admin"}},
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	errs := NewValidator().Validate([]model.TableDefinition{validDefinition()})
	if len(errs) != 0 {
		t.Errorf("Validate() = %v, want no errors", errs)
	}
}

func TestValidate_Violations(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*model.TableDefinition)
		wantCode string
		wantPath string
	}{
		{
			name:     "missing table name",
			mutate:   func(d *model.TableDefinition) { d.Table = "" },
			wantCode: "REQUIRED",
			wantPath: ".table",
		},
		{
			name:     "no states",
			mutate:   func(d *model.TableDefinition) { d.States = nil },
			wantCode: "REQUIRED",
			wantPath: ".states",
		},
		{
			name:     "duplicate state",
			mutate:   func(d *model.TableDefinition) { d.States = append(d.States, "open") },
			wantCode: "DUPLICATE",
			wantPath: ".states[3]",
		},
		{
			name:     "terminal references unknown state",
			mutate:   func(d *model.TableDefinition) { d.Terminal = []string{"archived"} },
			wantCode: "REF_NOT_FOUND",
			wantPath: ".terminal[0]",
		},
		{
			name: "transition from unknown state",
			mutate: func(d *model.TableDefinition) {
				tr := d.Transitions["start"]
				tr.From = []string{"pending"}
				d.Transitions["start"] = tr
			},
			wantCode: "REF_NOT_FOUND",
			wantPath: ".transitions[start].from",
		},
		{
			name: "transition to unknown state",
			mutate: func(d *model.TableDefinition) {
				tr := d.Transitions["start"]
				tr.To = "pending"
				d.Transitions["start"] = tr
			},
			wantCode: "REF_NOT_FOUND",
			wantPath: ".transitions[start].to",
		},
		{
			name: "transition without to",
			mutate: func(d *model.TableDefinition) {
				tr := d.Transitions["start"]
				tr.To = ""
				d.Transitions["start"] = tr
			},
			wantCode: "REQUIRED",
			wantPath: ".transitions[start].to",
		},
		{
			name: "transition without from states",
			mutate: func(d *model.TableDefinition) {
				tr := d.Transitions["start"]
				tr.From = nil
				d.Transitions["start"] = tr
			},
			wantCode: "REQUIRED",
			wantPath: ".transitions[start].from",
		},
		{
			name: "transition without roles",
			mutate: func(d *model.TableDefinition) {
				tr := d.Transitions["start"]
				tr.Roles = nil
				d.Transitions["start"] = tr
			},
			wantCode: "REQUIRED",
			wantPath: ".transitions[start].roles",
		},
		{
			name: "transition role without permission entry",
			mutate: func(d *model.TableDefinition) {
				tr := d.Transitions["start"]
				tr.Roles = []string{"reviewer"}
				d.Transitions["start"] = tr
			},
			wantCode: "UNKNOWN_ROLE",
			wantPath: ".transitions[start].roles",
		},
		{
			name: "escalation for unknown state",
			mutate: func(d *model.TableDefinition) {
				d.Escalations[0].State = "archived"
			},
			wantCode: "REF_NOT_FOUND",
			wantPath: ".escalations[0].state",
		},
		{
			name: "escalation with zero timeout",
			mutate: func(d *model.TableDefinition) {
				d.Escalations[0].TimeoutSeconds = 0
			},
			wantCode: "RANGE",
			wantPath: ".escalations[0].timeout_seconds",
		},
		{
			name: "escalation without action",
			mutate: func(d *model.TableDefinition) {
				d.Escalations[0].Action = ""
			},
			wantCode: "REQUIRED",
			wantPath: ".escalations[0].action",
		},
		{
			name: "ownership without field",
			mutate: func(d *model.TableDefinition) {
				d.Permissions.Ownership.Field = ""
			},
			wantCode: "REQUIRED",
			wantPath: ".permissions.ownership.field",
		},
		{
			name: "exempt role without permission entry",
			mutate: func(d *model.TableDefinition) {
				d.Permissions.Ownership.ExemptRoles = []string{"superuser"}
			},
			wantCode: "UNKNOWN_ROLE",
			wantPath: ".permissions.ownership.exempt_roles",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDefinition()
			tt.mutate(&def)

			errs := NewValidator().Validate([]model.TableDefinition{def})
			if len(errs) == 0 {
				t.Fatal("Validate() reported no errors")
			}
			for _, e := range errs {
				if e.Code == tt.wantCode && strings.HasSuffix(e.Path, tt.wantPath) {
					return
				}
			}
			t.Errorf("no error with code %q at path *%s, got %v", tt.wantCode, tt.wantPath, errs)
		})
	}
}

func TestValidate_DuplicateTables(t *testing.T) {
	a := validDefinition()
	a.SourceFile = "a.yaml"
	b := validDefinition()
	b.SourceFile = "b.yaml"

	errs := NewValidator().Validate([]model.TableDefinition{a, b})
	if len(errs) != 1 {
		t.Fatalf("Validate() = %v, want exactly one duplicate error", errs)
	}
	if errs[0].Code != "DUPLICATE" || !strings.Contains(errs[0].Message, "a.yaml") {
		t.Errorf("error = %+v", errs[0])
	}
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	def := validDefinition()
	def.Terminal = []string{"archived"}
	def.Escalations[0].TimeoutSeconds = -1
	tr := def.Transitions["start"]
	tr.Roles = nil
	def.Transitions["start"] = tr

	errs := NewValidator().Validate([]model.TableDefinition{def})
	if len(errs) != 3 {
		t.Errorf("Validate() = %d errors, want all 3 reported: %v", len(errs), errs)
	}
}
