// Package policy evaluates role and row-ownership permissions for one
// configured table. Policies are immutable after construction and are never
// process-wide: each table owns its own instance.
package policy

import "github.com/tabulahq/tabula/model"

// Standard CRUD actions. Workflow transition names are also valid actions.
const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Policy is a static role→action capability table plus an optional
// row-ownership rule. Unknown roles and unknown actions fail closed.
type Policy struct {
	actions        map[string]map[string]bool
	ownershipField string
	exemptRoles    map[string]bool
}

// New builds a Policy from a validated permission spec.
func New(spec model.PermissionSpec) *Policy {
	p := &Policy{
		actions:     make(map[string]map[string]bool, len(spec.Roles)),
		exemptRoles: make(map[string]bool),
	}
	for role, acts := range spec.Roles {
		set := make(map[string]bool, len(acts))
		for _, a := range acts {
			set[a] = true
		}
		p.actions[role] = set
	}
	if spec.Ownership != nil {
		p.ownershipField = spec.Ownership.Field
		for _, r := range spec.Ownership.ExemptRoles {
			p.exemptRoles[r] = true
		}
	}
	return p
}

// Allows reports whether the static capability table grants action to role.
// It ignores ownership; use Can for the full row-level check.
func (p *Policy) Allows(role, action string) bool {
	return p.actions[role][action]
}

// HasRole reports whether the role is known to the policy at all, even with
// an empty action set.
func (p *Policy) HasRole(role string) bool {
	_, ok := p.actions[role]
	return ok
}

// OwnershipEnabled reports whether a row-ownership rule is configured.
func (p *Policy) OwnershipEnabled() bool {
	return p.ownershipField != ""
}

// OwnershipField returns the configured ownership column, or "".
func (p *Policy) OwnershipField() string {
	return p.ownershipField
}

// Can reports whether the actor may perform action, optionally against a
// specific record. A nil record skips the ownership check (e.g. create,
// where no row exists yet). Ownership applies only to update and delete:
// when enabled and the actor's role is not exempt, the record's ownership
// field must equal the actor's ID.
func (p *Policy) Can(actor model.Actor, action string, record model.Record) bool {
	if !p.actions[actor.Role][action] {
		return false
	}
	if action != ActionUpdate && action != ActionDelete {
		return true
	}
	if record == nil || !p.OwnershipEnabled() || p.exemptRoles[actor.Role] {
		return true
	}
	return record.StringField(p.ownershipField) == actor.ID
}
