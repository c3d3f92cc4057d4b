package definition

import (
	"fmt"
	"sort"

	"github.com/tabulahq/tabula/model"
)

// VError describes a single validation error in a table definition.
type VError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e VError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validator checks table definitions structurally and referentially. A
// definition with any violation is unusable: the engine refuses to serve
// against it, and no partial recovery is attempted.
type Validator struct{}

// NewValidator creates a new Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks all definitions. Violations are reported in evaluation
// order, each naming the offending state, transition, or rule.
func (v *Validator) Validate(defs []model.TableDefinition) []VError {
	var errs []VError
	seen := make(map[string]string) // table → source file
	for i, def := range defs {
		prefix := fmt.Sprintf("definitions[%d]", i)
		if def.Table != "" {
			if prev, dup := seen[def.Table]; dup {
				errs = append(errs, VError{
					Path:    prefix + ".table",
					Code:    "DUPLICATE",
					Message: fmt.Sprintf("table %q already defined in %s", def.Table, prev),
				})
				continue
			}
			seen[def.Table] = def.SourceFile
		}
		errs = append(errs, v.validateTable(prefix, def)...)
	}
	return errs
}

func (v *Validator) validateTable(prefix string, def model.TableDefinition) []VError {
	var errs []VError

	if def.Table == "" {
		errs = append(errs, VError{Path: prefix + ".table", Code: "REQUIRED", Message: "table is required"})
	}
	if len(def.States) == 0 {
		errs = append(errs, VError{Path: prefix + ".states", Code: "REQUIRED", Message: "at least one state is required"})
	}

	// 1. No duplicate state names.
	states := make(map[string]bool, len(def.States))
	for i, s := range def.States {
		if states[s] {
			errs = append(errs, VError{
				Path:    fmt.Sprintf("%s.states[%d]", prefix, i),
				Code:    "DUPLICATE",
				Message: fmt.Sprintf("state %q declared more than once", s),
			})
			continue
		}
		states[s] = true
	}

	for i, s := range def.Terminal {
		if !states[s] {
			errs = append(errs, VError{
				Path:    fmt.Sprintf("%s.terminal[%d]", prefix, i),
				Code:    "REF_NOT_FOUND",
				Message: fmt.Sprintf("terminal state %q not declared", s),
			})
		}
	}

	// Transitions are validated in name order so violations are reported
	// deterministically.
	names := make([]string, 0, len(def.Transitions))
	for name := range def.Transitions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tr := def.Transitions[name]
		tp := fmt.Sprintf("%s.transitions[%s]", prefix, name)

		// 2. from/to must reference declared states.
		for _, s := range tr.From {
			if !states[s] {
				errs = append(errs, VError{
					Path:    tp + ".from",
					Code:    "REF_NOT_FOUND",
					Message: fmt.Sprintf("transition %q: from state %q not declared", name, s),
				})
			}
		}
		if tr.To == "" {
			errs = append(errs, VError{Path: tp + ".to", Code: "REQUIRED", Message: fmt.Sprintf("transition %q: to is required", name)})
		} else if !states[tr.To] {
			errs = append(errs, VError{
				Path:    tp + ".to",
				Code:    "REF_NOT_FOUND",
				Message: fmt.Sprintf("transition %q: to state %q not declared", name, tr.To),
			})
		}

		// 3. At least one from state and one allowed role.
		if len(tr.From) == 0 {
			errs = append(errs, VError{Path: tp + ".from", Code: "REQUIRED", Message: fmt.Sprintf("transition %q: at least one from state is required", name)})
		}
		if len(tr.Roles) == 0 {
			errs = append(errs, VError{Path: tp + ".roles", Code: "REQUIRED", Message: fmt.Sprintf("transition %q: at least one allowed role is required", name)})
		}

		// Every role referenced by a transition must have a permission entry,
		// even an empty one, so a typo cannot silently grant or deny.
		for _, role := range tr.Roles {
			if _, ok := def.Permissions.Roles[role]; !ok {
				errs = append(errs, VError{
					Path:    tp + ".roles",
					Code:    "UNKNOWN_ROLE",
					Message: fmt.Sprintf("transition %q: role %q has no permission entry", name, role),
				})
			}
		}
	}

	// 4. Escalation rules reference declared states with positive timeouts.
	for i, esc := range def.Escalations {
		ep := fmt.Sprintf("%s.escalations[%d]", prefix, i)
		if !states[esc.State] {
			errs = append(errs, VError{
				Path:    ep + ".state",
				Code:    "REF_NOT_FOUND",
				Message: fmt.Sprintf("escalation state %q not declared", esc.State),
			})
		}
		if esc.TimeoutSeconds <= 0 {
			errs = append(errs, VError{
				Path:    ep + ".timeout_seconds",
				Code:    "RANGE",
				Message: fmt.Sprintf("escalation for state %q: timeout_seconds must be positive", esc.State),
			})
		}
		if esc.Action == "" {
			errs = append(errs, VError{Path: ep + ".action", Code: "REQUIRED", Message: "escalation action is required"})
		}
	}

	// Ownership exempt roles must be known.
	if def.Permissions.Ownership != nil {
		if def.Permissions.Ownership.Field == "" {
			errs = append(errs, VError{Path: prefix + ".permissions.ownership.field", Code: "REQUIRED", Message: "ownership field is required"})
		}
		for _, role := range def.Permissions.Ownership.ExemptRoles {
			if _, ok := def.Permissions.Roles[role]; !ok {
				errs = append(errs, VError{
					Path:    prefix + ".permissions.ownership.exempt_roles",
					Code:    "UNKNOWN_ROLE",
					Message: fmt.Sprintf("exempt role %q has no permission entry", role),
				})
			}
		}
	}

	return errs
}
