package model

import "time"

// StateSet is a set of declared state names.
type StateSet map[string]bool

// Has returns true if the set contains the given state.
func (s StateSet) Has(state string) bool { return s[state] }

// WorkflowDefinition is the validated, immutable representation of a table's
// lifecycle: declared states, named transitions, and escalation rules. It is
// built once from configuration, validated eagerly, and shared read-only for
// the lifetime of the process.
type WorkflowDefinition struct {
	Table       string
	States      []string
	Terminal    StateSet
	Transitions map[string]Transition
	Escalations []EscalationRule

	stateSet StateSet
}

// Seal computes the internal state lookup set. Called once by the definition
// builder after validation.
func (d *WorkflowDefinition) Seal() {
	d.stateSet = make(StateSet, len(d.States))
	for _, s := range d.States {
		d.stateSet[s] = true
	}
}

// HasState returns true if the given state is declared.
func (d *WorkflowDefinition) HasState(state string) bool {
	return d.stateSet.Has(state)
}

// Transition is a named, guarded edge from one or more source states to a
// single target state. Display metadata (Label, Color) is carried for the
// form layer but ignored by the engine's logic.
type Transition struct {
	Name       string
	From       []string
	To         string
	Roles      []string
	Conditions map[string][]string
	Label      string
	Color      string
}

// FromContains returns true if state is one of the transition's source states.
func (t Transition) FromContains(state string) bool {
	for _, s := range t.From {
		if s == state {
			return true
		}
	}
	return false
}

// AllowsRole returns true if the given role may execute this transition.
// Workflow transitions carry their own role gate, independent of the generic
// permission policy: a role may be permitted to update a record generally yet
// be forbidden from a specific transition.
func (t Transition) AllowsRole(role string) bool {
	for _, r := range t.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// EscalationRule is a timeout-based detector flagging records stuck in a
// given state beyond a threshold. Action is an opaque string consumed by the
// caller (e.g. "notify_manager", "auto_close"); the scanner never enforces it.
type EscalationRule struct {
	State   string
	Timeout time.Duration
	Action  string
	Message string
}

// TransitionRecord is one append-only audit entry. Entries are never mutated
// or deleted by the engine; they are the source of truth for analytics and
// for time-in-state computation.
type TransitionRecord struct {
	ID         string    `json:"id"`
	Table      string    `json:"table"`
	RecordID   string    `json:"record_id"`
	FromState  string    `json:"from_state"`
	ToState    string    `json:"to_state"`
	Transition string    `json:"transition"`
	ActorID    string    `json:"actor_id"`
	ActorRole  string    `json:"actor_role"`
	Timestamp  time.Time `json:"timestamp"`
}

// TransitionResult reports a successful transition execution.
type TransitionResult struct {
	RecordID   string `json:"record_id"`
	Transition string `json:"transition"`
	From       string `json:"from"`
	To         string `json:"to"`
}

// Escalation is one detected timeout: a record whose time in a trigger state
// meets or exceeds the rule's threshold.
type Escalation struct {
	RecordID string
	State    string
	Action   string
	Message  string
	Elapsed  time.Duration
	Rule     EscalationRule
}

// Analytics is the derived view over current record states and the audit
// history. Sum of ByState values always equals Total.
type Analytics struct {
	Total       int64            `json:"total"`
	ByState     map[string]int64 `json:"by_state"`
	Transitions map[string]int64 `json:"transitions"`
}
