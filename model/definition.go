package model

// TableDefinition is the raw, loosely-typed configuration for one table as
// parsed from YAML. It is validated and compiled into a WorkflowDefinition
// plus a permission policy before the engine ever sees it.
type TableDefinition struct {
	Table       string                    `yaml:"table"`
	States      []string                  `yaml:"states"`
	Terminal    []string                  `yaml:"terminal"`
	Transitions map[string]TransitionSpec `yaml:"transitions"`
	Escalations []EscalationSpec          `yaml:"escalations"`
	Permissions PermissionSpec            `yaml:"permissions"`

	// Set by the loader, not by config authors.
	Checksum   string `yaml:"-"`
	SourceFile string `yaml:"-"`
}

// TransitionSpec is the configured shape of one transition.
type TransitionSpec struct {
	From       []string            `yaml:"from"`
	To         string              `yaml:"to"`
	Roles      []string            `yaml:"roles"`
	Conditions map[string][]string `yaml:"conditions"`
	Label      string              `yaml:"label"`
	Color      string              `yaml:"color"`
}

// EscalationSpec is the configured shape of one escalation rule.
type EscalationSpec struct {
	State          string `yaml:"state"`
	TimeoutSeconds int64  `yaml:"timeout_seconds"`
	Action         string `yaml:"action"`
	Message        string `yaml:"message"`
}

// PermissionSpec is the configured shape of a table's permission policy.
type PermissionSpec struct {
	// Roles maps each role to the actions it may perform: the CRUD verbs
	// plus workflow transition names.
	Roles     map[string][]string `yaml:"roles"`
	Ownership *OwnershipSpec      `yaml:"ownership"`
}

// OwnershipSpec ties rows to the user that owns them. Update and delete on a
// row are restricted to its owner unless the actor's role is exempt.
type OwnershipSpec struct {
	Field       string   `yaml:"field"`
	ExemptRoles []string `yaml:"exempt_roles"`
}
