package definition

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tabulahq/tabula/internal/policy"
	"github.com/tabulahq/tabula/model"
)

// Table is the compiled runtime for one configured table: its immutable
// workflow definition and its own permission policy. Instances are shared
// read-only across requests; two tables never share state.
type Table struct {
	Definition *model.WorkflowDefinition
	Policy     *policy.Policy
}

// Compile turns a validated raw definition into its runtime form. It assumes
// the definition has passed the Validator; calling it on unvalidated input is
// a programmer error.
func Compile(def model.TableDefinition) Table {
	wf := &model.WorkflowDefinition{
		Table:       def.Table,
		States:      append([]string(nil), def.States...),
		Terminal:    make(model.StateSet, len(def.Terminal)),
		Transitions: make(map[string]model.Transition, len(def.Transitions)),
	}
	for _, s := range def.Terminal {
		wf.Terminal[s] = true
	}
	for name, spec := range def.Transitions {
		wf.Transitions[name] = model.Transition{
			Name:       name,
			From:       append([]string(nil), spec.From...),
			To:         spec.To,
			Roles:      append([]string(nil), spec.Roles...),
			Conditions: spec.Conditions,
			Label:      spec.Label,
			Color:      spec.Color,
		}
	}
	for _, esc := range def.Escalations {
		wf.Escalations = append(wf.Escalations, model.EscalationRule{
			State:   esc.State,
			Timeout: time.Duration(esc.TimeoutSeconds) * time.Second,
			Action:  esc.Action,
			Message: esc.Message,
		})
	}
	wf.Seal()

	return Table{
		Definition: wf,
		Policy:     policy.New(def.Permissions),
	}
}

// snapshot is an immutable collection of compiled tables.
type snapshot struct {
	tables   map[string]Table
	checksum string
}

// Registry is a read-optimized, thread-safe store of compiled table
// definitions. It uses atomic pointer swap for lock-free concurrent reads.
type Registry struct {
	snap atomic.Pointer[snapshot]
}

// NewRegistry creates a Registry from the given validated definitions.
func NewRegistry(defs []model.TableDefinition) *Registry {
	r := &Registry{}
	r.Replace(defs)
	return r
}

// Replace atomically swaps the registry contents with a new snapshot built
// from the given definitions.
func (r *Registry) Replace(defs []model.TableDefinition) {
	s := &snapshot{
		tables: make(map[string]Table, len(defs)),
	}

	var checksumParts []string
	for _, def := range defs {
		s.tables[def.Table] = Compile(def)
		checksumParts = append(checksumParts, def.Checksum)
	}

	sort.Strings(checksumParts)
	combined := strings.Join(checksumParts, ":")
	s.checksum = fmt.Sprintf("%x", sha256.Sum256([]byte(combined)))

	r.snap.Store(s)
}

func (r *Registry) current() *snapshot {
	return r.snap.Load()
}

// Get returns the compiled runtime for the given table.
func (r *Registry) Get(table string) (Table, bool) {
	t, ok := r.current().tables[table]
	return t, ok
}

// Tables returns the names of all configured tables, sorted.
func (r *Registry) Tables() []string {
	s := r.current()
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Checksum returns the combined checksum of all loaded definitions.
func (r *Registry) Checksum() string {
	return r.current().checksum
}
