// Package engine executes workflow transitions against configured tables,
// scans for escalation timeouts, and aggregates transition analytics. All
// mutation flows through a single compare-and-swap path; the engine holds no
// locks and no mutable state of its own.
package engine

import (
	"context"
	"fmt"

	"github.com/tabulahq/tabula/internal/definition"
	"github.com/tabulahq/tabula/model"
)

// Engine is the authorization and workflow engine for all configured tables.
// It is safe for concurrent use: the registry snapshot and per-table policies
// are immutable, and record state is owned by the store.
type Engine struct {
	registry *definition.Registry
	store    Store
}

// NewEngine creates an Engine over the given registry and store.
func NewEngine(registry *definition.Registry, store Store) *Engine {
	return &Engine{registry: registry, store: store}
}

// table resolves the compiled runtime for a table name.
func (e *Engine) table(name string) (definition.Table, error) {
	tbl, ok := e.registry.Get(name)
	if !ok {
		return definition.Table{}, model.NewTableNotFoundError(
			fmt.Sprintf("table %q is not configured", name),
		)
	}
	return tbl, nil
}

// Can answers a permission query for the caller's UI layer. When recordID is
// empty the row-ownership check is skipped (e.g. create). Unknown tables
// fail closed rather than erroring: the caller is deciding whether to render
// a control, not executing an operation.
func (e *Engine) Can(ctx context.Context, table string, actor model.Actor, action, recordID string) (bool, error) {
	tbl, ok := e.registry.Get(table)
	if !ok {
		return false, nil
	}

	var rec model.Record
	if recordID != "" {
		var err error
		rec, err = e.store.ReadRecord(ctx, table, recordID)
		if err != nil {
			if model.Kind(err) == model.ErrRecordNotFound {
				return false, err
			}
			return false, model.NewStorageFailureError(err)
		}
	}

	return tbl.Policy.Can(actor, action, rec), nil
}

// AuditTrail returns the append-only transition history of a record.
func (e *Engine) AuditTrail(ctx context.Context, table, recordID string) ([]model.TransitionRecord, error) {
	if _, err := e.table(table); err != nil {
		return nil, err
	}
	entries, err := e.store.AuditTrail(ctx, table, recordID)
	if err != nil {
		return nil, model.NewStorageFailureError(err)
	}
	return entries, nil
}
