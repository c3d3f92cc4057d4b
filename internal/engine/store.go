package engine

import (
	"context"

	"github.com/tabulahq/tabula/model"
)

// Store is the storage collaborator required by the engine. The engine never
// touches table schemas; it reads records, conditionally swaps a record's
// status column, and appends to the transition audit trail.
type Store interface {
	// ReadRecord retrieves a record as an opaque field map. Returns a
	// RECORD_NOT_FOUND error if the record is absent.
	ReadRecord(ctx context.Context, table, recordID string) (model.Record, error)

	// ApplyTransition performs the compare-and-swap state update and the
	// audit append as one atomic unit: the record's status is set to next
	// only if it still equals expected at the moment of the write, and the
	// audit entry is persisted if and only if the swap took effect. Returns
	// false with a nil error when another writer changed the state first.
	ApplyTransition(ctx context.Context, table, recordID, expected, next string, entry model.TransitionRecord) (bool, error)

	// ScanStates returns the current state and last-transition timestamp of
	// every live record in the table. The timestamp falls back to record
	// creation time when no audit history exists.
	ScanStates(ctx context.Context, table string) ([]model.RecordState, error)

	// ScanAuditCounts returns audit entry counts grouped by transition name
	// over the entire audit history of the table.
	ScanAuditCounts(ctx context.Context, table string) (map[string]int64, error)

	// AuditTrail returns all audit entries for a record, ordered by
	// timestamp ascending.
	AuditTrail(ctx context.Context, table, recordID string) ([]model.TransitionRecord, error)
}
