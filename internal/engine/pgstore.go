package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tabulahq/tabula/model"
)

// auditTable is the shared append-only audit relation. Record tables are the
// CRUD-generated tables themselves, addressed by their configured name.
const auditTable = "transition_audit"

// PgStore is a PostgreSQL-backed Store using pgx/v5. Record tables must carry
// an id primary key, a status column, and a created_at column; everything
// else is opaque to the engine.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a new PostgreSQL store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// ReadRecord retrieves a record row as an opaque field map.
func (s *PgStore) ReadRecord(ctx context.Context, table, recordID string) (model.Record, error) {
	query := fmt.Sprintf(
		`SELECT to_jsonb(t) FROM %s t WHERE t.id::text = $1`,
		pgx.Identifier{table}.Sanitize(),
	)

	var raw []byte
	err := s.pool.QueryRow(ctx, query, recordID).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, model.NewRecordNotFoundError(
			fmt.Sprintf("record %q not found in table %q", recordID, table),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("query record: %w", err)
	}

	var rec model.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// ApplyTransition performs the conditional status update and the audit append
// in one transaction. A swap that affects zero rows means another writer got
// there first; the transaction is rolled back and no audit row is written.
func (s *PgStore) ApplyTransition(ctx context.Context, table, recordID, expected, next string, entry model.TransitionRecord) (swapped bool, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if !swapped || err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	update := fmt.Sprintf(
		`UPDATE %s SET status = $1 WHERE id::text = $2 AND status = $3`,
		pgx.Identifier{table}.Sanitize(),
	)
	tag, err := tx.Exec(ctx, update, next, recordID, expected)
	if err != nil {
		return false, fmt.Errorf("conditional status update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO `+auditTable+` (
			id, table_name, record_id, from_state, to_state,
			transition, actor_id, actor_role, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.Table, entry.RecordID, entry.FromState, entry.ToState,
		entry.Transition, entry.ActorID, entry.ActorRole, entry.Timestamp,
	)
	if err != nil {
		return false, fmt.Errorf("insert audit entry: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit transition: %w", err)
	}
	return true, nil
}

// ScanStates returns every record's state and last-transition timestamp,
// falling back to the row's creation time when no audit history exists.
func (s *PgStore) ScanStates(ctx context.Context, table string) ([]model.RecordState, error) {
	query := fmt.Sprintf(`
		SELECT t.id::text, t.status, COALESCE(a.last_at, t.created_at)
		FROM %s t
		LEFT JOIN (
			SELECT record_id, MAX(created_at) AS last_at
			FROM `+auditTable+`
			WHERE table_name = $1
			GROUP BY record_id
		) a ON a.record_id = t.id::text
		ORDER BY t.id`,
		pgx.Identifier{table}.Sanitize(),
	)

	rows, err := s.pool.Query(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("scan states: %w", err)
	}
	defer rows.Close()

	var result []model.RecordState
	for rows.Next() {
		var rs model.RecordState
		if err := rows.Scan(&rs.RecordID, &rs.State, &rs.LastTransitionAt); err != nil {
			return nil, fmt.Errorf("scan state row: %w", err)
		}
		result = append(result, rs)
	}
	return result, rows.Err()
}

// ScanAuditCounts returns audit counts grouped by transition name.
func (s *PgStore) ScanAuditCounts(ctx context.Context, table string) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT transition, COUNT(*)
		FROM `+auditTable+`
		WHERE table_name = $1
		GROUP BY transition`,
		table,
	)
	if err != nil {
		return nil, fmt.Errorf("scan audit counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var name string
		var count int64
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("scan audit count row: %w", err)
		}
		counts[name] = count
	}
	return counts, rows.Err()
}

// AuditTrail returns all audit entries for a record, oldest first.
func (s *PgStore) AuditTrail(ctx context.Context, table, recordID string) ([]model.TransitionRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, table_name, record_id, from_state, to_state,
		       transition, actor_id, actor_role, created_at
		FROM `+auditTable+`
		WHERE table_name = $1 AND record_id = $2
		ORDER BY created_at ASC`,
		table, recordID,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit trail: %w", err)
	}
	defer rows.Close()

	var entries []model.TransitionRecord
	for rows.Next() {
		var e model.TransitionRecord
		if err := rows.Scan(
			&e.ID, &e.Table, &e.RecordID, &e.FromState, &e.ToState,
			&e.Transition, &e.ActorID, &e.ActorRole, &e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// HealthCheck verifies database connectivity. Used by the readiness probe.
func (s *PgStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
