package engine

import (
	"context"

	"github.com/tabulahq/tabula/model"
)

// Analytics computes the current state distribution across all live records
// and per-transition counts over the entire audit history. The snapshot is
// recomputed on every call — the dataset is assumed small relative to a
// single scan, and this path is off the per-transition hot path. The sum of
// ByState values always equals Total.
func (e *Engine) Analytics(ctx context.Context, table string) (model.Analytics, error) {
	tbl, err := e.table(table)
	if err != nil {
		return model.Analytics{}, err
	}

	states, err := e.store.ScanStates(ctx, table)
	if err != nil {
		return model.Analytics{}, model.NewStorageFailureError(err)
	}

	byState := make(map[string]int64, len(tbl.Definition.States))
	for _, s := range tbl.Definition.States {
		byState[s] = 0
	}
	for _, rs := range states {
		byState[rs.State]++
	}

	counts, err := e.store.ScanAuditCounts(ctx, table)
	if err != nil {
		return model.Analytics{}, model.NewStorageFailureError(err)
	}

	return model.Analytics{
		Total:       int64(len(states)),
		ByState:     byState,
		Transitions: counts,
	}, nil
}
