package engine

import (
	"context"
	"time"

	"github.com/tabulahq/tabula/model"
)

// CheckEscalations returns every record whose time in a rule's trigger state
// meets or exceeds the rule's timeout, once per matching (record, rule) pair.
// Detection only: the scanner never transitions or mutates records. If a
// rule's action implies a state change, the caller invokes Transition — the
// state-mutating code path stays singular. The result is a pure function of
// current states, timestamps, and now.
func (e *Engine) CheckEscalations(ctx context.Context, table string, now time.Time) ([]model.Escalation, error) {
	tbl, err := e.table(table)
	if err != nil {
		return nil, err
	}
	if len(tbl.Definition.Escalations) == 0 {
		return []model.Escalation{}, nil
	}

	// Index rules by trigger state, preserving declaration order.
	rulesByState := make(map[string][]model.EscalationRule)
	for _, rule := range tbl.Definition.Escalations {
		rulesByState[rule.State] = append(rulesByState[rule.State], rule)
	}

	states, err := e.store.ScanStates(ctx, table)
	if err != nil {
		return nil, model.NewStorageFailureError(err)
	}

	escalations := make([]model.Escalation, 0)
	for _, rs := range states {
		for _, rule := range rulesByState[rs.State] {
			elapsed := now.Sub(rs.LastTransitionAt)
			if elapsed < rule.Timeout {
				continue
			}
			escalations = append(escalations, model.Escalation{
				RecordID: rs.RecordID,
				State:    rs.State,
				Action:   rule.Action,
				Message:  rule.Message,
				Elapsed:  elapsed,
				Rule:     rule,
			})
		}
	}
	return escalations, nil
}
