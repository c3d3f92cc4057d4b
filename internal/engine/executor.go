package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tabulahq/tabula/model"
)

// Transition applies a single named transition to a record on behalf of an
// actor. The checks run in a fixed order — existence, state membership, role
// gate, conditions — and every failure branch leaves the record and the audit
// trail untouched. The state write is an optimistic compare-and-swap keyed on
// the state observed here; a lost race returns CONCURRENT_MODIFICATION and
// the engine never retries on its own.
func (e *Engine) Transition(ctx context.Context, table, recordID, transitionName string, actor model.Actor) (model.TransitionResult, error) {
	tbl, err := e.table(table)
	if err != nil {
		return model.TransitionResult{}, err
	}

	t, ok := tbl.Definition.Transitions[transitionName]
	if !ok {
		return model.TransitionResult{}, model.NewUnknownTransitionError(
			fmt.Sprintf("transition %q not defined for table %q", transitionName, table),
		)
	}

	rec, err := e.store.ReadRecord(ctx, table, recordID)
	if err != nil {
		if model.Kind(err) == model.ErrRecordNotFound {
			return model.TransitionResult{}, err
		}
		return model.TransitionResult{}, model.NewStorageFailureError(err)
	}

	currentState := rec.Status()
	if !t.FromContains(currentState) {
		return model.TransitionResult{}, model.NewInvalidTransitionError(
			fmt.Sprintf("transition %q not allowed from state %q", transitionName, currentState),
		)
	}

	if !t.AllowsRole(actor.Role) {
		return model.TransitionResult{}, model.NewPermissionDeniedError(
			fmt.Sprintf("role %q may not execute transition %q", actor.Role, transitionName),
		)
	}

	if !MatchesConditions(t, rec) {
		return model.TransitionResult{}, model.NewConditionNotMetError(
			fmt.Sprintf("conditions for transition %q not met", transitionName),
		)
	}

	entry := model.TransitionRecord{
		ID:         uuid.New().String(),
		Table:      table,
		RecordID:   recordID,
		FromState:  currentState,
		ToState:    t.To,
		Transition: transitionName,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Timestamp:  time.Now().UTC(),
	}

	swapped, err := e.store.ApplyTransition(ctx, table, recordID, currentState, t.To, entry)
	if err != nil {
		return model.TransitionResult{}, model.NewStorageFailureError(err)
	}
	if !swapped {
		return model.TransitionResult{}, model.NewConcurrentModificationError(
			fmt.Sprintf("record %q changed state since it was read", recordID),
		)
	}

	return model.TransitionResult{
		RecordID:   recordID,
		Transition: transitionName,
		From:       currentState,
		To:         t.To,
	}, nil
}

// AvailableTransitions lists the transitions the actor could execute on a
// record right now: current state in the from set, role allowed, conditions
// met. The form layer uses this to decide which workflow buttons to render.
// Results are sorted by transition name.
func (e *Engine) AvailableTransitions(ctx context.Context, table, recordID string, actor model.Actor) ([]model.Transition, error) {
	tbl, err := e.table(table)
	if err != nil {
		return nil, err
	}

	rec, err := e.store.ReadRecord(ctx, table, recordID)
	if err != nil {
		if model.Kind(err) == model.ErrRecordNotFound {
			return nil, err
		}
		return nil, model.NewStorageFailureError(err)
	}

	currentState := rec.Status()
	available := make([]model.Transition, 0)
	for _, t := range tbl.Definition.Transitions {
		if !t.FromContains(currentState) {
			continue
		}
		if !t.AllowsRole(actor.Role) {
			continue
		}
		if !MatchesConditions(t, rec) {
			continue
		}
		available = append(available, t)
	}

	sort.Slice(available, func(i, j int) bool {
		return available[i].Name < available[j].Name
	})
	return available, nil
}
