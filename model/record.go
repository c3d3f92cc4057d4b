package model

import (
	"fmt"
	"time"
)

// StatusField is the record column holding the current workflow state.
const StatusField = "status"

// Record is an opaque field map owned by storage. The engine only reads the
// status field, the ownership field when row-level security is enabled, and
// whatever fields transition conditions name.
type Record map[string]any

// Status returns the record's current workflow state.
func (r Record) Status() string {
	return r.StringField(StatusField)
}

// StringField returns the canonical string form of a field value, or the
// empty string if the field is absent. Records come from loosely-typed
// storage, so numeric and boolean values are compared through their printed
// form.
func (r Record) StringField(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	if s, isStr := v.(string); isStr {
		return s
	}
	return fmt.Sprint(v)
}

// HasField returns true if the field is present with a non-nil value.
func (r Record) HasField(field string) bool {
	v, ok := r[field]
	return ok && v != nil
}

// RecordState is one row of a current-state scan: the minimum the escalation
// scanner and analytics aggregator need per record.
type RecordState struct {
	RecordID string
	State    string
	// LastTransitionAt is the timestamp of the most recent audit entry for
	// the record, or its creation time if no audit history exists yet.
	LastTransitionAt time.Time
}
