package engine

import "github.com/tabulahq/tabula/model"

// MatchesConditions evaluates a transition's guard predicates against a
// record snapshot. Every (field → allowed values) pair must hold; a field
// absent from the record fails its condition — missing data is never treated
// as vacuously true. An empty condition set always matches.
func MatchesConditions(t model.Transition, rec model.Record) bool {
	for field, allowed := range t.Conditions {
		if !rec.HasField(field) {
			return false
		}
		if !containsValue(allowed, rec.StringField(field)) {
			return false
		}
	}
	return true
}

func containsValue(allowed []string, value string) bool {
	for _, v := range allowed {
		if v == value {
			return true
		}
	}
	return false
}
