package transport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tabulahq/tabula/model"
)

// transitionView is the wire shape of one available transition. Display
// metadata rides along so the form layer can render buttons directly.
type transitionView struct {
	Name  string `json:"name"`
	Label string `json:"label,omitempty"`
	Color string `json:"color,omitempty"`
	To    string `json:"to"`
}

func handleAvailableTransitions(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := model.MustActor(r.Context())
		table := chi.URLParam(r, "table")
		recordID := chi.URLParam(r, "id")

		transitions, err := deps.Engine.AvailableTransitions(r.Context(), table, recordID, *actor)
		if err != nil {
			WriteError(w, err)
			return
		}

		views := make([]transitionView, 0, len(transitions))
		for _, t := range transitions {
			views = append(views, transitionView{
				Name:  t.Name,
				Label: t.Label,
				Color: t.Color,
				To:    t.To,
			})
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"record_id":   recordID,
			"transitions": views,
		})
	}
}

func handleExecuteTransition(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := model.MustActor(r.Context())
		table := chi.URLParam(r, "table")
		recordID := chi.URLParam(r, "id")
		name := chi.URLParam(r, "name")

		start := time.Now()
		result, err := deps.Engine.Transition(r.Context(), table, recordID, name, *actor)
		if deps.Metrics != nil {
			outcome := "success"
			if err != nil {
				outcome = model.Kind(err)
			}
			deps.Metrics.RecordTransition(table, name, outcome, time.Since(start))
		}
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, result)
	}
}

func handleHistory(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		table := chi.URLParam(r, "table")
		recordID := chi.URLParam(r, "id")

		entries, err := deps.Engine.AuditTrail(r.Context(), table, recordID)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"record_id": recordID,
			"entries":   entries,
		})
	}
}

// escalationView reports elapsed time in whole seconds rather than the
// nanosecond encoding a raw time.Duration would marshal to.
type escalationView struct {
	RecordID       string `json:"record_id"`
	State          string `json:"state"`
	Action         string `json:"action"`
	Message        string `json:"message,omitempty"`
	ElapsedSeconds int64  `json:"elapsed_seconds"`
}

func handleEscalations(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		table := chi.URLParam(r, "table")

		start := time.Now()
		escalations, err := deps.Engine.CheckEscalations(r.Context(), table, time.Now().UTC())
		if deps.Metrics != nil {
			status := "success"
			if err != nil {
				status = "failure"
			}
			deps.Metrics.RecordEscalationScan(table, status, len(escalations), time.Since(start))
		}
		if err != nil {
			WriteError(w, err)
			return
		}

		views := make([]escalationView, 0, len(escalations))
		for _, e := range escalations {
			views = append(views, escalationView{
				RecordID:       e.RecordID,
				State:          e.State,
				Action:         e.Action,
				Message:        e.Message,
				ElapsedSeconds: int64(e.Elapsed / time.Second),
			})
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"table":       table,
			"count":       len(views),
			"escalations": views,
		})
	}
}

func handleAnalytics(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		table := chi.URLParam(r, "table")

		analytics, err := deps.Engine.Analytics(r.Context(), table)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, analytics)
	}
}
