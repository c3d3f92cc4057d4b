package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tabulahq/tabula/internal/policy"
	"github.com/tabulahq/tabula/model"
)

// handlePermissions answers permission queries for the UI layer. With an
// ?action= parameter it evaluates that single action; without one it reports
// all four CRUD actions at once. An optional &record= parameter brings row
// ownership into the evaluation.
func handlePermissions(deps Dependencies) http.HandlerFunc {
	crudActions := []string{
		policy.ActionCreate,
		policy.ActionRead,
		policy.ActionUpdate,
		policy.ActionDelete,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		actor := model.MustActor(r.Context())
		table := chi.URLParam(r, "table")
		recordID := r.URL.Query().Get("record")

		actions := crudActions
		if action := r.URL.Query().Get("action"); action != "" {
			actions = []string{action}
		}

		results := make(map[string]bool, len(actions))
		for _, action := range actions {
			allowed, err := deps.Engine.Can(r.Context(), table, *actor, action, recordID)
			if err != nil {
				WriteError(w, err)
				return
			}
			results[action] = allowed
			if deps.Metrics != nil {
				deps.Metrics.RecordPermissionCheck(table, action, allowed)
			}
		}

		resp := map[string]any{
			"table":       table,
			"permissions": results,
		}
		if recordID != "" {
			resp["record_id"] = recordID
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
