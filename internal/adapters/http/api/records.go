package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	repository "github.com/okian/presence/internal/adapters/repository"
)

// RecordsDependencies exposes cached attendance history.
type RecordsDependencies interface {
	Records(ctx context.Context, userID string) (repository.Snapshot, error)
}

// RecordsHandler handles records requests.
type RecordsHandler struct {
	deps RecordsDependencies
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(deps RecordsDependencies) *RecordsHandler {
	return &RecordsHandler{deps: deps}
}

// HandleGetRecords handles GET /records and GET /records/{userID}. Without
// a user the most recently recognized user's history is returned.
func (h *RecordsHandler) HandleGetRecords(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		userID = r.URL.Query().Get("user_id")
	}
	snap, err := h.deps.Records(r.Context(), userID)
	if err != nil {
		writeSessionError(w, Wrap("api.get_records", err))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
