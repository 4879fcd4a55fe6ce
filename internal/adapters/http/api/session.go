package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/presence/internal/domain/model"
	"github.com/okian/presence/internal/session"
)

// SessionDependencies drives the kiosk session.
type SessionDependencies interface {
	StartCamera(ctx context.Context) error
	StopCamera(ctx context.Context) error
	Attempt(ctx context.Context) (*session.Ticket, error)
	State(ctx context.Context) (model.SessionState, error)
	Outcome(ctx context.Context) (model.Outcome, uint64, bool)
}

// SessionHandler handles session requests.
type SessionHandler struct {
	deps SessionDependencies
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps SessionDependencies) *SessionHandler {
	return &SessionHandler{deps: deps}
}

type sessionResponse struct {
	State   model.SessionState `json:"state"`
	Version uint64             `json:"version"`
	Outcome *model.Outcome     `json:"outcome,omitempty"`
	Text    string             `json:"text,omitempty"`
	Warning string             `json:"warning,omitempty"`
}

type attemptResponse struct {
	AttemptID uint64         `json:"attempt_id"`
	Status    string         `json:"status"`
	Outcome   *model.Outcome `json:"outcome,omitempty"`
	Text      string         `json:"text,omitempty"`
}

// HandleGetSession handles GET /session requests.
func (h *SessionHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.State(r.Context())
	if err != nil {
		writeSessionError(w, Wrap("api.get_session", err))
		return
	}
	o, v, ok := h.deps.Outcome(r.Context())
	resp := sessionResponse{State: st, Version: v}
	if ok {
		resp.Outcome = &o
		resp.Text, resp.Warning = o.Text(), o.Warning()
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleStartCamera handles POST /session/camera/start requests.
func (h *SessionHandler) HandleStartCamera(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.StartCamera(r.Context()); err != nil {
		writeSessionError(w, Wrap("api.start_camera", err))
		return
	}
	h.HandleGetSession(w, r)
}

// HandleStopCamera handles POST /session/camera/stop requests.
func (h *SessionHandler) HandleStopCamera(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.StopCamera(r.Context()); err != nil {
		writeSessionError(w, Wrap("api.stop_camera", err))
		return
	}
	h.HandleGetSession(w, r)
}

// HandlePostAttempt handles POST /session/attempts requests. With
// ?wait=true the response carries the settled outcome.
func (h *SessionHandler) HandlePostAttempt(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_attempt"
	wait := false
	if raw := r.URL.Query().Get("wait"); raw != "" {
		var err error
		if wait, err = strconv.ParseBool(raw); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
	}
	t, err := h.deps.Attempt(r.Context())
	if err != nil {
		writeSessionError(w, Wrap(op, err))
		return
	}
	resp := attemptResponse{AttemptID: uint64(t.ID()), Status: "accepted"}
	if !wait {
		writeJSON(w, http.StatusAccepted, resp)
		return
	}
	o, err := t.Wait(r.Context())
	if err != nil {
		writeSessionError(w, Wrap(op, err))
		return
	}
	resp.Status, resp.Outcome, resp.Text = "settled", &o, o.Text()
	writeJSON(w, http.StatusOK, resp)
}

// HandleGetOutcome handles GET /session/outcome requests. It answers
// 204 when nothing is on display.
func (h *SessionHandler) HandleGetOutcome(w http.ResponseWriter, r *http.Request) {
	o, v, ok := h.deps.Outcome(r.Context())
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("ETag", strconv.Quote(strconv.FormatUint(v, 10)))
	writeJSON(w, http.StatusOK, map[string]any{
		"version": v,
		"outcome": o,
		"text":    o.Text(),
		"warning": o.Warning(),
	})
}
