// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	repository "github.com/okian/presence/internal/adapters/repository"
	"github.com/okian/presence/internal/domain/lease"
	"github.com/okian/presence/internal/domain/model"
	"github.com/okian/presence/internal/session"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SessionDependencies
	RecordsDependencies
}

// Server wires HTTP routes for the kiosk control API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	sessionHandler *SessionHandler
	recordsHandler *RecordsHandler
	kioskHandler   *kioskHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		sessionHandler: NewSessionHandler(deps),
		recordsHandler: NewRecordsHandler(deps),
		kioskHandler:   newKioskHandler(),
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/", s.kioskHandler.HandleKiosk)
	r.Group(func(r chi.Router) {
		r.Use(MetricsMiddleware)
		r.Get("/healthz", s.healthHandler.HandleHealth)
		r.Get("/stats", s.statsHandler.HandleStats)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.sessionHandler.HandleGetSession)
			r.Post("/camera/start", s.sessionHandler.HandleStartCamera)
			r.Post("/camera/stop", s.sessionHandler.HandleStopCamera)
			r.Post("/attempts", s.sessionHandler.HandlePostAttempt)
			r.Get("/outcome", s.sessionHandler.HandleGetOutcome)
		})

		r.Get("/records", s.recordsHandler.HandleGetRecords)
		r.Get("/records/{userID}", s.recordsHandler.HandleGetRecords)
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeSessionError maps session and device errors onto HTTP statuses.
func writeSessionError(w http.ResponseWriter, err error) {
	var f *model.Failure
	switch {
	case errors.Is(err, session.ErrSessionBusy):
		writeError(w, http.StatusConflict, string(model.FailureSessionBusy), err)
	case errors.Is(err, lease.ErrAbandoned), errors.Is(err, session.ErrSuperseded):
		writeError(w, http.StatusConflict, "superseded", err)
	case errors.Is(err, session.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	case errors.Is(err, lease.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, string(model.FailureCameraPermissionDenied), err)
	case errors.Is(err, lease.ErrUnavailable), errors.Is(err, lease.ErrAlreadyHeld):
		writeError(w, http.StatusServiceUnavailable, string(model.FailureCameraUnavailable), err)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.As(err, &f):
		writeError(w, http.StatusServiceUnavailable, string(f.Kind), err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
