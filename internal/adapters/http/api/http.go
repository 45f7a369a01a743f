// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/eerriikk-pro/sius-parse/internal/adapters/ingest"
	"github.com/eerriikk-pro/sius-parse/internal/adapters/repository"
	service "github.com/eerriikk-pro/sius-parse/internal/app"
	"github.com/eerriikk-pro/sius-parse/internal/domain/model"
	"github.com/eerriikk-pro/sius-parse/internal/domain/period"
)

// Default request limits.
const (
	DefaultWindowDays     = 10
	DefaultMaxWindowDays  = 366
	DefaultMaxUploadBytes = 32 << 20
)

// ShotReader answers the shot statistics queries.
type ShotReader interface {
	GetRecent(ctx context.Context, athleteID int64, days int) ([]model.DayStats, error)
	GetStats(ctx context.Context, athleteID int64, days int) (model.PeriodReport, error)
	GetDay(ctx context.Context, athleteID int64, day model.Date) (model.DayStats, error)
	GetSet(ctx context.Context, athleteID int64, day model.Date, index int) ([]model.RelayStats, error)
}

// Importer accepts uploaded exports and reports on their jobs.
type Importer interface {
	SubmitImport(ctx context.Context, filename string, content []byte) (model.ImportJob, error)
	Job(ctx context.Context, id string) (model.ImportJob, error)
}

// AthleteManager manages registered athletes.
type AthleteManager interface {
	CreateAthlete(ctx context.Context, a model.Athlete) (model.Athlete, error)
	GetAthlete(ctx context.Context, id int64) (model.Athlete, error)
	ListAthletes(ctx context.Context) ([]model.Athlete, error)
	UpdateAthlete(ctx context.Context, id int64, u model.AthleteUpdate) (model.Athlete, error)
	DeleteAthlete(ctx context.Context, id int64) error
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ShotReader
	Importer
	AthleteManager
}

// StatusProvider reports service internals for monitoring.
type StatusProvider interface {
	Status() map[string]any
}

// Limits bounds what a single request may ask for.
type Limits struct {
	DefaultWindowDays int
	MaxWindowDays     int
	MaxUploadBytes    int64
}

// Option applies a configuration option to the Server.
type Option func(*Limits)

// WithWindowDays sets the default and maximum query window.
func WithWindowDays(def, max int) Option {
	return func(l *Limits) {
		if def > 0 {
			l.DefaultWindowDays = def
		}
		if max > 0 {
			l.MaxWindowDays = max
		}
	}
}

// WithMaxUploadBytes caps the size of an import request body.
func WithMaxUploadBytes(n int64) Option {
	return func(l *Limits) {
		if n > 0 {
			l.MaxUploadBytes = n
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statusHandler  *StatusHandler
	shotsHandler   *ShotsHandler
	importHandler  *ImportHandler
	athleteHandler *AthleteHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, status StatusProvider, opts ...Option) *Server {
	limits := Limits{
		DefaultWindowDays: DefaultWindowDays,
		MaxWindowDays:     DefaultMaxWindowDays,
		MaxUploadBytes:    DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(&limits)
	}
	return &Server{
		healthHandler:  NewHealthHandler(),
		statusHandler:  NewStatusHandler(status),
		shotsHandler:   NewShotsHandler(deps, limits),
		importHandler:  NewImportHandler(deps, limits),
		athleteHandler: NewAthleteHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", MetricsMiddleware(s.healthHandler.HandleHealth, "metrics"))
	mux.HandleFunc("GET /status", MetricsMiddleware(s.statusHandler.HandleStatus, "status"))

	mux.HandleFunc("GET /api/v1/shots/recent-scores", MetricsMiddleware(s.shotsHandler.HandleRecent, "recent_scores"))
	mux.HandleFunc("GET /api/v1/shots/stats", MetricsMiddleware(s.shotsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /api/v1/shots/by-day", MetricsMiddleware(s.shotsHandler.HandleByDay, "by_day"))
	mux.HandleFunc("GET /api/v1/shots/by-set", MetricsMiddleware(s.shotsHandler.HandleBySet, "by_set"))

	mux.HandleFunc("POST /api/v1/import/csv", MetricsMiddleware(s.importHandler.HandleUpload, "import_csv"))
	mux.HandleFunc("GET /api/v1/import/jobs/{id}", MetricsMiddleware(s.importHandler.HandleGetJob, "import_job"))

	mux.HandleFunc("GET /api/v1/athlete", MetricsMiddleware(s.athleteHandler.HandleList, "athletes"))
	mux.HandleFunc("POST /api/v1/athlete", MetricsMiddleware(s.athleteHandler.HandleCreate, "athletes"))
	mux.HandleFunc("GET /api/v1/athlete/{id}", MetricsMiddleware(s.athleteHandler.HandleGet, "athlete"))
	mux.HandleFunc("PUT /api/v1/athlete/{id}", MetricsMiddleware(s.athleteHandler.HandleUpdate, "athlete"))
	mux.HandleFunc("DELETE /api/v1/athlete/{id}", MetricsMiddleware(s.athleteHandler.HandleDelete, "athlete"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes v before touching the response so an encoding failure
// still reaches the client as a 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Code: "internal_error", Message: "encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps an upstream error onto a status code and error body.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, ingest.ErrUnsupportedFile),
		errors.Is(err, ingest.ErrMalformedRow),
		errors.Is(err, period.ErrInvalidWindow),
		errors.Is(err, repository.ErrInvalidAthlete):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", err)
	case errors.Is(err, ErrNotFound),
		errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, ErrConflict), errors.Is(err, repository.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, ErrBackpressure), errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, ErrUnavailable), errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
