package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"albumpress/internal/domain"
	"albumpress/internal/runner"
)

// AlbumJobs is the enqueue/query surface the handlers need.
type AlbumJobs interface {
	Enqueue(ctx context.Context, raw []byte) (*domain.AlbumJob, error)
	Get(ctx context.Context, id string) (*domain.AlbumJob, error)
	List(ctx context.Context, status string, limit int) ([]domain.AlbumJob, error)
}

// Trigger processes at most one pending job per call.
type Trigger interface {
	RunOnce(ctx context.Context) (runner.Summary, error)
}

type App struct {
	Jobs   AlbumJobs
	Runner Trigger
	Logger zerolog.Logger
	// Ping checks the job store; nil skips the check.
	Ping func(ctx context.Context) error
}

func NewApp(jobs AlbumJobs, trigger Trigger, logger zerolog.Logger) *App {
	return &App{Jobs: jobs, Runner: trigger, Logger: logger}
}

type errorBody struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
	JobID   string              `json:"jobId,omitempty"`
	Stage   string              `json:"stage,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{"error": errorBody{Code: errCode, Message: message}})
}

// fail maps store and validation errors onto HTTP responses.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		a.json(w, http.StatusUnprocessableEntity, map[string]any{"error": errorBody{
			Code:    "validation_failed",
			Message: "request has invalid fields",
			Fields:  verr.Fields,
		}})
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "album job not found")
	default:
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
