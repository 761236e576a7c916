// Package service validates enqueue requests and fronts the job store for
// the HTTP layer.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"albumpress/internal/domain"
)

type AlbumJobService struct {
	store  domain.AlbumJobStore
	logger zerolog.Logger
}

func NewAlbumJobService(store domain.AlbumJobStore, logger zerolog.Logger) *AlbumJobService {
	return &AlbumJobService{store: store, logger: logger.With().Str("component", "album_jobs").Logger()}
}

type enqueueRequest struct {
	SessionID    json.RawMessage `json:"sessionId"`
	UserID       json.RawMessage `json:"userId"`
	AlbumSize    json.RawMessage `json:"albumSize"`
	Pages        json.RawMessage `json:"pages"`
	CustomerName json.RawMessage `json:"customerName"`
	Title        json.RawMessage `json:"title"`
	Subtitle     json.RawMessage `json:"subtitle"`
}

// Enqueue validates raw and stores it untouched as a pending job. Every
// problem is reported in one *domain.ValidationError.
func (s *AlbumJobService) Enqueue(ctx context.Context, raw []byte) (*domain.AlbumJob, error) {
	job, verr := validateEnqueue(raw)
	if !verr.Empty() {
		return nil, verr
	}
	created, err := s.store.Enqueue(ctx, job)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("job_id", created.ID).Str("session_id", created.SessionID).Msg("album job enqueued")
	return created, nil
}

func (s *AlbumJobService) Get(ctx context.Context, id string) (*domain.AlbumJob, error) {
	return s.store.GetByID(ctx, strings.TrimSpace(id))
}

// List returns recent jobs, newest first. An empty status lists every job.
func (s *AlbumJobService) List(ctx context.Context, status string, limit int) ([]domain.AlbumJob, error) {
	st := domain.JobStatus(strings.ToLower(strings.TrimSpace(status)))
	if st != "" && !st.Valid() {
		verr := &domain.ValidationError{}
		verr.Add("status", "must be one of pending, processing, completed, failed")
		return nil, verr
	}
	if limit < 0 {
		verr := &domain.ValidationError{}
		verr.Add("limit", "must not be negative")
		return nil, verr
	}
	return s.store.List(ctx, st, limit)
}

func validateEnqueue(raw []byte) (domain.NewAlbumJob, *domain.ValidationError) {
	verr := &domain.ValidationError{}
	trimmed := bytes.TrimSpace(raw)

	var req enqueueRequest
	if len(trimmed) == 0 || trimmed[0] != '{' || json.Unmarshal(trimmed, &req) != nil {
		verr.Add("body", "must be a JSON object")
		return domain.NewAlbumJob{}, verr
	}

	sessionID := requiredString(verr, "sessionId", req.SessionID)
	userID := requiredString(verr, "userId", req.UserID)
	validateAlbumSize(verr, req.AlbumSize)
	validatePages(verr, req.Pages)
	customer := optionalString(verr, "customerName", req.CustomerName)
	title := optionalString(verr, "title", req.Title)
	subtitle := optionalString(verr, "subtitle", req.Subtitle)

	return domain.NewAlbumJob{
		UserID:        userID,
		SessionID:     sessionID,
		CustomerName:  customer,
		AlbumTitle:    title,
		AlbumSubtitle: subtitle,
		Payload:       append(json.RawMessage(nil), trimmed...),
	}, verr
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func requiredString(verr *domain.ValidationError, field string, raw json.RawMessage) string {
	if isAbsent(raw) {
		verr.Add(field, "is required")
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		verr.Add(field, "must be a string")
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		verr.Add(field, "must not be empty")
	}
	return s
}

func optionalString(verr *domain.ValidationError, field string, raw json.RawMessage) string {
	if isAbsent(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		verr.Add(field, "must be a string")
		return ""
	}
	return strings.TrimSpace(s)
}

func validateAlbumSize(verr *domain.ValidationError, raw json.RawMessage) {
	if isAbsent(raw) {
		verr.Add("albumSize", "is required")
		return
	}
	var size map[string]json.RawMessage
	if err := json.Unmarshal(raw, &size); err != nil {
		verr.Add("albumSize", "must be an object with width and height")
		return
	}
	for _, dim := range []string{"width", "height"} {
		field := "albumSize." + dim
		v, ok := size[dim]
		if !ok || isAbsent(v) {
			verr.Add(field, "is required")
			continue
		}
		var n float64
		if err := json.Unmarshal(v, &n); err != nil {
			verr.Add(field, "must be a number")
			continue
		}
		if n <= 0 {
			verr.Add(field, "must be greater than zero")
		}
	}
}

func validatePages(verr *domain.ValidationError, raw json.RawMessage) {
	if isAbsent(raw) {
		verr.Add("pages", "is required")
		return
	}
	var pages []json.RawMessage
	if err := json.Unmarshal(raw, &pages); err != nil {
		verr.Add("pages", "must be an array")
		return
	}
	if len(pages) == 0 {
		verr.Add("pages", "must not be empty")
	}
}
