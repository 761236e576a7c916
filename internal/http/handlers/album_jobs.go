package handlers

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"albumpress/internal/domain"
)

const maxEnqueueBody = 8 << 20

type albumJobView struct {
	ID            string           `json:"id"`
	UserID        string           `json:"userId"`
	SessionID     string           `json:"sessionId"`
	CustomerName  string           `json:"customerName"`
	AlbumTitle    string           `json:"albumTitle"`
	AlbumSubtitle string           `json:"albumSubtitle"`
	Status        domain.JobStatus `json:"status"`
	OutputKey     *string          `json:"outputKey"`
	ErrorMessage  *string          `json:"errorMessage"`
	CreatedAt     time.Time        `json:"createdAt"`
	StartedAt     *time.Time       `json:"startedAt"`
	CompletedAt   *time.Time       `json:"completedAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

func newAlbumJobView(j *domain.AlbumJob) albumJobView {
	return albumJobView{
		ID:            j.ID,
		UserID:        j.UserID,
		SessionID:     j.SessionID,
		CustomerName:  j.CustomerName,
		AlbumTitle:    j.AlbumTitle,
		AlbumSubtitle: j.AlbumSubtitle,
		Status:        j.Status,
		OutputKey:     j.OutputKey,
		ErrorMessage:  j.ErrorMessage,
		CreatedAt:     j.CreatedAt,
		StartedAt:     j.StartedAt,
		CompletedAt:   j.CompletedAt,
		UpdatedAt:     j.UpdatedAt,
	}
}

// EnqueueAlbumJob accepts an album payload and queues it for rendering.
func (a *App) EnqueueAlbumJob(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEnqueueBody))
	if err != nil {
		a.error(w, http.StatusRequestEntityTooLarge, "payload_too_large", "album payload is too large")
		return
	}
	job, err := a.Jobs.Enqueue(r.Context(), body)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]any{"id": job.ID, "status": job.Status})
}

func (a *App) GetAlbumJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newAlbumJobView(job))
}

func (a *App) ListAlbumJobs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			verr := &domain.ValidationError{}
			verr.Add("limit", "must be an integer")
			a.fail(w, r, verr)
			return
		}
		limit = n
	}
	jobs, err := a.Jobs.List(r.Context(), r.URL.Query().Get("status"), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]albumJobView, 0, len(jobs))
	for i := range jobs {
		items = append(items, newAlbumJobView(&jobs[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
