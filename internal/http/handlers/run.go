package handlers

import (
	"context"
	"errors"
	"net/http"

	"albumpress/internal/runner"
)

type runFailure struct {
	runner.Summary
	Error errorBody `json:"error"`
}

// RunAlbumJob processes at most one pending job. The run is detached from
// the request context so a disconnecting caller does not abort a render
// half way; the job still ends completed or failed.
func (a *App) RunAlbumJob(w http.ResponseWriter, r *http.Request) {
	summary, err := a.Runner.RunOnce(context.WithoutCancel(r.Context()))
	if err == nil {
		a.json(w, http.StatusOK, summary)
		return
	}

	var jobErr *runner.JobError
	if errors.As(err, &jobErr) {
		a.json(w, http.StatusInternalServerError, runFailure{
			Summary: summary,
			Error: errorBody{
				Code:    "job_failed",
				Message: err.Error(),
				JobID:   jobErr.JobID,
				Stage:   jobErr.Stage,
			},
		})
		return
	}

	a.Logger.Error().Err(err).Msg("trigger: claim failed")
	a.json(w, http.StatusServiceUnavailable, runFailure{
		Summary: summary,
		Error:   errorBody{Code: "claim_failed", Message: err.Error()},
	})
}
