package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"albumpress/internal/domain"
	"albumpress/internal/infra"
	"albumpress/internal/sqlinline"
)

// AlbumJobRepositoryPG implements domain.AlbumJobStore on Postgres.
type AlbumJobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewAlbumJobRepository creates a job repository over the given executor.
func NewAlbumJobRepository(sql infra.SQLExecutor) *AlbumJobRepositoryPG {
	return &AlbumJobRepositoryPG{sql: sql}
}

// Enqueue inserts a pending job with its raw payload.
func (r *AlbumJobRepositoryPG) Enqueue(ctx context.Context, job domain.NewAlbumJob) (*domain.AlbumJob, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertAlbumJob,
		uuid.NewString(),
		job.UserID,
		job.SessionID,
		job.CustomerName,
		job.AlbumTitle,
		job.AlbumSubtitle,
		job.Payload,
	)
	created, err := scanAlbumJob(row)
	if err != nil {
		return nil, fmt.Errorf("insert album job: %w", err)
	}
	return created, nil
}

// ClaimNext claims the oldest pending job. The statement runs as a single
// implicit transaction, so a failure before commit leaves the row pending.
func (r *AlbumJobRepositoryPG) ClaimNext(ctx context.Context) (*domain.AlbumJob, error) {
	job, err := scanAlbumJob(r.sql.QueryRow(ctx, sqlinline.QClaimNextAlbumJob))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNoPendingJob
		}
		return nil, fmt.Errorf("claim album job: %w", err)
	}
	return job, nil
}

// MarkCompleted records the output key of a processing job.
func (r *AlbumJobRepositoryPG) MarkCompleted(ctx context.Context, jobID, outputKey string) error {
	if strings.TrimSpace(outputKey) == "" {
		return fmt.Errorf("mark completed: output key is required")
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QMarkAlbumJobCompleted, jobID, outputKey)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.transitionError(ctx, jobID, domain.JobStatusCompleted)
	}
	return nil
}

// MarkFailed records a bounded error message on a processing job.
func (r *AlbumJobRepositoryPG) MarkFailed(ctx context.Context, jobID, errorMessage string) error {
	msg := domain.TruncateError(errorMessage, domain.MaxErrorMessageLen)
	if strings.TrimSpace(msg) == "" {
		msg = "unknown error"
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QMarkAlbumJobFailed, jobID, msg)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.transitionError(ctx, jobID, domain.JobStatusFailed)
	}
	return nil
}

// GetByID fetches a job by its identifier.
func (r *AlbumJobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.AlbumJob, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, domain.ErrNotFound
	}
	job, err := scanAlbumJob(r.sql.QueryRow(ctx, sqlinline.QSelectAlbumJob, jobID))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get album job: %w", err)
	}
	return job, nil
}

// List returns the newest jobs, optionally filtered by status.
func (r *AlbumJobRepositoryPG) List(ctx context.Context, status domain.JobStatus, limit int) ([]domain.AlbumJob, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListAlbumJobs, string(status), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list album jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]domain.AlbumJob, 0)
	for rows.Next() {
		job, err := scanAlbumJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan album job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate album jobs: %w", err)
	}
	return jobs, nil
}

// transitionError tells a missing row apart from a job in the wrong state.
func (r *AlbumJobRepositoryPG) transitionError(ctx context.Context, jobID string, to domain.JobStatus) error {
	var status string
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectAlbumJobStatus, jobID).Scan(&status); err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("load album job status: %w", err)
	}
	return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, status, to)
}

func scanAlbumJob(row pgx.Row) (*domain.AlbumJob, error) {
	var (
		job     domain.AlbumJob
		status  string
		payload []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.SessionID,
		&job.CustomerName,
		&job.AlbumTitle,
		&job.AlbumSubtitle,
		&payload,
		&status,
		&job.OutputKey,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	// Payload bytes may be reused by the driver.
	job.Payload = append(json.RawMessage(nil), payload...)
	return &job, nil
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

var _ domain.AlbumJobStore = (*AlbumJobRepositoryPG)(nil)
