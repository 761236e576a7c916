package repo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"albumpress/internal/domain"
)

// AlbumJobRepositoryMemory keeps jobs in memory for local runs and tests.
// One mutex guards the whole table, which gives ClaimNext the same
// at-most-one guarantee as the skip-locked claim in Postgres.
type AlbumJobRepositoryMemory struct {
	mu   sync.Mutex
	seq  int64
	jobs map[string]*memoryJob
	now  func() time.Time
}

type memoryJob struct {
	job domain.AlbumJob
	seq int64
}

func NewAlbumJobRepositoryMemory() *AlbumJobRepositoryMemory {
	return &AlbumJobRepositoryMemory{
		jobs: make(map[string]*memoryJob),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (r *AlbumJobRepositoryMemory) Enqueue(_ context.Context, job domain.NewAlbumJob) (*domain.AlbumJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.seq++
	stored := &memoryJob{
		seq: r.seq,
		job: domain.AlbumJob{
			ID:            uuid.NewString(),
			UserID:        job.UserID,
			SessionID:     job.SessionID,
			CustomerName:  job.CustomerName,
			AlbumTitle:    job.AlbumTitle,
			AlbumSubtitle: job.AlbumSubtitle,
			Payload:       append([]byte(nil), job.Payload...),
			Status:        domain.JobStatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
	}
	r.jobs[stored.job.ID] = stored
	return cloneAlbumJob(&stored.job), nil
}

func (r *AlbumJobRepositoryMemory) ClaimNext(ctx context.Context) (*domain.AlbumJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("claim album job: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var next *memoryJob
	for _, candidate := range r.jobs {
		if candidate.job.Status != domain.JobStatusPending {
			continue
		}
		if next == nil || olderThan(candidate, next) {
			next = candidate
		}
	}
	if next == nil {
		return nil, domain.ErrNoPendingJob
	}

	now := r.now()
	next.job.Status = domain.JobStatusProcessing
	next.job.StartedAt = &now
	next.job.UpdatedAt = now
	return cloneAlbumJob(&next.job), nil
}

func (r *AlbumJobRepositoryMemory) MarkCompleted(_ context.Context, jobID, outputKey string) error {
	if strings.TrimSpace(outputKey) == "" {
		return fmt.Errorf("mark completed: output key is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.transition(jobID, domain.JobStatusCompleted)
	if err != nil {
		return err
	}
	now := r.now()
	key := outputKey
	stored.job.OutputKey = &key
	stored.job.ErrorMessage = nil
	stored.job.CompletedAt = &now
	stored.job.UpdatedAt = now
	return nil
}

func (r *AlbumJobRepositoryMemory) MarkFailed(_ context.Context, jobID, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.transition(jobID, domain.JobStatusFailed)
	if err != nil {
		return err
	}
	msg := domain.TruncateError(errorMessage, domain.MaxErrorMessageLen)
	if strings.TrimSpace(msg) == "" {
		msg = "unknown error"
	}
	stored.job.ErrorMessage = &msg
	stored.job.OutputKey = nil
	stored.job.UpdatedAt = r.now()
	return nil
}

func (r *AlbumJobRepositoryMemory) GetByID(_ context.Context, jobID string) (*domain.AlbumJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneAlbumJob(&stored.job), nil
}

func (r *AlbumJobRepositoryMemory) List(_ context.Context, status domain.JobStatus, limit int) ([]domain.AlbumJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]*memoryJob, 0, len(r.jobs))
	for _, stored := range r.jobs {
		if status != "" && stored.job.Status != status {
			continue
		}
		matched = append(matched, stored)
	}
	sort.Slice(matched, func(i, j int) bool { return olderThan(matched[j], matched[i]) })

	limit = clampLimit(limit)
	if len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]domain.AlbumJob, 0, len(matched))
	for _, stored := range matched {
		out = append(out, *cloneAlbumJob(&stored.job))
	}
	return out, nil
}

// transition must be called with r.mu held.
func (r *AlbumJobRepositoryMemory) transition(jobID string, to domain.JobStatus) (*memoryJob, error) {
	stored, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !domain.CanTransition(stored.job.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, stored.job.Status, to)
	}
	stored.job.Status = to
	return stored, nil
}

func olderThan(a, b *memoryJob) bool {
	if !a.job.CreatedAt.Equal(b.job.CreatedAt) {
		return a.job.CreatedAt.Before(b.job.CreatedAt)
	}
	return a.seq < b.seq
}

func cloneAlbumJob(job *domain.AlbumJob) *domain.AlbumJob {
	clone := *job
	clone.Payload = append([]byte(nil), job.Payload...)
	if job.OutputKey != nil {
		v := *job.OutputKey
		clone.OutputKey = &v
	}
	if job.ErrorMessage != nil {
		v := *job.ErrorMessage
		clone.ErrorMessage = &v
	}
	if job.StartedAt != nil {
		v := *job.StartedAt
		clone.StartedAt = &v
	}
	if job.CompletedAt != nil {
		v := *job.CompletedAt
		clone.CompletedAt = &v
	}
	return &clone
}

var _ domain.AlbumJobStore = (*AlbumJobRepositoryMemory)(nil)
