package domain

import "context"

// AlbumJobStore is the persistence contract of the album queue.
type AlbumJobStore interface {
	Enqueue(ctx context.Context, job NewAlbumJob) (*AlbumJob, error)
	// ClaimNext moves the oldest pending job to processing and returns it.
	// It returns ErrNoPendingJob when the queue is empty.
	ClaimNext(ctx context.Context) (*AlbumJob, error)
	MarkCompleted(ctx context.Context, jobID, outputKey string) error
	MarkFailed(ctx context.Context, jobID, errorMessage string) error
	GetByID(ctx context.Context, jobID string) (*AlbumJob, error)
	List(ctx context.Context, status JobStatus, limit int) ([]AlbumJob, error)
}
