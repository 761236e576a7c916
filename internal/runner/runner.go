// Package runner drives one album job from claim to a terminal status.
//
// Each RunOnce call handles at most one job and owns it exclusively from
// the claim onwards. A claimed job always ends completed or failed: any
// error after the claim is recorded with MarkFailed on a context that
// survives cancellation of the caller.
package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"albumpress/internal/domain"
	"albumpress/internal/domain/jsoncfg"
	"albumpress/internal/layout"
	"albumpress/internal/publish"
	"albumpress/internal/render"
)

// Stages reported in JobError and logs.
const (
	StageDecode   = "decode"
	StageRender   = "render"
	StagePublish  = "publish"
	StageComplete = "complete"
)

const (
	defaultFailureTimeout = 10 * time.Second
	markFailedAttempts    = 2
)

// ArtifactPublisher stores a rendered album and returns its key.
type ArtifactPublisher interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
}

// Summary is what a trigger reports back to its caller.
type Summary struct {
	Processed int    `json:"processed"`
	JobID     string `json:"jobId,omitempty"`
	OutputKey string `json:"outputKey,omitempty"`
	Failed    bool   `json:"failed,omitempty"`
}

// JobError reports a claimed job that ended failed. MarkErr is set when the
// failure could not be recorded either.
type JobError struct {
	JobID   string
	Stage   string
	Err     error
	MarkErr error
}

func (e *JobError) Error() string {
	msg := fmt.Sprintf("job %s failed at %s: %v", e.JobID, e.Stage, e.Err)
	if e.MarkErr != nil {
		msg += fmt.Sprintf(" (mark failed: %v)", e.MarkErr)
	}
	return msg
}

func (e *JobError) Unwrap() error { return e.Err }

type Options struct {
	// FailureTimeout bounds each MarkFailed attempt.
	FailureTimeout time.Duration
	Now            func() time.Time
}

type Runner struct {
	store          domain.AlbumJobStore
	renderer       render.Renderer
	publisher      ArtifactPublisher
	logger         zerolog.Logger
	failureTimeout time.Duration
	now            func() time.Time
}

func New(store domain.AlbumJobStore, renderer render.Renderer, publisher ArtifactPublisher, logger zerolog.Logger, opts Options) *Runner {
	if opts.FailureTimeout <= 0 {
		opts.FailureTimeout = defaultFailureTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{
		store:          store,
		renderer:       renderer,
		publisher:      publisher,
		logger:         logger.With().Str("component", "runner").Logger(),
		failureTimeout: opts.FailureTimeout,
		now:            opts.Now,
	}
}

// RunOnce claims the oldest pending job and processes it. An empty queue
// yields a zero Summary and no error. Claim errors are returned as-is and
// leave the queue untouched; errors after the claim come back as *JobError
// together with a Summary marked Failed.
func (r *Runner) RunOnce(ctx context.Context) (Summary, error) {
	job, err := r.store.ClaimNext(ctx)
	if errors.Is(err, domain.ErrNoPendingJob) {
		r.logger.Debug().Msg("no pending album job")
		return Summary{}, nil
	}
	if err != nil {
		return Summary{}, fmt.Errorf("runner: claim: %w", err)
	}

	log := r.logger.With().Str("job_id", job.ID).Logger()
	log.Info().Str("session_id", job.SessionID).Msg("album job claimed")
	started := time.Now()

	key, stage, err := r.process(ctx, job)
	if err != nil {
		markErr := r.markFailed(ctx, job.ID, err)
		ev := log.Error().Err(err).Str("stage", stage)
		if markErr != nil {
			ev = ev.AnErr("mark_error", markErr)
		}
		ev.Dur("took", time.Since(started)).Msg("album job failed")
		return Summary{Processed: 1, JobID: job.ID, Failed: true},
			&JobError{JobID: job.ID, Stage: stage, Err: err, MarkErr: markErr}
	}

	log.Info().Str("output_key", key).Dur("took", time.Since(started)).Msg("album job completed")
	return Summary{Processed: 1, JobID: job.ID, OutputKey: key}, nil
}

// process runs the pipeline for a claimed job. A panic anywhere below is
// turned into an error so the job still reaches MarkFailed.
func (r *Runner) process(ctx context.Context, job *domain.AlbumJob) (key, stage string, err error) {
	stage = StageDecode
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().Str("job_id", job.ID).Str("stage", stage).
				Interface("panic", p).Bytes("stack", debug.Stack()).Msg("album job panicked")
			key, err = "", fmt.Errorf("panic: %v", p)
		}
	}()

	payload, err := jsoncfg.ParseAlbumPayload(job.Payload)
	if err != nil {
		return "", StageDecode, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	stage = StageRender
	doc := layout.Compile(payload)
	if doc.PageCount == 0 {
		return "", StageRender, render.ErrEmptyDocument
	}
	pdf, err := r.renderer.Render(ctx, render.Request{
		Markup:    doc.Markup,
		WidthCm:   doc.WidthCm,
		HeightCm:  doc.HeightCm,
		PageCount: doc.PageCount,
	})
	if err != nil {
		return "", StageRender, err
	}

	stage = StagePublish
	key = publish.BuildOutputKey(
		firstNonEmpty(job.SessionID, payload.SessionID.Trimmed()),
		firstNonEmpty(job.CustomerName, payload.CustomerName.Trimmed()),
		firstNonEmpty(job.AlbumTitle, payload.Title.Trimmed()),
		r.now(),
	)
	stored, err := r.publisher.Put(ctx, key, pdf)
	if err != nil {
		return "", StagePublish, err
	}

	stage = StageComplete
	if err := r.store.MarkCompleted(ctx, job.ID, stored); err != nil {
		return "", StageComplete, err
	}
	return stored, StageComplete, nil
}

// markFailed records cause on a context detached from ctx so a cancelled or
// timed-out invocation still leaves the job failed. It tries twice; the
// store hands out a fresh pooled connection per attempt.
func (r *Runner) markFailed(ctx context.Context, jobID string, cause error) error {
	msg := domain.TruncateError(cause.Error(), domain.MaxErrorMessageLen)
	base := context.WithoutCancel(ctx)

	var err error
	for attempt := 1; attempt <= markFailedAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(base, r.failureTimeout)
		err = r.store.MarkFailed(attemptCtx, jobID, msg)
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrNotFound) {
			return err
		}
		r.logger.Warn().Err(err).Str("job_id", jobID).Int("attempt", attempt).Msg("mark failed did not stick")
	}
	return err
}

// Poll calls RunOnce until ctx is done. It drains the queue back to back and
// sleeps for interval once the queue is empty or a claim fails.
func (r *Runner) Poll(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	r.logger.Info().Dur("interval", interval).Msg("worker polling")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		summary, err := r.RunOnce(ctx)
		var jobErr *JobError
		switch {
		case errors.As(err, &jobErr):
			continue
		case err != nil:
			r.logger.Error().Err(err).Msg("claim failed")
		case summary.Processed > 0:
			continue
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
