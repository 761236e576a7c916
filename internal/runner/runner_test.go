package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"albumpress/internal/adapter/repo"
	"albumpress/internal/domain"
	"albumpress/internal/publish"
	"albumpress/internal/render"
	"albumpress/internal/storage"
)

var fakePDF = []byte("%PDF-1.4\n1 0 obj\n<< >>\nendobj\n%%EOF\n")

const twoPagePayload = `{
	"sessionId": "123",
	"userId": "user-1",
	"customerName": "Jean Örjan!",
	"title": "Déjà Vu",
	"pages": [
		{"layout": {"slots": [{"bounds": {"top": 0, "left": 0, "width": 100, "height": 100}}]}, "assignedImages": ["https://img.example/a.jpg"]},
		{"layout": {"slots": [{"bounds": {"top": 0, "left": 0, "width": 100, "height": 100}}]}, "assignedImages": ["https://img.example/b.jpg"]}
	]
}`

type fakeRenderer struct {
	mu       sync.Mutex
	requests []render.Request
	render   func(ctx context.Context, req render.Request) ([]byte, error)
}

func (f *fakeRenderer) Render(ctx context.Context, req render.Request) ([]byte, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.render != nil {
		return f.render(ctx, req)
	}
	return fakePDF, nil
}

func (f *fakeRenderer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type failingStore struct {
	err error
}

func (s failingStore) Put(context.Context, string, []byte, string) (string, error) {
	return "", s.err
}

// strictStore fails MarkFailed when handed a dead context and can be told to
// drop the first attempts.
type strictStore struct {
	*repo.AlbumJobRepositoryMemory
	mu             sync.Mutex
	dropMarkFailed int
	markAttempts   int
	claimErr       error
}

func (s *strictStore) ClaimNext(ctx context.Context) (*domain.AlbumJob, error) {
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	return s.AlbumJobRepositoryMemory.ClaimNext(ctx)
}

func (s *strictStore) MarkFailed(ctx context.Context, id, msg string) error {
	s.mu.Lock()
	s.markAttempts++
	drop := s.dropMarkFailed > 0
	if drop {
		s.dropMarkFailed--
	}
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if drop {
		return errors.New("connection reset")
	}
	return s.AlbumJobRepositoryMemory.MarkFailed(ctx, id, msg)
}

type fixture struct {
	store    *strictStore
	renderer *fakeRenderer
	dir      string
	runner   *Runner
}

func newFixture(t *testing.T, objects storage.ObjectStore) *fixture {
	t.Helper()
	dir := t.TempDir()
	if objects == nil {
		fs, err := storage.NewFileStore(dir)
		require.NoError(t, err)
		objects = fs
	}
	f := &fixture{
		store:    &strictStore{AlbumJobRepositoryMemory: repo.NewAlbumJobRepositoryMemory()},
		renderer: &fakeRenderer{},
		dir:      dir,
	}
	f.runner = New(f.store, f.renderer, publish.NewPublisher(objects), zerolog.Nop(), Options{
		FailureTimeout: time.Second,
		Now:            func() time.Time { return time.UnixMilli(1767225600000) },
	})
	return f
}

func (f *fixture) enqueue(t *testing.T, payload string) *domain.AlbumJob {
	t.Helper()
	job, err := f.store.Enqueue(context.Background(), domain.NewAlbumJob{
		UserID:       "user-1",
		SessionID:    "123",
		CustomerName: "Jean Örjan!",
		AlbumTitle:   "Déjà Vu",
		Payload:      []byte(payload),
	})
	require.NoError(t, err)
	return job
}

func (f *fixture) job(t *testing.T, id string) *domain.AlbumJob {
	t.Helper()
	job, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return job
}

func TestRunOnceEmptyQueue(t *testing.T) {
	f := newFixture(t, nil)

	summary, err := f.runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{}, summary)
	assert.Zero(t, f.renderer.calls())
}

func TestRunOnceCompletesTwoPageAlbum(t *testing.T) {
	f := newFixture(t, nil)
	queued := f.enqueue(t, twoPagePayload)

	summary, err := f.runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, queued.ID, summary.JobID)
	assert.False(t, summary.Failed)
	assert.Equal(t, "123/jean-orjan-deja-vu-1767225600000.pdf", summary.OutputKey)

	require.Equal(t, 1, f.renderer.calls())
	req := f.renderer.requests[0]
	assert.Equal(t, 2, req.PageCount)
	assert.Equal(t, 20.0, req.WidthCm)
	assert.Equal(t, 20.0, req.HeightCm)
	assert.Equal(t, 2, strings.Count(req.Markup, `<div class="page`))
	assert.Contains(t, req.Markup, `src="https://img.example/a.jpg"`)
	assert.Contains(t, req.Markup, `src="https://img.example/b.jpg"`)

	job := f.job(t, queued.ID)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	require.NotNil(t, job.OutputKey)
	assert.Equal(t, summary.OutputKey, *job.OutputKey)
	assert.Nil(t, job.ErrorMessage)
	assert.NotNil(t, job.CompletedAt)

	data, err := os.ReadFile(filepath.Join(f.dir, filepath.FromSlash(summary.OutputKey)))
	require.NoError(t, err)
	assert.Equal(t, fakePDF, data)

	again, err := f.runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again.Processed, "a job is processed once")
}

func TestRunOnceRenderFailureMarksJobFailed(t *testing.T) {
	f := newFixture(t, nil)
	queued := f.enqueue(t, twoPagePayload)
	boom := errors.New("chrome crashed")
	f.renderer.render = func(context.Context, render.Request) ([]byte, error) { return nil, boom }

	summary, err := f.runner.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var jobErr *JobError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, StageRender, jobErr.Stage)
	assert.NoError(t, jobErr.MarkErr)
	assert.Equal(t, Summary{Processed: 1, JobID: queued.ID, Failed: true}, summary)

	job := f.job(t, queued.ID)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Nil(t, job.OutputKey)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, "chrome crashed", *job.ErrorMessage)
}

func TestRunOnceRendererPanicMarksJobFailed(t *testing.T) {
	f := newFixture(t, nil)
	queued := f.enqueue(t, twoPagePayload)
	f.renderer.render = func(context.Context, render.Request) ([]byte, error) {
		panic("pdf engine blew up")
	}

	var (
		summary Summary
		err     error
	)
	require.NotPanics(t, func() { summary, err = f.runner.RunOnce(context.Background()) })

	var jobErr *JobError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, StageRender, jobErr.Stage)
	assert.NoError(t, jobErr.MarkErr)
	assert.Equal(t, Summary{Processed: 1, JobID: queued.ID, Failed: true}, summary)

	job := f.job(t, queued.ID)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, "panic: pdf engine blew up", *job.ErrorMessage)
}

func TestRunOncePublishFailureMarksJobFailed(t *testing.T) {
	f := newFixture(t, failingStore{err: errors.New("bucket unavailable")})
	queued := f.enqueue(t, twoPagePayload)

	_, err := f.runner.RunOnce(context.Background())
	var jobErr *JobError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, StagePublish, jobErr.Stage)

	job := f.job(t, queued.ID)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "bucket unavailable")
}

func TestRunOnceRejectsNonPDFOutput(t *testing.T) {
	f := newFixture(t, nil)
	queued := f.enqueue(t, twoPagePayload)
	f.renderer.render = func(context.Context, render.Request) ([]byte, error) {
		return []byte("<html>oops</html>"), nil
	}

	_, err := f.runner.RunOnce(context.Background())
	assert.ErrorIs(t, err, publish.ErrNotPDF)
	assert.Equal(t, domain.JobStatusFailed, f.job(t, queued.ID).Status)
}

func TestRunOnceEmptyAlbumFailsWithoutRendering(t *testing.T) {
	f := newFixture(t, nil)
	queued := f.enqueue(t, `{"pages": []}`)

	_, err := f.runner.RunOnce(context.Background())
	assert.ErrorIs(t, err, render.ErrEmptyDocument)
	assert.Zero(t, f.renderer.calls())
	assert.Equal(t, domain.JobStatusFailed, f.job(t, queued.ID).Status)
}

func TestRunOnceMalformedPayloadFails(t *testing.T) {
	f := newFixture(t, nil)
	queued := f.enqueue(t, `{"pages": [`)

	_, err := f.runner.RunOnce(context.Background())
	var jobErr *JobError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, StageDecode, jobErr.Stage)
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	assert.Equal(t, domain.JobStatusFailed, f.job(t, queued.ID).Status)
}

func TestRunOnceTruncatesErrorMessage(t *testing.T) {
	f := newFixture(t, nil)
	queued := f.enqueue(t, twoPagePayload)
	long := strings.Repeat("é", domain.MaxErrorMessageLen+500)
	f.renderer.render = func(context.Context, render.Request) ([]byte, error) { return nil, errors.New(long) }

	_, err := f.runner.RunOnce(context.Background())
	require.Error(t, err)

	job := f.job(t, queued.ID)
	require.NotNil(t, job.ErrorMessage)
	assert.LessOrEqual(t, len([]rune(*job.ErrorMessage)), domain.MaxErrorMessageLen)
}

func TestRunOnceMarksFailedAfterCancellation(t *testing.T) {
	f := newFixture(t, nil)
	queued := f.enqueue(t, twoPagePayload)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.renderer.render = func(ctx context.Context, _ render.Request) ([]byte, error) {
		cancel()
		return nil, ctx.Err()
	}

	_, err := f.runner.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	job := f.job(t, queued.ID)
	assert.Equal(t, domain.JobStatusFailed, job.Status, "cancelled runs never leave jobs processing")
}

func TestRunOnceRetriesMarkFailedOnce(t *testing.T) {
	f := newFixture(t, nil)
	queued := f.enqueue(t, twoPagePayload)
	f.store.dropMarkFailed = 1
	f.renderer.render = func(context.Context, render.Request) ([]byte, error) { return nil, errors.New("boom") }

	_, err := f.runner.RunOnce(context.Background())
	var jobErr *JobError
	require.ErrorAs(t, err, &jobErr)
	assert.NoError(t, jobErr.MarkErr)
	assert.Equal(t, 2, f.store.markAttempts)
	assert.Equal(t, domain.JobStatusFailed, f.job(t, queued.ID).Status)
}

func TestRunOnceReportsUnrecordedFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.enqueue(t, twoPagePayload)
	f.store.dropMarkFailed = 5
	f.renderer.render = func(context.Context, render.Request) ([]byte, error) { return nil, errors.New("boom") }

	_, err := f.runner.RunOnce(context.Background())
	var jobErr *JobError
	require.ErrorAs(t, err, &jobErr)
	assert.Error(t, jobErr.MarkErr)
	assert.Equal(t, markFailedAttempts, f.store.markAttempts)
	assert.Contains(t, err.Error(), "mark failed")
}

func TestRunOnceClaimErrorLeavesQueueUntouched(t *testing.T) {
	f := newFixture(t, nil)
	queued := f.enqueue(t, twoPagePayload)
	f.store.claimErr = errors.New("could not serialize access")

	summary, err := f.runner.RunOnce(context.Background())
	require.Error(t, err)
	var jobErr *JobError
	assert.False(t, errors.As(err, &jobErr))
	assert.Equal(t, Summary{}, summary)
	assert.Equal(t, domain.JobStatusPending, f.job(t, queued.ID).Status)
}

func TestConcurrentRunsProcessDisjointJobs(t *testing.T) {
	f := newFixture(t, nil)
	for i := 0; i < 6; i++ {
		f.enqueue(t, twoPagePayload)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]int{}
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			summary, err := f.runner.RunOnce(context.Background())
			if err != nil || summary.Processed == 0 {
				return
			}
			mu.Lock()
			seen[summary.JobID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 6)
	for id, n := range seen {
		assert.Equalf(t, 1, n, "job %s processed %d times", id, n)
	}
}

func TestPollDrainsQueueUntilCancelled(t *testing.T) {
	f := newFixture(t, nil)
	for i := 0; i < 3; i++ {
		f.enqueue(t, twoPagePayload)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.runner.Poll(ctx, 10*time.Millisecond) }()

	require.Eventually(t, func() bool {
		jobs, err := f.store.List(context.Background(), domain.JobStatusCompleted, 0)
		return err == nil && len(jobs) == 3
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not stop after cancellation")
	}
}
