package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelgen/internal/domain"
	"reelgen/internal/providers/video"
)

type memRepo struct {
	mu       sync.Mutex
	jobs     map[string]*domain.Job
	persists int
	locks    KeyedMutex
	lockErr  error
}

func newMemRepo() *memRepo {
	return &memRepo{jobs: make(map[string]*domain.Job)}
}

func (r *memRepo) Persist(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persists++
	r.jobs[job.Key()] = job.Clone()
	return nil
}

func (r *memRepo) LoadAll(ctx context.Context) ([]*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.Clone())
	}
	return out, nil
}

func (r *memRepo) Load(ctx context.Context, key string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[key]
	if !ok {
		return nil, fmt.Errorf("job %q: %w", key, domain.ErrNotFound)
	}
	return j.Clone(), nil
}

func (r *memRepo) Lock(ctx context.Context, key string) (func(), error) {
	if r.lockErr != nil {
		return nil, r.lockErr
	}
	return r.locks.Acquire(ctx, key)
}

type stubService struct {
	mu          sync.Mutex
	submitARN   string
	submitErr   error
	submitDelay time.Duration
	report      video.StatusReport
	pollErr     error
	artifact    string
	locateErr   error
	pollDelay   time.Duration

	submits, polls, locates int
	inFlight, maxInFlight   int32
}

func (s *stubService) Submit(ctx context.Context, job *domain.Job) (string, error) {
	if s.submitDelay > 0 {
		time.Sleep(s.submitDelay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submits++
	return s.submitARN, s.submitErr
}

func (s *stubService) PollStatus(ctx context.Context, arn string) (video.StatusReport, error) {
	n := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&s.maxInFlight)
		if n <= peak || atomic.CompareAndSwapInt32(&s.maxInFlight, peak, n) {
			break
		}
	}
	if s.pollDelay > 0 {
		time.Sleep(s.pollDelay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	return s.report, s.pollErr
}

func (s *stubService) LocateArtifact(ctx context.Context, arn string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locates++
	return s.artifact, s.locateErr
}

var testNow = time.Date(2024, 5, 1, 10, 30, 15, 0, time.Local)

func newTestController(repo *memRepo, svc *stubService) *Controller {
	return NewController(repo, svc, domain.DefaultLimits(), nil).
		WithClock(func() time.Time { return testNow })
}

func sunsetRequest() CreateRequest {
	return CreateRequest{Prompt: "A sunset over mountains", Duration: 6, FPS: 24, Resolution: "1280x720"}
}

func TestCreateSubmitsAndPersists(t *testing.T) {
	repo := newMemRepo()
	svc := &stubService{submitARN: "abc123"}
	c := newTestController(repo, svc)

	job, err := c.Create(context.Background(), sunsetRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, job.Status)
	assert.Equal(t, "abc123", job.InvocationARN)
	assert.Empty(t, job.OutputPath)
	assert.Equal(t, "job_20240501_103015", job.Key())

	stored, err := repo.Load(context.Background(), job.Key())
	require.NoError(t, err)
	assert.Equal(t, job, stored)
}

func TestCreateInvalidConfigSkipsService(t *testing.T) {
	for name, req := range map[string]CreateRequest{
		"duration zero": {Prompt: "x", Duration: 0, FPS: 24, Resolution: "1280x720"},
		"duration 31":   {Prompt: "x", Duration: 31, FPS: 24, Resolution: "1280x720"},
		"fps 15":        {Prompt: "x", Duration: 6, FPS: 15, Resolution: "1280x720"},
		"640x480":       {Prompt: "x", Duration: 6, FPS: 24, Resolution: "640x480"},
		"empty prompt":  {Prompt: "  ", Duration: 6, FPS: 24, Resolution: "1280x720"},
	} {
		t.Run(name, func(t *testing.T) {
			repo := newMemRepo()
			svc := &stubService{submitARN: "abc123"}
			job, err := newTestController(repo, svc).Create(context.Background(), req)
			require.ErrorIs(t, err, domain.ErrInvalidConfig)
			assert.Nil(t, job)
			assert.Zero(t, svc.submits)
			assert.Zero(t, repo.persists)
		})
	}
}

func TestCreateSubmissionFailurePersistsFailedJob(t *testing.T) {
	repo := newMemRepo()
	svc := &stubService{submitErr: fmt.Errorf("%w: throttled", domain.ErrSubmission)}
	c := newTestController(repo, svc)

	job, err := c.Create(context.Background(), sunsetRequest())
	require.ErrorIs(t, err, domain.ErrSubmission)
	var vge *domain.VideoGenerationError
	require.ErrorAs(t, err, &vge)
	assert.Equal(t, "create", vge.Op)

	require.NotNil(t, job)
	assert.Equal(t, domain.StatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "throttled")
	assert.Empty(t, job.InvocationARN)

	stored, err := repo.Load(context.Background(), job.Key())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)
}

func TestCreateAvoidsKeyCollisions(t *testing.T) {
	repo := newMemRepo()
	c := newTestController(repo, &stubService{submitARN: "abc123"})

	first, err := c.Create(context.Background(), sunsetRequest())
	require.NoError(t, err)
	second, err := c.Create(context.Background(), sunsetRequest())
	require.NoError(t, err)

	assert.Equal(t, "job_20240501_103015", first.Key())
	assert.Equal(t, "job_20240501_103016", second.Key())
	all, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCreateStoreLockFailure(t *testing.T) {
	repo := newMemRepo()
	repo.lockErr = errors.New("lock directory read-only")
	svc := &stubService{submitARN: "abc123"}

	job, err := newTestController(repo, svc).Create(context.Background(), sunsetRequest())
	require.ErrorContains(t, err, "read-only")
	assert.Nil(t, job)
	assert.Zero(t, svc.submits)
}

func createdJob(t *testing.T, repo *memRepo) *domain.Job {
	t.Helper()
	job, err := newTestController(repo, &stubService{submitARN: "abc123"}).Create(context.Background(), sunsetRequest())
	require.NoError(t, err)
	return job
}

func TestRefreshCompleted(t *testing.T) {
	repo := newMemRepo()
	job := createdJob(t, repo)
	svc := &stubService{
		report:   video.StatusReport{Status: domain.StatusCompleted, Output: "s3://bucket/abc123/output.mp4"},
		artifact: "output/abc123/output.mp4",
	}
	completedAt := testNow.Add(5 * time.Minute)
	c := NewController(repo, svc, domain.DefaultLimits(), nil).WithClock(func() time.Time { return completedAt })

	status, err := c.Refresh(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, status)
	assert.Equal(t, domain.StatusCompleted, job.Status)
	assert.Equal(t, "output/abc123/output.mp4", job.OutputPath)
	assert.True(t, job.CompletedAt.Equal(completedAt))
	assert.Equal(t, 1, svc.locates)

	stored, err := repo.Load(context.Background(), job.Key())
	require.NoError(t, err)
	assert.Equal(t, job, stored)
}

func TestRefreshCompletedWithoutArtifactKeepsDescriptor(t *testing.T) {
	repo := newMemRepo()
	job := createdJob(t, repo)
	svc := &stubService{
		report:    video.StatusReport{Status: domain.StatusCompleted, Output: "s3://bucket/abc123/output.mp4"},
		locateErr: errors.New("connection reset"),
	}

	status, err := newTestController(repo, svc).Refresh(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, status)
	assert.Equal(t, "s3://bucket/abc123/output.mp4", job.OutputPath)
	require.NoError(t, job.Validate())
}

func TestRefreshFailed(t *testing.T) {
	repo := newMemRepo()
	job := createdJob(t, repo)
	svc := &stubService{report: video.StatusReport{Status: domain.StatusFailed, FailureReason: "content policy violation"}}

	status, err := newTestController(repo, svc).Refresh(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, status)
	assert.Equal(t, "content policy violation", job.ErrorMessage)
	assert.Empty(t, job.OutputPath)
	assert.Zero(t, svc.locates)
}

func TestRefreshStillInProgressDoesNotPersist(t *testing.T) {
	repo := newMemRepo()
	job := createdJob(t, repo)
	before := repo.persists
	svc := &stubService{report: video.StatusReport{Status: domain.StatusInProgress}}

	status, err := newTestController(repo, svc).Refresh(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, status)
	assert.Equal(t, before, repo.persists)
}

func TestRefreshTerminalIsNoop(t *testing.T) {
	for _, status := range []domain.Status{domain.StatusCompleted, domain.StatusFailed} {
		t.Run(string(status), func(t *testing.T) {
			repo := newMemRepo()
			job := createdJob(t, repo)
			if status == domain.StatusCompleted {
				require.NoError(t, job.MarkCompleted("output/abc123/output.mp4", testNow))
			} else {
				require.NoError(t, job.MarkFailed("boom"))
			}
			before := repo.persists
			svc := &stubService{report: video.StatusReport{Status: domain.StatusInProgress}}

			got, err := newTestController(repo, svc).Refresh(context.Background(), job)
			require.NoError(t, err)
			assert.Equal(t, status, got)
			assert.Zero(t, svc.polls)
			assert.Zero(t, svc.locates)
			assert.Equal(t, before, repo.persists)
		})
	}
}

func TestRefreshStatusCheckErrorDoesNotMutate(t *testing.T) {
	repo := newMemRepo()
	job := createdJob(t, repo)
	snapshot := job.Clone()
	before := repo.persists
	svc := &stubService{pollErr: fmt.Errorf("%w: i/o timeout", domain.ErrStatusCheck)}

	status, err := newTestController(repo, svc).Refresh(context.Background(), job)
	require.ErrorIs(t, err, domain.ErrStatusCheck)
	var vge *domain.VideoGenerationError
	require.ErrorAs(t, err, &vge)
	assert.Equal(t, "refresh", vge.Op)
	assert.Equal(t, job.Key(), vge.Key)

	assert.Equal(t, domain.StatusInProgress, status)
	assert.Equal(t, snapshot, job)
	assert.Equal(t, before, repo.persists)
}

func TestRefreshUsesPersistedState(t *testing.T) {
	repo := newMemRepo()
	job := createdJob(t, repo)
	stale := job.Clone()

	svc := &stubService{report: video.StatusReport{Status: domain.StatusFailed, FailureReason: "timeout"}}
	c := newTestController(repo, svc)
	_, err := c.Refresh(context.Background(), job)
	require.NoError(t, err)

	// A stale in-memory copy picks up the terminal state without polling.
	svc.report = video.StatusReport{Status: domain.StatusCompleted}
	status, err := c.Refresh(context.Background(), stale)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, status)
	assert.Equal(t, "timeout", stale.ErrorMessage)
	assert.Equal(t, 1, svc.polls)
}

func TestRefreshWithoutInvocationARN(t *testing.T) {
	repo := newMemRepo()
	job, err := domain.NewJob("orphan", domain.JobConfig{Duration: 6, FPS: 24, Resolution: "1280x720"}, testNow)
	require.NoError(t, err)
	svc := &stubService{}

	status, err := newTestController(repo, svc).Refresh(context.Background(), job)
	require.ErrorIs(t, err, domain.ErrStatusCheck)
	assert.Equal(t, domain.StatusPending, status)
	assert.Zero(t, svc.polls)
}

func TestConcurrentRefreshesOfOneJobAreSerialized(t *testing.T) {
	repo := newMemRepo()
	job := createdJob(t, repo)
	svc := &stubService{
		report:    video.StatusReport{Status: domain.StatusInProgress},
		pollDelay: 5 * time.Millisecond,
	}
	c := newTestController(repo, svc)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(j *domain.Job) {
			defer wg.Done()
			_, err := c.Refresh(context.Background(), j)
			assert.NoError(t, err)
		}(job.Clone())
	}
	wg.Wait()

	assert.Equal(t, 8, svc.polls)
	assert.EqualValues(t, 1, atomic.LoadInt32(&svc.maxInFlight))
	assert.Zero(t, c.locks.Len())
}

func TestRefreshPendingHonoursSchedule(t *testing.T) {
	repo := newMemRepo()
	now := testNow
	c := NewController(repo, &stubService{submitARN: "abc123"}, domain.DefaultLimits(), nil).
		WithClock(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		_, err := c.Create(context.Background(), sunsetRequest())
		require.NoError(t, err)
	}
	done, err := c.Get(context.Background(), "job_20240501_103015")
	require.NoError(t, err)
	require.NoError(t, done.MarkFailed("boom"))
	require.NoError(t, repo.Persist(context.Background(), done))

	svc := &stubService{report: video.StatusReport{Status: domain.StatusInProgress}}
	c.svc = svc
	schedule := NewRefreshSchedule(10 * time.Second)

	n, err := c.RefreshPending(context.Background(), schedule)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	now = now.Add(5 * time.Second)
	n, err = c.RefreshPending(context.Background(), schedule)
	require.NoError(t, err)
	assert.Zero(t, n)

	now = now.Add(5 * time.Second)
	n, err = c.RefreshPending(context.Background(), schedule)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 4, svc.polls)
}

func TestRefreshPendingCollectsErrors(t *testing.T) {
	repo := newMemRepo()
	c := newTestController(repo, &stubService{submitARN: "abc123"})
	for i := 0; i < 2; i++ {
		_, err := c.Create(context.Background(), sunsetRequest())
		require.NoError(t, err)
	}
	svc := &stubService{pollErr: fmt.Errorf("%w: unreachable", domain.ErrStatusCheck)}
	c.svc = svc

	n, err := c.RefreshPending(context.Background(), nil)
	assert.Equal(t, 2, n)
	require.ErrorIs(t, err, domain.ErrStatusCheck)
	assert.Equal(t, 2, svc.polls)
}

func TestListNewestFirstAndSplit(t *testing.T) {
	repo := newMemRepo()
	base := testNow
	for i := 0; i < 7; i++ {
		job, err := domain.NewJob(fmt.Sprintf("prompt %d", i), domain.JobConfig{Duration: 6, FPS: 24, Resolution: "1280x720"}, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		require.NoError(t, job.MarkSubmitted(fmt.Sprintf("arn/%d", i)))
		require.NoError(t, repo.Persist(context.Background(), job))
	}
	all, err := newTestController(repo, &stubService{}).List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 7)
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i-1].CreatedAt.After(all[i].CreatedAt))
	}

	recent, archive := SplitRecent(all, 5)
	assert.Len(t, recent, 5)
	assert.Len(t, archive, 2)
	assert.Equal(t, "prompt 6", recent[0].Prompt)

	recent, archive = SplitRecent(all[:3], 5)
	assert.Len(t, recent, 3)
	assert.Empty(t, archive)
}

func TestGetMissing(t *testing.T) {
	_, err := newTestController(newMemRepo(), &stubService{}).Get(context.Background(), "job_20000101_000000")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
