package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"reelgen/internal/domain"
	"reelgen/internal/infra"
	"reelgen/internal/providers/video"
)

// CreateRequest carries the caller-supplied parameters of a new job. A nil
// Seed lets the config pick one.
type CreateRequest struct {
	Prompt     string
	Duration   int
	FPS        int
	Resolution string
	Seed       *int
}

// Controller drives jobs through their lifecycle: submit, poll, locate the
// artifact and persist each transition.
type Controller struct {
	repo   domain.JobRepository
	svc    video.Service
	limits domain.Limits
	logger *infra.Logger
	now    func() time.Time

	locks KeyedMutex

	keysMu   sync.Mutex
	reserved map[string]struct{}
}

func NewController(repo domain.JobRepository, svc video.Service, limits domain.Limits, logger *infra.Logger) *Controller {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Controller{
		repo:     repo,
		svc:      svc,
		limits:   limits,
		logger:   logger,
		now:      time.Now,
		reserved: make(map[string]struct{}),
	}
}

// WithClock replaces the time source. Intended for tests.
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

// Limits exposes the configured parameter bounds to callers building forms.
func (c *Controller) Limits() domain.Limits {
	return c.limits
}

// Create validates the request, submits it and persists the outcome. On a
// submission failure the returned job is Failed and already persisted.
func (c *Controller) Create(ctx context.Context, req CreateRequest) (*domain.Job, error) {
	cfg, err := c.limits.NewJobConfig(req.Duration, req.FPS, req.Resolution, req.Seed)
	if err != nil {
		return nil, &domain.VideoGenerationError{Op: "create", Err: err}
	}
	job, err := domain.NewJob(req.Prompt, cfg, c.now())
	if err != nil {
		return nil, &domain.VideoGenerationError{Op: "create", Err: err}
	}

	release, err := c.reserveKey(ctx, job)
	if err != nil {
		return nil, &domain.VideoGenerationError{Op: "create", Err: err}
	}
	defer release()

	log := c.logger.With().Str("job_key", job.Key()).Logger()

	arn, submitErr := c.svc.Submit(ctx, job)
	if submitErr != nil {
		if err := job.MarkFailed(submitErr.Error()); err != nil {
			return nil, &domain.VideoGenerationError{Op: "create", Key: job.Key(), Err: err}
		}
		if err := c.repo.Persist(ctx, job); err != nil {
			log.Error().Err(err).Msg("jobs: persist failed job")
		}
		log.Warn().Err(submitErr).Msg("jobs: submission failed")
		return job, &domain.VideoGenerationError{Op: "create", Key: job.Key(), Err: submitErr}
	}

	if err := job.MarkSubmitted(arn); err != nil {
		return nil, &domain.VideoGenerationError{Op: "create", Key: job.Key(), Err: err}
	}
	if err := c.repo.Persist(ctx, job); err != nil {
		return job, &domain.VideoGenerationError{Op: "create", Key: job.Key(), Err: err}
	}
	log.Info().Str("invocation_arn", arn).Msg("jobs: submitted")
	return job, nil
}

// reserveKey moves job.CreatedAt forward by whole seconds until its key is
// neither persisted nor reserved by a concurrent Create. The store lock on
// the chosen key is held until the returned release runs, so a Create in
// another process sharing the store cannot pick the same key.
func (c *Controller) reserveKey(ctx context.Context, job *domain.Job) (func(), error) {
	for {
		key := job.Key()
		c.keysMu.Lock()
		_, taken := c.reserved[key]
		if !taken {
			c.reserved[key] = struct{}{}
		}
		c.keysMu.Unlock()
		if taken {
			job.CreatedAt = job.CreatedAt.Truncate(time.Second).Add(time.Second)
			continue
		}

		unreserve := func() {
			c.keysMu.Lock()
			delete(c.reserved, key)
			c.keysMu.Unlock()
		}
		unlock, err := c.repo.Lock(ctx, key)
		if err != nil {
			unreserve()
			return nil, err
		}
		_, err = c.repo.Load(ctx, key)
		if errors.Is(err, domain.ErrNotFound) {
			return func() {
				unlock()
				unreserve()
			}, nil
		}
		unlock()
		unreserve()
		if err != nil && !errors.Is(err, domain.ErrMalformedRecord) {
			return nil, err
		}
		job.CreatedAt = job.CreatedAt.Truncate(time.Second).Add(time.Second)
	}
}

// Refresh reconciles job with the generation service and returns its status.
// Terminal jobs are returned as-is without contacting the service. job is
// updated in place with the persisted state. A failed status check leaves the
// job untouched. Reload, poll, artifact download and persist run under the
// store lock for the key, so concurrent refreshes in any process sharing the
// store poll at most once per transition.
func (c *Controller) Refresh(ctx context.Context, job *domain.Job) (domain.Status, error) {
	if job == nil {
		return "", &domain.VideoGenerationError{Op: "refresh", Err: fmt.Errorf("%w: nil job", domain.ErrNotFound)}
	}
	if job.Status.Terminal() {
		return job.Status, nil
	}

	key := job.Key()
	release, err := c.locks.Acquire(ctx, key)
	if err != nil {
		return job.Status, &domain.VideoGenerationError{Op: "refresh", Key: key, Err: err}
	}
	defer release()

	unlock, err := c.repo.Lock(ctx, key)
	if err != nil {
		return job.Status, &domain.VideoGenerationError{Op: "refresh", Key: key, Err: err}
	}
	defer unlock()

	current, err := c.repo.Load(ctx, key)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		current = job.Clone()
	case err != nil:
		return job.Status, &domain.VideoGenerationError{Op: "refresh", Key: key, Err: err}
	}
	if current.Status.Terminal() {
		*job = *current
		return job.Status, nil
	}
	if current.InvocationARN == "" {
		return current.Status, &domain.VideoGenerationError{
			Op:  "refresh",
			Key: key,
			Err: fmt.Errorf("%w: job has no invocation arn", domain.ErrStatusCheck),
		}
	}

	log := c.logger.With().Str("job_key", key).Str("invocation_arn", current.InvocationARN).Logger()

	report, err := c.svc.PollStatus(ctx, current.InvocationARN)
	if err != nil {
		log.Warn().Err(err).Msg("jobs: status check failed")
		return current.Status, &domain.VideoGenerationError{Op: "refresh", Key: key, Err: err}
	}
	if report.Status == current.Status {
		*job = *current
		return job.Status, nil
	}

	switch report.Status {
	case domain.StatusCompleted:
		err = current.MarkCompleted(c.resolveOutput(ctx, current, report), c.now())
	case domain.StatusFailed:
		err = current.MarkFailed(report.FailureReason)
	case domain.StatusInProgress:
		err = current.MarkSubmitted(current.InvocationARN)
	default:
		err = fmt.Errorf("%w: service reported %q", domain.ErrInvalidTransition, report.Status)
	}
	if err != nil {
		return current.Status, &domain.VideoGenerationError{Op: "refresh", Key: key, Err: err}
	}

	if err := c.repo.Persist(ctx, current); err != nil {
		return current.Status, &domain.VideoGenerationError{Op: "refresh", Key: key, Err: err}
	}
	*job = *current
	log.Info().Str("status", string(job.Status)).Msg("jobs: status changed")
	return job.Status, nil
}

// resolveOutput prefers the downloaded artifact and otherwise keeps the
// service's remote descriptor, so a Completed job always has an output.
func (c *Controller) resolveOutput(ctx context.Context, job *domain.Job, report video.StatusReport) string {
	path, err := c.svc.LocateArtifact(ctx, job.InvocationARN)
	if err != nil {
		c.logger.Warn().Err(err).Str("job_key", job.Key()).Msg("jobs: artifact download failed")
	}
	if path != "" {
		return path
	}
	if report.Output != "" {
		return report.Output
	}
	return job.InvocationARN
}

// Get returns the persisted job for key.
func (c *Controller) Get(ctx context.Context, key string) (*domain.Job, error) {
	job, err := c.repo.Load(ctx, key)
	if err != nil {
		return nil, &domain.VideoGenerationError{Op: "get", Key: key, Err: err}
	}
	return job, nil
}

// List returns every persisted job, newest first.
func (c *Controller) List(ctx context.Context) ([]*domain.Job, error) {
	all, err := c.repo.LoadAll(ctx)
	if err != nil {
		return nil, &domain.VideoGenerationError{Op: "list", Err: err}
	}
	SortNewestFirst(all)
	return all, nil
}

// RefreshPending refreshes every non-terminal job that schedule considers
// due. Individual failures do not stop the sweep; they are returned joined.
// A nil schedule refreshes everything.
func (c *Controller) RefreshPending(ctx context.Context, schedule *RefreshSchedule) (int, error) {
	all, err := c.List(ctx)
	if err != nil {
		return 0, err
	}

	var (
		refreshed int
		errs      []error
	)
	for _, job := range all {
		if job.Status.Terminal() {
			if schedule != nil {
				schedule.Forget(job.Key())
			}
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		now := c.now()
		if schedule != nil {
			if !schedule.Due(job.Key(), now) {
				continue
			}
			schedule.Mark(job.Key(), now)
		}
		refreshed++
		if _, err := c.Refresh(ctx, job); err != nil {
			errs = append(errs, err)
		}
	}
	return refreshed, errors.Join(errs...)
}

// SortNewestFirst orders jobs by creation time descending, breaking ties by
// key.
func SortNewestFirst(all []*domain.Job) {
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].Key() > all[j].Key()
	})
}

// SplitRecent splits a newest-first list into the n most recent jobs and the
// archive of older ones.
func SplitRecent(all []*domain.Job, n int) (recent, archive []*domain.Job) {
	if n < 0 {
		n = 0
	}
	if n >= len(all) {
		return all, nil
	}
	return all[:n], all[n:]
}
