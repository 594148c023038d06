package repo

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"reelgen/internal/domain"
	"reelgen/internal/domain/jsoncfg"
	"reelgen/internal/infra"
	"reelgen/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository on a video_jobs table. The
// job document is stored in the same JSON shape as the job files so both
// stores share one codec.
type JobRepositoryPG struct {
	sql    infra.SQLExecutor
	logger *infra.Logger

	lockTTL   time.Duration
	lockRetry time.Duration
}

const (
	defaultLockTTL   = 10 * time.Minute
	defaultLockRetry = 50 * time.Millisecond
)

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor, logger *infra.Logger) *JobRepositoryPG {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &JobRepositoryPG{sql: sql, logger: logger, lockTTL: defaultLockTTL, lockRetry: defaultLockRetry}
}

// EnsureSchema creates the video_jobs and video_job_locks tables if needed.
func (r *JobRepositoryPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QCreateVideoJobsTable); err != nil {
		return fmt.Errorf("create video_jobs: %w", err)
	}
	if _, err := r.sql.Exec(ctx, sqlinline.QCreateVideoJobLocksTable); err != nil {
		return fmt.Errorf("create video_job_locks: %w", err)
	}
	return nil
}

// Persist upserts the job row keyed by job.Key().
func (r *JobRepositoryPG) Persist(ctx context.Context, job *domain.Job) error {
	data, err := jsoncfg.EncodeJob(job)
	if err != nil {
		return err
	}
	if _, err := r.sql.Exec(ctx, sqlinline.QUpsertVideoJob,
		job.Key(),
		job.CreatedAt,
		string(job.Status),
		job.InvocationARN,
		string(data),
	); err != nil {
		return fmt.Errorf("persist job %s: %w", job.Key(), err)
	}
	return nil
}

// LoadAll returns every decodable row. A failing query is treated like an
// unreadable job directory: logged, and no jobs are returned.
func (r *JobRepositoryPG) LoadAll(ctx context.Context) ([]*domain.Job, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListVideoJobs)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.logger.Warn().Err(err).Msg("repo: video_jobs unreadable, assuming no jobs")
		return nil, nil
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		var (
			key       string
			createdAt time.Time
			document  []byte
		)
		if err := rows.Scan(&key, &createdAt, &document); err != nil {
			r.logger.Warn().Err(err).Msg("repo: skipping unscannable job row")
			continue
		}
		job, err := jsoncfg.DecodeJob(document, createdAt)
		if err != nil {
			r.logger.Warn().Err(err).Str("job_key", key).Msg("repo: skipping malformed job row")
			continue
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		r.logger.Warn().Err(err).Int("loaded", len(jobs)).Msg("repo: job listing interrupted")
	}
	return jobs, nil
}

// Load returns domain.ErrNotFound when no row exists for key.
func (r *JobRepositoryPG) Load(ctx context.Context, key string) (*domain.Job, error) {
	var (
		gotKey    string
		createdAt time.Time
		document  []byte
	)
	row := r.sql.QueryRow(ctx, sqlinline.QSelectVideoJob, strings.TrimSpace(key))
	if err := row.Scan(&gotKey, &createdAt, &document); err != nil {
		if infra.IsNoRows(err) {
			return nil, fmt.Errorf("job %q: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("load job %s: %w", key, err)
	}
	job, err := jsoncfg.DecodeJob(document, createdAt)
	if err != nil {
		return nil, fmt.Errorf("decode job %s: %w", gotKey, err)
	}
	return job, nil
}

// Lock takes a lease row in video_job_locks for key. A lease left by a crashed
// holder expires after lockTTL. Release deletes the row only while this
// caller still owns it.
func (r *JobRepositoryPG) Lock(ctx context.Context, key string) (func(), error) {
	key = strings.TrimSpace(key)
	owner := uuid.NewString()
	for {
		tag, err := r.sql.Exec(ctx, sqlinline.QAcquireVideoJobLock, key, owner, r.lockTTL.Seconds())
		if err != nil {
			return nil, fmt.Errorf("lock job %s: %w", key, err)
		}
		if tag.RowsAffected() == 1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lock job %s: %w", key, ctx.Err())
		case <-time.After(r.lockRetry):
		}
	}

	releaseCtx := context.WithoutCancel(ctx)
	var once sync.Once
	return func() {
		once.Do(func() {
			if _, err := r.sql.Exec(releaseCtx, sqlinline.QReleaseVideoJobLock, key, owner); err != nil {
				r.logger.Warn().Err(err).Str("job_key", key).Msg("repo: release job lock failed")
			}
		})
	}, nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
