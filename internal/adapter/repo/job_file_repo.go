package repo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"reelgen/internal/domain"
	"reelgen/internal/domain/jsoncfg"
	"reelgen/internal/infra"
	"reelgen/internal/storage"
)

const (
	jobFilePrefix = "job_"
	jobFileSuffix = ".json"
)

// JobFileRepository implements domain.JobRepository with one JSON file per
// job, named after the job key.
type JobFileRepository struct {
	store  *storage.FileStore
	logger *infra.Logger
}

// NewJobFileRepository creates a repository on top of store.
func NewJobFileRepository(store *storage.FileStore, logger *infra.Logger) *JobFileRepository {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &JobFileRepository{store: store, logger: logger}
}

// Persist overwrites the job file for job.Key().
func (r *JobFileRepository) Persist(ctx context.Context, job *domain.Job) error {
	data, err := jsoncfg.EncodeJob(job)
	if err != nil {
		return err
	}
	if _, err := r.store.Write(ctx, job.Key()+jobFileSuffix, data); err != nil {
		return fmt.Errorf("persist job %s: %w", job.Key(), err)
	}
	r.logger.Debug().
		Str("job_key", job.Key()).
		Str("status", string(job.Status)).
		Msg("repo: job persisted")
	return nil
}

// LoadAll parses every job file under the root. Files that fail to parse are
// logged and skipped; an unreadable root is treated as an empty history.
func (r *JobFileRepository) LoadAll(ctx context.Context) ([]*domain.Job, error) {
	entries, err := r.store.List(ctx, jobFilePrefix, jobFileSuffix)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.logger.Warn().Err(err).Str("root", r.store.BasePath()).Msg("repo: job directory unreadable, assuming no jobs")
		return nil, nil
	}

	jobs := make([]*domain.Job, 0, len(entries))
	for _, entry := range entries {
		job, err := r.read(ctx, entry.Key, entry.Info.ModTime())
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			r.logger.Warn().Err(err).Str("file", entry.Key).Msg("repo: skipping unreadable job file")
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Load reads a single job by key.
func (r *JobFileRepository) Load(ctx context.Context, key string) (*domain.Job, error) {
	key = strings.TrimSpace(key)
	if !strings.HasPrefix(key, jobFilePrefix) || strings.ContainsAny(key, `/\`) {
		return nil, fmt.Errorf("job %q: %w", key, domain.ErrNotFound)
	}
	job, err := r.read(ctx, key+jobFileSuffix, time.Time{})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("job %q: %w", key, domain.ErrNotFound)
	}
	return job, err
}

// Lock guards key across processes sharing the output directory.
func (r *JobFileRepository) Lock(ctx context.Context, key string) (func(), error) {
	key = strings.TrimSpace(key)
	if !strings.HasPrefix(key, jobFilePrefix) || strings.ContainsAny(key, `/\`) {
		return nil, fmt.Errorf("lock job %q: invalid key", key)
	}
	release, err := r.store.Lock(ctx, key, storage.LockOptions{})
	if err != nil {
		return nil, fmt.Errorf("lock job %s: %w", key, err)
	}
	return release, nil
}

func (r *JobFileRepository) read(ctx context.Context, name string, modTime time.Time) (*domain.Job, error) {
	data, err := r.store.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	fallback, ok := createdAtFromName(name)
	if !ok {
		fallback = modTime
	}
	job, err := jsoncfg.DecodeJob(data, fallback)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return job, nil
}

// createdAtFromName recovers the creation time encoded in a job file name.
// Older files carry no created_at field.
func createdAtFromName(name string) (time.Time, bool) {
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, jobFilePrefix), jobFileSuffix)
	t, err := time.ParseInLocation(domain.KeyLayout, stamp, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

var _ domain.JobRepository = (*JobFileRepository)(nil)
