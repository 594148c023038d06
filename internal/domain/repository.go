package domain

import "context"

// JobRepository persists job records. Persist overwrites the whole unit
// addressed by Job.Key(); readers never observe a partial write.
type JobRepository interface {
	Persist(ctx context.Context, job *Job) error
	// LoadAll returns every record that parses. Unparseable records are
	// skipped, and a missing or unreadable root yields no records.
	LoadAll(ctx context.Context) ([]*Job, error)
	// Load returns ErrNotFound when no record exists for key.
	Load(ctx context.Context, key string) (*Job, error)
	// Lock takes an exclusive per-key guard shared by every process using
	// the same store. It waits until the guard is held or ctx is done.
	Lock(ctx context.Context, key string) (release func(), err error)
}
