package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	lockDirName   = ".locks"
	lockOwnerFile = "owner.json"

	// DefaultLockRetry is how often a held lock is re-checked.
	DefaultLockRetry = 25 * time.Millisecond
	// DefaultLockStaleAfter is the age after which a lock left behind by a
	// crashed process is broken.
	DefaultLockStaleAfter = 10 * time.Minute
)

type lockOwner struct {
	PID       int    `json:"pid"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
}

// LockOptions tune Lock. Zero values select the defaults.
type LockOptions struct {
	Retry      time.Duration
	StaleAfter time.Duration
}

// Lock takes an exclusive lock on name that holds across processes sharing
// the root. The lock is a directory under .locks created with mkdir, which
// fails if another holder exists. Lock waits until the lock is free or ctx
// is done. The returned release func is safe to call more than once.
func (s *FileStore) Lock(ctx context.Context, name string, opts LockOptions) (func(), error) {
	if s == nil {
		return nil, errors.New("storage: no store configured")
	}
	cleanName, err := sanitizeKey(name)
	if err != nil {
		return nil, err
	}
	if strings.Contains(cleanName, "/") {
		return nil, fmt.Errorf("storage: lock name %q must not contain a path", name)
	}
	if opts.Retry <= 0 {
		opts.Retry = DefaultLockRetry
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultLockStaleAfter
	}

	root := filepath.Join(s.basePath, lockDirName)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure lock directory: %w", err)
	}
	lockDir := filepath.Join(root, cleanName+".lock")

	for {
		err := os.Mkdir(lockDir, 0o755)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("storage: acquire lock %s: %w", cleanName, err)
		}
		if breakStale(lockDir, opts.StaleAfter) {
			continue
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("storage: lock %s: %w", cleanName, ctx.Err())
		case <-time.After(opts.Retry):
		}
	}

	owner := lockOwner{
		PID:       os.Getpid(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
	}
	if data, err := json.Marshal(owner); err == nil {
		_ = os.WriteFile(filepath.Join(lockDir, lockOwnerFile), data, 0o644)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = os.Remove(filepath.Join(lockDir, lockOwnerFile))
			_ = os.Remove(lockDir)
		})
	}, nil
}

// breakStale removes lockDir when it is older than staleAfter.
func breakStale(lockDir string, staleAfter time.Duration) bool {
	info, err := os.Stat(lockDir)
	if err != nil {
		// released between mkdir and stat
		return errors.Is(err, fs.ErrNotExist)
	}
	if time.Since(info.ModTime()) < staleAfter {
		return false
	}
	_ = os.Remove(filepath.Join(lockDir, lockOwnerFile))
	return os.Remove(lockDir) == nil
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil || strings.TrimSpace(host) == "" {
		return "unknown"
	}
	return strings.TrimSpace(host)
}
