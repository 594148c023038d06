package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"reelgen/internal/domain"
	"reelgen/internal/infra"
	"reelgen/internal/storage"
)

const (
	syntheticARNPrefix = "arn:aws:bedrock:local:000000000000:async-invoke/"
	syntheticStateDir  = ".synthetic"
)

// SyntheticConfig tunes the local stand-in provider.
type SyntheticConfig struct {
	// CompleteAfter is the number of polls an invocation stays in progress.
	CompleteAfter int
	// FailTag makes any prompt containing it fail with FailReason.
	FailTag    string
	FailReason string
	Delay      time.Duration
}

// Synthetic is a local provider for development and demos. It never leaves
// the machine: invocations progress with each poll and finished jobs get a
// placeholder artifact in the local store. Invocation state lives under
// .synthetic in the store, so every process sharing the output directory
// sees the same progress.
type Synthetic struct {
	store  *storage.FileStore
	cfg    SyntheticConfig
	logger *infra.Logger

	mu sync.Mutex
}

type syntheticInvocation struct {
	Prompt      string    `json:"prompt"`
	Polls       int       `json:"polls"`
	SubmittedAt time.Time `json:"submitted_at"`
}

func NewSynthetic(store *storage.FileStore, cfg SyntheticConfig, logger *infra.Logger) *Synthetic {
	if logger == nil {
		logger = infra.NopLogger()
	}
	if cfg.CompleteAfter < 0 {
		cfg.CompleteAfter = 0
	}
	if cfg.FailReason == "" {
		cfg.FailReason = "content policy violation"
	}
	return &Synthetic{store: store, cfg: cfg, logger: logger}
}

// Submit registers the job and returns a fresh invocation ARN after the
// configured delay.
func (s *Synthetic) Submit(ctx context.Context, job *domain.Job) (string, error) {
	if job == nil {
		return "", submissionError(errors.New("job is required"))
	}
	if s.cfg.Delay > 0 {
		select {
		case <-time.After(s.cfg.Delay):
		case <-ctx.Done():
			return "", submissionError(ctx.Err())
		}
	}

	arn := syntheticARNPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	inv := &syntheticInvocation{Prompt: job.Prompt, SubmittedAt: time.Now().UTC()}
	if err := s.save(ctx, domain.InvocationID(arn), inv); err != nil {
		return "", submissionError(err)
	}

	s.logger.Info().Str("job_key", job.Key()).Str("invocation_arn", arn).Msg("synthetic: submitted")
	return arn, nil
}

// PollStatus advances the invocation by one poll. An invocation with no
// recorded state is reported completed.
func (s *Synthetic) PollStatus(ctx context.Context, arn string) (StatusReport, error) {
	if err := ctx.Err(); err != nil {
		return StatusReport{}, statusCheckError(err)
	}
	arn = strings.TrimSpace(arn)
	if arn == "" {
		return StatusReport{}, statusCheckError(errors.New("invocation arn is required"))
	}
	id := domain.InvocationID(arn)

	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.store.Lock(ctx, "synthetic_"+id, storage.LockOptions{})
	if err != nil {
		return StatusReport{}, statusCheckError(err)
	}
	defer unlock()

	inv, err := s.load(ctx, id)
	if errors.Is(err, fs.ErrNotExist) {
		return StatusReport{Status: domain.StatusCompleted, Output: s.remoteURI(arn)}, nil
	}
	if err != nil {
		return StatusReport{}, statusCheckError(err)
	}
	inv.Polls++
	if err := s.save(ctx, id, inv); err != nil {
		return StatusReport{}, statusCheckError(err)
	}
	switch {
	case s.cfg.FailTag != "" && strings.Contains(inv.Prompt, s.cfg.FailTag):
		return StatusReport{Status: domain.StatusFailed, FailureReason: s.cfg.FailReason}, nil
	case inv.Polls > s.cfg.CompleteAfter:
		return StatusReport{Status: domain.StatusCompleted, Output: s.remoteURI(arn)}, nil
	default:
		return StatusReport{Status: domain.StatusInProgress}, nil
	}
}

// LocateArtifact writes a placeholder video file unless one already exists.
func (s *Synthetic) LocateArtifact(ctx context.Context, arn string) (string, error) {
	id := domain.InvocationID(arn)
	if id == "" {
		return "", nil
	}
	key := path.Join(id, "output.mp4")
	if !s.store.Exists(key) {
		placeholder := fmt.Sprintf("synthetic video for %s\n", arn)
		if _, err := s.store.Write(ctx, key, []byte(placeholder)); err != nil {
			return "", fmt.Errorf("write placeholder artifact: %w", err)
		}
	}
	return s.store.Path(key)
}

func (s *Synthetic) load(ctx context.Context, id string) (*syntheticInvocation, error) {
	data, err := s.store.Read(ctx, stateKey(id))
	if err != nil {
		return nil, err
	}
	var inv syntheticInvocation
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("decode synthetic state %s: %w", id, err)
	}
	return &inv, nil
}

func (s *Synthetic) save(ctx context.Context, id string, inv *syntheticInvocation) error {
	data, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	if _, err := s.store.Write(ctx, stateKey(id), data); err != nil {
		return fmt.Errorf("write synthetic state %s: %w", id, err)
	}
	return nil
}

func stateKey(id string) string {
	return path.Join(syntheticStateDir, id+".json")
}

func (s *Synthetic) remoteURI(arn string) string {
	return "synthetic://" + path.Join(domain.InvocationID(arn), "output.mp4")
}

var _ Service = (*Synthetic)(nil)
