package domain

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"
)

// Status enumerates job lifecycle states. The spellings are persisted as-is.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "InProgress"
	StatusCompleted  Status = "Completed"
	StatusFailed     Status = "Failed"
)

// UnknownFailure is recorded when the service fails a job without a reason.
const UnknownFailure = "unknown error"

// MaxSeed is the largest seed accepted by the generation service.
const MaxSeed = 2147483646

var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusInProgress: true,
		StatusFailed:     true,
	},
	StatusInProgress: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
	StatusCompleted: {},
	StatusFailed:    {},
}

// ParseStatus validates a persisted or reported status string.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.TrimSpace(s))
	if _, ok := allowedTransitions[status]; !ok {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return status, nil
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func CanTransition(from, to Status) bool {
	return allowedTransitions[from][to]
}

// Limits holds the configured bounds a JobConfig must respect.
type Limits struct {
	MinDuration int
	MaxDuration int
	FPS         []int
	Resolutions []string
}

func DefaultLimits() Limits {
	return Limits{
		MinDuration: 1,
		MaxDuration: 30,
		FPS:         []int{24, 30, 60},
		Resolutions: []string{"1280x720", "1920x1080"},
	}
}

// JobConfig is the immutable generation configuration of a job.
type JobConfig struct {
	Duration   int
	FPS        int
	Resolution string
	Seed       int
}

// NewJobConfig validates the parameters against the limits. A nil seed is
// replaced with a pseudo-random one.
func (l Limits) NewJobConfig(duration, fps int, resolution string, seed *int) (JobConfig, error) {
	if duration < l.MinDuration || duration > l.MaxDuration {
		return JobConfig{}, fmt.Errorf("%w: duration %d outside [%d, %d]", ErrInvalidConfig, duration, l.MinDuration, l.MaxDuration)
	}
	if !slices.Contains(l.FPS, fps) {
		return JobConfig{}, fmt.Errorf("%w: fps %d not in %v", ErrInvalidConfig, fps, l.FPS)
	}
	resolution = strings.TrimSpace(resolution)
	if !slices.Contains(l.Resolutions, resolution) {
		return JobConfig{}, fmt.Errorf("%w: resolution %q not in %v", ErrInvalidConfig, resolution, l.Resolutions)
	}
	s := RandomSeed()
	if seed != nil {
		if *seed < 0 || *seed > MaxSeed {
			return JobConfig{}, fmt.Errorf("%w: seed %d outside [0, %d]", ErrInvalidConfig, *seed, MaxSeed)
		}
		s = *seed
	}
	return JobConfig{Duration: duration, FPS: fps, Resolution: resolution, Seed: s}, nil
}

func RandomSeed() int {
	return rand.IntN(MaxSeed + 1)
}

// Job is one text-to-video generation request and its lifecycle fields.
// Absent optional fields are represented by zero values.
type Job struct {
	Prompt        string
	Config        JobConfig
	InvocationARN string
	Status        Status
	CreatedAt     time.Time
	CompletedAt   time.Time
	OutputPath    string
	ErrorMessage  string
}

// NewJob builds a Pending job created at now.
func NewJob(prompt string, cfg JobConfig, now time.Time) (*Job, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrInvalidConfig)
	}
	return &Job{
		Prompt:    prompt,
		Config:    cfg,
		Status:    StatusPending,
		CreatedAt: now,
	}, nil
}

// KeyLayout formats the creation timestamp into the job key.
const KeyLayout = "20060102_150405"

// Key identifies the job in storage. It has second-level resolution.
func (j *Job) Key() string {
	return "job_" + j.CreatedAt.Format(KeyLayout)
}

// InvocationID is the last path segment of the invocation ARN, which is also
// the prefix of the job's artifacts in the output bucket.
func (j *Job) InvocationID() string {
	return InvocationID(j.InvocationARN)
}

func InvocationID(arn string) string {
	arn = strings.TrimSpace(arn)
	if idx := strings.LastIndex(arn, "/"); idx >= 0 {
		return arn[idx+1:]
	}
	return arn
}

// MarkSubmitted records a successful submission.
func (j *Job) MarkSubmitted(arn string) error {
	arn = strings.TrimSpace(arn)
	if arn == "" {
		return fmt.Errorf("%w: empty invocation arn", ErrInvalidTransition)
	}
	if err := j.transition(StatusInProgress); err != nil {
		return err
	}
	j.InvocationARN = arn
	return nil
}

// MarkCompleted records completion and the artifact location.
func (j *Job) MarkCompleted(outputPath string, at time.Time) error {
	if err := j.transition(StatusCompleted); err != nil {
		return err
	}
	j.OutputPath = outputPath
	j.CompletedAt = at
	return nil
}

// MarkFailed records failure with the given reason.
func (j *Job) MarkFailed(reason string) error {
	if err := j.transition(StatusFailed); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = UnknownFailure
	}
	j.ErrorMessage = reason
	return nil
}

func (j *Job) transition(to Status) error {
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("%w: %q -> %q (key=%s)", ErrInvalidTransition, j.Status, to, j.Key())
	}
	j.Status = to
	return nil
}

// Validate checks the record invariants that hold for every record written
// by this package.
func (j *Job) Validate() error {
	if strings.TrimSpace(j.Prompt) == "" {
		return fmt.Errorf("%w: empty prompt", ErrMalformedRecord)
	}
	if _, err := ParseStatus(string(j.Status)); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if j.CreatedAt.IsZero() {
		return fmt.Errorf("%w: missing created_at", ErrMalformedRecord)
	}
	if (j.Status == StatusCompleted) != (j.OutputPath != "") {
		return fmt.Errorf("%w: output path must be present exactly when completed", ErrMalformedRecord)
	}
	if (j.Status == StatusFailed) != (j.ErrorMessage != "") {
		return fmt.Errorf("%w: error message must be present exactly when failed", ErrMalformedRecord)
	}
	if j.InvocationARN == "" && j.Status != StatusFailed && j.Status != StatusPending {
		return fmt.Errorf("%w: %s record without invocation arn", ErrMalformedRecord, j.Status)
	}
	return nil
}

// Clone returns an independent copy.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	return &c
}
