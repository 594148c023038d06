package jsoncfg

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"reelgen/internal/domain"
)

// ConfigFile is the persisted generation config. Two key schemes are accepted
// on read: the flat one (duration/resolution) written by this package and the
// service one (durationSeconds/dimension) found in older job files. Only the
// flat scheme is written.
type ConfigFile struct {
	Duration        *int    `json:"duration,omitempty"`
	DurationSeconds *int    `json:"durationSeconds,omitempty"`
	FPS             *int    `json:"fps,omitempty"`
	Resolution      *string `json:"resolution,omitempty"`
	Dimension       *string `json:"dimension,omitempty"`
	Seed            *int    `json:"seed,omitempty"`
}

// LegacyResponse is the raw submission response older job files embedded.
type LegacyResponse struct {
	InvocationArn string `json:"invocationArn,omitempty"`
}

// JobFile is the on-disk shape of one job.
type JobFile struct {
	Prompt        string          `json:"prompt"`
	Config        *ConfigFile     `json:"config"`
	InvocationARN *string         `json:"invocation_arn"`
	Response      *LegacyResponse `json:"response,omitempty"`
	Status        string          `json:"status,omitempty"`
	CreatedAt     string          `json:"created_at,omitempty"`
	CompletedAt   *string         `json:"completed_at"`
	OutputPath    *string         `json:"output_path"`
	ErrorMessage  *string         `json:"error_message"`
}

// legacyStatus applies to files written before status was tracked; those were
// only written after a successful submission.
const legacyStatus = domain.StatusInProgress

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// NewConfigFile converts a config into its storage form.
func NewConfigFile(cfg domain.JobConfig) ConfigFile {
	duration, fps, seed := cfg.Duration, cfg.FPS, cfg.Seed
	resolution := cfg.Resolution
	return ConfigFile{
		Duration:   &duration,
		FPS:        &fps,
		Resolution: &resolution,
		Seed:       &seed,
	}
}

// JobConfig normalizes either key scheme into a config. Limits are not
// re-applied so that records created under older bounds stay readable.
func (c ConfigFile) JobConfig() (domain.JobConfig, error) {
	duration := c.Duration
	if duration == nil {
		duration = c.DurationSeconds
	}
	if duration == nil {
		return domain.JobConfig{}, fmt.Errorf("%w: config missing duration", domain.ErrMalformedRecord)
	}
	if c.FPS == nil {
		return domain.JobConfig{}, fmt.Errorf("%w: config missing fps", domain.ErrMalformedRecord)
	}
	resolution := c.Resolution
	if resolution == nil || strings.TrimSpace(*resolution) == "" {
		resolution = c.Dimension
	}
	if resolution == nil || strings.TrimSpace(*resolution) == "" {
		return domain.JobConfig{}, fmt.Errorf("%w: config missing resolution", domain.ErrMalformedRecord)
	}
	seed := domain.RandomSeed()
	if c.Seed != nil {
		seed = *c.Seed
	}
	return domain.JobConfig{
		Duration:   *duration,
		FPS:        *c.FPS,
		Resolution: strings.TrimSpace(*resolution),
		Seed:       seed,
	}, nil
}

// NewJobFile converts a job into its storage form.
func NewJobFile(job *domain.Job) JobFile {
	cfg := NewConfigFile(job.Config)
	return JobFile{
		Prompt:        job.Prompt,
		Config:        &cfg,
		InvocationARN: optional(job.InvocationARN),
		Status:        string(job.Status),
		CreatedAt:     formatTimestamp(job.CreatedAt),
		CompletedAt:   optional(formatTimestamp(job.CompletedAt)),
		OutputPath:    optional(job.OutputPath),
		ErrorMessage:  optional(job.ErrorMessage),
	}
}

// Job converts the storage form back into a job. A missing created_at is left
// zero for the caller to fill in.
func (f JobFile) Job() (*domain.Job, error) {
	if f.Config == nil {
		return nil, fmt.Errorf("%w: missing config", domain.ErrMalformedRecord)
	}
	cfg, err := f.Config.JobConfig()
	if err != nil {
		return nil, err
	}

	status := legacyStatus
	if strings.TrimSpace(f.Status) != "" {
		status, err = domain.ParseStatus(f.Status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)
		}
	}

	job := &domain.Job{
		Prompt:        strings.TrimSpace(f.Prompt),
		Config:        cfg,
		InvocationARN: strings.TrimSpace(deref(f.InvocationARN)),
		Status:        status,
		OutputPath:    deref(f.OutputPath),
		ErrorMessage:  deref(f.ErrorMessage),
	}
	if job.InvocationARN == "" && f.Response != nil {
		job.InvocationARN = strings.TrimSpace(f.Response.InvocationArn)
	}
	if f.CreatedAt != "" {
		if job.CreatedAt, err = ParseTimestamp(f.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: created_at: %v", domain.ErrMalformedRecord, err)
		}
	}
	if ts := deref(f.CompletedAt); ts != "" {
		if job.CompletedAt, err = ParseTimestamp(ts); err != nil {
			return nil, fmt.Errorf("%w: completed_at: %v", domain.ErrMalformedRecord, err)
		}
	}
	return job, nil
}

// EncodeJob renders the job file as indented JSON.
func EncodeJob(job *domain.Job) ([]byte, error) {
	data, err := json.MarshalIndent(NewJobFile(job), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal job %s: %w", job.Key(), err)
	}
	return append(data, '\n'), nil
}

// DecodeJob parses a job file and checks the record invariants. If the file
// has no created_at, fallback is used.
func DecodeJob(data []byte, fallback time.Time) (*domain.Job, error) {
	var f JobFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)
	}
	job, err := f.Job()
	if err != nil {
		return nil, err
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = fallback
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

// ParseTimestamp accepts RFC 3339 and zone-less ISO-8601 timestamps; the
// latter are interpreted in local time.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
