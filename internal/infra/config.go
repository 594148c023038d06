package infra

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"reelgen/internal/domain"
)

const (
	JobStoreFile     = "file"
	JobStorePostgres = "postgres"

	ProviderNovaReel  = "novareel"
	ProviderSynthetic = "synthetic"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	Port              string
	OutputDir         string
	JobStore          string
	DatabaseURL       string
	VideoProvider     string
	AWSRegion         string
	BedrockModelID    string
	S3Bucket          string
	ArtifactExt       string
	Limits            domain.Limits
	DefaultDuration   int
	DefaultFPS        int
	DefaultResolution string
	RefreshInterval   time.Duration
	SyntheticPolls    int
	SyntheticFailTag  string
	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
	RateLimitPerMin   int
	CORSOrigins       []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	defaults := domain.DefaultLimits()
	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		OutputDir:      getEnv("OUTPUT_DIR", "output"),
		JobStore:       strings.ToLower(getEnv("JOB_STORE", JobStoreFile)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		VideoProvider:  strings.ToLower(getEnv("VIDEO_PROVIDER", ProviderNovaReel)),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", "amazon.nova-reel-v1:0"),
		S3Bucket:       strings.TrimPrefix(os.Getenv("S3_BUCKET"), "s3://"),
		ArtifactExt:    strings.TrimPrefix(getEnv("ARTIFACT_EXT", "mp4"), "."),
		Limits: domain.Limits{
			MinDuration: getEnvInt("MIN_DURATION", defaults.MinDuration),
			MaxDuration: getEnvInt("MAX_DURATION", defaults.MaxDuration),
			FPS:         getEnvIntList("AVAILABLE_FPS", defaults.FPS),
			Resolutions: getEnvList("AVAILABLE_RESOLUTIONS", defaults.Resolutions),
		},
		DefaultDuration:   getEnvInt("DEFAULT_DURATION", 6),
		DefaultFPS:        getEnvInt("DEFAULT_FPS", 24),
		DefaultResolution: getEnv("DEFAULT_RESOLUTION", "1280x720"),
		RefreshInterval:   time.Second * time.Duration(getEnvInt("REFRESH_INTERVAL_SECONDS", 10)),
		SyntheticPolls:    getEnvInt("SYNTHETIC_POLLS", 2),
		SyntheticFailTag:  getEnv("SYNTHETIC_FAIL_TAG", "[fail]"),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSOrigins:       getEnvList("CORS_ALLOWED_ORIGINS", nil),
	}

	switch cfg.JobStore {
	case JobStoreFile:
	case JobStorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when JOB_STORE=%s", JobStorePostgres)
		}
	default:
		return nil, fmt.Errorf("JOB_STORE must be %q or %q, got %q", JobStoreFile, JobStorePostgres, cfg.JobStore)
	}

	switch cfg.VideoProvider {
	case ProviderSynthetic:
	case ProviderNovaReel:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required when VIDEO_PROVIDER=%s", ProviderNovaReel)
		}
	default:
		return nil, fmt.Errorf("VIDEO_PROVIDER must be %q or %q, got %q", ProviderNovaReel, ProviderSynthetic, cfg.VideoProvider)
	}

	if cfg.Limits.MinDuration < 1 || cfg.Limits.MaxDuration < cfg.Limits.MinDuration {
		return nil, fmt.Errorf("invalid duration bounds [%d, %d]", cfg.Limits.MinDuration, cfg.Limits.MaxDuration)
	}
	if len(cfg.Limits.FPS) == 0 || len(cfg.Limits.Resolutions) == 0 {
		return nil, fmt.Errorf("AVAILABLE_FPS and AVAILABLE_RESOLUTIONS must not be empty")
	}
	if cfg.DefaultDuration < cfg.Limits.MinDuration || cfg.DefaultDuration > cfg.Limits.MaxDuration {
		cfg.DefaultDuration = cfg.Limits.MinDuration
	}
	if !slices.Contains(cfg.Limits.FPS, cfg.DefaultFPS) {
		cfg.DefaultFPS = cfg.Limits.FPS[0]
	}
	if !slices.Contains(cfg.Limits.Resolutions, cfg.DefaultResolution) {
		cfg.DefaultResolution = cfg.Limits.Resolutions[0]
	}

	return cfg, nil
}

// OutputURI is the destination the generation service writes artifacts to.
func (c *Config) OutputURI() string {
	return "s3://" + strings.TrimSuffix(strings.TrimPrefix(c.S3Bucket, "s3://"), "/")
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return slices.Clone(fallback)
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" && !slices.Contains(out, part) {
			out = append(out, part)
		}
	}
	return out
}

func getEnvIntList(key string, fallback []int) []int {
	parts := getEnvList(key, nil)
	if len(parts) == 0 {
		return slices.Clone(fallback)
	}
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		i, err := strconv.Atoi(part)
		if err != nil {
			return slices.Clone(fallback)
		}
		out = append(out, i)
	}
	return out
}
