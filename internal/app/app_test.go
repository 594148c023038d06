package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"reelgen/internal/domain"
	"reelgen/internal/infra"
	"reelgen/internal/jobs"
)

func syntheticConfig(t *testing.T) *infra.Config {
	t.Helper()
	return &infra.Config{
		AppEnv:            "test",
		OutputDir:         t.TempDir(),
		JobStore:          infra.JobStoreFile,
		VideoProvider:     infra.ProviderSynthetic,
		Limits:            domain.DefaultLimits(),
		DefaultDuration:   6,
		DefaultFPS:        24,
		DefaultResolution: "1280x720",
		SyntheticPolls:    0,
		SyntheticFailTag:  "[fail]",
	}
}

func TestRuntimeSyntheticLifecycle(t *testing.T) {
	ctx := context.Background()
	cfg := syntheticConfig(t)

	rt, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	defer rt.Close()

	job, err := rt.Jobs.Create(ctx, jobs.CreateRequest{
		Prompt:     "a lighthouse at dusk",
		Duration:   6,
		FPS:        24,
		Resolution: "1280x720",
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusInProgress, job.Status)
	require.FileExists(t, filepath.Join(cfg.OutputDir, job.Key()+".json"))

	status, err := rt.Jobs.Refresh(ctx, job)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, status)
	require.FileExists(t, job.OutputPath)

	reloaded, err := rt.Jobs.Get(ctx, job.Key())
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, reloaded.Status)
	require.Equal(t, job.OutputPath, reloaded.OutputPath)
}

func TestRuntimeSyntheticFailure(t *testing.T) {
	ctx := context.Background()
	rt, err := New(ctx, syntheticConfig(t), nil)
	require.NoError(t, err)
	defer rt.Close()

	job, err := rt.Jobs.Create(ctx, jobs.CreateRequest{
		Prompt:     "[fail] something forbidden",
		Duration:   6,
		FPS:        24,
		Resolution: "1280x720",
	})
	require.NoError(t, err)

	status, err := rt.Jobs.Refresh(ctx, job)
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, status)
	require.Equal(t, "content policy violation", job.ErrorMessage)
}

func TestRuntimeRejectsUnknownBackends(t *testing.T) {
	cfg := syntheticConfig(t)
	cfg.JobStore = "redis"
	_, err := New(context.Background(), cfg, nil)
	require.ErrorContains(t, err, "unsupported job store")

	cfg = syntheticConfig(t)
	cfg.VideoProvider = "sora"
	_, err = New(context.Background(), cfg, nil)
	require.ErrorContains(t, err, "unsupported video provider")
}

func TestRuntimeResolvesRelativeOutputDir(t *testing.T) {
	cfg := syntheticConfig(t)
	cfg.OutputDir = filepath.Join("testdata", "..", "output")

	rt, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer rt.Close()

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(wd, "output"), rt.Store.BasePath())
}
