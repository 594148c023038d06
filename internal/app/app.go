// Package app assembles the job controller from configuration. The API,
// worker and CLI binaries share it so they agree on store and provider.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"reelgen/internal/adapter/repo"
	"reelgen/internal/domain"
	"reelgen/internal/infra"
	"reelgen/internal/jobs"
	"reelgen/internal/providers/video"
	"reelgen/internal/storage"
)

// Runtime holds the wired components and the resources to release on exit.
type Runtime struct {
	Config *infra.Config
	Logger *infra.Logger
	Store  *storage.FileStore
	Jobs   *jobs.Controller

	closers []func()
}

// New builds the store, repository, provider and controller selected by cfg.
func New(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = infra.NopLogger()
	}

	outputDir := cfg.OutputDir
	if !filepath.IsAbs(outputDir) {
		if abs, err := filepath.Abs(outputDir); err == nil {
			outputDir = abs
		}
	}
	store, err := storage.NewFileStore(outputDir)
	if err != nil {
		return nil, fmt.Errorf("configure output dir: %w", err)
	}

	rt := &Runtime{Config: cfg, Logger: logger, Store: store}

	jobRepo, err := rt.newRepository(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}
	svc, err := rt.newService(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.Jobs = jobs.NewController(jobRepo, svc, cfg.Limits, logger)
	logger.Debug().
		Str("job_store", cfg.JobStore).
		Str("provider", cfg.VideoProvider).
		Str("output_dir", outputDir).
		Msg("app: runtime ready")
	return rt, nil
}

func (rt *Runtime) newRepository(ctx context.Context) (domain.JobRepository, error) {
	switch rt.Config.JobStore {
	case infra.JobStorePostgres:
		pool, err := infra.NewDBPool(ctx, rt.Config)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)

		pg := repo.NewJobRepository(infra.NewSQLRunner(pool, *rt.Logger), rt.Logger)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure job schema: %w", err)
		}
		return pg, nil
	case infra.JobStoreFile, "":
		return repo.NewJobFileRepository(rt.Store, rt.Logger), nil
	default:
		return nil, fmt.Errorf("unsupported job store %q", rt.Config.JobStore)
	}
}

func (rt *Runtime) newService(ctx context.Context) (video.Service, error) {
	switch rt.Config.VideoProvider {
	case infra.ProviderSynthetic:
		return video.NewSynthetic(rt.Store, video.SyntheticConfig{
			CompleteAfter: rt.Config.SyntheticPolls,
			FailTag:       rt.Config.SyntheticFailTag,
		}, rt.Logger), nil
	case infra.ProviderNovaReel, "":
		clients, err := infra.NewAWSClients(ctx, rt.Config)
		if err != nil {
			return nil, err
		}
		return video.NewNovaReelFromConfig(clients, rt.Store, rt.Config, rt.Logger), nil
	default:
		return nil, fmt.Errorf("unsupported video provider %q", rt.Config.VideoProvider)
	}
}

// Close releases resources in reverse order of acquisition. Safe to call
// more than once.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
