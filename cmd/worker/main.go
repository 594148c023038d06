package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"reelgen/internal/app"
	"reelgen/internal/infra"
	"reelgen/internal/jobs"
)

const sweepInterval = time.Second

// refresher is the slice of the controller the worker drives.
type refresher interface {
	RefreshPending(ctx context.Context, schedule *jobs.RefreshSchedule) (int, error)
}

type jobWorker struct {
	jobs     refresher
	schedule *jobs.RefreshSchedule
	logger   infra.Logger
	tick     time.Duration
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.New(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to initialise runtime")
	}
	defer rt.Close()

	worker := &jobWorker{
		jobs:     rt.Jobs,
		schedule: jobs.NewRefreshSchedule(cfg.RefreshInterval),
		logger:   logger,
		tick:     sweepInterval,
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker: stopped with error")
		return
	}
	logger.Info().Msg("worker: stopped")
}

// Run sweeps pending jobs on every tick until ctx ends. The schedule keeps
// each job to one status check per refresh interval.
func (w *jobWorker) Run(ctx context.Context) error {
	w.logger.Info().Dur("refresh_interval", w.schedule.Interval()).Msg("worker: started")
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		w.sweep(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *jobWorker) sweep(ctx context.Context) {
	n, err := w.jobs.RefreshPending(ctx, w.schedule)
	if err != nil && ctx.Err() == nil {
		w.logger.Warn().Err(err).Int("refreshed", n).Msg("worker: refresh sweep had errors")
		return
	}
	if n > 0 {
		w.logger.Debug().Int("refreshed", n).Msg("worker: refresh sweep")
	}
}
