package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"reelgen/internal/app"
	"reelgen/internal/http/handlers"
	httpapi "reelgen/internal/http/httpapi"
	"reelgen/internal/infra"
)

func main() {
	// .env is optional
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
		logger.Fatal().Err(err).Msg("api: failed to initialise runtime")
	}
	defer rt.Close()

	handlerApp := handlers.NewApp(rt.Jobs, handlers.Defaults{
		Duration:   cfg.DefaultDuration,
		FPS:        cfg.DefaultFPS,
		Resolution: cfg.DefaultResolution,
	})
	router := httpapi.NewRouter(handlerApp, httpapi.Options{
		Logger:          logger,
		CreatePerMinute: cfg.RateLimitPerMin,
		AllowedOrigins:  cfg.CORSOrigins,
	})

	server := infra.NewHTTPServer(cfg, router)
	logger.Info().
		Str("addr", server.Addr()).
		Str("provider", cfg.VideoProvider).
		Str("job_store", cfg.JobStore).
		Msg("api: listening")

	if err := server.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("api: server failed")
		return
	}
	logger.Info().Msg("api: stopped")
}
