package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"reelgen/internal/app"
	"reelgen/internal/infra"
)

// openRuntime loads the env file named by --env, if present, and wires the
// controller. Logs go to the root ErrWriter so stdout carries only command
// output.
func openRuntime(ctx context.Context, cmd *cli.Command) (*app.Runtime, error) {
	if envFile := cmd.String("env"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	errOut := cmd.Root().ErrWriter
	if errOut == nil {
		errOut = os.Stderr
	}
	logger := infra.NewLoggerTo(errOut, cfg.AppEnv)

	rt, err := app.New(ctx, cfg, &logger)
	if err != nil {
		return nil, fmt.Errorf("initialise runtime: %w", err)
	}
	return rt, nil
}
