package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"reelgen/internal/domain"
	"reelgen/internal/jobs"
	"reelgen/internal/tui"
)

// CreateAction submits a job. Unset parameters fall back to the configured
// defaults. A submission failure still prints the persisted Failed job.
func CreateAction(ctx context.Context, cmd *cli.Command) error {
	rt, err := openRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	req := jobs.CreateRequest{
		Prompt:     cmd.String("prompt"),
		Duration:   rt.Config.DefaultDuration,
		FPS:        rt.Config.DefaultFPS,
		Resolution: rt.Config.DefaultResolution,
	}
	if cmd.IsSet("duration") {
		req.Duration = cmd.Int("duration")
	}
	if cmd.IsSet("fps") {
		req.FPS = cmd.Int("fps")
	}
	if cmd.IsSet("resolution") {
		req.Resolution = cmd.String("resolution")
	}
	if cmd.IsSet("seed") {
		seed := cmd.Int("seed")
		req.Seed = &seed
	}

	job, err := rt.Jobs.Create(ctx, req)
	if job != nil {
		printJob(stdout(cmd), job)
	}
	return err
}

// ShowAction prints one persisted job.
func ShowAction(ctx context.Context, cmd *cli.Command) error {
	rt, err := openRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	job, err := rt.Jobs.Get(ctx, cmd.String("key"))
	if err != nil {
		return err
	}
	printJob(stdout(cmd), job)
	return nil
}

// RefreshAction reconciles one job, or every unfinished job when no key is
// given.
func RefreshAction(ctx context.Context, cmd *cli.Command) error {
	rt, err := openRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	w := stdout(cmd)
	key := cmd.String("key")
	if key == "" {
		n, err := rt.Jobs.RefreshPending(ctx, nil)
		fmt.Fprintf(w, "refreshed %d job(s)\n", n)
		return err
	}

	job, err := rt.Jobs.Get(ctx, key)
	if err != nil {
		return err
	}
	before := job.Status
	if _, err := rt.Jobs.Refresh(ctx, job); err != nil {
		return err
	}
	if before != job.Status {
		fmt.Fprintf(w, "%s: %s -> %s\n", job.Key(), tui.StatusLabel(before), tui.StatusLabel(job.Status))
	}
	printJob(w, job)
	return nil
}

// ListAction prints the recent jobs and the archive.
func ListAction(ctx context.Context, cmd *cli.Command) error {
	rt, err := openRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	all, err := rt.Jobs.List(ctx)
	if err != nil {
		return err
	}
	recent, archive := jobs.SplitRecent(all, cmd.Int("recent"))
	return tui.RenderJobs(stdout(cmd), recent, archive)
}

// WatchAction opens the live view.
func WatchAction(ctx context.Context, cmd *cli.Command) error {
	rt, err := openRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	err = tui.Watch(ctx, rt.Jobs, tui.WatchOptions{
		Recent:   cmd.Int("recent"),
		Tick:     time.Second,
		Schedule: jobs.NewRefreshSchedule(rt.Config.RefreshInterval),
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// stdout is the root command's Writer, os.Stdout unless a caller set one.
func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func printJob(w io.Writer, job *domain.Job) {
	fmt.Fprintln(w, tui.JobLine(job))
	fmt.Fprintf(w, "  prompt:  %s\n", job.Prompt)
	fmt.Fprintf(w, "  seed:    %d\n", job.Config.Seed)
	fmt.Fprintf(w, "  created: %s\n", job.CreatedAt.Format(time.RFC3339))
	if job.InvocationARN != "" {
		fmt.Fprintf(w, "  arn:     %s\n", job.InvocationARN)
	}
	if !job.CompletedAt.IsZero() {
		fmt.Fprintf(w, "  done:    %s\n", job.CompletedAt.Format(time.RFC3339))
	}
}
