package commands

import "github.com/urfave/cli/v3"

// New builds the reelgen command tree. Command output goes to the root
// Writer and logs to its ErrWriter.
func New() *cli.Command {
	return &cli.Command{
		Name:  "reelgen",
		Usage: "submit and track Nova Reel text-to-video jobs",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "submit a new video job",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:     "prompt",
						Usage:    "text prompt describing the video",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "duration",
						Usage: "length in seconds (defaults to DEFAULT_DURATION)",
					},
					&cli.IntFlag{
						Name:  "fps",
						Usage: "frames per second (defaults to DEFAULT_FPS)",
					},
					&cli.StringFlag{
						Name:  "resolution",
						Usage: "WIDTHxHEIGHT (defaults to DEFAULT_RESOLUTION)",
					},
					&cli.IntFlag{
						Name:  "seed",
						Usage: "generation seed; random when omitted",
					},
				},
				Action: CreateAction,
			},
			{
				Name:  "show",
				Usage: "show one job",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:     "key",
						Usage:    "job key, e.g. job_20240501_103015",
						Required: true,
					},
				},
				Action: ShowAction,
			},
			{
				Name:  "refresh",
				Usage: "check the status of one job, or every unfinished job",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:  "key",
						Usage: "job key; omit to refresh all unfinished jobs",
					},
				},
				Action: RefreshAction,
			},
			{
				Name:  "list",
				Usage: "list jobs, newest first",
				Flags: []cli.Flag{
					envFlag(),
					&cli.IntFlag{
						Name:  "recent",
						Usage: "number of jobs shown before the archive",
						Value: 5,
					},
				},
				Action: ListAction,
			},
			{
				Name:  "watch",
				Usage: "live view that refreshes unfinished jobs",
				Flags: []cli.Flag{
					envFlag(),
					&cli.IntFlag{
						Name:  "recent",
						Usage: "number of jobs shown before the archive",
						Value: 5,
					},
				},
				Action: WatchAction,
			},
		},
	}
}

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "path to the env file",
		Value: ".env",
	}
}
