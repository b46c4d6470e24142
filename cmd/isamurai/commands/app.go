package commands

import (
	"github.com/urfave/cli/v3"

	"github.com/manthysbr/isamurai-go/pkg/isamurai"
)

// NewApp builds the isamurai command tree.
func NewApp(version string) *cli.Command {
	return &cli.Command{
		Name:    "isamurai",
		Usage:   "iSamurai face swap API client",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env",
				Usage: "environment file path",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error (overrides LOG_LEVEL)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "text or json (overrides LOG_FORMAT)",
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "write Prometheus metrics to this textfile on exit",
			},
			&cli.BoolFlag{
				Name:  "trace",
				Usage: "log OpenTelemetry spans for every API call",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "credits",
				Usage:  "show the account plan and credit balance",
				Action: CreditsAction,
			},
			{
				Name:      "swap",
				Usage:     "submit a face swap job",
				ArgsUsage: "<source-image> <target>",
				Flags: append([]cli.Flag{
					qualityFlag(),
					nameFlag(),
				}, waitFlags()...),
				Action: SwapAction,
			},
			{
				Name:      "multi-swap",
				Usage:     "submit a multi face swap job",
				ArgsUsage: "<target>",
				Flags: append([]cli.Flag{
					&cli.StringSliceFlag{
						Name:     "source",
						Aliases:  []string{"s"},
						Usage:    "source face image, repeat for each face in target order",
						Required: true,
					},
					qualityFlag(),
					nameFlag(),
				}, waitFlags()...),
				Action: MultiSwapAction,
			},
			{
				Name:      "slowmo",
				Usage:     "submit a slow motion job",
				ArgsUsage: "<video>",
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:  "factor",
						Usage: "slow down factor (2, 4 or 8)",
						Value: 2,
					},
					nameFlag(),
				}, waitFlags()...),
				Action: SlowMotionAction,
			},
			{
				Name:      "restore",
				Usage:     "submit a face restoration job",
				ArgsUsage: "<target>",
				Flags:     append([]cli.Flag{nameFlag()}, waitFlags()...),
				Action:    RestoreAction,
			},
			{
				Name:      "status",
				Usage:     "fetch the current status of a job",
				ArgsUsage: "<job-id>",
				Flags:     []cli.Flag{multiFlag()},
				Action:    StatusAction,
			},
			{
				Name:      "wait",
				Usage:     "poll a job until it finishes",
				ArgsUsage: "<job-id>",
				Flags:     append([]cli.Flag{multiFlag()}, pollFlags()...),
				Action:    WaitAction,
			},
			{
				Name:      "wait-all",
				Usage:     "poll several jobs concurrently",
				ArgsUsage: "[job-id...]",
				Flags: append([]cli.Flag{
					multiFlag(),
					&cli.BoolFlag{
						Name:  "pending",
						Usage: "wait for every unfinished job in the history",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "jobs polled at once",
						Value: 4,
					},
				}, pollFlags()...),
				Action: WaitAllAction,
			},
			{
				Name:  "login",
				Usage: "save the API key (encrypted) for later runs",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "api-key",
						Usage:    "API key (isk_...)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "base-url",
						Usage: "API endpoint root",
					},
					&cli.BoolFlag{
						Name:  "check",
						Usage: "verify the key with a credits call before saving",
						Value: true,
					},
				},
				Action: LoginAction,
			},
			{
				Name:  "config",
				Usage: "configuration commands",
				Commands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "print the effective configuration with secrets masked",
						Action: ConfigShowAction,
					},
				},
			},
			{
				Name:  "history",
				Usage: "local job history commands",
				Commands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "list recorded jobs, newest first",
						Flags:  historyFilterFlags(),
						Action: HistoryListAction,
					},
					{
						Name:  "export",
						Usage: "export recorded jobs to an xlsx workbook",
						Flags: append([]cli.Flag{
							&cli.StringFlag{
								Name:  "out",
								Usage: "output file path",
								Value: "isamurai-history.xlsx",
							},
						}, historyFilterFlags()...),
						Action: HistoryExportAction,
					},
				},
			},
		},
	}
}

func qualityFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "quality",
		Usage: "output resolution (480p, 720p or 1080p)",
		Value: string(isamurai.DefaultQuality),
	}
}

func nameFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "name",
		Usage: "job name shown in the dashboard",
	}
}

func multiFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "multi",
		Usage: "use the multi face swap status endpoint for jobs not in the history",
	}
}

func pollFlags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:  "interval",
			Usage: "delay between status checks (default from ISAMURAI_POLL_INTERVAL)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "give up after this long (default from ISAMURAI_TIMEOUT)",
		},
	}
}

func waitFlags() []cli.Flag {
	return append([]cli.Flag{
		&cli.BoolFlag{
			Name:  "wait",
			Usage: "poll the job until it finishes",
		},
	}, pollFlags()...)
}

func historyFilterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "outcome",
			Usage: "filter by outcome (polling, succeeded, failed, timed_out, error)",
		},
		&cli.StringFlag{
			Name:  "kind",
			Usage: "filter by kind (face_swap, multi_swap, slow_motion, restore)",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "maximum rows, 0 for all",
		},
	}
}
