package cmd

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/fathomline/sounder/adapter"
	redisadapter "github.com/fathomline/sounder/adapter/redis"
	"github.com/fathomline/sounder/adapter/webhook"
	"github.com/fathomline/sounder/cli/config"
	"github.com/fathomline/sounder/cli/render"
	"github.com/fathomline/sounder/cli/tui"
	"github.com/fathomline/sounder/client"
	"github.com/fathomline/sounder/iox"
	"github.com/fathomline/sounder/journal"
	"github.com/fathomline/sounder/loadgen"
	"github.com/fathomline/sounder/log"
	"github.com/fathomline/sounder/metrics"
	"github.com/fathomline/sounder/observability"
	"github.com/fathomline/sounder/types"
	"github.com/fathomline/sounder/wire"
)

// Exit codes for run.
const (
	exitSuccess = 0
	exitFailure = 1
	exitConfig  = 2
)

// postRunTimeout bounds the export and publish work after the swarm has
// wound down. Post-run work runs on its own context so an interrupted run
// still gets its journal shipped.
const postRunTimeout = 30 * time.Second

// RunCommand drives a load run against a ping-pong server.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run a load generation swarm against a server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file; flags override file values",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Target host",
				Value: types.DefaultTargetHost,
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Target port",
				Value: types.DefaultPort,
			},
			&cli.IntFlag{
				Name:    "users",
				Aliases: []string{"u"},
				Usage:   "Number of simulated clients",
				Value:   1,
			},
			&cli.DurationFlag{
				Name:  "min-wait",
				Usage: "Shortest pacing wait between cycles",
				Value: loadgen.DefaultMinWait,
			},
			&cli.DurationFlag{
				Name:  "max-wait",
				Usage: "Longest pacing wait between cycles",
				Value: loadgen.DefaultMaxWait,
			},
			&cli.Float64Flag{
				Name:  "spawn-rate",
				Usage: "Users started per second (0 starts all at once)",
			},
			&cli.DurationFlag{
				Name:    "duration",
				Aliases: []string{"d"},
				Usage:   "Stop the run after this long (0 runs until interrupted)",
			},
			&cli.IntFlag{
				Name:  "weight",
				Usage: "Relative selection weight of the ping-pong task",
				Value: 1,
			},
			&cli.Int64Flag{
				Name:  "seed",
				Usage: "RNG seed for reproducible pacing (0 uses the clock)",
			},
			&cli.UintFlag{
				Name:  "max-payload",
				Usage: "Largest accepted frame payload in bytes",
				Value: wire.DefaultMaxPayload,
			},
			&cli.DurationFlag{
				Name:  "dial-timeout",
				Usage: "Connect deadline (0 disables)",
				Value: defaultDialTimeout,
			},
			&cli.DurationFlag{
				Name:  "read-timeout",
				Usage: "Per-read deadline (0 disables)",
				Value: defaultFrameTimeout,
			},
			&cli.DurationFlag{
				Name:  "write-timeout",
				Usage: "Per-write deadline (0 disables)",
				Value: defaultFrameTimeout,
			},
			&cli.StringFlag{
				Name:    "journal",
				Aliases: []string{"j"},
				Usage:   "Write every outcome to this journal file",
			},
			&cli.StringFlag{
				Name:  "s3-path",
				Usage: "Export the journal to s3://bucket/prefix after the run",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address (e.g. :9100)",
			},
			&cli.DurationFlag{
				Name:  "report-interval",
				Usage: "Spacing of progress log lines",
				Value: metrics.DefaultReportInterval,
			},
			FormatFlag,
			TUIFlag,
			VerboseFlag,
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	settings, err := loadRunSettings(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfig)
	}

	logger := log.NewLogger("run", c.Bool("verbose"))
	defer iox.DiscardErr(logger.Sync)
	runID := uuid.NewString()
	target := settings.Addr()
	rlog := logger.With(map[string]any{"run_id": runID})

	collector := metrics.NewCollector(runID, target)
	reporters := types.MultiReporter{
		collector,
		types.ReporterFunc(observability.RecordOutcome),
	}

	var jw *journal.Writer
	if settings.Journal != "" {
		jw, err = journal.NewWriter(settings.Journal, runID, rlog)
		if err != nil {
			return cli.Exit(err.Error(), exitFailure)
		}
		reporters = append(reporters, jw)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if settings.MetricsAddr != "" {
		go func() {
			if err := observability.Serve(ctx, settings.MetricsAddr, rlog); err != nil {
				rlog.Error("metrics endpoint failed", map[string]any{"error": err.Error()})
			}
		}()
	}

	clientCfg := client.Config{
		Host:         settings.Host,
		Port:         settings.Port,
		DialTimeout:  settings.DialTimeout,
		ReadTimeout:  settings.ReadTimeout,
		WriteTimeout: settings.WriteTimeout,
		MaxPayload:   settings.MaxPayload,
	}
	factory := func(id string) (*loadgen.User, error) {
		cl := client.New(clientCfg, id, reporters, rlog)
		return &loadgen.User{
			ID:      id,
			Session: cl,
			Tasks: []loadgen.Task{
				{Name: "ping-pong", Weight: settings.Weight, Run: cl.PingPong},
			},
			MinWait: settings.MinWait,
			MaxWait: settings.MaxWait,
		}, nil
	}
	swarm := loadgen.New(loadgen.Config{
		Users:     settings.Users,
		SpawnRate: settings.SpawnRate,
		Duration:  settings.Duration,
		Seed:      settings.Seed,
	}, factory, rlog)

	rlog.Info("run starting", map[string]any{
		"target": target,
		"users":  settings.Users,
	})

	startedAt := time.Now()
	var res loadgen.Result
	if c.Bool("tui") {
		res, err = runWithDashboard(ctx, swarm, tui.Config{
			RunID:    runID,
			Target:   target,
			Users:    settings.Users,
			Snapshot: collector.Snapshot,
			Active:   swarm.Active,
		})
	} else {
		metrics.StartReporter(ctx, rlog, collector, settings.ReportInterval, swarm.Active)
		res, err = swarm.Run(ctx)
	}
	finishedAt := time.Now()
	if err != nil {
		// A factory failure aborts the run; outcomes recorded before the
		// abort are still summarized below, after the journal is sealed.
		rlog.Error("run aborted", map[string]any{"error": err.Error()})
	}
	runErr := err

	if jw != nil {
		if cerr := jw.Close(); cerr != nil {
			rlog.Error("journal close failed", map[string]any{"error": cerr.Error()})
		}
		if n := jw.Dropped(); n > 0 {
			rlog.Warn("journal dropped outcomes", map[string]any{"dropped": n})
		}
	}

	snap := collector.Snapshot()
	summary := buildRunSummary(runID, target, startedAt, finishedAt, settings.Users, res, snap, settings.Journal)

	// Export and publish survive an interrupted run context.
	postCtx, cancel := context.WithTimeout(context.Background(), postRunTimeout)
	defer cancel()

	if settings.S3Path != "" && jw != nil {
		exportJournal(postCtx, rlog, settings, runID, jw.Path())
	}
	publishSummary(postCtx, rlog, settings.Adapter, summary)

	r, rerr := render.NewRenderer(c)
	if rerr != nil {
		return cli.Exit(rerr.Error(), exitConfig)
	}
	if err := r.Render(buildRunReport(summary, res, snap)); err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}

	if runErr != nil {
		return cli.Exit(runErr.Error(), exitFailure)
	}
	// Failed outcomes are data, not an error: a run that completed its
	// schedule exits 0 regardless of what the measurements say.
	return nil
}

// runWithDashboard supervises the swarm under a live TUI. Quitting the
// dashboard stops the run; the swarm finishing stops the dashboard.
func runWithDashboard(ctx context.Context, swarm *loadgen.Swarm, cfg tui.Config) (loadgen.Result, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	prog := tui.NewProgram(cfg)

	var res loadgen.Result
	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		res, runErr = swarm.Run(runCtx)
		prog.Send(tui.DoneMsg{})
	}()

	if _, err := prog.Run(); err != nil {
		cancel()
		<-done
		return res, fmt.Errorf("dashboard: %w", err)
	}
	cancel()
	<-done
	return res, runErr
}

func exportJournal(ctx context.Context, logger *log.Logger, s runSettings, runID, path string) {
	bucket, prefix, err := journal.ParseS3Path(s.S3Path)
	if err != nil {
		logger.Error("journal export skipped", map[string]any{"error": err.Error()})
		return
	}
	exporter, err := journal.NewS3Exporter(ctx, journal.S3Config{
		Bucket:       bucket,
		Prefix:       prefix,
		Region:       s.S3Region,
		Endpoint:     s.S3Endpoint,
		UsePathStyle: s.S3PathStyle,
	}, logger)
	if err != nil {
		logger.Error("journal export failed", map[string]any{"error": err.Error()})
		return
	}
	location, err := exporter.Export(ctx, runID, path)
	if err != nil {
		logger.Error("journal export failed", map[string]any{"error": err.Error()})
		return
	}
	logger.Info("journal export complete", map[string]any{"location": location})
}

// publishSummary delivers the run summary through the configured adapter.
// Publish failures are logged, never fatal: the run's data is already on
// disk and on stdout.
func publishSummary(ctx context.Context, logger *log.Logger, cfg config.AdapterConfig, event *adapter.RunSummaryEvent) {
	if cfg.Type == "" {
		return
	}
	a, err := buildAdapter(cfg)
	if err != nil {
		logger.Error("summary publish skipped", map[string]any{"error": err.Error()})
		return
	}
	defer iox.DiscardClose(a)
	if err := a.Publish(ctx, event); err != nil {
		logger.Error("summary publish failed", map[string]any{
			"adapter": cfg.Type,
			"error":   err.Error(),
		})
		return
	}
	logger.Info("summary published", map[string]any{"adapter": cfg.Type})
}

func buildAdapter(cfg config.AdapterConfig) (adapter.Adapter, error) {
	switch cfg.Type {
	case "redis":
		retries := redisadapter.DefaultRetries
		if cfg.Retries != nil {
			retries = *cfg.Retries
		}
		return redisadapter.New(redisadapter.Config{
			URL:     cfg.URL,
			Channel: cfg.Channel,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	case "webhook":
		retries := webhook.DefaultRetries
		if cfg.Retries != nil {
			retries = *cfg.Retries
		}
		return webhook.New(webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type %q (must be redis or webhook)", cfg.Type)
	}
}

func buildRunSummary(runID, target string, startedAt, finishedAt time.Time, users int, res loadgen.Result, snap metrics.Snapshot, journalPath string) *adapter.RunSummaryEvent {
	outcome := adapter.OutcomeCompleted
	if res.Canceled {
		outcome = adapter.OutcomeAborted
	}
	return &adapter.RunSummaryEvent{
		SchemaVersion: adapter.SchemaVersion,
		EventType:     adapter.EventTypeRunSummary,
		RunID:         runID,
		Target:        target,
		StartedAt:     startedAt.UTC().Format(time.RFC3339),
		FinishedAt:    finishedAt.UTC().Format(time.RFC3339),
		Outcome:       outcome,
		Users:         users,
		Connects:      opTotals(snap.Connect),
		PingPongs:     opTotals(snap.PingPong),
		DurationMs:    finishedAt.Sub(startedAt).Milliseconds(),
		JournalPath:   journalPath,
	}
}

func opTotals(s metrics.OpStats) adapter.OpTotals {
	return adapter.OpTotals{
		Attempts:  s.Attempts,
		Successes: s.Successes,
		Failures:  s.Failures,
		MeanMs:    ms(s.MeanElapsed()),
	}
}

// Addr returns the host:port dial target.
func (s runSettings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
