package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/fathomline/sounder/iox"
	"github.com/fathomline/sounder/log"
	"github.com/fathomline/sounder/observability"
	"github.com/fathomline/sounder/server"
	"github.com/fathomline/sounder/types"
	"github.com/fathomline/sounder/wire"
)

// ServeCommand runs the ping-pong server until SIGINT/SIGTERM.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the ping-pong server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Interface to bind",
				Value: types.DefaultServerHost,
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to bind",
				Value: types.DefaultPort,
			},
			&cli.UintFlag{
				Name:  "max-payload",
				Usage: "Largest accepted frame payload in bytes",
				Value: wire.DefaultMaxPayload,
			},
			&cli.DurationFlag{
				Name:  "read-timeout",
				Usage: "Per-read deadline on client connections (0 disables)",
			},
			&cli.DurationFlag{
				Name:  "write-timeout",
				Usage: "Per-write deadline on client connections (0 disables)",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address (e.g. :9100)",
			},
			VerboseFlag,
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	logger := log.NewLogger("server", c.Bool("verbose"))
	defer iox.DiscardErr(logger.Sync)

	srv := server.New(server.Config{
		Host:         c.String("host"),
		Port:         c.Int("port"),
		MaxPayload:   uint32(c.Uint("max-payload")),
		ReadTimeout:  c.Duration("read-timeout"),
		WriteTimeout: c.Duration("write-timeout"),
	}, logger)

	// Bind before installing signal handling so a bad --host/--port fails
	// fast with a plain error instead of hanging until interrupt.
	if err := srv.Listen(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down", nil)
		cancel()
	}()

	if addr := c.String("metrics-addr"); addr != "" {
		go func() {
			if err := observability.Serve(ctx, addr, logger); err != nil {
				logger.Error("metrics endpoint failed", map[string]any{"error": err.Error()})
			}
		}()
	}

	return srv.Serve(ctx)
}
