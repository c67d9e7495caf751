package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hetulpatel/dlrarb/internal/logging"
	"github.com/hetulpatel/dlrarb/internal/server"
	"github.com/hetulpatel/dlrarb/internal/tick"
)

var (
	serveParams   tick.Params
	serveAddr     string
	serveInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve ticks over HTTP",
	Long: `Serve /api/v1/tick, /api/v1/best, /healthz and /metrics. Each tick request runs
one cycle with the query overrides applied to the flag defaults. With --interval
the server also ticks on a schedule so sinks and metrics stay current.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyConfigDefaults(cmd.Flags(), &serveParams)
		if err := serveParams.Validate(); err != nil {
			return err
		}
		addr := cfg.HTTPAddr
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		opts := []server.Option{server.WithGatherer(a.metrics.Registry)}
		if a.journal != nil {
			opts = append(opts, server.WithJournal(a.journal))
		}
		srv := server.New(a.runner, serveParams, opts...)

		if serveInterval > 0 {
			go schedule(ctx, a.runner, serveParams, serveInterval)
		}
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	addParamFlags(serveCmd.Flags(), &serveParams)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address (default from DLRARB_HTTP_ADDR)")
	serveCmd.Flags().DurationVar(&serveInterval, "interval", 0, "tick on a schedule, 0 disables")
}

func schedule(ctx context.Context, runner *tick.Runner, p tick.Params, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if _, err := runner.Run(ctx, p); err != nil {
			logging.Errorf("[arb_monitor] scheduled tick: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
