package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/readq/pkg/server"
)

func newServeCmd(configPath *string) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the readq HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if listen == "" {
				listen = a.cfg.Listen
			}
			srv := server.New(listen, a.svc, a.analyzer, a.costs, a.enforcer,
				server.WithLogger(a.log.With().Str("component", "server").Logger()),
				server.WithMetrics(a.metrics.Handler()))
			a.log.Info().
				Str("provider", string(a.cfg.AI.Provider)).
				Str("db", a.cfg.DBPath).
				Bool("cache", a.cache != nil).
				Bool("audit", a.auditor != nil).
				Msg("starting readq")
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	return cmd
}
