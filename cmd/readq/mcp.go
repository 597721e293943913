package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/readq/pkg/mcp"
)

func newMCPCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve readq tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			deps := mcp.Deps{
				Ledger:      a.costs,
				Budget:      a.enforcer,
				BudgetLimit: a.budgetLimit,
				Analyzer:    a.analyzer,
			}
			// Typed nils would defeat the not-configured checks.
			if a.cache != nil {
				deps.Cache = a.cache
			}
			if a.auditor != nil {
				deps.Auditor = a.auditor
			}

			srv := mcp.New(deps, version, mcp.WithLogger(a.log.With().Str("component", "mcp").Logger()))
			return srv.Run(ctx, os.Stdin, os.Stdout)
		},
	}
}
