package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pario-ai/readq/pkg/models"
	"github.com/pario-ai/readq/pkg/registry"
)

func newModelsCmd() *cobra.Command {
	var providerName string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the model catalog and prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tMODEL ID\tPROVIDER\tTIER\tIN $/1M\tOUT $/1M\tCONTEXT")
			for _, key := range registry.Keys() {
				_, m, _ := registry.Lookup(key)
				if providerName != "" && !strings.EqualFold(string(m.Provider), providerName) {
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.3f\t%.3f\t%d\n",
					key, m.ID, m.Provider, m.Tier, m.InputCostPer1M, m.OutputCostPer1M, m.MaxInputTokens)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&providerName, "provider", "", "only list models of this provider")
	return cmd
}

func newKeysCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Check configured provider API keys",
	}

	testCmd := &cobra.Command{
		Use:   "test [provider]",
		Short: "Send a minimal request with each configured key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := openApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			targets := models.AllProviders
			if len(args) == 1 {
				pt := models.ProviderType(strings.ToLower(args[0]))
				if !pt.Valid() {
					return fmt.Errorf("unknown provider %q", args[0])
				}
				targets = []models.ProviderType{pt}
			}

			keys := a.svc.Settings().APIKeys
			valid := make([]bool, len(targets))
			g, gctx := errgroup.WithContext(ctx)
			for i, pt := range targets {
				if keys[pt] == "" {
					continue
				}
				g.Go(func() error {
					valid[i] = a.svc.TestAPIKey(gctx, pt, keys[pt])
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tKEY\tFORMAT\tSTATUS")
			for i, pt := range targets {
				key := keys[pt]
				if key == "" {
					fmt.Fprintf(w, "%s\t-\t-\tnot configured\n", pt)
					continue
				}
				format := "ok"
				if !registry.ValidKeyFormat(pt, key) {
					format = "unexpected"
				}
				status := "invalid"
				if valid[i] {
					status = "valid"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", pt, maskKey(key), format, status)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(testCmd)
	return cmd
}

func maskKey(key string) string {
	if len(key) <= 12 {
		return strings.Repeat("*", len(key))
	}
	return key[:6] + "..." + key[len(key)-4:]
}
