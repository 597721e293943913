package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/readq/pkg/config"
	"github.com/pario-ai/readq/pkg/cost"
	"github.com/pario-ai/readq/pkg/logger"
	"github.com/pario-ai/readq/pkg/models"
	"github.com/pario-ai/readq/pkg/tracker"
)

func newCostCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cost",
		Short: "Inspect and manage the AI cost ledger",
	}

	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Show total spend by provider and model",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLedger(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer l.close()
			return writeCostSummary(cmd.OutOrStdout(), l.costs.Summary())
		},
	}

	var since string
	totalsCmd := &cobra.Command{
		Use:   "totals",
		Short: "Show usage grouped by provider, model and feature",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLedger(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer l.close()

			sinceTime := beginningOfMonth()
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				sinceTime = t
			}
			totals, err := l.store.Totals(cmd.Context(), sinceTime)
			if err != nil {
				return err
			}
			return writeTotals(cmd.OutOrStdout(), totals)
		},
	}
	totalsCmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD, default: start of month)")

	var limit int
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent billed calls, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLedger(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer l.close()
			return writeHistory(cmd.OutOrStdout(), l.costs.History(limit))
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records (0 for all)")

	exportCmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write the ledger as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLedger(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer l.close()

			data, err := l.costs.ExportRecords()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			return os.WriteFile(args[0], data, 0o600)
		},
	}

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the ledger with records from a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			l, err := openLedger(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer l.close()

			if err := l.costs.ImportRecords(data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d records.\n", l.costs.RecordCount())
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every ledger record",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLedger(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer l.close()

			n := l.costs.RecordCount()
			l.costs.Clear()
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d records.\n", n)
			return nil
		},
	}

	cmd.AddCommand(summaryCmd, totalsCmd, historyCmd, exportCmd, importCmd, clearCmd)
	return cmd
}

// ledger is the cost tracker loaded from its SQLite store, without any
// provider wiring.
type ledger struct {
	cfg   *config.Config
	store *tracker.SQLiteTracker
	costs *cost.Tracker
}

func openLedger(ctx context.Context, configPath string) (*ledger, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	store, err := tracker.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init ledger store: %w", err)
	}
	log := logger.New(cfg.LogLevel, "readq")
	costs := cost.New(cfg.AI.BudgetLimit, cost.WithStore(store), cost.WithLogger(log))
	if err := costs.Load(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return &ledger{cfg: cfg, store: store, costs: costs}, nil
}

func (l *ledger) close() { _ = l.store.Close() }

func beginningOfMonth() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func writeCostSummary(out io.Writer, s models.CostSummary) error {
	if s.RecordCount == 0 {
		_, err := fmt.Fprintln(out, "No usage recorded.")
		return err
	}
	fmt.Fprintf(out, "Total cost:    $%.4f\n", s.TotalCost)
	fmt.Fprintf(out, "Requests:      %d\n", s.RecordCount)
	fmt.Fprintf(out, "Input tokens:  %d\n", s.TotalInputTokens)
	fmt.Fprintf(out, "Output tokens: %d\n\n", s.TotalOutputTokens)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GROUP\tNAME\tCOST")
	for _, k := range sortedKeys(s.ByProvider) {
		fmt.Fprintf(w, "provider\t%s\t$%.4f\n", k, s.ByProvider[k])
	}
	for _, k := range sortedKeys(s.ByModel) {
		fmt.Fprintf(w, "model\t%s\t$%.4f\n", k, s.ByModel[k])
	}
	return w.Flush()
}

func writeTotals(out io.Writer, totals []models.UsageTotals) error {
	if len(totals) == 0 {
		_, err := fmt.Fprintln(out, "No usage in this period.")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tMODEL\tFEATURE\tREQUESTS\tINPUT\tOUTPUT\tCOST")
	var total float64
	for _, t := range totals {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t$%.4f\n",
			t.Provider, t.Model, defaultStr(t.Feature, "(direct)"),
			t.RequestCount, t.InputTokens, t.OutputTokens, t.Cost)
		total += t.Cost
	}
	fmt.Fprintf(w, "\t\t\t\t\tTOTAL\t$%.4f\n", total)
	return w.Flush()
}

func writeHistory(out io.Writer, records []models.UsageRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, "No usage recorded.")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tPROVIDER\tMODEL\tFEATURE\tINPUT\tOUTPUT\tCOST")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t$%.6f\n",
			r.Timestamp.Local().Format("2006-01-02 15:04:05"), r.Provider, r.Model,
			defaultStr(r.Feature, "-"), r.InputTokens, r.OutputTokens, r.Cost)
	}
	return w.Flush()
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func defaultStr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
