package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/readq/pkg/audit"
	"github.com/pario-ai/readq/pkg/config"
	"github.com/pario-ai/readq/pkg/models"
)

func newAuditCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query and manage the provider call audit log",
	}

	cmd.AddCommand(
		newAuditSearchCmd(configPath),
		newAuditShowCmd(configPath),
		newAuditStatsCmd(configPath),
		newAuditCleanupCmd(configPath),
	)
	return cmd
}

func newAuditSearchCmd(configPath *string) *cobra.Command {
	var (
		providerName string
		model        string
		feature      string
		since        string
		keyPrefix    string
		failedOnly   bool
		limit        int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search audit log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openAuditLog(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = l.Close() }()

			opts := models.AuditQueryOpts{
				Provider:     providerName,
				Model:        model,
				Feature:      feature,
				APIKeyPrefix: keyPrefix,
				FailedOnly:   failedOnly,
				Limit:        limit,
			}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				opts.Since = t
			}

			entries, err := l.Query(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Print(formatAuditEntries(entries))
			return nil
		},
	}

	cmd.Flags().StringVar(&providerName, "provider", "", "filter by provider")
	cmd.Flags().StringVar(&model, "model", "", "filter by model")
	cmd.Flags().StringVar(&feature, "feature", "", "filter by feature")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&keyPrefix, "key-prefix", "", "filter by API key prefix")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "only failed calls")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum entries")
	return cmd
}

func newAuditShowCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <request-id>",
		Short: "Show a single audit entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openAuditLog(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = l.Close() }()

			entries, err := l.Query(cmd.Context(), models.AuditQueryOpts{RequestID: args[0], Limit: 1})
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No entry found for that request ID.")
				return nil
			}

			e := entries[0]
			fmt.Printf("Request ID:  %s\n", e.RequestID)
			fmt.Printf("Provider:    %s\n", e.Provider)
			fmt.Printf("Model:       %s\n", e.Model)
			fmt.Printf("Feature:     %s\n", defaultStr(e.Feature, "-"))
			fmt.Printf("API key:     %s...\n", e.APIKeyPrefix)
			fmt.Printf("Success:     %t\n", e.Success)
			if e.ErrorCode != "" {
				fmt.Printf("Error code:  %s\n", e.ErrorCode)
			}
			fmt.Printf("Cached:      %t\n", e.Cached)
			fmt.Printf("Attempts:    %d\n", e.Attempts)
			fmt.Printf("Tokens:      %d\n", e.TotalTokens)
			fmt.Printf("Latency:     %dms\n", e.LatencyMs)
			fmt.Printf("Time:        %s\n", e.CreatedAt.Format(time.RFC3339))
			if e.RequestBody != "" {
				fmt.Printf("\n--- Request ---\n%s\n", e.RequestBody)
			}
			if e.ResponseBody != "" {
				fmt.Printf("\n--- Response ---\n%s\n", e.ResponseBody)
			}
			return nil
		},
	}
}

func newAuditStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show call counts by provider, model and day",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openAuditLog(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = l.Close() }()

			stats, err := l.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				fmt.Println("No audit stats found.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DAY\tPROVIDER\tMODEL\tCALLS\tFAILURES")
			for _, s := range stats {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", s.Day, s.Provider, s.Model, s.Count, s.Failures)
			}
			return w.Flush()
		},
	}
}

func newAuditCleanupCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete entries older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openAuditLog(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = l.Close() }()

			deleted, err := l.Cleanup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d audit entries.\n", deleted)
			return nil
		},
	}
}

func openAuditLog(configPath string) (*audit.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	auditCfg := cfg.Audit
	auditCfg.DBPath = cfg.AuditPath()
	l, err := audit.New(auditCfg)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	return l, nil
}

func formatAuditEntries(entries []models.AuditEntry) string {
	if len(entries) == 0 {
		return "No audit entries found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-34s %-8s %-28s %-7s %-20s %8s %9s %-20s\n",
		"REQUEST ID", "PROVIDER", "MODEL", "STATUS", "ERROR", "TOKENS", "LATENCY", "TIME")
	b.WriteString(strings.Repeat("-", 142) + "\n")
	for _, e := range entries {
		status := "ok"
		switch {
		case !e.Success:
			status = "failed"
		case e.Cached:
			status = "cached"
		}
		fmt.Fprintf(&b, "%-34s %-8s %-28s %-7s %-20s %8d %7dms %-20s\n",
			e.RequestID, e.Provider, e.Model, status, defaultStr(e.ErrorCode, "-"),
			e.TotalTokens, e.LatencyMs, e.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return b.String()
}
