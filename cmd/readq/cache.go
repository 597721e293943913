package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	cachepkg "github.com/pario-ai/readq/pkg/cache/sqlite"
	"github.com/pario-ai/readq/pkg/config"
)

func newCacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the prompt cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			stats, err := c.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Entries:  %d\nHits:     %d\nMisses:   %d\nHit rate: %.1f%%\n",
				stats.Entries, stats.Hits, stats.Misses, stats.HitRate())
			return nil
		},
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the newest cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			entries, err := c.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("Cache is empty.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "HASH\tPROVIDER\tMODEL\tCREATED\tEXPIRES")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.PromptHash[:12], e.Provider, e.Model,
					e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					e.CreatedAt.Add(e.TTL).Local().Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")

	var expiredOnly bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			n, err := c.Clear(cmd.Context(), expiredOnly)
			if err != nil {
				return err
			}
			if expiredOnly {
				fmt.Printf("Cleared %d expired cache entries.\n", n)
			} else {
				fmt.Printf("Cleared %d cache entries.\n", n)
			}
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only clear expired entries")

	cmd.AddCommand(statsCmd, listCmd, clearCmd)
	return cmd
}

func openCache(configPath string) (*cachepkg.Cache, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c, err := cachepkg.New(cfg.CachePath(), cfg.Cache.TTL)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	return c, nil
}
