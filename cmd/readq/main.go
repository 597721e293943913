package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "readq",
		Short:         "readq, AI enrichment for a reading queue",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to readq config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newMCPCmd(&configPath),
		newAnalyzeCmd(&configPath),
		newTopicsCmd(&configPath),
		newTagsCmd(&configPath),
		newGenerateCmd(&configPath),
		newCostCmd(&configPath),
		newBudgetCmd(&configPath),
		newModelsCmd(),
		newKeysCmd(&configPath),
		newCacheCmd(&configPath),
		newAuditCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
