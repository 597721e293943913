package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pario-ai/readq/pkg/analysis"
	"github.com/pario-ai/readq/pkg/models"
)

func newGenerateCmd(configPath *string) *cobra.Command {
	var (
		system      string
		feature     string
		model       string
		temperature float64
		maxTokens   int
	)

	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Send one prompt to the configured provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := models.Feature(feature)
			if f != "" && !f.Valid() {
				return fmt.Errorf("unknown feature %q", feature)
			}
			ctx := context.Background()
			a, err := openApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := &models.RequestOptions{Model: model}
			if cmd.Flags().Changed("temperature") {
				opts.Temperature = &temperature
			}
			if cmd.Flags().Changed("max-tokens") {
				opts.MaxTokens = &maxTokens
			}
			spend := a.enforcer.Spend()

			var (
				resp  models.ProviderResponse
				route models.FeatureModel
			)
			if f != "" {
				route = a.svc.FeatureConfig(f)
				resp, err = a.svc.SimpleGenerateForFeature(ctx, f, args[0], system, opts, &spend)
			} else {
				route = models.FeatureModel{Provider: a.svc.Settings().Provider, Model: a.svc.CurrentModel()}
				resp, err = a.svc.SimpleGenerate(ctx, args[0], system, opts, &spend)
			}
			if err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("%s (%s)", resp.Error, resp.ErrorCode)
			}
			if model != "" {
				route.Model = model
			}
			if n := resp.Tokens(); n > 0 {
				in, out := analysis.SplitTokens(n)
				rec := a.costs.TrackUsage(string(route.Provider), route.Model, in, out, f)
				a.log.Debug().Str("id", rec.ID).Float64("cost", rec.Cost).Msg("generation billed")
			}
			if resp.Content == "" {
				return errors.New("provider returned no content")
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Content)
			return nil
		},
	}
	cmd.Flags().StringVarP(&system, "system", "s", "", "system prompt")
	cmd.Flags().StringVar(&feature, "feature", "", "route through a feature (url-analysis, tag-suggestion, insight-extraction)")
	cmd.Flags().StringVarP(&model, "model", "m", "", "model override")
	cmd.Flags().Float64Var(&temperature, "temperature", 0.7, "sampling temperature")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 4096, "maximum output tokens")
	return cmd
}
