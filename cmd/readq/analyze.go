package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pario-ai/readq/pkg/analysis"
	"github.com/pario-ai/readq/pkg/models"
)

func newAnalyzeCmd(configPath *string) *cobra.Command {
	var (
		itemID   string
		tags     []string
		language string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <url>",
		Short: "Fetch a URL and summarize, tag and prioritize it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := openApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if itemID == "" {
				itemID = "item_" + uuid.NewString()
			}
			out := a.analyzer.AnalyzeURL(ctx, analysis.AnalyzeURLInput{
				ItemID:       itemID,
				URL:          args[0],
				ExistingTags: tags,
				Language:     language,
			})
			if !out.Success {
				return errors.New(out.Error)
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), out.Analysis.ToData())
			}
			printAnalysis(cmd.OutOrStdout(), out.Analysis)
			return nil
		},
	}
	cmd.Flags().StringVar(&itemID, "item", "", "reading item id (generated when empty)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "existing tag on the item (repeatable)")
	cmd.Flags().StringVar(&language, "language", "", "preferred output language")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the stored analysis record as JSON")
	return cmd
}

func newTopicsCmd(configPath *string) *cobra.Command {
	var (
		title    string
		url      string
		summary  string
		insights []string
		notes    string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Suggest permanent-note topics for a reading",
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" {
				return errors.New("--title is required")
			}
			ctx := context.Background()
			a, err := openApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			in := analysis.NoteTopicsInput{Title: title, URL: url, UserNotes: notes}
			if summary != "" || len(insights) > 0 {
				in.Analysis = &models.ContentAnalysis{Summary: summary, KeyInsights: insights}
			}
			out := a.analyzer.SuggestNoteTopics(ctx, in)
			if !out.Success {
				return errors.New(out.Error)
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), out.Topics)
			}
			w := cmd.OutOrStdout()
			for i, t := range out.Topics {
				fmt.Fprintf(w, "%d. %s\n", i+1, t.Title)
				if t.Description != "" {
					fmt.Fprintf(w, "   %s\n", t.Description)
				}
				for _, p := range t.KeyPoints {
					fmt.Fprintf(w, "   - %s\n", p)
				}
				if len(t.SuggestedTags) > 0 {
					fmt.Fprintf(w, "   tags: %s\n", strings.Join(t.SuggestedTags, ", "))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title of the reading")
	cmd.Flags().StringVar(&url, "url", "", "source URL")
	cmd.Flags().StringVar(&summary, "summary", "", "summary from a previous analysis")
	cmd.Flags().StringSliceVar(&insights, "insight", nil, "key insight (repeatable)")
	cmd.Flags().StringVar(&notes, "notes", "", "your own notes on the reading")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print topics as JSON")
	return cmd
}

func newTagsCmd(configPath *string) *cobra.Command {
	var (
		file     string
		existing []string
		vault    []string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "tags [text]",
		Short: "Suggest tags for a piece of text",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readContent(args, file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			ctx := context.Background()
			a, err := openApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			out := a.analyzer.SuggestTags(ctx, analysis.SuggestTagsInput{
				Content:      content,
				ExistingTags: existing,
				VaultTags:    vault,
				Limit:        limit,
			})
			if !out.Success {
				return errors.New(out.Error)
			}
			for _, t := range out.SuggestedTags {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read text from a file (- for stdin)")
	cmd.Flags().StringSliceVar(&existing, "existing", nil, "tags already applied")
	cmd.Flags().StringSliceVar(&vault, "vault", nil, "tags already used elsewhere in the vault")
	cmd.Flags().IntVar(&limit, "limit", 5, "maximum suggestions")
	return cmd
}

func readContent(args []string, file string, stdin io.Reader) (string, error) {
	switch {
	case len(args) == 1:
		return args[0], nil
	case file == "-":
		data, err := io.ReadAll(stdin)
		return string(data), err
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", file, err)
		}
		return string(data), nil
	default:
		return "", errors.New("provide text as an argument or with --file")
	}
}

func printAnalysis(w io.Writer, a *models.ContentAnalysis) {
	if a.Title != "" {
		fmt.Fprintf(w, "%s\n\n", a.Title)
	}
	fmt.Fprintf(w, "%s\n", a.Summary)
	if a.HasInsights() {
		fmt.Fprintln(w, "\nKey insights:")
		for _, k := range a.KeyInsights {
			fmt.Fprintf(w, "  - %s\n", k)
		}
	}
	fmt.Fprintln(w)
	if a.HasSuggestedTags() {
		fmt.Fprintf(w, "Tags:         %s\n", strings.Join(a.SuggestedTags, ", "))
	}
	if a.SuggestedPriority != nil {
		fmt.Fprintf(w, "Priority:     %s\n", *a.SuggestedPriority)
	}
	if rt := a.ReadingTimeDisplay(); rt != "" {
		fmt.Fprintf(w, "Reading time: %s\n", rt)
	}
	if a.Language != "" {
		fmt.Fprintf(w, "Language:     %s\n", a.Language)
	}
	fmt.Fprintf(w, "Model:        %s/%s\n", a.Provider, a.Model)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
