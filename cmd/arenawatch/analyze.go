package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/arenawatch/internal/adapters/report"
	"github.com/okian/arenawatch/internal/domain/model"
	"github.com/okian/arenawatch/internal/domain/types"
)

// Output formats of the analyze command.
const (
	formatJSON     = "json"
	formatMarkdown = "markdown"
)

// NewAnalyzeCmd creates the analyze command.
func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run one analysis pass and print it",
		Long: `Analyze fetches live data when the held snapshot is stale, compares it with
the week-old and month-old snapshots and prints fast risers, new stars and
enriched rankings.

Examples:
  # Markdown report of every category
  arenawatch analyze

  # JSON for the coding board only
  arenawatch analyze --category coding --format json`,
		Args: cobra.NoArgs,
		RunE: runAnalyze,
	}
	cmd.Flags().StringP("category", "c", "", "Analyze only this category (general, coding)")
	cmd.Flags().StringP("format", "f", formatMarkdown, "Output format: json or markdown")
	return cmd
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	format = strings.ToLower(format)
	if format != formatJSON && format != formatMarkdown {
		return fmt.Errorf("unsupported format %q (use json or markdown)", format)
	}

	cats := model.Categories()
	if s, _ := cmd.Flags().GetString("category"); s != "" {
		cat, err := model.ParseCategory(s)
		if err != nil {
			return err
		}
		cats = []model.Category{cat}
	}

	ctx := cmd.Context()
	rt, err := open(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	analyses := make([]*types.Analysis, 0, len(cats))
	for _, cat := range cats {
		a, err := rt.svc.Analyze(ctx, cat)
		if err != nil {
			return fmt.Errorf("analyze %s: %w", cat, err)
		}
		analyses = append(analyses, a)
	}

	out := cmd.OutOrStdout()
	if format == formatMarkdown {
		return report.NewMarkdownWriter(out).Write(analyses...)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if len(analyses) == 1 {
		return enc.Encode(analyses[0])
	}
	return enc.Encode(analyses)
}
