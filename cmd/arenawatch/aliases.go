package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/arenawatch/internal/domain/identity"
)

// NewAliasesCmd creates the aliases command group.
func NewAliasesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aliases",
		Short: "Inspect model identity resolution",
	}
	cmd.AddCommand(newAliasesResolveCmd())
	return cmd
}

func newAliasesResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <name>...",
		Short: "Print the canonical key of each name",
		Long: `Resolve normalizes each raw model name as the given source spells it and
applies the configured alias table, printing one "name<TAB>key" line per
argument. Names that share a key are reported afterwards.

Examples:
  arenawatch aliases resolve gpt-4o-2024-08-06 "GPT 4o"
  arenawatch aliases resolve --source openrouter openai/gpt-4o:free`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			resolver, err := newResolver(cfg)
			if err != nil {
				return err
			}
			raw, _ := cmd.Flags().GetString("source")
			source, err := parseSource(raw)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, name := range args {
				fmt.Fprintf(out, "%s\t%s\n", name, resolver.Resolve(source, name))
			}
			for _, c := range resolver.Collisions() {
				fmt.Fprintf(out, "# %s <- %s\n", c.Key, strings.Join(c.Raw, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringP("source", "s", string(identity.SourceArena), "Source spelling rules: arena, openrouter, wayback")
	return cmd
}

func parseSource(s string) (identity.Source, error) {
	switch src := identity.Source(strings.ToLower(strings.TrimSpace(s))); src {
	case identity.SourceArena, identity.SourceOpenRouter, identity.SourceWayback, identity.SourceAny:
		return src, nil
	}
	return "", fmt.Errorf("unknown source %q", s)
}
