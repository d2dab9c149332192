package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// NewBackfillCmd creates the backfill command.
func NewBackfillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Load week-old and month-old leaderboards from the web archive",
		Long: `Backfill looks up archived captures of each leaderboard about 7 and 30 days
old and stores them as the week and month baselines. The month baseline walks
back through 30, 27, 25 and 21 days until a capture is found.

Baselines only survive the process when persistence is enabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := open(ctx, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.svc.Backfill(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}
