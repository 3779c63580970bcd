package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/benchmark-cli/internal/model"
)

var statusStuckAfter time.Duration

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show row counts and snapshots stuck mid-parse",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		counts, err := st.Counts(ctx)
		if err != nil {
			return err
		}

		stuck, err := st.StuckSnapshots(ctx, statusStuckAfter)
		if err != nil {
			return err
		}
		if stuck == nil {
			stuck = []model.Snapshot{}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"counts":      counts,
			"stuck":       stuck,
			"stuck_after": statusStuckAfter.String(),
		})
	},
}

func init() {
	statusCmd.Flags().DurationVar(&statusStuckAfter, "stuck-after", time.Hour,
		"age after which a non-terminal snapshot counts as stuck")
	rootCmd.AddCommand(statusCmd)
}
