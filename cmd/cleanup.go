package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cleanupDays int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete old inactive snapshots",
	Long: "Removes snapshots older than the retention window that are no longer active. " +
		"Feature values cascade with their snapshot; the active snapshot is never touched.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		maxAge := cfg.Retention.MaxAge()
		if cmd.Flags().Changed("days") {
			maxAge = time.Duration(cleanupDays) * 24 * time.Hour
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		deleted, err := st.CleanupSnapshots(ctx, maxAge)
		if err != nil {
			return err
		}

		zap.L().Info("cleanup complete",
			zap.Int("deleted", deleted),
			zap.Duration("max_age", maxAge),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"deleted": deleted,
			"max_age": maxAge.String(),
		})
	},
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 0, "retention window in days (overrides config)")
	rootCmd.AddCommand(cleanupCmd)
}
