package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/benchmark-cli/internal/pipeline"
)

var (
	ingestProduct string
	ingestNote    string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run the batch ingestion job into a new snapshot",
	Long: "Creates a new snapshot for the product, parses every known bank with the configured parser " +
		"and upserts one feature value per (bank, criterion). Per-bank failures are logged and skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		parser, err := newParser()
		if err != nil {
			return err
		}

		job := pipeline.NewIngest(st, parser, cfg.Ingest.Concurrency)
		result, err := job.Run(ctx, ingestProduct, ingestNote)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestProduct, "product", "", "product slug (required)")
	ingestCmd.Flags().StringVar(&ingestNote, "note", "", "free-text note stored on the snapshot")
	_ = ingestCmd.MarkFlagRequired("product")
	rootCmd.AddCommand(ingestCmd)
}
