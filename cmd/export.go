package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/benchmark-cli/internal/export"
	"github.com/sells-group/benchmark-cli/internal/model"
)

var (
	exportProduct  string
	exportOutput   string
	exportBanks    []string
	exportCriteria []string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the latest comparison to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		result, err := st.LatestComparison(ctx, exportProduct, exportBanks, exportCriteria)
		if err != nil {
			return err
		}

		banks, err := st.ListBanks(ctx)
		if err != nil {
			return err
		}
		criteria, err := st.ListCriteria(ctx)
		if err != nil {
			return err
		}
		banks = filterBanks(banks, exportBanks)
		criteria = filterCriteria(criteria, exportCriteria)

		if err := export.WriteComparison(result, banks, criteria, exportOutput); err != nil {
			return err
		}

		zap.L().Info("comparison exported",
			zap.String("product", exportProduct),
			zap.String("output", exportOutput),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", exportOutput)
		return nil
	},
}

func filterBanks(banks []model.Bank, ids []string) []model.Bank {
	if len(ids) == 0 {
		return banks
	}
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := banks[:0]
	for _, b := range banks {
		if want[b.ID] {
			out = append(out, b)
		}
	}
	return out
}

func filterCriteria(criteria []model.Criterion, ids []string) []model.Criterion {
	if len(ids) == 0 {
		return criteria
	}
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := criteria[:0]
	for _, c := range criteria {
		if want[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

func init() {
	exportCmd.Flags().StringVar(&exportProduct, "product", "", "product slug (required)")
	exportCmd.Flags().StringVar(&exportOutput, "output", "comparison.xlsx", "output file path")
	exportCmd.Flags().StringSliceVar(&exportBanks, "bank", nil, "restrict to these bank slugs")
	exportCmd.Flags().StringSliceVar(&exportCriteria, "criterion", nil, "restrict to these criterion slugs")
	_ = exportCmd.MarkFlagRequired("product")
	rootCmd.AddCommand(exportCmd)
}
