package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/benchmark-cli/internal/mapping"
	"github.com/sells-group/benchmark-cli/internal/model"
	"github.com/sells-group/benchmark-cli/internal/pipeline"
)

var (
	analyzeBanks    []string
	analyzeProduct  string
	analyzeCriteria []string
	analyzeURLs     []string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the LLM analysis pipeline for competitor pages",
	Long: "Expands the URL mapping into per-(bank, criterion) tasks, fetches and cleans each page, " +
		"extracts one fact per page and stores it. With --url, analyzes the given pages directly for a single task.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		a, err := newAnalyzer()
		if err != nil {
			return err
		}
		p := pipeline.NewAnalysis(newFetcher(), a, st, cfg.Fetch.Concurrency)

		var tasks []model.Task
		if len(analyzeURLs) > 0 {
			tasks = []model.Task{{
				Competitor: analyzeBanks[0],
				Product:    analyzeProduct,
				Criterion:  analyzeCriteria[0],
				URLs:       analyzeURLs,
			}}
		} else {
			m, err := mapping.Load(cfg.Mapping.Path)
			if err != nil {
				return err
			}
			tasks = m.GenerateTasks(analyzeBanks, analyzeProduct, analyzeCriteria)
		}
		if len(tasks) == 0 {
			zap.L().Warn("no tasks generated, check the mapping file")
			return nil
		}

		summary := struct {
			Tasks   int                `json:"tasks"`
			Pages   int                `json:"pages"`
			Failed  int                `json:"failed"`
			Results []model.PageResult `json:"results"`
		}{Tasks: len(tasks)}

		for _, task := range tasks {
			results, err := p.Run(ctx, task)
			if err != nil {
				return err
			}
			for _, r := range results {
				summary.Pages++
				if r.Err != "" {
					summary.Failed++
				}
				summary.Results = append(summary.Results, r)
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	analyzeCmd.Flags().StringSliceVar(&analyzeBanks, "bank", nil, "bank slug (repeatable, required)")
	analyzeCmd.Flags().StringVar(&analyzeProduct, "product", "", "product slug (required)")
	analyzeCmd.Flags().StringSliceVar(&analyzeCriteria, "criterion", nil, "criterion slug (repeatable, required)")
	analyzeCmd.Flags().StringSliceVar(&analyzeURLs, "url", nil, "analyze these URLs directly instead of the mapping")
	_ = analyzeCmd.MarkFlagRequired("bank")
	_ = analyzeCmd.MarkFlagRequired("product")
	_ = analyzeCmd.MarkFlagRequired("criterion")
	rootCmd.AddCommand(analyzeCmd)
}
