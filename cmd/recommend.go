package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/benchmark-cli/internal/analyzer"
	"github.com/sells-group/benchmark-cli/internal/model"
	"github.com/sells-group/benchmark-cli/internal/recommend"
	"github.com/sells-group/benchmark-cli/internal/store"
)

var (
	recommendCompetitor string
	recommendProduct    string
	recommendCriterion  string
	recommendLimit      int
	recommendList       bool
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Generate recommendations from stored facts, or list existing ones",
	Long: "Without --list, queries matching facts and generates one recommendation per fact " +
		"through the configured provider. With --list, prints recommendations already stored.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if recommendList {
			recs, err := st.ListRecommendations(ctx, store.RecommendationFilter{
				Competitor: recommendCompetitor,
				Product:    recommendProduct,
				Limit:      recommendLimit,
			})
			if err != nil {
				return err
			}
			if recs == nil {
				recs = []model.Recommendation{}
			}
			return enc.Encode(recs)
		}

		provider, err := analyzer.FromConfig(cfg)
		if err != nil {
			return err
		}
		gen := recommend.NewGenerator(provider)

		facts, err := st.QueryFacts(ctx, model.FactFilter{
			Competitor: recommendCompetitor,
			Product:    recommendProduct,
			Criterion:  recommendCriterion,
			Limit:      recommendLimit,
		})
		if err != nil {
			return err
		}

		out := make([]model.Recommendation, 0, len(facts))
		for i := range facts {
			fact := &facts[i]
			text, err := gen.Generate(ctx, fact)
			if err != nil {
				zap.L().Warn("recommendation skipped",
					zap.String("fact_id", fact.ID),
					zap.Error(err),
				)
				continue
			}
			id, err := st.InsertRecommendation(ctx, fact.ID, text)
			if err != nil {
				return err
			}
			out = append(out, model.Recommendation{ID: id, FactID: fact.ID, Text: text})
		}

		zap.L().Info("recommendations generated",
			zap.Int("facts", len(facts)),
			zap.Int("stored", len(out)),
		)
		return enc.Encode(out)
	},
}

func init() {
	recommendCmd.Flags().StringVar(&recommendCompetitor, "competitor", "", "filter by competitor slug")
	recommendCmd.Flags().StringVar(&recommendProduct, "product", "", "filter by product slug")
	recommendCmd.Flags().StringVar(&recommendCriterion, "criterion", "", "filter by criterion slug")
	recommendCmd.Flags().IntVar(&recommendLimit, "limit", 5, "maximum facts or rows")
	recommendCmd.Flags().BoolVar(&recommendList, "list", false, "list stored recommendations instead of generating")
	rootCmd.AddCommand(recommendCmd)
}
