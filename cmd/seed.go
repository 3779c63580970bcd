package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/benchmark-cli/internal/model"
	"github.com/sells-group/benchmark-cli/internal/store"
)

var seedBanks = []model.Bank{
	{ID: "sber", Name: "Sberbank", Website: "https://sber.ru"},
	{ID: "vtb", Name: "VTB", Website: "https://vtb.ru"},
	{ID: "alfa", Name: "Alfa-Bank", Website: "https://alfa.ru"},
	{ID: "uralsib", Name: "Uralsib", Website: "https://uralsib.ru"},
	{ID: "gazprombank", Name: "Gazprombank", Website: "https://gazprombank.ru"},
}

var seedProducts = []model.Product{
	{ID: "deposits", Name: "Deposits", Description: "Retail deposit products"},
	{ID: "credits", Name: "Credits", Description: "Consumer credit products"},
	{ID: "cards", Name: "Cards", Description: "Debit and credit cards"},
	{ID: "tariffs", Name: "Tariffs", Description: "Account service tariffs"},
}

var seedCriteria = []model.Criterion{
	{ID: "cost", Name: "Cost of service"},
	{ID: "sms", Name: "SMS notifications"},
	{ID: "withdrawal", Name: "Cash withdrawal"},
	{ID: "transfers", Name: "Transfers"},
	{ID: "interest", Name: "Interest on balance"},
	{ID: "limit", Name: "Limits"},
	{ID: "rate", Name: "Rate"},
	{ID: "payment", Name: "Minimum payment"},
	{ID: "loyalty", Name: "Loyalty program"},
	{ID: "cashback", Name: "Cashback"},
	{ID: "grace", Name: "Grace period"},
}

var seedSources = []model.Source{
	{Name: "Banki.ru", URL: "https://banki.ru", Description: "Bank product aggregator"},
	{Name: "Sravni.ru", URL: "https://sravni.ru", Description: "Financial product comparison service"},
	{Name: "Frankrg.com", URL: "https://frankrg.com", Description: "Frank RG research agency"},
	{Name: "RBK.ru", URL: "https://www.rbc.ru/quotes", Description: "RBC market quotes"},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the initial set of banks, products, criteria and sources",
	Long: "Upserts the reference data the pipeline depends on. Safe to run repeatedly: " +
		"existing rows are updated in place, nothing is deleted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := runSeed(ctx, st); err != nil {
			return err
		}

		zap.L().Info("seed complete",
			zap.Int("banks", len(seedBanks)),
			zap.Int("products", len(seedProducts)),
			zap.Int("criteria", len(seedCriteria)),
			zap.Int("sources", len(seedSources)),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d banks, %d products, %d criteria, %d sources\n",
			len(seedBanks), len(seedProducts), len(seedCriteria), len(seedSources))
		return nil
	},
}

func runSeed(ctx context.Context, st store.Store) error {
	for _, b := range seedBanks {
		if err := st.UpsertBank(ctx, b); err != nil {
			return err
		}
	}
	for _, p := range seedProducts {
		if err := st.UpsertProduct(ctx, p); err != nil {
			return err
		}
	}
	for _, c := range seedCriteria {
		if err := st.UpsertCriterion(ctx, c); err != nil {
			return err
		}
	}
	for _, src := range seedSources {
		if err := st.UpsertSource(ctx, src); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
