package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spareflow/spareflow/internal/config"
	"github.com/spareflow/spareflow/internal/resolver"
)

func resolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <merchant>",
		Short: "Resolve a merchant descriptor to a ticker",
		Long: `Run the tiered resolver against a raw merchant descriptor and print the
proposed mapping without queueing it for review.

Examples:
  spareflow resolve "STARBUCKS STORE #1234"
  spareflow resolve "ACME COFFEE LLC" --ticker-hint SBUX
  spareflow resolve "LOCAL MARKET" --category groceries`,
		Args: cobra.ExactArgs(1),
		RunE: runResolve,
	}

	cmd.Flags().String("ticker-hint", "", "User-supplied ticker hint")
	cmd.Flags().String("category", "", "Category hint (e.g. groceries, coffee)")

	return cmd
}

func runResolve(cmd *cobra.Command, args []string) error {
	tickerHint, _ := cmd.Flags().GetString("ticker-hint")
	categoryHint, _ := cmd.Flags().GetString("category")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	mapping, err := resolver.New(store).Resolve(ctx, resolver.Request{
		MerchantRaw:  args[0],
		TickerHint:   tickerHint,
		CategoryHint: categoryHint,
	})
	if err != nil {
		return fmt.Errorf("resolution failed: %w", err)
	}

	if mapping.Resolved() {
		fmt.Printf("Ticker:     %s\n", mapping.Ticker)
	} else {
		fmt.Println("Ticker:     (unresolved)")
	}
	fmt.Printf("Category:   %s\n", mapping.Category)
	fmt.Printf("Method:     %s\n", mapping.Method)
	fmt.Printf("Confidence: %.2f\n", mapping.Confidence)
	fmt.Printf("Reasoning:  %s\n", mapping.Reasoning)
	if mapping.NeedsReview {
		fmt.Println("This mapping would require admin review before applying.")
	}

	return nil
}
