package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/spareflow/spareflow/internal/config"
	"github.com/spareflow/spareflow/internal/model"
	"github.com/spareflow/spareflow/internal/ofx"
)

func init() {
	importOFXCmd := &cobra.Command{
		Use:   "import-ofx [files...]",
		Short: "Import transactions from OFX/QFX files",
		Long: `Import transactions from OFX or QFX files exported from your bank and run
each debit through the round-up ledger. Unresolved merchants are submitted
to the mapping queue.

Examples:
  # Import a single statement
  spareflow import-ofx --user user-1 ~/Downloads/chase_jan_2024.qfx

  # Import every statement in a directory
  spareflow import-ofx --user user-1 ~/Downloads/*.qfx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportOFX,
	}

	importOFXCmd.Flags().String("user", "", "User the transactions belong to")
	importOFXCmd.Flags().String("tenant", "default", "Tenant for mapping submissions")
	importOFXCmd.Flags().BoolP("dry-run", "d", false, "Preview import without saving")
	_ = importOFXCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(importOFXCmd)
}

func runImportOFX(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetString("user")
	tenantID, _ := cmd.Flags().GetString("tenant")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	// Expand globs and collect all files
	var allFiles []string
	for _, pattern := range args {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, statErr := os.Stat(pattern); statErr == nil {
				allFiles = append(allFiles, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
		} else {
			allFiles = append(allFiles, matches...)
		}
	}

	if len(allFiles) == 0 {
		return fmt.Errorf("no files found to import")
	}

	slog.Info("Importing OFX files",
		"file_count", len(allFiles),
		"user", userID,
		"dry_run", dryRun)

	parser := ofx.NewParser()
	ctx := cmd.Context()

	// Parse everything first so the progress bar covers processing, and so
	// cross-file duplicates collapse before they hit the ledger.
	var transactions []model.Transaction
	seen := make(map[string]bool)
	for _, filePath := range allFiles {
		f, err := os.Open(filePath)
		if err != nil {
			slog.Error("Failed to open file", "file", filePath, "error", err)
			continue
		}

		txns, err := parser.ParseFile(ctx, f, userID)
		_ = f.Close()
		if err != nil {
			slog.Error("Failed to parse file", "file", filepath.Base(filePath), "error", err)
			continue
		}

		for _, txn := range txns {
			if seen[txn.Hash] {
				continue
			}
			seen[txn.Hash] = true
			transactions = append(transactions, txn)
		}
	}

	if len(transactions) == 0 {
		return fmt.Errorf("no transactions found in %d file(s)", len(allFiles))
	}

	if dryRun {
		fmt.Printf("Dry run: %d transaction(s) would be imported for %s\n", len(transactions), userID)
		for _, txn := range transactions {
			fmt.Printf("  %s  %8s  %s\n",
				txn.Date.Format("2006-01-02"), txn.Amount.StringFixed(2), txn.MerchantName)
		}
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, err := initStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	engine := initLedger(store, cfg)
	mappings := initQueue(store)

	bar := progressbar.NewOptions(len(transactions),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Processing transactions..."),
	)

	var debits, submitted, sweeps int
	for _, txn := range transactions {
		_ = bar.Add(1)

		result, err := engine.ProcessTransaction(ctx, txn)
		if err != nil {
			return fmt.Errorf("failed to process transaction %s: %w", txn.ID, err)
		}
		if txn.IsDebit() {
			debits++
		}
		if result.Sweep != nil && result.Sweep.Swept {
			sweeps++
		}

		// Queue debit merchants for resolution so the rule store grows.
		if txn.IsDebit() && txn.MerchantName != "" {
			if _, err := mappings.Submit(ctx, tenantID, txn.MerchantName, ""); err != nil {
				slog.Warn("Failed to submit merchant mapping",
					"merchant", txn.MerchantName,
					"error", err)
				continue
			}
			submitted++
		}
	}
	_ = bar.Finish()
	fmt.Println()

	fmt.Printf("Imported %d transaction(s): %d debit(s), %d mapping submission(s), %d sweep(s)\n",
		len(transactions), debits, submitted, sweeps)
	return nil
}
