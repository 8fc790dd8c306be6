package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/spareflow/spareflow/internal/config"
	"github.com/spareflow/spareflow/internal/model"
	"github.com/spareflow/spareflow/internal/service"
)

func roundupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roundup",
		Short: "Manage the round-up ledger",
		Long:  `Accrue round-up contributions for transactions and sweep them into investable batches.`,
	}

	cmd.AddCommand(roundupProcessCmd())
	cmd.AddCommand(roundupPendingCmd())
	cmd.AddCommand(roundupSweepCmd())
	cmd.AddCommand(roundupStatsCmd())
	cmd.AddCommand(roundupPrefsCmd())

	return cmd
}

func roundupProcessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <amount>",
		Short: "Process a single transaction",
		Long: `Append a round-up ledger entry for one transaction. Positive amounts are
debits; a sweep fires automatically when the pending total crosses the
threshold.

Examples:
  spareflow roundup process 42.17 --user user-1 --merchant "STARBUCKS #1234"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			merchant, _ := cmd.Flags().GetString("merchant")
			account, _ := cmd.Flags().GetString("account")

			amount, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}

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

			txn := model.Transaction{
				ID:           fmt.Sprintf("cli-%d", time.Now().UnixNano()),
				UserID:       userID,
				MerchantName: merchant,
				AccountID:    account,
				Type:         "DEBIT",
				Date:         time.Now(),
				Amount:       amount,
			}
			txn.Hash = txn.GenerateHash()

			result, err := initLedger(store, cfg).ProcessTransaction(ctx, txn)
			if err != nil {
				return err
			}

			fmt.Printf("Accrued %s (total debit %s)\n",
				result.Entry.Delta.StringFixed(2), result.TotalDebit.StringFixed(2))
			if result.Sweep != nil && result.Sweep.Swept {
				fmt.Printf("Sweep %s: %d entries, %s total\n",
					result.Sweep.SweepBatchID, result.Sweep.EntriesSwept,
					result.Sweep.TotalSwept.StringFixed(2))
			}
			return nil
		},
	}

	cmd.Flags().String("user", "", "User identifier")
	cmd.Flags().String("merchant", "", "Merchant descriptor")
	cmd.Flags().String("account", "cli", "Account identifier")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func roundupPendingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Show a user's pending round-up total",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, _ := cmd.Flags().GetString("user")

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

			total, err := initLedger(store, cfg).GetPendingTotal(ctx, userID)
			if err != nil {
				return err
			}

			fmt.Printf("Pending round-ups for %s: %s\n", userID, total.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().String("user", "", "User identifier")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func roundupSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Sweep a user's pending round-ups into a batch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, _ := cmd.Flags().GetString("user")

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

			result, err := initLedger(store, cfg).ManualSweep(ctx, userID)
			if err != nil {
				return err
			}

			if !result.Swept {
				fmt.Printf("Nothing swept: %s\n", result.Reason)
				return nil
			}

			fmt.Printf("Swept %d entries into %s (%s total)\n",
				result.EntriesSwept, result.SweepBatchID, result.TotalSwept.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().String("user", "", "User identifier")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func roundupStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show round-up ledger statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, _ := cmd.Flags().GetString("user")

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

			engine := initLedger(store, cfg)

			if userID != "" {
				stats, err := engine.GetUserStats(ctx, userID)
				if err != nil {
					return err
				}
				printUserStats(stats)
				return nil
			}

			stats, err := engine.GetAdminStats(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Users:          %d\n", stats.UserCount)
			fmt.Printf("Entries:        %d\n", stats.EntryCount)
			fmt.Printf("Total round-ups: %s\n", stats.TotalRoundUps.StringFixed(2))
			fmt.Printf("Pending:        %s\n", stats.PendingAmount.StringFixed(2))
			fmt.Printf("Swept:          %s\n", stats.SweptAmount.StringFixed(2))

			if len(stats.ByUser) > 0 {
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "\nUSER\tENTRIES\tPENDING\tSWEPT")
				for userID, userStats := range stats.ByUser {
					fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
						userID, userStats.EntryCount,
						userStats.PendingAmount.StringFixed(2),
						userStats.SweptAmount.StringFixed(2))
				}
				return w.Flush()
			}
			return nil
		},
	}

	cmd.Flags().String("user", "", "Limit stats to one user")

	return cmd
}

func printUserStats(stats service.UserRoundUpStats) {
	fmt.Printf("User:            %s\n", stats.UserID)
	fmt.Printf("Entries:         %d (%d pending, %d swept)\n",
		stats.EntryCount, stats.PendingCount, stats.SweptCount)
	fmt.Printf("Total round-ups: %s\n", stats.TotalRoundUps.StringFixed(2))
	fmt.Printf("Pending:         %s\n", stats.PendingAmount.StringFixed(2))
	fmt.Printf("Swept:           %s\n", stats.SweptAmount.StringFixed(2))
	fmt.Printf("Fees:            %s\n", stats.TotalFees.StringFixed(2))
}

func roundupPrefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Set a user's round-up preference",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, _ := cmd.Flags().GetString("user")
			amountStr, _ := cmd.Flags().GetString("amount")
			disable, _ := cmd.Flags().GetBool("disable")

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

			engine := initLedger(store, cfg)

			if disable {
				if err := engine.SetEnabled(ctx, userID, false); err != nil {
					return err
				}
				fmt.Printf("Round-ups disabled for %s\n", userID)
				return nil
			}

			amount := model.DefaultRoundUpAmount
			if amountStr != "" {
				amount, err = decimal.NewFromString(amountStr)
				if err != nil {
					return fmt.Errorf("invalid amount %q: %w", amountStr, err)
				}
			}

			if err := engine.SetPreference(ctx, userID, amount); err != nil {
				return err
			}

			fmt.Printf("Round-up of %s per debit enabled for %s\n", amount.StringFixed(2), userID)
			return nil
		},
	}

	cmd.Flags().String("user", "", "User identifier")
	cmd.Flags().String("amount", "", "Fixed round-up amount per debit (default 1.00)")
	cmd.Flags().Bool("disable", false, "Disable round-ups for the user")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
