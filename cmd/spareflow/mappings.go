package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spareflow/spareflow/internal/config"
	"github.com/spareflow/spareflow/internal/model"
)

func mappingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Manage the merchant mapping queue",
		Long:  `Submit merchant descriptors for resolution and review pending mappings.`,
	}

	cmd.AddCommand(mappingsSubmitCmd())
	cmd.AddCommand(mappingsPendingCmd())
	cmd.AddCommand(mappingsApproveCmd())
	cmd.AddCommand(mappingsRejectCmd())
	cmd.AddCommand(mappingsStatusCmd())
	cmd.AddCommand(mappingsRulesCmd())

	return cmd
}

func mappingsSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <merchant>",
		Short: "Submit a merchant descriptor for resolution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, _ := cmd.Flags().GetString("tenant")
			tickerHint, _ := cmd.Flags().GetString("ticker-hint")

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

			entry, err := initQueue(store).Submit(ctx, tenantID, args[0], tickerHint)
			if err != nil {
				return err
			}

			fmt.Printf("Entry %s is %s\n", entry.ID, entry.Status)
			if entry.Proposal != nil && entry.Proposal.Resolved() {
				fmt.Printf("Proposal: %s (%.2f via %s)\n",
					entry.Proposal.Ticker, entry.Proposal.Confidence, entry.Proposal.Method)
			}
			return nil
		},
	}

	cmd.Flags().String("tenant", "default", "Tenant identifier")
	cmd.Flags().String("ticker-hint", "", "User-supplied ticker hint")

	return cmd
}

func mappingsPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List mappings awaiting admin review",
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			entries, err := initQueue(store).GetPendingReviews(ctx)
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Println("No mappings awaiting review.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tMERCHANT\tPROPOSAL\tCONFIDENCE\tSUBMITTED")
			for _, entry := range entries {
				ticker := "-"
				confidence := "-"
				if entry.Proposal != nil {
					if entry.Proposal.Resolved() {
						ticker = entry.Proposal.Ticker
					}
					confidence = fmt.Sprintf("%.2f", entry.Proposal.Confidence)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					entry.ID, entry.MerchantRaw, ticker, confidence,
					entry.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}

func mappingsApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <entry-id>",
		Short: "Approve a pending mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, _ := cmd.Flags().GetString("admin")
			notes, _ := cmd.Flags().GetString("notes")

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

			entry, err := initQueue(store).AdminApprove(ctx, args[0], admin, notes)
			if err != nil {
				return err
			}

			fmt.Printf("Approved %s -> %s\n", entry.MerchantRaw, entry.Proposal.Ticker)
			return nil
		},
	}

	cmd.Flags().String("admin", "admin", "Admin identity recorded on the decision")
	cmd.Flags().String("notes", "", "Decision notes")

	return cmd
}

func mappingsRejectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <entry-id>",
		Short: "Reject a pending mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, _ := cmd.Flags().GetString("admin")
			reason, _ := cmd.Flags().GetString("reason")

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

			entry, err := initQueue(store).AdminReject(ctx, args[0], admin, reason)
			if err != nil {
				return err
			}

			fmt.Printf("Rejected %s\n", entry.MerchantRaw)
			return nil
		},
	}

	cmd.Flags().String("admin", "admin", "Admin identity recorded on the decision")
	cmd.Flags().String("reason", "", "Rejection reason")

	return cmd
}

func mappingsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize the mapping queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			summary, err := initQueue(store).GetQueueStatus(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Total entries:   %d\n", summary.TotalEntries)
			fmt.Printf("Pending review:  %d\n", summary.PendingReview)
			fmt.Printf("Auto-applied:    %d\n", summary.AutoApplied)
			fmt.Printf("Approved:        %d\n", summary.Approved)
			fmt.Printf("Rejected:        %d\n", summary.Rejected)
			if n := summary.ByStatus[model.StatusSubmittedUser] + summary.ByStatus[model.StatusProposedByLLM]; n > 0 {
				fmt.Printf("In flight:       %d\n", n)
			}
			return nil
		},
	}
}

func mappingsRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List learned resolver rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			rules, err := store.GetAllRules(ctx)
			if err != nil {
				return err
			}

			if len(rules) == 0 {
				fmt.Println("No learned rules yet.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PATTERN\tTICKER\tCONFIDENCE\tSOURCE\tUSED")
			for _, rule := range rules {
				fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%d\n",
					rule.Pattern, rule.Ticker, rule.Confidence, rule.Source, rule.UseCount)
			}
			return w.Flush()
		},
	}
}
