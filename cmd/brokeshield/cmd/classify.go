package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/brokeshield/brokeshield/internal/feasibility"
	"github.com/brokeshield/brokeshield/internal/model"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// ClassifyCmd evaluates a plan offline; it needs no database.
func ClassifyCmd() *cobra.Command {
	var (
		required string
		income   string
		deadline string
		at       string
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify how feasible a savings plan is and print its daily budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			asOf, err := parseAt(at)
			if err != nil {
				return err
			}

			due, err := model.ParseDeadline(deadline)
			if err != nil {
				return fmt.Errorf("--deadline must be YYYY-MM-DD: %w", err)
			}

			in := feasibility.Input{Deadline: due, AsOf: asOf}
			if in.AmountRequired, err = decimal.NewFromString(required); err != nil {
				return fmt.Errorf("--amount: %w", err)
			}
			if in.MonthlyIncome, err = decimal.NewFromString(income); err != nil {
				return fmt.Errorf("--income: %w", err)
			}

			classification, err := feasibility.Classify(in)
			if err != nil {
				return err
			}
			plan, err := feasibility.PlanDailyBudget(in)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"classification": classification,
				"plan":           plan,
			})
		},
	}

	cmd.Flags().StringVar(&required, "amount", "", "amount required")
	cmd.Flags().StringVar(&income, "income", "0", "monthly income")
	cmd.Flags().StringVar(&deadline, "deadline", "", "deadline, YYYY-MM-DD")
	cmd.Flags().StringVar(&at, "at", "", "evaluate as of this instant (default now)")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("deadline")
	return cmd
}
