package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func ReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <goal-id>...",
		Short: "Rewrite each goal's cached amount saved from its contribution ledger",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			for _, goalID := range args {
				sum, err := a.LedgerService.Reconcile(cmd.Context(), goalID)
				if err != nil {
					return fmt.Errorf("reconcile %s: %w", goalID, err)
				}
				fmt.Printf("%s: %s\n", goalID, sum)
			}
			return nil
		},
	}
}
