package main

import (
	"os"

	"github.com/brokeshield/brokeshield/cmd/brokeshield/cmd"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "brokeshield",
		Short:        "Savings goals with deadlines, a contribution ledger and a background sweeper",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cmd.ServeCmd())
	rootCmd.AddCommand(cmd.SweepCmd())
	rootCmd.AddCommand(cmd.MigrateCmd())
	rootCmd.AddCommand(cmd.ClassifyCmd())
	rootCmd.AddCommand(cmd.ReconcileCmd())
	rootCmd.AddCommand(cmd.ExportCmd())
	rootCmd.AddCommand(cmd.MembersCmd())
	rootCmd.AddCommand(cmd.TokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
