package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/brokeshield/brokeshield/internal/storage"
	"github.com/spf13/cobra"
)

func ExportCmd() *cobra.Command {
	var toStdout bool

	cmd := &cobra.Command{
		Use:   "export <goal-id>...",
		Short: "Archive goal ledgers as CSV to S3 (or print them)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			if toStdout || a.Cfg.S3Bucket == "" {
				for _, goalID := range args {
					if _, err := a.LedgerService.Archive(cmd.Context(), goalID, os.Stdout); err != nil {
						return fmt.Errorf("export %s: %w", goalID, err)
					}
				}
				return nil
			}

			store, err := storage.NewS3Storage(cmd.Context(), storage.S3Config{
				Region:    a.Cfg.S3Region,
				Bucket:    a.Cfg.S3Bucket,
				AccessKey: a.Cfg.S3AccessKey,
				SecretKey: a.Cfg.S3SecretKey,
				Endpoint:  a.Cfg.S3Endpoint,
			}, a.Log)
			if err != nil {
				return err
			}

			for _, goalID := range args {
				var buf bytes.Buffer
				n, err := a.LedgerService.Archive(cmd.Context(), goalID, &buf)
				if err != nil {
					return fmt.Errorf("export %s: %w", goalID, err)
				}

				key := storage.LedgerKey(goalID)
				if err := store.Save(cmd.Context(), key, "text/csv", &buf); err != nil {
					return fmt.Errorf("export %s: %w", goalID, err)
				}
				fmt.Printf("%s: %d entries -> %s\n", goalID, n, store.URL(key))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&toStdout, "stdout", false, "print CSV instead of uploading")
	return cmd
}
