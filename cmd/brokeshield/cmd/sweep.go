package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/brokeshield/brokeshield/internal/sweeper"
	"github.com/spf13/cobra"
)

func SweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a single sweep pass and deliver its notifications",
	}

	cmd.AddCommand(sweepPassCmd(sweeper.PassExpirations, "Expire pending goals whose deadline has passed"))
	cmd.AddCommand(sweepPassCmd(sweeper.PassCompletions, "Promote goals marked complete to accomplished"))
	return cmd
}

func sweepPassCmd(pass, short string) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   pass,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			now, err := parseAt(at)
			if err != nil {
				return err
			}
			return sweepOnce(cmd.Context(), pass, now)
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "evaluate the pass as of this instant, RFC 3339 or YYYY-MM-DD (default now)")
	return cmd
}

func sweepOnce(ctx context.Context, pass string, now time.Time) error {
	a, cleanup, err := openApp()
	if err != nil {
		return err
	}
	defer cleanup()

	// Deliver what the pass emits; cancelling drains the buffer.
	queueCtx, stopQueue := context.WithCancel(ctx)
	delivered := make(chan error, 1)
	go func() { delivered <- a.Notifications.Run(queueCtx) }()

	res, err := a.Sweeper.Run(ctx, pass, now)
	stopQueue()
	<-delivered
	if err != nil {
		return err
	}

	if res.Skipped {
		fmt.Printf("%s: skipped, another sweeper holds the lease\n", pass)
		return nil
	}
	fmt.Printf("%s: %d transitioned, %d invalidated\n", pass, res.Transitioned, res.Invalidated)
	return nil
}
