package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brokeshield/brokeshield/internal/routes"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func ServeCmd() *cobra.Command {
	var noSweep bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the sweep scheduler and notification delivery",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), !noSweep)
		},
	}

	cmd.Flags().BoolVar(&noSweep, "no-sweep", false, "do not run the sweep scheduler in this process")
	return cmd
}

func serve(parent context.Context, sweep bool) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := openApp()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := a.Cfg.ValidateServe(); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              ":" + a.Cfg.Port,
		Handler:           routes.SetupRoutes(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Log.Info("server starting", "port", a.Cfg.Port, "env", a.Cfg.AppEnv, "url", "http://localhost:"+a.Cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		a.Log.Info("server shutting down")
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return a.Notifications.Run(gctx)
	})

	g.Go(func() error {
		a.RateLimiter.Cleanup(gctx, 5*time.Minute)
		return nil
	})

	if sweep {
		g.Go(func() error {
			return a.Scheduler.Run(gctx)
		})
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Log.Error("serve stopped with error", "error", err)
		return err
	}
	return nil
}
