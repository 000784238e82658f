package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/FranksOps/coursefinder/internal/app"
	"github.com/FranksOps/coursefinder/internal/metrics"
	"github.com/FranksOps/coursefinder/internal/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(c *cli) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.Validate(true); err != nil {
				return err
			}
			if addr != "" {
				c.cfg.HTTP.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, c)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func runServe(ctx context.Context, c *cli) error {
	a, err := app.New(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(server.Config{
		Addr:         c.cfg.HTTP.Addr,
		ReadTimeout:  c.cfg.HTTP.ReadTimeout,
		WriteTimeout: c.cfg.HTTP.WriteTimeout,
	}, a.Pipeline, a.Sessions, a.History, c.logger)

	var ms *metrics.Server
	if c.cfg.Metrics.Enabled {
		ms = metrics.Start(c.cfg.Metrics.Port, c.logger)
		c.logger.Info("metrics listening", "port", c.cfg.Metrics.Port)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), c.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if ms != nil {
			if err := ms.Stop(shutdownCtx); err != nil {
				c.logger.Warn("metrics shutdown failed", "err", err)
			}
		}
		return srv.Stop(shutdownCtx)
	})
	return g.Wait()
}
