package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/hybridopt/internal/api"
	"github.com/ajitpratap0/hybridopt/internal/config"
	"github.com/ajitpratap0/hybridopt/internal/coordinator"
	"github.com/ajitpratap0/hybridopt/internal/metrics"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the optimizer on its schedule with the control API and metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts)
		},
	}
}

func serve(ctx context.Context, opts *rootOptions) error {
	cfg, log := opts.cfg, opts.log
	log.Info().Str("version", config.GetVersion()).Str("environment", cfg.App.Environment).Msg("Starting optimizer")

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	sched := coordinator.NewScheduler(a.coordinator, cfg.Optimizer.Schedule, log)

	var metricsServer *metrics.Server
	if cfg.Monitoring.EnableMetrics {
		metricsServer = metrics.NewServer(cfg.Monitoring.PrometheusPort, func() error {
			hctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return a.health(hctx)
		}, log)
		if err := metricsServer.Start(); err != nil {
			return err
		}
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiCfg := api.Config{
			Host:        cfg.API.Host,
			Port:        cfg.API.Port,
			Coordinator: a.coordinator,
			Scheduler:   sched,
			Strategy:    a.strategy,
			Health:      a.health,
			Logger:      log,
		}
		// a nil *db.ResultStore must not become a non-nil interface
		if store := a.resultStore(); store != nil {
			apiCfg.Store = store
		}
		apiServer, err = api.NewServer(apiCfg)
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := sched.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if apiServer != nil {
		g.Go(apiServer.Start)
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if apiServer != nil {
			errs = append(errs, apiServer.Stop(shutdownCtx))
		}
		if metricsServer != nil {
			errs = append(errs, metricsServer.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Optimizer stopped")
	return nil
}
