// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/stall-allot/activity"
	"github.com/danielhkuo/stall-allot/auth"
	"github.com/danielhkuo/stall-allot/cliparse"
	"github.com/danielhkuo/stall-allot/engine"
	"github.com/danielhkuo/stall-allot/middleware"
	"github.com/danielhkuo/stall-allot/obs"
	"github.com/danielhkuo/stall-allot/router"
	"github.com/danielhkuo/stall-allot/store"
	"github.com/danielhkuo/stall-allot/sweep"
)

func main() {
	// A missing .env is fine; real deployments set the environment directly
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg cliparse.Config) error {
	// signal.NotifyContext cancels on Ctrl-C or SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := obs.SetupTracing(ctx, "stall-allot", cfg.TracingEnabled, os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	}()

	st, err := store.Open(ctx, store.Config{
		Dialect: store.Dialect(cfg.DatabaseType),
		URL:     cfg.DatabaseURL,
	})
	if err != nil {
		return err
	}
	defer st.Close()
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	metrics := obs.NewMetrics(prometheus.DefaultRegisterer)

	dispatcher := activity.NewDispatcher(cfg.EventBuffer, metrics,
		activity.NewAuditLog(st),
		activity.NewLogNotifier(slog.Default()),
	)

	svc := engine.New(st, auth.NewBranchAuthorizer(st),
		engine.WithPublisher(dispatcher),
		engine.WithMetrics(metrics),
		engine.WithMaxDurationHours(cfg.MaxDurationHours),
		engine.WithRetryMaxElapsed(cfg.RetryMaxElapsed),
	)

	job := sweep.NewJob(st, svc, engine.SystemClock{}, metrics, cfg.SweepInterval, cfg.SweepBatchSize)

	mux := router.NewRouter(svc, st, cfg, prometheus.DefaultGatherer)
	server := &http.Server{
		Handler:           middleware.CORS(middleware.WithRequestID(mux)),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return job.Run(gctx)
	})

	g.Go(func() error {
		return dispatcher.Run(gctx)
	})

	err = g.Wait()
	slog.Info("Server closed", "error", err)
	return err
}
