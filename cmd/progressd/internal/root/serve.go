// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package root

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/mera-learn/progress-core/internal/tracing"
)

var metricsAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the save manager and save cleaner until interrupted",
	Long: `serve starts the Save Manager's 50ms poll loop and the Save Cleaner's
60s retention sweep against the configured Pod/Local sinks, and exposes
Prometheus metrics on --metrics-addr, until it receives SIGINT/SIGTERM.

This is the daemon mode the browser runtime's savemanager.Manager /
cleaner.Cleaner singletons mirror in-process; standalone it is useful for
soak-testing the core against a real GCS bucket.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address to serve /metrics on")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	tp, err := tracing.Init("progressd", s.log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("progressd: tracer shutdown failed", "error", err)
		}
	}()

	o, err := newOrchestrator(s)
	if err != nil {
		return err
	}
	mgr, err := newSaveManager(s, o)
	if err != nil {
		return err
	}
	clean, err := newCleaner(s)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		s.log.Info("progressd: metrics server listening", "addr", metricsAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("progressd: metrics server stopped", "error", err)
		}
	}()

	if err := mgr.Start(ctx); err != nil {
		return err
	}
	clean.Start(ctx)
	s.log.Info("progressd: serving", "webId", s.cfg.Identity.WebID, "schema", s.schema.String())

	<-ctx.Done()
	s.log.Info("progressd: shutting down")

	mgr.Stop()
	clean.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
