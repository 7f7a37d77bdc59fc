// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/atlasgraph/atlas/internal/bootstrap"
	"github.com/atlasgraph/atlas/internal/ids"
	"github.com/atlasgraph/atlas/internal/model"
	"github.com/atlasgraph/atlas/internal/orchestrator"
	"github.com/atlasgraph/atlas/internal/runctx"
	"github.com/atlasgraph/atlas/internal/ui"
	"github.com/atlasgraph/atlas/pkg/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// runIngest executes the 'ingest' CLI command: clone/open the
// configured repository, parse it, summarize and embed what changed,
// and persist the run's Job status throughout.
//
// Flags:
//   - --full: Force a full re-parse/re-summarize/re-embed, ignoring the stored commit hash
//   - --debug: Enable debug logging
//   - --metrics-addr: HTTP address for Prometheus metrics (empty disables it)
func runIngest(args []string, configPath string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	full := fs.Bool("full", false, "Force a full re-index, ignoring the stored commit hash")
	debug := fs.Bool("debug", false, "Enable debug logging")
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: atlas ingest [options]

Runs the clone/parse/summarize/embed pipeline against the repository
configured in .atlas/project.yaml. Data is stored in ~/.atlas/data/<project_id>/

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: *metricsAddr, Handler: mux}
			logger.Info("metrics.http.start", "addr", *metricsAddr, "path", "/metrics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics.http.error", "err", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("shutdown.signal", "signal", sig.String())
		cancel()
	}()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	slug := cfg.Repository.RemoteURL
	if slug == "" {
		slug = cfg.Repository.LocalPath
	}
	repositoryID := ids.RepositoryID(slug)
	if err := ensureRepositoryRow(ctx, store, repositoryID, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	runID := fmt.Sprintf("run-%d", repositoryID)
	rc := runctx.New(ctx, runID, cfg.ProjectID, logger)

	progressCfg := NewProgressConfig(false)
	bar := NewSpinner(progressCfg, "ingesting")
	builder, err := newPipelineBuilder(cfg, store, repositoryID, rc, func(phase string) {
		describe(bar, phase)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = builder.Close() }()

	orch := orchestrator.New(store, store)
	if err := orch.Run(rc, runID, repositoryID, *full, builder.Phases()); err != nil {
		finish(bar)
		ui.Errorf("ingestion failed: %v", err)
		os.Exit(1)
	}
	finish(bar)
	ui.Success("Ingestion complete.")
}

// openStore opens the embedded CozoDB backend for cfg's project,
// delegating to internal/bootstrap for the idempotent
// create-schema-if-missing-then-open sequence every subcommand needs.
func openStore(cfg *Config) (*storage.Store, func(), error) {
	dataDir, err := DataDir(cfg.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	projectCfg := bootstrap.ProjectConfig{ProjectID: cfg.ProjectID, DataDir: dataDir}
	if _, err := bootstrap.InitProject(projectCfg, slog.Default()); err != nil {
		return nil, nil, fmt.Errorf("init project: %w", err)
	}
	backend, err := bootstrap.OpenProject(projectCfg, slog.Default())
	if err != nil {
		return nil, nil, fmt.Errorf("open project: %w", err)
	}
	store := storage.NewStore(backend)
	return store, func() { _ = backend.Close() }, nil
}

// ensureRepositoryRow upserts the Repository row for repositoryID if it
// does not already exist, so Orchestrator.Run's GetRepository call has
// something to load on a project's very first ingest.
func ensureRepositoryRow(ctx context.Context, store *storage.Store, repositoryID int64, cfg *Config) error {
	if _, err := store.GetRepository(ctx, repositoryID); err == nil {
		return nil
	}
	return store.UpsertRepository(ctx, model.Repository{
		ID:        repositoryID,
		RemoteURL: cfg.Repository.RemoteURL,
		Slug:      cfg.ProjectID,
	})
}
