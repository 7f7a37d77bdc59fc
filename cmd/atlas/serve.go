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
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/atlasgraph/atlas/internal/ids"
	"github.com/atlasgraph/atlas/internal/orchestrator"
	"github.com/atlasgraph/atlas/internal/output"
	"github.com/atlasgraph/atlas/internal/runctx"
	"github.com/atlasgraph/atlas/internal/search"
	"github.com/atlasgraph/atlas/pkg/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
)

// atlasServer hosts the job-intake and search HTTP surface: the one
// external-collaborator boundary SPEC_FULL.md scopes out of the core
// pipeline but which the CLI still needs a concrete host for.
type atlasServer struct {
	cfg          *Config
	store        *storage.Store
	searcher     *search.Searcher
	repositoryID int64
	logger       *slog.Logger

	mu      sync.Mutex
	running bool
}

// runServe executes the 'serve' command. Unlike the other subcommands
// (stdlib flag, mirroring the teacher's cmd/ dispatch), serve uses
// spf13/pflag for its long-running-daemon flag surface, matching the
// shape pflag's POSIX --flag=value parsing is suited for.
func runServe(args []string, configPath string) {
	fs := pflag.NewFlagSet("serve", pflag.ExitOnError)
	addr := fs.StringP("addr", "a", ":8080", "HTTP listen address")
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")
	debug := fs.BoolP("debug", "d", false, "Enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: atlas serve [options]

Serves job intake (POST /ingest), status (GET /status), and search
(GET /search?q=...) over HTTP.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	embedProvider, err := buildEmbeddingProvider(cfg.Embedding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	slug := cfg.Repository.RemoteURL
	if slug == "" {
		slug = cfg.Repository.LocalPath
	}
	srv := &atlasServer{
		cfg:          cfg,
		store:        store,
		repositoryID: ids.RepositoryID(slug),
		logger:       logger,
		searcher: search.New(embedProvider, search.Indexes{
			Vector:        store,
			DefinitionFTS: storage.NewDefinitionTextIndex(store),
			FileFTS:       storage.NewFileTextIndex(store),
		}),
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			metricsSrv := &http.Server{Addr: *metricsAddr, Handler: mux}
			logger.Info("metrics.http.start", "addr", *metricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics.http.error", "err", err)
			}
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ingest", srv.handleIngest)
	mux.HandleFunc("/status", srv.handleStatus)
	mux.HandleFunc("/search", srv.handleSearch)
	httpSrv := &http.Server{Addr: *addr, Handler: mux}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("shutdown.signal", "signal", sig.String())
		_ = httpSrv.Shutdown(ctx)
	}()

	logger.Info("serve.http.start", "addr", *addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// handleIngest starts a job in the background if one isn't already
// running and returns 202 Accepted; it never blocks the HTTP response
// on the pipeline finishing.
func (s *atlasServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		http.Error(w, "a job is already running", http.StatusConflict)
		return
	}
	s.running = true
	s.mu.Unlock()

	force := r.URL.Query().Get("full") == "true"
	go func() {
		defer func() {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}()
		runID := fmt.Sprintf("http-run-%d", s.repositoryID)
		rc := runctx.New(context.Background(), runID, s.cfg.ProjectID, s.logger)
		builder, err := newPipelineBuilder(s.cfg, s.store, s.repositoryID, rc, nil)
		if err != nil {
			s.logger.Error("serve.ingest.build_failed", "err", err)
			return
		}
		defer func() { _ = builder.Close() }()

		orch := orchestrator.New(s.store, s.store)
		if err := orch.Run(rc, runID, s.repositoryID, force, builder.Phases()); err != nil {
			s.logger.Error("serve.ingest.failed", "err", err)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
	_ = output.JSONTo(w, map[string]string{"status": "accepted"})
}

func (s *atlasServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, ok, err := s.store.GetJobStatus(r.Context(), s.repositoryID)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = output.JSONErrorTo(w, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_ = output.JSONTo(w, map[string]string{"error": "no job has run yet"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = output.JSONTo(w, status)
}

func (s *atlasServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "missing q parameter", http.StatusBadRequest)
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			limit = n
		}
	}

	results, err := s.searcher.Hybrid(r.Context(), query, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	hits := make([]searchHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, searchHit{
			EntityType: string(res.EntityType),
			EntityID:   res.EntityID,
			EntityName: res.EntityName,
			FilePath:   res.FilePath,
			Summary:    res.Summary,
			Similarity: search.Similarity(res.Distance),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = output.JSONTo(w, hits)
}

func parsePositiveInt(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return n, nil
}
