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
	"os"
	"time"

	"github.com/atlasgraph/atlas/internal/ids"
	"github.com/atlasgraph/atlas/internal/output"
	"github.com/atlasgraph/atlas/internal/ui"
	"github.com/atlasgraph/atlas/pkg/storage"
)

// StatusResult represents the project's ingestion status for JSON output.
type StatusResult struct {
	ProjectID   string    `json:"project_id"`
	DataDir     string    `json:"data_dir"`
	Connected   bool      `json:"connected"`
	Files       int       `json:"files"`
	Definitions int       `json:"definitions"`
	References  int       `json:"references"`
	Embeddings  int       `json:"embeddings"`
	JobRunID    string    `json:"job_run_id,omitempty"`
	JobMode     string    `json:"job_mode,omitempty"`
	JobPhase    string    `json:"job_phase,omitempty"`
	JobError    string    `json:"job_error,omitempty"`
	JobUpdated  time.Time `json:"job_updated_at,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// runStatus executes the 'status' CLI command: entity counts plus the
// most recent Job's phase and error, read from the local CozoDB store.
//
// Flags:
//   - --json: Output as JSON (default: false)
func runStatus(args []string, configPath string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: atlas status [options]

Shows the repository's ingestion status: entity counts and the most
recent job's phase.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		failStatus(*jsonOutput, &StatusResult{Error: err.Error(), Timestamp: time.Now()})
	}

	dataDir, err := DataDir(cfg.ProjectID)
	if err != nil {
		failStatus(*jsonOutput, &StatusResult{ProjectID: cfg.ProjectID, Error: err.Error(), Timestamp: time.Now()})
	}

	result := &StatusResult{ProjectID: cfg.ProjectID, DataDir: dataDir, Timestamp: time.Now()}

	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		result.Error = "Project not ingested yet. Run 'atlas ingest' first."
		if *jsonOutput {
			outputStatusJSON(result)
		} else {
			fmt.Printf("Project '%s' not ingested yet.\n", cfg.ProjectID)
			fmt.Println("Run 'atlas ingest' to build the knowledge graph.")
		}
		os.Exit(0)
	}

	backend, err := storage.NewEmbeddedBackend(storage.EmbeddedConfig{DataDir: dataDir, ProjectID: cfg.ProjectID})
	if err != nil {
		result.Error = fmt.Sprintf("cannot open database: %v", err)
		failStatus(*jsonOutput, result)
	}
	defer func() { _ = backend.Close() }()

	store := storage.NewStore(backend)
	result.Connected = true
	ctx := context.Background()

	result.Files = queryCount(ctx, backend, "atlas_file", "id")
	result.Definitions = queryCount(ctx, backend, "atlas_definition", "id")
	result.References = queryCount(ctx, backend, "atlas_reference", "id")
	result.Embeddings = queryCount(ctx, backend, "atlas_embedding", "entity_id")

	slug := cfg.Repository.RemoteURL
	if slug == "" {
		slug = cfg.Repository.LocalPath
	}
	repositoryID := ids.RepositoryID(slug)
	if status, ok, err := store.GetJobStatus(ctx, repositoryID); err == nil && ok {
		result.JobRunID = status.RunID
		result.JobMode = string(status.Mode)
		result.JobPhase = string(status.Phase)
		result.JobError = status.Error
		result.JobUpdated = status.UpdatedAt
	}

	if *jsonOutput {
		outputStatusJSON(result)
		return
	}
	printStatus(result)
}

func failStatus(jsonOutput bool, result *StatusResult) {
	if jsonOutput {
		outputStatusJSON(result)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", result.Error)
	}
	os.Exit(1)
}

// queryCount counts distinct values of pkField in table, returning 0 if
// the query fails or the table is empty.
func queryCount(ctx context.Context, backend *storage.EmbeddedBackend, table, pkField string) int {
	script := fmt.Sprintf("?[count(%s)] := *%s { %s }", pkField, table, pkField)
	result, err := backend.Query(ctx, script)
	if err != nil || len(result.Rows) == 0 || len(result.Rows[0]) == 0 {
		return 0
	}
	switch v := result.Rows[0][0].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func outputStatusJSON(result *StatusResult) {
	_ = output.JSON(result)
}

func printStatus(result *StatusResult) {
	ui.Header("atlas project status")
	fmt.Printf("%s %s\n", ui.Label("Project ID:"), result.ProjectID)
	fmt.Printf("%s %s\n", ui.Label("Data Dir:"), ui.DimText(result.DataDir))
	fmt.Println()

	ui.SubHeader("Entities:")
	fmt.Printf("  Files:        %s\n", ui.CountText(result.Files))
	fmt.Printf("  Definitions:  %s\n", ui.CountText(result.Definitions))
	fmt.Printf("  References:   %s\n", ui.CountText(result.References))
	fmt.Printf("  Embeddings:   %s\n", ui.CountText(result.Embeddings))

	if result.JobRunID != "" {
		fmt.Println()
		ui.SubHeader("Last job:")
		fmt.Printf("  Run ID:       %s\n", result.JobRunID)
		fmt.Printf("  Mode:         %s\n", result.JobMode)
		fmt.Printf("  Phase:        %s\n", result.JobPhase)
		fmt.Printf("  Updated:      %s\n", result.JobUpdated.Format(time.RFC3339))
		if result.JobError != "" {
			ui.Errorf("Error: %s", result.JobError)
		}
	}
}
