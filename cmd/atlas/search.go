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
	"strings"

	"github.com/atlasgraph/atlas/internal/model"
	"github.com/atlasgraph/atlas/internal/output"
	"github.com/atlasgraph/atlas/internal/search"
	"github.com/atlasgraph/atlas/internal/ui"
	"github.com/atlasgraph/atlas/pkg/storage"
)

// searchHit is one ranked result rendered for --json output.
type searchHit struct {
	EntityType string  `json:"entity_type"`
	EntityID   int64   `json:"entity_id"`
	EntityName string  `json:"entity_name,omitempty"`
	FilePath   string  `json:"file_path,omitempty"`
	Summary    string  `json:"summary,omitempty"`
	Similarity float64 `json:"similarity"`
}

// runSearch executes the 'search' CLI command: a hybrid (vector + full
// text) query over definitions and files, per §4.5.
//
// Flags:
//   - --mode: "hybrid" (default), "vector", or "text"
//   - --type: restrict vector search to "definition" or "file" (vector mode only)
//   - --limit: number of results to return (default 10)
//   - --json: output as JSON
func runSearch(args []string, configPath string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	mode := fs.String("mode", "hybrid", "Search mode: hybrid, vector, text")
	entityType := fs.String("type", "", "Restrict vector search to: definition, file")
	limit := fs.Int("limit", 10, "Number of results to return")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: atlas search [options] <query>

Runs a hybrid vector + full-text search over ingested definitions and files.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	query := strings.Join(fs.Args(), " ")
	if query == "" {
		fmt.Fprintln(os.Stderr, "Error: a search query is required")
		fs.Usage()
		os.Exit(1)
	}

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

	searcher := search.New(embedProvider, search.Indexes{
		Vector:        store,
		DefinitionFTS: storage.NewDefinitionTextIndex(store),
		FileFTS:       storage.NewFileTextIndex(store),
	})

	ctx := context.Background()
	var results []search.Result
	switch *mode {
	case "vector":
		results, err = searcher.Vector(ctx, query, model.EntityType(*entityType), *limit)
	case "text":
		results, err = searcher.FullText(ctx, query, *limit)
	case "hybrid":
		results, err = searcher.Hybrid(ctx, query, *limit)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown --mode %q (want hybrid, vector, or text)\n", *mode)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: search failed: %v\n", err)
		os.Exit(1)
	}

	if *jsonOutput {
		printSearchJSON(results)
		return
	}
	printSearchResults(results)
}

func printSearchJSON(results []search.Result) {
	hits := make([]searchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, searchHit{
			EntityType: string(r.EntityType),
			EntityID:   r.EntityID,
			EntityName: r.EntityName,
			FilePath:   r.FilePath,
			Summary:    r.Summary,
			Similarity: search.Similarity(r.Distance),
		})
	}
	_ = output.JSON(hits)
}

func printSearchResults(results []search.Result) {
	if len(results) == 0 {
		ui.Info("No results.")
		return
	}
	for i, r := range results {
		fmt.Printf("%d. [%s] %s %s\n", i+1, r.EntityType, ui.Label(r.EntityName), ui.DimText("("+r.FilePath+")"))
		fmt.Printf("   %s\n", ui.DimText(fmt.Sprintf("similarity: %.3f", search.Similarity(r.Distance))))
		if r.Summary != "" {
			fmt.Printf("   %s\n", truncate(r.Summary, 200))
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
