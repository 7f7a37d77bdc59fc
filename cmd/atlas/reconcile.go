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

	"github.com/atlasgraph/atlas/internal/model"
	"github.com/atlasgraph/atlas/internal/ui"
)

// runReconcile executes the 'reconcile' maintenance command: sweeps
// atlas_embedding rows whose definition or file no longer exists,
// which a crash mid-delete or a manual data edit can leave behind.
//
// Flags:
//   - --dry-run: report what would be deleted without deleting it
func runReconcile(args []string, configPath string) {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "Report orphaned rows without deleting them")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: atlas reconcile [options]

Sweeps embedding rows whose backing definition or file no longer exists.

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
	store, closeStore, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	ctx := context.Background()
	keys, err := store.AllEmbeddingKeys(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	definitionIDs, err := store.AllDefinitionIDs(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fileIDs, err := store.AllFileIDs(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var orphaned int
	for _, k := range keys {
		var exists bool
		switch k.EntityType {
		case model.EntityDefinition:
			_, exists = definitionIDs[k.EntityID]
		case model.EntityFile:
			_, exists = fileIDs[k.EntityID]
		default:
			exists = true // unknown entity kind: leave alone
		}
		if exists {
			continue
		}
		orphaned++
		if *dryRun {
			ui.Warningf("would delete orphaned embedding %s/%d", k.EntityType, k.EntityID)
			continue
		}
		if err := store.DeleteEmbedding(ctx, k.EntityType, k.EntityID); err != nil {
			fmt.Fprintf(os.Stderr, "Error: delete embedding %s/%d: %v\n", k.EntityType, k.EntityID, err)
			os.Exit(1)
		}
		ui.Successf("deleted orphaned embedding %s/%d", k.EntityType, k.EntityID)
	}

	if orphaned == 0 {
		ui.Success("No orphaned embeddings found.")
	} else if *dryRun {
		ui.Info(fmt.Sprintf("%d orphaned embeddings found (dry run, nothing deleted)", orphaned))
	} else {
		ui.Success(fmt.Sprintf("%d orphaned embeddings deleted", orphaned))
	}
}
