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

	"github.com/atlasgraph/atlas/internal/ids"
	"github.com/atlasgraph/atlas/internal/model"
	"github.com/atlasgraph/atlas/internal/ui"
)

// runDelete executes the 'delete' CLI command: removes one file, its
// definitions, their source/summary rows, outgoing references, and
// embeddings, so a file removed from the tree doesn't linger in search
// results until the next full re-ingest.
//
// Usage: atlas delete <path>
func runDelete(args []string, configPath string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: atlas delete <path>

Removes a file and its definitions/references/embeddings from the
knowledge graph. Path is relative to the repository root.
`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}
	path := fs.Arg(0)

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
	slug := cfg.Repository.RemoteURL
	if slug == "" {
		slug = cfg.Repository.LocalPath
	}
	repositoryID := ids.RepositoryID(slug)
	fileID := ids.FileID(repositoryID, path)

	defs, err := store.FileDefinitions(ctx, fileID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load definitions for %s: %v\n", path, err)
		os.Exit(1)
	}
	for _, d := range defs {
		if err := store.DeleteDefinition(ctx, d.ID); err != nil {
			fmt.Fprintf(os.Stderr, "Error: delete definition %s: %v\n", d.Name, err)
			os.Exit(1)
		}
		if err := store.DeleteEmbedding(ctx, model.EntityDefinition, d.ID); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: delete embedding for %s: %v\n", d.Name, err)
		}
	}

	if err := store.DeleteFile(ctx, fileID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: delete file %s: %v\n", path, err)
		os.Exit(1)
	}
	if err := store.DeleteEmbedding(ctx, model.EntityFile, fileID); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: delete embedding for %s: %v\n", path, err)
	}

	ui.Successf("Deleted %s (%d definitions)", path, len(defs))
}
