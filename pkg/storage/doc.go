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

// Package storage provides storage backend abstractions for the
// ingestion pipeline's knowledge graph.
//
// This package defines the Backend interface that allows the pipeline's
// components to work with different storage implementations, and Store,
// which implements the Datalog-specific collaborator interfaces the
// summarizer, embedder, search, and orchestrator packages depend on.
//
// # Available Backends
//
// The package provides these backend implementations:
//
//   - EmbeddedBackend: a local CozoDB instance, the default for a
//     standalone deployment
//
// # Quick Start
//
// Create an embedded backend and wrap it in a Store:
//
//	backend, err := storage.NewEmbeddedBackend(storage.EmbeddedConfig{
//	    DataDir:   "/path/to/data",
//	    Engine:    "rocksdb",
//	    ProjectID: "myproject",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	if err := backend.EnsureSchema(); err != nil {
//	    log.Fatal(err)
//	}
//	if err := backend.CreateHNSWIndex(); err != nil {
//	    log.Fatal(err)
//	}
//
//	store := storage.NewStore(backend)
//
// # Schema Initialization
//
// Before indexing a repository, initialize the schema:
//
//	// Create all tables (idempotent)
//	err := backend.EnsureSchema()
//
//	// Create the HNSW index backing vector search
//	err := backend.CreateHNSWIndex()
//
// The schema includes tables for repositories, packages, files,
// definitions, references, dependency edges, and embeddings.
//
// # Query vs Execute
//
// Use Query for read operations and Execute for mutations:
//
//	// Read-only query (uses RunReadOnly internally)
//	result, err := backend.Query(ctx, `?[count(d)] := *atlas_definition{id: d}`)
//
//	// Mutation (uses Run internally)
//	err := backend.Execute(ctx, `:rm atlas_definition { id: 123 }`)
//
// # Configuration
//
// EmbeddedConfig controls the backend behavior:
//
//	config := storage.EmbeddedConfig{
//	    DataDir:   "/path/to/data",  // Where to store CozoDB data
//	    Engine:    "rocksdb",        // Storage engine: mem, sqlite, rocksdb
//	    ProjectID: "myproject",      // Namespaces data directory
//	}
//
// Default values if not specified:
//   - DataDir: ~/.atlas/data/<project_id>
//   - Engine: "rocksdb" (recommended for production)
//
// # Thread Safety
//
// EmbeddedBackend is safe for concurrent use. Read operations use a read
// lock while write operations use an exclusive lock, allowing concurrent
// reads but exclusive writes.
//
// # Direct Database Access
//
// For advanced operations, access the underlying CozoDB instance:
//
//	db := backend.DB()
//	result, err := db.Run(`::relations`, nil)  // List all relations
//
// Use with caution - prefer the Backend interface methods for normal operations.
package storage
