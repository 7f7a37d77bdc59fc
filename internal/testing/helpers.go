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

//go:build cgo

// Package testing provides shared backend and Store seeding helpers for
// Atlas's own test suites, so each package doesn't hand-roll its own
// in-memory CozoDB setup and CozoScript inserts against the atlas_*
// relations.
package testing

import (
	"context"
	"testing"

	"github.com/atlasgraph/atlas/internal/model"
	"github.com/atlasgraph/atlas/pkg/storage"
)

// SetupTestBackend creates an in-memory Atlas CozoDB backend with the
// schema and HNSW index ready, cleaned up automatically at test end.
func SetupTestBackend(t *testing.T) *storage.EmbeddedBackend {
	t.Helper()

	backend, err := storage.NewEmbeddedBackend(storage.EmbeddedConfig{
		Engine:  "mem",
		DataDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("failed to create test backend: %v", err)
	}
	if err := backend.EnsureSchema(); err != nil {
		t.Fatalf("failed to ensure schema: %v", err)
	}
	if err := backend.CreateHNSWIndex(); err != nil {
		t.Fatalf("failed to create HNSW index: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })

	return backend
}

// SetupTestStore is SetupTestBackend wrapped in a *storage.Store, for
// tests that only need the Store's higher-level API.
func SetupTestStore(t *testing.T) *storage.Store {
	t.Helper()
	return storage.NewStore(SetupTestBackend(t))
}

// InsertTestRepository seeds a Repository row via Store.UpsertRepository.
func InsertTestRepository(t *testing.T, s *storage.Store, repo model.Repository) model.Repository {
	t.Helper()
	if err := s.UpsertRepository(context.Background(), repo); err != nil {
		t.Fatalf("seed repository %d: %v", repo.ID, err)
	}
	return repo
}

// InsertTestFile seeds a File row via Store.UpsertFile under the given
// repositoryID.
func InsertTestFile(t *testing.T, s *storage.Store, id, repositoryID int64, filePath, language string) model.File {
	t.Helper()
	f := model.File{ID: id, RepositoryID: repositoryID, FilePath: filePath, Language: language}
	if err := s.UpsertFile(context.Background(), f); err != nil {
		t.Fatalf("seed file %d: %v", id, err)
	}
	return f
}

// InsertTestDefinition seeds a Definition row owned by fileID via
// Store.UpsertDefinition.
func InsertTestDefinition(t *testing.T, s *storage.Store, id, fileID int64, name string, kind model.DefinitionKind, startLine, endLine int) model.Definition {
	t.Helper()
	d := model.Definition{
		ID: id, FileID: fileID, Name: name, Kind: kind,
		StartLine: startLine, EndLine: endLine, IsExported: true,
	}
	if err := s.UpsertDefinition(context.Background(), d); err != nil {
		t.Fatalf("seed definition %d: %v", id, err)
	}
	return d
}

// InsertTestReference seeds a Reference edge from sourceDefinitionID to
// targetDefinitionID (nil if unresolved) via Store.InsertReference.
func InsertTestReference(t *testing.T, s *storage.Store, id, sourceDefinitionID int64, targetDefinitionID *int64, name string, refType model.ReferenceType) model.Reference {
	t.Helper()
	r := model.Reference{
		ID: id, SourceDefinitionID: sourceDefinitionID, TargetDefinitionID: targetDefinitionID,
		ReferenceName: name, ReferenceType: refType,
	}
	if err := s.InsertReference(context.Background(), r); err != nil {
		t.Fatalf("seed reference %d: %v", id, err)
	}
	return r
}
