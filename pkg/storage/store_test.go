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

package storage_test

import (
	"context"
	"testing"

	"github.com/atlasgraph/atlas/internal/model"
	"github.com/atlasgraph/atlas/internal/orchestrator"
	"github.com/atlasgraph/atlas/internal/summarizer"
	atlastesting "github.com/atlasgraph/atlas/internal/testing"
	. "github.com/atlasgraph/atlas/pkg/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return atlastesting.SetupTestStore(t)
}

func putRepository(t *testing.T, s *Store, repo model.Repository) {
	t.Helper()
	atlastesting.InsertTestRepository(t, s, repo)
}

func TestStore_DefinitionSummaryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.GetDefinitionSummary(ctx, 1); err != nil || ok {
		t.Fatalf("expected no summary yet, got ok=%v err=%v", ok, err)
	}

	want := summarizer.Summary{Short: "does a thing", Full: "## Does a thing\n\nmore detail"}
	if err := s.SetDefinitionSummary(ctx, 1, want); err != nil {
		t.Fatalf("SetDefinitionSummary: %v", err)
	}

	got, ok, err := s.GetDefinitionSummary(ctx, 1)
	if err != nil {
		t.Fatalf("GetDefinitionSummary: %v", err)
	}
	if !ok || got != want {
		t.Fatalf("GetDefinitionSummary = %+v, ok=%v, want %+v", got, ok, want)
	}
}

func TestStore_FileSummaryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := summarizer.Summary{Short: "helpers", Full: "utility helpers"}
	if err := s.SetFileSummary(ctx, 7, want); err != nil {
		t.Fatalf("SetFileSummary: %v", err)
	}
	got, ok, err := s.GetFileSummary(ctx, 7)
	if err != nil || !ok || got != want {
		t.Fatalf("GetFileSummary = %+v, ok=%v, err=%v, want %+v", got, ok, err, want)
	}
}

func TestStore_UpsertEmbeddingIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	vec := make([]float32, 1536)
	vec[0] = 0.5

	row := model.Embedding{
		EntityType: model.EntityDefinition, EntityID: 42, Vector: vec,
		EmbeddingModel: "mock", EmbeddingDims: 1536, EntityName: "Foo",
	}
	if err := s.UpsertEmbedding(ctx, row); err != nil {
		t.Fatalf("UpsertEmbedding: %v", err)
	}
	row.EntityName = "FooRenamed"
	if err := s.UpsertEmbedding(ctx, row); err != nil {
		t.Fatalf("UpsertEmbedding (overwrite): %v", err)
	}

	results, err := s.QueryVector(ctx, vec, model.EntityDefinition, 5)
	if err != nil {
		t.Fatalf("QueryVector: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected a single row after upsert-overwrite, got %d", len(results))
	}
	if results[0].EntityName != "FooRenamed" {
		t.Fatalf("expected the overwritten name, got %q", results[0].EntityName)
	}
}

func TestStore_RepositoryCommitHashRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	putRepository(t, s, model.Repository{ID: 1, RemoteURL: "https://example.com/r.git", Slug: "r"})

	repo, err := s.GetRepository(ctx, 1)
	if err != nil {
		t.Fatalf("GetRepository: %v", err)
	}
	if repo.CommitHash != "" {
		t.Fatalf("expected no commit hash yet, got %q", repo.CommitHash)
	}

	if err := s.SetCommitHash(ctx, 1, "abc123"); err != nil {
		t.Fatalf("SetCommitHash: %v", err)
	}
	repo, err = s.GetRepository(ctx, 1)
	if err != nil {
		t.Fatalf("GetRepository after SetCommitHash: %v", err)
	}
	if repo.CommitHash != "abc123" {
		t.Fatalf("expected commit hash abc123, got %q", repo.CommitHash)
	}
	if repo.RemoteURL != "https://example.com/r.git" {
		t.Fatalf("SetCommitHash clobbered remote_url: %q", repo.RemoteURL)
	}
}

func TestStore_SetJobStatusPersists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	status := orchestrator.JobStatus{RunID: "run-1", RepositoryID: 1, Mode: orchestrator.ModeFull, Phase: orchestrator.PhaseParse}
	if err := s.SetJobStatus(ctx, status); err != nil {
		t.Fatalf("SetJobStatus: %v", err)
	}
}

func TestDefinitionTextIndex_MatchesSubstring(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedDefinition(t, s, 1, 10, "HandleRequest")
	seedDefinition(t, s, 2, 10, "parseConfig")

	idx := NewDefinitionTextIndex(s)
	results, err := idx.QueryText(ctx, "Handle", 10)
	if err != nil {
		t.Fatalf("QueryText: %v", err)
	}
	if len(results) != 1 || results[0].EntityID != 1 {
		t.Fatalf("expected only definition 1 to match, got %+v", results)
	}
}

func TestFileTextIndex_MatchesSubstring(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedFile(t, s, 10, "internal/auth/login.go")
	seedFile(t, s, 11, "internal/search/search.go")

	idx := NewFileTextIndex(s)
	results, err := idx.QueryText(ctx, "auth", 10)
	if err != nil {
		t.Fatalf("QueryText: %v", err)
	}
	if len(results) != 1 || results[0].EntityID != 10 {
		t.Fatalf("expected only file 10 to match, got %+v", results)
	}
}

func seedFile(t *testing.T, s *Store, id int64, path string) {
	t.Helper()
	atlastesting.InsertTestFile(t, s, id, 1, path, "go")
}

func seedDefinition(t *testing.T, s *Store, id, fileID int64, name string) {
	t.Helper()
	seedFile(t, s, fileID, "f.go")
	atlastesting.InsertTestDefinition(t, s, id, fileID, name, model.KindFunction, 1, 2)
}
