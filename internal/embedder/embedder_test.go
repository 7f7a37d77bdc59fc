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

package embedder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/atlasgraph/atlas/internal/model"
	"github.com/atlasgraph/atlas/pkg/embeddings"
)

type fakeStore struct {
	mu   sync.Mutex
	rows map[int64]model.Embedding
}

func newFakeStore() *fakeStore { return &fakeStore{rows: make(map[int64]model.Embedding)} }

func (s *fakeStore) UpsertEmbedding(_ context.Context, e model.Embedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[e.EntityID] = e
	return nil
}
func (s *fakeStore) Commit(context.Context) error { return nil }

func TestEmbedder_Run_UpsertsAllCandidates(t *testing.T) {
	store := newFakeStore()
	provider := embeddings.NewMock(8)
	e := New(provider, store, Config{MinBatchSize: 2, MaxConcurrent: 2, BatchTimeout: time.Second, MaxRequestsPerMin: 60000})

	candidates := []Candidate{
		{EntityType: model.EntityDefinition, EntityID: 1, Text: "func A", EntityName: "A"},
		{EntityType: model.EntityDefinition, EntityID: 2, Text: "func B", EntityName: "B"},
		{EntityType: model.EntityFile, EntityID: 3, Text: "file content", FilePath: "a.go"},
	}
	if err := e.Run(context.Background(), candidates); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.rows) != 3 {
		t.Fatalf("expected 3 upserted rows, got %d", len(store.rows))
	}
	for _, c := range candidates {
		row, ok := store.rows[c.EntityID]
		if !ok {
			t.Fatalf("missing row for entity %d", c.EntityID)
		}
		if len(row.Vector) != 8 {
			t.Fatalf("expected an 8-dim vector, got %d", len(row.Vector))
		}
	}
}

func TestEmbedder_Run_EmptyCandidatesIsNoop(t *testing.T) {
	store := newFakeStore()
	e := New(embeddings.NewMock(4), store, Config{})
	if err := e.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run on empty input should not error: %v", err)
	}
}

func TestDefinitionText_IncludesNameAndKind(t *testing.T) {
	got := DefinitionText("does a thing", "Foo", "function")
	if got == "" {
		t.Fatalf("expected non-empty text")
	}
	want := "does a thing\n\nName: Foo\nType: function"
	if got != want {
		t.Fatalf("DefinitionText = %q, want %q", got, want)
	}
}
