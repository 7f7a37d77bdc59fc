// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"
	"math"
	"testing"

	"github.com/atlasgraph/atlas/internal/model"
	"github.com/atlasgraph/atlas/pkg/embeddings"
)

type fakeVectorIndex struct{ results []Result }

func (f *fakeVectorIndex) QueryVector(context.Context, []float32, model.EntityType, int) ([]Result, error) {
	return f.results, nil
}

type fakeTextIndex struct{ results []Result }

func (f *fakeTextIndex) QueryText(context.Context, string, int) ([]Result, error) {
	return f.results, nil
}

func TestHybrid_DedupesKeepingLowestDistance(t *testing.T) {
	vec := &fakeVectorIndex{results: []Result{
		{EntityType: model.EntityDefinition, EntityID: 1, Distance: 0.5},
		{EntityType: model.EntityDefinition, EntityID: 2, Distance: 0.2},
	}}
	defFTS := &fakeTextIndex{results: []Result{
		{EntityType: model.EntityDefinition, EntityID: 1, Distance: 0.1}, // better than vector's 0.5
	}}
	fileFTS := &fakeTextIndex{}

	s := New(embeddings.NewMock(4), Indexes{Vector: vec, DefinitionFTS: defFTS, FileFTS: fileFTS})
	results, err := s.Hybrid(context.Background(), "query text", 10)
	if err != nil {
		t.Fatalf("Hybrid: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 deduplicated results, got %d", len(results))
	}
	if results[0].EntityID != 1 || results[0].Distance != 0.1 {
		t.Fatalf("expected entity 1 with distance 0.1 first, got %+v", results[0])
	}
	if results[1].EntityID != 2 {
		t.Fatalf("expected entity 2 second, got %+v", results[1])
	}
}

func TestHybrid_TruncatesToTopK(t *testing.T) {
	vec := &fakeVectorIndex{results: []Result{
		{EntityType: model.EntityFile, EntityID: 1, Distance: 0.1},
		{EntityType: model.EntityFile, EntityID: 2, Distance: 0.2},
		{EntityType: model.EntityFile, EntityID: 3, Distance: 0.3},
	}}
	s := New(embeddings.NewMock(4), Indexes{Vector: vec, DefinitionFTS: &fakeTextIndex{}, FileFTS: &fakeTextIndex{}})
	results, err := s.Hybrid(context.Background(), "q", 2)
	if err != nil {
		t.Fatalf("Hybrid: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected truncation to 2 results, got %d", len(results))
	}
}

func TestSimilarity_MapsDistanceToUnitRange(t *testing.T) {
	if got := Similarity(0); math.Abs(got-1) > 1e-9 {
		t.Fatalf("Similarity(0) = %f, want 1", got)
	}
	if got := Similarity(1); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("Similarity(1) = %f, want 0.5", got)
	}
}
