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

// Package search implements vector, full-text, and hybrid retrieval
// over the embeddings, definitions, and files tables.
package search

import (
	"context"
	"sort"

	"github.com/atlasgraph/atlas/internal/model"
	"github.com/atlasgraph/atlas/pkg/embeddings"
)

// Result is one ranked hit, ready for display.
type Result struct {
	EntityType model.EntityType
	EntityID   int64
	EntityName string
	FilePath   string
	Summary    string
	Distance   float64
}

// VectorIndex runs a k-NN query against the embeddings vector index.
type VectorIndex interface {
	QueryVector(ctx context.Context, vector []float32, entityType model.EntityType, k int) ([]Result, error)
}

// TextIndex runs a BM25-style query against a single full-text index.
type TextIndex interface {
	QueryText(ctx context.Context, query string, k int) ([]Result, error)
}

// Indexes bundles the collaborators a Searcher queries against: one
// vector index plus the two full-text indexes (definition names, file
// paths) described in §4.5.
type Indexes struct {
	Vector        VectorIndex
	DefinitionFTS TextIndex
	FileFTS       TextIndex
}

// Searcher answers vector, full-text, and hybrid queries.
type Searcher struct {
	embed   embeddings.Provider
	indexes Indexes
}

// New builds a Searcher.
func New(embed embeddings.Provider, indexes Indexes) *Searcher {
	return &Searcher{embed: embed, indexes: indexes}
}

// Vector embeds query and runs a k-NN search, optionally restricted to
// entityType ("" means unrestricted).
func (s *Searcher) Vector(ctx context.Context, query string, entityType model.EntityType, k int) ([]Result, error) {
	vecs, err := s.embed.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	results, err := s.indexes.Vector.QueryVector(ctx, vecs[0], entityType, k)
	if err != nil {
		return nil, err
	}
	sortByDistance(results)
	return truncate(results, k), nil
}

// FullText queries both the definition-name and file-path indexes and
// merges them, each contributing rank-as-distance per §4.5.
func (s *Searcher) FullText(ctx context.Context, query string, k int) ([]Result, error) {
	defs, err := s.indexes.DefinitionFTS.QueryText(ctx, query, k)
	if err != nil {
		return nil, err
	}
	files, err := s.indexes.FileFTS.QueryText(ctx, query, k)
	if err != nil {
		return nil, err
	}
	merged := dedupeKeepLowestDistance(append(defs, files...))
	sortByDistance(merged)
	return truncate(merged, k), nil
}

// Hybrid unions vector results (both entity types) with full-text
// results, deduplicates by (entity_type, entity_id) keeping the lowest
// distance, sorts ascending, and truncates to topK.
func (s *Searcher) Hybrid(ctx context.Context, query string, topK int) ([]Result, error) {
	vector, err := s.Vector(ctx, query, "", topK)
	if err != nil {
		return nil, err
	}
	text, err := s.FullText(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	merged := dedupeKeepLowestDistance(append(vector, text...))
	sortByDistance(merged)
	return truncate(merged, topK), nil
}

func dedupeKeepLowestDistance(results []Result) []Result {
	type key struct {
		t  model.EntityType
		id int64
	}
	best := make(map[key]Result, len(results))
	for _, r := range results {
		k := key{r.EntityType, r.EntityID}
		if existing, ok := best[k]; !ok || r.Distance < existing.Distance {
			best[k] = r
		}
	}
	out := make([]Result, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	return out
}

func sortByDistance(results []Result) {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
}

func truncate(results []Result, k int) []Result {
	if k > 0 && len(results) > k {
		return results[:k]
	}
	return results
}

// Similarity maps a distance into [0,1], per §4.5's distance -> 1/(1+distance).
func Similarity(distance float64) float64 {
	return 1 / (1 + distance)
}
