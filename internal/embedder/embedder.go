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

// Package embedder turns every entity with a non-empty summary into a
// vector, batching the provider calls and upserting idempotently into
// the store and its vector index.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/atlasgraph/atlas/internal/metrics"
	"github.com/atlasgraph/atlas/internal/model"
	"github.com/atlasgraph/atlas/internal/retry"
	"github.com/atlasgraph/atlas/pkg/embeddings"
)

// Candidate is one entity eligible for embedding.
type Candidate struct {
	EntityType     model.EntityType
	EntityID       int64
	Text           string
	EntityName     string
	FilePath       string
	Language       string
	DefinitionType string
}

// Store upserts embedding rows, keyed by (entity_type, entity_id).
type Store interface {
	UpsertEmbedding(ctx context.Context, e model.Embedding) error
	Commit(ctx context.Context) error
}

// Config tunes batched execution per §4.4.
type Config struct {
	MinBatchSize       int
	MaxConcurrent      int
	BatchTimeout       time.Duration
	MaxRequestsPerMin  float64
}

// DefaultConfig provides reasonable batch sizing; callers should tune
// MaxRequestsPerMin to their provider's published rate limit.
var DefaultConfig = Config{
	MinBatchSize:      100,
	MaxConcurrent:     4,
	BatchTimeout:      300 * time.Second,
	MaxRequestsPerMin: 3000,
}

// Embedder computes and persists embeddings for a set of Candidates.
type Embedder struct {
	provider embeddings.Provider
	store    Store
	cfg      Config
}

// New builds an Embedder. Zero-valued cfg fields fall back to DefaultConfig.
func New(provider embeddings.Provider, store Store, cfg Config) *Embedder {
	if cfg.MinBatchSize == 0 {
		cfg.MinBatchSize = DefaultConfig.MinBatchSize
	}
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = DefaultConfig.MaxConcurrent
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = DefaultConfig.BatchTimeout
	}
	if cfg.MaxRequestsPerMin == 0 {
		cfg.MaxRequestsPerMin = DefaultConfig.MaxRequestsPerMin
	}
	return &Embedder{provider: provider, store: store, cfg: cfg}
}

// Run partitions candidates into batches and processes them
// concurrently under a semaphore, pacing between batches.
func (e *Embedder) Run(ctx context.Context, candidates []Candidate) error {
	batchSize := e.cfg.MinBatchSize
	sem := make(chan struct{}, e.cfg.MaxConcurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var failures []error

	numBatches := (len(candidates) + batchSize - 1) / batchSize
	for b := 0; b < numBatches; b++ {
		start := b * batchSize
		end := start + batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]

		wg.Add(1)
		sem <- struct{}{}
		go func(batch []Candidate) {
			defer wg.Done()
			defer func() { <-sem }()

			batchCtx, cancel := context.WithTimeout(ctx, e.cfg.BatchTimeout)
			defer cancel()

			if err := e.runBatch(batchCtx, batch); err != nil {
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
			}
		}(batch)

		if b < numBatches-1 {
			sleepFor := time.Duration(float64(len(batch)) / (e.cfg.MaxRequestsPerMin / 60) * float64(time.Second))
			metrics.IncRateLimitSleep("embedder")
			select {
			case <-ctx.Done():
				wg.Wait()
				return ctx.Err()
			case <-time.After(sleepFor):
			}
		}
	}
	wg.Wait()

	if len(failures) > 0 {
		return fmt.Errorf("embedder: %d batch(es) failed: %w", len(failures), errors.Join(failures...))
	}
	return e.store.Commit(ctx)
}

func (e *Embedder) runBatch(ctx context.Context, batch []Candidate) error {
	metrics.ObserveBatchSize("embeddings", len(batch))

	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	var vectors [][]float32
	err := retry.Do(ctx, retry.DefaultPolicy, nil,
		func(attempt int, wait time.Duration) { metrics.IncRetries("embeddings") },
		func() error {
			out, err := e.provider.Embed(ctx, texts)
			if err != nil {
				return err
			}
			vectors = out
			return nil
		})
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("embed batch: provider returned %d vectors for %d inputs", len(vectors), len(batch))
	}

	for i, c := range batch {
		row := model.Embedding{
			EntityType:     c.EntityType,
			EntityID:       c.EntityID,
			Vector:         vectors[i],
			EmbeddingModel: e.provider.Name(),
			EmbeddingDims:  len(vectors[i]),
			EntityName:     c.EntityName,
			FilePath:       c.FilePath,
			Language:       c.Language,
			DefinitionType: c.DefinitionType,
		}
		if err := e.store.UpsertEmbedding(ctx, row); err != nil {
			return fmt.Errorf("upsert embedding for %s %d: %w", c.EntityType, c.EntityID, err)
		}
	}
	metrics.AddEmbeddingsComputed(len(batch))
	return nil
}

// DefinitionText builds the embedding input text for a definition per
// §4.4: its summary plus a denormalized name/type footer.
func DefinitionText(summary, name, kind string) string {
	return fmt.Sprintf("%s\n\nName: %s\nType: %s", summary, name, kind)
}
