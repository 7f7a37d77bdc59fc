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

package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/atlasgraph/atlas/internal/clone"
	"github.com/atlasgraph/atlas/internal/depgraph"
	"github.com/atlasgraph/atlas/internal/embedder"
	"github.com/atlasgraph/atlas/internal/graph"
	"github.com/atlasgraph/atlas/internal/ids"
	"github.com/atlasgraph/atlas/internal/ingest"
	"github.com/atlasgraph/atlas/internal/llmclient"
	"github.com/atlasgraph/atlas/internal/model"
	"github.com/atlasgraph/atlas/internal/orchestrator"
	"github.com/atlasgraph/atlas/internal/runctx"
	"github.com/atlasgraph/atlas/internal/summarizer"
	"github.com/atlasgraph/atlas/pkg/embeddings"
	"github.com/atlasgraph/atlas/pkg/llm"
	"github.com/atlasgraph/atlas/pkg/parser"
	"github.com/atlasgraph/atlas/pkg/storage"
)

// buildEmbeddingProvider constructs pkg/embeddings' Provider from the
// project config.
func buildEmbeddingProvider(cfg EmbeddingConfig) (embeddings.Provider, error) {
	return embeddings.New(embeddings.Config{
		Type:       cfg.Provider,
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
	})
}

// buildLLMProvider constructs pkg/llm's Provider from the project config.
func buildLLMProvider(cfg LLMConfig) (llm.Provider, error) {
	return llm.NewProvider(llm.ProviderConfig{
		Type:         cfg.Provider,
		BaseURL:      cfg.BaseURL,
		APIKey:       cfg.APIKey,
		DefaultModel: cfg.Model,
	})
}

// pipelineBuilder is the ingestion job's composition root: it owns the
// mutable state (the cloned checkout, the running parse pipeline, and
// the set of entities summarized this run) that orchestrator.Phases'
// four independent callbacks need to share across a single job.
type pipelineBuilder struct {
	cfg          *Config
	store        *storage.Store
	registry     *parser.Registry
	chat         summarizer.ChatClient
	embed        embeddings.Provider
	repositoryID int64
	rc           *runctx.Context
	onProgress   func(phase string)

	mu       sync.Mutex
	repo     *clone.Repository
	pipeline *ingest.Pipeline
}

// newPipelineBuilder assembles a pipelineBuilder from a loaded project
// config; callers get its Phases() for orchestrator.Orchestrator.Run.
// rc is the Run Context for this job: it carries the run id, the
// logger, and the shared touched-entity caches read back by summarize
// and embedEntities, instead of ad hoc builder fields.
func newPipelineBuilder(cfg *Config, store *storage.Store, repositoryID int64, rc *runctx.Context, onProgress func(phase string)) (*pipelineBuilder, error) {
	embedProvider, err := buildEmbeddingProvider(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("build embedding provider: %w", err)
	}
	llmProvider, err := buildLLMProvider(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("build llm provider: %w", err)
	}
	return &pipelineBuilder{
		cfg:          cfg,
		store:        store,
		registry:     parser.NewRegistry(),
		chat:         llmclient.New(llmProvider, cfg.LLM.Model),
		embed:        embedProvider,
		repositoryID: repositoryID,
		rc:           rc,
		onProgress:   onProgress,
	}, nil
}

// Phases returns the orchestrator.Phases wired against this builder's
// collaborators.
func (b *pipelineBuilder) Phases() orchestrator.Phases {
	return orchestrator.Phases{
		CloneRepo: b.cloneRepo,
		Parse:     b.parse,
		Summarize: b.summarize,
		Embed:     b.embedEntities,
	}
}

// Close releases the clone checkout, if one was made.
func (b *pipelineBuilder) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.repo == nil {
		return nil
	}
	return b.repo.Close()
}

func (b *pipelineBuilder) report(phase string) {
	if b.onProgress != nil {
		b.onProgress(phase)
	}
}

func (b *pipelineBuilder) cloneRepo(ctx context.Context, mode orchestrator.Mode) (string, error) {
	b.report("cloning_repo")
	existing, err := b.store.GetRepository(ctx, b.repositoryID)
	if err != nil {
		return "", fmt.Errorf("load repository record: %w", err)
	}

	localPath := b.cfg.Repository.LocalPath
	remote := b.cfg.Repository.RemoteURL
	repo, err := clone.Open(b.rc.Logger, localPath, remote)
	if err != nil {
		return "", fmt.Errorf("open repository: %w", err)
	}

	var changes *model.GitChanges
	if mode == orchestrator.ModeIncremental && existing.CommitHash != "" && existing.CommitHash != repo.Commit {
		changes, err = repo.Changes(existing.CommitHash, repo.Commit)
		if err != nil {
			repo.Close()
			return "", fmt.Errorf("diff commits: %w", err)
		}
	}

	b.mu.Lock()
	b.repo = repo
	b.pipeline = ingest.NewPipeline(b.registry, b.store, b.rc.Logger, b.repositoryID, repo.Path(), changes)
	b.mu.Unlock()

	return repo.Commit, nil
}

func (b *pipelineBuilder) parse(ctx context.Context, mode orchestrator.Mode) (*model.ParseDelta, error) {
	b.report("parse")
	b.mu.Lock()
	pipeline := b.pipeline
	b.mu.Unlock()
	if pipeline == nil {
		return nil, fmt.Errorf("parse: CloneRepo did not run first")
	}
	return pipeline.Parse(ctx, mode)
}

func (b *pipelineBuilder) summarize(ctx context.Context, mode orchestrator.Mode, delta *model.ParseDelta) error {
	b.report("summaries")
	built, err := depgraph.Materialize(ctx, b.store, b.repositoryID)
	if err != nil {
		return fmt.Errorf("materialize dependency graph: %w", err)
	}

	var defGraph, fileGraph *graph.Graph
	if mode == orchestrator.ModeFull {
		defGraph, fileGraph = built.Definitions, built.Files
	} else {
		fileIDByPath := make(map[string]int64)
		for _, path := range delta.FilesAdded {
			fileIDByPath[path] = ids.FileID(b.repositoryID, path)
		}
		for _, path := range delta.FilesModified {
			fileIDByPath[path] = ids.FileID(b.repositoryID, path)
		}
		for _, ren := range delta.FilesRenamed {
			fileIDByPath[ren.New] = ids.FileID(b.repositoryID, ren.New)
		}
		pathByFileID := make(map[int64]string, len(fileIDByPath))
		for path, fid := range fileIDByPath {
			pathByFileID[fid] = path
		}
		defsByPath := make(map[string][]int64)
		for defID, fid := range built.DefinitionFile {
			if path, ok := pathByFileID[fid]; ok {
				defsByPath[path] = append(defsByPath[path], defID)
			}
		}
		defSeeds, fileSeeds := depgraph.IncrementalSeeds(delta, defsByPath, fileIDByPath)
		defGraph, fileGraph = depgraph.AncestorSubgraphs(built, defSeeds, fileSeeds)
	}

	cfg := summarizer.Config{
		MinBatchSize:         b.cfg.Summarizer.MinBatchSize,
		MaxConcurrent:        b.cfg.Summarizer.MaxConcurrent,
		MaxRequestsPerSecond: b.cfg.Summarizer.MaxRequestsPerSecond,
	}
	proc := summarizer.New(b.store, b.store, b.chat, cfg)

	defLevels := graph.Levels(defGraph)
	if err := proc.RunDefinitionLevels(ctx, defLevels); err != nil {
		return fmt.Errorf("summarize definitions: %w", err)
	}
	fileLevels := graph.Levels(fileGraph)
	if err := proc.RunFileLevels(ctx, fileLevels); err != nil {
		return fmt.Errorf("summarize files: %w", err)
	}

	touchedDef := b.rc.Cache("touched_definitions")
	for _, id := range defGraph.Nodes {
		touchedDef.Store(id, struct{}{})
	}
	touchedFile := b.rc.Cache("touched_files")
	for _, id := range fileGraph.Nodes {
		touchedFile.Store(id, struct{}{})
	}
	b.rc.Counter("definitions_summarized").Add(int64(len(defGraph.Nodes)))
	b.rc.Counter("files_summarized").Add(int64(len(fileGraph.Nodes)))
	return nil
}

func (b *pipelineBuilder) embedEntities(ctx context.Context, mode orchestrator.Mode, delta *model.ParseDelta) error {
	b.report("embeddings")
	touchedDef := b.rc.Cache("touched_definitions")
	touchedFile := b.rc.Cache("touched_files")

	defs, err := b.store.RepositoryDefinitions(ctx, b.repositoryID)
	if err != nil {
		return fmt.Errorf("load definitions for embedding: %w", err)
	}
	fileRows, err := b.store.RepositoryFiles(ctx, b.repositoryID)
	if err != nil {
		return fmt.Errorf("load files for embedding: %w", err)
	}
	pathByFileID := make(map[int64]string, len(fileRows))
	for path, row := range fileRows {
		pathByFileID[row.ID] = path
	}

	var candidates []embedder.Candidate
	for _, d := range defs {
		if _, ok := touchedDef.Load(d.ID); !ok {
			continue
		}
		sum, ok, err := b.store.GetDefinitionSummary(ctx, d.ID)
		if err != nil {
			return fmt.Errorf("load summary for definition %d: %w", d.ID, err)
		}
		if !ok || sum.Full == "" {
			continue
		}
		candidates = append(candidates, embedder.Candidate{
			EntityType:     model.EntityDefinition,
			EntityID:       d.ID,
			Text:           embedder.DefinitionText(sum.Full, d.Name, string(d.Kind)),
			EntityName:     d.Name,
			FilePath:       pathByFileID[d.FileID],
			DefinitionType: string(d.Kind),
		})
	}
	var rangeErr error
	touchedFile.Range(func(key, _ any) bool {
		fileID := key.(int64)
		sum, ok, err := b.store.GetFileSummary(ctx, fileID)
		if err != nil {
			rangeErr = fmt.Errorf("load summary for file %d: %w", fileID, err)
			return false
		}
		if !ok || sum.Full == "" {
			return true
		}
		path := pathByFileID[fileID]
		candidates = append(candidates, embedder.Candidate{
			EntityType: model.EntityFile,
			EntityID:   fileID,
			Text:       sum.Full,
			FilePath:   path,
		})
		return true
	})
	if rangeErr != nil {
		return rangeErr
	}
	b.rc.Counter("entities_embedded").Add(int64(len(candidates)))
	if len(candidates) == 0 {
		return nil
	}

	cfg := embedder.Config{
		MinBatchSize:      b.cfg.Embedder.MinBatchSize,
		MaxConcurrent:     b.cfg.Embedder.MaxConcurrent,
		MaxRequestsPerMin: b.cfg.Embedder.MaxRequestsPerSecond * 60,
	}
	return embedder.New(b.embed, b.store, cfg).Run(ctx, candidates)
}
