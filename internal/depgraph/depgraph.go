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

// Package depgraph builds the DefinitionGraph and FileGraph described
// in §4.2 from a repository's stored References, persists them into
// the atlas_definition_dependency / atlas_file_dependency tables for
// downstream inspection, and hands the in-memory internal/graph.Graph
// values to the summarizer's level traversal.
package depgraph

import (
	"context"
	"fmt"

	"github.com/atlasgraph/atlas/internal/graph"
	"github.com/atlasgraph/atlas/internal/model"
)

// Store is depgraph's storage collaborator.
type Store interface {
	RepositoryDefinitions(ctx context.Context, repositoryID int64) ([]model.Definition, error)
	RepositoryReferences(ctx context.Context, repositoryID int64) ([]model.Reference, error)
	ReplaceDependencies(ctx context.Context, definitionIDs, fileIDs []int64, defEdges []model.DefinitionDependency, fileEdges []model.FileDependency) error
}

// Built bundles the two full-repository graphs and the definition ->
// file map needed to restrict either one to an ancestor-closure
// subgraph for an incremental run.
type Built struct {
	Definitions   *graph.Graph
	Files         *graph.Graph
	DefinitionFile map[int64]int64
}

// Materialize rebuilds both graphs for repositoryID from the current
// Reference rows, persists them, and returns them ready for
// internal/graph.Levels.
func Materialize(ctx context.Context, store Store, repositoryID int64) (*Built, error) {
	defs, err := store.RepositoryDefinitions(ctx, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("depgraph: load definitions: %w", err)
	}
	refs, err := store.RepositoryReferences(ctx, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("depgraph: load references: %w", err)
	}

	defIDs := make([]int64, 0, len(defs))
	defFile := make(map[int64]int64, len(defs))
	fileSet := make(map[int64]struct{})
	for _, d := range defs {
		defIDs = append(defIDs, d.ID)
		defFile[d.ID] = d.FileID
		fileSet[d.FileID] = struct{}{}
	}
	fileIDs := make([]int64, 0, len(fileSet))
	for f := range fileSet {
		fileIDs = append(fileIDs, f)
	}

	var defEdges []graph.Edge
	var depEdges []model.DefinitionDependency
	fileEdgeSeen := make(map[[2]int64]struct{})
	var fileDeps []model.FileDependency
	var fileEdges []graph.Edge

	for _, r := range refs {
		if r.TargetDefinitionID == nil {
			continue // unresolved reference: no edge in either graph
		}
		from, to := r.SourceDefinitionID, *r.TargetDefinitionID
		if from == to {
			continue // self-reference excluded per §4.2
		}
		defEdges = append(defEdges, graph.Edge{From: from, To: to})
		depEdges = append(depEdges, model.DefinitionDependency{
			FromDefinitionID: from, ToDefinitionID: to, DependencyType: string(r.ReferenceType),
		})

		fromFile, toFile := defFile[from], defFile[to]
		if fromFile == 0 || toFile == 0 || fromFile == toFile {
			continue
		}
		key := [2]int64{fromFile, toFile}
		if _, dup := fileEdgeSeen[key]; dup {
			continue
		}
		fileEdgeSeen[key] = struct{}{}
		fileEdges = append(fileEdges, graph.Edge{From: fromFile, To: toFile})
		fileDeps = append(fileDeps, model.FileDependency{FromFileID: fromFile, ToFileID: toFile})
	}

	if err := store.ReplaceDependencies(ctx, defIDs, fileIDs, depEdges, fileDeps); err != nil {
		return nil, fmt.Errorf("depgraph: persist dependencies: %w", err)
	}

	return &Built{
		Definitions:    graph.New(defIDs, defEdges),
		Files:          graph.New(fileIDs, fileEdges),
		DefinitionFile: defFile,
	}, nil
}

// IncrementalSeeds computes seed_def_ids and seed_file_ids per §4.2's
// incremental rule: every definition belonging to an added/modified/
// renamed file, union delta.DefinitionsAdded, plus those files' ids.
func IncrementalSeeds(delta *model.ParseDelta, defsByPath map[string][]int64, fileIDByPath map[string]int64) (defSeeds, fileSeeds []int64) {
	touched := make(map[string]struct{})
	for _, p := range delta.FilesAdded {
		touched[p] = struct{}{}
	}
	for _, p := range delta.FilesModified {
		touched[p] = struct{}{}
	}
	for _, ren := range delta.FilesRenamed {
		touched[ren.New] = struct{}{}
	}

	seenDef := make(map[int64]struct{})
	seenFile := make(map[int64]struct{})
	for path := range touched {
		for _, id := range defsByPath[path] {
			if _, ok := seenDef[id]; !ok {
				seenDef[id] = struct{}{}
				defSeeds = append(defSeeds, id)
			}
		}
		if fid, ok := fileIDByPath[path]; ok {
			if _, ok := seenFile[fid]; !ok {
				seenFile[fid] = struct{}{}
				fileSeeds = append(fileSeeds, fid)
			}
		}
	}
	for _, ids := range delta.DefinitionsAdded {
		for _, id := range ids {
			if _, ok := seenDef[id]; !ok {
				seenDef[id] = struct{}{}
				defSeeds = append(defSeeds, id)
			}
		}
	}
	return defSeeds, fileSeeds
}

// AncestorSubgraphs restricts built's full graphs to the ancestor
// closure of the given seeds, per §4.2's incremental-run rule: every
// node that transitively references a seed is included.
func AncestorSubgraphs(built *Built, defSeeds, fileSeeds []int64) (defs, files *graph.Graph) {
	defNodes := graph.Ancestors(built.Definitions, defSeeds)
	fileNodes := graph.Ancestors(built.Files, fileSeeds)
	return graph.Subgraph(built.Definitions, defNodes), graph.Subgraph(built.Files, fileNodes)
}
