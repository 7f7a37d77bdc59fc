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

// Package resolver maps identifier occurrences to the Definition that
// declares them, across the whole repository, by (file, line) rather
// than by language-specific import/package bookkeeping: an occurrence
// resolves to the Definition in its target file whose start_line
// equals the occurrence's 0-based start line plus one. This is
// language-agnostic, unlike a per-language symbol table, at the cost
// of requiring the caller to have already narrowed an occurrence down
// to a candidate target file (via import resolution upstream).
package resolver

import (
	"github.com/atlasgraph/atlas/internal/model"
)

// Occurrence is one identifier use-site found inside a Definition's body.
type Occurrence struct {
	SourceDefinitionID int64
	SourceFileID       int64

	// TargetFileID is the file the occurrence's symbol is believed to
	// come from. 0 means "same file as the source" (a local reference);
	// any other value means an upstream import-resolution pass decided
	// the symbol comes from that file.
	TargetFileID int64

	// Line is the occurrence's 0-based start line as reported by the
	// grammar; the resolver compares Line+1 against a Definition's
	// 1-based StartLine.
	Line int

	SymbolName string
}

// Index is a prebuilt (file_id, start_line) -> definition_id lookup
// table, built once per run and reused for every occurrence.
type Index struct {
	byFileLine map[fileLine]int64
	fileOf     map[int64]int64 // definition_id -> file_id
}

type fileLine struct {
	fileID int64
	line   int
}

// BuildIndex indexes defs by (FileID, StartLine).
func BuildIndex(defs []model.Definition) *Index {
	idx := &Index{
		byFileLine: make(map[fileLine]int64, len(defs)),
		fileOf:     make(map[int64]int64, len(defs)),
	}
	for _, d := range defs {
		idx.byFileLine[fileLine{fileID: d.FileID, line: d.StartLine}] = d.ID
		idx.fileOf[d.ID] = d.FileID
	}
	return idx
}

// Resolve maps occurrences to References. A resolver failure for a
// single occurrence (no definition starts at that file+line) yields an
// unresolved Reference (TargetDefinitionID nil, reference_type
// unknown) rather than an error, matching the per-symbol failure
// semantics: the run is never aborted by one bad occurrence.
func (idx *Index) Resolve(occurrences []Occurrence) []model.Reference {
	refs := make([]model.Reference, 0, len(occurrences))

	for _, occ := range occurrences {
		targetFile := occ.TargetFileID
		if targetFile == 0 {
			targetFile = occ.SourceFileID
		}

		defID, ok := idx.byFileLine[fileLine{fileID: targetFile, line: occ.Line + 1}]
		if !ok {
			refs = append(refs, model.Reference{
				SourceDefinitionID: occ.SourceDefinitionID,
				TargetDefinitionID: nil,
				ReferenceName:      occ.SymbolName,
				ReferenceType:      model.ReferenceUnknown,
			})
			continue
		}

		if defID == occ.SourceDefinitionID {
			continue // self-reference: excluded from the dependency graph
		}

		id := defID
		refType := model.ReferenceLocal
		if idx.fileOf[defID] != occ.SourceFileID {
			refType = model.ReferenceImported
		}

		refs = append(refs, model.Reference{
			SourceDefinitionID: occ.SourceDefinitionID,
			TargetDefinitionID: &id,
			ReferenceName:      occ.SymbolName,
			ReferenceType:      refType,
		})
	}

	return refs
}

// Dedupe drops references that duplicate an earlier (source, target)
// pair, matching the "on-conflict-do-nothing by (source, target)"
// insert semantics without needing a database round trip.
func Dedupe(refs []model.Reference) []model.Reference {
	seen := make(map[[2]int64]struct{}, len(refs))
	out := make([]model.Reference, 0, len(refs))
	for _, r := range refs {
		if r.TargetDefinitionID == nil {
			out = append(out, r)
			continue
		}
		key := [2]int64{r.SourceDefinitionID, *r.TargetDefinitionID}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
