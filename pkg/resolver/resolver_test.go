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

package resolver

import (
	"testing"

	"github.com/atlasgraph/atlas/internal/model"
)

func TestResolve_LocalAndImportedReferences(t *testing.T) {
	defs := []model.Definition{
		{ID: 1, FileID: 10, Name: "helper", StartLine: 5},
		{ID: 2, FileID: 10, Name: "caller", StartLine: 20},
		{ID: 3, FileID: 11, Name: "other", StartLine: 3},
	}
	idx := BuildIndex(defs)

	occs := []Occurrence{
		{SourceDefinitionID: 2, SourceFileID: 10, TargetFileID: 0, Line: 4, SymbolName: "helper"},
		{SourceDefinitionID: 2, SourceFileID: 10, TargetFileID: 11, Line: 2, SymbolName: "other"},
		{SourceDefinitionID: 2, SourceFileID: 10, TargetFileID: 11, Line: 99, SymbolName: "missing"},
	}
	refs := idx.Resolve(occs)
	if len(refs) != 3 {
		t.Fatalf("expected 3 references, got %d", len(refs))
	}

	if refs[0].ReferenceType != model.ReferenceLocal || *refs[0].TargetDefinitionID != 1 {
		t.Fatalf("expected a local reference to helper, got %+v", refs[0])
	}
	if refs[1].ReferenceType != model.ReferenceImported || *refs[1].TargetDefinitionID != 3 {
		t.Fatalf("expected an imported reference to other, got %+v", refs[1])
	}
	if refs[2].ReferenceType != model.ReferenceUnknown || refs[2].TargetDefinitionID != nil {
		t.Fatalf("expected an unresolved reference for a missing line, got %+v", refs[2])
	}
}

func TestResolve_SelfReferenceExcluded(t *testing.T) {
	defs := []model.Definition{{ID: 1, FileID: 10, Name: "recur", StartLine: 5}}
	idx := BuildIndex(defs)
	refs := idx.Resolve([]Occurrence{{SourceDefinitionID: 1, SourceFileID: 10, Line: 4, SymbolName: "recur"}})
	if len(refs) != 0 {
		t.Fatalf("expected self-reference to be excluded, got %+v", refs)
	}
}

func TestDedupe_DropsDuplicatePairs(t *testing.T) {
	a := int64(2)
	refs := []model.Reference{
		{SourceDefinitionID: 1, TargetDefinitionID: &a},
		{SourceDefinitionID: 1, TargetDefinitionID: &a},
	}
	out := Dedupe(refs)
	if len(out) != 1 {
		t.Fatalf("expected duplicate (source,target) pair to collapse to one, got %d", len(out))
	}
}
