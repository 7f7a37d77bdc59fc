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

// Package model defines the data-model entities shared across the
// parser, graph, summarizer, embedder, and search components. All
// identifiers are opaque integers, unique within a single store.
package model

import "fmt"

// DefinitionKind enumerates the syntactic kinds a Definition can take.
type DefinitionKind string

const (
	KindFunction   DefinitionKind = "function"
	KindMethod     DefinitionKind = "method"
	KindClass      DefinitionKind = "class"
	KindInterface  DefinitionKind = "interface"
	KindTypeAlias  DefinitionKind = "type_alias"
	KindEnum       DefinitionKind = "enum"
	KindModule     DefinitionKind = "module"
	KindConstant   DefinitionKind = "constant"
	KindVariable   DefinitionKind = "variable"
)

// ReferenceType enumerates how a Reference's target was determined.
type ReferenceType string

const (
	ReferenceLocal    ReferenceType = "local"
	ReferenceImported ReferenceType = "imported"
	ReferenceUnknown  ReferenceType = "unknown"
)

// EntityType distinguishes the two kinds of summarizable/embeddable node.
type EntityType string

const (
	EntityFile       EntityType = "file"
	EntityDefinition EntityType = "definition"
)

// Repository is one ingested source-code repository.
type Repository struct {
	ID             int64
	RemoteURL      string
	Slug           string
	CommitHash     string
	DefaultBranch  string
}

// Package is a workspace package or module within a Repository.
type Package struct {
	ID              int64
	RepositoryID    int64
	Name            string
	Path            string
	EntryPoint      string
	IsWorkspaceRoot bool
	WorkspaceType   string
}

// File is one source file currently present in the repository snapshot.
type File struct {
	ID             int64
	RepositoryID   int64
	PackageID      *int64
	FilePath       string
	Language       string
	FileContent    string
	AISummary      *string
	AIShortSummary *string
}

// Definition is one syntactic unit extracted from a File.
type Definition struct {
	ID               int64
	FileID           int64
	Name             string
	Kind             DefinitionKind
	StartLine        int
	EndLine          int
	SourceCode       string
	SourceCodeHash   string
	Docstring        *string
	IsExported       bool
	IsDefaultExport  bool
	AISummary        *string
	AIShortSummary   *string
}

// Key identifies a Definition's natural uniqueness constraint:
// (file_id, name, start_line, kind).
func (d Definition) Key() string {
	return fmt.Sprintf("%d|%s|%d|%s", d.FileID, d.Name, d.StartLine, d.Kind)
}

// Reference is a resolved or unresolved use-site inside one Definition.
type Reference struct {
	ID                 int64
	SourceDefinitionID int64
	TargetDefinitionID *int64
	ReferenceName      string
	ReferenceType      ReferenceType
}

// DefinitionDependency is a materialized edge derived from resolved References.
type DefinitionDependency struct {
	FromDefinitionID int64
	ToDefinitionID   int64
	DependencyType   string
}

// FileDependency is a materialized edge derived from DefinitionDependency
// whose endpoints live in different files.
type FileDependency struct {
	FromFileID int64
	ToFileID   int64
}

// Embedding is the vector + denormalized display metadata for one entity.
type Embedding struct {
	ID             int64
	EntityType     EntityType
	EntityID       int64
	Vector         []float32
	EmbeddingModel string
	EmbeddingDims  int
	EntityName     string
	FilePath       string
	Language       string
	DefinitionType string
}

// ParseDelta describes repository-level changes between two commits.
type ParseDelta struct {
	FilesAdded    []string
	FilesModified []string
	FilesDeleted  []string
	FilesRenamed  []RenamedFile

	// DefinitionsAdded, DefinitionsRemoved, and DefinitionsUnchanged are
	// keyed by file path and hold the per-file definition-id sets
	// produced by hash-diffing incoming definitions against stored ones.
	DefinitionsAdded     map[string][]int64
	DefinitionsRemoved   map[string][]int64
	DefinitionsUnchanged map[string][]int64
}

// RenamedFile records a file rename discovered via GitChanges.
type RenamedFile struct {
	Old string
	New string
}

// IsEmpty reports whether the delta touches nothing at all.
func (d *ParseDelta) IsEmpty() bool {
	if d == nil {
		return true
	}
	return len(d.FilesAdded) == 0 && len(d.FilesModified) == 0 &&
		len(d.FilesDeleted) == 0 && len(d.FilesRenamed) == 0
}

// HasChanges is an alias kept for readability at call sites that only
// care about "did anything change".
func (d *ParseDelta) HasChanges() bool {
	return !d.IsEmpty()
}

// AllDefinitionsAdded flattens DefinitionsAdded across every file.
func (d *ParseDelta) AllDefinitionsAdded() []int64 {
	var out []int64
	for _, ids := range d.DefinitionsAdded {
		out = append(out, ids...)
	}
	return out
}

// NewParseDelta returns an empty, fully-initialized ParseDelta.
func NewParseDelta() *ParseDelta {
	return &ParseDelta{
		DefinitionsAdded:     make(map[string][]int64),
		DefinitionsRemoved:   make(map[string][]int64),
		DefinitionsUnchanged: make(map[string][]int64),
	}
}

// GitChanges is the collaborator contract produced by the clone utility
// describing what changed between two commits, restricted to files
// with supported extensions.
type GitChanges struct {
	Added    []string
	Modified []string
	Deleted  []string
	Renamed  []RenamedFile
}
