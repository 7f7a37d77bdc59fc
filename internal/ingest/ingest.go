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

// Package ingest is the parse phase's composition root: it walks (or
// diffs) a repository checkout, runs each changed file through the
// parser, hash-diffs the extracted definitions against what is already
// stored, persists the result, resolves references across the whole
// repository, and reports everything it touched as a model.ParseDelta.
//
// Occurrence discovery is name-token matching rather than a per-language
// import resolver: for each definition's source we look up every
// identifier token against a repository-wide name index and let
// pkg/resolver decide which candidate, if any, is the right target file.
// This trades precision (a common name can produce a spurious candidate
// reference) for being usable across every language the parser supports
// without a second, language-specific resolution pass.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/atlasgraph/atlas/internal/hashing"
	"github.com/atlasgraph/atlas/internal/ids"
	"github.com/atlasgraph/atlas/internal/model"
	"github.com/atlasgraph/atlas/internal/orchestrator"
	"github.com/atlasgraph/atlas/pkg/parser"
	"github.com/atlasgraph/atlas/pkg/resolver"
)

// FileRow is the subset of a stored atlas_file row the diff needs.
type FileRow struct {
	ID          int64
	ContentHash string
}

// Store is the parse phase's storage collaborator.
type Store interface {
	RepositoryFiles(ctx context.Context, repositoryID int64) (map[string]FileRow, error)
	FileDefinitions(ctx context.Context, fileID int64) ([]model.Definition, error)
	RepositoryDefinitions(ctx context.Context, repositoryID int64) ([]model.Definition, error)
	UpsertFile(ctx context.Context, f model.File) error
	DeleteFile(ctx context.Context, fileID int64) error
	UpsertDefinition(ctx context.Context, d model.Definition) error
	DeleteDefinition(ctx context.Context, definitionID int64) error
	ClearReferencesFrom(ctx context.Context, sourceDefinitionID int64) error
	InsertReference(ctx context.Context, r model.Reference) error
	Commit(ctx context.Context) error
}

// Pipeline parses one repository checkout into the store.
type Pipeline struct {
	Registry     *parser.Registry
	Store        Store
	Logger       *slog.Logger
	RepositoryID int64
	RootDir      string

	// Changes, when non-nil, restricts an incremental run to the
	// files it names. A full run (or a nil Changes) walks RootDir.
	Changes *model.GitChanges
}

// NewPipeline builds a Pipeline. logger defaults to slog.Default() if nil.
func NewPipeline(registry *parser.Registry, store Store, logger *slog.Logger, repositoryID int64, rootDir string, changes *model.GitChanges) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{Registry: registry, Store: store, Logger: logger, RepositoryID: repositoryID, RootDir: rootDir, Changes: changes}
}

// Parse implements the orchestrator.Phases.Parse signature.
func (p *Pipeline) Parse(ctx context.Context, mode orchestrator.Mode) (*model.ParseDelta, error) {
	delta := model.NewParseDelta()

	existing, err := p.Store.RepositoryFiles(ctx, p.RepositoryID)
	if err != nil {
		return nil, fmt.Errorf("ingest: load existing files: %w", err)
	}

	touch, deleted, renamed, err := p.changedPaths(mode)
	if err != nil {
		return nil, fmt.Errorf("ingest: enumerate changed files: %w", err)
	}

	for _, ren := range renamed {
		delta.FilesRenamed = append(delta.FilesRenamed, model.RenamedFile{Old: ren.Old, New: ren.New})
		if row, ok := existing[ren.Old]; ok {
			if err := p.removeFile(ctx, ren.Old, row, delta); err != nil {
				return nil, err
			}
			delete(existing, ren.Old)
		}
	}

	for _, path := range deleted {
		row, ok := existing[path]
		if !ok {
			continue
		}
		if err := p.removeFile(ctx, path, row, delta); err != nil {
			return nil, err
		}
		delta.FilesDeleted = append(delta.FilesDeleted, path)
		delete(existing, path)
	}

	for _, path := range touch {
		ext := filepath.Ext(path)
		if !p.Registry.Supports(ext) {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(p.RootDir, path))
		if err != nil {
			p.Logger.Warn("ingest.file.read_error", "path", path, "err", err)
			continue
		}

		contentHash := hashing.FileHash(raw)
		row, known := existing[path]
		if known && row.ContentHash == contentHash {
			continue // byte-identical to what's stored: nothing to re-diff
		}

		result, err := p.Registry.Parse(ctx, ext, raw)
		if err != nil {
			p.Logger.Warn("ingest.parse.error", "path", path, "err", err)
			continue
		}

		fileID := ids.FileID(p.RepositoryID, path)
		file := model.File{
			ID:           fileID,
			RepositoryID: p.RepositoryID,
			FilePath:     ids.NormalizePath(path),
			Language:     result.Language,
			FileContent:  string(raw),
		}
		if err := p.Store.UpsertFile(ctx, file); err != nil {
			return nil, fmt.Errorf("ingest: upsert file %s: %w", path, err)
		}

		if known {
			delta.FilesModified = append(delta.FilesModified, path)
		} else {
			delta.FilesAdded = append(delta.FilesAdded, path)
		}

		if err := p.diffDefinitions(ctx, fileID, path, result, delta); err != nil {
			return nil, err
		}
	}

	if err := p.resolveReferences(ctx); err != nil {
		return nil, fmt.Errorf("ingest: resolve references: %w", err)
	}

	return delta, p.Store.Commit(ctx)
}

// changedPaths resolves mode + Changes into the set of paths to
// (re)parse, the set to delete, and the set that were renamed. A full
// run, or an incremental run with no GitChanges recorded, walks RootDir.
func (p *Pipeline) changedPaths(mode orchestrator.Mode) (touch, deleted []string, renamed []model.RenamedFile, err error) {
	if mode == orchestrator.ModeFull || p.Changes == nil {
		walkErr := filepath.WalkDir(p.RootDir, func(path string, d fs.DirEntry, werr error) error {
			if werr != nil {
				return werr
			}
			if d.IsDir() {
				if d.Name() == ".git" {
					return filepath.SkipDir
				}
				return nil
			}
			rel, relErr := filepath.Rel(p.RootDir, path)
			if relErr != nil {
				return relErr
			}
			touch = append(touch, ids.NormalizePath(rel))
			return nil
		})
		return touch, nil, nil, walkErr
	}

	touch = append(append([]string{}, p.Changes.Added...), p.Changes.Modified...)
	for _, ren := range p.Changes.Renamed {
		touch = append(touch, ren.New)
	}
	return touch, p.Changes.Deleted, p.Changes.Renamed, nil
}

func (p *Pipeline) removeFile(ctx context.Context, path string, row FileRow, delta *model.ParseDelta) error {
	defs, err := p.Store.FileDefinitions(ctx, row.ID)
	if err != nil {
		return fmt.Errorf("ingest: load definitions for deleted file %s: %w", path, err)
	}
	for _, d := range defs {
		if err := p.Store.DeleteDefinition(ctx, d.ID); err != nil {
			return fmt.Errorf("ingest: delete definition %s: %w", d.Name, err)
		}
		delta.DefinitionsRemoved[path] = append(delta.DefinitionsRemoved[path], d.ID)
	}
	if err := p.Store.DeleteFile(ctx, row.ID); err != nil {
		return fmt.Errorf("ingest: delete file %s: %w", path, err)
	}
	return nil
}

func (p *Pipeline) diffDefinitions(ctx context.Context, fileID int64, path string, result *parser.FileResult, delta *model.ParseDelta) error {
	stored, err := p.Store.FileDefinitions(ctx, fileID)
	if err != nil {
		return fmt.Errorf("ingest: load stored definitions for %s: %w", path, err)
	}
	byKey := make(map[string]model.Definition, len(stored))
	for _, d := range stored {
		byKey[definitionKey(d.Name, d.StartLine, d.EndLine)] = d
	}

	seen := make(map[string]bool, len(result.Definitions))
	for _, raw := range result.Definitions {
		key := definitionKey(raw.Name, raw.StartLine, raw.EndLine)
		seen[key] = true

		style := hashing.CommentStyleForLanguage(result.Language)
		contentHash := hashing.SourceCodeHash(raw.SourceCode, raw.Name, style)

		if old, ok := byKey[key]; ok && old.SourceCodeHash == contentHash {
			delta.DefinitionsUnchanged[path] = append(delta.DefinitionsUnchanged[path], old.ID)
			continue
		}

		id := ids.DefinitionID(fileID, raw.Name, raw.StartLine, raw.EndLine)
		def := model.Definition{
			ID:              id,
			FileID:          fileID,
			Name:            raw.Name,
			Kind:            raw.Kind,
			StartLine:       raw.StartLine,
			EndLine:         raw.EndLine,
			SourceCode:      raw.SourceCode,
			SourceCodeHash:  contentHash,
			Docstring:       raw.Docstring,
			IsExported:      raw.IsExported,
			IsDefaultExport: raw.IsDefaultExport,
		}
		if err := p.Store.UpsertDefinition(ctx, def); err != nil {
			return fmt.Errorf("ingest: upsert definition %s: %w", raw.Name, err)
		}
		if err := p.Store.ClearReferencesFrom(ctx, id); err != nil {
			return fmt.Errorf("ingest: clear stale references for %s: %w", raw.Name, err)
		}
		delta.DefinitionsAdded[path] = append(delta.DefinitionsAdded[path], id)
	}

	for key, old := range byKey {
		if seen[key] {
			continue
		}
		if err := p.Store.DeleteDefinition(ctx, old.ID); err != nil {
			return fmt.Errorf("ingest: delete stale definition %s: %w", old.Name, err)
		}
		delta.DefinitionsRemoved[path] = append(delta.DefinitionsRemoved[path], old.ID)
	}
	return nil
}

func definitionKey(name string, startLine, endLine int) string {
	return fmt.Sprintf("%s|%d|%d", name, startLine, endLine)
}

var identifierPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// identifierTokens returns the unique identifier tokens in source, used
// to probe the repository-wide name index for candidate references.
func identifierTokens(source string) []string {
	matches := identifierPattern.FindAllString(source, -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// resolveReferences rebuilds the full reference set across every
// definition currently in the repository. It runs after every parse
// (not just the changed files) because a name added in one file can
// newly resolve an occurrence recorded against an unrelated file.
func (p *Pipeline) resolveReferences(ctx context.Context) error {
	defs, err := p.Store.RepositoryDefinitions(ctx, p.RepositoryID)
	if err != nil {
		return fmt.Errorf("load repository definitions: %w", err)
	}

	index := resolver.BuildIndex(defs)
	byName := make(map[string][]model.Definition, len(defs))
	for _, d := range defs {
		byName[d.Name] = append(byName[d.Name], d)
	}

	var occurrences []resolver.Occurrence
	for _, d := range defs {
		for _, tok := range identifierTokens(d.SourceCode) {
			if tok == d.Name {
				continue
			}
			for _, candidate := range byName[tok] {
				if candidate.ID == d.ID {
					continue
				}
				target := int64(0)
				if candidate.FileID != d.FileID {
					target = candidate.FileID
				}
				occurrences = append(occurrences, resolver.Occurrence{
					SourceDefinitionID: d.ID,
					SourceFileID:       d.FileID,
					TargetFileID:       target,
					Line:               candidate.StartLine - 1,
					SymbolName:         tok,
				})
			}
		}
	}

	for _, ref := range resolver.Dedupe(index.Resolve(occurrences)) {
		targetID := int64(0)
		if ref.TargetDefinitionID != nil {
			targetID = *ref.TargetDefinitionID
		}
		ref.ID = ids.ReferenceID(ref.SourceDefinitionID, targetID, ref.ReferenceName)
		if err := p.Store.InsertReference(ctx, ref); err != nil {
			return fmt.Errorf("insert reference from %d: %w", ref.SourceDefinitionID, err)
		}
	}
	return nil
}
