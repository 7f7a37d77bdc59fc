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

package storage

import (
	"context"
	"fmt"

	"github.com/atlasgraph/atlas/internal/contract"
	"github.com/atlasgraph/atlas/internal/hashing"
	"github.com/atlasgraph/atlas/internal/ingest"
	"github.com/atlasgraph/atlas/internal/model"
)

// UpsertRepository registers or updates a repository row, used by the
// init/ingest CLI commands before a job's first run.
func (s *Store) UpsertRepository(ctx context.Context, repo model.Repository) error {
	script := fmt.Sprintf(`?[id, remote_url, slug, commit_hash, default_branch] <- [[%d, %s, %s, %s, %s]]
		:put atlas_repository { id => remote_url, slug, commit_hash, default_branch }`,
		repo.ID, quote(repo.RemoteURL), quote(repo.Slug), quote(repo.CommitHash), quote(repo.DefaultBranch))
	if err := s.backend.Execute(ctx, script); err != nil {
		return fmt.Errorf("upsert repository: %w", err)
	}
	return nil
}

// UpsertPackage implements the workspace-package write path.
func (s *Store) UpsertPackage(ctx context.Context, pkg model.Package) error {
	script := fmt.Sprintf(`?[id, repository_id, name, path, entry_point, is_workspace_root, workspace_type] <-
		[[%d, %d, %s, %s, %s, %t, %s]]
		:put atlas_package { id => repository_id, name, path, entry_point, is_workspace_root, workspace_type }`,
		pkg.ID, pkg.RepositoryID, quote(pkg.Name), quote(pkg.Path), quote(pkg.EntryPoint),
		pkg.IsWorkspaceRoot, quote(pkg.WorkspaceType))
	if err := s.backend.Execute(ctx, script); err != nil {
		return fmt.Errorf("upsert package: %w", err)
	}
	return nil
}

// RepositoryFiles implements ingest.Store: every file currently stored
// for repositoryID, keyed by path, for the parse phase's hash-diff.
func (s *Store) RepositoryFiles(ctx context.Context, repositoryID int64) (map[string]ingest.FileRow, error) {
	script := fmt.Sprintf(`?[id, file_path, content_hash] :=
		*atlas_file{id, repository_id: %d, file_path, content_hash}`, repositoryID)
	result, err := s.backend.Query(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("list repository files: %w", err)
	}
	out := make(map[string]ingest.FileRow, len(result.Rows))
	for _, row := range result.Rows {
		out[asString(row[1])] = ingest.FileRow{ID: asInt64(row[0]), ContentHash: asString(row[2])}
	}
	return out, nil
}

// FileDefinitions implements ingest.Store.
func (s *Store) FileDefinitions(ctx context.Context, fileID int64) ([]model.Definition, error) {
	script := fmt.Sprintf(`?[id, name, kind, start_line, end_line, content_hash, is_exported, is_default_export] :=
		*atlas_definition{id, file_id: %d, name, kind, start_line, end_line, content_hash, is_exported, is_default_export}`, fileID)
	result, err := s.backend.Query(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("list file definitions: %w", err)
	}
	return rowsToDefinitions(fileID, result.Rows), nil
}

// RepositoryDefinitions implements ingest.Store: every definition
// currently stored for repositoryID, for the reference-resolution pass
// that runs across the whole repository on every parse.
func (s *Store) RepositoryDefinitions(ctx context.Context, repositoryID int64) ([]model.Definition, error) {
	script := fmt.Sprintf(`?[id, file_id, name, kind, start_line, end_line, content_hash, is_exported, is_default_export, source_code] :=
		*atlas_definition{id, file_id, name, kind, start_line, end_line, content_hash, is_exported, is_default_export},
		*atlas_definition_source{definition_id: id, source_code},
		*atlas_file{id: file_id, repository_id: %d}`, repositoryID)
	result, err := s.backend.Query(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("list repository definitions: %w", err)
	}
	out := make([]model.Definition, 0, len(result.Rows))
	for _, row := range result.Rows {
		out = append(out, model.Definition{
			ID: asInt64(row[0]), FileID: asInt64(row[1]), Name: asString(row[2]),
			Kind: model.DefinitionKind(asString(row[3])), StartLine: int(asInt64(row[4])), EndLine: int(asInt64(row[5])),
			SourceCodeHash: asString(row[6]), IsExported: asBool(row[7]), IsDefaultExport: asBool(row[8]),
			SourceCode: asString(row[9]),
		})
	}
	return out, nil
}

func rowsToDefinitions(fileID int64, rows [][]any) []model.Definition {
	out := make([]model.Definition, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.Definition{
			ID: asInt64(row[0]), FileID: fileID, Name: asString(row[1]),
			Kind: model.DefinitionKind(asString(row[2])), StartLine: int(asInt64(row[3])), EndLine: int(asInt64(row[4])),
			SourceCodeHash: asString(row[5]), IsExported: asBool(row[6]), IsDefaultExport: asBool(row[7]),
		})
	}
	return out
}

// UpsertFile implements ingest.Store: writes atlas_file and, since the
// two rows always change together, atlas_file_content in the same call.
func (s *Store) UpsertFile(ctx context.Context, f model.File) error {
	packageID := "null"
	if f.PackageID != nil {
		packageID = fmt.Sprintf("%d", *f.PackageID)
	}
	fileScript := fmt.Sprintf(`?[id, repository_id, package_id, file_path, language, content_hash] <- [[%d, %d, %s, %s, %s, %s]]
		:put atlas_file { id => repository_id, package_id, file_path, language, content_hash }`,
		f.ID, f.RepositoryID, packageID, quote(f.FilePath), quote(f.Language), quote(hashing.FileHash([]byte(f.FileContent))))
	if err := s.backend.Execute(ctx, fileScript); err != nil {
		return fmt.Errorf("upsert file: %w", err)
	}

	contentScript := fmt.Sprintf(`?[file_id, content] <- [[%d, %s]]
		:put atlas_file_content { file_id => content }`, f.ID, quote(f.FileContent))
	if err := s.backend.Execute(ctx, contentScript); err != nil {
		return fmt.Errorf("upsert file content: %w", err)
	}
	return nil
}

// DeleteFile implements ingest.Store.
func (s *Store) DeleteFile(ctx context.Context, fileID int64) error {
	for _, script := range []string{
		fmt.Sprintf(`?[id] <- [[%d]] :rm atlas_file { id }`, fileID),
		fmt.Sprintf(`?[file_id] <- [[%d]] :rm atlas_file_content { file_id }`, fileID),
		fmt.Sprintf(`?[file_id] <- [[%d]] :rm atlas_file_summary { file_id }`, fileID),
	} {
		if err := s.backend.Execute(ctx, script); err != nil {
			return fmt.Errorf("delete file %d: %w", fileID, err)
		}
	}
	return nil
}

// UpsertDefinition implements ingest.Store: writes atlas_definition and
// atlas_definition_source together.
func (s *Store) UpsertDefinition(ctx context.Context, d model.Definition) error {
	defScript := fmt.Sprintf(`?[id, file_id, name, kind, start_line, end_line, content_hash, is_exported, is_default_export] <-
		[[%d, %d, %s, %s, %d, %d, %s, %t, %t]]
		:put atlas_definition { id => file_id, name, kind, start_line, end_line, content_hash, is_exported, is_default_export }`,
		d.ID, d.FileID, quote(d.Name), quote(string(d.Kind)), d.StartLine, d.EndLine, quote(d.SourceCodeHash),
		d.IsExported, d.IsDefaultExport)
	if err := s.backend.Execute(ctx, defScript); err != nil {
		return fmt.Errorf("upsert definition: %w", err)
	}

	docstring := "null"
	if d.Docstring != nil {
		docstring = quote(*d.Docstring)
	}
	sourceScript := fmt.Sprintf(`?[definition_id, source_code, docstring] <- [[%d, %s, %s]]
		:put atlas_definition_source { definition_id => source_code, docstring }`,
		d.ID, quote(d.SourceCode), docstring)
	if v := contract.ValidateBatchScript(sourceScript); !v.OK {
		return fmt.Errorf("upsert definition source: %s (definition %d)", v.Message, d.ID)
	}
	if err := s.backend.Execute(ctx, sourceScript); err != nil {
		return fmt.Errorf("upsert definition source: %w", err)
	}
	return nil
}

// DeleteDefinition implements ingest.Store.
func (s *Store) DeleteDefinition(ctx context.Context, definitionID int64) error {
	for _, script := range []string{
		fmt.Sprintf(`?[id] <- [[%d]] :rm atlas_definition { id }`, definitionID),
		fmt.Sprintf(`?[definition_id] <- [[%d]] :rm atlas_definition_source { definition_id }`, definitionID),
		fmt.Sprintf(`?[definition_id] <- [[%d]] :rm atlas_definition_summary { definition_id }`, definitionID),
	} {
		if err := s.backend.Execute(ctx, script); err != nil {
			return fmt.Errorf("delete definition %d: %w", definitionID, err)
		}
	}
	return s.ClearReferencesFrom(ctx, definitionID)
}

// ClearReferencesFrom implements ingest.Store: drops every reference
// whose source is definitionID, so a modified definition's stale
// outgoing references don't linger until the next full resolve pass
// happens to overwrite them by id.
func (s *Store) ClearReferencesFrom(ctx context.Context, definitionID int64) error {
	script := fmt.Sprintf(`
		?[id] := *atlas_reference{id, source_definition_id: %d}
		:rm atlas_reference { id }`, definitionID)
	if err := s.backend.Execute(ctx, script); err != nil {
		return fmt.Errorf("clear references from %d: %w", definitionID, err)
	}
	return nil
}

// InsertReference implements ingest.Store.
func (s *Store) InsertReference(ctx context.Context, r model.Reference) error {
	targetID := "null"
	if r.TargetDefinitionID != nil {
		targetID = fmt.Sprintf("%d", *r.TargetDefinitionID)
	}
	script := fmt.Sprintf(`?[id, source_definition_id, target_definition_id, reference_name, reference_type] <-
		[[%d, %d, %s, %s, %s]]
		:put atlas_reference { id => source_definition_id, target_definition_id, reference_name, reference_type }`,
		r.ID, r.SourceDefinitionID, targetID, quote(r.ReferenceName), quote(string(r.ReferenceType)))
	if err := s.backend.Execute(ctx, script); err != nil {
		return fmt.Errorf("insert reference: %w", err)
	}
	return nil
}

