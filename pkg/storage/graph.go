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

	"github.com/atlasgraph/atlas/internal/model"
)

// RepositoryReferences implements depgraph.Store: every Reference whose
// source definition belongs to repositoryID, the raw material §4.2's
// DefinitionGraph/FileGraph are built from.
func (s *Store) RepositoryReferences(ctx context.Context, repositoryID int64) ([]model.Reference, error) {
	script := fmt.Sprintf(`?[id, source_definition_id, target_definition_id, reference_name, reference_type] :=
		*atlas_reference{id, source_definition_id, target_definition_id, reference_name, reference_type},
		*atlas_definition{id: source_definition_id, file_id},
		*atlas_file{id: file_id, repository_id: %d}`, repositoryID)
	result, err := s.backend.Query(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("list repository references: %w", err)
	}
	out := make([]model.Reference, 0, len(result.Rows))
	for _, row := range result.Rows {
		var target *int64
		if v := asInt64(row[2]); row[2] != nil {
			target = &v
		}
		out = append(out, model.Reference{
			ID:                 asInt64(row[0]),
			SourceDefinitionID: asInt64(row[1]),
			TargetDefinitionID: target,
			ReferenceName:      asString(row[3]),
			ReferenceType:      model.ReferenceType(asString(row[4])),
		})
	}
	return out, nil
}

// ReplaceDependencies implements depgraph.Store: clears every
// dependency edge rooted at a definition/file in this run's repository
// and replaces it with defEdges/fileEdges, the materialization step
// §4.2 requires after every reference-resolution pass.
func (s *Store) ReplaceDependencies(ctx context.Context, definitionIDs, fileIDs []int64, defEdges []model.DefinitionDependency, fileEdges []model.FileDependency) error {
	for _, id := range definitionIDs {
		script := fmt.Sprintf(`?[from_definition_id, to_definition_id] :=
			*atlas_definition_dependency{from_definition_id: %d, to_definition_id}
			:rm atlas_definition_dependency { from_definition_id, to_definition_id }`, id)
		if err := s.backend.Execute(ctx, script); err != nil {
			return fmt.Errorf("clear definition dependencies from %d: %w", id, err)
		}
	}
	for _, id := range fileIDs {
		script := fmt.Sprintf(`?[from_file_id, to_file_id] :=
			*atlas_file_dependency{from_file_id: %d, to_file_id}
			:rm atlas_file_dependency { from_file_id, to_file_id }`, id)
		if err := s.backend.Execute(ctx, script); err != nil {
			return fmt.Errorf("clear file dependencies from %d: %w", id, err)
		}
	}

	for _, e := range defEdges {
		script := fmt.Sprintf(`?[from_definition_id, to_definition_id, dependency_type] <- [[%d, %d, %s]]
			:put atlas_definition_dependency { from_definition_id, to_definition_id => dependency_type }`,
			e.FromDefinitionID, e.ToDefinitionID, quote(e.DependencyType))
		if err := s.backend.Execute(ctx, script); err != nil {
			return fmt.Errorf("insert definition dependency %d->%d: %w", e.FromDefinitionID, e.ToDefinitionID, err)
		}
	}
	for _, e := range fileEdges {
		script := fmt.Sprintf(`?[from_file_id, to_file_id] <- [[%d, %d]]
			:put atlas_file_dependency { from_file_id, to_file_id }`,
			e.FromFileID, e.ToFileID)
		if err := s.backend.Execute(ctx, script); err != nil {
			return fmt.Errorf("insert file dependency %d->%d: %w", e.FromFileID, e.ToFileID, err)
		}
	}
	return nil
}
