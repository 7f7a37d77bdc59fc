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

// EmbeddingKey identifies one row of atlas_embedding by its primary key.
type EmbeddingKey struct {
	EntityType model.EntityType
	EntityID   int64
}

// AllEmbeddingKeys lists every (entity_type, entity_id) pair stored in
// atlas_embedding, the candidate set a reconcile sweep checks for
// orphans (embeddings whose definition/file row no longer exists).
func (s *Store) AllEmbeddingKeys(ctx context.Context) ([]EmbeddingKey, error) {
	script := `?[entity_type, entity_id] := *atlas_embedding{entity_type, entity_id}`
	result, err := s.backend.Query(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("list embedding keys: %w", err)
	}
	out := make([]EmbeddingKey, 0, len(result.Rows))
	for _, row := range result.Rows {
		out = append(out, EmbeddingKey{
			EntityType: model.EntityType(asString(row[0])),
			EntityID:   asInt64(row[1]),
		})
	}
	return out, nil
}

// AllDefinitionIDs lists every id currently in atlas_definition.
func (s *Store) AllDefinitionIDs(ctx context.Context) (map[int64]struct{}, error) {
	script := `?[id] := *atlas_definition{id}`
	result, err := s.backend.Query(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("list definition ids: %w", err)
	}
	out := make(map[int64]struct{}, len(result.Rows))
	for _, row := range result.Rows {
		out[asInt64(row[0])] = struct{}{}
	}
	return out, nil
}

// AllFileIDs lists every id currently in atlas_file.
func (s *Store) AllFileIDs(ctx context.Context) (map[int64]struct{}, error) {
	script := `?[id] := *atlas_file{id}`
	result, err := s.backend.Query(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("list file ids: %w", err)
	}
	out := make(map[int64]struct{}, len(result.Rows))
	for _, row := range result.Rows {
		out[asInt64(row[0])] = struct{}{}
	}
	return out, nil
}

// DeleteEmbedding removes one atlas_embedding row by its primary key.
func (s *Store) DeleteEmbedding(ctx context.Context, entityType model.EntityType, entityID int64) error {
	script := fmt.Sprintf(`?[entity_type, entity_id] <- [[%s, %d]] :rm atlas_embedding { entity_type, entity_id }`,
		quote(string(entityType)), entityID)
	if err := s.backend.Execute(ctx, script); err != nil {
		return fmt.Errorf("delete embedding %s/%d: %w", entityType, entityID, err)
	}
	return nil
}
