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
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atlasgraph/atlas/internal/model"
	"github.com/atlasgraph/atlas/internal/orchestrator"
	"github.com/atlasgraph/atlas/internal/search"
	"github.com/atlasgraph/atlas/internal/summarizer"
)

// Store is the CozoDB-backed implementation of every collaborator
// interface the summarizer, embedder, search, and orchestrator
// packages depend on. It is the single place that knows the Datalog
// schema created by EnsureSchema.
type Store struct {
	backend Backend
}

// NewStore wraps a Backend (typically an *EmbeddedBackend) in a Store.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Commit is a no-op: EmbeddedBackend.Execute applies each mutation
// immediately, so there is no pending transaction to flush. Kept to
// satisfy the summarizer.Store and embedder.Store contracts, which a
// backend with deferred-write semantics would need to implement for
// real.
func (s *Store) Commit(context.Context) error { return nil }

// GetDefinitionSummary implements summarizer.Store.
func (s *Store) GetDefinitionSummary(ctx context.Context, id int64) (summarizer.Summary, bool, error) {
	script := fmt.Sprintf(`?[short_summary, full_summary] := *atlas_definition_summary{definition_id: %d, short_summary, full_summary}`, id)
	result, err := s.backend.Query(ctx, script)
	if err != nil {
		return summarizer.Summary{}, false, fmt.Errorf("get definition summary: %w", err)
	}
	if len(result.Rows) == 0 {
		return summarizer.Summary{}, false, nil
	}
	row := result.Rows[0]
	return summarizer.Summary{Short: asString(row[0]), Full: asString(row[1])}, true, nil
}

// SetDefinitionSummary implements summarizer.Store.
func (s *Store) SetDefinitionSummary(ctx context.Context, id int64, sum summarizer.Summary) error {
	script := fmt.Sprintf(`?[definition_id, short_summary, full_summary] <- [[%d, %s, %s]]
		:put atlas_definition_summary { definition_id => short_summary, full_summary }`,
		id, quote(sum.Short), quote(sum.Full))
	if err := s.backend.Execute(ctx, script); err != nil {
		return fmt.Errorf("set definition summary: %w", err)
	}
	return nil
}

// GetFileSummary implements summarizer.Store.
func (s *Store) GetFileSummary(ctx context.Context, id int64) (summarizer.Summary, bool, error) {
	script := fmt.Sprintf(`?[short_summary, full_summary] := *atlas_file_summary{file_id: %d, short_summary, full_summary}`, id)
	result, err := s.backend.Query(ctx, script)
	if err != nil {
		return summarizer.Summary{}, false, fmt.Errorf("get file summary: %w", err)
	}
	if len(result.Rows) == 0 {
		return summarizer.Summary{}, false, nil
	}
	row := result.Rows[0]
	return summarizer.Summary{Short: asString(row[0]), Full: asString(row[1])}, true, nil
}

// SetFileSummary implements summarizer.Store.
func (s *Store) SetFileSummary(ctx context.Context, id int64, sum summarizer.Summary) error {
	script := fmt.Sprintf(`?[file_id, short_summary, full_summary] <- [[%d, %s, %s]]
		:put atlas_file_summary { file_id => short_summary, full_summary }`,
		id, quote(sum.Short), quote(sum.Full))
	if err := s.backend.Execute(ctx, script); err != nil {
		return fmt.Errorf("set file summary: %w", err)
	}
	return nil
}

// DefinitionDependencies implements summarizer.Content.
func (s *Store) DefinitionDependencies(defID int64) []int64 {
	script := fmt.Sprintf(`?[to_definition_id] := *atlas_definition_dependency{from_definition_id: %d, to_definition_id}`, defID)
	result, err := s.backend.Query(context.Background(), script)
	if err != nil {
		return nil
	}
	out := make([]int64, 0, len(result.Rows))
	for _, row := range result.Rows {
		out = append(out, asInt64(row[0]))
	}
	return out
}

// DefinitionSource implements summarizer.Content.
func (s *Store) DefinitionSource(defID int64) (code, name, kind string, ok bool) {
	script := fmt.Sprintf(`?[source_code, name, kind] :=
		*atlas_definition_source{definition_id: %d, source_code},
		*atlas_definition{id: %d, name, kind}`, defID, defID)
	result, err := s.backend.Query(context.Background(), script)
	if err != nil || len(result.Rows) == 0 {
		return "", "", "", false
	}
	row := result.Rows[0]
	return asString(row[0]), asString(row[1]), asString(row[2]), true
}

// DefinitionsInFile implements summarizer.Content.
func (s *Store) DefinitionsInFile(fileID int64) []int64 {
	script := fmt.Sprintf(`?[id] := *atlas_definition{id, file_id: %d}`, fileID)
	result, err := s.backend.Query(context.Background(), script)
	if err != nil {
		return nil
	}
	out := make([]int64, 0, len(result.Rows))
	for _, row := range result.Rows {
		out = append(out, asInt64(row[0]))
	}
	return out
}

// FileContent implements summarizer.Content.
func (s *Store) FileContent(fileID int64) (content string, ok bool) {
	script := fmt.Sprintf(`?[content] := *atlas_file_content{file_id: %d, content}`, fileID)
	result, err := s.backend.Query(context.Background(), script)
	if err != nil || len(result.Rows) == 0 {
		return "", false
	}
	return asString(result.Rows[0][0]), true
}

// UpsertEmbedding implements embedder.Store.
func (s *Store) UpsertEmbedding(ctx context.Context, e model.Embedding) error {
	script := fmt.Sprintf(`?[entity_type, entity_id, vector, embedding_model, embedding_dims, entity_name, file_path, language, definition_type] <-
		[[%s, %d, %s, %s, %d, %s, %s, %s, %s]]
		:put atlas_embedding { entity_type, entity_id => vector, embedding_model, embedding_dims, entity_name, file_path, language, definition_type }`,
		quote(string(e.EntityType)), e.EntityID, vecLiteral(e.Vector), quote(e.EmbeddingModel), e.EmbeddingDims,
		quote(e.EntityName), quote(e.FilePath), quote(e.Language), quote(e.DefinitionType))
	if err := s.backend.Execute(ctx, script); err != nil {
		return fmt.Errorf("upsert embedding for %s %d: %w", e.EntityType, e.EntityID, err)
	}
	return nil
}

// GetRepository implements orchestrator.RepositoryStore.
func (s *Store) GetRepository(ctx context.Context, id int64) (model.Repository, error) {
	script := fmt.Sprintf(`?[remote_url, slug, commit_hash, default_branch] := *atlas_repository{id: %d, remote_url, slug, commit_hash, default_branch}`, id)
	result, err := s.backend.Query(ctx, script)
	if err != nil {
		return model.Repository{}, fmt.Errorf("get repository: %w", err)
	}
	if len(result.Rows) == 0 {
		return model.Repository{}, fmt.Errorf("repository %d not found", id)
	}
	row := result.Rows[0]
	return model.Repository{
		ID:            id,
		RemoteURL:     asString(row[0]),
		Slug:          asString(row[1]),
		CommitHash:    asString(row[2]),
		DefaultBranch: asString(row[3]),
	}, nil
}

// SetCommitHash implements orchestrator.RepositoryStore.
func (s *Store) SetCommitHash(ctx context.Context, id int64, commitHash string) error {
	script := fmt.Sprintf(`
		?[id, remote_url, slug, commit_hash, default_branch] :=
			*atlas_repository{id: %d, remote_url, slug, default_branch},
			commit_hash = %s
		:put atlas_repository { id => remote_url, slug, commit_hash, default_branch }`,
		id, quote(commitHash))
	if err := s.backend.Execute(ctx, script); err != nil {
		return fmt.Errorf("set commit hash: %w", err)
	}
	return nil
}

// SetJobStatus implements orchestrator.StatusSink.
func (s *Store) SetJobStatus(ctx context.Context, status orchestrator.JobStatus) error {
	script := fmt.Sprintf(`?[run_id, repository_id, mode, phase, error, started_at, updated_at] <-
		[[%s, %d, %s, %s, %s, %s, %s]]
		:put atlas_job_status { run_id => repository_id, mode, phase, error, started_at, updated_at }`,
		quote(status.RunID), status.RepositoryID, quote(string(status.Mode)), quote(string(status.Phase)),
		quote(status.Error), quote(status.StartedAt.Format(time.RFC3339Nano)), quote(status.UpdatedAt.Format(time.RFC3339Nano)))
	if err := s.backend.Execute(ctx, script); err != nil {
		return fmt.Errorf("set job status: %w", err)
	}
	return nil
}

// GetJobStatus returns the most recently updated Job status row for
// repositoryID, used by the status CLI command to report the last run.
func (s *Store) GetJobStatus(ctx context.Context, repositoryID int64) (orchestrator.JobStatus, bool, error) {
	script := fmt.Sprintf(`?[run_id, mode, phase, error, started_at, updated_at] :=
		*atlas_job_status{run_id, repository_id: %d, mode, phase, error, started_at, updated_at}
		:order -updated_at
		:limit 1`, repositoryID)
	result, err := s.backend.Query(ctx, script)
	if err != nil {
		return orchestrator.JobStatus{}, false, fmt.Errorf("get job status: %w", err)
	}
	if len(result.Rows) == 0 {
		return orchestrator.JobStatus{}, false, nil
	}
	row := result.Rows[0]
	startedAt, _ := time.Parse(time.RFC3339Nano, asString(row[4]))
	updatedAt, _ := time.Parse(time.RFC3339Nano, asString(row[5]))
	return orchestrator.JobStatus{
		RunID:        asString(row[0]),
		RepositoryID: repositoryID,
		Mode:         orchestrator.Mode(asString(row[1])),
		Phase:        orchestrator.Phase(asString(row[2])),
		Error:        asString(row[3]),
		StartedAt:    startedAt,
		UpdatedAt:    updatedAt,
	}, true, nil
}

// QueryVector implements search.VectorIndex against the HNSW index
// created by EmbeddedBackend.CreateHNSWIndex.
func (s *Store) QueryVector(ctx context.Context, vector []float32, entityType model.EntityType, k int) ([]search.Result, error) {
	typeFilter := ""
	if entityType != "" {
		typeFilter = fmt.Sprintf(", entity_type = %s", quote(string(entityType)))
	}
	script := fmt.Sprintf(`?[entity_type, entity_id, entity_name, file_path, distance] :=
		~atlas_embedding:hnsw_idx { entity_type, entity_id | query: q, k: %d, ef: %d, bind_distance: distance },
		q = %s,
		*atlas_embedding{entity_type, entity_id, entity_name, file_path}%s
		:order distance
		:limit %d`, k, hnswEf(k), vecLiteral(vector), typeFilter, k)

	result, err := s.backend.Query(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("query vector index: %w", err)
	}
	return rowsToResults(result.Rows), nil
}

// DefinitionTextIndex implements search.TextIndex by regex-matching
// the query against definition names. CozoDB has no native BM25/FTS
// ranking usable here, so rows are ranked exact-match-first, then by
// row order, and that rank is mapped to a synthetic distance.
type DefinitionTextIndex struct{ store *Store }

// NewDefinitionTextIndex builds the definition-name full-text collaborator.
func NewDefinitionTextIndex(store *Store) *DefinitionTextIndex { return &DefinitionTextIndex{store} }

func (idx *DefinitionTextIndex) QueryText(ctx context.Context, query string, k int) ([]search.Result, error) {
	pattern := regexPattern(query)
	script := fmt.Sprintf(`?[entity_id, entity_name, file_path, exact] :=
		*atlas_definition{id: entity_id, name: entity_name, file_id},
		*atlas_file{id: file_id, file_path},
		regex_matches(entity_name, %s),
		exact = (entity_name = %s)
		:limit %d`, quote(pattern), quote(query), searchCandidateLimit(k))

	result, err := idx.store.backend.Query(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("query definition names: %w", err)
	}
	out := make([]search.Result, 0, len(result.Rows))
	for i, row := range result.Rows {
		out = append(out, search.Result{
			EntityType: model.EntityDefinition,
			EntityID:   asInt64(row[0]),
			EntityName: asString(row[1]),
			FilePath:   asString(row[2]),
			Distance:   rankDistance(i, asBool(row[3])),
		})
	}
	return out, nil
}

// FileTextIndex implements search.TextIndex by regex-matching the
// query against file paths, using the same rank-as-distance scheme as
// DefinitionTextIndex.
type FileTextIndex struct{ store *Store }

// NewFileTextIndex builds the file-path full-text collaborator.
func NewFileTextIndex(store *Store) *FileTextIndex { return &FileTextIndex{store} }

func (idx *FileTextIndex) QueryText(ctx context.Context, query string, k int) ([]search.Result, error) {
	pattern := regexPattern(query)
	script := fmt.Sprintf(`?[entity_id, file_path, exact] :=
		*atlas_file{id: entity_id, file_path},
		regex_matches(file_path, %s),
		exact = (file_path = %s)
		:limit %d`, quote(pattern), quote(query), searchCandidateLimit(k))

	result, err := idx.store.backend.Query(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("query file paths: %w", err)
	}
	out := make([]search.Result, 0, len(result.Rows))
	for i, row := range result.Rows {
		out = append(out, search.Result{
			EntityType: model.EntityFile,
			EntityID:   asInt64(row[0]),
			FilePath:   asString(row[1]),
			Distance:   rankDistance(i, asBool(row[2])),
		})
	}
	return out, nil
}

// searchCandidateLimit over-fetches so exact matches sorted client-side
// aren't cut off by the server-side :limit before ranking.
func searchCandidateLimit(k int) int {
	if k < 20 {
		return 20
	}
	return k * 4
}

// rankDistance maps a regex-match's row position to a synthetic
// distance in [0,1): exact matches cluster near zero, ahead of every
// partial match, which in turn rank by row order.
func rankDistance(rank int, exact bool) float64 {
	base := 0.5
	if exact {
		base = 0.0
	}
	return base + float64(rank)*0.0001
}

// regexPattern escapes query for use as a literal, case-sensitive
// substring match, following the [X]-bracket escaping CozoDB's regex
// engine requires in place of backslash escapes.
func regexPattern(query string) string {
	var out strings.Builder
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch c {
		case '.', '(', ')', '[', ']', '{', '}', '*', '+', '?', '^', '$', '|', '\\':
			out.WriteByte('[')
			out.WriteByte(c)
			out.WriteByte(']')
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}

func rowsToResults(rows [][]any) []search.Result {
	out := make([]search.Result, 0, len(rows))
	for _, row := range rows {
		entityType := model.EntityType(asString(row[0]))
		out = append(out, search.Result{
			EntityType: entityType,
			EntityID:   asInt64(row[1]),
			EntityName: asString(row[2]),
			FilePath:   asString(row[3]),
			Distance:   asFloat64(row[4]),
		})
	}
	return out
}

// hnswEf picks an exploration factor comfortably above k, matching the
// "retrieve extra candidates, trust the HNSW index" approach used for
// post-filterable semantic search.
func hnswEf(k int) int {
	ef := k * 4
	if ef < 50 {
		ef = 50
	}
	return ef
}

func vecLiteral(v []float32) string {
	var buf bytes.Buffer
	buf.WriteString("vec([")
	for i, f := range v {
		if i > 0 {
			buf.WriteString(",")
		}
		fmt.Fprintf(&buf, "%.8f", f)
	}
	buf.WriteString("])")
	return buf.String()
}

// quote renders a Go string as a CozoScript string literal, escaping
// the characters that would otherwise break out of it.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return `"` + s + `"`
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}
