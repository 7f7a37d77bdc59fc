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

package summarizer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/atlasgraph/atlas/internal/graph"
)

type fakeStore struct {
	mu      sync.Mutex
	defs    map[int64]Summary
	files   map[int64]Summary
	commits int
}

func newFakeStore() *fakeStore {
	return &fakeStore{defs: make(map[int64]Summary), files: make(map[int64]Summary)}
}

func (s *fakeStore) GetDefinitionSummary(_ context.Context, id int64) (Summary, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.defs[id]
	return v, ok, nil
}
func (s *fakeStore) SetDefinitionSummary(_ context.Context, id int64, sm Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs[id] = sm
	return nil
}
func (s *fakeStore) GetFileSummary(_ context.Context, id int64) (Summary, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.files[id]
	return v, ok, nil
}
func (s *fakeStore) SetFileSummary(_ context.Context, id int64, sm Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = sm
	return nil
}
func (s *fakeStore) Commit(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
	return nil
}

type fakeContent struct {
	deps       map[int64][]int64
	defsInFile map[int64][]int64
	sources    map[int64][3]string // code,name,kind
	files      map[int64]string
}

func (c *fakeContent) DefinitionDependencies(defID int64) []int64 { return c.deps[defID] }
func (c *fakeContent) DefinitionSource(defID int64) (string, string, string, bool) {
	v, ok := c.sources[defID]
	if !ok {
		return "", "", "", false
	}
	return v[0], v[1], v[2], true
}
func (c *fakeContent) DefinitionsInFile(fileID int64) []int64 { return c.defsInFile[fileID] }
func (c *fakeContent) FileContent(fileID int64) (string, bool) {
	v, ok := c.files[fileID]
	return v, ok
}

type fakeChat struct{ calls int }

func (f *fakeChat) Chat(_ context.Context, _, user string) (string, error) {
	f.calls++
	return "<gist>a one line gist</gist>\nsome markdown body about " + user[:minInt(10, len(user))], nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func TestProcessor_DefinitionGroup_SimpleChain(t *testing.T) {
	store := newFakeStore()
	content := &fakeContent{
		deps: map[int64][]int64{2: {1}},
		sources: map[int64][3]string{
			1: {"func A() {}", "A", "function"},
			2: {"func B() { A() }", "B", "function"},
		},
	}
	chat := &fakeChat{}
	p := New(store, content, chat, Config{MinBatchSize: 10, MaxConcurrent: 2, MaxRequestsPerSecond: 1000, TaskTimeout: time.Second})

	levels := []graph.Level{
		{graph.Group{1}},
		{graph.Group{2}},
	}
	if err := p.RunDefinitionLevels(context.Background(), levels); err != nil {
		t.Fatalf("RunDefinitionLevels: %v", err)
	}

	if _, ok := store.defs[1]; !ok {
		t.Fatalf("expected definition 1 to have a persisted summary")
	}
	if _, ok := store.defs[2]; !ok {
		t.Fatalf("expected definition 2 to have a persisted summary")
	}
	if store.commits == 0 {
		t.Fatalf("expected at least one commit")
	}
}

func TestProcessor_DefinitionGroup_MissingDependencyFails(t *testing.T) {
	store := newFakeStore()
	content := &fakeContent{
		deps: map[int64][]int64{2: {1}},
		sources: map[int64][3]string{
			2: {"func B() { A() }", "B", "function"},
		},
	}
	chat := &fakeChat{}
	p := New(store, content, chat, Config{MinBatchSize: 10, MaxConcurrent: 2, MaxRequestsPerSecond: 1000, TaskTimeout: time.Second})

	levels := []graph.Level{{graph.Group{2}}}
	err := p.RunDefinitionLevels(context.Background(), levels)
	if err == nil {
		t.Fatalf("expected an error for a missing dependency summary")
	}
}

func TestProcessor_DefinitionGroup_CyclicGroupAllowsMissingSiblingDep(t *testing.T) {
	store := newFakeStore()
	content := &fakeContent{
		deps: map[int64][]int64{1: {2}, 2: {1}},
		sources: map[int64][3]string{
			1: {"func A() { B() }", "A", "function"},
			2: {"func B() { A() }", "B", "function"},
		},
	}
	chat := &fakeChat{}
	p := New(store, content, chat, Config{MinBatchSize: 10, MaxConcurrent: 2, MaxRequestsPerSecond: 1000, TaskTimeout: time.Second})

	levels := []graph.Level{{graph.Group{1, 2}}}
	if err := p.RunDefinitionLevels(context.Background(), levels); err != nil {
		t.Fatalf("expected a cyclic group to summarize jointly without error: %v", err)
	}
	if len(store.defs) != 2 {
		t.Fatalf("expected both cycle members to get summaries, got %d", len(store.defs))
	}
}

func TestParseGist_MissingDelimiterFails(t *testing.T) {
	if _, _, err := ParseGist("no tags here"); err == nil {
		t.Fatalf("expected an error when <gist> is missing")
	}
	if _, _, err := ParseGist("<gist>only open"); err == nil {
		t.Fatalf("expected an error when </gist> is missing")
	}
}

func TestParseGist_SplitsGistAndBody(t *testing.T) {
	gist, body, err := ParseGist("<gist>  short summary  </gist>\n\nfull body here")
	if err != nil {
		t.Fatalf("ParseGist: %v", err)
	}
	if gist != "short summary" {
		t.Fatalf("gist = %q, want %q", gist, "short summary")
	}
	if body != "full body here" {
		t.Fatalf("body = %q, want %q", body, "full body here")
	}
}
