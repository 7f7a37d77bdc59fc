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

package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/atlasgraph/atlas/internal/model"
)

type fakeRepos struct {
	mu    sync.Mutex
	repos map[int64]model.Repository
}

func newFakeRepos(repo model.Repository) *fakeRepos {
	return &fakeRepos{repos: map[int64]model.Repository{repo.ID: repo}}
}

func (f *fakeRepos) GetRepository(_ context.Context, id int64) (model.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	repo, ok := f.repos[id]
	if !ok {
		return model.Repository{}, errors.New("not found")
	}
	return repo, nil
}

func (f *fakeRepos) SetCommitHash(_ context.Context, id int64, commitHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	repo := f.repos[id]
	repo.CommitHash = commitHash
	f.repos[id] = repo
	return nil
}

type fakeSink struct {
	mu       sync.Mutex
	statuses []JobStatus
}

func (f *fakeSink) SetJobStatus(_ context.Context, status JobStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeSink) phases() []Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Phase, len(f.statuses))
	for i, s := range f.statuses {
		out[i] = s.Phase
	}
	return out
}

func happyPhases(newCommit string) Phases {
	return Phases{
		CloneRepo: func(context.Context, Mode) (string, error) { return newCommit, nil },
		Parse: func(context.Context, Mode) (*model.ParseDelta, error) {
			d := model.NewParseDelta()
			d.FilesAdded = append(d.FilesAdded, "a.go")
			return d, nil
		},
		Summarize: func(context.Context, Mode, *model.ParseDelta) error { return nil },
		Embed:     func(context.Context, Mode, *model.ParseDelta) error { return nil },
	}
}

func TestRun_NoPriorCommitIsFullMode(t *testing.T) {
	repos := newFakeRepos(model.Repository{ID: 1})
	sink := &fakeSink{}
	o := New(sink, repos)

	if err := o.Run(context.Background(), "run-1", 1, false, happyPhases("abc123")); err != nil {
		t.Fatalf("Run: %v", err)
	}

	repo, _ := repos.GetRepository(context.Background(), 1)
	if repo.CommitHash != "abc123" {
		t.Fatalf("expected commit hash to be recorded, got %q", repo.CommitHash)
	}

	phases := sink.phases()
	want := []Phase{PhaseStarting, PhaseCloningRepo, PhaseParse, PhaseSummaries, PhaseEmbeddings, PhaseFinalize, PhaseCompleted}
	if len(phases) != len(want) {
		t.Fatalf("expected %d phase transitions, got %d: %v", len(want), len(phases), phases)
	}
	for i, p := range want {
		if phases[i] != p {
			t.Fatalf("phase[%d] = %s, want %s", i, phases[i], p)
		}
	}
}

func TestRun_PriorCommitIsIncrementalMode(t *testing.T) {
	repos := newFakeRepos(model.Repository{ID: 1, CommitHash: "old"})
	sink := &fakeSink{}
	o := New(sink, repos)

	var sawMode Mode
	phases := happyPhases("new")
	phases.Parse = func(_ context.Context, mode Mode) (*model.ParseDelta, error) {
		sawMode = mode
		d := model.NewParseDelta()
		d.FilesAdded = append(d.FilesAdded, "a.go")
		return d, nil
	}

	if err := o.Run(context.Background(), "run-2", 1, false, phases); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sawMode != ModeIncremental {
		t.Fatalf("expected incremental mode, got %s", sawMode)
	}
}

func TestRun_ForceAlwaysFullMode(t *testing.T) {
	repos := newFakeRepos(model.Repository{ID: 1, CommitHash: "old"})
	sink := &fakeSink{}
	o := New(sink, repos)

	var sawMode Mode
	phases := happyPhases("new")
	phases.Parse = func(_ context.Context, mode Mode) (*model.ParseDelta, error) {
		sawMode = mode
		return model.NewParseDelta(), nil
	}

	if err := o.Run(context.Background(), "run-3", 1, true, phases); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sawMode != ModeFull {
		t.Fatalf("expected full mode when forced, got %s", sawMode)
	}
}

func TestRun_EmptyIncrementalDeltaSkipsSummariesAndEmbeddings(t *testing.T) {
	repos := newFakeRepos(model.Repository{ID: 1, CommitHash: "old"})
	sink := &fakeSink{}
	o := New(sink, repos)

	summarizeCalled := false
	embedCalled := false
	phases := Phases{
		CloneRepo: func(context.Context, Mode) (string, error) { return "old", nil },
		Parse:     func(context.Context, Mode) (*model.ParseDelta, error) { return model.NewParseDelta(), nil },
		Summarize: func(context.Context, Mode, *model.ParseDelta) error { summarizeCalled = true; return nil },
		Embed:     func(context.Context, Mode, *model.ParseDelta) error { embedCalled = true; return nil },
	}

	if err := o.Run(context.Background(), "run-4", 1, false, phases); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summarizeCalled || embedCalled {
		t.Fatalf("expected summarize/embed to be skipped for an empty incremental delta")
	}

	phases_ := sink.phases()
	if phases_[len(phases_)-1] != PhaseCompleted {
		t.Fatalf("expected job to still complete, last phase was %s", phases_[len(phases_)-1])
	}
}

func TestRun_CloneFailureMarksJobFailed(t *testing.T) {
	repos := newFakeRepos(model.Repository{ID: 1})
	sink := &fakeSink{}
	o := New(sink, repos)

	phases := Phases{
		CloneRepo: func(context.Context, Mode) (string, error) { return "", errors.New("network unreachable") },
	}

	err := o.Run(context.Background(), "run-5", 1, false, phases)
	if err == nil {
		t.Fatalf("expected an error from a failing clone")
	}

	got := sink.phases()
	if got[len(got)-1] != PhaseFailed {
		t.Fatalf("expected last phase to be failed, got %s", got[len(got)-1])
	}
}

func TestRun_UnknownRepositoryFailsBeforeAnyPhase(t *testing.T) {
	repos := newFakeRepos(model.Repository{ID: 1})
	sink := &fakeSink{}
	o := New(sink, repos)

	if err := o.Run(context.Background(), "run-6", 999, false, Phases{}); err == nil {
		t.Fatalf("expected an error for an unknown repository id")
	}
}
