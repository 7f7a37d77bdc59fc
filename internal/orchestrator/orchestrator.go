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

// Package orchestrator drives one ingestion job through its phases,
// deciding full vs. incremental mode and recording progress as the job
// moves through each phase.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/atlasgraph/atlas/internal/metrics"
	"github.com/atlasgraph/atlas/internal/model"
)

// Phase is one step of a job's lifecycle.
type Phase string

const (
	PhaseQueued      Phase = "queued"
	PhaseStarting    Phase = "starting"
	PhaseCloningRepo Phase = "cloning_repo"
	PhaseParse       Phase = "parse"
	PhaseSummaries   Phase = "summaries"
	PhaseEmbeddings  Phase = "embeddings"
	PhaseFinalize    Phase = "finalize"
	PhaseCompleted   Phase = "completed"
	PhaseFailed      Phase = "failed"
)

// Mode is whether a job does a full parse or an incremental one.
type Mode string

const (
	ModeFull        Mode = "full"
	ModeIncremental Mode = "incremental"
)

// JobStatus is the job record's externally-visible state.
type JobStatus struct {
	RunID        string
	RepositoryID int64
	Mode         Mode
	Phase        Phase
	Error        string
	StartedAt    time.Time
	UpdatedAt    time.Time
}

// StatusSink persists JobStatus transitions; the CLI/HTTP surface reads
// from whatever implements this (typically the same store backing the
// rest of the job).
type StatusSink interface {
	SetJobStatus(ctx context.Context, status JobStatus) error
}

// RepositoryStore reads and updates the Repository row's commit_hash.
type RepositoryStore interface {
	GetRepository(ctx context.Context, id int64) (model.Repository, error)
	SetCommitHash(ctx context.Context, id int64, commitHash string) error
}

// Phases bundles the actual phase implementations; each receives the
// decided Mode and returns an error that fails the job if non-nil.
// CloneRepo returns the commit hash HEAD resolved to after cloning,
// which the orchestrator records on the Repository row once the job
// completes.
type Phases struct {
	CloneRepo func(ctx context.Context, mode Mode) (commitHash string, err error)
	Parse     func(ctx context.Context, mode Mode) (*model.ParseDelta, error)
	Summarize func(ctx context.Context, mode Mode, delta *model.ParseDelta) error
	Embed     func(ctx context.Context, mode Mode, delta *model.ParseDelta) error
}

// Orchestrator runs one job's Phases in order, updating sink after
// every transition.
type Orchestrator struct {
	sink  StatusSink
	repos RepositoryStore
}

// New builds an Orchestrator.
func New(sink StatusSink, repos RepositoryStore) *Orchestrator {
	return &Orchestrator{sink: sink, repos: repos}
}

// Run executes phases for one job, force forcing a full parse even if
// a prior commit_hash exists.
func (o *Orchestrator) Run(ctx context.Context, runID string, repositoryID int64, force bool, phases Phases) error {
	status := JobStatus{RunID: runID, RepositoryID: repositoryID, StartedAt: time.Now(), UpdatedAt: time.Now()}

	repo, err := o.repos.GetRepository(ctx, repositoryID)
	if err != nil {
		return o.fail(ctx, status, fmt.Errorf("load repository: %w", err))
	}

	mode := ModeIncremental
	if force || repo.CommitHash == "" {
		mode = ModeFull
	}
	status.Mode = mode

	if err := o.transition(ctx, &status, PhaseStarting); err != nil {
		return err
	}

	if err := o.transition(ctx, &status, PhaseCloningRepo); err != nil {
		return err
	}
	start := time.Now()
	commitHash, err := phases.CloneRepo(ctx, mode)
	if err != nil {
		return o.fail(ctx, status, fmt.Errorf("clone repository: %w", err))
	}
	metrics.ObservePhaseDuration(string(PhaseCloningRepo), time.Since(start).Seconds())

	if err := o.transition(ctx, &status, PhaseParse); err != nil {
		return err
	}
	start = time.Now()
	delta, err := phases.Parse(ctx, mode)
	if err != nil {
		return o.fail(ctx, status, fmt.Errorf("parse: %w", err))
	}
	metrics.ObservePhaseDuration(string(PhaseParse), time.Since(start).Seconds())

	if mode == ModeIncremental && delta != nil && delta.IsEmpty() {
		if err := o.transition(ctx, &status, PhaseFinalize); err != nil {
			return err
		}
		return o.finish(ctx, status, repositoryID, commitHash)
	}

	if err := o.transition(ctx, &status, PhaseSummaries); err != nil {
		return err
	}
	start = time.Now()
	if err := phases.Summarize(ctx, mode, delta); err != nil {
		return o.fail(ctx, status, fmt.Errorf("summarize: %w", err))
	}
	metrics.ObservePhaseDuration(string(PhaseSummaries), time.Since(start).Seconds())

	if err := o.transition(ctx, &status, PhaseEmbeddings); err != nil {
		return err
	}
	start = time.Now()
	if err := phases.Embed(ctx, mode, delta); err != nil {
		return o.fail(ctx, status, fmt.Errorf("embed: %w", err))
	}
	metrics.ObservePhaseDuration(string(PhaseEmbeddings), time.Since(start).Seconds())

	if err := o.transition(ctx, &status, PhaseFinalize); err != nil {
		return err
	}

	return o.finish(ctx, status, repositoryID, commitHash)
}

func (o *Orchestrator) finish(ctx context.Context, status JobStatus, repositoryID int64, commitHash string) error {
	if commitHash != "" {
		if err := o.repos.SetCommitHash(ctx, repositoryID, commitHash); err != nil {
			return o.fail(ctx, status, fmt.Errorf("record commit hash: %w", err))
		}
	}
	return o.transition(ctx, &status, PhaseCompleted)
}

func (o *Orchestrator) transition(ctx context.Context, status *JobStatus, phase Phase) error {
	status.Phase = phase
	status.UpdatedAt = time.Now()
	return o.sink.SetJobStatus(ctx, *status)
}

func (o *Orchestrator) fail(ctx context.Context, status JobStatus, cause error) error {
	status.Phase = PhaseFailed
	status.Error = cause.Error()
	status.UpdatedAt = time.Now()
	_ = o.sink.SetJobStatus(ctx, status)
	return cause
}
