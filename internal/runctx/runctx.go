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

// Package runctx carries everything a single ingestion job needs
// explicitly, instead of through module-level counters and caches:
// the run's id, its configuration, shared caches, and counters. A
// Context's lifecycle equals one job; nothing here is a process-wide
// singleton.
package runctx

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Context is the Run Context threaded through every phase of a job.
type Context struct {
	context.Context

	RunID     string
	ProjectID string
	Logger    *slog.Logger

	caches   sync.Map // name -> *sync.Map
	counters sync.Map // name -> *int64
}

// New builds a Context for runID scoped to parent.
func New(parent context.Context, runID, projectID string, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		Context:   parent,
		RunID:     runID,
		ProjectID: projectID,
		Logger:    logger.With("run_id", runID, "project_id", projectID),
	}
}

// Cache returns the named shared cache, creating it on first use.
// Callers type-assert values themselves; a Context's caches are
// intentionally untyped so any phase can open a new one by name.
func (c *Context) Cache(name string) *sync.Map {
	v, _ := c.caches.LoadOrStore(name, &sync.Map{})
	return v.(*sync.Map)
}

// Counter returns the named shared counter, creating it at zero on
// first use.
func (c *Context) Counter(name string) *Counter {
	v, _ := c.counters.LoadOrStore(name, &Counter{})
	return v.(*Counter)
}

// Counter is an atomic int64 counter addressable by name from any
// phase or worker goroutine sharing the Context.
type Counter struct {
	n int64
}

// Add increments the counter by delta and returns the new value.
func (c *Counter) Add(delta int64) int64 {
	return atomic.AddInt64(&c.n, delta)
}

// Value returns the counter's current value.
func (c *Counter) Value() int64 {
	return atomic.LoadInt64(&c.n)
}
