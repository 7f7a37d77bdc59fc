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

// Package summarizer drives dependencies-first summary generation over
// the levels produced by package graph: a definition is summarized
// once every dependency outside its own cycle already has a summary,
// and a file once every definition it contains has one.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	atlaserrors "github.com/atlasgraph/atlas/internal/errors"
	"github.com/atlasgraph/atlas/internal/graph"
	"github.com/atlasgraph/atlas/internal/metrics"
	"github.com/atlasgraph/atlas/internal/retry"
)

// Summary is a definition's or file's generated (short, full) pair.
type Summary struct {
	Short string
	Full  string
}

// ChatClient is the minimal language-model collaborator contract: a
// single system+user exchange returning the raw completion text.
type ChatClient interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// Store persists and recalls summaries across the run.
type Store interface {
	GetDefinitionSummary(ctx context.Context, id int64) (Summary, bool, error)
	SetDefinitionSummary(ctx context.Context, id int64, s Summary) error
	GetFileSummary(ctx context.Context, id int64) (Summary, bool, error)
	SetFileSummary(ctx context.Context, id int64, s Summary) error
	Commit(ctx context.Context) error
}

// Content supplies what a group needs to build its prompt.
type Content interface {
	DefinitionDependencies(defID int64) []int64
	DefinitionSource(defID int64) (code, name, kind string, ok bool)
	DefinitionsInFile(fileID int64) []int64
	FileContent(fileID int64) (content string, ok bool)
}

// ErrMissingDependencies is returned when a definition's summary is
// requested before a non-group dependency has one of its own.
type ErrMissingDependencies struct {
	DefinitionID int64
	Missing      []int64
}

func (e *ErrMissingDependencies) Error() string {
	return fmt.Sprintf("definition %d: missing dependency summaries: %v", e.DefinitionID, e.Missing)
}

// Config tunes level execution per §4.3.
type Config struct {
	MinBatchSize         int
	MaxConcurrent        int
	TaskTimeout          time.Duration
	MaxRequestsPerSecond float64
	RetryPolicy          retry.Policy
}

// DefaultConfig mirrors the reference tuning: batches of 50 groups, 20
// in-flight model calls, 15 requests per second, a 600s task timeout
// and the shared retry.DefaultPolicy.
var DefaultConfig = Config{
	MinBatchSize:         50,
	MaxConcurrent:        20,
	TaskTimeout:          600 * time.Second,
	MaxRequestsPerSecond: 15,
	RetryPolicy:          retry.DefaultPolicy,
}

// Processor generates and persists summaries for definition and file groups.
type Processor struct {
	cfg     Config
	store   Store
	content Content
	chat    ChatClient

	mu        sync.RWMutex
	defCache  map[int64]Summary
	fileCache map[int64]Summary
}

// New builds a Processor. cfg zero-values fall back to DefaultConfig.
func New(store Store, content Content, chat ChatClient, cfg Config) *Processor {
	if cfg.TaskTimeout == 0 {
		cfg.TaskTimeout = DefaultConfig.TaskTimeout
	}
	if cfg.RetryPolicy.MaxAttempts == 0 {
		cfg.RetryPolicy = DefaultConfig.RetryPolicy
	}
	if cfg.MinBatchSize == 0 {
		cfg.MinBatchSize = DefaultConfig.MinBatchSize
	}
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = DefaultConfig.MaxConcurrent
	}
	if cfg.MaxRequestsPerSecond == 0 {
		cfg.MaxRequestsPerSecond = DefaultConfig.MaxRequestsPerSecond
	}
	return &Processor{
		cfg:       cfg,
		store:     store,
		content:   content,
		chat:      chat,
		defCache:  make(map[int64]Summary),
		fileCache: make(map[int64]Summary),
	}
}

// RunDefinitionLevels executes every level's definition groups in dependency
// order, matching §4.3's level-execution mechanics.
func (p *Processor) RunDefinitionLevels(ctx context.Context, levels []graph.Level) error {
	return p.runLevels(ctx, levels, p.processDefinitionGroup)
}

// RunFileLevels executes every level's file groups. Files that
// reference each other form a cycle in the FileGraph and land in one
// group, so the same group-based mechanics apply as for definitions.
func (p *Processor) RunFileLevels(ctx context.Context, levels []graph.Level) error {
	return p.runLevels(ctx, levels, p.processFileGroup)
}

type groupProcessor func(ctx context.Context, group graph.Group) (generated int, err error)

func (p *Processor) runLevels(ctx context.Context, levels []graph.Level, process groupProcessor) error {
	for _, level := range levels {
		if err := p.runLevel(ctx, level, process); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) runLevel(ctx context.Context, level graph.Level, process groupProcessor) error {
	levelSize := len(level)
	if levelSize == 0 {
		return nil
	}
	batchSize := p.cfg.MinBatchSize
	if levelSize < batchSize {
		batchSize = levelSize
	}
	if batchSize <= 0 {
		batchSize = 1
	}

	for i := 0; i < len(level); i += batchSize {
		end := i + batchSize
		if end > len(level) {
			end = len(level)
		}
		batch := level[i:end]

		generated, err := p.runBatch(ctx, batch, process)
		if err != nil {
			return err
		}

		if err := p.store.Commit(ctx); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}

		if generated > 0 && end < len(level) {
			sleepFor := time.Duration(float64(len(batch)) / p.cfg.MaxRequestsPerSecond * float64(time.Second))
			metrics.IncRateLimitSleep("summarizer")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sleepFor):
			}
		}
	}
	return nil
}

func (p *Processor) runBatch(ctx context.Context, batch graph.Level, process groupProcessor) (int, error) {
	metrics.ObserveBatchSize("summarizer", len(batch))

	sem := make(chan struct{}, p.cfg.MaxConcurrent)
	var wg sync.WaitGroup
	errs := make([]error, len(batch))
	generated := make([]int, len(batch))

	for i, group := range batch {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, group graph.Group) {
			defer wg.Done()
			defer func() { <-sem }()

			taskCtx, cancel := context.WithTimeout(ctx, p.cfg.TaskTimeout)
			defer cancel()

			n, err := process(taskCtx, group)
			generated[i] = n
			errs[i] = err
		}(i, group)
	}
	wg.Wait()

	total := 0
	var failures []error
	for i, err := range errs {
		total += generated[i]
		if err != nil {
			failures = append(failures, err)
		}
	}
	if len(failures) > 0 {
		return total, fmt.Errorf("summarizer: batch failed: %w", errors.Join(failures...))
	}
	return total, nil
}

// processDefinitionGroup implements the "Definition group" rules.
func (p *Processor) processDefinitionGroup(ctx context.Context, group graph.Group) (int, error) {
	inGroup := make(map[int64]struct{}, len(group))
	for _, id := range group {
		inGroup[id] = struct{}{}
	}

	generated := 0
	for _, id := range group {
		p.mu.RLock()
		_, cached := p.defCache[id]
		p.mu.RUnlock()
		if cached {
			continue
		}

		if s, ok, err := p.store.GetDefinitionSummary(ctx, id); err != nil {
			return generated, err
		} else if ok {
			p.setDefCache(id, s)
			continue
		}

		code, name, kind, ok := p.content.DefinitionSource(id)
		if !ok {
			return generated, fmt.Errorf("summarizer: unknown definition %d", id)
		}

		var missing []int64
		var depSummaries []string
		for _, depID := range p.content.DefinitionDependencies(id) {
			if depID == id {
				continue
			}
			if _, sibling := inGroup[depID]; sibling {
				continue
			}
			if s, ok := p.getDefCache(depID); ok {
				depSummaries = append(depSummaries, s.Short)
				continue
			}
			if s, ok, err := p.store.GetDefinitionSummary(ctx, depID); err == nil && ok {
				p.setDefCache(depID, s)
				depSummaries = append(depSummaries, s.Short)
				continue
			}
			missing = append(missing, depID)
		}
		if len(missing) > 0 {
			return generated, &ErrMissingDependencies{DefinitionID: id, Missing: missing}
		}

		summary, err := p.callModel(ctx, definitionPrompt(name, kind, code, depSummaries))
		if err != nil {
			metrics.IncSummariesFailed()
			return generated, fmt.Errorf("summarize definition %d: %w", id, err)
		}
		if err := p.store.SetDefinitionSummary(ctx, id, summary); err != nil {
			return generated, err
		}
		p.setDefCache(id, summary)
		metrics.IncSummariesGenerated()
		generated++
	}
	return generated, nil
}

// processFileGroup implements the "File group" rules: a group of
// files with no inter-file dependency between summarization steps, so
// every member is processed independently.
func (p *Processor) processFileGroup(ctx context.Context, group graph.Group) (int, error) {
	generated := 0
	for _, id := range group {
		p.mu.RLock()
		_, cached := p.fileCache[id]
		p.mu.RUnlock()
		if cached {
			continue
		}

		if s, ok, err := p.store.GetFileSummary(ctx, id); err != nil {
			return generated, err
		} else if ok {
			p.setFileCache(id, s)
			continue
		}

		content, ok := p.content.FileContent(id)
		if !ok || strings.TrimSpace(content) == "" {
			continue // empty files are skipped with no write
		}

		var defSummaries []string
		var missing []int64
		for _, defID := range p.content.DefinitionsInFile(id) {
			if s, ok := p.getDefCache(defID); ok {
				defSummaries = append(defSummaries, s.Short)
				continue
			}
			if s, ok, err := p.store.GetDefinitionSummary(ctx, defID); err == nil && ok {
				p.setDefCache(defID, s)
				defSummaries = append(defSummaries, s.Short)
				continue
			}
			missing = append(missing, defID)
		}
		if len(missing) > 0 {
			return generated, &ErrMissingDependencies{DefinitionID: id, Missing: missing}
		}

		summary, err := p.callModel(ctx, filePrompt(content, defSummaries))
		if err != nil {
			metrics.IncSummariesFailed()
			return generated, fmt.Errorf("summarize file %d: %w", id, err)
		}
		if err := p.store.SetFileSummary(ctx, id, summary); err != nil {
			return generated, err
		}
		p.setFileCache(id, summary)
		metrics.IncSummariesGenerated()
		generated++
	}
	return generated, nil
}

func (p *Processor) callModel(ctx context.Context, user string) (Summary, error) {
	var summary Summary
	isRetryable := func(err error) bool { return !errors.Is(err, atlaserrors.ErrPermanent) }
	err := retry.Do(ctx, p.cfg.RetryPolicy, isRetryable,
		func(attempt int, wait time.Duration) { metrics.IncRetries("llm") },
		func() error {
			out, err := p.chat.Chat(ctx, summarizerSystemPrompt, user)
			if err != nil {
				return err
			}
			short, full, err := ParseGist(out)
			if err != nil {
				return err
			}
			summary = Summary{Short: short, Full: full}
			return nil
		})
	if err != nil {
		return Summary{}, err
	}
	return summary, nil
}

func (p *Processor) getDefCache(id int64) (Summary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.defCache[id]
	return s, ok
}

func (p *Processor) setDefCache(id int64, s Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defCache[id] = s
}

func (p *Processor) setFileCache(id int64, s Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fileCache[id] = s
}

const summarizerSystemPrompt = `You summarize source code for a code-knowledge graph. Respond with a one-line gist wrapped in <gist></gist> tags, followed by a short markdown explanation.`

func definitionPrompt(name, kind, code string, depSummaries []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Kind: %s\nName: %s\n\nSource:\n%s\n", kind, name, code)
	if len(depSummaries) > 0 {
		b.WriteString("\nDependency summaries:\n")
		for _, s := range depSummaries {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	return b.String()
}

func filePrompt(content string, defSummaries []string) string {
	var b strings.Builder
	b.WriteString("File contents:\n")
	b.WriteString(content)
	if len(defSummaries) > 0 {
		b.WriteString("\n\nDefinition summaries:\n")
		for _, s := range defSummaries {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	return b.String()
}

// ParseGist splits the model's response into the gist (the text
// between <gist> and </gist>) and the markdown body following the
// closing tag. Absence of either delimiter is a failure.
func ParseGist(raw string) (gist, body string, err error) {
	open := strings.Index(raw, "<gist>")
	if open == -1 {
		return "", "", errors.New("summarizer: response missing <gist> delimiter")
	}
	rest := raw[open+len("<gist>"):]
	close := strings.Index(rest, "</gist>")
	if close == -1 {
		return "", "", errors.New("summarizer: response missing </gist> delimiter")
	}
	gist = strings.TrimSpace(rest[:close])
	body = strings.TrimSpace(rest[close+len("</gist>"):])
	return gist, body, nil
}
