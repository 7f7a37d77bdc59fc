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

// Package metrics exposes the Prometheus counters and histograms
// shared across the ingestion, summarization, embedding, and search
// phases of a job.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	once sync.Once

	PhaseDuration   *prometheus.HistogramVec
	BatchSize       *prometheus.HistogramVec
	RetriesTotal    *prometheus.CounterVec
	RateLimitSleeps *prometheus.CounterVec

	DefinitionsParsed prometheus.Counter
	FilesParsed       prometheus.Counter
	ReferencesResolved prometheus.Counter
	ReferencesUnresolved prometheus.Counter

	SummariesGenerated prometheus.Counter
	SummariesFailed    prometheus.Counter
	EmbeddingsComputed prometheus.Counter
	EmbeddingsSkipped  prometheus.Counter
}

var m metrics

func (m *metrics) init() {
	m.once.Do(func() {
		buckets := []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

		m.PhaseDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "atlas_phase_duration_seconds", Help: "Duration of each ingestion job phase.", Buckets: buckets,
		}, []string{"phase"})

		m.BatchSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "atlas_batch_size", Help: "Number of items in a processed batch.", Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}, []string{"kind"})

		m.RetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "atlas_retries_total", Help: "Retries attempted against an external provider.",
		}, []string{"provider"})

		m.RateLimitSleeps = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "atlas_rate_limit_sleeps_total", Help: "Times a phase slept to respect a rate limit.",
		}, []string{"phase"})

		m.DefinitionsParsed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atlas_definitions_parsed_total", Help: "Definitions extracted by the parser.",
		})
		m.FilesParsed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atlas_files_parsed_total", Help: "Files walked by the parser.",
		})
		m.ReferencesResolved = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atlas_references_resolved_total", Help: "References resolved to a known definition.",
		})
		m.ReferencesUnresolved = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atlas_references_unresolved_total", Help: "References left unresolved after resolution.",
		})
		m.SummariesGenerated = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atlas_summaries_generated_total", Help: "Summaries generated by the language model.",
		})
		m.SummariesFailed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atlas_summaries_failed_total", Help: "Summary tasks that exhausted retries.",
		})
		m.EmbeddingsComputed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atlas_embeddings_computed_total", Help: "Embeddings computed and upserted.",
		})
		m.EmbeddingsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atlas_embeddings_skipped_total", Help: "Embeddings skipped because their source entity did not change.",
		})

		prometheus.MustRegister(
			m.PhaseDuration, m.BatchSize, m.RetriesTotal, m.RateLimitSleeps,
			m.DefinitionsParsed, m.FilesParsed, m.ReferencesResolved, m.ReferencesUnresolved,
			m.SummariesGenerated, m.SummariesFailed, m.EmbeddingsComputed, m.EmbeddingsSkipped,
		)
	})
}

// ObservePhaseDuration records how long phase took.
func ObservePhaseDuration(phase string, seconds float64) {
	m.init()
	m.PhaseDuration.WithLabelValues(phase).Observe(seconds)
}

// ObserveBatchSize records a batch's item count for the given kind
// ("summarizer", "embeddings").
func ObserveBatchSize(kind string, size int) {
	m.init()
	m.BatchSize.WithLabelValues(kind).Observe(float64(size))
}

// IncRetries records one retry attempt against provider.
func IncRetries(provider string) {
	m.init()
	m.RetriesTotal.WithLabelValues(provider).Inc()
}

// IncRateLimitSleep records one inter-batch pacing sleep in phase.
func IncRateLimitSleep(phase string) {
	m.init()
	m.RateLimitSleeps.WithLabelValues(phase).Inc()
}

// AddDefinitionsParsed increments the parsed-definitions counter by n.
func AddDefinitionsParsed(n int) { m.init(); m.DefinitionsParsed.Add(float64(n)) }

// IncFilesParsed increments the parsed-files counter.
func IncFilesParsed() { m.init(); m.FilesParsed.Inc() }

// AddReferencesResolved increments the resolved-references counter by n.
func AddReferencesResolved(n int) { m.init(); m.ReferencesResolved.Add(float64(n)) }

// AddReferencesUnresolved increments the unresolved-references counter by n.
func AddReferencesUnresolved(n int) { m.init(); m.ReferencesUnresolved.Add(float64(n)) }

// IncSummariesGenerated increments the generated-summaries counter.
func IncSummariesGenerated() { m.init(); m.SummariesGenerated.Inc() }

// IncSummariesFailed increments the failed-summaries counter.
func IncSummariesFailed() { m.init(); m.SummariesFailed.Inc() }

// AddEmbeddingsComputed increments the computed-embeddings counter by n.
func AddEmbeddingsComputed(n int) { m.init(); m.EmbeddingsComputed.Add(float64(n)) }

// AddEmbeddingsSkipped increments the skipped-embeddings counter by n.
func AddEmbeddingsSkipped(n int) { m.init(); m.EmbeddingsSkipped.Add(float64(n)) }
