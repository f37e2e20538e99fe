// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Atlas - a Go pipeline that recomputes and releases the RNA 3D structural
motif atlas: loop extraction, motif clustering, and versioned release
bookkeeping against a relational store.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package metrics exposes Prometheus counters and histograms for
// stage execution, grounded on
// DBAShand-cdc-sink-redshift/internal/staging/stage/metrics.go's
// promauto package-level vectors keyed by a fixed label set.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// stageLabels names the cardinality-bounded dimension every stage
// metric is keyed on; entry ids are deliberately excluded to keep
// cardinality bounded to the stage count.
var stageLabels = []string{"stage"}

var (
	durations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "atlas_stage_duration_seconds",
		Help:    "the length of time it took to process one entry for a stage",
		Buckets: prometheus.DefBuckets,
	}, stageLabels)

	processed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_stage_entries_processed_total",
		Help: "the number of entries a stage processed",
	}, stageLabels)

	skipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_stage_entries_skipped_total",
		Help: "the number of entries a stage left unprocessed (already current, skipped by the stage, or dry-run); hard-skipped entries are not counted",
	}, stageLabels)

	failures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_stage_entries_failed_total",
		Help: "the number of entries a stage failed to process",
	}, stageLabels)
)

// ObserveEntry records the outcome of processing one entry for stage.
func ObserveEntry(stage string, d time.Duration, outcome string) {
	durations.WithLabelValues(stage).Observe(d.Seconds())
	switch outcome {
	case "processed":
		processed.WithLabelValues(stage).Inc()
	case "skipped":
		skipped.WithLabelValues(stage).Inc()
	case "failed":
		failures.WithLabelValues(stage).Inc()
	}
}
