// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	specialistRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fabplan",
		Name:      "specialist_runs_total",
		Help:      "Specialist runner invocations by specialist and outcome.",
	}, []string{"specialist", "outcome"})

	specialistDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fabplan",
		Name:      "specialist_duration_seconds",
		Help:      "Wall-clock duration of each specialist run.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"specialist"})

	foreignKeysDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fabplan",
		Name:      "patch_foreign_keys_discarded_total",
		Help:      "Patch keys discarded because they fell outside the specialist's ownership set.",
	}, []string{"specialist"})

	tasksDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fabplan",
		Name:      "tasks_deduplicated_total",
		Help:      "Suggested tasks dropped because their fingerprint was already merged.",
	})

	gateBlocked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fabplan",
		Name:      "gate_results_total",
		Help:      "Gate evaluations by outcome (passed, blocked).",
	}, []string{"outcome"})

	checkpointWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fabplan",
		Name:      "checkpoint_writes_total",
		Help:      "Checkpoint append outcomes.",
	}, []string{"outcome"})
)
