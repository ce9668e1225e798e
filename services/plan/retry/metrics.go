// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level Prometheus metrics, auto-registered via promauto.
var (
	// retryAttemptsTotal counts failed attempts by operation name.
	// Labels: op (specialist or gate name)
	retryAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fabplan",
		Subsystem: "retry",
		Name:      "attempts_total",
		Help:      "Total failed attempts that entered retry classification, by operation",
	}, []string{"op"})

	// retryExhaustedTotal counts operations that consumed all attempts.
	// Labels: op
	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fabplan",
		Subsystem: "retry",
		Name:      "exhausted_total",
		Help:      "Total operations that exhausted all retry attempts, by operation",
	}, []string{"op"})
)
