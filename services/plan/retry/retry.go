// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retry provides the bounded exponential-backoff wrapper used by
// every specialist's external generation call. Errors are classified
// before retrying: rate limits, server errors, timeouts, and connection
// failures are transient; other client errors are permanent. Unclassified
// errors default to retryable, which is the conservative choice for an
// external service whose failure modes are not fully enumerated.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// ErrExhausted is returned (wrapped around the last attempt's error) when
// all attempts have been consumed. Callers use errors.Is to convert it
// into their degraded fallback.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Config bounds the backoff schedule.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialDelay is the delay before the second attempt.
	InitialDelay time.Duration

	// Multiplier scales the delay after each failed attempt.
	Multiplier float64

	// MaxDelay caps the per-attempt delay.
	MaxDelay time.Duration
}

// DefaultConfig is the schedule used by the specialist runners:
// 3 attempts, 500ms initial delay, doubling, capped at 8s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     8 * time.Second,
	}
}

// statusCoder is implemented by errors that carry an HTTP status code
// (llm.APIError). Mirrored structurally here so retry does not import
// the llm package.
type statusCoder interface {
	HTTPStatus() int
}

// Retryable classifies an error as transient (worth retrying) or
// permanent.
//
// Description:
//
//	Classification rules, in order:
//	  - context cancellation: not retryable (the caller is gone).
//	  - context deadline exceeded: retryable. A deadline here is assumed
//	    to be a per-attempt timeout the operation set on itself; Do
//	    checks the parent context separately, so a dead caller is never
//	    retried on this branch.
//	  - HTTP 429 (rate limit) and all 5xx: retryable.
//	  - Other 4xx client errors: not retryable.
//	  - net.Error timeouts and connection errors: retryable.
//	  - Anything else: retryable (conservative default).
//
// Thread Safety: Safe for concurrent use (pure function).
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true // per-attempt timeout
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		status := sc.HTTPStatus()
		switch {
		case status == http.StatusTooManyRequests:
			return true
		case status >= 500:
			return true
		case status >= 400:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true // timeouts and connection failures
	}

	// Unclassified errors default to retryable.
	return true
}

// Do runs op with bounded exponential backoff.
//
// Description:
//
//	Invokes op up to cfg.MaxAttempts times. After each failed attempt the
//	parent context is checked first: if it has ended, the attempt's error
//	is returned without retrying. Otherwise the error is classified; a
//	permanent error is returned immediately, a transient one (including a
//	per-attempt timeout the op set on its own derived context) triggers a
//	context-aware backoff sleep. When attempts run out, the last error is
//	wrapped in ErrExhausted.
//
// Inputs:
//   - ctx: Cancels both the operation and the backoff sleeps.
//   - name: Label for logs and metrics (e.g., the specialist name).
//   - cfg: Backoff schedule; zero-value fields fall back to DefaultConfig.
//   - op: The operation. Receives ctx unchanged; per-call timeouts are
//     the operation's own concern, and their expiry is retried like any
//     other transient failure.
//
// Outputs:
//   - error: Nil on success; the attempt's error if the parent context
//     ended; the permanent error on a non-retryable failure; ErrExhausted
//     (wrapping the last error) when attempts run out; ctx.Err() if the
//     context ends during backoff.
//
// Thread Safety: Safe for concurrent use.
func Do(ctx context.Context, name string, cfg Config, op func(ctx context.Context) error) error {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = def.Multiplier
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		retryAttemptsTotal.WithLabelValues(name).Inc()

		// Parent death first: a deadline surfacing from the attempt is
		// only a retryable per-attempt timeout while the caller's own
		// context is still live.
		if ctx.Err() != nil {
			slog.Debug("retry: caller context ended, not retrying",
				slog.String("op", name),
				slog.Int("attempt", attempt),
				slog.String("error", lastErr.Error()),
			)
			return lastErr
		}

		if !Retryable(lastErr) {
			slog.Debug("retry: permanent error, not retrying",
				slog.String("op", name),
				slog.Int("attempt", attempt),
				slog.String("error", lastErr.Error()),
			)
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		slog.Debug("retry: transient error, backing off",
			slog.String("op", name),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", lastErr.Error()),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	retryExhaustedTotal.WithLabelValues(name).Inc()
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, cfg.MaxAttempts, lastErr)
}
