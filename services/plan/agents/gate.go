// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/fabplan/services/llm"
	"github.com/AleutianAI/fabplan/services/plan/datatypes"
	"github.com/AleutianAI/fabplan/services/plan/retry"
)

const gateInstructions = `You are the release gate for a manufacturing
planning document. Score the merged plan for completeness and internal
consistency, list concrete reasons and fixes, and set blocked=true when
the plan is not ready to release. Empty or degraded sections are
blocking problems, not omissions to ignore.`

const gateSchema = `{
  "type": "object",
  "properties": {
    "score": {"type": "integer", "minimum": 0, "maximum": 100},
    "reasons": {"type": "array", "items": {"type": "string"}},
    "fixes": {"type": "array", "items": {"type": "string"}},
    "blocked": {"type": "boolean"}
  },
  "required": ["score", "blocked"]
}`

// GateEvaluator scores the fully merged plan and decides whether it is
// ready to release.
//
// Thread Safety: Safe for concurrent use after construction.
type GateEvaluator struct {
	client      llm.GenerationClient
	retryCfg    retry.Config
	callTimeout time.Duration
}

// NewGate creates the gate evaluator.
func NewGate(client llm.GenerationClient) *GateEvaluator {
	return &GateEvaluator{
		client:      client,
		retryCfg:    retry.DefaultConfig(),
		callTimeout: defaultCallTimeout,
	}
}

// Name returns the gate's checkpoint/metric label.
func (g *GateEvaluator) Name() string { return GateName }

// WithRetry overrides the gate's retry policy. Returns the evaluator
// for chaining during construction.
func (g *GateEvaluator) WithRetry(cfg retry.Config) *GateEvaluator {
	g.retryCfg = cfg
	return g
}

// safeDefault is the result substituted when gate evaluation itself
// fails. A plan must never be reported ready by omission.
func safeDefault(reason string) datatypes.GateResult {
	return datatypes.GateResult{
		Score:   0,
		Blocked: true,
		Reasons: []string{reason},
	}
}

// Evaluate scores the merged plan.
//
// Description:
//
//	Renders the full plan and the canonical fact set into the gate
//	prompt and requests a GateResult-shaped structured output under the
//	retry policy. Every failure path — transport, exhaustion, or
//	undecodable output — returns the safe default {blocked: true,
//	score: 0} rather than an error.
//
// Thread Safety: Safe for concurrent use.
func (g *GateEvaluator) Evaluate(ctx context.Context, merged datatypes.Plan, pack datatypes.ContextPack) datatypes.GateResult {
	planJSON, err := json.Marshal(merged)
	if err != nil {
		slog.Error("gate: plan marshal failed", slog.String("error", err.Error()))
		return safeDefault("gate could not serialize the plan")
	}

	prompt := fmt.Sprintf("## Merged plan\n%s\n\n%s", planJSON,
		buildPrompt(GateName, merged, pack, nil))

	var raw json.RawMessage
	err = retry.Do(ctx, GateName, g.retryCfg, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
		defer cancel()

		var callErr error
		raw, callErr = g.client.GenerateStructured(callCtx, llm.StructuredRequest{
			Instructions: gateInstructions,
			Prompt:       prompt,
			SchemaName:   "gate_result",
			Schema:       json.RawMessage(gateSchema),
		})
		return callErr
	})
	if err != nil {
		slog.Warn("gate evaluation failed, blocking plan",
			slog.String("error", err.Error()),
		)
		return safeDefault("gate evaluation failed: " + err.Error())
	}

	var result datatypes.GateResult
	if err := json.Unmarshal(raw, &result); err != nil {
		slog.Warn("gate output failed structural validation",
			slog.String("error", err.Error()),
		)
		return safeDefault("gate returned an invalid result")
	}

	return result
}
