// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package coordinator runs the specialist runners against a resolved
// context pack and merges their patches into a single consistent plan.
//
// The coordinator is the only writer of the shared Plan. Specialists
// read an immutable snapshot and return patches; because each
// specialist owns a disjoint set of section keys, the specialists run
// concurrently and only the merge step is serialized, on the
// coordinator's own goroutine.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/fabplan/services/plan/agents"
	"github.com/AleutianAI/fabplan/services/plan/checkpoint"
	"github.com/AleutianAI/fabplan/services/plan/datatypes"
)

const tracerName = "fabplan.coordinator"

// maxConcurrentSpecialists bounds parallel generation calls so a large
// specialist roster cannot trip the provider's rate limits.
const maxConcurrentSpecialists = 4

// Request is one drafting run's input.
//
// PackPayload carries the context pack as raw JSON so callers that
// receive it over the wire do not need to pre-validate it; an invalid
// or missing payload degrades to an empty ContextPack.
type Request struct {
	SessionID       string                 `json:"session_id"`
	Plan            datatypes.Plan         `json:"plan"`
	PackPayload     json.RawMessage        `json:"context_pack,omitempty"`
	Pack            *datatypes.ContextPack `json:"-"`
	RetrievalHandle string                 `json:"retrieval_handle,omitempty"`
}

// Result is the outcome of a drafting run. The Plan is always
// populated, possibly with empty sections from degraded specialists.
type Result struct {
	SessionID  string               `json:"session_id"`
	Plan       datatypes.Plan       `json:"plan"`
	Tasks      []datatypes.Task     `json:"tasks"`
	Conflicts  []datatypes.Conflict `json:"conflicts"`
	Gate       datatypes.GateResult `json:"gate"`
	Degraded   []string             `json:"degraded,omitempty"`
	State      State                `json:"state"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
}

// Coordinator drives one drafting run through the
// idle -> running-specialists -> merging -> gating -> done/failed
// state machine.
//
// Thread Safety: a Coordinator tracks a single run's state; construct
// one per run and do not share it across goroutines.
type Coordinator struct {
	specialists []*agents.Runner
	gate        *agents.GateEvaluator
	checkpoints checkpoint.Store
	state       State
}

// New builds a Coordinator. The checkpoint store may be nil, in which
// case the run is not checkpointed.
func New(specialists []*agents.Runner, gate *agents.GateEvaluator, store checkpoint.Store) *Coordinator {
	return &Coordinator{
		specialists: specialists,
		gate:        gate,
		checkpoints: store,
		state:       StateIdle,
	}
}

// State returns the coordinator's current lifecycle state.
func (c *Coordinator) State() State { return c.state }

// CoercePack decodes a raw context-pack payload. An empty or invalid
// payload degrades to an empty ContextPack rather than failing the
// run; drafting against no facts is still a valid, if weak, run.
func CoercePack(payload json.RawMessage) datatypes.ContextPack {
	if len(payload) == 0 {
		return datatypes.ContextPack{Policy: datatypes.PrecedencePolicy}
	}
	var pack datatypes.ContextPack
	if err := json.Unmarshal(payload, &pack); err != nil {
		slog.Warn("Context pack payload invalid, degrading to empty pack",
			slog.String("error", err.Error()),
		)
		return datatypes.ContextPack{Policy: datatypes.PrecedencePolicy}
	}
	if pack.Policy == "" {
		pack.Policy = datatypes.PrecedencePolicy
	}
	return pack
}

// specialistResult pairs a finished specialist's patch with its timing
// for the merge loop.
type specialistResult struct {
	patch    datatypes.AgentPatch
	duration time.Duration
}

// Run executes a full drafting run.
//
// Description:
//
//	Normalizes the incoming plan, coerces the context pack, runs every
//	specialist concurrently against an immutable plan snapshot, merges
//	each patch as it completes (owned keys only), deduplicates suggested
//	tasks by fingerprint across this run and prior checkpoints of the
//	same session, concatenates conflicts verbatim, and finally gates the
//	merged plan. One specialist's failure never aborts the run; the plan
//	is always produced.
//
// Inputs:
//
//	ctx - Context for the run; each specialist call carries its own timeout.
//	req - Session id, starting plan, raw context pack, retrieval handle.
//
// Outputs:
//
//	Result - Merged plan, deduplicated tasks, conflicts, gate verdict.
//	error - Non-nil only for invalid requests or a broken state machine;
//	        never for specialist or gate failures.
func (c *Coordinator) Run(ctx context.Context, req Request) (Result, error) {
	if req.SessionID == "" {
		return Result{}, errors.New("session id is required")
	}
	if c.gate == nil {
		return Result{}, errors.New("gate evaluator is required")
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "coordinator.Run",
		trace.WithAttributes(
			attribute.String("session_id", req.SessionID),
			attribute.Int("specialist_count", len(c.specialists)),
		),
	)
	defer span.End()

	result := Result{
		SessionID: req.SessionID,
		Plan:      req.Plan,
		State:     c.state,
		StartedAt: time.Now().UTC(),
	}
	result.Plan.Normalize()

	pack := req.Pack
	if pack == nil {
		coerced := CoercePack(req.PackPayload)
		pack = &coerced
	}

	seen, err := c.seedFingerprints(ctx, req.SessionID)
	if err != nil {
		slog.Warn("Could not seed task fingerprints from checkpoints",
			slog.String("session_id", req.SessionID),
			slog.String("error", err.Error()),
		)
		seen = map[string]struct{}{}
	}

	if err := c.transition(StateRunningSpecialists); err != nil {
		return c.fail(result, span, err)
	}

	snapshot := result.Plan.Snapshot()
	results := make(chan specialistResult, len(c.specialists))

	var g errgroup.Group
	g.SetLimit(maxConcurrentSpecialists)
	for _, r := range c.specialists {
		runner := r
		g.Go(func() error {
			start := time.Now()
			patch := runner.Run(ctx, snapshot, *pack, req.RetrievalHandle)
			results <- specialistResult{patch: patch, duration: time.Since(start)}
			// Runners degrade to blank patches instead of failing, so
			// no error ever cancels the sibling specialists.
			return nil
		})
	}
	go func() {
		g.Wait()
		close(results)
	}()

	if err := c.transition(StateMerging); err != nil {
		return c.fail(result, span, err)
	}

	// Merge on this goroutine as each specialist finishes. The
	// specialists own disjoint keys, so merge order does not affect
	// section contents; task order follows completion order.
	for sr := range results {
		c.merge(&result, sr.patch, seen)
		c.observeSpecialist(sr)
		c.writeCheckpoint(ctx, req.SessionID, sr.patch.Specialist, result, seen)
	}

	if err := c.transition(StateGating); err != nil {
		return c.fail(result, span, err)
	}

	result.Gate = c.gate.Evaluate(ctx, result.Plan, *pack)
	if result.Gate.Blocked {
		gateBlocked.WithLabelValues("blocked").Inc()
	} else {
		gateBlocked.WithLabelValues("passed").Inc()
	}
	span.SetAttributes(
		attribute.Int("gate.score", result.Gate.Score),
		attribute.Bool("gate.blocked", result.Gate.Blocked),
		attribute.Int("degraded_specialists", len(result.Degraded)),
	)

	if err := c.transition(StateDone); err != nil {
		return c.fail(result, span, err)
	}
	result.State = c.state
	result.FinishedAt = time.Now().UTC()

	slog.Info("Drafting run complete",
		slog.String("session_id", req.SessionID),
		slog.Int("tasks", len(result.Tasks)),
		slog.Int("conflicts", len(result.Conflicts)),
		slog.Int("gate_score", result.Gate.Score),
		slog.Bool("gate_blocked", result.Gate.Blocked),
		slog.Any("degraded", result.Degraded),
	)
	return result, nil
}

// merge folds one specialist's patch into the result. Only keys the
// specialist owns are written; anything else is discarded and logged.
// Tasks are deduplicated by fingerprint; conflicts are concatenated
// verbatim. A degraded patch is recorded but its sections are not
// written: the blank fallback carries no drafted content, and writing
// its empty objects would erase sections a previous run drafted.
func (c *Coordinator) merge(result *Result, patch datatypes.AgentPatch, seen map[string]struct{}) {
	if patch.Degraded {
		slog.Warn("Skipping section merge for degraded specialist",
			slog.String("specialist", patch.Specialist),
		)
		result.Degraded = append(result.Degraded, patch.Specialist)
		return
	}

	keys := make([]datatypes.SectionKey, 0, len(patch.Patch))
	for key := range patch.Patch {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, key := range keys {
		if !agents.Owns(patch.Specialist, key) {
			foreignKeysDiscarded.WithLabelValues(patch.Specialist).Inc()
			slog.Warn("Discarding patch key outside specialist ownership",
				slog.String("specialist", patch.Specialist),
				slog.String("section", string(key)),
			)
			continue
		}
		if err := result.Plan.ApplySection(key, patch.Patch[key]); err != nil {
			// The runner validated owned sections before returning, so
			// this should not fire in practice.
			slog.Warn("Owned section failed to apply during merge",
				slog.String("specialist", patch.Specialist),
				slog.String("section", string(key)),
				slog.String("error", err.Error()),
			)
		}
	}

	for _, task := range patch.Tasks {
		fp := task.Fingerprint()
		if _, dup := seen[fp]; dup {
			tasksDeduplicated.Inc()
			slog.Debug("Skipping duplicate suggested task",
				slog.String("specialist", patch.Specialist),
				slog.String("task", task.Name),
			)
			continue
		}
		seen[fp] = struct{}{}
		result.Tasks = append(result.Tasks, task)
	}

	result.Conflicts = append(result.Conflicts, patch.Conflicts...)
}

func (c *Coordinator) observeSpecialist(sr specialistResult) {
	outcome := "ok"
	if sr.patch.Degraded {
		outcome = "degraded"
	}
	specialistRuns.WithLabelValues(sr.patch.Specialist, outcome).Inc()
	specialistDuration.WithLabelValues(sr.patch.Specialist).Observe(sr.duration.Seconds())
}

// seedFingerprints loads the merged task fingerprints recorded by the
// most recent checkpoint of this session, so re-planning a session does
// not resubmit tasks an earlier run already suggested.
func (c *Coordinator) seedFingerprints(ctx context.Context, sessionID string) (map[string]struct{}, error) {
	seen := map[string]struct{}{}
	if c.checkpoints == nil {
		return seen, nil
	}
	rec, err := c.checkpoints.Latest(ctx, sessionID)
	if errors.Is(err, checkpoint.ErrNoCheckpoint) {
		return seen, nil
	}
	if err != nil {
		return seen, fmt.Errorf("loading latest checkpoint: %w", err)
	}
	for _, fp := range rec.TaskFingerprints {
		seen[fp] = struct{}{}
	}
	return seen, nil
}

func (c *Coordinator) writeCheckpoint(ctx context.Context, sessionID, specialist string, result Result, seen map[string]struct{}) {
	if c.checkpoints == nil {
		return
	}
	fps := make([]string, 0, len(seen))
	for fp := range seen {
		fps = append(fps, fp)
	}
	sort.Strings(fps)

	rec := checkpoint.Record{
		SessionID:        sessionID,
		Specialist:       specialist,
		Timestamp:        time.Now().UTC(),
		Plan:             result.Plan.Snapshot(),
		TaskFingerprints: fps,
		Meta: map[string]string{
			"tasks":     fmt.Sprintf("%d", len(result.Tasks)),
			"conflicts": fmt.Sprintf("%d", len(result.Conflicts)),
		},
	}
	if err := c.checkpoints.Append(ctx, rec); err != nil {
		checkpointWrites.WithLabelValues("error").Inc()
		slog.Warn("Checkpoint write failed",
			slog.String("session_id", sessionID),
			slog.String("specialist", specialist),
			slog.String("error", err.Error()),
		)
		return
	}
	checkpointWrites.WithLabelValues("ok").Inc()
}

// fail marks the run failed on the span and state machine. Reaching
// this path means the coordinator itself is broken, not a specialist.
func (c *Coordinator) fail(result Result, span trace.Span, err error) (Result, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.state = StateFailed
	result.State = StateFailed
	result.FinishedAt = time.Now().UTC()
	return result, err
}
