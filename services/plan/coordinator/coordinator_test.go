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
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/AleutianAI/fabplan/services/llm"
	"github.com/AleutianAI/fabplan/services/plan/agents"
	"github.com/AleutianAI/fabplan/services/plan/checkpoint"
	"github.com/AleutianAI/fabplan/services/plan/datatypes"
	"github.com/AleutianAI/fabplan/services/plan/retry"
)

// stubClient returns the same canned response (or error) on every call.
type stubClient struct {
	resp json.RawMessage
	err  error
}

func (s stubClient) GenerateStructured(context.Context, llm.StructuredRequest) (json.RawMessage, error) {
	return s.resp, s.err
}

var testRetry = retry.Config{MaxAttempts: 1, InitialDelay: time.Millisecond, Multiplier: 2, MaxDelay: time.Millisecond}

func passingGate() *agents.GateEvaluator {
	return agents.NewGate(stubClient{resp: json.RawMessage(`{"score": 90, "blocked": false}`)}).WithRetry(testRetry)
}

func envelope(t *testing.T, patch map[string]any, tasks []datatypes.Task) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"patch": patch, "tasks": tasks})
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func testPack() *datatypes.ContextPack {
	return &datatypes.ContextPack{
		Project: map[string]string{"customer": "Acme"},
		Policy:  datatypes.PrecedencePolicy,
	}
}

func TestRun_MergesOwnedSectionsAndDedupesTasks(t *testing.T) {
	sharedTask := datatypes.Task{Name: "Order raw stock", SourceHint: "po", OwnerHint: "buyer"}

	quality := agents.NewQuality(stubClient{resp: envelope(t,
		map[string]any{"quality_plan": map[string]any{"notes": "FAI required"}},
		[]datatypes.Task{sharedTask, {Name: "Write FAI checklist"}},
	)}).WithRetry(testRetry)

	// Purchasing also suggests the shared task (different notes, same
	// fingerprint) and tries to write quality's section.
	dupTask := sharedTask
	dupTask.Notes = "different notes, same fingerprint"
	purchasing := agents.NewPurchasing(stubClient{resp: envelope(t,
		map[string]any{
			"purchasing_plan": map[string]any{"notes": "two suppliers"},
			"quality_plan":    map[string]any{"notes": "hijacked"},
		},
		[]datatypes.Task{dupTask},
	)}).WithRetry(testRetry)

	c := New([]*agents.Runner{quality, purchasing}, passingGate(), nil)
	result, err := c.Run(context.Background(), Request{
		SessionID: "s1",
		Pack:      testPack(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Plan.Quality == nil || result.Plan.Quality.Notes != "FAI required" {
		t.Errorf("quality_plan = %+v; foreign write must not win", result.Plan.Quality)
	}
	if result.Plan.Purchasing == nil || result.Plan.Purchasing.Notes != "two suppliers" {
		t.Errorf("purchasing_plan = %+v", result.Plan.Purchasing)
	}
	if len(result.Tasks) != 2 {
		t.Errorf("tasks = %+v, want shared task merged once plus FAI checklist", result.Tasks)
	}
	if len(result.Degraded) != 0 {
		t.Errorf("degraded = %v", result.Degraded)
	}
	if result.Gate.Blocked || result.Gate.Score != 90 {
		t.Errorf("gate = %+v", result.Gate)
	}
	if c.State() != StateDone {
		t.Errorf("state = %s, want done", c.State())
	}
}

func TestRun_NormalizesIncomingPlan(t *testing.T) {
	quality := agents.NewQuality(stubClient{resp: envelope(t, map[string]any{}, nil)}).WithRetry(testRetry)
	c := New([]*agents.Runner{quality}, passingGate(), nil)

	result, err := c.Run(context.Background(), Request{SessionID: "s1", Pack: testPack()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, key := range datatypes.AllSectionKeys {
		if _, err := result.Plan.Section(key); err != nil {
			t.Errorf("section %s absent after normalize: %v", key, err)
		}
	}
}

func TestRun_DegradedSpecialistDoesNotAbortRun(t *testing.T) {
	failing := agents.NewQuality(stubClient{err: &llm.APIError{StatusCode: 500}}).WithRetry(testRetry)
	healthy := agents.NewPurchasing(stubClient{resp: envelope(t,
		map[string]any{"purchasing_plan": map[string]any{"notes": "ok"}}, nil,
	)}).WithRetry(testRetry)

	c := New([]*agents.Runner{failing, healthy}, passingGate(), nil)
	result, err := c.Run(context.Background(), Request{SessionID: "s1", Pack: testPack()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Degraded) != 1 || result.Degraded[0] != agents.SpecialistQuality {
		t.Errorf("degraded = %v, want [quality]", result.Degraded)
	}
	if result.Plan.Purchasing == nil || result.Plan.Purchasing.Notes != "ok" {
		t.Error("healthy specialist's patch should still merge")
	}
	// The degraded specialist's blank patch leaves a valid empty section.
	if result.Plan.Quality == nil {
		t.Error("quality_plan should exist (blank) after degradation")
	}
}

func TestRun_DegradedSpecialistPreservesPriorDraft(t *testing.T) {
	prior := datatypes.Plan{Quality: &datatypes.QualityPlan{Notes: "FAI on first article"}}

	failing := agents.NewQuality(stubClient{err: &llm.APIError{StatusCode: 500}}).WithRetry(testRetry)
	c := New([]*agents.Runner{failing}, passingGate(), nil)

	result, err := c.Run(context.Background(), Request{SessionID: "s1", Plan: prior, Pack: testPack()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Degraded) != 1 || result.Degraded[0] != agents.SpecialistQuality {
		t.Errorf("degraded = %v, want [quality]", result.Degraded)
	}
	if result.Plan.Quality == nil || result.Plan.Quality.Notes != "FAI on first article" {
		t.Errorf("quality_plan = %+v; blank fallback must not overwrite an earlier draft", result.Plan.Quality)
	}
}

func TestRun_GateFailureBlocksPlan(t *testing.T) {
	quality := agents.NewQuality(stubClient{resp: envelope(t, map[string]any{}, nil)}).WithRetry(testRetry)
	gate := agents.NewGate(stubClient{err: &llm.APIError{StatusCode: 500}}).WithRetry(testRetry)

	c := New([]*agents.Runner{quality}, gate, nil)
	result, err := c.Run(context.Background(), Request{SessionID: "s1", Pack: testPack()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Gate.Blocked || result.Gate.Score != 0 {
		t.Errorf("gate = %+v, want blocked safe default", result.Gate)
	}
}

func TestRun_DeduplicatesTasksAcrossRuns(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	task := datatypes.Task{Name: "Order raw stock", SourceHint: "po"}
	newRunner := func() *agents.Runner {
		return agents.NewQuality(stubClient{resp: envelope(t,
			map[string]any{"quality_plan": map[string]any{"notes": "rev A"}},
			[]datatypes.Task{task},
		)}).WithRetry(testRetry)
	}

	first, err := New([]*agents.Runner{newRunner()}, passingGate(), store).
		Run(context.Background(), Request{SessionID: "s1", Pack: testPack()})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(first.Tasks) != 1 {
		t.Fatalf("first run tasks = %+v", first.Tasks)
	}

	second, err := New([]*agents.Runner{newRunner()}, passingGate(), store).
		Run(context.Background(), Request{SessionID: "s1", Pack: testPack()})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(second.Tasks) != 0 {
		t.Errorf("second run tasks = %+v, want none (fingerprint already checkpointed)", second.Tasks)
	}

	// Other sessions are unaffected.
	other, err := New([]*agents.Runner{newRunner()}, passingGate(), store).
		Run(context.Background(), Request{SessionID: "s2", Pack: testPack()})
	if err != nil {
		t.Fatalf("other session run: %v", err)
	}
	if len(other.Tasks) != 1 {
		t.Errorf("other session tasks = %+v", other.Tasks)
	}
}

func TestRun_WritesCheckpointPerSpecialist(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	quality := agents.NewQuality(stubClient{resp: envelope(t, map[string]any{}, nil)}).WithRetry(testRetry)
	purchasing := agents.NewPurchasing(stubClient{resp: envelope(t, map[string]any{}, nil)}).WithRetry(testRetry)

	if _, err := New([]*agents.Runner{quality, purchasing}, passingGate(), store).
		Run(context.Background(), Request{SessionID: "s1", Pack: testPack()}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	recs, err := store.List(context.Background(), "s1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("checkpoints = %d, want one per specialist", len(recs))
	}
	names := map[string]bool{}
	for _, rec := range recs {
		names[rec.Specialist] = true
	}
	if !names[agents.SpecialistQuality] || !names[agents.SpecialistPurchasing] {
		t.Errorf("checkpoint specialists = %v", names)
	}
}

func TestRun_RequiresSessionID(t *testing.T) {
	c := New(nil, passingGate(), nil)
	if _, err := c.Run(context.Background(), Request{}); err == nil {
		t.Fatal("expected error for empty session id")
	}
}

func TestCoercePack(t *testing.T) {
	empty := CoercePack(nil)
	if len(empty.Facts) != 0 || empty.Policy != datatypes.PrecedencePolicy {
		t.Errorf("empty payload: %+v", empty)
	}

	invalid := CoercePack(json.RawMessage(`{"facts": "nope"}`))
	if len(invalid.Facts) != 0 {
		t.Errorf("invalid payload should degrade to empty pack: %+v", invalid)
	}

	valid := CoercePack(json.RawMessage(`{"facts": [{"id": "f1", "topic": "Material", "status": "canonical"}]}`))
	if len(valid.Facts) != 1 || valid.Facts[0].Topic != "Material" {
		t.Errorf("valid payload: %+v", valid)
	}
	if valid.Policy != datatypes.PrecedencePolicy {
		t.Error("coerce should default the policy field")
	}
}

func TestStateMachine(t *testing.T) {
	allowed := [][2]State{
		{StateIdle, StateRunningSpecialists},
		{StateRunningSpecialists, StateMerging},
		{StateMerging, StateGating},
		{StateGating, StateDone},
		{StateIdle, StateFailed},
		{StateMerging, StateFailed},
	}
	for _, pair := range allowed {
		if !CanTransition(pair[0], pair[1]) {
			t.Errorf("%s -> %s should be allowed", pair[0], pair[1])
		}
	}
	denied := [][2]State{
		{StateIdle, StateMerging},
		{StateDone, StateIdle},
		{StateFailed, StateRunningSpecialists},
		{StateGating, StateRunningSpecialists},
	}
	for _, pair := range denied {
		if CanTransition(pair[0], pair[1]) {
			t.Errorf("%s -> %s should be denied", pair[0], pair[1])
		}
	}
	if !Terminal(StateDone) || !Terminal(StateFailed) || Terminal(StateMerging) {
		t.Error("terminal state classification wrong")
	}
}
