// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "encoding/json"

// Conflict is one unresolved disagreement a specialist surfaced while
// drafting its sections. Conflicts are aggregated verbatim by the
// coordinator; no cross-specialist reconciliation is performed.
type Conflict struct {
	Topic    string   `json:"topic"`
	Issue    string   `json:"issue"`
	Citation Citation `json:"citation,omitempty"`
}

// AgentPatch is what one specialist invocation produces: partial plan
// content for the sections it owns, suggested follow-up tasks, and any
// conflicts it could not resolve on its own.
//
// Description:
//
//	Ephemeral — produced once per invocation, consumed immediately by the
//	coordinator, then discarded. Patch maps section key to the raw JSON of
//	the replacement section value; the coordinator discards keys outside
//	the producing specialist's ownership set.
type AgentPatch struct {
	// Specialist is the name of the runner that produced the patch.
	Specialist string `json:"specialist"`

	Patch     map[SectionKey]json.RawMessage `json:"patch,omitempty"`
	Tasks     []Task                         `json:"tasks,omitempty"`
	Conflicts []Conflict                     `json:"conflicts,omitempty"`

	// Degraded is true when the patch is the runner's blank fallback
	// (generation failed, timed out, or returned invalid structure).
	Degraded bool `json:"degraded,omitempty"`
}

// GateResult is the Gate Evaluator's readiness verdict for a merged plan.
//
// Description:
//
//	Blocked communicates readiness, never execution failure: if the gate
//	itself fails, the coordinator substitutes {Blocked: true, Score: 0}
//	so a plan can never be reported ready by omission.
type GateResult struct {
	Score   int      `json:"score"`
	Reasons []string `json:"reasons,omitempty"`
	Fixes   []string `json:"fixes,omitempty"`
	Blocked bool     `json:"blocked"`
}
