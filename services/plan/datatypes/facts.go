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

// FactStatus is the resolution outcome for a factual claim.
type FactStatus string

const (
	// StatusCanonical marks the single authoritative claim for a topic.
	StatusCanonical FactStatus = "canonical"

	// StatusProposed marks a lower-authority claim retained for visibility
	// but not treated as ground truth.
	StatusProposed FactStatus = "proposed"

	// StatusSuperseded marks a canonical-eligible claim that lost to a
	// higher-priority claim on the same topic.
	StatusSuperseded FactStatus = "superseded"
)

// PrecedencePolicy documents the fixed conflict rule applied during fact
// resolution. It is embedded in every ContextPack so downstream consumers
// (and prompts) can state the rule without re-deriving it.
const PrecedencePolicy = "lower precedence_rank overrides higher; mandatory/conditional sources supersede reference/internal"

// Fact is one candidate factual claim about a topic, tied to a source via
// its Citation.
//
// Description:
//
//	Facts are created by upstream extraction and mutated only by the
//	resolution engine, which assigns Status. Facts are never deleted,
//	only demoted to superseded or proposed.
//
// Fields:
//   - ID: Stable identifier; used as the deterministic tie-breaker.
//   - Claim: The claim text.
//   - Topic: Grouping key; claims about the same topic compete.
//   - Citation: Where the claim came from.
//   - Authority / PrecedenceRank: Inherited from the cited source.
//   - AppliesIf: Optional key→value condition on the project context.
//   - Status: Assigned by resolution.
//   - Confidence: Optional extraction confidence in [0,1]; 0 means unset.
type Fact struct {
	ID             string            `json:"id"`
	Claim          string            `json:"claim"`
	Topic          string            `json:"topic"`
	Citation       Citation          `json:"citation"`
	Authority      Authority         `json:"authority"`
	PrecedenceRank int               `json:"precedence_rank"`
	AppliesIf      map[string]string `json:"applies_if,omitempty"`
	Status         FactStatus        `json:"status,omitempty"`
	Confidence     float64           `json:"confidence,omitempty"`
}

// ContextPack is the frozen, resolved fact set handed to every specialist.
//
// Description:
//
//	Built once per planning session by the resolve package and treated as
//	read-only afterward. Facts carry post-resolution statuses; for any
//	topic at most one Fact has StatusCanonical.
//
// Thread Safety: Safe for concurrent reads after construction.
type ContextPack struct {
	// Project holds the active project context (e.g., customer, family)
	// that scope filtering was evaluated against.
	Project map[string]string `json:"project,omitempty"`

	Sources []Source `json:"sources,omitempty"`
	Facts   []Fact   `json:"facts,omitempty"`

	// Policy is always PrecedencePolicy; kept as a field so serialized
	// packs are self-describing.
	Policy string `json:"precedence_policy"`
}

// Canonical returns the facts with canonical status, in input order.
func (cp ContextPack) Canonical() []Fact {
	var out []Fact
	for _, f := range cp.Facts {
		if f.Status == StatusCanonical {
			out = append(out, f)
		}
	}
	return out
}

// ByStatus returns the facts with the given status, in input order.
func (cp ContextPack) ByStatus(status FactStatus) []Fact {
	var out []Fact
	for _, f := range cp.Facts {
		if f.Status == status {
			out = append(out, f)
		}
	}
	return out
}

// SourceByID looks up a source by id. Returns false if absent.
func (cp ContextPack) SourceByID(id string) (Source, bool) {
	for _, s := range cp.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return Source{}, false
}
