// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolve collapses competing factual claims into a single
// canonical statement per topic under the fixed precedence policy, and
// freezes the result into a ContextPack for the specialist runners.
package resolve

import (
	"log/slog"
	"sort"

	"github.com/AleutianAI/fabplan/services/plan/datatypes"
)

// Resolve filters candidate facts by project scope, groups them by topic,
// and assigns each surviving fact a resolution status.
//
// Description:
//
//	Per-topic resolution:
//	  - Canonical-eligible facts (mandatory/conditional authority) compete
//	    on (precedence_rank, id); the winner becomes canonical, losers
//	    become superseded, and reference/internal facts on the same topic
//	    become proposed.
//	  - A topic with only reference/internal facts promotes its strongest
//	    fact to canonical (lowest rank, then id) and demotes the rest to
//	    proposed, so every topic has exactly one canonical claim.
//
//	The (precedence_rank, id) pair is a strict total order, so resolution
//	is deterministic and idempotent: resolving an already-resolved fact
//	set reproduces identical statuses.
//
// Inputs:
//   - sources: The source registry for the session.
//   - facts: Candidate facts; input order is irrelevant to the outcome.
//   - project: Active project context matched against each fact's
//     applies_if condition.
//
// Outputs:
//   - datatypes.ContextPack: Frozen pack with post-resolution statuses.
//     Facts excluded by scope do not appear in the pack.
//
// Thread Safety: Safe for concurrent use (pure function).
func Resolve(sources []datatypes.Source, facts []datatypes.Fact, project map[string]string) datatypes.ContextPack {
	inScope := make([]datatypes.Fact, 0, len(facts))
	excluded := 0
	for _, f := range facts {
		if !InScope(f, project) {
			excluded++
			continue
		}
		inScope = append(inScope, f)
	}
	if excluded > 0 {
		slog.Debug("resolve: facts excluded by scope filter",
			slog.Int("excluded", excluded),
			slog.Int("remaining", len(inScope)),
		)
	}

	byTopic := make(map[string][]int)
	topics := make([]string, 0)
	for i, f := range inScope {
		if _, seen := byTopic[f.Topic]; !seen {
			topics = append(topics, f.Topic)
		}
		byTopic[f.Topic] = append(byTopic[f.Topic], i)
	}

	for _, topic := range topics {
		resolveTopic(inScope, byTopic[topic])
	}

	return datatypes.ContextPack{
		Project: project,
		Sources: sources,
		Facts:   inScope,
		Policy:  datatypes.PrecedencePolicy,
	}
}

// InScope reports whether a fact's applies_if condition matches the
// project context.
//
// Description:
//
//	A fact with no applies_if always passes. Otherwise every key must
//	match the project context exactly (logical AND); a key whose value
//	disagrees — or that is absent from the context — excludes the fact.
//	Scope mismatch is a normal filtering outcome, not an error.
//
// Thread Safety: Safe for concurrent use (pure function).
func InScope(f datatypes.Fact, project map[string]string) bool {
	for key, want := range f.AppliesIf {
		if project[key] != want {
			return false
		}
	}
	return true
}

// resolveTopic assigns statuses to the facts at the given indexes, which
// all share one topic.
func resolveTopic(facts []datatypes.Fact, idxs []int) {
	// A topic with a single fact is canonical regardless of authority.
	if len(idxs) == 1 {
		facts[idxs[0]].Status = datatypes.StatusCanonical
		return
	}

	eligible := make([]int, 0, len(idxs))
	for _, i := range idxs {
		if facts[i].Authority.CanonicalEligible() {
			eligible = append(eligible, i)
		}
	}

	// When no mandatory/conditional fact exists, the strongest
	// reference/internal fact is promoted instead.
	pool := eligible
	if len(pool) == 0 {
		pool = idxs
	}

	winner := pool[0]
	for _, i := range pool[1:] {
		if factLess(facts[i], facts[winner]) {
			winner = i
		}
	}

	for _, i := range idxs {
		switch {
		case i == winner:
			facts[i].Status = datatypes.StatusCanonical
		case facts[i].Authority.CanonicalEligible():
			facts[i].Status = datatypes.StatusSuperseded
		default:
			facts[i].Status = datatypes.StatusProposed
		}
	}
}

// factLess is the strict order used for canonical selection: lower
// precedence rank wins, ties broken by lexicographic fact id.
func factLess(a, b datatypes.Fact) bool {
	if a.PrecedenceRank != b.PrecedenceRank {
		return a.PrecedenceRank < b.PrecedenceRank
	}
	return a.ID < b.ID
}

// SortedTopics returns the distinct topics of the pack's facts in
// lexicographic order. Used for stable prompt rendering and reporting.
func SortedTopics(pack datatypes.ContextPack) []string {
	seen := make(map[string]bool)
	var topics []string
	for _, f := range pack.Facts {
		if !seen[f.Topic] {
			seen[f.Topic] = true
			topics = append(topics, f.Topic)
		}
	}
	sort.Strings(topics)
	return topics
}
