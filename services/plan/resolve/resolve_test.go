// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"testing"

	"github.com/AleutianAI/fabplan/services/plan/datatypes"
)

func fact(id, topic string, authority datatypes.Authority, rank int) datatypes.Fact {
	return datatypes.Fact{
		ID:             id,
		Claim:          "claim " + id,
		Topic:          topic,
		Authority:      authority,
		PrecedenceRank: rank,
		Citation:       datatypes.Citation{SourceID: "src-" + id},
	}
}

func statusOf(t *testing.T, pack datatypes.ContextPack, id string) datatypes.FactStatus {
	t.Helper()
	for _, f := range pack.Facts {
		if f.ID == id {
			return f.Status
		}
	}
	t.Fatalf("fact %s not in pack", id)
	return ""
}

func TestResolve_DrawingBeatsQuote(t *testing.T) {
	// Drawing (mandatory, rank 1) vs quote (conditional, rank 2) on the
	// same topic: drawing canonical, quote superseded.
	facts := []datatypes.Fact{
		fact("f-quote", "Material", datatypes.AuthorityConditional, 2),
		fact("f-drawing", "Material", datatypes.AuthorityMandatory, 1),
	}
	pack := Resolve(nil, facts, nil)

	if got := statusOf(t, pack, "f-drawing"); got != datatypes.StatusCanonical {
		t.Errorf("drawing status = %s, want canonical", got)
	}
	if got := statusOf(t, pack, "f-quote"); got != datatypes.StatusSuperseded {
		t.Errorf("quote status = %s, want superseded", got)
	}
}

func TestResolve_ExactlyOneCanonicalPerTopic(t *testing.T) {
	facts := []datatypes.Fact{
		fact("a", "Finish", datatypes.AuthorityMandatory, 3),
		fact("b", "Finish", datatypes.AuthorityMandatory, 3),
		fact("c", "Finish", datatypes.AuthorityConditional, 2),
		fact("d", "Finish", datatypes.AuthorityReference, 1),
		fact("e", "Finish", datatypes.AuthorityInternal, 1),
	}
	pack := Resolve(nil, facts, nil)

	canonical := pack.Canonical()
	if len(canonical) != 1 {
		t.Fatalf("canonical count = %d, want 1", len(canonical))
	}
	// Canonical outranks every other canonical-eligible fact.
	winner := canonical[0]
	for _, f := range pack.Facts {
		if f.Authority.CanonicalEligible() && f.PrecedenceRank < winner.PrecedenceRank {
			t.Errorf("fact %s (rank %d) outranks canonical %s (rank %d)",
				f.ID, f.PrecedenceRank, winner.ID, winner.PrecedenceRank)
		}
	}
	// Reference/internal facts become proposed, not superseded.
	if got := statusOf(t, pack, "d"); got != datatypes.StatusProposed {
		t.Errorf("reference fact status = %s, want proposed", got)
	}
	if got := statusOf(t, pack, "e"); got != datatypes.StatusProposed {
		t.Errorf("internal fact status = %s, want proposed", got)
	}
}

func TestResolve_TieBreakByFactID(t *testing.T) {
	facts := []datatypes.Fact{
		fact("f-bbb", "Tolerance", datatypes.AuthorityMandatory, 2),
		fact("f-aaa", "Tolerance", datatypes.AuthorityMandatory, 2),
	}
	pack := Resolve(nil, facts, nil)

	if got := statusOf(t, pack, "f-aaa"); got != datatypes.StatusCanonical {
		t.Errorf("lexicographically-first id should win the tie, got %s", got)
	}
	if got := statusOf(t, pack, "f-bbb"); got != datatypes.StatusSuperseded {
		t.Errorf("tie loser status = %s, want superseded", got)
	}
}

func TestResolve_LessonsLearnedPromotedWhenAlone(t *testing.T) {
	// A topic with only reference/internal facts promotes the strongest.
	facts := []datatypes.Fact{
		fact("f-lessons", "Deburr", datatypes.AuthorityInternal, 99),
	}
	pack := Resolve(nil, facts, nil)

	if got := statusOf(t, pack, "f-lessons"); got != datatypes.StatusCanonical {
		t.Errorf("lone internal fact status = %s, want canonical", got)
	}
}

func TestResolve_ReferenceOnlyTopic(t *testing.T) {
	facts := []datatypes.Fact{
		fact("r1", "Packaging", datatypes.AuthorityReference, 5),
		fact("r2", "Packaging", datatypes.AuthorityInternal, 6),
	}
	pack := Resolve(nil, facts, nil)

	if got := statusOf(t, pack, "r1"); got != datatypes.StatusCanonical {
		t.Errorf("strongest reference fact = %s, want canonical", got)
	}
	if got := statusOf(t, pack, "r2"); got != datatypes.StatusProposed {
		t.Errorf("weaker internal fact = %s, want proposed", got)
	}
}

func TestResolve_ScopeFilter(t *testing.T) {
	scoped := fact("f-acme", "Material", datatypes.AuthorityMandatory, 1)
	scoped.AppliesIf = map[string]string{"customer": "Acme"}
	unconditional := fact("f-any", "Material", datatypes.AuthorityConditional, 2)

	// Mismatched context excludes the scoped fact entirely.
	pack := Resolve(nil, []datatypes.Fact{scoped, unconditional}, map[string]string{"customer": "Globex"})
	if len(pack.Facts) != 1 || pack.Facts[0].ID != "f-any" {
		t.Fatalf("scoped fact should be excluded, pack has %d facts", len(pack.Facts))
	}
	if pack.Facts[0].Status != datatypes.StatusCanonical {
		t.Errorf("surviving fact status = %s, want canonical", pack.Facts[0].Status)
	}

	// Matching context includes it, and it wins on rank.
	pack = Resolve(nil, []datatypes.Fact{scoped, unconditional}, map[string]string{"customer": "Acme"})
	if got := statusOf(t, pack, "f-acme"); got != datatypes.StatusCanonical {
		t.Errorf("matching scoped fact = %s, want canonical", got)
	}
}

func TestResolve_AllAppliesIfKeysMustMatch(t *testing.T) {
	f := fact("f1", "Coating", datatypes.AuthorityMandatory, 1)
	f.AppliesIf = map[string]string{"customer": "Acme", "family": "housings"}

	pack := Resolve(nil, []datatypes.Fact{f}, map[string]string{"customer": "Acme"})
	if len(pack.Facts) != 0 {
		t.Error("fact with a partially-matching applies_if must be excluded")
	}

	pack = Resolve(nil, []datatypes.Fact{f}, map[string]string{"customer": "Acme", "family": "housings"})
	if len(pack.Facts) != 1 {
		t.Error("fact with fully-matching applies_if must be included")
	}
}

func TestResolve_Idempotent(t *testing.T) {
	facts := []datatypes.Fact{
		fact("a", "Material", datatypes.AuthorityMandatory, 1),
		fact("b", "Material", datatypes.AuthorityConditional, 2),
		fact("c", "Material", datatypes.AuthorityReference, 5),
		fact("d", "Finish", datatypes.AuthorityInternal, 9),
	}
	first := Resolve(nil, facts, nil)
	second := Resolve(first.Sources, first.Facts, first.Project)

	if len(first.Facts) != len(second.Facts) {
		t.Fatalf("fact counts differ: %d vs %d", len(first.Facts), len(second.Facts))
	}
	for i := range first.Facts {
		if first.Facts[i].ID != second.Facts[i].ID || first.Facts[i].Status != second.Facts[i].Status {
			t.Errorf("fact %s status changed on re-resolution: %s vs %s",
				first.Facts[i].ID, first.Facts[i].Status, second.Facts[i].Status)
		}
	}
}

func TestResolve_SingleFactTopicAlwaysCanonical(t *testing.T) {
	for _, authority := range []datatypes.Authority{
		datatypes.AuthorityMandatory,
		datatypes.AuthorityConditional,
		datatypes.AuthorityReference,
		datatypes.AuthorityInternal,
	} {
		pack := Resolve(nil, []datatypes.Fact{fact("only", "Topic", authority, 50)}, nil)
		if got := pack.Facts[0].Status; got != datatypes.StatusCanonical {
			t.Errorf("single %s fact status = %s, want canonical", authority, got)
		}
	}
}

func TestResolve_PackCarriesPolicyAndProject(t *testing.T) {
	project := map[string]string{"customer": "Acme"}
	pack := Resolve(nil, nil, project)

	if pack.Policy != datatypes.PrecedencePolicy {
		t.Errorf("policy = %q", pack.Policy)
	}
	if pack.Project["customer"] != "Acme" {
		t.Error("pack should carry the project context")
	}
}

func TestSortedTopics(t *testing.T) {
	pack := Resolve(nil, []datatypes.Fact{
		fact("a", "zeta", datatypes.AuthorityMandatory, 1),
		fact("b", "alpha", datatypes.AuthorityMandatory, 1),
		fact("c", "alpha", datatypes.AuthorityReference, 5),
	}, nil)

	topics := SortedTopics(pack)
	if len(topics) != 2 || topics[0] != "alpha" || topics[1] != "zeta" {
		t.Errorf("SortedTopics = %v", topics)
	}
}
