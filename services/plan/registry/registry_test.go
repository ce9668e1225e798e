// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"testing"

	"github.com/AleutianAI/fabplan/services/plan/datatypes"
)

func TestClassify_OrderedRules(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     datatypes.SourceKind
	}{
		// "proposal" contains "po" — must classify as quote, not purchase order.
		{"proposal beats po substring", "acme_proposal_rev2.pdf", datatypes.KindQuote},
		{"purchase order long form", "Purchase_Order_10442.pdf", datatypes.KindPurchaseOrder},
		{"po abbreviation", "PO_10442.pdf", datatypes.KindPurchaseOrder},
		{"quote", "quote_q-2211.pdf", datatypes.KindQuote},
		{"rfq", "RFQ_fixture_block.xlsx", datatypes.KindQuote},
		{"drawing", "bracket_drawing_revC.pdf", datatypes.KindDrawing},
		{"dwg abbreviation", "DWG-4471.pdf", datatypes.KindDrawing},
		{"inspection test plan", "Inspection_Test_Plan_final.docx", datatypes.KindInspectionTestPlan},
		{"itp abbreviation", "itp_housing.pdf", datatypes.KindInspectionTestPlan},
		{"customer spec wins over generic spec", "acme_customer_spec_004.pdf", datatypes.KindCustomerSpec},
		{"generic spec", "AMS_2750_spec.pdf", datatypes.KindGenericSpec},
		{"supplier quality manual", "Supplier_Quality_Manual_v3.pdf", datatypes.KindSupplierQualityManual},
		{"statement of work", "Statement_of_Work_phase1.docx", datatypes.KindStatementOfWork},
		{"sow abbreviation", "sow phase 2.docx", datatypes.KindStatementOfWork},
		{"meeting notes", "kickoff_meeting_notes.md", datatypes.KindMeetingNotes},
		{"lessons learned", "lessons_learned_2025.md", datatypes.KindLessonsLearned},
		{"email", "email_thread_delivery.txt", datatypes.KindEmail},
		{"unknown", "holiday_schedule.xlsx", datatypes.KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(DocumentDescriptor{Filename: tt.filename})
			if got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.filename, got, tt.want)
			}
		})
	}
}

func TestClassify_UsesLabelsAndTitle(t *testing.T) {
	doc := DocumentDescriptor{
		Filename: "scan0042.pdf",
		Labels:   []string{"purchase order"},
	}
	if got := Classify(doc); got != datatypes.KindPurchaseOrder {
		t.Errorf("Classify with label = %s, want %s", got, datatypes.KindPurchaseOrder)
	}

	doc = DocumentDescriptor{Filename: "scan0043.pdf", Title: "Bracket Drawing Rev D"}
	if got := Classify(doc); got != datatypes.KindDrawing {
		t.Errorf("Classify with title = %s, want %s", got, datatypes.KindDrawing)
	}
}

func TestBuild_Defaults(t *testing.T) {
	sources := Build([]DocumentDescriptor{
		{Filename: "bracket_drawing_revC.pdf"},
		{Filename: "quote_q-2211.pdf"},
		{Filename: "email_thread.txt"},
		{Filename: "mystery.bin"},
	}, nil)

	if len(sources) != 4 {
		t.Fatalf("Build returned %d sources, want 4", len(sources))
	}

	checks := []struct {
		idx       int
		kind      datatypes.SourceKind
		authority datatypes.Authority
		rank      int
	}{
		{0, datatypes.KindDrawing, datatypes.AuthorityMandatory, 1},
		{1, datatypes.KindQuote, datatypes.AuthorityConditional, 2},
		{2, datatypes.KindEmail, datatypes.AuthorityInternal, 20},
		{3, datatypes.KindOther, datatypes.AuthorityReference, 10},
	}
	for _, c := range checks {
		s := sources[c.idx]
		if s.Kind != c.kind || s.Authority != c.authority || s.PrecedenceRank != c.rank {
			t.Errorf("source %d = (%s, %s, %d), want (%s, %s, %d)",
				c.idx, s.Kind, s.Authority, s.PrecedenceRank, c.kind, c.authority, c.rank)
		}
		if s.ID == "" {
			t.Errorf("source %d missing id", c.idx)
		}
	}
}

func TestBuild_Overrides(t *testing.T) {
	overrides := map[string]Override{
		"quote_q-2211.pdf": {Precedence: "highest", Authority: "must"},
	}
	sources := Build([]DocumentDescriptor{{Filename: "Quote_Q-2211.pdf"}}, overrides)

	s := sources[0]
	if s.PrecedenceRank != 1 {
		t.Errorf("precedence = %d, want 1 (keyword highest)", s.PrecedenceRank)
	}
	if s.Authority != datatypes.AuthorityMandatory {
		t.Errorf("authority = %s, want mandatory (synonym must)", s.Authority)
	}
}

func TestBuild_InvalidOverrideFallsBack(t *testing.T) {
	overrides := map[string]Override{
		"bracket_drawing_revc.pdf": {Precedence: "urgent", Authority: "supreme"},
	}
	sources := Build([]DocumentDescriptor{{Filename: "bracket_drawing_revC.pdf"}}, overrides)

	s := sources[0]
	if s.PrecedenceRank != 1 || s.Authority != datatypes.AuthorityMandatory {
		t.Errorf("invalid override should keep defaults, got (%s, %d)", s.Authority, s.PrecedenceRank)
	}
}

func TestOverrideParsePrecedence(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"highest", 1, true},
		{"high", 2, true},
		{"medium", 5, true},
		{"low", 10, true},
		{"3", 3, true},
		{" 7 ", 7, true},
		{"HIGH", 2, true},
		{"", 0, false},
		{"urgent", 0, false},
	}
	for _, tt := range tests {
		got, ok := Override{Precedence: tt.in}.ParsePrecedence()
		if ok != tt.wantOK || (ok && got != tt.want) {
			t.Errorf("ParsePrecedence(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestOverrideParseAuthority(t *testing.T) {
	tests := []struct {
		in     string
		want   datatypes.Authority
		wantOK bool
	}{
		{"mandatory", datatypes.AuthorityMandatory, true},
		{"shall", datatypes.AuthorityMandatory, true},
		{"should", datatypes.AuthorityConditional, true},
		{"guidance", datatypes.AuthorityReference, true},
		{"info", datatypes.AuthorityReference, true},
		{"internal", datatypes.AuthorityInternal, true},
		{"Must", datatypes.AuthorityMandatory, true},
		{"", "", false},
		{"supreme", "", false},
	}
	for _, tt := range tests {
		got, ok := Override{Authority: tt.in}.ParseAuthority()
		if ok != tt.wantOK || (ok && got != tt.want) {
			t.Errorf("ParseAuthority(%q) = (%s, %v), want (%s, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
