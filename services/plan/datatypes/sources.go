// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the shared data model for the FabPlan planning
// engine: sources and their authority tiers, factual claims and their
// resolution statuses, the frozen ContextPack consumed by specialists, the
// structured Plan document, specialist patches, and follow-up tasks.
//
// Types in this package carry no behavior beyond construction, validation,
// and derived values (fingerprints, section lookups). All mutation of Facts
// is owned by the resolve package; all mutation of Plans is owned by the
// coordinator package.
//
// Thread Safety:
//
//	All types are plain value types. A ContextPack is treated as read-only
//	after resolution and is safe for concurrent reads.
package datatypes

// SourceKind is the closed set of document categories the registry can
// assign to an ingested document.
type SourceKind string

const (
	KindDrawing               SourceKind = "drawing"
	KindPurchaseOrder         SourceKind = "purchase-order"
	KindQuote                 SourceKind = "quote"
	KindInspectionTestPlan    SourceKind = "inspection-test-plan"
	KindCustomerSpec          SourceKind = "customer-spec"
	KindGenericSpec           SourceKind = "generic-spec"
	KindSupplierQualityManual SourceKind = "supplier-quality-manual"
	KindEmail                 SourceKind = "email"
	KindLessonsLearned        SourceKind = "lessons-learned"
	KindStatementOfWork       SourceKind = "statement-of-work"
	KindMeetingNotes          SourceKind = "meeting-notes"
	KindOther                 SourceKind = "other"
)

// Authority is the coarse tier that decides which sources may ever become
// canonical for a topic. Mandatory and conditional sources are
// canonical-eligible; reference and internal sources are visible but
// non-authoritative unless nothing stronger exists.
type Authority string

const (
	AuthorityMandatory   Authority = "mandatory"
	AuthorityConditional Authority = "conditional"
	AuthorityReference   Authority = "reference"
	AuthorityInternal    Authority = "internal"
)

// CanonicalEligible reports whether a source of this authority tier may be
// promoted to canonical when competing claims exist.
func (a Authority) CanonicalEligible() bool {
	return a == AuthorityMandatory || a == AuthorityConditional
}

// Valid reports whether the authority is one of the four canonical values.
func (a Authority) Valid() bool {
	switch a {
	case AuthorityMandatory, AuthorityConditional, AuthorityReference, AuthorityInternal:
		return true
	}
	return false
}

// Source is the registry record for one ingested project document.
//
// Description:
//
//	Created exactly once per document at registry build time and immutable
//	afterward. PrecedenceRank is the fine-grained tie-breaker within an
//	authority tier: lower rank overrides higher rank.
//
// Fields:
//   - ID: Stable identifier assigned at registry build time.
//   - Title: Human-readable title, usually the filename.
//   - Kind: Classified document category.
//   - Authority: Coarse authority tier.
//   - PrecedenceRank: Integer precedence; lower is stronger.
//   - Scope: Free-form labels restricting where the source applies.
//   - AppliesIf: Optional key→value filter matched against project context.
type Source struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Kind           SourceKind        `json:"kind"`
	Authority      Authority         `json:"authority"`
	PrecedenceRank int               `json:"precedence_rank"`
	Scope          []string          `json:"scope,omitempty"`
	AppliesIf      map[string]string `json:"applies_if,omitempty"`
}

// Citation ties a Fact back to the source passage it was extracted from.
// A Citation is always attached to a Fact, never standalone.
type Citation struct {
	SourceID   string `json:"source_id"`
	PageRef    string `json:"page_ref,omitempty"`
	PassageSHA string `json:"passage_sha,omitempty"`
}
