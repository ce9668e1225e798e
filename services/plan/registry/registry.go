// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registry classifies ingested project documents into immutable
// Source records: a document kind, an authority tier, and a precedence
// rank that together decide which documents may override which during
// fact resolution.
package registry

import (
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/AleutianAI/fabplan/services/plan/datatypes"
)

// DocumentDescriptor describes one uploaded document or reference prior
// to classification.
type DocumentDescriptor struct {
	// Filename is the original filename; primary classification signal.
	Filename string `json:"filename"`

	// Title is an optional human-readable title; falls back to Filename.
	Title string `json:"title,omitempty"`

	// Labels are optional free-form tags supplied at upload time. They
	// participate in classification and are carried into Source.Scope.
	Labels []string `json:"labels,omitempty"`

	// AppliesIf optionally restricts the document to matching project
	// contexts (e.g., {"customer": "Acme"}).
	AppliesIf map[string]string `json:"applies_if,omitempty"`
}

// kindRule is one ordered keyword matcher. Rules are evaluated in slice
// order and the first match wins.
type kindRule struct {
	keywords []string
	kind     datatypes.SourceKind
}

// classificationRules is the ordered matcher chain, most specific first.
//
// IMPORTANT: Order matters. "purchase order" must be evaluated before the
// bare "po" abbreviation, and "proposal"/"quote" before "po" as well,
// because "po" is a substring of "proposal" and would otherwise
// misclassify every proposal as a purchase order.
//
// Thread Safety: Initialized once and never modified.
var classificationRules = []kindRule{
	{[]string{"inspection test plan", "itp"}, datatypes.KindInspectionTestPlan},
	{[]string{"supplier quality manual", "sqm", "supplier quality"}, datatypes.KindSupplierQualityManual},
	{[]string{"statement of work", "sow"}, datatypes.KindStatementOfWork},
	{[]string{"lessons learned", "lesson learned"}, datatypes.KindLessonsLearned},
	{[]string{"meeting notes", "meeting minutes", "minutes"}, datatypes.KindMeetingNotes},
	{[]string{"purchase order"}, datatypes.KindPurchaseOrder},
	{[]string{"customer spec", "customer specification"}, datatypes.KindCustomerSpec},
	{[]string{"proposal", "quote", "quotation", "rfq"}, datatypes.KindQuote},
	{[]string{"drawing", "dwg", "blueprint", "rev "}, datatypes.KindDrawing},
	{[]string{"po"}, datatypes.KindPurchaseOrder},
	{[]string{"spec", "specification", "standard", "ams", "astm", "mil-"}, datatypes.KindGenericSpec},
	{[]string{"email", "e-mail", "correspondence"}, datatypes.KindEmail},
}

// kindDefault is the default authority tier and precedence rank assigned
// to a classified kind before user overrides.
type kindDefault struct {
	authority datatypes.Authority
	rank      int
}

// kindDefaults maps every document kind to its default authority and
// precedence rank. Lower rank is stronger.
var kindDefaults = map[datatypes.SourceKind]kindDefault{
	datatypes.KindDrawing:               {datatypes.AuthorityMandatory, 1},
	datatypes.KindPurchaseOrder:         {datatypes.AuthorityMandatory, 1},
	datatypes.KindQuote:                 {datatypes.AuthorityConditional, 2},
	datatypes.KindInspectionTestPlan:    {datatypes.AuthorityMandatory, 2},
	datatypes.KindStatementOfWork:       {datatypes.AuthorityMandatory, 2},
	datatypes.KindCustomerSpec:          {datatypes.AuthorityMandatory, 3},
	datatypes.KindSupplierQualityManual: {datatypes.AuthorityConditional, 4},
	datatypes.KindGenericSpec:           {datatypes.AuthorityReference, 5},
	datatypes.KindMeetingNotes:          {datatypes.AuthorityMandatory, 6},
	datatypes.KindLessonsLearned:        {datatypes.AuthorityInternal, 6},
	datatypes.KindEmail:                 {datatypes.AuthorityInternal, 20},
	datatypes.KindOther:                 {datatypes.AuthorityReference, 10},
}

// Classify determines the document kind for a descriptor.
//
// Description:
//
//	Normalizes the filename, title, and labels (underscores to spaces,
//	lowercased) and walks the ordered rule chain; the first rule with a
//	matching keyword wins. Documents matching no rule fall into the
//	"other" bucket rather than failing ingestion.
//
// Thread Safety: Safe for concurrent use (pure function).
func Classify(doc DocumentDescriptor) datatypes.SourceKind {
	text := normalizeDescriptor(doc)
	for _, rule := range classificationRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.kind
			}
		}
	}
	return datatypes.KindOther
}

// normalizeDescriptor builds the lowercased match text from filename,
// title, and labels with underscores replaced by spaces.
func normalizeDescriptor(doc DocumentDescriptor) string {
	parts := []string{doc.Filename, doc.Title}
	parts = append(parts, doc.Labels...)
	joined := strings.Join(parts, " ")
	joined = strings.ReplaceAll(joined, "_", " ")
	return strings.ToLower(joined)
}

// Build classifies each descriptor into an immutable Source record.
//
// Description:
//
//	Applies the ordered keyword classification, looks up the kind's
//	default authority and precedence rank, then applies any per-file
//	user override (keyed by lowercased filename). Invalid override values
//	fall back to the computed default and are logged, never surfaced as
//	errors — a bad override must not abort ingestion.
//
// Inputs:
//   - docs: Document descriptors to classify.
//   - overrides: Optional per-file overrides keyed by lowercased filename.
//     May be nil.
//
// Outputs:
//   - []datatypes.Source: One Source per descriptor, in input order, each
//     with a stable uuid-derived ID.
//
// Thread Safety: Safe for concurrent use.
func Build(docs []DocumentDescriptor, overrides map[string]Override) []datatypes.Source {
	sources := make([]datatypes.Source, 0, len(docs))
	for _, doc := range docs {
		kind := Classify(doc)
		def := kindDefaults[kind]

		authority := def.authority
		rank := def.rank

		if ov, ok := overrides[strings.ToLower(doc.Filename)]; ok {
			if a, ok := ov.ParseAuthority(); ok {
				authority = a
			} else if ov.Authority != "" {
				slog.Warn("registry: invalid authority override, keeping default",
					slog.String("file", doc.Filename),
					slog.String("override", ov.Authority),
					slog.String("default", string(def.authority)),
				)
			}
			if r, ok := ov.ParsePrecedence(); ok {
				rank = r
			} else if ov.Precedence != "" {
				slog.Warn("registry: invalid precedence override, keeping default",
					slog.String("file", doc.Filename),
					slog.String("override", ov.Precedence),
					slog.Int("default", def.rank),
				)
			}
		}

		title := doc.Title
		if title == "" {
			title = doc.Filename
		}

		sources = append(sources, datatypes.Source{
			ID:             uuid.NewString(),
			Title:          title,
			Kind:           kind,
			Authority:      authority,
			PrecedenceRank: rank,
			Scope:          append([]string(nil), doc.Labels...),
			AppliesIf:      doc.AppliesIf,
		})
	}

	slog.Debug("registry: built source registry", slog.Int("sources", len(sources)))
	return sources
}
