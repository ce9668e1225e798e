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

import (
	"encoding/json"
	"testing"
)

func TestPlanNormalize_FillsAllSections(t *testing.T) {
	var p Plan
	p.Normalize()

	for _, key := range AllSectionKeys {
		raw, err := p.Section(key)
		if err != nil {
			t.Fatalf("Section(%s): %v", key, err)
		}
		if string(raw) == "null" {
			t.Errorf("section %s should be non-nil after Normalize", key)
		}
	}
}

func TestPlanNormalize_PreservesExistingContent(t *testing.T) {
	p := Plan{Quality: &QualityPlan{Notes: "keep me"}}
	p.Normalize()

	if p.Quality.Notes != "keep me" {
		t.Error("Normalize must not overwrite populated sections")
	}
}

func TestPlanApplySection(t *testing.T) {
	var p Plan
	p.Normalize()

	raw := json.RawMessage(`{"notes":"ndt per drawing","certifications":["AS9100"]}`)
	if err := p.ApplySection(SectionQualityPlan, raw); err != nil {
		t.Fatalf("ApplySection: %v", err)
	}
	if p.Quality.Notes != "ndt per drawing" {
		t.Errorf("quality notes = %q, want %q", p.Quality.Notes, "ndt per drawing")
	}
	if len(p.Quality.Certifications) != 1 || p.Quality.Certifications[0] != "AS9100" {
		t.Errorf("certifications = %v", p.Quality.Certifications)
	}
}

func TestPlanApplySection_UnknownKey(t *testing.T) {
	var p Plan
	if err := p.ApplySection("not_a_section", json.RawMessage(`{}`)); err == nil {
		t.Error("expected error for unknown section key")
	}
}

func TestPlanApplySection_InvalidPayloadLeavesPlanUnchanged(t *testing.T) {
	p := Plan{Purchasing: &PurchasingPlan{Notes: "original"}}

	err := p.ApplySection(SectionPurchasingPlan, json.RawMessage(`{"items": "not an array"}`))
	if err == nil {
		t.Fatal("expected unmarshal error")
	}
	if p.Purchasing.Notes != "original" {
		t.Error("failed apply must leave the section unchanged")
	}
}

func TestPlanSnapshot_IsDeepCopy(t *testing.T) {
	p := Plan{Risks: &Risks{Items: []Risk{{Description: "long lead castings"}}}}
	p.Normalize()

	snap := p.Snapshot()
	snap.Risks.Items[0].Description = "mutated"

	if p.Risks.Items[0].Description != "long lead castings" {
		t.Error("mutating a snapshot must not affect the original plan")
	}
}
