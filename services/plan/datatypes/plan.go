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
	"fmt"
)

// SectionKey names one section of the Plan document. Specialists declare
// ownership in terms of section keys; the coordinator refuses writes to
// keys outside a specialist's declared set.
type SectionKey string

const (
	SectionQualityPlan             SectionKey = "quality_plan"
	SectionPurchasingPlan          SectionKey = "purchasing_plan"
	SectionReleasePlan             SectionKey = "release_plan"
	SectionExecutionStrategy       SectionKey = "execution_strategy"
	SectionEngineeringInstructions SectionKey = "engineering_instructions"
	SectionRequirements            SectionKey = "requirements"
	SectionRisks                   SectionKey = "risks"
)

// AllSectionKeys lists every Plan section in document order.
var AllSectionKeys = []SectionKey{
	SectionQualityPlan,
	SectionPurchasingPlan,
	SectionReleasePlan,
	SectionExecutionStrategy,
	SectionEngineeringInstructions,
	SectionRequirements,
	SectionRisks,
}

// InspectionPoint is one quality inspection step.
type InspectionPoint struct {
	Operation  string `json:"operation"`
	Method     string `json:"method,omitempty"`
	Acceptance string `json:"acceptance,omitempty"`
	HoldPoint  bool   `json:"hold_point,omitempty"`
}

// QualityPlan describes inspection and documentation requirements.
type QualityPlan struct {
	InspectionPoints []InspectionPoint `json:"inspection_points,omitempty"`
	Certifications   []string          `json:"certifications,omitempty"`
	Documentation    []string          `json:"documentation,omitempty"`
	Notes            string            `json:"notes,omitempty"`
}

// PurchaseItem is one material or service to buy.
type PurchaseItem struct {
	Description  string `json:"description"`
	Supplier     string `json:"supplier,omitempty"`
	LeadTimeDays int    `json:"lead_time_days,omitempty"`
	LongLead     bool   `json:"long_lead,omitempty"`
}

// PurchasingPlan describes material and outside-service procurement.
type PurchasingPlan struct {
	Items    []PurchaseItem `json:"items,omitempty"`
	Outside  []string       `json:"outside_processes,omitempty"`
	Notes    string         `json:"notes,omitempty"`
	Priority string         `json:"priority,omitempty"`
}

// Milestone is one dated step in the release plan.
type Milestone struct {
	Name    string `json:"name"`
	DueDate string `json:"due_date,omitempty"`
	Gate    string `json:"gate,omitempty"`
}

// ReleasePlan is the dated sequence of production milestones.
type ReleasePlan struct {
	Milestones []Milestone `json:"milestones,omitempty"`
	Notes      string      `json:"notes,omitempty"`
}

// ExecutionStrategy captures routing and sequencing decisions.
type ExecutionStrategy struct {
	Approach     string   `json:"approach,omitempty"`
	Routing      []string `json:"routing,omitempty"`
	Constraints  []string `json:"constraints,omitempty"`
	Alternatives []string `json:"alternatives,omitempty"`
}

// WorkInstruction is one engineering instruction for the floor.
type WorkInstruction struct {
	Step   string `json:"step"`
	Detail string `json:"detail,omitempty"`
}

// EngineeringInstructions holds floor-facing technical direction.
type EngineeringInstructions struct {
	Instructions []WorkInstruction `json:"instructions,omitempty"`
	Tooling      []string          `json:"tooling,omitempty"`
	Programs     []string          `json:"programs,omitempty"`
	Notes        string            `json:"notes,omitempty"`
}

// Requirement is one contractual or technical requirement surfaced from
// the canonical fact set.
type Requirement struct {
	Topic    string `json:"topic"`
	Text     string `json:"text"`
	SourceID string `json:"source_id,omitempty"`
}

// Requirements is the requirements section of the Plan.
type Requirements struct {
	Items []Requirement `json:"items,omitempty"`
}

// Risk is one identified risk with an optional mitigation.
type Risk struct {
	Description string `json:"description"`
	Severity    string `json:"severity,omitempty"`
	Mitigation  string `json:"mitigation,omitempty"`
}

// Risks is the risks section of the Plan.
type Risks struct {
	Items []Risk `json:"items,omitempty"`
}

// Plan is the structured manufacturing planning document.
//
// Description:
//
//	Sections are pointers so an absent section is distinguishable from an
//	empty one. Normalize fills absent sections with empty defaults, which
//	makes the coordinator's merge logic total. The Plan is mutated only
//	by the coordinator; specialists receive value snapshots.
type Plan struct {
	Quality      *QualityPlan             `json:"quality_plan,omitempty"`
	Purchasing   *PurchasingPlan          `json:"purchasing_plan,omitempty"`
	Release      *ReleasePlan             `json:"release_plan,omitempty"`
	Execution    *ExecutionStrategy       `json:"execution_strategy,omitempty"`
	Engineering  *EngineeringInstructions `json:"engineering_instructions,omitempty"`
	Requirements *Requirements            `json:"requirements,omitempty"`
	Risks        *Risks                   `json:"risks,omitempty"`
}

// Normalize fills every absent section with an empty default so that all
// section keys resolve to a valid sub-object.
func (p *Plan) Normalize() {
	if p.Quality == nil {
		p.Quality = &QualityPlan{}
	}
	if p.Purchasing == nil {
		p.Purchasing = &PurchasingPlan{}
	}
	if p.Release == nil {
		p.Release = &ReleasePlan{}
	}
	if p.Execution == nil {
		p.Execution = &ExecutionStrategy{}
	}
	if p.Engineering == nil {
		p.Engineering = &EngineeringInstructions{}
	}
	if p.Requirements == nil {
		p.Requirements = &Requirements{}
	}
	if p.Risks == nil {
		p.Risks = &Risks{}
	}
}

// Snapshot returns a deep copy of the plan for handing to a specialist.
//
// Description:
//
//	Round-trips through JSON. The section types contain only
//	JSON-serializable fields, so this is lossless; a marshal failure here
//	would indicate a programming error and panics accordingly.
func (p Plan) Snapshot() Plan {
	raw, err := json.Marshal(p)
	if err != nil {
		panic(fmt.Sprintf("datatypes: plan snapshot marshal: %v", err))
	}
	var out Plan
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("datatypes: plan snapshot unmarshal: %v", err))
	}
	return out
}

// ApplySection unmarshals raw JSON into the section named by key,
// replacing the current section value.
//
// Outputs:
//   - error: Non-nil if the key is unknown or the payload does not
//     unmarshal into the section's type. The plan is unchanged on error.
func (p *Plan) ApplySection(key SectionKey, raw json.RawMessage) error {
	switch key {
	case SectionQualityPlan:
		var s QualityPlan
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("section %s: %w", key, err)
		}
		p.Quality = &s
	case SectionPurchasingPlan:
		var s PurchasingPlan
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("section %s: %w", key, err)
		}
		p.Purchasing = &s
	case SectionReleasePlan:
		var s ReleasePlan
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("section %s: %w", key, err)
		}
		p.Release = &s
	case SectionExecutionStrategy:
		var s ExecutionStrategy
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("section %s: %w", key, err)
		}
		p.Execution = &s
	case SectionEngineeringInstructions:
		var s EngineeringInstructions
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("section %s: %w", key, err)
		}
		p.Engineering = &s
	case SectionRequirements:
		var s Requirements
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("section %s: %w", key, err)
		}
		p.Requirements = &s
	case SectionRisks:
		var s Risks
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("section %s: %w", key, err)
		}
		p.Risks = &s
	default:
		return fmt.Errorf("unknown plan section %q", key)
	}
	return nil
}

// Section returns the current value of the named section as JSON.
// Returns an error for unknown keys.
func (p Plan) Section(key SectionKey) (json.RawMessage, error) {
	var v any
	switch key {
	case SectionQualityPlan:
		v = p.Quality
	case SectionPurchasingPlan:
		v = p.Purchasing
	case SectionReleasePlan:
		v = p.Release
	case SectionExecutionStrategy:
		v = p.Execution
	case SectionEngineeringInstructions:
		v = p.Engineering
	case SectionRequirements:
		v = p.Requirements
	case SectionRisks:
		v = p.Risks
	default:
		return nil, fmt.Errorf("unknown plan section %q", key)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("section %s: %w", key, err)
	}
	return raw, nil
}
