// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agents implements the plan-drafting specialists and the gate
// evaluator. Each specialist owns a disjoint, statically declared subset
// of plan section keys and is a pure function of (plan snapshot,
// context pack, retrieval handle) → patch. A specialist that fails for
// any reason returns its blank patch, never an error — one specialist's
// failure must not abort the overall plan.
package agents

import (
	"fmt"

	"github.com/AleutianAI/fabplan/services/plan/datatypes"
)

// Specialist names. Also used as metric labels and checkpoint tags.
const (
	SpecialistQuality     = "quality"
	SpecialistPurchasing  = "purchasing"
	SpecialistScheduling  = "scheduling"
	SpecialistEngineering = "engineering"
	GateName              = "gate"
)

// sectionOwnership is the static write-ownership table. A specialist may
// only mutate the plan sections listed against its name; the coordinator
// discards everything else.
//
// Thread Safety: Initialized once and never modified.
var sectionOwnership = map[string][]datatypes.SectionKey{
	SpecialistQuality:     {datatypes.SectionQualityPlan},
	SpecialistPurchasing:  {datatypes.SectionPurchasingPlan},
	SpecialistScheduling:  {datatypes.SectionReleasePlan, datatypes.SectionExecutionStrategy},
	SpecialistEngineering: {datatypes.SectionEngineeringInstructions},
}

// OwnedSections returns the section keys a specialist may write.
// Unknown names own nothing.
func OwnedSections(name string) []datatypes.SectionKey {
	return append([]datatypes.SectionKey(nil), sectionOwnership[name]...)
}

// Owns reports whether the named specialist may write the given section.
func Owns(name string, key datatypes.SectionKey) bool {
	for _, k := range sectionOwnership[name] {
		if k == key {
			return true
		}
	}
	return false
}

// VerifyOwnershipDisjoint checks that no plan section is owned by more
// than one specialist. Disjoint write sets are the property that makes
// concurrent specialist execution safe without locking.
func VerifyOwnershipDisjoint() error {
	owner := make(map[datatypes.SectionKey]string)
	for name, keys := range sectionOwnership {
		for _, key := range keys {
			if prev, taken := owner[key]; taken {
				return fmt.Errorf("section %s owned by both %s and %s", key, prev, name)
			}
			owner[key] = name
		}
	}
	return nil
}
