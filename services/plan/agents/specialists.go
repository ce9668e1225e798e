// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agents

import (
	"github.com/AleutianAI/fabplan/services/llm"
	"github.com/AleutianAI/fabplan/services/plan/retry"
)

const qualityInstructions = `You are a manufacturing quality planner.
You draft the quality plan section of a manufacturing planning document:
inspection points, hold points, required certifications, and quality
documentation. Treat canonical facts as ground truth; drawings and
purchase orders outrank quotes and internal notes.`

const purchasingInstructions = `You are a manufacturing purchasing planner.
You draft the purchasing plan section: materials and services to buy,
suppliers, lead times, and long-lead flags. Treat canonical facts as
ground truth and surface a conflict when sources disagree on a
purchasable item.`

const schedulingInstructions = `You are a manufacturing scheduling planner.
You draft the release plan (dated milestones with gates) and the
execution strategy (routing, sequencing, constraints). Respect due dates
stated in canonical facts; flag a conflict when dates disagree.`

const engineeringInstructions = `You are a manufacturing engineering planner.
You draft the engineering instructions section: ordered work
instructions, tooling, and programs. Instructions must be executable on
the floor and grounded in canonical facts; do not invent tolerances.`

// newRunner assembles a specialist from the ownership table and shared
// plumbing.
func newRunner(name, instructions string, client llm.GenerationClient) *Runner {
	owned := OwnedSections(name)
	return &Runner{
		name:         name,
		instructions: instructions,
		schemaName:   name + "_patch",
		schema:       envelopeSchema(owned),
		owned:        owned,
		client:       client,
		retryCfg:     retry.DefaultConfig(),
		callTimeout:  defaultCallTimeout,
	}
}

// NewQuality creates the quality-plan specialist.
func NewQuality(client llm.GenerationClient) *Runner {
	return newRunner(SpecialistQuality, qualityInstructions, client)
}

// NewPurchasing creates the purchasing-plan specialist.
func NewPurchasing(client llm.GenerationClient) *Runner {
	return newRunner(SpecialistPurchasing, purchasingInstructions, client)
}

// NewScheduling creates the release-plan / execution-strategy specialist.
func NewScheduling(client llm.GenerationClient) *Runner {
	return newRunner(SpecialistScheduling, schedulingInstructions, client)
}

// NewEngineering creates the engineering-instructions specialist.
func NewEngineering(client llm.GenerationClient) *Runner {
	return newRunner(SpecialistEngineering, engineeringInstructions, client)
}

// DefaultSpecialists returns the four standard specialists in their
// conventional run order.
func DefaultSpecialists(client llm.GenerationClient) []*Runner {
	return []*Runner{
		NewQuality(client),
		NewPurchasing(client),
		NewScheduling(client),
		NewEngineering(client),
	}
}
