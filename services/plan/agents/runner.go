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
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/AleutianAI/fabplan/services/llm"
	"github.com/AleutianAI/fabplan/services/plan/datatypes"
	"github.com/AleutianAI/fabplan/services/plan/retry"
)

// defaultCallTimeout bounds each individual generation attempt. The
// retry layer may make several attempts within one Run.
const defaultCallTimeout = 90 * time.Second

// Runner is one plan-drafting specialist.
//
// Description:
//
//	All four specialists share this implementation, parameterized by
//	name, instructions, output schema, and owned section keys. Run is a
//	pure function of its inputs plus the external generation call; it
//	holds no mutable state between invocations.
//
// Thread Safety: Runner is safe for concurrent use after construction.
type Runner struct {
	name         string
	instructions string
	schemaName   string
	schema       json.RawMessage
	owned        []datatypes.SectionKey

	client      llm.GenerationClient
	retryCfg    retry.Config
	callTimeout time.Duration
}

// Name returns the specialist's name.
func (r *Runner) Name() string { return r.name }

// OwnedSections returns the section keys this specialist may write.
func (r *Runner) OwnedSections() []datatypes.SectionKey {
	return append([]datatypes.SectionKey(nil), r.owned...)
}

// WithRetry overrides the runner's retry policy. Returns the runner for
// chaining during construction.
func (r *Runner) WithRetry(cfg retry.Config) *Runner {
	r.retryCfg = cfg
	return r
}

// patchEnvelope is the structured output shape every specialist produces.
type patchEnvelope struct {
	Patch     map[string]json.RawMessage `json:"patch"`
	Tasks     []datatypes.Task           `json:"tasks"`
	Conflicts []datatypes.Conflict       `json:"conflicts"`
}

// Run drafts this specialist's sections.
//
// Description:
//
//	Builds the prompt from the plan snapshot and context pack, calls the
//	generation service under the retry policy, and validates the returned
//	structure. Any failure — transport, retry exhaustion, undecodable
//	output, or owned sections that do not unmarshal into their section
//	types — degrades to the blank patch. Run never returns an error; the
//	coordinator always receives a well-typed patch.
//
// Inputs:
//   - ctx: Cancellation for the generation call. Not used to propagate
//     cancellation between specialists.
//   - snapshot: Deep copy of the current plan; read-only here.
//   - pack: The frozen context pack.
//   - handle: Optional retrieval handle for grounding. Empty disables
//     retrieval.
//
// Thread Safety: Safe for concurrent use.
func (r *Runner) Run(ctx context.Context, snapshot datatypes.Plan, pack datatypes.ContextPack, handle string) datatypes.AgentPatch {
	prompt := buildPrompt(r.name, snapshot, pack, r.owned)

	var raw json.RawMessage
	err := retry.Do(ctx, r.name, r.retryCfg, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		defer cancel()

		var callErr error
		raw, callErr = r.client.GenerateStructured(callCtx, llm.StructuredRequest{
			Instructions:    r.instructions,
			Prompt:          prompt,
			SchemaName:      r.schemaName,
			Schema:          r.schema,
			RetrievalHandle: handle,
		})
		return callErr
	})
	if err != nil {
		slog.Warn("specialist degraded to blank patch",
			slog.String("specialist", r.name),
			slog.String("error", err.Error()),
		)
		return r.BlankPatch()
	}

	var envelope patchEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		slog.Warn("specialist output failed structural validation",
			slog.String("specialist", r.name),
			slog.String("error", err.Error()),
		)
		return r.BlankPatch()
	}

	patch := make(map[datatypes.SectionKey]json.RawMessage, len(envelope.Patch))
	for key, sectionRaw := range envelope.Patch {
		sectionKey := datatypes.SectionKey(key)
		// Each owned section must unmarshal into its typed shape; one
		// malformed section invalidates the whole patch rather than
		// applying a partial draft.
		if Owns(r.name, sectionKey) {
			var scratch datatypes.Plan
			if err := scratch.ApplySection(sectionKey, sectionRaw); err != nil {
				slog.Warn("specialist section failed validation",
					slog.String("specialist", r.name),
					slog.String("section", key),
					slog.String("error", err.Error()),
				)
				return r.BlankPatch()
			}
		}
		patch[sectionKey] = sectionRaw
	}

	return datatypes.AgentPatch{
		Specialist: r.name,
		Patch:      patch,
		Tasks:      envelope.Tasks,
		Conflicts:  envelope.Conflicts,
	}
}

// BlankPatch returns a structurally valid, empty patch for this
// specialist's owned sections: the fallback when generation fails.
func (r *Runner) BlankPatch() datatypes.AgentPatch {
	patch := make(map[datatypes.SectionKey]json.RawMessage, len(r.owned))
	for _, key := range r.owned {
		patch[key] = json.RawMessage("{}")
	}
	return datatypes.AgentPatch{
		Specialist: r.name,
		Patch:      patch,
		Degraded:   true,
	}
}
