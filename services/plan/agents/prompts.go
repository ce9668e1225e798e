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
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/fabplan/services/plan/datatypes"
)

// buildPrompt renders the drafting prompt for one specialist: the project
// context, the precedence policy, canonical facts with citations, lower
// priority facts for visibility, and the specialist's current sections.
//
// Rendering is deterministic (sorted keys and topics) so identical inputs
// produce identical prompts — which keeps retries and reruns comparable
// in logs and traces.
func buildPrompt(name string, snapshot datatypes.Plan, pack datatypes.ContextPack, owned []datatypes.SectionKey) string {
	var b strings.Builder

	b.WriteString("## Project context\n")
	for _, key := range sortedKeys(pack.Project) {
		fmt.Fprintf(&b, "- %s: %s\n", key, pack.Project[key])
	}

	fmt.Fprintf(&b, "\n## Precedence policy\n%s\n", pack.Policy)

	b.WriteString("\n## Canonical facts (ground truth)\n")
	writeFacts(&b, pack, datatypes.StatusCanonical)

	b.WriteString("\n## Proposed facts (visible, non-authoritative)\n")
	writeFacts(&b, pack, datatypes.StatusProposed)

	fmt.Fprintf(&b, "\n## Your sections (%s)\n", name)
	for _, key := range owned {
		raw, err := snapshot.Section(key)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "### %s (current)\n%s\n", key, raw)
	}

	b.WriteString("\nDraft replacement content for your sections only. " +
		"Ground every statement in a canonical fact where one exists; " +
		"flag a conflict instead of silently choosing between disagreeing claims. " +
		"Suggest follow-up tasks for work the plan depends on but cannot resolve itself.\n")

	return b.String()
}

// writeFacts renders the pack's facts with the given status, grouped by
// topic in sorted order, each with its citation.
func writeFacts(b *strings.Builder, pack datatypes.ContextPack, status datatypes.FactStatus) {
	byTopic := make(map[string][]datatypes.Fact)
	for _, f := range pack.Facts {
		if f.Status == status {
			byTopic[f.Topic] = append(byTopic[f.Topic], f)
		}
	}
	if len(byTopic) == 0 {
		b.WriteString("(none)\n")
		return
	}

	topics := make([]string, 0, len(byTopic))
	for t := range byTopic {
		topics = append(topics, t)
	}
	sort.Strings(topics)

	for _, topic := range topics {
		for _, f := range byTopic[topic] {
			cite := f.Citation.SourceID
			if title, ok := sourceTitle(pack, f.Citation.SourceID); ok {
				cite = title
			}
			if f.Citation.PageRef != "" {
				cite += ", " + f.Citation.PageRef
			}
			fmt.Fprintf(b, "- [%s] %s (source: %s)\n", topic, f.Claim, cite)
		}
	}
}

func sourceTitle(pack datatypes.ContextPack, id string) (string, bool) {
	s, ok := pack.SourceByID(id)
	if !ok {
		return "", false
	}
	return s.Title, true
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sectionProperty returns the JSON-schema fragment for one plan section
// inside the patch envelope schema.
func sectionProperty(key datatypes.SectionKey) string {
	return fmt.Sprintf("%q: {\"type\": \"object\"}", key)
}

// envelopeSchema builds the structured-output schema for a specialist's
// patch envelope, restricting the patch object to the owned section keys.
func envelopeSchema(owned []datatypes.SectionKey) json.RawMessage {
	props := make([]string, 0, len(owned))
	for _, key := range owned {
		props = append(props, sectionProperty(key))
	}
	schema := fmt.Sprintf(`{
  "type": "object",
  "properties": {
    "patch": {
      "type": "object",
      "properties": {%s},
      "additionalProperties": false
    },
    "tasks": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "notes": {"type": "string"},
          "owner_hint": {"type": "string"},
          "due_date": {"type": "string"},
          "source_hint": {"type": "string"}
        },
        "required": ["name"]
      }
    },
    "conflicts": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "topic": {"type": "string"},
          "issue": {"type": "string"},
          "citation": {"type": "object"}
        },
        "required": ["topic", "issue"]
      }
    }
  },
  "required": ["patch"]
}`, strings.Join(props, ", "))
	return json.RawMessage(schema)
}
