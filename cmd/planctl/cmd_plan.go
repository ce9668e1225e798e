// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/fabplan/services/llm"
	"github.com/AleutianAI/fabplan/services/plan/agents"
	"github.com/AleutianAI/fabplan/services/plan/checkpoint"
	"github.com/AleutianAI/fabplan/services/plan/coordinator"
	"github.com/AleutianAI/fabplan/services/plan/datatypes"
	"github.com/AleutianAI/fabplan/services/plan/registry"
	"github.com/AleutianAI/fabplan/services/plan/resolve"
)

// buildSources classifies the positional file arguments using any
// overrides from fabplan.config.yaml.
func buildSources(args []string) []datatypes.Source {
	cfg, err := registry.LoadConfig(projectRoot)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	docs := make([]registry.DocumentDescriptor, 0, len(args))
	for _, name := range args {
		docs = append(docs, registry.DocumentDescriptor{Filename: name})
	}
	return registry.Build(docs, cfg.SourceOverrides)
}

// loadFacts reads the --facts JSON file. No file means no facts, which
// is still a runnable (if empty) pipeline.
func loadFacts() []datatypes.Fact {
	if factsPath == "" {
		return nil
	}
	data, err := os.ReadFile(factsPath)
	if err != nil {
		log.Fatalf("Reading facts: %v", err)
	}
	var facts []datatypes.Fact
	if err := json.Unmarshal(data, &facts); err != nil {
		log.Fatalf("Parsing facts: %v", err)
	}
	return facts
}

// parseProject turns repeated key=value flags into the project context.
func parseProject() map[string]string {
	if len(projectPairs) == 0 {
		return nil
	}
	project := make(map[string]string, len(projectPairs))
	for _, pair := range projectPairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			log.Fatalf("Invalid --project value %q, want key=value", pair)
		}
		project[key] = value
	}
	return project
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("Encoding output: %v", err)
	}
	fmt.Println(string(out))
}

func runClassifyCommand(_ *cobra.Command, args []string) {
	printJSON(buildSources(args))
}

func runResolveCommand(_ *cobra.Command, args []string) {
	pack := resolve.Resolve(buildSources(args), loadFacts(), parseProject())
	printJSON(pack)
}

func runDraftCommand(_ *cobra.Command, args []string) {
	client, err := llm.NewGenerationClient()
	if err != nil {
		log.Fatalf("Generation client: %v (set FABPLAN_LLM_API_KEY)", err)
	}

	var store checkpoint.Store
	var badgerStore *checkpoint.BadgerStore
	if checkpointDir != "" {
		badgerStore, err = checkpoint.Open(checkpointDir)
		if err != nil {
			log.Fatalf("Checkpoint store: %v", err)
		}
		defer badgerStore.Close()
		store = badgerStore
	}

	pack := resolve.Resolve(buildSources(args), loadFacts(), parseProject())

	coord := coordinator.New(agents.DefaultSpecialists(client), agents.NewGate(client), store)
	result, err := coord.Run(context.Background(), coordinator.Request{
		SessionID:       uuid.NewString(),
		Pack:            &pack,
		RetrievalHandle: retrievalID,
	})
	if err != nil {
		log.Fatalf("Draft: %v", err)
	}

	printJSON(result)
	if result.Gate.Blocked {
		fmt.Fprintln(os.Stderr, "Gate: plan is BLOCKED")
		os.Exit(2)
	}
}

func runCheckpointsCommand(_ *cobra.Command, args []string) {
	if checkpointDir == "" {
		log.Fatal("--checkpoint-dir is required")
	}
	store, err := checkpoint.Open(checkpointDir)
	if err != nil {
		log.Fatalf("Checkpoint store: %v", err)
	}
	defer store.Close()

	recs, err := store.List(context.Background(), args[0])
	if err != nil {
		log.Fatalf("Listing checkpoints: %v", err)
	}
	if len(recs) == 0 {
		fmt.Println("No checkpoints recorded for session", args[0])
		return
	}
	printJSON(recs)
}
