// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command planctl is the one-shot CLI for the planning engine.
//
// It runs the same classification, resolution, and drafting pipeline as
// the fabplan server, but against local files and without holding a
// session open.
//
// Usage:
//
//	planctl classify drawing_rev_c.pdf supplier_quote.pdf
//	planctl resolve --facts facts.json --project customer=Acme doc1.pdf doc2.pdf
//	planctl draft --facts facts.json --checkpoint-dir ./ckpt doc1.pdf doc2.pdf
//	planctl checkpoints --checkpoint-dir ./ckpt <session-id>
package main

import (
	"log"

	"github.com/spf13/cobra"
)

// Shared flag values.
var (
	factsPath     string
	projectPairs  []string
	projectRoot   string
	checkpointDir string
	retrievalID   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "planctl",
		Short: "Draft manufacturing planning documents from the command line",
	}
	rootCmd.PersistentFlags().StringVar(&projectRoot, "project-root", ".", "Directory containing fabplan.config.yaml")

	classifyCmd := &cobra.Command{
		Use:   "classify <files...>",
		Short: "Classify documents into the source registry",
		Args:  cobra.MinimumNArgs(1),
		Run:   runClassifyCommand,
	}

	resolveCmd := &cobra.Command{
		Use:   "resolve <files...>",
		Short: "Resolve facts against the classified sources",
		Args:  cobra.MinimumNArgs(1),
		Run:   runResolveCommand,
	}
	resolveCmd.Flags().StringVar(&factsPath, "facts", "", "JSON file with the extracted facts")
	resolveCmd.Flags().StringArrayVar(&projectPairs, "project", nil, "Project context as key=value (repeatable)")

	draftCmd := &cobra.Command{
		Use:   "draft <files...>",
		Short: "Run the full specialist roster and gate, print the plan",
		Args:  cobra.MinimumNArgs(1),
		Run:   runDraftCommand,
	}
	draftCmd.Flags().StringVar(&factsPath, "facts", "", "JSON file with the extracted facts")
	draftCmd.Flags().StringArrayVar(&projectPairs, "project", nil, "Project context as key=value (repeatable)")
	draftCmd.Flags().StringVar(&checkpointDir, "checkpoint-dir", "", "Directory for the checkpoint store")
	draftCmd.Flags().StringVar(&retrievalID, "retrieval-handle", "", "Vector store handle for grounded generation")

	checkpointsCmd := &cobra.Command{
		Use:   "checkpoints <session-id>",
		Short: "Dump the checkpoint records of a session",
		Args:  cobra.ExactArgs(1),
		Run:   runCheckpointsCommand,
	}
	checkpointsCmd.Flags().StringVar(&checkpointDir, "checkpoint-dir", "", "Directory for the checkpoint store")

	rootCmd.AddCommand(classifyCmd, resolveCmd, draftCmd, checkpointsCmd)
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
