// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command fabplan starts the planning engine API server.
//
// The server drafts manufacturing planning documents from a registry of
// classified source documents and a resolved fact set, using four
// concurrent drafting specialists and a release gate.
//
// Usage:
//
//	go run ./cmd/fabplan
//	go run ./cmd/fabplan -port 9090 -checkpoint-dir /var/lib/fabplan
//
// Environment:
//
//	FABPLAN_LLM_API_KEY  - generation service API key (required)
//	FABPLAN_LLM_MODEL    - model name (default gpt-4o-mini)
//	FABPLAN_LLM_BASE_URL - generation endpoint override
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/plan/health
//
//	# Create a session
//	curl -X POST http://localhost:8080/v1/plan/sessions \
//	  -H "Content-Type: application/json" \
//	  -d '{"project": {"customer": "Acme"}, "documents": [{"filename": "bracket_drawing_rev_c.pdf"}]}'
//
//	# Draft the plan
//	curl -X POST http://localhost:8080/v1/plan/sessions/<id>/draft
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/AleutianAI/fabplan/services/llm"
	"github.com/AleutianAI/fabplan/services/plan"
	"github.com/AleutianAI/fabplan/services/plan/checkpoint"
	"github.com/AleutianAI/fabplan/services/plan/registry"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	checkpointDir := flag.String("checkpoint-dir", "", "Directory for the checkpoint store (empty = in-memory)")
	projectRoot := flag.String("project-root", ".", "Directory containing fabplan.config.yaml")
	flag.Parse()

	if *debug {
		gin.SetMode(gin.DebugMode)
		slog.SetLogLoggerLevel(slog.LevelDebug)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation so trace context flows from inbound
	// headers through every handler and generation call.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	client, err := llm.NewGenerationClient()
	if err != nil {
		slog.Error("Generation client unavailable", slog.String("error", err.Error()))
		fmt.Fprintln(os.Stderr, "Set FABPLAN_LLM_API_KEY to start the server.")
		os.Exit(1)
	}

	cfg, err := registry.LoadConfig(*projectRoot)
	if err != nil {
		slog.Error("Config load failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Checkpoint store: BadgerDB when a directory is configured,
	// in-memory otherwise. Degrades to in-memory if the directory
	// cannot be opened.
	var store checkpoint.Store = checkpoint.NewMemoryStore()
	var badgerStore *checkpoint.BadgerStore
	if *checkpointDir != "" {
		badgerStore, err = checkpoint.Open(*checkpointDir)
		if err != nil {
			slog.Warn("Checkpoint store unavailable, using in-memory checkpoints",
				slog.String("dir", *checkpointDir),
				slog.String("error", err.Error()),
			)
		} else {
			store = badgerStore
			slog.Info("Checkpoint store opened", slog.String("dir", *checkpointDir))
		}
	}

	handlers := plan.NewHandlers(plan.HandlersConfig{
		Client:      client,
		Checkpoints: store,
		Overrides:   cfg.SourceOverrides,
	})

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("fabplan"))
	if *debug {
		router.Use(gin.Logger())
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	plan.RegisterRoutes(v1, handlers)

	printBanner(*port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("Shutting down fabplan server")
		if badgerStore != nil {
			if err := badgerStore.Close(); err != nil {
				slog.Warn("Failed to close checkpoint store", slog.String("error", err.Error()))
			}
		}
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Starting fabplan server", slog.String("address", addr))
	if err := router.Run(addr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func printBanner(port int) {
	fmt.Printf(`
fabplan planning engine
  API:     http://localhost:%d/v1/plan
  Metrics: http://localhost:%d/metrics
`, port, port)
}
