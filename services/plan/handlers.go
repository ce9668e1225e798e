// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package plan is the HTTP surface of the planning engine. It wires
// the source registry, fact resolution, the patch coordinator, and the
// session arena behind a thin set of Gin handlers; all planning
// semantics live in the subpackages.
package plan

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/fabplan/services/llm"
	"github.com/AleutianAI/fabplan/services/plan/agents"
	"github.com/AleutianAI/fabplan/services/plan/checkpoint"
	"github.com/AleutianAI/fabplan/services/plan/collab"
	"github.com/AleutianAI/fabplan/services/plan/coordinator"
	"github.com/AleutianAI/fabplan/services/plan/datatypes"
	"github.com/AleutianAI/fabplan/services/plan/registry"
	"github.com/AleutianAI/fabplan/services/plan/resolve"
	"github.com/AleutianAI/fabplan/services/plan/session"
)

// ErrorResponse is the JSON error body for all plan endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HandlersConfig carries the collaborators the handlers need. Client is
// required; nil collaborators fall back to the logging implementations,
// and a nil Checkpoints disables checkpointing.
type HandlersConfig struct {
	Client      llm.GenerationClient
	Checkpoints checkpoint.Store
	Overrides   map[string]registry.Override
	Tasks       collab.TaskPublisher
	Docs        collab.DocPublisher
}

// Handlers holds the planning endpoints' shared state.
//
// Thread Safety: safe for concurrent use; per-session mutation is
// serialized by the arena.
type Handlers struct {
	arena       *session.Arena
	client      llm.GenerationClient
	checkpoints checkpoint.Store
	overrides   map[string]registry.Override
	tasks       collab.TaskPublisher
	docs        collab.DocPublisher
}

// NewHandlers creates the handlers instance.
func NewHandlers(cfg HandlersConfig) *Handlers {
	h := &Handlers{
		arena:       session.NewArena(),
		client:      cfg.Client,
		checkpoints: cfg.Checkpoints,
		overrides:   cfg.Overrides,
		tasks:       cfg.Tasks,
		docs:        cfg.Docs,
	}
	if h.tasks == nil {
		h.tasks = collab.LoggingTaskPublisher{}
	}
	if h.docs == nil {
		h.docs = collab.LoggingDocPublisher{}
	}
	return h
}

// getOrCreateRequestID returns the inbound X-Request-ID or mints one.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// CreateSessionRequest starts a planning session from a document set.
// Facts are supplied by the caller (typically the ingestion pipeline);
// their statuses are recomputed here, so callers may send them unset.
type CreateSessionRequest struct {
	Project         map[string]string             `json:"project,omitempty"`
	Documents       []registry.DocumentDescriptor `json:"documents"`
	Facts           []datatypes.Fact              `json:"facts,omitempty"`
	RetrievalHandle string                        `json:"retrieval_handle,omitempty"`
}

// HandleCreateSession handles POST /v1/plan/sessions.
//
// Description:
//
//	Classifies the submitted documents into a source registry, resolves
//	the supplied facts against it, and stores the frozen ContextPack in
//	a new session. The session id in the response keys every subsequent
//	call.
//
// Response:
//
//	201 Created: the new session
//	400 Bad Request: malformed body
func (h *Handlers) HandleCreateSession(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleCreateSession")

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "BAD_REQUEST",
		})
		return
	}

	sources := registry.Build(req.Documents, h.overrides)
	pack := resolve.Resolve(sources, req.Facts, req.Project)

	s := h.arena.Create(req.Project, req.RetrievalHandle)
	s, err := h.arena.Update(s.ID, func(live *session.Session) {
		live.Pack = &pack
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "INTERNAL"})
		return
	}

	logger.Info("Planning session created",
		slog.String("session_id", s.ID),
		slog.Int("documents", len(req.Documents)),
		slog.Int("facts", len(pack.Facts)),
	)
	c.JSON(http.StatusCreated, s)
}

// HandleGetSession handles GET /v1/plan/sessions/:id.
func (h *Handlers) HandleGetSession(c *gin.Context) {
	s, err := h.arena.Get(c.Param("id"))
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found", Code: "NOT_FOUND"})
		return
	}
	c.JSON(http.StatusOK, s)
}

// HandleDraft handles POST /v1/plan/sessions/:id/draft.
//
// Description:
//
//	Runs the full specialist roster and the gate against the session's
//	context pack, merges the results into the session, and publishes any
//	newly suggested tasks. Draft is re-runnable: task fingerprints from
//	prior runs are honored, so re-drafting does not resubmit tasks.
//
// Response:
//
//	200 OK: the drafting result (plan, tasks, conflicts, gate)
//	404 Not Found: unknown session
func (h *Handlers) HandleDraft(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDraft")

	s, err := h.arena.Get(c.Param("id"))
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found", Code: "NOT_FOUND"})
		return
	}

	coord := coordinator.New(agents.DefaultSpecialists(h.client), agents.NewGate(h.client), h.checkpoints)
	result, err := coord.Run(c.Request.Context(), coordinator.Request{
		SessionID:       s.ID,
		Plan:            s.Plan,
		Pack:            s.Pack,
		RetrievalHandle: s.RetrievalHandle,
	})
	if err != nil {
		logger.Error("Drafting run failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "DRAFT_FAILED"})
		return
	}

	updated, err := h.arena.Update(s.ID, func(live *session.Session) {
		live.Plan = result.Plan
		live.Tasks = append(live.Tasks, result.Tasks...)
		live.Conflicts = append(live.Conflicts, result.Conflicts...)
		live.Gate = &result.Gate
		live.Degraded = result.Degraded
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "INTERNAL"})
		return
	}

	if len(result.Tasks) > 0 {
		if err := h.tasks.PublishTasks(c.Request.Context(), s.ID, result.Tasks); err != nil {
			// Task publishing is best-effort; the tasks stay on the
			// session for a later retry.
			logger.Warn("Task publishing failed", slog.String("error", err.Error()))
		}
	}

	logger.Info("Draft complete",
		slog.String("session_id", s.ID),
		slog.Int("new_tasks", len(result.Tasks)),
		slog.Bool("gate_blocked", result.Gate.Blocked),
	)
	c.JSON(http.StatusOK, gin.H{
		"session_id": updated.ID,
		"plan":       updated.Plan,
		"tasks":      result.Tasks,
		"conflicts":  result.Conflicts,
		"gate":       result.Gate,
		"degraded":   result.Degraded,
		"state":      result.State,
	})
}

// PublishRequest names the document to publish.
type PublishRequest struct {
	Title string `json:"title"`
}

// HandlePublish handles POST /v1/plan/sessions/:id/publish.
//
// Description:
//
//	Sends the session's current plan to the documentation publisher. A
//	gate-blocked plan may still be published; the caller sees the gate
//	verdict on the session and decides.
func (h *Handlers) HandlePublish(c *gin.Context) {
	s, err := h.arena.Get(c.Param("id"))
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found", Code: "NOT_FOUND"})
		return
	}

	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Title == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "title is required", Code: "BAD_REQUEST"})
		return
	}

	pageID, err := h.docs.PublishDoc(c.Request.Context(), req.Title, s.Plan)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error(), Code: "PUBLISH_FAILED"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"page_id": pageID})
}

// HandleListCheckpoints handles GET /v1/plan/sessions/:id/checkpoints.
func (h *Handlers) HandleListCheckpoints(c *gin.Context) {
	if h.checkpoints == nil {
		c.JSON(http.StatusOK, gin.H{"checkpoints": []checkpoint.Record{}})
		return
	}
	recs, err := h.checkpoints.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "INTERNAL"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkpoints": recs})
}

// HandleHealth handles GET /v1/plan/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": h.arena.Len(),
	})
}
