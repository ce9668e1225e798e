// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session holds the in-memory arena of active planning
// sessions. Each session is keyed by a server-issued id, so multiple
// projects can be planned concurrently without sharing plan state.
package session

import (
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/fabplan/services/plan/datatypes"
)

// ErrNotFound is returned for an unknown or expired session id.
var ErrNotFound = errors.New("session not found")

// Session is one project's planning state between requests.
type Session struct {
	ID              string                 `json:"id"`
	Project         map[string]string      `json:"project,omitempty"`
	RetrievalHandle string                 `json:"retrieval_handle,omitempty"`
	Pack            *datatypes.ContextPack `json:"context_pack,omitempty"`
	Plan            datatypes.Plan         `json:"plan"`
	Tasks           []datatypes.Task       `json:"tasks,omitempty"`
	Conflicts       []datatypes.Conflict   `json:"conflicts,omitempty"`
	Gate            *datatypes.GateResult  `json:"gate,omitempty"`
	Degraded        []string               `json:"degraded,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// Arena is the session store.
//
// Thread Safety: all methods are safe for concurrent use. Get returns
// a deep-enough copy for reading; mutations go through Update so two
// requests on the same session cannot interleave writes.
type Arena struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{sessions: make(map[string]*Session)}
}

// Create registers a new session and returns it. The plan starts
// normalized so every section exists from the first read.
func (a *Arena) Create(project map[string]string, handle string) Session {
	now := time.Now().UTC()
	s := &Session{
		ID:              uuid.NewString(),
		Project:         maps.Clone(project),
		RetrievalHandle: handle,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.Plan.Normalize()

	a.mu.Lock()
	a.sessions[s.ID] = s
	a.mu.Unlock()
	return snapshot(s)
}

// Get returns a copy of the session.
func (a *Arena) Get(id string) (Session, error) {
	a.mu.RLock()
	s, ok := a.sessions[id]
	a.mu.RUnlock()
	if !ok {
		return Session{}, ErrNotFound
	}
	return snapshot(s), nil
}

// Update applies fn to the session under the write lock. fn receives
// the live session and may mutate it freely; UpdatedAt is bumped after
// fn returns.
func (a *Arena) Update(id string, fn func(*Session)) (Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	fn(s)
	s.UpdatedAt = time.Now().UTC()
	return snapshot(s), nil
}

// Delete removes a session. Deleting an unknown id is a no-op.
func (a *Arena) Delete(id string) {
	a.mu.Lock()
	delete(a.sessions, id)
	a.mu.Unlock()
}

// Len reports the number of live sessions.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.sessions)
}

// snapshot copies a session for return outside the lock. The plan and
// project metadata are deep-copied; slice fields are shallow-copied,
// which is safe because tasks, conflicts, and facts are treated as
// immutable once appended.
func snapshot(s *Session) Session {
	out := *s
	out.Plan = s.Plan.Snapshot()
	out.Project = maps.Clone(s.Project)
	out.Tasks = append([]datatypes.Task(nil), s.Tasks...)
	out.Conflicts = append([]datatypes.Conflict(nil), s.Conflicts...)
	out.Degraded = append([]string(nil), s.Degraded...)
	if s.Gate != nil {
		g := *s.Gate
		out.Gate = &g
	}
	return out
}
