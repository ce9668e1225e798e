// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package checkpoint persists plan snapshots between specialist
// completions so a crashed multi-specialist session can resume from the
// most recent checkpoint instead of restarting every specialist.
//
// Checkpoints are session state, not user documents: access is a point
// lookup or a short prefix scan keyed by session id, so an embedded
// BadgerDB store is used — no network call, no availability dependency.
// Records are append-only; a checkpoint is never edited in place.
//
// Storage layout:
//
//	plan/ckpt/v1/{sessionID}/{seq:08d}  →  gob-encoded Record
//
// Thread Safety:
//
//	All exported types are safe for concurrent use.
package checkpoint

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/fabplan/services/plan/datatypes"
)

// keyPrefix is prepended to session id and sequence to form the BadgerDB
// key. Versioned (v1) to allow future format changes without collision.
const keyPrefix = "plan/ckpt/v1/"

// defaultTTL bounds how long checkpoints are retained. 30 days is long
// enough to resume any realistically-paused session without accumulating
// stale state indefinitely.
const defaultTTL = 30 * 24 * time.Hour

// ErrNoCheckpoint is returned by Latest when the session has no
// checkpoints.
var ErrNoCheckpoint = errors.New("checkpoint: none recorded for session")

// Record is one checkpoint: the plan state after a specialist completed,
// plus enough metadata to resume the session.
type Record struct {
	SessionID  string
	Specialist string
	Seq        int
	Timestamp  time.Time

	// Plan is the merged plan snapshot at checkpoint time.
	Plan datatypes.Plan

	// TaskFingerprints are the fingerprints of all tasks merged so far,
	// carried so a resumed session keeps deduplicating against them.
	TaskFingerprints []string

	// Meta holds free-form session metadata (retrieval handle, project
	// context keys, degraded specialist names).
	Meta map[string]string
}

// Store is the checkpoint persistence contract used by the coordinator.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	// Append persists a new checkpoint for rec.SessionID. The store
	// assigns the next sequence number; rec.Seq is ignored on input.
	Append(ctx context.Context, rec Record) error

	// Latest returns the most recent checkpoint for the session, or
	// ErrNoCheckpoint if none exists.
	Latest(ctx context.Context, sessionID string) (Record, error)

	// List returns all checkpoints for the session in sequence order.
	List(ctx context.Context, sessionID string) ([]Record, error)
}

// =============================================================================
// BadgerStore
// =============================================================================

// BadgerStore implements Store on an embedded BadgerDB.
type BadgerStore struct {
	db  *dgbadger.DB
	ttl time.Duration

	// mu serializes Append per process so sequence assignment cannot race
	// between concurrent sessions sharing the store.
	mu sync.Mutex
}

// NewBadgerStore wraps an open BadgerDB handle. The caller owns the
// handle's lifecycle.
func NewBadgerStore(db *dgbadger.DB) *BadgerStore {
	return &BadgerStore{db: db, ttl: defaultTTL}
}

// Open opens (or creates) a BadgerDB at dir and wraps it in a store.
//
// Outputs:
//   - *BadgerStore: The store. Close releases the underlying DB.
//   - error: Non-nil if the DB cannot be opened.
func Open(dir string) (*BadgerStore, error) {
	opts := dgbadger.DefaultOptions(dir)
	opts.Logger = nil // badger's own logger is noisy; slog covers our needs
	db, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: opening badger at %s: %w", dir, err)
	}
	return NewBadgerStore(db), nil
}

// Close releases the underlying BadgerDB.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func sessionPrefix(sessionID string) []byte {
	return []byte(keyPrefix + sessionID + "/")
}

func recordKey(sessionID string, seq int) []byte {
	return []byte(fmt.Sprintf("%s%s/%08d", keyPrefix, sessionID, seq))
}

// Append implements Store.
//
// Description:
//
//	Scans the session's prefix in reverse to find the highest sequence,
//	then writes the record at seq+1 with the store's TTL. Records are
//	never overwritten.
func (s *BadgerStore) Append(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.SessionID == "" {
		return fmt.Errorf("checkpoint: empty session id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *dgbadger.Txn) error {
		next := 1
		it := txn.NewIterator(dgbadger.IteratorOptions{Reverse: true, PrefetchValues: false})
		defer it.Close()

		prefix := sessionPrefix(rec.SessionID)
		// Reverse iteration needs a seek key past the last possible entry.
		seek := append(append([]byte{}, prefix...), 0xff)
		it.Seek(seek)
		if it.ValidForPrefix(prefix) {
			var lastSeq int
			key := string(it.Item().Key())
			if _, err := fmt.Sscanf(key[len(prefix):], "%d", &lastSeq); err == nil {
				next = lastSeq + 1
			}
		}

		rec.Seq = next
		if rec.Timestamp.IsZero() {
			rec.Timestamp = time.Now().UTC()
		}

		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
			return fmt.Errorf("checkpoint: encoding record: %w", err)
		}

		entry := dgbadger.NewEntry(recordKey(rec.SessionID, next), buf.Bytes()).WithTTL(s.ttl)
		if err := txn.SetEntry(entry); err != nil {
			return fmt.Errorf("checkpoint: writing record: %w", err)
		}

		slog.Debug("checkpoint: appended",
			slog.String("session", rec.SessionID),
			slog.String("specialist", rec.Specialist),
			slog.Int("seq", next),
		)
		return nil
	})
}

// Latest implements Store.
func (s *BadgerStore) Latest(ctx context.Context, sessionID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	var rec Record
	found := false
	err := s.db.View(func(txn *dgbadger.Txn) error {
		it := txn.NewIterator(dgbadger.IteratorOptions{Reverse: true, PrefetchValues: true, PrefetchSize: 1})
		defer it.Close()

		prefix := sessionPrefix(sessionID)
		seek := append(append([]byte{}, prefix...), 0xff)
		it.Seek(seek)
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		found = true
		return it.Item().Value(func(val []byte) error {
			return gob.NewDecoder(bytes.NewReader(val)).Decode(&rec)
		})
	})
	if err != nil {
		return Record{}, fmt.Errorf("checkpoint: reading latest for %s: %w", sessionID, err)
	}
	if !found {
		return Record{}, ErrNoCheckpoint
	}
	return rec, nil
}

// List implements Store.
func (s *BadgerStore) List(ctx context.Context, sessionID string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []Record
	err := s.db.View(func(txn *dgbadger.Txn) error {
		it := txn.NewIterator(dgbadger.DefaultIteratorOptions)
		defer it.Close()

		prefix := sessionPrefix(sessionID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec Record
			err := it.Item().Value(func(val []byte) error {
				return gob.NewDecoder(bytes.NewReader(val)).Decode(&rec)
			})
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("checkpoint: listing %s: %w", sessionID, err)
	}
	return records, nil
}

// =============================================================================
// MemoryStore
// =============================================================================

// MemoryStore is an in-memory Store for tests and for running without a
// checkpoint directory configured. Semantics match BadgerStore minus
// persistence and TTL.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string][]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]Record)}
}

// Append implements Store.
func (m *MemoryStore) Append(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.SessionID == "" {
		return fmt.Errorf("checkpoint: empty session id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Seq = len(m.sessions[rec.SessionID]) + 1
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	m.sessions[rec.SessionID] = append(m.sessions[rec.SessionID], rec)
	return nil
}

// Latest implements Store.
func (m *MemoryStore) Latest(ctx context.Context, sessionID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := m.sessions[sessionID]
	if len(recs) == 0 {
		return Record{}, ErrNoCheckpoint
	}
	return recs[len(recs)-1], nil
}

// List implements Store.
func (m *MemoryStore) List(ctx context.Context, sessionID string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.sessions[sessionID]...), nil
}
