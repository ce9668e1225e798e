// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package checkpoint

import (
	"context"
	"errors"
	"testing"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/fabplan/services/plan/datatypes"
)

// newTestStore returns a BadgerStore backed by an in-memory BadgerDB.
func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	opts := dgbadger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := dgbadger.Open(opts)
	if err != nil {
		t.Fatalf("opening in-memory badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewBadgerStore(db)
}

func testRecord(session, specialist string) Record {
	plan := datatypes.Plan{Quality: &datatypes.QualityPlan{Notes: "after " + specialist}}
	plan.Normalize()
	return Record{
		SessionID:        session,
		Specialist:       specialist,
		Plan:             plan,
		TaskFingerprints: []string{"fp-" + specialist},
		Meta:             map[string]string{"handle": "vs_1"},
	}
}

func runStoreTests(t *testing.T, store Store) {
	ctx := context.Background()

	// Empty session has no latest.
	if _, err := store.Latest(ctx, "s1"); !errors.Is(err, ErrNoCheckpoint) {
		t.Fatalf("Latest on empty session = %v, want ErrNoCheckpoint", err)
	}

	// Appends assign increasing sequence numbers.
	for _, name := range []string{"quality", "purchasing", "scheduling"} {
		if err := store.Append(ctx, testRecord("s1", name)); err != nil {
			t.Fatalf("Append(%s): %v", name, err)
		}
	}

	latest, err := store.Latest(ctx, "s1")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.Specialist != "scheduling" || latest.Seq != 3 {
		t.Errorf("latest = (%s, %d), want (scheduling, 3)", latest.Specialist, latest.Seq)
	}
	if latest.Plan.Quality == nil || latest.Plan.Quality.Notes != "after scheduling" {
		t.Error("latest record should round-trip the plan snapshot")
	}
	if latest.Timestamp.IsZero() {
		t.Error("Append should stamp the record")
	}

	records, err := store.List(ctx, "s1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("List returned %d records, want 3", len(records))
	}
	for i, rec := range records {
		if rec.Seq != i+1 {
			t.Errorf("record %d has seq %d", i, rec.Seq)
		}
	}

	// Sessions are isolated.
	if err := store.Append(ctx, testRecord("s2", "quality")); err != nil {
		t.Fatalf("Append s2: %v", err)
	}
	records, err = store.List(ctx, "s1")
	if err != nil || len(records) != 3 {
		t.Errorf("s1 should still have 3 records, got %d (err %v)", len(records), err)
	}

	// Empty session id is rejected.
	if err := store.Append(ctx, Record{}); err == nil {
		t.Error("Append with empty session id should fail")
	}
}

func TestBadgerStore(t *testing.T) {
	runStoreTests(t, newTestStore(t))
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, NewMemoryStore())
}

func TestBadgerStore_SequencePersistsAcrossHandles(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Append(ctx, testRecord("s1", "quality")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// A second store over the same DB continues the sequence.
	store2 := NewBadgerStore(store.db)
	if err := store2.Append(ctx, testRecord("s1", "gate")); err != nil {
		t.Fatalf("Append via second handle: %v", err)
	}
	latest, err := store2.Latest(ctx, "s1")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.Seq != 2 {
		t.Errorf("seq = %d, want 2", latest.Seq)
	}
}
