// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Task is a suggested follow-up item produced by a specialist.
//
// Description:
//
//	Tasks are merged across specialists and across reruns of the same
//	session. The Fingerprint method derives the dedup key; two tasks with
//	the same (name, source_hint, owner_hint) are the same task regardless
//	of notes or due date, so a rerun cannot create duplicate entries in
//	an external tracker.
type Task struct {
	Name       string `json:"name"`
	Notes      string `json:"notes,omitempty"`
	OwnerHint  string `json:"owner_hint,omitempty"`
	DueDate    string `json:"due_date,omitempty"`
	SourceHint string `json:"source_hint,omitempty"`
}

// fingerprintSep separates fields in the fingerprint preimage. A field
// separator that cannot appear in normalized input prevents collisions
// like ("ab","c") vs ("a","bc").
const fingerprintSep = "\x1f"

// Fingerprint returns the stable dedup key for the task.
//
// Description:
//
//	SHA-256 over the normalized (name, source_hint, owner_hint) triple.
//	Normalization lowercases and trims surrounding whitespace so cosmetic
//	differences do not defeat deduplication. Notes and due date are
//	deliberately excluded: they vary between extraction runs for what is
//	semantically the same task.
//
// Outputs:
//   - string: 64-char lowercase hex digest.
//
// Thread Safety: Safe for concurrent use (pure function).
func (t Task) Fingerprint() string {
	preimage := strings.Join([]string{
		normalizeFingerprintField(t.Name),
		normalizeFingerprintField(t.SourceHint),
		normalizeFingerprintField(t.OwnerHint),
	}, fingerprintSep)
	sum := sha256.Sum256([]byte(preimage))
	return hex.EncodeToString(sum[:])
}

func normalizeFingerprintField(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
