// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package collab declares the external collaborator boundaries of the
// planning engine: task tracking, document publishing, and document
// ingestion. The engine only depends on these narrow interfaces;
// deployments plug in real integrations, and the logging
// implementations here are the default when none is configured.
package collab

import (
	"context"

	"github.com/AleutianAI/fabplan/services/plan/datatypes"
)

// TaskPublisher creates external tracked items from suggested tasks.
// Callers supply deduplicated, fingerprinted lists, so repeated calls
// for the same session are idempotent at the external system too.
type TaskPublisher interface {
	PublishTasks(ctx context.Context, sessionID string, tasks []datatypes.Task) error
}

// DocPublisher publishes the finalized plan as a document and returns
// its page identifier or URL.
type DocPublisher interface {
	PublishDoc(ctx context.Context, title string, body datatypes.Plan) (string, error)
}

// IngestResult describes one ingested source document.
type IngestResult struct {
	Filename        string `json:"filename"`
	Title           string `json:"title"`
	RetrievalHandle string `json:"retrieval_handle"`
}

// Ingestor accepts raw files and returns extracted metadata plus a
// persistent retrieval handle used to ground generation calls.
type Ingestor interface {
	Ingest(ctx context.Context, filenames []string) ([]IngestResult, error)
}
