// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package collab

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/fabplan/services/plan/datatypes"
)

// LoggingTaskPublisher logs tasks instead of creating external items.
// Used when no task tracker is configured.
type LoggingTaskPublisher struct{}

func (LoggingTaskPublisher) PublishTasks(_ context.Context, sessionID string, tasks []datatypes.Task) error {
	for _, task := range tasks {
		slog.Info("Task suggested (no tracker configured)",
			slog.String("session_id", sessionID),
			slog.String("task", task.Name),
			slog.String("fingerprint", task.Fingerprint()),
			slog.String("owner_hint", task.OwnerHint),
		)
	}
	return nil
}

// LoggingDocPublisher logs the publish request and returns a synthetic
// page id derived from the title.
type LoggingDocPublisher struct{}

func (LoggingDocPublisher) PublishDoc(_ context.Context, title string, _ datatypes.Plan) (string, error) {
	pageID := "local/" + strings.ReplaceAll(strings.ToLower(title), " ", "-")
	slog.Info("Plan document ready (no publisher configured)",
		slog.String("title", title),
		slog.String("page_id", pageID),
	)
	return pageID, nil
}

// LoggingIngestor derives descriptor metadata from filenames without
// uploading anything, with no retrieval handle. Specialist calls run
// ungrounded in this mode, which is adequate for local dry runs.
type LoggingIngestor struct{}

func (LoggingIngestor) Ingest(_ context.Context, filenames []string) ([]IngestResult, error) {
	results := make([]IngestResult, 0, len(filenames))
	for _, name := range filenames {
		base := filepath.Base(name)
		title := strings.TrimSuffix(base, filepath.Ext(base))
		title = strings.ReplaceAll(title, "_", " ")
		slog.Info("Document registered locally (no ingestor configured)",
			slog.String("filename", base),
		)
		results = append(results, IngestResult{Filename: base, Title: title})
	}
	return results, nil
}
