// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm is the narrow client for the external text-generation
// service. The contract is deliberately small: a request carries
// instructions, a prompt, a structured-output schema, and an optional
// retrieval handle; the response is raw JSON that conformed to the schema
// on the provider side, or a classified APIError. No shape-guessing is
// performed on responses — a payload either parses against the caller's
// schema type or the call is treated as failed.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

const defaultGenerationBaseURL = "https://api.openai.com/v1/responses"

const defaultGenerationModel = "gpt-4o-mini"

// StructuredRequest is one generation call.
type StructuredRequest struct {
	// Instructions is the system-level role description.
	Instructions string

	// Prompt is the user-level input.
	Prompt string

	// SchemaName labels the structured output schema.
	SchemaName string

	// Schema is the JSON schema the response must conform to.
	Schema json.RawMessage

	// RetrievalHandle optionally names a provider-side document store
	// used as grounding context (a vector-store id). Empty disables
	// retrieval for the call.
	RetrievalHandle string

	// MaxOutputTokens limits the response length. Zero means provider
	// default.
	MaxOutputTokens int
}

// GenerationClient is the interface consumed by the specialist runners
// and the gate evaluator.
//
// Thread Safety: Implementations must be safe for concurrent use.
type GenerationClient interface {
	// GenerateStructured performs one generation call and returns the raw
	// JSON of the structured output.
	//
	// Outputs:
	//   - json.RawMessage: The structured output; valid JSON on success.
	//   - error: An *APIError for provider failures, or a transport error.
	GenerateStructured(ctx context.Context, req StructuredRequest) (json.RawMessage, error)
}

// APIError is a classified provider failure.
//
// Description:
//
//	Carries the HTTP status code so the retry layer can decide whether
//	the failure is transient (429, 5xx) or permanent (other 4xx) without
//	string matching.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("generation: API status %d (%s): %s", e.StatusCode, e.Type, e.Message)
}

// HTTPStatus returns the HTTP status code. Implements the status-coder
// contract the retry package classifies on.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// =============================================================================
// Wire Types
// =============================================================================

type generationRequest struct {
	Model           string           `json:"model"`
	Instructions    string           `json:"instructions,omitempty"`
	Input           string           `json:"input"`
	Text            *generationText  `json:"text,omitempty"`
	Tools           []generationTool `json:"tools,omitempty"`
	MaxOutputTokens *int             `json:"max_output_tokens,omitempty"`
}

type generationText struct {
	Format generationFormat `json:"format"`
}

type generationFormat struct {
	Type   string          `json:"type"`
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict bool            `json:"strict"`
}

type generationTool struct {
	Type           string   `json:"type"`
	VectorStoreIDs []string `json:"vector_store_ids,omitempty"`
}

type generationResponse struct {
	ID     string             `json:"id"`
	Status string             `json:"status"`
	Output []generationOutput `json:"output"`
	Error  *wireError         `json:"error,omitempty"`
}

type generationOutput struct {
	Type    string              `json:"type"`
	Content []generationContent `json:"content"`
}

type generationContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type wireError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// HTTPGenerationClient implements GenerationClient over the provider's
// REST API using raw net/http, without third-party SDKs.
//
// Thread Safety: HTTPGenerationClient is safe for concurrent use.
type HTTPGenerationClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// NewGenerationClient creates a client from environment variables.
//
// Description:
//
//	Reads FABPLAN_LLM_API_KEY, FABPLAN_LLM_MODEL, and FABPLAN_LLM_BASE_URL.
//	Model and base URL have defaults; a missing API key is an error.
//
// Outputs:
//   - *HTTPGenerationClient: The configured client.
//   - error: Non-nil if FABPLAN_LLM_API_KEY is missing.
func NewGenerationClient() (*HTTPGenerationClient, error) {
	apiKey := os.Getenv("FABPLAN_LLM_API_KEY")
	if apiKey == "" {
		slog.Warn("Generation API key is empty. Generation client will not function.")
		return nil, fmt.Errorf("generation: API key is missing (FABPLAN_LLM_API_KEY)")
	}
	model := os.Getenv("FABPLAN_LLM_MODEL")
	if model == "" {
		model = defaultGenerationModel
		slog.Warn("FABPLAN_LLM_MODEL not set, defaulting", slog.String("model", model))
	}
	baseURL := os.Getenv("FABPLAN_LLM_BASE_URL")
	if baseURL == "" {
		baseURL = defaultGenerationBaseURL
	}
	slog.Info("Initializing generation client", slog.String("model", model))
	return NewGenerationClientWithConfig(apiKey, model, baseURL), nil
}

// NewGenerationClientWithConfig creates a client with explicit
// configuration. Useful for testing with mock servers.
func NewGenerationClientWithConfig(apiKey, model, baseURL string) *HTTPGenerationClient {
	return &HTTPGenerationClient{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
	}
}

// GenerateStructured implements GenerationClient.
//
// Description:
//
//	Builds a structured-output request (json_schema format, strict mode),
//	attaches a file_search tool when a retrieval handle is present, and
//	returns the first output text as raw JSON. Non-2xx responses become
//	*APIError so the retry layer can classify them.
//
// Thread Safety: Safe for concurrent use.
func (c *HTTPGenerationClient) GenerateStructured(ctx context.Context, req StructuredRequest) (json.RawMessage, error) {
	slog.Debug("Structured generation request",
		slog.String("model", c.model),
		slog.String("schema", req.SchemaName),
		slog.Bool("retrieval", req.RetrievalHandle != ""),
	)

	payload := generationRequest{
		Model:        c.model,
		Instructions: req.Instructions,
		Input:        req.Prompt,
	}
	if len(req.Schema) > 0 {
		payload.Text = &generationText{
			Format: generationFormat{
				Type:   "json_schema",
				Name:   req.SchemaName,
				Schema: req.Schema,
				Strict: true,
			},
		}
	}
	if req.RetrievalHandle != "" {
		payload.Tools = append(payload.Tools, generationTool{
			Type:           "file_search",
			VectorStoreIDs: []string{req.RetrievalHandle},
		})
	}
	if req.MaxOutputTokens > 0 {
		payload.MaxOutputTokens = &req.MaxOutputTokens
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("generation: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("generation: creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generation: HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("generation: reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var wire generationResponse
		if jsonErr := json.Unmarshal(bodyBytes, &wire); jsonErr == nil && wire.Error != nil {
			apiErr.Type = wire.Error.Type
			apiErr.Message = SafeLogString(wire.Error.Message)
		} else {
			apiErr.Message = SafeLogString(string(bodyBytes))
		}
		return nil, apiErr
	}

	var wire generationResponse
	if err := json.Unmarshal(bodyBytes, &wire); err != nil {
		return nil, fmt.Errorf("generation: parsing response JSON: %w", err)
	}
	if wire.Error != nil {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Type:       wire.Error.Type,
			Message:    SafeLogString(wire.Error.Message),
		}
	}

	text := firstOutputText(wire)
	if text == "" {
		return nil, fmt.Errorf("generation: response contained no output text")
	}
	if !json.Valid([]byte(text)) {
		return nil, fmt.Errorf("generation: output is not valid JSON")
	}

	slog.Debug("Structured generation response",
		slog.String("status", wire.Status),
		slog.Int("output_len", len(text)),
	)
	return json.RawMessage(text), nil
}

// firstOutputText returns the first output_text content item, skipping
// tool-call output entries (e.g., file_search results).
func firstOutputText(resp generationResponse) string {
	for _, out := range resp.Output {
		if out.Type != "" && out.Type != "message" {
			continue
		}
		for _, c := range out.Content {
			if c.Type == "output_text" && c.Text != "" {
				return c.Text
			}
		}
	}
	return ""
}
