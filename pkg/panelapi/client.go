// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package panelapi is the HTTP client for the panel API.
//
// It implements conversation.API: model configs and history are fetched as
// raw JSON for the payload normalizer, and chat/analysis turns are streamed
// over server-sent events. Token events carry deltas; the client accumulates
// them and hands the full text so far to the caller after every token.
//
// Endpoints:
//
//	GET  /v1/models/configs           → [ {id, name, enabled}, ... ]
//	GET  /v1/chat/history?limit=N     → {items: [ {id, question, ...}, ... ]}
//	POST /v1/chat/stream              → text/event-stream
//	POST /v1/analysis/stream          → text/event-stream
package panelapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianPanel/pkg/conversation"
	"github.com/AleutianAI/AleutianPanel/pkg/payload"
)

// DefaultTimeout bounds one HTTP exchange, including a full stream.
const DefaultTimeout = 5 * time.Minute

// maxErrorBodyBytes bounds how much of an error response is read.
const maxErrorBodyBytes = 64 * 1024

// Config configures a Client.
type Config struct {
	BaseURL    string            // Panel API base URL (required)
	Timeout    time.Duration     // HTTP timeout (default: DefaultTimeout)
	HTTPClient HTTPClient        // Optional transport override
	Headers    map[string]string // Extra headers sent with streaming requests
	Logger     *slog.Logger      // Optional, defaults to slog.Default()
}

// Client talks to the panel API.
//
// # Thread Safety
//
// Safe for concurrent use. Calls share no mutable state.
type Client struct {
	client  HTTPClient
	reader  StreamReader
	baseURL string
	headers map[string]string
	logger  *slog.Logger
}

// New creates a Client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		httpClient = NewHTTPClient(&http.Client{Timeout: timeout})
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	headers := make(map[string]string, len(cfg.Headers)+1)
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	headers["Accept"] = "text/event-stream"

	return &Client{
		client:  httpClient,
		reader:  NewSSEStreamReader(NewSSEParser()),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		headers: headers,
		logger:  logger,
	}
}

// =============================================================================
// Fetches
// =============================================================================

// FetchModelConfigs returns the raw model config list.
//
// A bare JSON array is the expected body; an object wrapping the list under
// "configs" or "items" is accepted as well.
func (c *Client) FetchModelConfigs(ctx context.Context) ([]any, error) {
	raw, err := c.getJSON(ctx, c.baseURL+"/v1/models/configs")
	if err != nil {
		return nil, err
	}
	if list := payload.Sequence(raw); list != nil {
		return list, nil
	}
	if obj, ok := raw.(map[string]any); ok {
		for _, key := range []string{"configs", "items"} {
			if list := payload.Sequence(obj[key]); list != nil {
				return list, nil
			}
		}
	}
	return nil, fmt.Errorf("unexpected model configs payload of type %T", raw)
}

// FetchHistory returns the raw history page for the limit most recent
// exchanges.
func (c *Client) FetchHistory(ctx context.Context, limit int) (any, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	return c.getJSON(ctx, c.baseURL+"/v1/chat/history?"+q.Encode())
}

func (c *Client) getJSON(ctx context.Context, targetURL string) (any, error) {
	resp, err := c.client.Get(ctx, targetURL)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer closeBody(c.logger, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, c.readAPIError(targetURL, resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	raw, err := payload.DecodeJSON(data)
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return raw, nil
}

// =============================================================================
// Streaming Turns
// =============================================================================

// SendChatTurn streams a chat-mode answer for the full running log.
func (c *Client) SendChatTurn(ctx context.Context, turn conversation.ChatTurn, onToken conversation.TokenFunc) (string, error) {
	req := ChatRequest{
		RequestID:    uuid.New().String(),
		Timestamp:    time.Now().UnixMilli(),
		Messages:     make([]WireMessage, 0, len(turn.Messages)),
		ModelID:      turn.ModelID,
		UseRetrieval: turn.Retrieval,
	}
	for _, m := range turn.Messages {
		req.Messages = append(req.Messages, WireMessage{Role: string(m.Role), Content: m.Content})
	}
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("invalid chat request: %w", err)
	}
	return c.stream(ctx, req.RequestID, c.baseURL+"/v1/chat/stream", req, onToken)
}

// SendAnalysisTurn streams an analysis-mode answer for a single message.
func (c *Client) SendAnalysisTurn(ctx context.Context, turn conversation.AnalysisTurn, onToken conversation.TokenFunc) (string, error) {
	req := AnalysisRequest{
		RequestID:    uuid.New().String(),
		Timestamp:    time.Now().UnixMilli(),
		Message:      turn.Message.Content,
		ModelID:      turn.ModelID,
		UseRetrieval: turn.Retrieval,
	}
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("invalid analysis request: %w", err)
	}
	return c.stream(ctx, req.RequestID, c.baseURL+"/v1/analysis/stream", req, onToken)
}

// stream posts body and reads the SSE response.
//
// # Description
//
// Token deltas are accumulated; onToken receives the accumulation after
// each one. The done event's answer, when present, is the resolved text;
// otherwise the accumulation is. A stream that ends without a done event
// resolves with what was accumulated.
func (c *Client) stream(ctx context.Context, requestID, targetURL string, body any, onToken conversation.TokenFunc) (string, error) {
	postBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Debug("sending panel stream request",
		"request_id", requestID,
		"url", targetURL,
		"body_bytes", len(postBody),
	)

	headers := make(map[string]string, len(c.headers)+1)
	for k, v := range c.headers {
		headers[k] = v
	}
	headers["X-Request-ID"] = requestID

	resp, err := c.client.PostWithHeaders(ctx, targetURL, "application/json", bytes.NewReader(postBody), headers)
	if err != nil {
		c.logger.Error("panel stream request failed",
			"request_id", requestID,
			"url", targetURL,
			"error", err,
		)
		return "", fmt.Errorf("http post: %w", err)
	}
	defer closeBody(c.logger, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", c.readAPIError(targetURL, resp)
	}

	var answer strings.Builder
	var final string
	var streamErr error
	err = c.reader.Read(ctx, resp.Body, func(event StreamEvent) error {
		switch event.Type {
		case StreamEventToken:
			if event.Content == "" {
				return nil
			}
			answer.WriteString(event.Content)
			if onToken != nil {
				onToken(answer.String())
			}
		case StreamEventDone:
			final = event.Answer
		case StreamEventError:
			msg := event.Error
			if msg == "" {
				msg = event.Message
			}
			streamErr = &StreamError{Message: msg}
		}
		return nil
	})
	if err != nil {
		c.logger.Error("panel stream reading failed",
			"request_id", requestID,
			"error", err,
		)
		return "", fmt.Errorf("read stream: %w", err)
	}
	if streamErr != nil {
		return "", streamErr
	}
	if final == "" {
		final = answer.String()
	}

	c.logger.Debug("panel stream completed",
		"request_id", requestID,
		"answer_length", len(final),
	)
	return final, nil
}

func (c *Client) readAPIError(targetURL string, resp *http.Response) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		c.logger.Error("panel API returned error (failed to read body)",
			"url", targetURL,
			"status_code", resp.StatusCode,
			"read_error", err,
		)
		return &APIError{StatusCode: resp.StatusCode, Message: "failed to read response body"}
	}
	apiErr := newAPIError(resp.StatusCode, data)
	c.logger.Error("panel API returned error",
		"url", targetURL,
		"status_code", resp.StatusCode,
		"message", apiErr.Message,
	)
	return apiErr
}

func closeBody(logger *slog.Logger, body io.ReadCloser) {
	if err := body.Close(); err != nil {
		logger.Error("failed to close response body", "error", err)
	}
}

var _ conversation.API = (*Client)(nil)
