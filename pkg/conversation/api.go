// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package conversation runs the panel's request/response cycle.
//
// Architecture:
//
//	presentation → Controller.Send → API.SendChatTurn / API.SendAnalysisTurn
//	                    ↓                        ↓ onToken(snapshot)
//	               session.Store  ←──────────────┘
//	                    ↑
//	               history.Synchronizer (fire-and-forget after success)
//
// The Controller is the only writer of the message log and the streaming
// buffer. Callers read state through Snapshot.
package conversation

import (
	"context"

	"github.com/AleutianAI/AleutianPanel/pkg/session"
)

// TokenFunc receives the full accumulated response text each time the
// transport has more of it. It is never given a delta.
type TokenFunc func(accumulated string)

// ChatTurn is the request shape of chat mode.
//
// # Fields
//
//   - Messages: The running message log, ending with the new user turn
//   - ModelID: Selected model, nil to let the backend pick its default
//   - Retrieval: Whether the backend should augment the answer with lookup
type ChatTurn struct {
	Messages  []session.Message
	ModelID   *int64
	Retrieval bool
}

// AnalysisTurn is the request shape of analysis mode. Prior turns are not
// sent as context.
type AnalysisTurn struct {
	Message   session.Message
	ModelID   *int64
	Retrieval bool
}

// API is the set of panel API calls the controller depends on.
//
// # Description
//
// Implementations invoke the TokenFunc zero or more times, in order, on the
// goroutine that called Send*, and then return the final text. The final
// text is authoritative even if it differs from the last snapshot.
//
// # Assumptions
//
//   - FetchModelConfigs returns a raw JSON array decoded into []any
//   - FetchHistory returns a raw {"items": [...]} page
type API interface {
	FetchModelConfigs(ctx context.Context) ([]any, error)
	FetchHistory(ctx context.Context, limit int) (any, error)
	SendChatTurn(ctx context.Context, turn ChatTurn, onToken TokenFunc) (string, error)
	SendAnalysisTurn(ctx context.Context, turn AnalysisTurn, onToken TokenFunc) (string, error)
}
