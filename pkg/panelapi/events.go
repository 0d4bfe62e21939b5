// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package panelapi

// StreamEventType identifies the kind of a server-sent event.
type StreamEventType string

const (
	// StreamEventStatus carries progress text such as "Searching documents".
	StreamEventStatus StreamEventType = "status"
	// StreamEventToken carries the next piece of the answer (a delta).
	StreamEventToken StreamEventType = "token"
	// StreamEventDone ends the stream. Answer, when set, is the final text.
	StreamEventDone StreamEventType = "done"
	// StreamEventError ends the stream with a failure.
	StreamEventError StreamEventType = "error"
)

// StreamEvent is one decoded SSE data payload.
//
// # Fields
//
//   - Index: Position of the event in its stream, starting at 0
//   - Type: Event kind
//   - Content: Token delta (token events)
//   - Message: Progress text (status events)
//   - Answer: Final answer (done events, optional)
//   - Error: Failure text (error events)
//   - RequestID: Echo of the request id, when the server sends one
type StreamEvent struct {
	Index     int             `json:"-"`
	Type      StreamEventType `json:"type"`
	Content   string          `json:"content,omitempty"`
	Message   string          `json:"message,omitempty"`
	Answer    string          `json:"answer,omitempty"`
	Error     string          `json:"error,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// IsTerminal reports whether no event may follow this one.
func (e StreamEvent) IsTerminal() bool {
	return e.Type == StreamEventDone || e.Type == StreamEventError
}

// StreamCallback handles one event. Returning an error stops the read.
type StreamCallback func(event StreamEvent) error
