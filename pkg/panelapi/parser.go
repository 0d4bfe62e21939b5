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

import (
	"encoding/json"
	"strings"
)

// SSEParser decodes single lines of a text/event-stream body.
type SSEParser interface {
	// ParseLine returns the event carried by line, or nil for lines that
	// carry none (blank lines, comments, event/id/retry fields).
	ParseLine(line string) (*StreamEvent, error)
	// ParseRawJSON decodes a data payload.
	ParseRawJSON(jsonData []byte) (*StreamEvent, error)
}

type sseParser struct{}

// NewSSEParser creates the default SSE line parser.
//
// Data lines whose payload is not JSON are delivered as token events with
// the payload as content, so plain-text streams still render.
func NewSSEParser() SSEParser {
	return &sseParser{}
}

func (p *sseParser) ParseLine(line string) (*StreamEvent, error) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}
	if strings.HasPrefix(line, ":") {
		return nil, nil
	}

	field, value, found := strings.Cut(line, ":")
	if !found {
		return &StreamEvent{Type: StreamEventToken, Content: line}, nil
	}
	value = strings.TrimPrefix(value, " ")

	switch field {
	case "data":
		if !looksLikeJSONObject(value) {
			return &StreamEvent{Type: StreamEventToken, Content: value}, nil
		}
		return p.ParseRawJSON([]byte(value))
	case "event", "id", "retry":
		return nil, nil
	default:
		return &StreamEvent{Type: StreamEventToken, Content: line}, nil
	}
}

func (p *sseParser) ParseRawJSON(jsonData []byte) (*StreamEvent, error) {
	var event StreamEvent
	if err := json.Unmarshal(jsonData, &event); err != nil {
		return nil, err
	}
	if event.Type == "" {
		event.Type = StreamEventToken
	}
	return &event, nil
}

func looksLikeJSONObject(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")
}

var _ SSEParser = (*sseParser)(nil)
