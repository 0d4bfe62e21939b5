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
	"fmt"
	"strings"
)

// APIError is returned when the panel API answers with a non-200 status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// Reason returns the server's message without the status prefix.
func (e *APIError) Reason() string {
	return e.Message
}

// StreamError is returned when a stream ends with an error event.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return "stream error: " + e.Message
}

// Reason returns the message sent in the error event.
func (e *StreamError) Reason() string {
	return e.Message
}

// newAPIError builds an APIError from a response body, preferring the
// "error" or "message" field of a JSON body over the raw text.
func newAPIError(status int, body []byte) *APIError {
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &parsed); err == nil {
		switch {
		case parsed.Error != "":
			msg = parsed.Error
		case parsed.Message != "":
			msg = parsed.Message
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", status)
	}
	return &APIError{StatusCode: status, Message: msg}
}
