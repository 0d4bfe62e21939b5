// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package conversation

import (
	"errors"
	"strings"
)

const (
	// AnalyzingPlaceholder seeds the streaming buffer of an analysis cycle
	// before any data arrives.
	AnalyzingPlaceholder = "Analyzing…"
	// NoAnswerPlaceholder replaces an empty analysis answer.
	NoAnswerPlaceholder = "No answer available."
	// ErrorPrefix starts the assistant message of a failed cycle.
	ErrorPrefix = "Error: "

	unknownReason = "unknown error"
)

// Reasoner is implemented by errors that carry a human-readable reason
// separate from their full Error() text, such as a server's message.
type Reasoner interface {
	Reason() string
}

// ErrorReason extracts the text shown to the user for a failed request.
//
// The first Reasoner in the chain wins, then the error's own text, then a
// generic fallback.
func ErrorReason(err error) string {
	if err == nil {
		return unknownReason
	}
	var r Reasoner
	if errors.As(err, &r) {
		if reason := strings.TrimSpace(r.Reason()); reason != "" {
			return reason
		}
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return unknownReason
}
