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
	"bufio"
	"context"
	"fmt"
	"io"
)

// maxSSELineBytes bounds one SSE line. Large answers arrive as many token
// events, but a done event may carry the whole answer.
const maxSSELineBytes = 1 << 20

// StreamReader reads SSE events from a response body in arrival order.
type StreamReader interface {
	// Read invokes callback for each event until a terminal event, EOF,
	// a callback error, or context cancellation. Callback errors are
	// returned unwrapped.
	Read(ctx context.Context, r io.Reader, callback StreamCallback) error
}

type sseStreamReader struct {
	parser  SSEParser
	maxLine int
}

// NewSSEStreamReader creates a StreamReader using parser.
func NewSSEStreamReader(parser SSEParser) StreamReader {
	return &sseStreamReader{parser: parser, maxLine: maxSSELineBytes}
}

func (r *sseStreamReader) Read(ctx context.Context, body io.Reader, callback StreamCallback) error {
	lines := bufio.NewScanner(body)
	lines.Buffer(nil, r.maxLine)

	next := 0
	for lineNo := 1; lines.Scan(); lineNo++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		event, err := r.parser.ParseLine(lines.Text())
		switch {
		case err != nil:
			return fmt.Errorf("parse sse line %d: %w", lineNo, err)
		case event == nil:
			continue
		}

		event.Index = next
		next++
		if err := callback(*event); err != nil {
			return err
		}
		if event.IsTerminal() {
			return nil
		}
	}
	if err := lines.Err(); err != nil {
		return fmt.Errorf("scan sse body: %w", err)
	}
	return nil
}

var _ StreamReader = (*sseStreamReader)(nil)
