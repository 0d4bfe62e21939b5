// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// streamRenderer prints streaming snapshots to a terminal that cannot
// rewrite earlier output.
//
// # Description
//
// Each snapshot replaces the previous one. When the new snapshot extends
// what is already on screen only the suffix is written; otherwise (a
// placeholder replaced by the real answer, or a shorter resolved text)
// the snapshot is restarted on a fresh line.
//
// # Thread Safety
//
// Safe for concurrent use.
type streamRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	label   string
	active  bool
	printed string
}

func newStreamRenderer(out io.Writer, label string) *streamRenderer {
	return &streamRenderer{out: out, label: label}
}

// update renders snapshot as the current buffer contents.
func (r *streamRenderer) update(snapshot string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.write(snapshot)
}

// finish renders the final text and ends the line.
func (r *streamRenderer) finish(final string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.write(final)
	if r.active {
		fmt.Fprintln(r.out)
	}
	r.active = false
	r.printed = ""
}

// reset drops the current line without printing anything further.
func (r *streamRenderer) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		fmt.Fprintln(r.out)
	}
	r.active = false
	r.printed = ""
}

// write ignores empty snapshots: the buffer is cleared when a cycle starts
// or ends, and neither should disturb the line on screen.
func (r *streamRenderer) write(snapshot string) {
	if snapshot == "" {
		return
	}
	if !r.active {
		fmt.Fprint(r.out, r.label, snapshot)
		r.active = true
		r.printed = snapshot
		return
	}
	if snapshot == r.printed {
		return
	}
	if strings.HasPrefix(snapshot, r.printed) {
		fmt.Fprint(r.out, snapshot[len(r.printed):])
	} else {
		fmt.Fprint(r.out, "\n", r.label, snapshot)
	}
	r.printed = snapshot
}
