// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package safego runs detached goroutines whose panics are recovered and
// reported instead of crashing the process.
package safego

import (
	"runtime/debug"
	"sync"
)

// PanicInfo describes a recovered panic.
type PanicInfo struct {
	Value any
	Stack string
}

// Group tracks detached goroutines so that shutdown can wait for them.
//
// # Description
//
// Group is fire-and-forget for the caller of Go: nothing is returned and no
// error propagates. Wait is only for orderly shutdown and tests.
//
// # Thread Safety
//
// Safe for concurrent use. The zero value is ready to use.
type Group struct {
	wg      sync.WaitGroup
	OnPanic func(PanicInfo)
}

// Go runs fn on a new goroutine.
func (g *Group) Go(fn func()) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil && g.OnPanic != nil {
				g.OnPanic(PanicInfo{Value: r, Stack: string(debug.Stack())})
			}
		}()
		fn()
	}()
}

// Wait blocks until every goroutine started with Go has returned.
func (g *Group) Wait() {
	g.wg.Wait()
}
