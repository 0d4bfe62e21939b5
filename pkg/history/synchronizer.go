// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history keeps the session's cache of recent exchanges in sync
// with the panel API.
//
// History display is best-effort: no function in this package returns an
// error, and a failed fetch is treated as an empty result.
package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianPanel/pkg/payload"
	"github.com/AleutianAI/AleutianPanel/pkg/safego"
	"github.com/AleutianAI/AleutianPanel/pkg/session"
)

// DefaultLimit is the number of recent exchanges fetched when no limit is
// configured.
const DefaultLimit = 20

// Fetcher retrieves a raw history page, shaped {"items": [...]}.
type Fetcher interface {
	FetchHistory(ctx context.Context, limit int) (any, error)
}

// Config configures a Synchronizer.
type Config struct {
	Fetcher Fetcher        // Source of raw history pages (required)
	Store   *session.Store // Destination cache (required)
	Logger  *slog.Logger   // Optional, defaults to slog.Default()
	// AsyncTimeout bounds a detached refresh (default: 30s).
	AsyncTimeout time.Duration
}

// Synchronizer fetches, normalizes and caches recent exchanges.
//
// # Description
//
// Every fetch is stamped with a sequence number issued by the store. A
// result is written to the store only if no later-issued fetch has been
// applied already, so a slow initial load can never overwrite a newer
// post-response refresh.
//
// # Thread Safety
//
// Safe for concurrent use. Fetches may overlap each other and an in-flight
// conversation cycle.
type Synchronizer struct {
	fetcher      Fetcher
	store        *session.Store
	logger       *slog.Logger
	asyncTimeout time.Duration
	group        safego.Group
}

// New creates a Synchronizer.
func New(cfg Config) *Synchronizer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.AsyncTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	s := &Synchronizer{
		fetcher:      cfg.Fetcher,
		store:        cfg.Store,
		logger:       logger,
		asyncTimeout: timeout,
	}
	s.group.OnPanic = func(p safego.PanicInfo) {
		s.logger.Error("history refresh panicked",
			"panic", p.Value,
			"stack", p.Stack,
		)
	}
	return s
}

// Refresh fetches up to limit recent exchanges and caches them.
//
// # Description
//
// Transport and decode failures are logged and treated as zero items.
// Invalid records are dropped; the order of valid ones is the API's order.
//
// # Inputs
//
//   - ctx: Context for the fetch
//   - limit: Maximum number of items (non-positive means DefaultLimit)
//
// # Outputs
//
//   - []payload.HistoryItem: The normalized result of this fetch, which may
//     differ from the cache if a later-issued fetch already landed
func (s *Synchronizer) Refresh(ctx context.Context, limit int) []payload.HistoryItem {
	if limit <= 0 {
		limit = DefaultLimit
	}
	seq := s.store.NextHistorySeq()

	items := s.fetch(ctx, limit)

	if !s.store.ApplyHistory(seq, items) {
		s.logger.Debug("discarded superseded history result",
			"seq", seq,
			"items", len(items),
		)
	}
	return items
}

// RefreshAsync starts a detached Refresh.
//
// The caller never waits for it and never sees its failure.
func (s *Synchronizer) RefreshAsync(limit int) {
	s.group.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.asyncTimeout)
		defer cancel()
		s.Refresh(ctx, limit)
	})
}

// Wait blocks until all detached refreshes have finished.
func (s *Synchronizer) Wait() {
	s.group.Wait()
}

func (s *Synchronizer) fetch(ctx context.Context, limit int) []payload.HistoryItem {
	if s.fetcher == nil {
		return []payload.HistoryItem{}
	}
	raw, err := s.fetcher.FetchHistory(ctx, limit)
	if err != nil {
		s.logger.Warn("history fetch failed, showing no history",
			"limit", limit,
			"error", err,
		)
		return []payload.HistoryItem{}
	}
	items := payload.HistoryItemsFromEnvelope(raw)
	s.logger.Debug("history fetched",
		"limit", limit,
		"items", len(items),
	)
	return items
}
