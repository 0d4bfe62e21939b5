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
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianPanel/pkg/history"
	"github.com/AleutianAI/AleutianPanel/pkg/payload"
	"github.com/AleutianAI/AleutianPanel/pkg/session"
)

// SendResult reports what a Send did.
type SendResult int

const (
	// SendCompleted means the cycle finished and the answer was appended.
	SendCompleted SendResult = iota
	// SendFailed means the request failed and an error message was appended.
	SendFailed
	// SendSuperseded means the cycle finished after a view reset, so its
	// answer was discarded.
	SendSuperseded
	// SendIgnoredEmpty means the trimmed input was empty. Nothing changed.
	SendIgnoredEmpty
	// SendIgnoredBusy means another cycle was in flight. Nothing changed.
	SendIgnoredBusy
)

func (r SendResult) String() string {
	switch r {
	case SendCompleted:
		return "completed"
	case SendFailed:
		return "failed"
	case SendSuperseded:
		return "superseded"
	case SendIgnoredEmpty:
		return "ignored_empty"
	case SendIgnoredBusy:
		return "ignored_busy"
	default:
		return "unknown"
	}
}

// Config configures a Controller.
type Config struct {
	API          API            // Panel API (required)
	Store        *session.Store // Session state (required)
	Logger       *slog.Logger   // Optional, defaults to slog.Default()
	HistoryLimit int            // Items per history refresh (default: history.DefaultLimit)
	Metrics      *Metrics       // Optional
	Tracer       trace.Tracer   // Optional, defaults to the global provider
}

// Controller runs one request/response cycle per user send.
//
// # Description
//
// Per cycle the controller moves the session through
// Idle → Sending → Streaming → Finalizing → Idle, or back to Idle with an
// error message on failure. At most one cycle is in flight; a send while
// busy is a no-op.
//
// The user turn is committed before any network activity and is never
// removed, whatever the outcome. The mode is read when the send starts.
//
// # Thread Safety
//
// Safe for concurrent use. Send blocks until its cycle ends; the streaming
// callback runs on the goroutine that called Send.
type Controller struct {
	api          API
	store        *session.Store
	history      *history.Synchronizer
	logger       *slog.Logger
	historyLimit int
	metrics      *Metrics
	tracer       trace.Tracer
}

// New creates a Controller for the given session.
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = history.DefaultLimit
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("aleutian.panel.conversation")
	}
	return &Controller{
		api:   cfg.API,
		store: cfg.Store,
		history: history.New(history.Config{
			Fetcher: cfg.API,
			Store:   cfg.Store,
			Logger:  logger,
		}),
		logger:       logger,
		historyLimit: limit,
		metrics:      cfg.Metrics,
		tracer:       tracer,
	}
}

// =============================================================================
// Session Lifecycle
// =============================================================================

// Init loads model configs and the initial history concurrently.
//
// # Description
//
// Both fetches are best-effort; a failure leaves the corresponding cache
// empty and is only logged. Once configs are cached, the first enabled one
// becomes the selected model unless a model was already chosen this session.
func (c *Controller) Init(ctx context.Context) {
	var g errgroup.Group
	g.Go(func() error {
		c.RefreshConfigs(ctx)
		return nil
	})
	g.Go(func() error {
		c.history.Refresh(ctx, c.historyLimit)
		return nil
	})
	_ = g.Wait()

	snap := c.store.Snapshot()
	c.logger.Info("panel session initialized",
		"configs", len(snap.Configs),
		"history_items", len(snap.History),
		"selected_model", modelAttr(snap.SelectedModel),
	)
}

// RefreshConfigs fetches and caches the model configs, then seeds the
// default model if none was chosen yet.
func (c *Controller) RefreshConfigs(ctx context.Context) []payload.ModelConfig {
	raw, err := c.api.FetchModelConfigs(ctx)
	if err != nil {
		c.logger.Warn("model config fetch failed, showing no models",
			"error", err,
		)
		raw = nil
	}
	configs := payload.NormalizeConfigs(raw)
	c.store.SetConfigs(configs)

	if id, chosen := c.store.ChooseDefaultModel(); chosen {
		c.logger.Debug("default model selected", "model_id", id)
	}
	return configs
}

// RefreshHistory fetches and caches recent exchanges.
func (c *Controller) RefreshHistory(ctx context.Context) []payload.HistoryItem {
	return c.history.Refresh(ctx, c.historyLimit)
}

// Close waits for detached history refreshes to finish.
func (c *Controller) Close() error {
	c.history.Wait()
	return nil
}

// =============================================================================
// Request Cycle
// =============================================================================

// Send runs one request/response cycle for input.
//
// # Description
//
// Whitespace-only input and sends while a cycle is in flight are ignored
// without any state change. Otherwise the trimmed input is appended as a
// user turn and the request shape is chosen by the current mode:
//
//   - chat: the full running log is sent; the buffer starts empty
//   - analysis: only the new user message is sent; the buffer is seeded
//     with AnalyzingPlaceholder
//
// Every snapshot delivered by the API replaces the buffer. On success the
// resolved text (not the last snapshot) becomes the assistant message and a
// detached history refresh starts. On failure an ErrorPrefix message is
// appended and history is left alone.
//
// # Inputs
//
//   - ctx: Context for the request
//   - input: Raw user input
//
// # Outputs
//
//   - SendResult: What happened. No outcome is fatal to the session.
func (c *Controller) Send(ctx context.Context, input string) SendResult {
	text := strings.TrimSpace(input)
	if text == "" {
		c.metrics.recordIgnored("empty")
		return SendIgnoredEmpty
	}

	cycle, ok := c.store.BeginCycle(text)
	if !ok {
		c.metrics.recordIgnored("busy")
		c.logger.Debug("send ignored, cycle in flight")
		return SendIgnoredBusy
	}

	mode := string(cycle.Mode)
	ctx, span := c.tracer.Start(ctx, "conversation.cycle",
		trace.WithAttributes(
			attribute.String("panel.mode", mode),
			attribute.Bool("panel.retrieval", cycle.Retrieval),
			attribute.Int64("panel.epoch", int64(cycle.Epoch)),
		),
	)
	defer span.End()

	start := time.Now()
	var firstToken sync.Once
	onToken := func(accumulated string) {
		firstToken.Do(func() {
			c.metrics.recordFirstToken(mode, time.Since(start))
		})
		if c.store.UpdateStreamingAt(cycle.Epoch, accumulated) {
			c.metrics.recordStreamUpdate(mode)
		}
	}

	c.logger.Debug("sending panel request",
		"mode", mode,
		"model_id", modelAttr(cycle.ModelID),
		"retrieval", cycle.Retrieval,
		"history_length", len(cycle.Messages),
	)

	final, err := c.request(ctx, cycle, onToken)
	if err != nil {
		reason := ErrorReason(err)
		c.store.FinalizeAssistantMessageAt(cycle.Epoch, ErrorPrefix+reason)
		c.metrics.recordCycle(mode, outcomeFailure, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		c.logger.Warn("panel request failed",
			"mode", mode,
			"error", err,
		)
		return SendFailed
	}

	c.store.SetPhase(session.PhaseFinalizing)
	if final == "" && cycle.Mode == session.ModeAnalysis {
		final = NoAnswerPlaceholder
	}
	applied := c.store.FinalizeAssistantMessageAt(cycle.Epoch, final)
	c.history.RefreshAsync(c.historyLimit)

	if !applied {
		c.metrics.recordCycle(mode, outcomeSuperseded, time.Since(start))
		span.SetAttributes(attribute.String("panel.outcome", outcomeSuperseded))
		c.logger.Info("answer discarded after view reset",
			"mode", mode,
			"epoch", cycle.Epoch,
		)
		return SendSuperseded
	}

	c.metrics.recordCycle(mode, outcomeSuccess, time.Since(start))
	span.SetAttributes(attribute.String("panel.outcome", outcomeSuccess))
	c.logger.Debug("panel request completed",
		"mode", mode,
		"answer_length", len(final),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return SendCompleted
}

func (c *Controller) request(ctx context.Context, cycle session.Cycle, onToken TokenFunc) (string, error) {
	if cycle.Mode == session.ModeAnalysis {
		c.store.UpdateStreamingAt(cycle.Epoch, AnalyzingPlaceholder)
		return c.api.SendAnalysisTurn(ctx, AnalysisTurn{
			Message:   cycle.Messages[len(cycle.Messages)-1],
			ModelID:   cycle.ModelID,
			Retrieval: cycle.Retrieval,
		}, onToken)
	}

	c.store.SetPhase(session.PhaseStreaming)
	return c.api.SendChatTurn(ctx, ChatTurn{
		Messages:  cycle.Messages,
		ModelID:   cycle.ModelID,
		Retrieval: cycle.Retrieval,
	}, onToken)
}

// =============================================================================
// Actions and Reads
// =============================================================================

// LoadFromHistory resets the view to the cached exchange with the given id.
//
// A cycle still streaming keeps running, but its later snapshots and its
// answer are discarded. Returns false when no such item is cached.
func (c *Controller) LoadFromHistory(id int64) bool {
	item, ok := c.store.FindHistory(id)
	if !ok {
		return false
	}
	c.LoadHistoryItem(item)
	return true
}

// LoadHistoryItem resets the view to item.
func (c *Controller) LoadHistoryItem(item payload.HistoryItem) {
	epoch := c.store.LoadFromHistory(item)
	c.logger.Debug("view reset to history item",
		"history_id", item.ID,
		"epoch", epoch,
	)
}

// SetMode switches the mode used by the next send. Unknown modes are
// ignored and return false.
func (c *Controller) SetMode(mode string) bool {
	return c.store.SetMode(session.Mode(mode))
}

// SetSelectedModel selects a model, or the backend default with nil.
func (c *Controller) SetSelectedModel(id *int64) {
	c.store.SetSelectedModel(id)
}

// SetRetrieval toggles retrieval augmentation for later sends.
func (c *Controller) SetRetrieval(enabled bool) {
	c.store.SetRetrieval(enabled)
}

// Snapshot returns a read-only copy of the session state.
func (c *Controller) Snapshot() session.Snapshot {
	return c.store.Snapshot()
}

// EnabledConfigs returns the selectable model configs.
func (c *Controller) EnabledConfigs() []payload.ModelConfig {
	return c.store.EnabledConfigs()
}

// Subscribe registers a change listener on the session store.
func (c *Controller) Subscribe(l session.Listener) func() {
	return c.store.Subscribe(l)
}

func modelAttr(id *int64) any {
	if id == nil {
		return "default"
	}
	return *id
}
