// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging builds the structured logger used by the panel.
//
// Every component takes a plain *slog.Logger. This package decides where
// those records go:
//
//	┌──────────────────────────────────────────────────────────┐
//	│                       *slog.Logger                       │
//	│  ┌────────────┐  ┌────────────────┐  ┌────────────────┐  │
//	│  │   Output   │  │    log file    │  │    Exporter    │  │
//	│  │ (stderr)   │  │  (JSON, opt.)  │  │  (opt.)        │  │
//	│  └────────────┘  └────────────────┘  └────────────────┘  │
//	└──────────────────────────────────────────────────────────┘
//
// The chat view owns stdout, so console logs default to stderr and the
// interactive CLI usually runs with Quiet plus a log file.
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    LogDir: "~/.aleutian/logs",
//	})
//	if err != nil { ... }
//	defer logger.Close()
//	ctrl := conversation.New(conversation.Config{Logger: logger.Slog(), ...})
//
// # Security Considerations
//
// Nothing is redacted. Message contents are never logged by the panel;
// only lengths and ids are.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultService is the service attribute used when Config.Service is empty.
const DefaultService = "aleutian-panel"

// exportTimeout bounds a single Exporter.Export call.
const exportTimeout = time.Second

// =============================================================================
// Log Levels
// =============================================================================

// Level is a log severity. Debug < Info < Warn < Error. The zero value
// is LevelInfo.
type Level int

const (
	LevelDebug Level = iota - 1
	LevelInfo
	LevelWarn
	LevelError
)

// String returns "DEBUG", "INFO", "WARN", "ERROR", or "UNKNOWN".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name as given on the command line or in the
// config file. Matching is case-insensitive and "warning" is accepted.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func fromSlogLevel(l slog.Level) Level {
	switch {
	case l < slog.LevelInfo:
		return LevelDebug
	case l < slog.LevelWarn:
		return LevelInfo
	case l < slog.LevelError:
		return LevelWarn
	default:
		return LevelError
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures New. The zero value logs Info+ as text to stderr.
type Config struct {
	// Level is the minimum level for every destination.
	Level Level

	// LogDir enables a JSON log file named "{service}_{YYYY-MM-DD}.log".
	// A leading ~ expands to the home directory.
	LogDir string

	// Service is attached to every record. Default: DefaultService.
	Service string

	// JSON switches the console output to JSON. File output is always JSON.
	JSON bool

	// Quiet disables console output.
	Quiet bool

	// Output is the console destination. Default: os.Stderr.
	Output io.Writer

	// Exporter optionally receives every record at or above Level.
	Exporter Exporter
}

// =============================================================================
// Exporter
// =============================================================================

// Exporter receives log entries in addition to the console and file.
//
// Export is called synchronously from the logging goroutine, so it must
// not block. Export errors are dropped.
type Exporter interface {
	Export(ctx context.Context, entry Entry) error
	Close() error
}

// Entry is one exported record.
type Entry struct {
	Timestamp time.Time
	Level     Level
	Message   string
	Service   string
	// Attrs holds record and logger attributes. Grouped keys are joined
	// with ".".
	Attrs map[string]any
}

// =============================================================================
// Logger
// =============================================================================

// Logger owns the destinations behind a *slog.Logger.
//
// # Thread Safety
//
// Safe for concurrent use. Close may be called more than once.
type Logger struct {
	slog     *slog.Logger
	level    *slog.LevelVar
	file     *os.File
	exporter Exporter

	mu     sync.Mutex
	closed bool
}

// New builds a Logger from config.
//
// # Outputs
//
//   - *Logger: Always usable, even when err is non-nil
//   - error: Non-nil when the log file could not be opened; logging then
//     continues on the remaining destinations
func New(config Config) (*Logger, error) {
	level := new(slog.LevelVar)
	level.Set(config.Level.toSlogLevel())
	opts := &slog.HandlerOptions{Level: level}
	service := config.Service
	if service == "" {
		service = DefaultService
	}

	var handlers []slog.Handler
	if !config.Quiet {
		out := config.Output
		if out == nil {
			out = os.Stderr
		}
		if config.JSON {
			handlers = append(handlers, slog.NewJSONHandler(out, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(out, opts))
		}
	}

	logger := &Logger{level: level, exporter: config.Exporter}

	var fileErr error
	if config.LogDir != "" {
		file, err := openLogFile(expandPath(config.LogDir), service)
		if err != nil {
			fileErr = err
		} else {
			logger.file = file
			handlers = append(handlers, slog.NewJSONHandler(file, opts))
		}
	}

	if config.Exporter != nil {
		handlers = append(handlers, &exportHandler{
			exporter: config.Exporter,
			service:  service,
			level:    level,
		})
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(io.Discard, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}
	handler = handler.WithAttrs([]slog.Attr{slog.String("service", service)})

	logger.slog = slog.New(handler)
	return logger, fileErr
}

// Discard returns a logger that drops everything. Used by tests and by
// callers that pass no logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SetLevel changes the minimum level of every destination. Loggers derived
// from Slog earlier pick up the change.
func (l *Logger) SetLevel(level Level) {
	l.level.Set(level.toSlogLevel())
}

// Level returns the current minimum level.
func (l *Logger) Level() Level {
	return fromSlogLevel(l.level.Level())
}

// Slog returns the logger handed to components.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close syncs and closes the log file and closes the exporter.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	var errs []error
	if l.exporter != nil {
		if err := l.exporter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close exporter: %w", err))
		}
	}
	if l.file != nil {
		if err := l.file.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("sync log file: %w", err))
		}
		if err := l.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log file: %w", err))
		}
	}
	return errors.Join(errs...)
}

func openLogFile(dir, service string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// =============================================================================
// Handlers
// =============================================================================

// multiHandler fans records out to several handlers. Every enabled
// handler sees the record even when an earlier one fails.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// exportHandler turns records into Entries for an Exporter.
type exportHandler struct {
	exporter Exporter
	service  string
	level    slog.Leveler
	attrs    map[string]any
	prefix   string
}

func (h *exportHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *exportHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for k, v := range h.attrs {
		attrs[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		flattenAttr(attrs, h.prefix, a)
		return true
	})
	// The service attribute is carried on Entry itself.
	delete(attrs, "service")

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exportTimeout)
	defer cancel()
	_ = h.exporter.Export(ctx, Entry{
		Timestamp: r.Time,
		Level:     fromSlogLevel(r.Level),
		Message:   r.Message,
		Service:   h.service,
		Attrs:     attrs,
	})
	return nil
}

func (h *exportHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.clone()
	for _, a := range attrs {
		flattenAttr(next.attrs, h.prefix, a)
	}
	return next
}

func (h *exportHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.clone()
	next.prefix = h.prefix + name + "."
	return next
}

func (h *exportHandler) clone() *exportHandler {
	attrs := make(map[string]any, len(h.attrs))
	for k, v := range h.attrs {
		attrs[k] = v
	}
	return &exportHandler{
		exporter: h.exporter,
		service:  h.service,
		level:    h.level,
		attrs:    attrs,
		prefix:   h.prefix,
	}
}

func flattenAttr(dst map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range v.Group() {
			flattenAttr(dst, p, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	dst[prefix+a.Key] = v.Any()
}

// =============================================================================
// Built-in Exporters
// =============================================================================

// BufferedExporter keeps the most recent entries in memory.
type BufferedExporter struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
}

// NewBufferedExporter keeps at most capacity entries; capacity <= 0 keeps
// everything.
func NewBufferedExporter(capacity int) *BufferedExporter {
	return &BufferedExporter{capacity: capacity}
}

// Export appends entry, evicting the oldest entry when full.
func (e *BufferedExporter) Export(_ context.Context, entry Entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.capacity > 0 && len(e.entries) >= e.capacity {
		copy(e.entries, e.entries[1:])
		e.entries = e.entries[:len(e.entries)-1]
	}
	e.entries = append(e.entries, entry)
	return nil
}

// Close is a no-op.
func (e *BufferedExporter) Close() error { return nil }

// Entries returns a copy of the buffered entries, oldest first.
func (e *BufferedExporter) Entries() []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Entry, len(e.entries))
	copy(out, e.entries)
	return out
}

var _ Exporter = (*BufferedExporter)(nil)
