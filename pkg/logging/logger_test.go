// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{" warn ", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"Error", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFromSlogLevel(t *testing.T) {
	tests := []struct {
		in   slog.Level
		want Level
	}{
		{slog.LevelDebug - 4, LevelDebug},
		{slog.LevelDebug, LevelDebug},
		{slog.LevelInfo, LevelInfo},
		{slog.LevelWarn, LevelWarn},
		{slog.LevelError, LevelError},
		{slog.LevelError + 4, LevelError},
	}
	for _, tt := range tests {
		if got := fromSlogLevel(tt.in); got != tt.want {
			t.Errorf("fromSlogLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestNew_ConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Output: &buf})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer logger.Close()

	logger.Slog().Debug("hidden")
	logger.Slog().Info("history refreshed", "count", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug record should be filtered at Info level")
	}
	if !strings.Contains(out, "history refreshed") || !strings.Contains(out, "count=3") {
		t.Errorf("missing record in output: %q", out)
	}
	if !strings.Contains(out, "service="+DefaultService) {
		t.Errorf("missing default service attribute: %q", out)
	}
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	exporter := NewBufferedExporter(10)
	logger, _ := New(Config{Output: &buf, Exporter: exporter})
	defer logger.Close()

	derived := logger.Slog().With("component", "chat")
	derived.Debug("before")

	logger.SetLevel(LevelDebug)
	if logger.Level() != LevelDebug {
		t.Fatalf("Level() = %v, want DEBUG", logger.Level())
	}
	derived.Debug("after")

	out := buf.String()
	if strings.Contains(out, "before") {
		t.Errorf("debug record logged before SetLevel: %q", out)
	}
	if !strings.Contains(out, "after") {
		t.Errorf("derived logger did not pick up new level: %q", out)
	}
	if got := len(exporter.Entries()); got != 1 {
		t.Errorf("exporter entries = %d, want 1", got)
	}
}

func TestNew_JSONConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Config{Output: &buf, JSON: true, Service: "panel-test"})
	defer logger.Close()

	logger.Slog().Warn("send failed", "reason", "timeout")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("console output is not JSON: %v", err)
	}
	if record["msg"] != "send failed" || record["service"] != "panel-test" || record["reason"] != "timeout" {
		t.Errorf("unexpected record: %v", record)
	}
}

func TestNew_Quiet(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Config{Output: &buf, Quiet: true})
	defer logger.Close()

	logger.Slog().Error("nobody hears this")
	if buf.Len() != 0 {
		t.Errorf("quiet logger wrote %q", buf.String())
	}
}

func TestNew_LogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	logger, err := New(Config{LogDir: dir, Quiet: true, Service: "panel"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger.Slog().Info("cycle completed", "mode", "chat")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "panel_*.log"))
	if len(matches) != 1 {
		t.Fatalf("expected one log file, got %v", matches)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &record); err != nil {
		t.Fatalf("file output is not JSON: %v", err)
	}
	if record["msg"] != "cycle completed" || record["mode"] != "chat" {
		t.Errorf("unexpected record: %v", record)
	}
}

func TestNew_LogFileFailureStillLogs(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	logger, err := New(Config{Output: &buf, LogDir: filepath.Join(blocker, "logs")})
	if err == nil {
		t.Error("expected error when log dir cannot be created")
	}
	if logger == nil {
		t.Fatal("logger must be usable even on error")
	}
	defer logger.Close()

	logger.Slog().Info("still here")
	if !strings.Contains(buf.String(), "still here") {
		t.Error("console output should survive a file failure")
	}
}

func TestNew_NoDestinations(t *testing.T) {
	logger, err := New(Config{Quiet: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer logger.Close()
	logger.Slog().Info("dropped")
}

func TestLogger_Close_Idempotent(t *testing.T) {
	logger, _ := New(Config{LogDir: t.TempDir(), Quiet: true})
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

type failingCloseExporter struct {
	BufferedExporter
}

func (e *failingCloseExporter) Close() error { return errors.New("close failed") }

func TestLogger_Close_ExporterError(t *testing.T) {
	logger, _ := New(Config{Quiet: true, Exporter: &failingCloseExporter{}})
	err := logger.Close()
	if err == nil || !strings.Contains(err.Error(), "close exporter") {
		t.Errorf("Close() error = %v, want close exporter error", err)
	}
}

// =============================================================================
// Exporter Tests
// =============================================================================

func TestLogger_Exporter_ReceivesEntries(t *testing.T) {
	exporter := NewBufferedExporter(0)
	logger, _ := New(Config{Quiet: true, Level: LevelInfo, Exporter: exporter, Service: "panel"})
	defer logger.Close()

	log := logger.Slog().With("request_id", "r-1")
	log.Debug("filtered")
	log.Info("stream completed", "answer_length", 5)
	log.WithGroup("cycle").Warn("superseded", "epoch", 2)

	entries := exporter.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	first := entries[0]
	if first.Level != LevelInfo || first.Message != "stream completed" || first.Service != "panel" {
		t.Errorf("unexpected first entry: %+v", first)
	}
	if first.Attrs["request_id"] != "r-1" {
		t.Errorf("logger attribute missing: %v", first.Attrs)
	}
	if first.Attrs["answer_length"] != int64(5) {
		t.Errorf("record attribute missing: %v", first.Attrs)
	}
	if _, ok := first.Attrs["service"]; ok {
		t.Error("service should be carried on Entry, not Attrs")
	}

	second := entries[1]
	if second.Level != LevelWarn {
		t.Errorf("second level = %v, want WARN", second.Level)
	}
	if second.Attrs["cycle.epoch"] != int64(2) {
		t.Errorf("grouped attribute missing: %v", second.Attrs)
	}
}

func TestLogger_Exporter_GroupAttr(t *testing.T) {
	exporter := NewBufferedExporter(0)
	logger, _ := New(Config{Quiet: true, Exporter: exporter})
	defer logger.Close()

	logger.Slog().Info("init", slog.Group("counts", "configs", 2, "history", 4))

	attrs := exporter.Entries()[0].Attrs
	if attrs["counts.configs"] != int64(2) || attrs["counts.history"] != int64(4) {
		t.Errorf("unexpected attrs: %v", attrs)
	}
}

func TestLogger_Exporter_WithConsole(t *testing.T) {
	var buf bytes.Buffer
	exporter := NewBufferedExporter(0)
	logger, _ := New(Config{Output: &buf, Exporter: exporter})
	defer logger.Close()

	logger.Slog().Info("both")

	if !strings.Contains(buf.String(), "both") {
		t.Error("console missing record")
	}
	if len(exporter.Entries()) != 1 {
		t.Error("exporter missing record")
	}
}

func TestBufferedExporter_Capacity(t *testing.T) {
	exporter := NewBufferedExporter(2)
	for _, msg := range []string{"a", "b", "c"} {
		_ = exporter.Export(context.Background(), Entry{Message: msg})
	}

	entries := exporter.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message != "b" || entries[1].Message != "c" {
		t.Errorf("expected oldest evicted, got %v, %v", entries[0].Message, entries[1].Message)
	}
}

func TestBufferedExporter_EntriesReturnsCopy(t *testing.T) {
	exporter := NewBufferedExporter(0)
	_ = exporter.Export(context.Background(), Entry{Message: "original"})

	entries := exporter.Entries()
	entries[0].Message = "changed"

	if exporter.Entries()[0].Message != "original" {
		t.Error("Entries() must return a copy")
	}
}

func TestBufferedExporter_ConcurrentExport(t *testing.T) {
	exporter := NewBufferedExporter(0)
	logger, _ := New(Config{Quiet: true, Exporter: exporter})
	defer logger.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				logger.Slog().Info("tick", "worker", n)
			}
		}(i)
	}
	wg.Wait()

	if got := len(exporter.Entries()); got != 100 {
		t.Errorf("expected 100 entries, got %d", got)
	}
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		in   string
		want string
	}{
		{"~/.aleutian/logs", filepath.Join(home, ".aleutian/logs")},
		{"~", home},
		{"/var/log", "/var/log"},
		{"relative/path", "relative/path"},
		{"~other/logs", "~other/logs"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := expandPath(tt.in); got != tt.want {
				t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDiscard(t *testing.T) {
	if Discard() == nil {
		t.Fatal("Discard() returned nil")
	}
	Discard().Error("dropped")
}
