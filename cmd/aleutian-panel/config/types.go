// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// PanelConfig is the on-disk panel configuration (~/.aleutian/panel.yaml).
type PanelConfig struct {
	// API: where the panel API lives
	API APIConfig `yaml:"api"`

	// Chat: session defaults for the chat command
	Chat ChatConfig `yaml:"chat"`

	// Logging: console level and optional log directory
	Logging LoggingConfig `yaml:"logging"`

	// Metrics: optional Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing: where request cycle spans are exported
	Tracing TracingConfig `yaml:"tracing"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url" validate:"required,url"` // e.g. http://localhost:12210
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`          // e.g. 5m
}

type ChatConfig struct {
	Mode         string `yaml:"mode" validate:"oneof=chat analysis"`
	Retrieval    bool   `yaml:"retrieval"`
	HistoryLimit int    `yaml:"history_limit" validate:"gt=0,lte=200"`
	// InputHistory is how many typed lines up-arrow can recall.
	InputHistory int `yaml:"input_history" validate:"gte=0,lte=1000"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Dir   string `yaml:"dir,omitempty"`
	JSON  bool   `yaml:"json"`
}

type MetricsConfig struct {
	// Addr enables /metrics when set, e.g. "127.0.0.1:9464".
	Addr string `yaml:"addr,omitempty" validate:"omitempty,hostname_port"`
}

type TracingConfig struct {
	// Exporter is "none", "stdout" (pretty JSON on stderr) or "otlp".
	Exporter     string `yaml:"exporter" validate:"oneof=none stdout otlp"`
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty" validate:"omitempty,hostname_port"`
	Insecure     bool   `yaml:"insecure"`
}

var configValidate = validator.New()

// Validate checks field constraints.
func (c PanelConfig) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid panel config: %w", err)
	}
	if c.Tracing.Exporter == "otlp" && c.Tracing.OTLPEndpoint == "" {
		return fmt.Errorf("invalid panel config: tracing.otlp_endpoint is required for the otlp exporter")
	}
	return nil
}

func DefaultConfig() PanelConfig {
	return PanelConfig{
		API: APIConfig{
			BaseURL: "http://localhost:12210",
			Timeout: 5 * time.Minute,
		},
		Chat: ChatConfig{
			Mode:         "chat",
			Retrieval:    true,
			HistoryLimit: 20,
			InputHistory: 50,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "~/.aleutian/logs",
		},
		Tracing: TracingConfig{
			Exporter: "none",
			Insecure: true,
		},
	}
}
