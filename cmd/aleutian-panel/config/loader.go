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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ALEUTIAN_PANEL_"

// LookupEnvFunc matches os.LookupEnv so tests can supply their own
// environment.
type LookupEnvFunc func(key string) (string, bool)

// DefaultPath returns ~/.aleutian/panel.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".aleutian", "panel.yaml"), nil
}

// Load reads the config at path, creating a default file on first run,
// then applies environment overrides and validates the result.
//
// # Inputs
//
//   - path: Config file; empty means DefaultPath()
//   - lookup: Environment source; nil means os.LookupEnv
//
// # Outputs
//
//   - PanelConfig: Defaults overlaid with the file and the environment
//   - bool: true when the file did not exist and was created
//   - error: Read, parse, override, or validation failure
func Load(path string, lookup LookupEnvFunc) (PanelConfig, bool, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return PanelConfig{}, false, err
		}
		path = p
	}

	created := false
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := createDefault(path); err != nil {
			return PanelConfig{}, false, err
		}
		created = true
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return PanelConfig{}, created, fmt.Errorf("failed to read the config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return PanelConfig{}, created, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return PanelConfig{}, created, err
	}
	if err := cfg.Validate(); err != nil {
		return PanelConfig{}, created, err
	}
	return cfg, created, nil
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// applyEnv overlays ALEUTIAN_PANEL_* variables onto cfg.
func applyEnv(cfg *PanelConfig, lookup LookupEnvFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	str("BASE_URL", &cfg.API.BaseURL)
	str("MODE", &cfg.Chat.Mode)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_DIR", &cfg.Logging.Dir)
	str("METRICS_ADDR", &cfg.Metrics.Addr)
	str("TRACE_EXPORTER", &cfg.Tracing.Exporter)
	str("OTLP_ENDPOINT", &cfg.Tracing.OTLPEndpoint)

	if v, ok := lookup(EnvPrefix + "TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sTIMEOUT: %w", EnvPrefix, err)
		}
		cfg.API.Timeout = d
	}
	if v, ok := lookup(EnvPrefix + "RETRIEVAL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sRETRIEVAL: %w", EnvPrefix, err)
		}
		cfg.Chat.Retrieval = b
	}
	if v, ok := lookup(EnvPrefix + "HISTORY_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sHISTORY_LIMIT: %w", EnvPrefix, err)
		}
		cfg.Chat.HistoryLimit = n
	}
	if v, ok := lookup(EnvPrefix + "LOG_JSON"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sLOG_JSON: %w", EnvPrefix, err)
		}
		cfg.Logging.JSON = b
	}
	return nil
}
