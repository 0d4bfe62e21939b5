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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AleutianAI/AleutianPanel/cmd/aleutian-panel/config"
	"github.com/AleutianAI/AleutianPanel/pkg/conversation"
	"github.com/AleutianAI/AleutianPanel/pkg/logging"
	"github.com/AleutianAI/AleutianPanel/pkg/panelapi"
	"github.com/AleutianAI/AleutianPanel/pkg/session"
)

// globalOptions holds the persistent flags. Non-empty values override the
// config file.
type globalOptions struct {
	configPath  string
	baseURL     string
	logLevel    string
	metricsAddr string
}

// app is the process-wide wiring shared by every command.
type app struct {
	cfg        config.PanelConfig
	configPath string
	// levelPinned is set when --log-level overrides the file.
	levelPinned bool

	logger   *logging.Logger
	log      *slog.Logger
	registry *prometheus.Registry
	metrics  *conversation.Metrics
	client   *panelapi.Client

	shutdowns []shutdownFunc
}

// newApp loads configuration and builds the logger, telemetry, and API
// client.
//
// # Inputs
//
//   - ctx: Context for telemetry setup
//   - opts: Persistent flag values
//   - quietConsole: Route logs only to the log file (interactive chat)
//   - stderr: Console log destination
func newApp(ctx context.Context, opts globalOptions, quietConsole bool, stderr io.Writer) (*app, error) {
	cfg, created, err := config.Load(opts.configPath, nil)
	if err != nil {
		return nil, err
	}
	if opts.baseURL != "" {
		cfg.API.BaseURL = opts.baseURL
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.metricsAddr != "" {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logger, logErr := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: serviceName,
		JSON:    cfg.Logging.JSON,
		Quiet:   quietConsole && cfg.Logging.Dir != "",
		Output:  stderr,
	})
	log := logger.Slog()
	if logErr != nil {
		log.Warn("file logging disabled", "dir", cfg.Logging.Dir, "error", logErr)
	}
	path := opts.configPath
	if path == "" {
		path, _ = config.DefaultPath()
	}
	if created {
		log.Info("first run, created default config", "path", path)
	}

	a := &app{
		cfg:         cfg,
		configPath:  path,
		levelPinned: opts.logLevel != "",
		logger:      logger,
		log:         log,
		registry:    newRegistry(),
	}
	a.metrics = conversation.NewMetrics(a.registry)

	shutdownTracing, err := setupTracing(ctx, cfg.Tracing, stderr)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	a.shutdowns = append(a.shutdowns, shutdownTracing)

	if cfg.Metrics.Addr != "" {
		a.shutdowns = append(a.shutdowns, serveMetrics(cfg.Metrics.Addr, a.registry, log))
	}

	a.client = panelapi.New(panelapi.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Logger:  log,
	})

	log.Debug("panel configured",
		"base_url", cfg.API.BaseURL,
		"trace_exporter", cfg.Tracing.Exporter,
		"metrics_addr", cfg.Metrics.Addr,
	)
	return a, nil
}

// newController builds a controller over a fresh session.
func (a *app) newController(opts session.Options, historyLimit int) *conversation.Controller {
	if historyLimit <= 0 {
		historyLimit = a.cfg.Chat.HistoryLimit
	}
	return conversation.New(conversation.Config{
		API:          a.client,
		Store:        session.NewStore(opts),
		Logger:       a.log,
		HistoryLimit: historyLimit,
		Metrics:      a.metrics,
	})
}

// watchConfig applies log level changes from the config file until Close.
// Other settings only take effect on the next run. Failure to watch is
// logged and otherwise ignored.
func (a *app) watchConfig(ctx context.Context) {
	if a.configPath == "" || a.levelPinned {
		return
	}
	w, err := config.NewWatcher(a.configPath, a.applyReload, config.WatcherOptions{Logger: a.log})
	if err == nil {
		err = w.Start(ctx)
	}
	if err != nil {
		a.log.Warn("config watching disabled", "path", a.configPath, "error", err)
		if w != nil {
			w.Stop()
		}
		return
	}
	a.shutdowns = append(a.shutdowns, func(context.Context) error {
		w.Stop()
		return nil
	})
}

func (a *app) applyReload(cfg config.PanelConfig) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return
	}
	if level != a.logger.Level() {
		a.logger.SetLevel(level)
		a.log.Info("log level changed", "level", level.String())
	}
}

// Close shuts telemetry down in reverse order, then closes the logger.
func (a *app) Close() error {
	var errs []error
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		if err := a.shutdowns[i](context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.logger.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close logger: %w", err))
	}
	return errors.Join(errs...)
}
