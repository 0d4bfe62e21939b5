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
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianPanel/pkg/session"
)

// chatOptions holds the chat command flags.
type chatOptions struct {
	mode         string
	modelID      int64
	noRetrieval  bool
	historyLimit int
	messages     []string
}

// newRootCmd builds the command tree. A fresh tree per call keeps flag
// state out of package globals.
func newRootCmd() *cobra.Command {
	var opts globalOptions

	root := &cobra.Command{
		Use:   "aleutian-panel",
		Short: "Chat with the Aleutian panel API from the terminal",
		Long: `aleutian-panel is a terminal client for the Aleutian panel API.
It keeps a conversation session, streams answers as they arrive, and can
reopen past exchanges from the server's history.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default ~/.aleutian/panel.yaml)")
	pf.StringVar(&opts.baseURL, "base-url", "", "panel API base URL (overrides config)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus /metrics on this address")

	root.AddCommand(
		newChatCmd(&opts),
		newHistoryCmd(&opts),
		newModelsCmd(&opts),
	)
	return root
}

func newChatCmd(global *globalOptions) *cobra.Command {
	var opts chatOptions

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Example: `  aleutian-panel chat
  aleutian-panel chat --mode analysis --model 3
  aleutian-panel chat -m "Summarize the last incident report"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, global, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.mode, "mode", "", "send mode: chat or analysis (default from config)")
	f.Int64Var(&opts.modelID, "model", 0, "model config id (default: first enabled model)")
	f.BoolVar(&opts.noRetrieval, "no-retrieval", false, "disable retrieval augmentation")
	f.IntVar(&opts.historyLimit, "history-limit", 0, "history items to fetch (default from config)")
	f.StringArrayVarP(&opts.messages, "message", "m", nil, "send this message and exit (repeatable)")
	return cmd
}

func runChat(cmd *cobra.Command, global *globalOptions, opts chatOptions) error {
	ctx := cmd.Context()
	interactive := len(opts.messages) == 0 && cmd.InOrStdin() == os.Stdin

	a, err := newApp(ctx, *global, interactive, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), styles.Warning.Render("shutdown: "+err.Error()))
		}
	}()

	modeName := a.cfg.Chat.Mode
	if opts.mode != "" {
		modeName = opts.mode
	}
	mode, ok := session.ParseMode(modeName)
	if !ok {
		return fmt.Errorf("unknown mode %q, expected chat or analysis", modeName)
	}
	if opts.modelID < 0 {
		return fmt.Errorf("invalid model id %d", opts.modelID)
	}
	retrieval := a.cfg.Chat.Retrieval && !opts.noRetrieval

	ctrl := a.newController(session.Options{Mode: mode, Retrieval: &retrieval}, opts.historyLimit)
	if opts.modelID > 0 {
		ctrl.SetSelectedModel(session.ModelID(opts.modelID))
	}
	ctrl.Init(ctx)

	var input InputReader
	switch {
	case len(opts.messages) > 0:
		input = newScriptedReader(opts.messages...)
	case interactive:
		input = newInputReader(a.cfg.Chat.InputHistory)
		a.watchConfig(ctx)
	default:
		input = newLineReader(cmd.InOrStdin())
	}

	runner := newChatRunner(chatRunnerConfig{
		Controller: ctrl,
		Input:      input,
		Output:     cmd.OutOrStdout(),
		Logger:     a.log,
		Banner:     len(opts.messages) == 0,
	})
	defer runner.Close()

	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func newHistoryCmd(global *globalOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent exchanges from the panel history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), *global, false, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			ctrl := a.newController(session.Options{}, limit)
			defer ctrl.Close()
			printHistory(cmd.OutOrStdout(), ctrl.RefreshHistory(cmd.Context()))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "number of exchanges (default from config)")
	return cmd
}

func newModelsCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List model configs and which are enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), *global, false, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			ctrl := a.newController(session.Options{}, 0)
			defer ctrl.Close()
			configs := ctrl.RefreshConfigs(cmd.Context())
			printModels(cmd.OutOrStdout(), configs, ctrl.Snapshot().SelectedModel)
			return nil
		},
	}
}
