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
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianPanel/pkg/payload"
	"github.com/AleutianAI/AleutianPanel/pkg/session"
)

const chatHelp = `Commands:
  /mode chat|analysis     switch how the next message is sent
  /model ID|default       select a model for later messages
  /retrieval on|off       toggle retrieval augmentation
  /models                 list selectable models
  /history                list recent exchanges
  /load ID                show a past exchange as the conversation
  /help                   show this help
  exit, quit              leave the chat`

// handleCommand runs one slash command. Problems are reported to the user
// and never end the session.
func (r *chatRunner) handleCommand(ctx context.Context, line string) {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]

	switch name {
	case "/help":
		fmt.Fprintln(r.out, chatHelp)

	case "/mode":
		if len(args) != 1 {
			r.usage("/mode chat|analysis")
			return
		}
		if !r.ctrl.SetMode(args[0]) {
			r.problem("unknown mode %q, expected chat or analysis", args[0])
			return
		}
		r.notice("mode: %s", args[0])

	case "/model":
		if len(args) != 1 {
			r.usage("/model ID|default")
			return
		}
		r.selectModel(args[0])

	case "/retrieval":
		if len(args) != 1 {
			r.usage("/retrieval on|off")
			return
		}
		enabled, ok := parseOnOff(args[0])
		if !ok {
			r.usage("/retrieval on|off")
			return
		}
		r.ctrl.SetRetrieval(enabled)
		r.notice("retrieval: %s", onOff(enabled))

	case "/models":
		snap := r.ctrl.Snapshot()
		printModels(r.out, r.ctrl.EnabledConfigs(), snap.SelectedModel)

	case "/history":
		items := r.ctrl.Snapshot().History
		if len(items) == 0 {
			items = r.ctrl.RefreshHistory(ctx)
		}
		printHistory(r.out, items)

	case "/load":
		if len(args) != 1 {
			r.usage("/load ID")
			return
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			r.problem("invalid history id %q", args[0])
			return
		}
		if !r.ctrl.LoadFromHistory(id) {
			r.problem("no history item %d; run /history to list them", id)
			return
		}
		r.renderer.reset()
		printTranscript(r.out, r.ctrl.Snapshot().Messages)

	default:
		r.problem("unknown command %s; type /help", name)
	}
}

func (r *chatRunner) selectModel(arg string) {
	if arg == "default" {
		r.ctrl.SetSelectedModel(nil)
		r.notice("model: backend default")
		return
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		r.problem("invalid model id %q", arg)
		return
	}
	for _, cfg := range r.ctrl.EnabledConfigs() {
		if cfg.ID == id {
			r.ctrl.SetSelectedModel(session.ModelID(id))
			r.notice("model: %s", cfg.Name)
			return
		}
	}
	r.problem("model %d is not enabled; run /models to list them", id)
}

func (r *chatRunner) usage(text string) {
	fmt.Fprintln(r.out, styles.Warning.Render("usage: "+text))
}

func (r *chatRunner) problem(format string, args ...any) {
	fmt.Fprintln(r.out, styles.Error.Render(fmt.Sprintf(format, args...)))
}

func (r *chatRunner) notice(format string, args ...any) {
	fmt.Fprintln(r.out, styles.Muted.Render(fmt.Sprintf(format, args...)))
}

// =============================================================================
// Shared Printers
// =============================================================================

// printModels lists configs, marking the selected one. Disabled configs
// are shown by the models command only.
func printModels(out io.Writer, configs []payload.ModelConfig, selected *int64) {
	if len(configs) == 0 {
		fmt.Fprintln(out, styles.Muted.Render("No models available."))
		return
	}
	for _, cfg := range configs {
		icon := iconEnabled
		switch {
		case !cfg.Enabled:
			icon = iconDisabled
		case selected != nil && *selected == cfg.ID:
			icon = iconSelected
		}
		line := fmt.Sprintf("%s %4d  %s", icon, cfg.ID, cfg.Name)
		if !cfg.Enabled {
			line = styles.Muted.Render(line + " (disabled)")
		}
		fmt.Fprintln(out, line)
	}
}

// printHistory lists exchanges, newest first as delivered.
func printHistory(out io.Writer, items []payload.HistoryItem) {
	if len(items) == 0 {
		fmt.Fprintln(out, styles.Muted.Render("No history yet."))
		return
	}
	for _, item := range items {
		meta := item.ModelName
		if item.CreatedAt != "" {
			meta += ", " + item.CreatedAt
		}
		fmt.Fprintf(out, "%6d  %s %s\n", item.ID, truncate(oneLine(item.Question), 60), styles.Muted.Render("("+meta+")"))
	}
}

func printTranscript(out io.Writer, msgs []session.Message) {
	for _, m := range msgs {
		label := styles.Prompt.Render("you")
		if m.Role == session.RoleAssistant {
			label = styles.Assistant.Render("assistant")
		}
		fmt.Fprintf(out, "%s %s\n", label, m.Content)
	}
}

func modelLabel(selected *int64, configs []payload.ModelConfig) string {
	if selected == nil {
		return "default"
	}
	for _, cfg := range configs {
		if cfg.ID == *selected {
			return cfg.Name
		}
	}
	return strconv.FormatInt(*selected, 10)
}

func parseOnOff(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "on", "yes":
		return true, true
	case "off", "no":
		return false, true
	}
	b, err := strconv.ParseBool(s)
	return b, err == nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
