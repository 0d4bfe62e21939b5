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
	"strings"

	"github.com/AleutianAI/AleutianPanel/pkg/conversation"
	"github.com/AleutianAI/AleutianPanel/pkg/session"
)

// chatRunnerConfig holds what a chatRunner needs.
type chatRunnerConfig struct {
	Controller *conversation.Controller // Initialized controller (required)
	Input      InputReader              // Line source (required)
	Output     io.Writer                // Chat transcript destination (required)
	Logger     *slog.Logger             // Optional, defaults to slog.Default()
	// Banner prints the session header before the first prompt.
	Banner bool
}

// chatRunner drives the interactive loop: read a line, dispatch a slash
// command or send it, render the reply.
//
// # Description
//
// Streaming snapshots reach the terminal through a session listener while
// Send is blocked; Send's result decides how the line is closed:
//
//   - completed: the assistant message is written (suffix only when the
//     stream already showed its beginning)
//   - failed: the error message is written in the error style
//   - superseded: nothing more is written; the view was reset
//
// # Limitations
//
//   - Not reusable after Run returns
//
// # Assumptions
//
//   - The controller was initialized with Init
type chatRunner struct {
	ctrl        *conversation.Controller
	input       InputReader
	out         io.Writer
	logger      *slog.Logger
	renderer    *streamRenderer
	banner      bool
	unsubscribe func()
}

func newChatRunner(cfg chatRunnerConfig) *chatRunner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &chatRunner{
		ctrl:     cfg.Controller,
		input:    cfg.Input,
		out:      cfg.Output,
		logger:   logger,
		renderer: newStreamRenderer(cfg.Output, styles.Assistant.Render("assistant")+" "),
		banner:   cfg.Banner,
	}
	r.unsubscribe = r.ctrl.Subscribe(func(kind session.ChangeKind) {
		if kind != session.ChangeStreaming {
			return
		}
		r.renderer.update(r.ctrl.Snapshot().Streaming)
	})
	return r
}

// Run executes the loop until exit, EOF, or ctx cancellation.
//
// # Outputs
//
//   - error: nil on "exit"/"quit" or EOF, ctx.Err() on cancellation, or the
//     input error
func (r *chatRunner) Run(ctx context.Context) error {
	if r.banner {
		r.printHeader()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		prompt := r.prompt()
		if p, ok := r.input.(PromptingInputReader); ok {
			p.SetPrompt(prompt)
		} else {
			fmt.Fprint(r.out, prompt)
		}

		line, err := r.input.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			r.logger.Error("failed to read input", "error", err)
			return fmt.Errorf("read input: %w", err)
		}

		switch {
		case line == "":
			continue
		case isExitCommand(line):
			fmt.Fprintln(r.out, styles.Muted.Render("Goodbye."))
			return nil
		case strings.HasPrefix(line, "/"):
			r.handleCommand(ctx, line)
		default:
			r.send(ctx, line)
		}
	}
}

// Close detaches the renderer and waits for background history refreshes.
func (r *chatRunner) Close() error {
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
	return r.ctrl.Close()
}

func (r *chatRunner) send(ctx context.Context, line string) {
	result := r.ctrl.Send(ctx, line)
	switch result {
	case conversation.SendCompleted:
		r.renderer.finish(r.lastAssistantMessage())
	case conversation.SendFailed:
		r.renderer.reset()
		fmt.Fprintln(r.out, styles.Error.Render(r.lastAssistantMessage()))
	case conversation.SendSuperseded:
		r.renderer.reset()
	case conversation.SendIgnoredBusy:
		fmt.Fprintln(r.out, styles.Warning.Render("A reply is still streaming; try again when it finishes."))
	case conversation.SendIgnoredEmpty:
	}
	r.logger.Debug("send finished", "result", result.String())
}

func (r *chatRunner) lastAssistantMessage() string {
	msgs := r.ctrl.Snapshot().Messages
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == session.RoleAssistant {
			return msgs[i].Content
		}
	}
	return ""
}

func (r *chatRunner) prompt() string {
	return styles.Prompt.Render(string(r.ctrl.Snapshot().Mode)+">") + " "
}

func (r *chatRunner) printHeader() {
	snap := r.ctrl.Snapshot()
	lines := []string{
		styles.Title.Render("Aleutian Panel"),
		fmt.Sprintf("mode: %s   model: %s   retrieval: %s",
			snap.Mode, modelLabel(snap.SelectedModel, snap.Configs), onOff(snap.Retrieval)),
		styles.Muted.Render("Type /help for commands, exit to quit."),
	}
	fmt.Fprintln(r.out, styles.Box.Render(strings.Join(lines, "\n")))
}

// isExitCommand reports whether input ends the session. Case-sensitive.
func isExitCommand(input string) bool {
	return input == "exit" || input == "quit"
}
