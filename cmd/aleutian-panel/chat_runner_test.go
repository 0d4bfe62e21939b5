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
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPanel/pkg/conversation"
	"github.com/AleutianAI/AleutianPanel/pkg/logging"
	"github.com/AleutianAI/AleutianPanel/pkg/session"
)

// =============================================================================
// Test Helpers
// =============================================================================

// scriptedAPI answers every chat turn by streaming tokens and every
// analysis turn with analysisAnswer or analysisErr.
type scriptedAPI struct {
	mu             sync.Mutex
	configs        []any
	history        any
	tokens         []string
	analysisAnswer string
	analysisErr    error
	chatTurns      []conversation.ChatTurn
	analysisTurns  []conversation.AnalysisTurn
	// onChat runs inside a chat turn, before tokens are delivered.
	onChat func()
}

func (a *scriptedAPI) FetchModelConfigs(context.Context) ([]any, error) {
	return a.configs, nil
}

func (a *scriptedAPI) FetchHistory(context.Context, int) (any, error) {
	if a.history == nil {
		return map[string]any{"items": []any{}}, nil
	}
	return a.history, nil
}

func (a *scriptedAPI) SendChatTurn(_ context.Context, turn conversation.ChatTurn, onToken conversation.TokenFunc) (string, error) {
	a.mu.Lock()
	a.chatTurns = append(a.chatTurns, turn)
	onChat := a.onChat
	a.mu.Unlock()

	if onChat != nil {
		onChat()
	}
	var acc strings.Builder
	for _, tok := range a.tokens {
		acc.WriteString(tok)
		onToken(acc.String())
	}
	return acc.String(), nil
}

func (a *scriptedAPI) SendAnalysisTurn(_ context.Context, turn conversation.AnalysisTurn, _ conversation.TokenFunc) (string, error) {
	a.mu.Lock()
	a.analysisTurns = append(a.analysisTurns, turn)
	a.mu.Unlock()
	return a.analysisAnswer, a.analysisErr
}

func defaultAPI() *scriptedAPI {
	return &scriptedAPI{
		configs: []any{
			map[string]any{"id": 1, "name": "Llama", "enabled": false},
			map[string]any{"id": 2, "name": "Mistral"},
			map[string]any{"id": 3, "name": "Qwen", "enabled": true},
		},
		history: map[string]any{"items": []any{
			map[string]any{"id": 41, "question": "What is Aleutian?", "response": "A private AI appliance.", "model_name": "Mistral"},
		}},
		tokens: []string{"He", "llo"},
	}
}

func runScript(t *testing.T, api *scriptedAPI, lines ...string) (string, *conversation.Controller) {
	t.Helper()
	ctrl := conversation.New(conversation.Config{
		API:    api,
		Store:  session.NewStore(session.Options{}),
		Logger: logging.Discard(),
	})
	ctrl.Init(context.Background())

	var out bytes.Buffer
	runner := newChatRunner(chatRunnerConfig{
		Controller: ctrl,
		Input:      newScriptedReader(lines...),
		Output:     &out,
		Logger:     logging.Discard(),
	})
	require.NoError(t, runner.Run(context.Background()))
	require.NoError(t, runner.Close())
	return out.String(), ctrl
}

// =============================================================================
// Chat Loop Tests
// =============================================================================

func TestChatRunner_StreamsReply(t *testing.T) {
	out, ctrl := runScript(t, defaultAPI(), "Hi", "exit")

	assert.Contains(t, out, "He"+"llo\n")
	assert.Contains(t, out, "Goodbye.")

	msgs := ctrl.Snapshot().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, session.Message{Role: session.RoleUser, Content: "Hi"}, msgs[0])
	assert.Equal(t, session.Message{Role: session.RoleAssistant, Content: "Hello"}, msgs[1])
}

func TestChatRunner_EOFEndsSession(t *testing.T) {
	out, ctrl := runScript(t, defaultAPI(), "Hi")

	assert.NotContains(t, out, "Goodbye.")
	assert.Len(t, ctrl.Snapshot().Messages, 2)
}

func TestChatRunner_BlankLinesIgnored(t *testing.T) {
	api := defaultAPI()
	_, ctrl := runScript(t, api, "", "   ", "quit")

	assert.Empty(t, ctrl.Snapshot().Messages)
	assert.Empty(t, api.chatTurns)
}

func TestChatRunner_PromptShowsMode(t *testing.T) {
	out, _ := runScript(t, defaultAPI(), "/mode analysis", "exit")

	assert.Contains(t, out, "chat>")
	assert.Contains(t, out, "analysis>")
}

func TestChatRunner_AnalysisFailure(t *testing.T) {
	api := defaultAPI()
	api.analysisErr = errors.New("timeout")

	out, ctrl := runScript(t, api, "/mode analysis", "X", "exit")

	assert.Contains(t, out, "Analyzing…")
	assert.Contains(t, out, "Error: timeout")
	msgs := ctrl.Snapshot().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "Error: timeout", msgs[1].Content)
}

func TestChatRunner_EmptyAnalysisAnswer(t *testing.T) {
	out, _ := runScript(t, defaultAPI(), "/mode analysis", "Check", "exit")

	assert.Contains(t, out, conversation.NoAnswerPlaceholder)
}

func TestChatRunner_CancelledContext(t *testing.T) {
	ctrl := conversation.New(conversation.Config{
		API:    defaultAPI(),
		Store:  session.NewStore(session.Options{}),
		Logger: logging.Discard(),
	})
	runner := newChatRunner(chatRunnerConfig{
		Controller: ctrl,
		Input:      newScriptedReader("Hi"),
		Output:     io.Discard,
	})
	defer runner.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, runner.Run(ctx), context.Canceled)
}

func TestChatRunner_Banner(t *testing.T) {
	ctrl := conversation.New(conversation.Config{
		API:    defaultAPI(),
		Store:  session.NewStore(session.Options{}),
		Logger: logging.Discard(),
	})
	ctrl.Init(context.Background())

	var out bytes.Buffer
	runner := newChatRunner(chatRunnerConfig{
		Controller: ctrl,
		Input:      newScriptedReader(),
		Output:     &out,
		Banner:     true,
	})
	defer runner.Close()
	require.NoError(t, runner.Run(context.Background()))

	assert.Contains(t, out.String(), "Aleutian Panel")
	assert.Contains(t, out.String(), "model: Mistral")
	assert.Contains(t, out.String(), "retrieval: on")
}

// =============================================================================
// Slash Command Tests
// =============================================================================

func TestSlash_Model(t *testing.T) {
	api := defaultAPI()
	out, ctrl := runScript(t, api, "/model 3", "Hi", "/model 1", "/model abc", "/model default", "exit")

	assert.Contains(t, out, "model: Qwen")
	assert.Contains(t, out, "model 1 is not enabled")
	assert.Contains(t, out, `invalid model id "abc"`)
	assert.Contains(t, out, "model: backend default")

	require.Len(t, api.chatTurns, 1)
	require.NotNil(t, api.chatTurns[0].ModelID)
	assert.Equal(t, int64(3), *api.chatTurns[0].ModelID)
	assert.Nil(t, ctrl.Snapshot().SelectedModel)
}

func TestSlash_Retrieval(t *testing.T) {
	api := defaultAPI()
	out, _ := runScript(t, api, "/retrieval off", "Hi", "/retrieval maybe", "exit")

	assert.Contains(t, out, "retrieval: off")
	assert.Contains(t, out, "usage: /retrieval on|off")
	require.Len(t, api.chatTurns, 1)
	assert.False(t, api.chatTurns[0].Retrieval)
}

func TestSlash_Mode(t *testing.T) {
	api := defaultAPI()
	api.analysisAnswer = "Looks fine"
	out, _ := runScript(t, api, "/mode summarize", "/mode", "/mode analysis", "Check this", "exit")

	assert.Contains(t, out, `unknown mode "summarize"`)
	assert.Contains(t, out, "usage: /mode chat|analysis")
	assert.Contains(t, out, "Looks fine")
	require.Len(t, api.analysisTurns, 1)
	assert.Equal(t, "Check this", api.analysisTurns[0].Message.Content)
	assert.Empty(t, api.chatTurns)
}

func TestSlash_Models(t *testing.T) {
	out, _ := runScript(t, defaultAPI(), "/models", "exit")

	assert.Contains(t, out, iconSelected+"    2  Mistral")
	assert.Contains(t, out, iconEnabled+"    3  Qwen")
	assert.NotContains(t, out, "Llama")
}

func TestSlash_HistoryAndLoad(t *testing.T) {
	out, ctrl := runScript(t, defaultAPI(), "/history", "/load 41", "/load 99", "/load x", "exit")

	assert.Contains(t, out, "41  What is Aleutian?")
	assert.Contains(t, out, "(Mistral)")
	assert.Contains(t, out, "A private AI appliance.")
	assert.Contains(t, out, "no history item 99")
	assert.Contains(t, out, `invalid history id "x"`)

	msgs := ctrl.Snapshot().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "What is Aleutian?", msgs[0].Content)
	assert.Equal(t, "A private AI appliance.", msgs[1].Content)
}

func TestSlash_LoadMidStreamSupersedes(t *testing.T) {
	api := defaultAPI()
	var ctrl *conversation.Controller
	api.onChat = func() {
		ctrl.LoadFromHistory(41)
	}

	ctrl = conversation.New(conversation.Config{
		API:    api,
		Store:  session.NewStore(session.Options{}),
		Logger: logging.Discard(),
	})
	ctrl.Init(context.Background())

	var out bytes.Buffer
	runner := newChatRunner(chatRunnerConfig{
		Controller: ctrl,
		Input:      newScriptedReader("Hi", "exit"),
		Output:     &out,
	})
	require.NoError(t, runner.Run(context.Background()))
	require.NoError(t, runner.Close())

	assert.NotContains(t, out.String(), "Hello")
	msgs := ctrl.Snapshot().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "What is Aleutian?", msgs[0].Content)
}

func TestSlash_HelpAndUnknown(t *testing.T) {
	out, _ := runScript(t, defaultAPI(), "/help", "/frobnicate", "exit")

	assert.Contains(t, out, "/mode chat|analysis")
	assert.Contains(t, out, "unknown command /frobnicate")
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestIsExitCommand(t *testing.T) {
	assert.True(t, isExitCommand("exit"))
	assert.True(t, isExitCommand("quit"))
	assert.False(t, isExitCommand("EXIT"))
	assert.False(t, isExitCommand("exit now"))
}

func TestParseOnOff(t *testing.T) {
	tests := []struct {
		in     string
		want   bool
		wantOK bool
	}{
		{"on", true, true},
		{"OFF", false, true},
		{"yes", true, true},
		{"false", false, true},
		{"1", true, true},
		{"maybe", false, false},
	}
	for _, tt := range tests {
		got, ok := parseOnOff(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		if ok {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "a b c", oneLine("a\n b\t c"))
}

func TestLineReader(t *testing.T) {
	r := newLineReader(strings.NewReader("  first \nsecond"))

	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "first", line)

	line, err = r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "second", line)

	_, err = r.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineModel_RecallNavigation(t *testing.T) {
	ti := textinput.New()
	ti.Focus()
	ti.SetValue("dra")
	m := newLineModel(ti, []string{"one", "two"})

	m = pressKey(t, m, tea.KeyUp)
	assert.Equal(t, "two", m.input.Value())
	m = pressKey(t, m, tea.KeyUp)
	assert.Equal(t, "one", m.input.Value())
	m = pressKey(t, m, tea.KeyUp)
	assert.Equal(t, "one", m.input.Value())
	m = pressKey(t, m, tea.KeyDown)
	assert.Equal(t, "two", m.input.Value())
	m = pressKey(t, m, tea.KeyDown)
	assert.Equal(t, "dra", m.input.Value())
	assert.False(t, m.done)

	m = pressKey(t, m, tea.KeyEnter)
	assert.True(t, m.done)
	assert.False(t, m.eof)
}

func TestLineModel_CtrlD(t *testing.T) {
	ti := textinput.New()
	ti.SetValue("typed")
	m := pressKey(t, newLineModel(ti, nil), tea.KeyCtrlD)
	assert.False(t, m.eof, "ctrl+d with text is ignored")

	m = pressKey(t, newLineModel(textinput.New(), nil), tea.KeyCtrlD)
	assert.True(t, m.eof)
	assert.True(t, m.done)
}

func TestLineModel_CtrlCDiscardsLine(t *testing.T) {
	ti := textinput.New()
	ti.SetValue("oops")
	m := pressKey(t, newLineModel(ti, nil), tea.KeyCtrlC)

	assert.True(t, m.done)
	assert.False(t, m.eof)
	assert.Equal(t, "", m.input.Value())
}

func pressKey(t *testing.T, m lineModel, key tea.KeyType) lineModel {
	t.Helper()
	next, _ := m.Update(tea.KeyMsg{Type: key})
	lm, ok := next.(lineModel)
	require.True(t, ok, "unexpected model type %T", next)
	return lm
}

func TestInteractiveReader_Remember(t *testing.T) {
	r := &interactiveReader{maxRecall: 2}
	r.remember("a")
	r.remember("a")
	r.remember("b")
	r.remember("c")
	assert.Equal(t, []string{"b", "c"}, r.recall)

	off := &interactiveReader{}
	off.remember("x")
	assert.Empty(t, off.recall)
}
