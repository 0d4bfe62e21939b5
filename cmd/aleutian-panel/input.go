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
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

// InputReader reads one line of user input at a time.
//
// ReadLine returns the trimmed line, or io.EOF when input is exhausted.
type InputReader interface {
	ReadLine() (string, error)
}

// PromptingInputReader is implemented by readers that draw their own
// prompt. The chat runner prints the prompt itself for all other readers.
type PromptingInputReader interface {
	InputReader
	SetPrompt(prompt string)
}

// =============================================================================
// Line Reader
// =============================================================================

// lineReader reads newline-terminated lines from any io.Reader. Used for
// piped input and as the non-TTY fallback.
type lineReader struct {
	reader *bufio.Reader
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{reader: bufio.NewReader(r)}
}

// ReadLine returns the next line. A final line without a newline is still
// returned; io.EOF follows it.
func (r *lineReader) ReadLine() (string, error) {
	line, err := r.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// =============================================================================
// Interactive Reader
// =============================================================================

// interactiveReader is a bubbletea line editor with up/down recall of
// earlier lines.
//
// # Description
//
// Keys:
//   - Enter: submit
//   - Up / Down: walk the recall list
//   - Ctrl+C: discard the current line (returns "")
//   - Ctrl+D: io.EOF
//
// # Limitations
//
//   - The recall list lives in memory for this process only
//
// # Assumptions
//
//   - os.Stdin is a terminal that understands ANSI escapes
type interactiveReader struct {
	recall    []string
	maxRecall int
	prompt    string
}

// newInputReader returns an interactive reader on a terminal and a plain
// line reader otherwise (pipes, CI).
func newInputReader(maxRecall int) InputReader {
	fd := os.Stdin.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return newLineReader(os.Stdin)
	}
	return &interactiveReader{
		recall:    make([]string, 0, maxRecall),
		maxRecall: maxRecall,
		prompt:    "> ",
	}
}

func (r *interactiveReader) SetPrompt(prompt string) {
	r.prompt = prompt
}

func (r *interactiveReader) ReadLine() (string, error) {
	ti := textinput.New()
	ti.Prompt = r.prompt
	ti.CharLimit = 8192
	ti.Width = 100
	ti.Focus()

	final, err := tea.NewProgram(newLineModel(ti, r.recall), tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		return "", err
	}
	m, ok := final.(lineModel)
	if !ok {
		return "", fmt.Errorf("unexpected model type from bubbletea: %T", final)
	}
	if m.eof {
		return "", io.EOF
	}

	line := strings.TrimSpace(m.input.Value())
	if line != "" {
		r.remember(line)
	}
	return line, nil
}

func (r *interactiveReader) remember(line string) {
	if r.maxRecall <= 0 {
		return
	}
	if n := len(r.recall); n > 0 && r.recall[n-1] == line {
		return
	}
	r.recall = append(r.recall, line)
	if len(r.recall) > r.maxRecall {
		r.recall = r.recall[1:]
	}
}

// lineModel is the bubbletea model behind interactiveReader.
type lineModel struct {
	input  textinput.Model
	recall []string
	// pos is the recall index being shown; len(recall) means the draft.
	pos   int
	draft string
	done  bool
	eof   bool
}

func newLineModel(input textinput.Model, recall []string) lineModel {
	return lineModel{input: input, recall: recall, pos: len(recall)}
}

func (m lineModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m lineModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch key.Type {
	case tea.KeyEnter:
		m.done = true
		return m, tea.Quit
	case tea.KeyCtrlC:
		m.input.SetValue("")
		m.done = true
		return m, tea.Quit
	case tea.KeyCtrlD:
		if m.input.Value() == "" {
			m.eof = true
			m.done = true
			return m, tea.Quit
		}
		return m, nil
	case tea.KeyUp:
		if m.pos == 0 {
			return m, nil
		}
		if m.pos == len(m.recall) {
			m.draft = m.input.Value()
		}
		m.pos--
		m.input.SetValue(m.recall[m.pos])
		m.input.CursorEnd()
		return m, nil
	case tea.KeyDown:
		if m.pos >= len(m.recall) {
			return m, nil
		}
		m.pos++
		if m.pos == len(m.recall) {
			m.input.SetValue(m.draft)
		} else {
			m.input.SetValue(m.recall[m.pos])
		}
		m.input.CursorEnd()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m lineModel) View() string {
	if m.done {
		return ""
	}
	return m.input.View()
}

// =============================================================================
// Scripted Reader
// =============================================================================

// scriptedReader returns fixed lines, then io.EOF. Used by tests and by
// the one-shot "chat --message" path.
type scriptedReader struct {
	lines []string
	next  int
}

func newScriptedReader(lines ...string) *scriptedReader {
	return &scriptedReader{lines: lines}
}

func (r *scriptedReader) ReadLine() (string, error) {
	if r.next >= len(r.lines) {
		return "", io.EOF
	}
	line := r.lines[r.next]
	r.next++
	return strings.TrimSpace(line), nil
}
