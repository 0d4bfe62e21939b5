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
	"github.com/charmbracelet/lipgloss"
)

// Aleutian palette
var (
	colorTealBright  = lipgloss.Color("#2CD7C7")
	colorTealPrimary = lipgloss.Color("#20B9B4")
	colorTealDeep    = lipgloss.Color("#16858E")
	colorSlate       = lipgloss.Color("#2C4A54")
	colorWarning     = lipgloss.Color("#F4D03F")
	colorError       = lipgloss.Color("#E74C3C")
)

var styles = struct {
	Title     lipgloss.Style
	Prompt    lipgloss.Style
	Assistant lipgloss.Style
	Muted     lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
	Box       lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(colorTealBright),
	Prompt:    lipgloss.NewStyle().Foreground(colorTealPrimary).Bold(true),
	Assistant: lipgloss.NewStyle().Foreground(colorTealDeep).Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(colorSlate),
	Warning:   lipgloss.NewStyle().Foreground(colorWarning),
	Error:     lipgloss.NewStyle().Foreground(colorError),
	Highlight: lipgloss.NewStyle().Foreground(colorTealBright).Bold(true),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorTealDeep).
		Padding(0, 1),
}

const (
	iconSelected = "●"
	iconEnabled  = "○"
	iconDisabled = "✗"
)
