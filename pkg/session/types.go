// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session holds the state of one panel session: the message log,
// the in-flight streaming buffer, the selected mode, model and retrieval
// flag, and the cached history and model configurations.
//
// The Store is the only owner of this data. Every other component reads
// deep-copied Snapshots and mutates through Store methods.
package session

import "github.com/AleutianAI/AleutianPanel/pkg/payload"

// Role identifies the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation log.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Mode selects the request shape used by the next send.
type Mode string

const (
	// ModeChat sends the full running message log.
	ModeChat Mode = "chat"
	// ModeAnalysis sends only the new user message.
	ModeAnalysis Mode = "analysis"
)

// ParseMode returns the Mode named by s.
//
// The second result is false for anything other than "chat" or "analysis".
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeChat:
		return ModeChat, true
	case ModeAnalysis:
		return ModeAnalysis, true
	default:
		return "", false
	}
}

// Phase is the request cycle state of the session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSending
	PhaseStreaming
	PhaseFinalizing
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSending:
		return "sending"
	case PhaseStreaming:
		return "streaming"
	case PhaseFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// ChangeKind tells a listener which part of the state moved.
type ChangeKind int

const (
	ChangeMessages ChangeKind = iota
	ChangeStreaming
	ChangeHistory
	ChangeConfigs
	ChangeSelection
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeMessages:
		return "messages"
	case ChangeStreaming:
		return "streaming"
	case ChangeHistory:
		return "history"
	case ChangeConfigs:
		return "configs"
	case ChangeSelection:
		return "selection"
	default:
		return "unknown"
	}
}

// Listener is called synchronously after a mutation, with the store lock
// released. Listeners may read the store but must not block.
type Listener func(kind ChangeKind)

// Snapshot is a read-only copy of the session state.
//
// # Fields
//
//   - Messages: Ordered conversation log
//   - Streaming: Current partial assistant text ("" when not streaming)
//   - InFlight: True while a request cycle is running
//   - Phase: Request cycle state
//   - Mode: Mode the next send will use
//   - SelectedModel: Selected model id, nil for "use the default"
//   - Retrieval: Whether retrieval augmentation is requested
//   - History: Cached recent exchanges, most recent first
//   - Configs: Cached model configurations
//   - HasChosenDefaultModel: True once a model was seeded or picked
//   - Epoch: View generation, bumped by LoadFromHistory
type Snapshot struct {
	Messages              []Message
	Streaming             string
	InFlight              bool
	Phase                 Phase
	Mode                  Mode
	SelectedModel         *int64
	Retrieval             bool
	History               []payload.HistoryItem
	Configs               []payload.ModelConfig
	HasChosenDefaultModel bool
	Epoch                 uint64
}

// ModelID returns a pointer to id, for SetSelectedModel.
func ModelID(id int64) *int64 {
	return &id
}
