// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"sync"

	"github.com/AleutianAI/AleutianPanel/pkg/payload"
)

// Options configures a new Store.
type Options struct {
	Mode      Mode // Initial mode (default: ModeChat)
	Retrieval *bool
}

// Store owns all data of one panel session.
//
// # Description
//
// Store exposes atomic transitions. Each one takes the lock, mutates, and
// releases it before listeners run, so every transition is immediately
// visible to subsequent reads from any goroutine.
//
// # Thread Safety
//
// Safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	messages      []Message
	streaming     string
	inFlight      bool
	phase         Phase
	mode          Mode
	selectedModel *int64
	retrieval     bool
	history       []payload.HistoryItem
	configs       []payload.ModelConfig

	hasChosenDefaultModel bool
	epoch                 uint64
	historyIssued         uint64
	historyApplied        uint64

	listenerMu sync.RWMutex
	listeners  map[int]Listener
	nextID     int
}

// NewStore creates an empty session in chat mode with retrieval enabled.
func NewStore(opts Options) *Store {
	mode := ModeChat
	if m, ok := ParseMode(string(opts.Mode)); ok {
		mode = m
	}
	retrieval := true
	if opts.Retrieval != nil {
		retrieval = *opts.Retrieval
	}
	return &Store{
		messages:  make([]Message, 0, 16),
		mode:      mode,
		retrieval: retrieval,
		history:   []payload.HistoryItem{},
		configs:   []payload.ModelConfig{},
		listeners: make(map[int]Listener),
	}
}

// =============================================================================
// Message Log
// =============================================================================

// AppendUserMessage appends a user turn.
func (s *Store) AppendUserMessage(text string) {
	s.mu.Lock()
	s.messages = append(s.messages, Message{Role: RoleUser, Content: text})
	s.mu.Unlock()
	s.notify(ChangeMessages)
}

// BeginStreaming sets the streaming buffer to initial and marks the session
// in flight.
func (s *Store) BeginStreaming(initial string) {
	s.mu.Lock()
	s.streaming = initial
	s.inFlight = true
	s.phase = PhaseStreaming
	s.mu.Unlock()
	s.notify(ChangeStreaming)
}

// UpdateStreaming replaces the streaming buffer wholesale.
//
// The text is the full accumulated response so far, never a delta.
func (s *Store) UpdateStreaming(text string) {
	s.mu.Lock()
	s.streaming = text
	s.mu.Unlock()
	s.notify(ChangeStreaming)
}

// FinalizeAssistantMessage appends an assistant turn, clears the streaming
// buffer and clears the in-flight flag.
func (s *Store) FinalizeAssistantMessage(text string) {
	s.mu.Lock()
	s.messages = append(s.messages, Message{Role: RoleAssistant, Content: text})
	s.streaming = ""
	s.inFlight = false
	s.phase = PhaseIdle
	s.mu.Unlock()
	s.notify(ChangeMessages)
}

// LoadFromHistory replaces the whole message log with the question and
// response of item and bumps the view epoch.
//
// # Description
//
// This is a view reset, not an append. It is allowed at any time, including
// while a cycle is streaming. The streaming buffer is cleared; the in-flight
// flag is left to the running cycle, whose late writes are rejected by the
// epoch-guarded transitions.
//
// # Outputs
//
//   - uint64: The new epoch
func (s *Store) LoadFromHistory(item payload.HistoryItem) uint64 {
	s.mu.Lock()
	s.messages = []Message{
		{Role: RoleUser, Content: item.Question},
		{Role: RoleAssistant, Content: item.Response},
	}
	s.streaming = ""
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()
	s.notify(ChangeMessages)
	return epoch
}

// =============================================================================
// Request Cycle
// =============================================================================

// Cycle is what a request cycle needs from the session, read atomically
// when the cycle begins.
//
// # Fields
//
//   - Epoch: View epoch the cycle belongs to
//   - Messages: Message log including the new user turn
//   - Mode: Mode in effect at send time
//   - ModelID: Selected model, nil for the backend default
//   - Retrieval: Retrieval flag in effect at send time
type Cycle struct {
	Epoch     uint64
	Messages  []Message
	Mode      Mode
	ModelID   *int64
	Retrieval bool
}

// BeginCycle atomically starts a request cycle for a user turn.
//
// # Description
//
// If no cycle is in flight it appends the user message, clears the streaming
// buffer, sets the in-flight flag and enters PhaseSending. Otherwise nothing
// changes.
//
// # Outputs
//
//   - Cycle: Request parameters captured under the same lock
//   - bool: False when another cycle is already in flight
func (s *Store) BeginCycle(text string) (Cycle, bool) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return Cycle{}, false
	}
	s.messages = append(s.messages, Message{Role: RoleUser, Content: text})
	s.streaming = ""
	s.inFlight = true
	s.phase = PhaseSending
	cycle := Cycle{
		Epoch:     s.epoch,
		Messages:  append([]Message(nil), s.messages...),
		Mode:      s.mode,
		Retrieval: s.retrieval,
	}
	if s.selectedModel != nil {
		cycle.ModelID = ModelID(*s.selectedModel)
	}
	s.mu.Unlock()
	s.notify(ChangeMessages)
	return cycle, true
}

// SetPhase records the cycle phase.
func (s *Store) SetPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

// UpdateStreamingAt replaces the streaming buffer if epoch is current.
func (s *Store) UpdateStreamingAt(epoch uint64, text string) bool {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return false
	}
	s.streaming = text
	s.phase = PhaseStreaming
	s.mu.Unlock()
	s.notify(ChangeStreaming)
	return true
}

// FinalizeAssistantMessageAt ends the cycle started at epoch.
//
// # Description
//
// The in-flight flag is always cleared. The assistant message is appended
// and the buffer cleared only if no view reset happened since the cycle
// began.
//
// # Outputs
//
//   - bool: True when the message was appended
func (s *Store) FinalizeAssistantMessageAt(epoch uint64, text string) bool {
	s.mu.Lock()
	s.inFlight = false
	s.phase = PhaseIdle
	if epoch != s.epoch {
		s.mu.Unlock()
		s.notify(ChangeStreaming)
		return false
	}
	s.messages = append(s.messages, Message{Role: RoleAssistant, Content: text})
	s.streaming = ""
	s.mu.Unlock()
	s.notify(ChangeMessages)
	return true
}

// =============================================================================
// Caches and Selection
// =============================================================================

// SetHistory replaces the cached history.
func (s *Store) SetHistory(items []payload.HistoryItem) {
	s.mu.Lock()
	s.history = append([]payload.HistoryItem(nil), items...)
	s.mu.Unlock()
	s.notify(ChangeHistory)
}

// NextHistorySeq issues a sequence stamp for a history fetch.
func (s *Store) NextHistorySeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historyIssued++
	return s.historyIssued
}

// ApplyHistory replaces the cached history with the result of the fetch
// stamped seq, unless a later-issued fetch was already applied.
func (s *Store) ApplyHistory(seq uint64, items []payload.HistoryItem) bool {
	s.mu.Lock()
	if seq <= s.historyApplied {
		s.mu.Unlock()
		return false
	}
	s.historyApplied = seq
	s.history = append([]payload.HistoryItem(nil), items...)
	s.mu.Unlock()
	s.notify(ChangeHistory)
	return true
}

// SetConfigs replaces the cached model configurations.
func (s *Store) SetConfigs(configs []payload.ModelConfig) {
	s.mu.Lock()
	s.configs = append([]payload.ModelConfig(nil), configs...)
	s.mu.Unlock()
	s.notify(ChangeConfigs)
}

// ChooseDefaultModel seeds the selected model from the cached configs, once
// per session.
//
// # Description
//
// The first enabled config becomes the selection. Nothing happens when a
// model was already seeded or picked by the user, or when no config is
// enabled.
//
// # Outputs
//
//   - int64: The chosen id (0 when nothing was chosen)
//   - bool: True when a default was chosen by this call
func (s *Store) ChooseDefaultModel() (int64, bool) {
	s.mu.Lock()
	if s.hasChosenDefaultModel {
		s.mu.Unlock()
		return 0, false
	}
	for _, cfg := range s.configs {
		if cfg.Enabled {
			s.selectedModel = ModelID(cfg.ID)
			s.hasChosenDefaultModel = true
			s.mu.Unlock()
			s.notify(ChangeSelection)
			return cfg.ID, true
		}
	}
	s.mu.Unlock()
	return 0, false
}

// SetSelectedModel selects a model, or clears the selection with nil.
//
// An explicit choice counts as the session's model choice, so a later
// ChooseDefaultModel will not override it.
func (s *Store) SetSelectedModel(id *int64) {
	s.mu.Lock()
	if id == nil {
		s.selectedModel = nil
	} else {
		s.selectedModel = ModelID(*id)
	}
	s.hasChosenDefaultModel = true
	s.mu.Unlock()
	s.notify(ChangeSelection)
}

// SetMode switches the mode. Unrecognized values leave the state unchanged
// and return false.
func (s *Store) SetMode(mode Mode) bool {
	m, ok := ParseMode(string(mode))
	if !ok {
		return false
	}
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
	s.notify(ChangeSelection)
	return true
}

// SetRetrieval toggles retrieval augmentation.
func (s *Store) SetRetrieval(enabled bool) {
	s.mu.Lock()
	s.retrieval = enabled
	s.mu.Unlock()
	s.notify(ChangeSelection)
}

// =============================================================================
// Reads
// =============================================================================

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Messages:              append([]Message(nil), s.messages...),
		Streaming:             s.streaming,
		InFlight:              s.inFlight,
		Phase:                 s.phase,
		Mode:                  s.mode,
		Retrieval:             s.retrieval,
		History:               append([]payload.HistoryItem(nil), s.history...),
		Configs:               append([]payload.ModelConfig(nil), s.configs...),
		HasChosenDefaultModel: s.hasChosenDefaultModel,
		Epoch:                 s.epoch,
	}
	if s.selectedModel != nil {
		snap.SelectedModel = ModelID(*s.selectedModel)
	}
	return snap
}

// Messages returns a copy of the message log.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.messages...)
}

// Streaming returns the current streaming buffer.
func (s *Store) Streaming() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streaming
}

// InFlight reports whether a request cycle is running.
func (s *Store) InFlight() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight
}

// Epoch returns the current view epoch.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// EnabledConfigs returns the configs a user may select, in cached order.
func (s *Store) EnabledConfigs() []payload.ModelConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]payload.ModelConfig, 0, len(s.configs))
	for _, cfg := range s.configs {
		if cfg.Enabled {
			out = append(out, cfg)
		}
	}
	return out
}

// FindHistory returns the cached history item with the given id.
func (s *Store) FindHistory(id int64) (payload.HistoryItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.history {
		if item.ID == id {
			return item, true
		}
	}
	return payload.HistoryItem{}, false
}

// =============================================================================
// Listeners
// =============================================================================

// Subscribe registers a listener and returns a function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.listenerMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.listenerMu.Unlock()

	return func() {
		s.listenerMu.Lock()
		delete(s.listeners, id)
		s.listenerMu.Unlock()
	}
}

func (s *Store) notify(kind ChangeKind) {
	s.listenerMu.RLock()
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.listenerMu.RUnlock()

	for _, l := range ls {
		l(kind)
	}
}
