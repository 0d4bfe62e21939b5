// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package payload

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// NormalizeConfig Tests
// =============================================================================

func TestNormalizeConfig_InvalidIDs(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{"nil", nil},
		{"not an object", "id=1"},
		{"slice", []any{1}},
		{"missing id", map[string]any{"name": "A"}},
		{"null id", map[string]any{"id": nil}},
		{"zero", map[string]any{"id": 0}},
		{"negative", map[string]any{"id": -4}},
		{"fraction", map[string]any{"id": 1.5}},
		{"NaN", map[string]any{"id": math.NaN()}},
		{"infinity", map[string]any{"id": math.Inf(1)}},
		{"empty string", map[string]any{"id": ""}},
		{"non numeric string", map[string]any{"id": "abc"}},
		{"string infinity", map[string]any{"id": "Infinity"}},
		{"bool", map[string]any{"id": true}},
		{"negative json number", map[string]any{"id": json.Number("-2")}},
		{"nested object", map[string]any{"id": map[string]any{"v": 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := NormalizeConfig(tt.raw)
			assert.False(t, ok)
		})
	}
}

func TestNormalizeConfig_Defaults(t *testing.T) {
	t.Run("missing name and enabled", func(t *testing.T) {
		cfg, ok := NormalizeConfig(map[string]any{"id": 7})
		require.True(t, ok)
		assert.Equal(t, ModelConfig{ID: 7, Name: "Model#7", Enabled: true}, cfg)
	})

	t.Run("blank name", func(t *testing.T) {
		cfg, ok := NormalizeConfig(map[string]any{"id": "12", "name": "   "})
		require.True(t, ok)
		assert.Equal(t, "Model#12", cfg.Name)
	})

	t.Run("wrong type name is treated as absent", func(t *testing.T) {
		cfg, ok := NormalizeConfig(map[string]any{"id": 3, "name": 42})
		require.True(t, ok)
		assert.Equal(t, "Model#3", cfg.Name)
	})

	t.Run("null enabled is treated as absent", func(t *testing.T) {
		cfg, ok := NormalizeConfig(map[string]any{"id": 3, "enabled": nil})
		require.True(t, ok)
		assert.True(t, cfg.Enabled)
	})
}

func TestNormalizeConfig_EnabledCoercion(t *testing.T) {
	tests := []struct {
		value any
		want  bool
	}{
		{true, true},
		{false, false},
		{0, false},
		{1, true},
		{json.Number("0"), false},
		{json.Number("2"), true},
		{"", false},
		{"false", true},
		{float64(0), false},
		{map[string]any{}, true},
	}

	for _, tt := range tests {
		cfg, ok := NormalizeConfig(map[string]any{"id": 1, "enabled": tt.value})
		require.True(t, ok)
		assert.Equal(t, tt.want, cfg.Enabled, "enabled=%#v", tt.value)
	}
}

func TestNormalizeConfig_NumericForms(t *testing.T) {
	for _, id := range []any{5, int64(5), uint8(5), float64(5), float32(5), json.Number("5"), json.Number("5.0"), " 5 ", "5e0"} {
		cfg, ok := NormalizeConfig(map[string]any{"id": id, "name": "X"})
		require.True(t, ok, "id=%#v", id)
		assert.Equal(t, int64(5), cfg.ID)
	}
}

// =============================================================================
// NormalizeHistoryItem Tests
// =============================================================================

func TestNormalizeHistoryItem_Invalid(t *testing.T) {
	valid := func() map[string]any {
		return map[string]any{"id": 1, "question": "Q", "response": "R"}
	}

	tests := []struct {
		name   string
		mutate func(m map[string]any)
	}{
		{"missing question", func(m map[string]any) { delete(m, "question") }},
		{"empty question", func(m map[string]any) { m["question"] = "" }},
		{"non string question", func(m map[string]any) { m["question"] = 1 }},
		{"missing response", func(m map[string]any) { delete(m, "response") }},
		{"empty response", func(m map[string]any) { m["response"] = "" }},
		{"null response", func(m map[string]any) { m["response"] = nil }},
		{"missing id", func(m map[string]any) { delete(m, "id") }},
		{"zero id", func(m map[string]any) { m["id"] = 0 }},
		{"string id", func(m map[string]any) { m["id"] = "x" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := valid()
			tt.mutate(raw)
			_, ok := NormalizeHistoryItem(raw)
			assert.False(t, ok)
		})
	}

	_, ok := NormalizeHistoryItem(42)
	assert.False(t, ok)
}

func TestNormalizeHistoryItem_Defaults(t *testing.T) {
	item, ok := NormalizeHistoryItem(map[string]any{
		"id":         json.Number("9"),
		"question":   "Q",
		"response":   "R",
		"model_name": 17,
	})
	require.True(t, ok)
	assert.Equal(t, HistoryItem{ID: 9, Question: "Q", Response: "R", ModelName: "AI", CreatedAt: ""}, item)
}

func TestNormalize_Idempotent(t *testing.T) {
	cfg, ok := NormalizeConfig(map[string]any{"id": "2", "enabled": 0})
	require.True(t, ok)

	again, ok := NormalizeConfig(cfg.Raw())
	require.True(t, ok)
	assert.Equal(t, cfg, again)

	fromValue, ok := NormalizeConfig(cfg)
	require.True(t, ok)
	assert.Equal(t, cfg, fromValue)

	item, ok := NormalizeHistoryItem(map[string]any{"id": 5, "question": "Q", "response": "R"})
	require.True(t, ok)

	againItem, ok := NormalizeHistoryItem(item.Raw())
	require.True(t, ok)
	assert.Equal(t, item, againItem)

	fromPtr, ok := NormalizeHistoryItem(&item)
	require.True(t, ok)
	assert.Equal(t, item, fromPtr)
}

// =============================================================================
// Collection Tests
// =============================================================================

func TestNormalizeConfigs_FiltersAndPreservesOrder(t *testing.T) {
	raw := []any{
		map[string]any{"id": 2, "name": "B"},
		nil,
		map[string]any{"id": -1},
		"junk",
		map[string]any{"id": 1, "name": "A"},
	}

	got := NormalizeConfigs(raw)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Equal(t, int64(1), got[1].ID)

	assert.NotNil(t, NormalizeConfigs("not a list"))
	assert.Empty(t, NormalizeConfigs(nil))
}

func TestHistoryItemsFromEnvelope(t *testing.T) {
	body := []byte(`{"items":[{"id":5,"question":"Q","response":"R","model_name":"M","created_at":"2024-01-01T00:00:00Z"},{"id":6,"question":"","response":"R"}]}`)

	raw, err := DecodeJSON(body)
	require.NoError(t, err)

	items := HistoryItemsFromEnvelope(raw)
	require.Len(t, items, 1)
	assert.Equal(t, HistoryItem{
		ID:        5,
		Question:  "Q",
		Response:  "R",
		ModelName: "M",
		CreatedAt: "2024-01-01T00:00:00Z",
	}, items[0])

	assert.Empty(t, HistoryItemsFromEnvelope([]any{}))
	assert.Empty(t, HistoryItemsFromEnvelope(map[string]any{"items": "nope"}))
}

func TestDecodeJSON_KeepsLargeIDs(t *testing.T) {
	raw, err := DecodeJSON([]byte(`[{"id": 9007199254740993}]`))
	require.NoError(t, err)

	cfgs := NormalizeConfigs(raw)
	require.Len(t, cfgs, 1)
	assert.Equal(t, int64(9007199254740993), cfgs[0].ID)

	_, err = DecodeJSON([]byte(`{not json`))
	assert.Error(t, err)
}
