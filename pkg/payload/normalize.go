// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package payload

import (
	"bytes"
	"encoding/json"
	"strings"
)

// =============================================================================
// Record Normalization
// =============================================================================

// NormalizeConfig validates one raw model configuration.
//
// # Description
//
// Accepts any value. Objects decoded from JSON (map[string]any) are the
// common case; ModelConfig values and pointers are accepted too so that a
// normalized record can be re-fed unchanged.
//
// # Inputs
//
//   - raw: Untrusted value from the panel API
//
// # Outputs
//
//   - ModelConfig: The validated record (zero value when invalid)
//   - bool: False when raw is not an object or its id is not a positive integer
//
// # Examples
//
//	cfg, ok := NormalizeConfig(map[string]any{"id": "3"})
//	// cfg == ModelConfig{ID: 3, Name: "Model#3", Enabled: true}, ok == true
//
// # Limitations
//
//   - name is kept verbatim; only blank names are replaced
func NormalizeConfig(raw any) (ModelConfig, bool) {
	rec, ok := asRecord(raw)
	if !ok {
		return ModelConfig{}, false
	}

	id, ok := positiveInt(rec["id"])
	if !ok {
		return ModelConfig{}, false
	}

	name, ok := rec["name"].(string)
	if !ok || strings.TrimSpace(name) == "" {
		name = placeholderModelName(id)
	}

	enabled := true
	if v, present := rec["enabled"]; present && v != nil {
		enabled = truthy(v)
	}

	return ModelConfig{ID: id, Name: name, Enabled: enabled}, true
}

// NormalizeHistoryItem validates one raw history record.
//
// # Description
//
// The record is kept only when id is a positive integer and question and
// response are both non-empty strings. model_name and created_at never
// invalidate a record; they fall back to DefaultModelName and "".
//
// # Inputs
//
//   - raw: Untrusted value from the panel API
//
// # Outputs
//
//   - HistoryItem: The validated record (zero value when invalid)
//   - bool: False when the record must be dropped
func NormalizeHistoryItem(raw any) (HistoryItem, bool) {
	rec, ok := asRecord(raw)
	if !ok {
		return HistoryItem{}, false
	}

	id, ok := positiveInt(rec["id"])
	if !ok {
		return HistoryItem{}, false
	}

	question, ok := rec["question"].(string)
	if !ok || question == "" {
		return HistoryItem{}, false
	}
	response, ok := rec["response"].(string)
	if !ok || response == "" {
		return HistoryItem{}, false
	}

	modelName, ok := rec["model_name"].(string)
	if !ok || strings.TrimSpace(modelName) == "" {
		modelName = DefaultModelName
	}
	createdAt, _ := rec["created_at"].(string)

	return HistoryItem{
		ID:        id,
		Question:  question,
		Response:  response,
		ModelName: modelName,
		CreatedAt: createdAt,
	}, true
}

// =============================================================================
// Collection Normalization
// =============================================================================

// NormalizeConfigs normalizes every element of a raw sequence, dropping
// invalid entries and preserving the order of the rest.
//
// A raw value that is not a sequence yields an empty, non-nil slice.
func NormalizeConfigs(raw any) []ModelConfig {
	elems := Sequence(raw)
	out := make([]ModelConfig, 0, len(elems))
	for _, elem := range elems {
		if cfg, ok := NormalizeConfig(elem); ok {
			out = append(out, cfg)
		}
	}
	return out
}

// NormalizeHistoryItems normalizes every element of a raw sequence, dropping
// invalid entries. Upstream order (most recent first) is not re-sorted.
func NormalizeHistoryItems(raw any) []HistoryItem {
	elems := Sequence(raw)
	out := make([]HistoryItem, 0, len(elems))
	for _, elem := range elems {
		if item, ok := NormalizeHistoryItem(elem); ok {
			out = append(out, item)
		}
	}
	return out
}

// HistoryItemsFromEnvelope extracts and normalizes the items of a
// {"items": [...]} history page. Anything else yields an empty slice.
func HistoryItemsFromEnvelope(raw any) []HistoryItem {
	rec, ok := raw.(map[string]any)
	if !ok {
		return []HistoryItem{}
	}
	return NormalizeHistoryItems(rec["items"])
}

// Sequence returns the elements of raw when raw is a sequence type that the
// JSON decoder (or a caller) may produce, and nil otherwise.
func Sequence(raw any) []any {
	switch v := raw.(type) {
	case []any:
		return v
	case []map[string]any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	case []ModelConfig:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	case []HistoryItem:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	default:
		return nil
	}
}

// DecodeJSON decodes an API body into loosely-typed values.
//
// Numbers are kept as json.Number so that large identifiers survive intact.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func asRecord(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case map[string]any:
		return v, v != nil
	case ModelConfig:
		return v.Raw(), true
	case *ModelConfig:
		if v == nil {
			return nil, false
		}
		return v.Raw(), true
	case HistoryItem:
		return v.Raw(), true
	case *HistoryItem:
		if v == nil {
			return nil, false
		}
		return v.Raw(), true
	default:
		return nil, false
	}
}
