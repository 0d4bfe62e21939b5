// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package payload converts untrusted, loosely-typed values returned by the
// panel API into validated records.
//
// Every function in this package is pure and never returns an error:
// malformed input yields the invalid result (the false half of a
// (record, bool) pair) and collection helpers silently drop it.
package payload

import "strconv"

// DefaultModelName is used for history items that carry no model_name.
const DefaultModelName = "AI"

// ModelConfig is a validated backend model configuration.
//
// # Fields
//
//   - ID: Positive integer identifier
//   - Name: Display name, never empty ("Model#<id>" when the source had none)
//   - Enabled: Whether the model may be selected
type ModelConfig struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Raw returns the wire representation of the config.
//
// Feeding the result back into NormalizeConfig yields an identical record.
func (c ModelConfig) Raw() map[string]any {
	return map[string]any{
		"id":      c.ID,
		"name":    c.Name,
		"enabled": c.Enabled,
	}
}

// HistoryItem is one validated past exchange.
//
// # Fields
//
//   - ID: Positive integer identifier
//   - Question: The user's question, never empty
//   - Response: The assistant's answer, never empty
//   - ModelName: Model that answered ("AI" when unknown)
//   - CreatedAt: Timestamp text as sent by the API ("" when unknown)
type HistoryItem struct {
	ID        int64  `json:"id"`
	Question  string `json:"question"`
	Response  string `json:"response"`
	ModelName string `json:"model_name"`
	CreatedAt string `json:"created_at"`
}

// Raw returns the wire representation of the history item.
func (h HistoryItem) Raw() map[string]any {
	return map[string]any{
		"id":         h.ID,
		"question":   h.Question,
		"response":   h.Response,
		"model_name": h.ModelName,
		"created_at": h.CreatedAt,
	}
}

func placeholderModelName(id int64) string {
	return "Model#" + strconv.FormatInt(id, 10)
}
