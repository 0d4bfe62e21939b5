// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package panelapi

import (
	"github.com/go-playground/validator/v10"
)

const (
	// MaxMessageContentBytes bounds a single message sent to the API.
	MaxMessageContentBytes = 32 * 1024
	// MaxMessagesPerRequest bounds the chat log sent in one request.
	MaxMessagesPerRequest = 200
)

var requestValidate = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= MaxMessageContentBytes
	})
	return v
}

// WireMessage is a chat turn as sent to the API.
type WireMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"maxbytes"`
}

// ChatRequest is the body of POST /v1/chat/stream.
//
// # Fields
//
//   - RequestID: UUIDv4 generated by the client
//   - Timestamp: Unix milliseconds at send time
//   - Messages: Full running log, oldest first
//   - ModelID: Selected model; omitted to use the backend default
//   - UseRetrieval: Retrieval augmentation flag
type ChatRequest struct {
	RequestID    string        `json:"request_id" validate:"required,uuid4"`
	Timestamp    int64         `json:"timestamp" validate:"required,gt=0"`
	Messages     []WireMessage `json:"messages" validate:"required,min=1,max=200,dive"`
	ModelID      *int64        `json:"model_id,omitempty" validate:"omitempty,gt=0"`
	UseRetrieval bool          `json:"use_retrieval"`
}

// Validate checks the request before it is sent.
func (r *ChatRequest) Validate() error {
	return requestValidate.Struct(r)
}

// AnalysisRequest is the body of POST /v1/analysis/stream.
type AnalysisRequest struct {
	RequestID    string `json:"request_id" validate:"required,uuid4"`
	Timestamp    int64  `json:"timestamp" validate:"required,gt=0"`
	Message      string `json:"message" validate:"required,maxbytes"`
	ModelID      *int64 `json:"model_id,omitempty" validate:"omitempty,gt=0"`
	UseRetrieval bool   `json:"use_retrieval"`
}

// Validate checks the request before it is sent.
func (r *AnalysisRequest) Validate() error {
	return requestValidate.Struct(r)
}
