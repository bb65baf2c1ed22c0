// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the wire and domain types shared across the
// chat service: request and response envelopes, retrieval overrides, and
// the conversation turn model.
package datatypes

import "encoding/json"

// ChatMessage is one entry in the conversation history sent by a client.
//
// Content is usually a plain string, but a message whose Role is
// RoleSnapshot carries a serialized array of turns instead, so the field
// stays raw until the pipeline decodes it.
type ChatMessage struct {
	Role    string          `json:"role" binding:"required"`
	Content json.RawMessage `json:"content" binding:"required"`
}

// Text decodes the message content as a plain string.
func (m ChatMessage) Text() (string, error) {
	var s string
	if err := json.Unmarshal(m.Content, &s); err != nil {
		return "", err
	}
	return s, nil
}

// RequestContext carries per-request tuning that is not part of the
// conversation itself.
type RequestContext struct {
	Overrides Overrides `json:"overrides"`
}

// ChatRequest is the body of POST /v1/chat and /v1/chat/stream.
type ChatRequest struct {
	Messages     []ChatMessage  `json:"messages" binding:"required,min=1"`
	Stream       bool           `json:"stream"`
	SessionState any            `json:"session_state,omitempty"`
	Context      RequestContext `json:"context"`
}
