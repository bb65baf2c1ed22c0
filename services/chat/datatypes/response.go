// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// ThoughtStep is one entry in the request trace returned to clients for
// the "how did you get this answer" view. Description holds whatever
// shape the step produced: a string, a message list, or passage dumps.
type ThoughtStep struct {
	Title       string         `json:"title"`
	Description any            `json:"description"`
	Props       map[string]any `json:"props,omitempty"`
}

// DataPoints carries the grounding passages shown alongside an answer.
type DataPoints struct {
	Text []string `json:"text"`
}

// ResponseContext is the diagnostic envelope attached to every answer:
// the reconciled conversation record, the grounding passages, the trace,
// and any follow-up questions split off the answer text.
type ResponseContext struct {
	History           []Turn        `json:"history"`
	DataPoints        DataPoints    `json:"data_points"`
	Thoughts          []ThoughtStep `json:"thoughts"`
	FollowupQuestions []string      `json:"followup_questions,omitempty"`
}

// ResponseChoice is one completion in a non-streaming chat response.
type ResponseChoice struct {
	Index        int              `json:"index"`
	Message      Message          `json:"message"`
	Context      *ResponseContext `json:"context,omitempty"`
	SessionState any              `json:"session_state,omitempty"`
	FinishReason string           `json:"finish_reason,omitempty"`
}

// ChatResponse is the body of a non-streaming POST /v1/chat reply.
type ChatResponse struct {
	Object  string           `json:"object"`
	Choices []ResponseChoice `json:"choices"`
}

// ChunkDelta is the incremental payload of one streamed chunk.
type ChunkDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// ChunkChoice is one completion slot in a streamed chunk.
type ChunkChoice struct {
	Index        int              `json:"index"`
	Delta        ChunkDelta       `json:"delta"`
	Context      *ResponseContext `json:"context,omitempty"`
	SessionState any              `json:"session_state,omitempty"`
	FinishReason *string          `json:"finish_reason"`
}

// CompletionChunk is one server-sent event in a streaming chat reply.
//
// The first chunk of a stream announces the assistant role and carries
// the full ResponseContext; subsequent chunks carry answer text; a final
// chunk carries follow-up questions when the client asked for them.
type CompletionChunk struct {
	Object  string        `json:"object"`
	Choices []ChunkChoice `json:"choices"`
}
