// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/copperline-ai/copperline/services/chat/datatypes"
)

// followupDelimiter opens a follow-up question in the model output.
const followupDelimiter = "<<"

var followupPattern = regexp.MustCompile(`<<([^>]+)>>`)

// ChunkSource yields completion chunks until io.EOF. Satisfied by
// *openai.ChatCompletionStream.
type ChunkSource interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
}

// EmitFunc delivers one outgoing chunk to the client. A non-nil error
// aborts the stream; it usually means the client disconnected.
type EmitFunc func(datatypes.CompletionChunk) error

// splitStream relays a model stream to the client while separating
// follow-up questions from the answer text.
//
// # Description
//
// The first emitted chunk announces the assistant role and carries the
// response context and session state. Answer text then streams through
// until the follow-up delimiter appears; from that point chunks are
// buffered instead of emitted. After the model finishes, the buffered
// tail is parsed and delivered as a final chunk holding only the
// follow-up questions, never mixed into answer text.
//
// Reassembling the emitted content plus the extracted questions always
// recovers the model output byte for byte, no matter where chunk
// boundaries fell.
//
// # Limitations
//
//   - A cancelled ctx stops the relay between chunks; the follow-up
//     buffer is not flushed.
//   - An emit failure aborts the relay; nothing more is pulled from
//     the source.
func splitStream(
	ctx context.Context,
	src ChunkSource,
	respContext *datatypes.ResponseContext,
	sessionState any,
	suggestFollowups bool,
	emit EmitFunc,
) error {
	err := emit(datatypes.CompletionChunk{
		Object: "chat.completion.chunk",
		Choices: []datatypes.ChunkChoice{{
			Delta:        datatypes.ChunkDelta{Role: datatypes.RoleAssistant},
			Context:      respContext,
			SessionState: sessionState,
		}},
	})
	if err != nil {
		return err
	}

	var followupBuffer strings.Builder
	buffering := false

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, err := src.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		content := choice.Delta.Content

		switch {
		case buffering:
			followupBuffer.WriteString(content)
		case suggestFollowups && strings.Contains(content, followupDelimiter):
			idx := strings.Index(content, followupDelimiter)
			if answer := content[:idx]; answer != "" {
				if err := emitContent(emit, answer, choice.FinishReason); err != nil {
					return err
				}
			}
			followupBuffer.WriteString(content[idx:])
			buffering = true
		case content != "" || choice.FinishReason != "":
			if err := emitContent(emit, content, choice.FinishReason); err != nil {
				return err
			}
		}
	}

	if followupBuffer.Len() > 0 {
		leftover, questions := extractFollowupQuestions(followupBuffer.String())
		if leftover != "" {
			if err := emitContent(emit, leftover, ""); err != nil {
				return err
			}
		}
		return emit(datatypes.CompletionChunk{
			Object: "chat.completion.chunk",
			Choices: []datatypes.ChunkChoice{{
				Delta: datatypes.ChunkDelta{Role: datatypes.RoleAssistant},
				Context: &datatypes.ResponseContext{
					FollowupQuestions: questions,
				},
			}},
		})
	}
	return nil
}

func emitContent(emit EmitFunc, content string, finishReason openai.FinishReason) error {
	var fr *string
	if finishReason != "" {
		s := string(finishReason)
		fr = &s
	}
	return emit(datatypes.CompletionChunk{
		Object: "chat.completion.chunk",
		Choices: []datatypes.ChunkChoice{{
			Delta:        datatypes.ChunkDelta{Content: content},
			FinishReason: fr,
		}},
	})
}

// extractFollowupQuestions splits text into the visible remainder and
// the questions wrapped in << >> delimiters. The remainder is
// everything before the first delimiter, byte for byte; surrounding
// whitespace is preserved.
func extractFollowupQuestions(text string) (string, []string) {
	var questions []string
	for _, m := range followupPattern.FindAllStringSubmatch(text, -1) {
		questions = append(questions, m[1])
	}
	return strings.SplitN(text, followupDelimiter, 2)[0], questions
}
