// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import "github.com/copperline-ai/copperline/services/chat/datatypes"

// TokenCounter measures chat messages against a model's context window.
// pkg/tokens provides the production implementation.
type TokenCounter interface {
	CountForMessage(role, content string) int
}

// buildPromptMessages assembles a bounded prompt.
//
// The system prompt, the few-shot examples, and the current user turn
// are always present. History is then inserted newest first, each
// message slotted in after the few-shots, until adding the next message
// would push the running token total past maxTokens. Older messages
// drop before newer ones, and a larger budget never yields fewer
// messages.
//
// history holds prior turns only; the caller passes the current turn
// separately as userContent.
func buildPromptMessages(
	counter TokenCounter,
	systemPrompt string,
	fewShots []datatypes.Message,
	history []datatypes.Message,
	userContent string,
	maxTokens int,
) []datatypes.Message {
	msgs := make([]datatypes.Message, 0, len(fewShots)+len(history)+2)
	msgs = append(msgs, datatypes.Message{Role: datatypes.RoleSystem, Content: systemPrompt})
	msgs = append(msgs, fewShots...)
	msgs = append(msgs, datatypes.Message{Role: datatypes.RoleUser, Content: userContent})

	total := 0
	for _, m := range msgs {
		total += counter.CountForMessage(m.Role, m.Content)
	}

	insertAt := 1 + len(fewShots)
	for i := len(history) - 1; i >= 0; i-- {
		cost := counter.CountForMessage(history[i].Role, history[i].Content)
		if total+cost > maxTokens {
			break
		}
		msgs = append(msgs[:insertAt], append([]datatypes.Message{history[i]}, msgs[insertAt:]...)...)
		total += cost
	}
	return msgs
}
