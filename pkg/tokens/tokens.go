// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tokens provides model-aware token accounting for chat prompts.
//
// Prompt assembly needs two numbers per model: how many tokens a single
// chat message costs, and how many tokens the model accepts in total.
// Both are encapsulated here so callers never touch a tokenizer directly.
//
// # Limitations
//
// Counting uses the cl100k family of encodings. Models outside that
// family fall back to cl100k_base, which is close enough for budgeting
// but not byte-exact.
package tokens

import (
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// messageOverheadTokens is the fixed per-message framing cost in the
// chat completion wire format (role and delimiter tokens).
const messageOverheadTokens = 4

// defaultTokenLimit is used for models missing from the limit table.
const defaultTokenLimit = 4000

// modelTokenLimits maps a deployment model name to its total context
// window budget in tokens. Values are slightly conservative so that a
// prompt sized to the limit never overflows the real window.
var modelTokenLimits = map[string]int{
	"gpt-35-turbo":      4000,
	"gpt-3.5-turbo":     4000,
	"gpt-35-turbo-16k":  16000,
	"gpt-3.5-turbo-16k": 16000,
	"gpt-4":             8100,
	"gpt-4-32k":         32000,
	"gpt-4o":            128000,
	"gpt-4o-mini":       128000,
}

var (
	encoderMu    sync.Mutex
	encoderCache = map[string]*tiktoken.Tiktoken{}
)

// encoderFor returns a cached tokenizer for the model, falling back to
// cl100k_base when the model name is unknown to the encoding registry.
func encoderFor(model string) *tiktoken.Tiktoken {
	encoderMu.Lock()
	defer encoderMu.Unlock()

	if enc, ok := encoderCache[model]; ok {
		return enc
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		slog.Warn("no encoding registered for model, using cl100k_base",
			"model", model, "error", err)
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			// cl100k_base ships with the tokenizer library. If it
			// cannot be loaded the process cannot budget prompts at
			// all, so fail loudly rather than miscount silently.
			panic("tokens: cl100k_base encoding unavailable: " + err.Error())
		}
	}
	encoderCache[model] = enc
	return enc
}

// Counter counts tokens per chat message for a model family.
//
// The zero value is not usable. Construct with NewCounter.
type Counter struct {
	model string
	enc   *tiktoken.Tiktoken
}

// NewCounter builds a Counter for the given model name.
func NewCounter(model string) *Counter {
	return &Counter{model: model, enc: encoderFor(model)}
}

// CountForMessage returns the token cost of one chat message, including
// the fixed per-message framing overhead.
func (c *Counter) CountForMessage(role, content string) int {
	n := messageOverheadTokens
	n += len(c.enc.Encode(role, nil, nil))
	n += len(c.enc.Encode(content, nil, nil))
	return n
}

// LimitForModel reports the total token budget for the counter's model.
func (c *Counter) LimitForModel() int {
	return LimitForModel(c.model)
}

// LimitForModel reports the total token budget for a model name.
// Unknown models get a conservative default so budgeting still works.
func LimitForModel(model string) int {
	if limit, ok := modelTokenLimits[model]; ok {
		return limit
	}
	slog.Warn("unknown model for token limit, using default",
		"model", model, "default", defaultTokenLimit)
	return defaultTokenLimit
}
