// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"strings"
	"testing"
)

func TestSystemPromptDefault(t *testing.T) {
	got := systemPrompt("", false)

	if !strings.Contains(got, "Answer ONLY with the facts") {
		t.Error("default prompt body missing")
	}
	if strings.Contains(got, injectedPromptPlaceholder) ||
		strings.Contains(got, followUpPromptPlaceholder) {
		t.Errorf("placeholders left unresolved:\n%s", got)
	}
	if strings.Contains(got, "follow-up questions") {
		t.Error("follow-up instructions present without being requested")
	}
}

func TestSystemPromptDefaultWithFollowups(t *testing.T) {
	got := systemPrompt("", true)
	if !strings.Contains(got, "double angle brackets") {
		t.Error("follow-up instructions missing")
	}
}

func TestSystemPromptInjection(t *testing.T) {
	got := systemPrompt(">>>Always answer in French.", false)

	if !strings.Contains(got, "Always answer in French.") {
		t.Error("injected text missing")
	}
	if !strings.Contains(got, "Answer ONLY with the facts") {
		t.Error("injection should keep the default prompt body")
	}
	if strings.Contains(got, injectionOverridePrefix) {
		t.Error("injection marker leaked into the prompt")
	}
}

func TestSystemPromptReplacement(t *testing.T) {
	got := systemPrompt("You are a pirate. {follow_up_questions_prompt}", true)

	if !strings.HasPrefix(got, "You are a pirate. ") {
		t.Errorf("replacement prompt not used: %q", got)
	}
	if strings.Contains(got, "Answer ONLY with the facts") {
		t.Error("replacement should discard the default prompt body")
	}
	if !strings.Contains(got, "double angle brackets") {
		t.Error("follow-up placeholder not resolved in replacement prompt")
	}
}
