// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/copperline-ai/copperline/services/chat/taxonomy"
)

func completionWithFunctionCall(args string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				FunctionCall: &openai.FunctionCall{
					Name:      searchFunctionName,
					Arguments: args,
				},
			},
		}},
	}
}

func completionWithContent(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Content: content},
		}},
	}
}

func TestSelectSearchQuery(t *testing.T) {
	const userQuery = "how do I reset my badge?"

	tests := []struct {
		name string
		resp openai.ChatCompletionResponse
		want string
	}{
		{
			name: "function call query wins",
			resp: completionWithFunctionCall(`{"search_query":"badge reset"}`),
			want: "badge reset",
		},
		{
			name: "sentinel function call falls back to user question",
			resp: completionWithFunctionCall(`{"search_query":"0"}`),
			want: userQuery,
		},
		{
			name: "unparseable arguments fall back to user question",
			resp: completionWithFunctionCall(`{"search_query":`),
			want: userQuery,
		},
		{
			name: "plain content used when no function call",
			resp: completionWithContent("badge reset procedure"),
			want: "badge reset procedure",
		},
		{
			name: "sentinel content falls back to user question",
			resp: completionWithContent("0"),
			want: userQuery,
		},
		{
			name: "empty completion falls back to user question",
			resp: openai.ChatCompletionResponse{},
			want: userQuery,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := selectSearchQuery(tt.resp, userQuery); got != tt.want {
				t.Errorf("selectSearchQuery = %q, want %q", got, tt.want)
			}
		})
	}
}

func testStripper() *noiseStripper {
	return newNoiseStripper([]taxonomy.NoiseTerm{
		{Term: "guide", MatchPlural: true},
		{Term: "manual"},
	})
}

func TestNoiseStripper(t *testing.T) {
	s := testStripper()

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"strips single term", "expense guide submission", "expense submission"},
		{"strips plural form", "onboarding guides checklist", "onboarding checklist"},
		{"case insensitive", "Manual override steps", "override steps"},
		{"strips at end of query", "safety manual", "safety "},
		{"term inside longer word survives", "guidebook chapter", "guidebook chapter"},
		{"untouched query passes through", "parking permit renewal", "parking permit renewal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.strip(tt.query); got != tt.want {
				t.Errorf("strip(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestNoiseStripperFallsBackToOriginal(t *testing.T) {
	s := testStripper()

	// A query made entirely of noise terms must not become empty.
	got := s.strip("guide manual")
	if got != "guide manual" {
		t.Errorf("strip of all-noise query = %q, want the original back", got)
	}
}
