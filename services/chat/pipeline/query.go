// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/copperline-ai/copperline/services/chat/taxonomy"
)

// searchFunctionName is the function the rewrite model may call to
// emit its derived query.
const searchFunctionName = "search_sources"

// searchFunction is the single function offered to the rewrite call.
var searchFunction = openai.FunctionDefinition{
	Name:        searchFunctionName,
	Description: "Retrieve sources from the company documentation index",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"search_query": map[string]any{
				"type":        "string",
				"description": "Query string to retrieve documents from the index",
			},
		},
		"required": []string{"search_query"},
	},
}

// selectSearchQuery extracts the derived search query from a rewrite
// completion.
//
// A search_sources function call wins when its query is not the no-op
// sentinel; otherwise plain message content is used the same way; when
// both are the sentinel the user's question itself becomes the query.
func selectSearchQuery(resp openai.ChatCompletionResponse, userQuery string) string {
	if len(resp.Choices) == 0 {
		return userQuery
	}
	msg := resp.Choices[0].Message

	if fc := msg.FunctionCall; fc != nil && fc.Name == searchFunctionName {
		var args struct {
			SearchQuery string `json:"search_query"`
		}
		if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
			slog.Warn("unparseable search function arguments, using user question",
				"arguments", fc.Arguments, "error", err)
			return userQuery
		}
		if q := strings.TrimSpace(args.SearchQuery); q != "" && q != noQuerySentinel {
			return q
		}
		return userQuery
	}

	if q := strings.TrimSpace(msg.Content); q != "" && q != noQuerySentinel {
		return q
	}
	return userQuery
}

// noiseStripper removes corpus-descriptive terms from search queries.
type noiseStripper struct {
	patterns []*regexp.Regexp
}

// newNoiseStripper compiles one pattern per taxonomy term. Matches are
// case-insensitive and anchored to a trailing boundary so terms inside
// longer words survive.
func newNoiseStripper(terms []taxonomy.NoiseTerm) *noiseStripper {
	s := &noiseStripper{}
	for _, t := range terms {
		word := regexp.QuoteMeta(strings.ToLower(t.Term))
		var expr string
		if t.MatchPlural {
			expr = `(?i)(` + word + `s?)(\s+|$)`
		} else {
			expr = `(?i)(` + word + `)(\s+|$)`
		}
		s.patterns = append(s.patterns, regexp.MustCompile(expr))
	}
	return s
}

// strip removes every noise term from the query. When stripping leaves
// nothing searchable the original query is returned instead, so
// retrieval always has something to work with.
func (s *noiseStripper) strip(query string) string {
	stripped := query
	for _, p := range s.patterns {
		stripped = p.ReplaceAllString(stripped, "")
	}
	if strings.TrimSpace(stripped) == "" {
		return query
	}
	return stripped
}
