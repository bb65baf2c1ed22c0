// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"fmt"
	"strings"

	"github.com/copperline-ai/copperline/services/chat/datatypes"
	"github.com/copperline-ai/copperline/services/chat/taxonomy"
)

// Allow-lists at or above these sizes no longer narrow results in any
// useful way, so the corresponding clause is omitted entirely.
const (
	maxVersionValues  = 14
	maxAudienceValues = 30
)

// Documents without a tag carry the literal value "None" and are always
// admitted by allow-list clauses.
const untaggedValue = "None"

// FilterBuilder assembles index filter expressions from request
// overrides and a precomputed security clause.
type FilterBuilder struct {
	audience taxonomy.Audience
}

// NewFilterBuilder builds a FilterBuilder using the taxonomy's audience
// vocabulary for catch-all expansion.
func NewFilterBuilder(tax *taxonomy.Taxonomy) *FilterBuilder {
	return &FilterBuilder{audience: tax.Audience}
}

// Build combines the category, version, audience, and security clauses
// into one filter expression. An empty result means no filtering.
func (b *FilterBuilder) Build(o datatypes.Overrides, securityClause string) string {
	var clauses []string

	for _, v := range splitValues(o.IncludeCategory, ",") {
		clauses = append(clauses,
			fmt.Sprintf("category ne '%s'", escapeFilterValue(v)))
	}
	if c := b.versionClause(o.IncludeVersion); c != "" {
		clauses = append(clauses, c)
	}
	if c := b.audienceClause(o.IncludeAudience); c != "" {
		clauses = append(clauses, c)
	}
	if securityClause != "" {
		clauses = append(clauses, "("+securityClause+")")
	}

	return strings.Join(clauses, " and ")
}

// versionClause admits documents matching any listed version, plus
// untagged documents. Lists of maxVersionValues or more are ignored.
func (b *FilterBuilder) versionClause(includeVersion string) string {
	values := splitValues(includeVersion, ",")
	if len(values) == 0 || len(values) >= maxVersionValues {
		return ""
	}
	terms := make([]string, 0, len(values)+1)
	for _, v := range values {
		terms = append(terms, fmt.Sprintf("version eq '%s'", escapeFilterValue(v)))
	}
	terms = append(terms, fmt.Sprintf("version eq '%s'", untaggedValue))
	return "(" + strings.Join(terms, " or ") + ")"
}

// audienceClause admits documents tagged for any listed role, plus
// untagged documents and documents addressed to everyone. The catch-all
// role expands to the taxonomy's long tail before the size check, so a
// list that includes it usually exceeds maxAudienceValues and drops the
// clause.
func (b *FilterBuilder) audienceClause(includeAudience string) string {
	values := splitValues(includeAudience, "|")
	if len(values) == 0 {
		return ""
	}

	expanded := make([]string, 0, len(values))
	for _, v := range values {
		if v == b.audience.CatchAll {
			expanded = append(expanded, b.audience.OtherRoles...)
			continue
		}
		expanded = append(expanded, v)
	}
	if len(expanded) >= maxAudienceValues {
		return ""
	}

	terms := make([]string, 0, len(expanded)+2)
	for _, v := range expanded {
		terms = append(terms, fmt.Sprintf("a eq '%s'", escapeFilterValue(v)))
	}
	terms = append(terms, fmt.Sprintf("a eq '%s'", untaggedValue))
	terms = append(terms, fmt.Sprintf("a eq '%s'", escapeFilterValue(b.audience.DefaultRole)))
	return "audience/any(a: " + strings.Join(terms, " or ") + ")"
}

// splitValues splits a delimited allow-list, trimming whitespace and
// dropping empty entries.
func splitValues(list, sep string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(list, sep) {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// escapeFilterValue doubles single quotes so override values cannot
// break out of the filter string literal.
func escapeFilterValue(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}
