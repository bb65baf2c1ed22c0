// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// Retrieval modes accepted in Overrides.RetrievalMode. An empty mode
// behaves like hybrid.
const (
	RetrievalModeText    = "text"
	RetrievalModeVectors = "vectors"
	RetrievalModeHybrid  = "hybrid"
)

// Vector field names accepted in Overrides.VectorFields.
const (
	VectorFieldText  = "embedding"
	VectorFieldImage = "imageEmbedding"
)

// Overrides tunes a single chat request. Every field is optional; zero
// values select the documented defaults.
type Overrides struct {
	// RetrievalMode selects text, vectors, or hybrid retrieval.
	RetrievalMode string `json:"retrieval_mode,omitempty" binding:"omitempty,oneof=text vectors hybrid"`

	// SemanticRanker reranks text results with the semantic ranker.
	// It only applies when text retrieval is active.
	SemanticRanker bool `json:"semantic_ranker"`

	// SemanticCaptions grounds answers on extractive captions instead
	// of full passage bodies. Requires text retrieval.
	SemanticCaptions bool `json:"semantic_captions"`

	// Top is the number of passages to ground on. Zero means 3.
	Top int `json:"top,omitempty" binding:"omitempty,min=1,max=50"`

	// VectorFields names the index vector fields to query when vector
	// retrieval is active. Empty means the text embedding field only.
	VectorFields []string `json:"vector_fields,omitempty"`

	// PromptTemplate replaces or extends the system prompt. A value
	// starting with ">>>" is injected into the default prompt; any
	// other value replaces it entirely.
	PromptTemplate string `json:"prompt_template,omitempty"`

	// SuggestFollowupQuestions asks the model to append follow-up
	// questions, which are split off the answer before delivery.
	SuggestFollowupQuestions bool `json:"suggest_followup_questions"`

	// IncludeCategory is a comma separated list of categories whose
	// documents are excluded from retrieval. The name is historical;
	// every listed category lands on the exclusion side of the filter.
	IncludeCategory string `json:"include_category,omitempty"`

	// IncludeVersion is a comma separated allow-list of document
	// versions. Ignored when it expands to 14 or more values.
	IncludeVersion string `json:"include_version,omitempty"`

	// IncludeAudience is a pipe separated allow-list of audience
	// roles. Ignored when it expands to 30 or more values. The
	// literal value "Other" expands to the long tail of roles that
	// have no dedicated tag.
	IncludeAudience string `json:"include_audience,omitempty"`

	// UseOIDSecurityFilter restricts results to documents visible to
	// the caller's object id.
	UseOIDSecurityFilter bool `json:"use_oid_security_filter"`

	// UseGroupsSecurityFilter restricts results to documents visible
	// to the caller's directory groups.
	UseGroupsSecurityFilter bool `json:"use_groups_security_filter"`
}

// HasTextSearch reports whether the override selects keyword retrieval.
func (o Overrides) HasTextSearch() bool {
	return o.RetrievalMode == RetrievalModeText ||
		o.RetrievalMode == RetrievalModeHybrid ||
		o.RetrievalMode == ""
}

// HasVectorSearch reports whether the override selects vector retrieval.
func (o Overrides) HasVectorSearch() bool {
	return o.RetrievalMode == RetrievalModeVectors ||
		o.RetrievalMode == RetrievalModeHybrid ||
		o.RetrievalMode == ""
}

// TopOrDefault returns the passage count, defaulting to 3.
func (o Overrides) TopOrDefault() int {
	if o.Top <= 0 {
		return 3
	}
	return o.Top
}
