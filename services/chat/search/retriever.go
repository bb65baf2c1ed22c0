// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("copperline.services.chat.search")

// =============================================================================
// Passage
// =============================================================================

// Passage is a retrieved document chunk in the uniform shape the rest
// of the pipeline consumes, regardless of which index fields were set
// on the raw record.
//
// # Description
//
// A Passage carries everything the index returned for one result:
// content and labels for prompt assembly and citation, dense vectors
// when the index stores them, access tags for diagnostics, and any
// semantic captions. Passages are immutable once built and owned by a
// single pipeline invocation.
type Passage struct {
	ID             string
	Content        string
	Embedding      []float32
	ImageEmbedding []float32
	Category       string
	SourcePage     string
	SourceFile     string
	OIDs           []string
	Groups         []string
	Captions       []Caption
}

// SerializeForResults renders the passage for a diagnostic trace.
//
// Embedding vectors are trimmed to their first two components plus a
// remainder count so traces stay readable; every other field appears
// verbatim.
func (p Passage) SerializeForResults() map[string]any {
	captions := make([]map[string]any, 0, len(p.Captions))
	for _, c := range p.Captions {
		captions = append(captions, map[string]any{
			"additional_properties": c.AdditionalProperties,
			"text":                  c.Text,
			"highlights":            c.Highlights,
		})
	}
	return map[string]any{
		"id":             p.ID,
		"content":        p.Content,
		"embedding":      trimEmbedding(p.Embedding),
		"imageEmbedding": trimEmbedding(p.ImageEmbedding),
		"category":       p.Category,
		"sourcepage":     p.SourcePage,
		"sourcefile":     p.SourceFile,
		"oids":           p.OIDs,
		"groups":         p.Groups,
		"captions":       captions,
	}
}

// trimEmbedding abbreviates a vector to its first two components and a
// remainder count. Nil means no vector was stored.
func trimEmbedding(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	if len(v) > 2 {
		return fmt.Sprintf("[%g, %g ...+%d more]", v[0], v[1], len(v)-2)
	}
	return fmt.Sprintf("%v", v)
}

// =============================================================================
// Retriever
// =============================================================================

// Retriever executes document retrieval against an index.
//
// # Description
//
// A Retriever issues one query per call, text, vector, or hybrid, and
// flattens the paged response into Passage records in index ranking
// order. Ranking order is authoritative; results are never re-sorted
// locally.
//
// # Thread Safety
//
// A Retriever is immutable after construction and safe for concurrent
// use; each call builds its own request state.
type Retriever struct {
	client                IndexClient
	queryLanguage         string
	speller               string
	semanticConfiguration string
}

// RetrieverOptions tunes the semantic query parameters sent to the
// index. Zero values select the service defaults.
type RetrieverOptions struct {
	QueryLanguage         string
	Speller               string
	SemanticConfiguration string
}

// NewRetriever builds a Retriever over the given index client.
func NewRetriever(client IndexClient, opts RetrieverOptions) *Retriever {
	if opts.QueryLanguage == "" {
		opts.QueryLanguage = "en-us"
	}
	if opts.Speller == "" {
		opts.Speller = "lexicon"
	}
	if opts.SemanticConfiguration == "" {
		opts.SemanticConfiguration = "default"
	}
	return &Retriever{
		client:                client,
		queryLanguage:         opts.QueryLanguage,
		speller:               opts.Speller,
		semanticConfiguration: opts.SemanticConfiguration,
	}
}

// Retrieve runs one retrieval and drains every result page.
//
// # Description
//
// Issues the query, follows continuation tokens until the result set
// is exhausted, and flattens every record into a Passage.
//
// # Inputs
//
//   - top: passages requested per page.
//   - queryText: keyword query; empty for pure vector retrieval.
//   - filter: boolean filter expression; empty for none.
//   - vectors: vector clauses; empty for pure text retrieval.
//   - useSemanticRanker: rerank with the semantic ranker. Text only.
//   - useSemanticCaptions: also request extractive captions. Text only.
//
// # Outputs
//
//   - []Passage: results in index ranking order.
//   - error: transport or index failures, unwrapped via IndexError.
func (r *Retriever) Retrieve(
	ctx context.Context,
	top int,
	queryText string,
	filter string,
	vectors []VectorQuery,
	useSemanticRanker bool,
	useSemanticCaptions bool,
) ([]Passage, error) {
	ctx, span := tracer.Start(ctx, "search.Retrieve",
		trace.WithAttributes(
			attribute.Int("search.top", top),
			attribute.Bool("search.semantic_ranker", useSemanticRanker),
			attribute.Bool("search.semantic_captions", useSemanticCaptions),
			attribute.Int("search.vector_queries", len(vectors)),
		))
	defer span.End()

	req := QueryRequest{
		SearchText:    queryText,
		Filter:        filter,
		Top:           top,
		VectorQueries: vectors,
	}
	if useSemanticRanker && queryText != "" {
		req.QueryType = QueryTypeSemantic
		req.QueryLanguage = r.queryLanguage
		req.Speller = r.speller
		req.SemanticConfiguration = r.semanticConfiguration
		if useSemanticCaptions {
			req.Captions = "extractive|highlight-false"
		}
	}

	var passages []Passage
	for {
		page, err := r.client.Query(ctx, req)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "index query failed")
			return nil, fmt.Errorf("retrieve documents: %w", err)
		}
		for _, rec := range page.Records {
			passages = append(passages, Passage{
				ID:             rec.ID,
				Content:        rec.Content,
				Embedding:      rec.Embedding,
				ImageEmbedding: rec.ImageEmbedding,
				Category:       rec.Category,
				SourcePage:     rec.SourcePage,
				SourceFile:     rec.SourceFile,
				OIDs:           rec.OIDs,
				Groups:         rec.Groups,
				Captions:       rec.Captions,
			})
		}
		if page.Continuation == "" {
			break
		}
		req.Continuation = page.Continuation
	}

	span.SetAttributes(attribute.Int("search.results", len(passages)))
	return passages, nil
}
