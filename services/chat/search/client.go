// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package search talks to the document index: query construction,
// retrieval, embedding computation, and citation formatting.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// QueryType selects the index ranking strategy.
type QueryType string

const (
	// QueryTypeSimple is plain keyword ranking.
	QueryTypeSimple QueryType = "simple"

	// QueryTypeSemantic reranks keyword results with the semantic
	// ranker and can return extractive captions.
	QueryTypeSemantic QueryType = "semantic"
)

// VectorQuery is one vector clause of an index query.
type VectorQuery struct {
	Vector []float32 `json:"vector"`
	K      int       `json:"k"`
	Fields string    `json:"fields"`
}

// QueryRequest is the body of an index query call.
type QueryRequest struct {
	SearchText            string        `json:"search,omitempty"`
	Filter                string        `json:"filter,omitempty"`
	Top                   int           `json:"top"`
	QueryType             QueryType     `json:"queryType,omitempty"`
	QueryLanguage         string        `json:"queryLanguage,omitempty"`
	Speller               string        `json:"speller,omitempty"`
	SemanticConfiguration string        `json:"semanticConfiguration,omitempty"`
	Captions              string        `json:"captions,omitempty"`
	VectorQueries         []VectorQuery `json:"vectorQueries,omitempty"`

	// Continuation resumes a paged result set. Empty on the first call.
	Continuation string `json:"continuation,omitempty"`
}

// Caption is an extractive snippet attached to a result by the
// semantic ranker.
type Caption struct {
	Text                 string         `json:"text"`
	Highlights           string         `json:"highlights,omitempty"`
	AdditionalProperties map[string]any `json:"additional_properties,omitempty"`
}

// IndexRecord is one raw result from the index.
type IndexRecord struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	Embedding      []float32 `json:"embedding,omitempty"`
	ImageEmbedding []float32 `json:"imageEmbedding,omitempty"`
	Category       string    `json:"category"`
	SourcePage     string    `json:"sourcepage"`
	SourceFile     string    `json:"sourcefile"`
	OIDs           []string  `json:"oids,omitempty"`
	Groups         []string  `json:"groups,omitempty"`
	Captions       []Caption `json:"@search.captions,omitempty"`
}

// QueryPage is one page of index results. A non-empty Continuation
// means more results are available.
type QueryPage struct {
	Records      []IndexRecord `json:"value"`
	Continuation string        `json:"continuation,omitempty"`
}

// IndexClient fetches one page of results from the document index.
type IndexClient interface {
	Query(ctx context.Context, req QueryRequest) (*QueryPage, error)
}

// IndexError reports a non-success status from the index service.
type IndexError struct {
	StatusCode int
	Body       string
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index query failed with status %d: %s", e.StatusCode, e.Body)
}

// IsIndexError reports whether err is an IndexError.
func IsIndexError(err error) bool {
	var ie *IndexError
	return errors.As(err, &ie)
}

// httpIndexClient is the production IndexClient over the index REST API.
type httpIndexClient struct {
	baseURL    string
	index      string
	apiKey     string
	httpClient *http.Client
}

var _ IndexClient = (*httpIndexClient)(nil)

// NewIndexClient builds an IndexClient for the index service at
// baseURL, querying the named index. apiKey may be empty for indexes
// that rely on network-level auth.
func NewIndexClient(baseURL, index, apiKey string) IndexClient {
	return &httpIndexClient{
		baseURL: baseURL,
		index:   index,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *httpIndexClient) Query(ctx context.Context, req QueryRequest) (*QueryPage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal index query: %w", err)
	}

	url := fmt.Sprintf("%s/indexes/%s/query", c.baseURL, c.index)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create index request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call index: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read index response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &IndexError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var page QueryPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("parse index response: %w", err)
	}
	return &page, nil
}
