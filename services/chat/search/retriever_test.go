// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"context"
	"errors"
	"testing"
)

// fakeIndexClient replays scripted pages and records every request.
type fakeIndexClient struct {
	pages    []QueryPage
	requests []QueryRequest
	err      error
}

func (f *fakeIndexClient) Query(_ context.Context, req QueryRequest) (*QueryPage, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	i := len(f.requests) - 1
	if i >= len(f.pages) {
		return &QueryPage{}, nil
	}
	page := f.pages[i]
	return &page, nil
}

func TestRetrieveDrainsAllPages(t *testing.T) {
	client := &fakeIndexClient{
		pages: []QueryPage{
			{
				Records:      []IndexRecord{{ID: "a"}, {ID: "b"}},
				Continuation: "page-2",
			},
			{
				Records: []IndexRecord{{ID: "c"}},
			},
		},
	}
	r := NewRetriever(client, RetrieverOptions{})

	passages, err := r.Retrieve(context.Background(), 3, "benefits", "", nil, false, false)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(passages) != 3 {
		t.Fatalf("got %d passages, want 3", len(passages))
	}
	if passages[2].ID != "c" {
		t.Errorf("last passage id = %q, want c", passages[2].ID)
	}
	if len(client.requests) != 2 {
		t.Fatalf("made %d requests, want 2", len(client.requests))
	}
	if client.requests[0].Continuation != "" {
		t.Errorf("first request has continuation %q", client.requests[0].Continuation)
	}
	if client.requests[1].Continuation != "page-2" {
		t.Errorf("second request continuation = %q, want page-2", client.requests[1].Continuation)
	}
}

func TestRetrieveCarriesAllRecordFields(t *testing.T) {
	client := &fakeIndexClient{
		pages: []QueryPage{{
			Records: []IndexRecord{{
				ID:             "doc-1",
				Content:        "PTO accrues monthly.",
				Embedding:      []float32{0.1, 0.2, 0.3},
				ImageEmbedding: []float32{0.4},
				Category:       "benefits",
				SourcePage:     "handbook-4.png",
				SourceFile:     "handbook.pdf",
				OIDs:           []string{"u1"},
				Groups:         []string{"g1", "g2"},
				Captions:       []Caption{{Text: "accrual", Highlights: "accrual"}},
			}},
		}},
	}
	r := NewRetriever(client, RetrieverOptions{})

	passages, err := r.Retrieve(context.Background(), 3, "pto", "", nil, false, false)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(passages) != 1 {
		t.Fatalf("got %d passages, want 1", len(passages))
	}
	p := passages[0]
	if len(p.Embedding) != 3 || len(p.ImageEmbedding) != 1 {
		t.Errorf("vectors dropped: %d text, %d image", len(p.Embedding), len(p.ImageEmbedding))
	}
	if len(p.OIDs) != 1 || len(p.Groups) != 2 {
		t.Errorf("access tags dropped: oids %v, groups %v", p.OIDs, p.Groups)
	}
	if len(p.Captions) != 1 || p.Captions[0].Text != "accrual" {
		t.Errorf("captions = %v", p.Captions)
	}
}

func TestSerializeForResultsTrimsEmbeddings(t *testing.T) {
	p := Passage{
		ID:        "doc-1",
		Content:   "body",
		Embedding: []float32{0.25, 0.5, 0.75, 1},
		OIDs:      []string{"u1"},
		Captions:  []Caption{{Text: "snippet"}},
	}

	dump := p.SerializeForResults()
	if dump["embedding"] != "[0.25, 0.5 ...+2 more]" {
		t.Errorf("embedding = %v", dump["embedding"])
	}
	if dump["imageEmbedding"] != nil {
		t.Errorf("imageEmbedding = %v, want nil for a missing vector", dump["imageEmbedding"])
	}
	if got, _ := dump["oids"].([]string); len(got) != 1 || got[0] != "u1" {
		t.Errorf("oids = %v", dump["oids"])
	}
	captions, _ := dump["captions"].([]map[string]any)
	if len(captions) != 1 || captions[0]["text"] != "snippet" {
		t.Errorf("captions = %v", dump["captions"])
	}

	// Short vectors print whole.
	short := Passage{Embedding: []float32{0.1, 0.2}}.SerializeForResults()
	if short["embedding"] != "[0.1 0.2]" {
		t.Errorf("short embedding = %v", short["embedding"])
	}
}

func TestRetrieveSemanticParameters(t *testing.T) {
	client := &fakeIndexClient{pages: []QueryPage{{}}}
	r := NewRetriever(client, RetrieverOptions{})

	_, err := r.Retrieve(context.Background(), 3, "benefits", "", nil, true, true)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	req := client.requests[0]
	if req.QueryType != QueryTypeSemantic {
		t.Errorf("QueryType = %q, want semantic", req.QueryType)
	}
	if req.QueryLanguage != "en-us" || req.Speller != "lexicon" {
		t.Errorf("language/speller = %q/%q", req.QueryLanguage, req.Speller)
	}
	if req.SemanticConfiguration != "default" {
		t.Errorf("SemanticConfiguration = %q", req.SemanticConfiguration)
	}
	if req.Captions != "extractive|highlight-false" {
		t.Errorf("Captions = %q, want extractive|highlight-false", req.Captions)
	}
}

func TestRetrievePlainQueryOmitsSemanticParameters(t *testing.T) {
	client := &fakeIndexClient{pages: []QueryPage{{}}}
	r := NewRetriever(client, RetrieverOptions{})

	_, err := r.Retrieve(context.Background(), 3, "benefits", "", nil, false, false)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	req := client.requests[0]
	if req.QueryType != "" || req.Captions != "" || req.SemanticConfiguration != "" {
		t.Errorf("plain query carried semantic parameters: %+v", req)
	}
}

func TestRetrieveVectorOnlySkipsSemanticRanker(t *testing.T) {
	client := &fakeIndexClient{pages: []QueryPage{{}}}
	r := NewRetriever(client, RetrieverOptions{})

	vectors := []VectorQuery{{Vector: []float32{0.1}, K: 50, Fields: "embedding"}}
	_, err := r.Retrieve(context.Background(), 3, "", "", vectors, true, false)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	req := client.requests[0]
	if req.QueryType != "" {
		t.Errorf("vector-only query set QueryType %q", req.QueryType)
	}
	if len(req.VectorQueries) != 1 {
		t.Errorf("vector queries = %d, want 1", len(req.VectorQueries))
	}
}

func TestRetrievePropagatesIndexError(t *testing.T) {
	client := &fakeIndexClient{err: &IndexError{StatusCode: 503, Body: "down"}}
	r := NewRetriever(client, RetrieverOptions{})

	_, err := r.Retrieve(context.Background(), 3, "q", "", nil, false, false)
	if err == nil {
		t.Fatal("Retrieve succeeded, want error")
	}
	var ie *IndexError
	if !errors.As(err, &ie) {
		t.Errorf("error %v does not wrap IndexError", err)
	}
}
