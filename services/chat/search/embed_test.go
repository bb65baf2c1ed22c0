// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

type fakeEmbeddingClient struct {
	lastReq openai.EmbeddingRequest
	vector  []float32
}

func (f *fakeEmbeddingClient) CreateEmbeddings(
	_ context.Context, conv openai.EmbeddingRequestConverter,
) (openai.EmbeddingResponse, error) {
	if req, ok := conv.(openai.EmbeddingRequest); ok {
		f.lastReq = req
	}
	return openai.EmbeddingResponse{
		Data: []openai.Embedding{{Embedding: f.vector}},
	}, nil
}

func TestComputeTextEmbedding(t *testing.T) {
	client := &fakeEmbeddingClient{vector: []float32{0.1, 0.2, 0.3}}
	e := NewEmbedder(EmbedderConfig{Client: client, EmbeddingModel: "text-embedding-ada-002"})

	vq, err := e.ComputeTextEmbedding(context.Background(), "vacation policy")
	if err != nil {
		t.Fatalf("ComputeTextEmbedding: %v", err)
	}
	if vq.Fields != "embedding" {
		t.Errorf("Fields = %q, want embedding", vq.Fields)
	}
	if vq.K != vectorCandidates {
		t.Errorf("K = %d, want %d", vq.K, vectorCandidates)
	}
	if len(vq.Vector) != 3 {
		t.Errorf("vector length = %d, want 3", len(vq.Vector))
	}
	if len(client.lastReq.Input.([]string)) != 1 {
		t.Errorf("embedding request input = %v", client.lastReq.Input)
	}
}

func TestComputeImageEmbedding(t *testing.T) {
	var gotKey, gotQuery string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Ocp-Apim-Subscription-Key")
		gotQuery = r.URL.RawQuery
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"vector": []float32{0.5, 0.6}})
	}))
	defer srv.Close()

	e := NewEmbedder(EmbedderConfig{
		VisionEndpoint: srv.URL,
		VisionKey:      "secret",
	})

	vq, err := e.ComputeImageEmbedding(context.Background(), "org chart diagram")
	if err != nil {
		t.Fatalf("ComputeImageEmbedding: %v", err)
	}
	if vq.Fields != "imageEmbedding" {
		t.Errorf("Fields = %q, want imageEmbedding", vq.Fields)
	}
	if vq.K != vectorCandidates {
		t.Errorf("K = %d, want %d", vq.K, vectorCandidates)
	}
	if len(vq.Vector) != 2 {
		t.Errorf("vector length = %d, want 2", len(vq.Vector))
	}
	if gotKey != "secret" {
		t.Errorf("subscription key header = %q", gotKey)
	}
	if gotBody["text"] != "org chart diagram" {
		t.Errorf("request body = %v", gotBody)
	}
	if gotQuery != "api-version="+visionAPIVersion+"&modelVersion=latest" {
		t.Errorf("query string = %q", gotQuery)
	}
}

func TestComputeImageEmbeddingFailsOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "throttled", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := NewEmbedder(EmbedderConfig{VisionEndpoint: srv.URL})
	if _, err := e.ComputeImageEmbedding(context.Background(), "q"); err == nil {
		t.Fatal("ComputeImageEmbedding succeeded, want error")
	}
}

func TestComputeImageEmbeddingRequiresEndpoint(t *testing.T) {
	e := NewEmbedder(EmbedderConfig{})
	if _, err := e.ComputeImageEmbedding(context.Background(), "q"); err == nil {
		t.Fatal("ComputeImageEmbedding without endpoint succeeded, want error")
	}
}
