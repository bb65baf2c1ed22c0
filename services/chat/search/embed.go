// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Default K for vector queries. Retrieval fuses vector and text
// rankings, so the vector side always asks for a generous candidate
// pool regardless of how many passages the caller wants back.
const vectorCandidates = 50

// visionAPIVersion pins the vision vectorize endpoint revision.
const visionAPIVersion = "2023-02-01-preview"

// EmbeddingClient is the slice of the OpenAI client used for text
// embeddings.
type EmbeddingClient interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// Embedder turns query text into the vector queries retrieval needs.
type Embedder struct {
	client         EmbeddingClient
	embeddingModel string

	visionEndpoint string
	visionKey      string
	httpClient     *http.Client
}

// EmbedderConfig wires an Embedder.
type EmbedderConfig struct {
	// Client computes text embeddings.
	Client EmbeddingClient

	// EmbeddingModel is the embedding model or deployment name.
	EmbeddingModel string

	// VisionEndpoint and VisionKey configure the image embedding
	// service. Both may be empty when image retrieval is unused.
	VisionEndpoint string
	VisionKey      string
}

// NewEmbedder builds an Embedder from config.
func NewEmbedder(cfg EmbedderConfig) *Embedder {
	return &Embedder{
		client:         cfg.Client,
		embeddingModel: cfg.EmbeddingModel,
		visionEndpoint: cfg.VisionEndpoint,
		visionKey:      cfg.VisionKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ComputeTextEmbedding embeds the query text and wraps it as a vector
// query against the text embedding field.
func (e *Embedder) ComputeTextEmbedding(ctx context.Context, q string) (VectorQuery, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{q},
		Model: openai.EmbeddingModel(e.embeddingModel),
	})
	if err != nil {
		return VectorQuery{}, fmt.Errorf("compute text embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return VectorQuery{}, fmt.Errorf("compute text embedding: empty response")
	}
	return VectorQuery{
		Vector: resp.Data[0].Embedding,
		K:      vectorCandidates,
		Fields: "embedding",
	}, nil
}

// ComputeImageEmbedding embeds the query text in the image embedding
// space via the vision service and wraps it as a vector query against
// the image embedding field.
func (e *Embedder) ComputeImageEmbedding(ctx context.Context, q string) (VectorQuery, error) {
	if e.visionEndpoint == "" {
		return VectorQuery{}, fmt.Errorf("compute image embedding: vision endpoint not configured")
	}

	body, err := json.Marshal(map[string]string{"text": q})
	if err != nil {
		return VectorQuery{}, fmt.Errorf("marshal vision request: %w", err)
	}

	endpoint := fmt.Sprintf(
		"%s/computervision/retrieval:vectorizeText?api-version=%s&modelVersion=latest",
		e.visionEndpoint, url.QueryEscape(visionAPIVersion))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return VectorQuery{}, fmt.Errorf("create vision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", e.visionKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return VectorQuery{}, fmt.Errorf("call vision service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return VectorQuery{}, fmt.Errorf("read vision response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return VectorQuery{}, fmt.Errorf(
			"vision service returned status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Vector []float32 `json:"vector"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return VectorQuery{}, fmt.Errorf("parse vision response: %w", err)
	}
	return VectorQuery{
		Vector: parsed.Vector,
		K:      vectorCandidates,
		Fields: "imageEmbedding",
	}, nil
}
