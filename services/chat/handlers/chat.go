// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers exposes the chat pipeline over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	openai "github.com/sashabaranov/go-openai"

	"github.com/copperline-ai/copperline/services/chat/auth"
	"github.com/copperline-ai/copperline/services/chat/datatypes"
	"github.com/copperline-ai/copperline/services/chat/middleware"
	"github.com/copperline-ai/copperline/services/chat/observability"
	"github.com/copperline-ai/copperline/services/chat/pipeline"
	"github.com/copperline-ai/copperline/services/chat/search"
)

// ChatRunner is the slice of the pipeline orchestrator the handlers
// drive.
type ChatRunner interface {
	Run(ctx context.Context, history []pipeline.InputMessage, sessionState any,
		overrides datatypes.Overrides, claims *auth.Claims) (*datatypes.ChatResponse, error)
	Prepare(ctx context.Context, history []pipeline.InputMessage,
		overrides datatypes.Overrides, claims *auth.Claims, shouldStream bool) (*pipeline.Prepared, error)
	OpenStream(ctx context.Context, prep *pipeline.Prepared) (*openai.ChatCompletionStream, error)
}

// ChatHandler serves the chat endpoints.
type ChatHandler struct {
	runner  ChatRunner
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewChatHandler wires a ChatHandler. metrics may be nil in tests.
func NewChatHandler(runner ChatRunner, metrics *observability.Metrics, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{runner: runner, metrics: metrics, logger: logger}
}

// HandleChat serves POST /v1/chat: the full pipeline, one JSON answer.
func (h *ChatHandler) HandleChat(c *gin.Context) {
	start := time.Now()

	var req datatypes.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.RecordError(observability.EndpointChat, "bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	history, err := decodeMessages(req.Messages)
	if err != nil {
		h.metrics.RecordError(observability.EndpointChat, "bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.runner.Run(c.Request.Context(), history, req.SessionState,
		req.Context.Overrides, middleware.GetClaims(c))
	if err != nil {
		status, kind := classifyError(err)
		h.metrics.RecordError(observability.EndpointChat, kind)
		h.metrics.RecordRequest(observability.EndpointChat, "error", time.Since(start).Seconds())
		h.logger.Error("chat request failed", "kind", kind, "error", err)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	h.metrics.RecordRequest(observability.EndpointChat, "ok", time.Since(start).Seconds())
	if len(resp.Choices) > 0 && resp.Choices[0].Context != nil {
		h.metrics.RecordRetrievedPassages(len(resp.Choices[0].Context.DataPoints.Text))
	}
	c.JSON(http.StatusOK, resp)
}

// decodeMessages turns raw request messages into pipeline input,
// expanding snapshot entries into their turns.
func decodeMessages(msgs []datatypes.ChatMessage) ([]pipeline.InputMessage, error) {
	out := make([]pipeline.InputMessage, 0, len(msgs))
	for i, m := range msgs {
		in := pipeline.InputMessage{Role: m.Role}
		if m.Role == datatypes.RoleSnapshot {
			if err := json.Unmarshal(m.Content, &in.Snapshot); err != nil {
				return nil, fmt.Errorf("message %d: decode history snapshot: %w", i, err)
			}
		} else {
			text, err := m.Text()
			if err != nil {
				return nil, fmt.Errorf("message %d: content is not a string: %w", i, err)
			}
			in.Content = text
		}
		out = append(out, in)
	}
	return out, nil
}

// classifyError maps pipeline failures to an HTTP status and a metrics
// kind. Upstream outages surface as 502 so callers can tell them from
// bugs in this service.
func classifyError(err error) (int, string) {
	switch {
	case search.IsIndexError(err):
		return http.StatusBadGateway, "index_error"
	case search.IsMalformedSourceError(err):
		return http.StatusInternalServerError, "malformed_source"
	default:
		return http.StatusInternalServerError, "pipeline_error"
	}
}
