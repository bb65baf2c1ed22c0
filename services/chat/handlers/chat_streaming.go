// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/copperline-ai/copperline/services/chat/datatypes"
	"github.com/copperline-ai/copperline/services/chat/middleware"
	"github.com/copperline-ai/copperline/services/chat/observability"
	"github.com/copperline-ai/copperline/services/chat/pipeline"
)

// heartbeatInterval keeps idle proxies from closing slow streams.
const heartbeatInterval = 15 * time.Second

// HandleChatStream serves POST /v1/chat/stream: the full pipeline with
// the answer delivered as server-sent events.
//
// The pipeline front half runs before the response commits to SSE, so
// retrieval and prompt failures still produce a plain JSON error with
// a proper status code. Once streaming starts, failures become error
// events on the stream.
func (h *ChatHandler) HandleChatStream(c *gin.Context) {
	start := time.Now()

	var req datatypes.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.RecordError(observability.EndpointChatStream, "bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	history, err := decodeMessages(req.Messages)
	if err != nil {
		h.metrics.RecordError(observability.EndpointChatStream, "bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	overrides := req.Context.Overrides

	prep, err := h.runner.Prepare(ctx, history, overrides, middleware.GetClaims(c), true)
	if err != nil {
		status, kind := classifyError(err)
		h.metrics.RecordError(observability.EndpointChatStream, kind)
		h.metrics.RecordRequest(observability.EndpointChatStream, "error", time.Since(start).Seconds())
		h.logger.Error("stream preparation failed", "kind", kind, "error", err)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	stream, err := h.runner.OpenStream(ctx, prep)
	if err != nil {
		h.metrics.RecordError(observability.EndpointChatStream, "upstream_error")
		h.metrics.RecordRequest(observability.EndpointChatStream, "error", time.Since(start).Seconds())
		h.logger.Error("opening answer stream failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	defer stream.Close()

	writer, err := newSSEWriter(c.Writer)
	if err != nil {
		h.metrics.RecordError(observability.EndpointChatStream, "sse_unsupported")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.metrics.RecordRetrievedPassages(len(prep.Context.DataPoints.Text))
	h.metrics.StreamStarted()
	defer func() {
		h.metrics.StreamEnded(time.Since(start).Seconds())
	}()

	stopHeartbeat := make(chan struct{})
	defer close(stopHeartbeat)
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopHeartbeat:
				return
			case <-ticker.C:
				if err := writer.writeHeartbeat(); err != nil {
					return
				}
			}
		}
	}()

	firstChunk := true
	relayErr := pipeline.SplitStream(ctx, stream, prep.Context, req.SessionState,
		overrides.SuggestFollowupQuestions,
		func(chunk datatypes.CompletionChunk) error {
			if firstChunk {
				firstChunk = false
				if h.metrics != nil {
					h.metrics.TimeToFirstToken.Observe(time.Since(start).Seconds())
				}
			}
			if h.metrics != nil {
				h.metrics.StreamChunks.Inc()
			}
			return writer.writeEvent(sseEventChunk, chunk)
		})

	if relayErr != nil {
		h.metrics.RecordError(observability.EndpointChatStream, "stream_error")
		h.metrics.RecordRequest(observability.EndpointChatStream, "error", time.Since(start).Seconds())
		h.logger.Error("stream relay failed", "error", relayErr)
		// Best effort; the connection may already be gone.
		_ = writer.writeEvent(sseEventError, gin.H{"error": relayErr.Error()})
		return
	}

	h.metrics.RecordRequest(observability.EndpointChatStream, "ok", time.Since(start).Seconds())
	_ = writer.writeEvent(sseEventDone, gin.H{})
}
