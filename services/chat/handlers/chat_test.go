// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copperline-ai/copperline/services/chat/auth"
	"github.com/copperline-ai/copperline/services/chat/datatypes"
	"github.com/copperline-ai/copperline/services/chat/pipeline"
	"github.com/copperline-ai/copperline/services/chat/search"
)

type fakeRunner struct {
	resp       *datatypes.ChatResponse
	runErr     error
	prepareErr error

	gotHistory   []pipeline.InputMessage
	gotOverrides datatypes.Overrides
	gotClaims    *auth.Claims
}

func (f *fakeRunner) Run(_ context.Context, history []pipeline.InputMessage, _ any,
	overrides datatypes.Overrides, claims *auth.Claims) (*datatypes.ChatResponse, error) {
	f.gotHistory = history
	f.gotOverrides = overrides
	f.gotClaims = claims
	return f.resp, f.runErr
}

func (f *fakeRunner) Prepare(_ context.Context, history []pipeline.InputMessage,
	overrides datatypes.Overrides, claims *auth.Claims, _ bool) (*pipeline.Prepared, error) {
	f.gotHistory = history
	f.gotOverrides = overrides
	f.gotClaims = claims
	return nil, f.prepareErr
}

func (f *fakeRunner) OpenStream(context.Context, *pipeline.Prepared) (*openai.ChatCompletionStream, error) {
	return nil, errors.New("not scripted")
}

func newTestRouter(runner ChatRunner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewChatHandler(runner, nil, nil)
	r.POST("/v1/chat", h.HandleChat)
	r.POST("/v1/chat/stream", h.HandleChatStream)
	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleChatSuccess(t *testing.T) {
	runner := &fakeRunner{resp: &datatypes.ChatResponse{
		Object: "chat.completion",
		Choices: []datatypes.ResponseChoice{{
			Message: datatypes.Message{Role: "assistant", Content: "answer [a.pdf]"},
			Context: &datatypes.ResponseContext{},
		}},
	}}
	r := newTestRouter(runner)

	w := postJSON(r, "/v1/chat", `{
		"messages": [{"role": "user", "content": "what is the wifi password?"}],
		"context": {"overrides": {"retrieval_mode": "text", "top": 5}}
	}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "answer [a.pdf]")
	assert.Equal(t, 5, runner.gotOverrides.Top)
	require.Len(t, runner.gotHistory, 1)
	assert.Equal(t, "what is the wifi password?", runner.gotHistory[0].Content)
}

func TestHandleChatDecodesSnapshot(t *testing.T) {
	runner := &fakeRunner{resp: &datatypes.ChatResponse{}}
	r := newTestRouter(runner)

	w := postJSON(r, "/v1/chat", `{
		"messages": [
			{"role": "history", "content": [
				{"role": "user", "content": "q1"},
				{"role": "query_rewrite", "content": "kw"}
			]},
			{"role": "user", "content": "q2"}
		]
	}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, runner.gotHistory, 2)
	require.Len(t, runner.gotHistory[0].Snapshot, 2)
	assert.Equal(t, datatypes.KindQueryRewrite, runner.gotHistory[0].Snapshot[1].Kind)
}

func TestHandleChatRejectsBadBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"no messages", `{"messages": []}`},
		{"non-string content", `{"messages": [{"role": "user", "content": 42}]}`},
		{"bad snapshot", `{"messages": [{"role": "history", "content": "oops"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&fakeRunner{resp: &datatypes.ChatResponse{}})
			w := postJSON(r, "/v1/chat", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestHandleChatMapsUpstreamFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"index outage", &search.IndexError{StatusCode: 503, Body: "down"}, http.StatusBadGateway},
		{"malformed source", &search.MalformedSourceError{SourcePage: "x.png"}, http.StatusInternalServerError},
		{"other failure", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&fakeRunner{runErr: tt.err})
			w := postJSON(r, "/v1/chat", `{"messages": [{"role": "user", "content": "q"}]}`)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestHandleChatStreamPrepareFailureIsPlainJSON(t *testing.T) {
	r := newTestRouter(&fakeRunner{prepareErr: &search.IndexError{StatusCode: 500, Body: "x"}})

	w := postJSON(r, "/v1/chat/stream", `{"messages": [{"role": "user", "content": "q"}]}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
}
