// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pipeline implements the grounded chat flow: derive a search
// query from the conversation, retrieve matching passages, build a
// grounded prompt, and generate the answer, either whole or streamed.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/copperline-ai/copperline/services/chat/auth"
	"github.com/copperline-ai/copperline/services/chat/datatypes"
	"github.com/copperline-ai/copperline/services/chat/search"
	"github.com/copperline-ai/copperline/services/chat/store"
	"github.com/copperline-ai/copperline/services/chat/taxonomy"
)

var tracer = otel.Tracer("copperline.services.chat.pipeline")

// rewriteMaxTokens caps the query rewrite completion. Queries are a
// handful of keywords; anything longer is the model rambling.
const rewriteMaxTokens = 100

// defaultResponseTokenLimit is reserved out of the context window for
// the generated answer.
const defaultResponseTokenLimit = 4000

// reminderThreshold is the prompt length, in messages, past which a
// rules reminder is inserted before the final user turn.
const reminderThreshold = 5

// zeroTemperature pins sampling to greedy decoding. The wire encoding
// omits a plain zero, which the API reads as the default of one, so
// the smallest positive value stands in for zero.
const zeroTemperature = math.SmallestNonzeroFloat32

// =============================================================================
// Collaborator Interfaces
// =============================================================================

// Completer is the slice of the OpenAI client the pipeline calls for
// completions.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error)
}

// DocumentSearcher retrieves passages from the document index.
type DocumentSearcher interface {
	Retrieve(ctx context.Context, top int, queryText, filter string,
		vectors []search.VectorQuery, useSemanticRanker, useSemanticCaptions bool) ([]search.Passage, error)
}

// Vectorizer embeds query text for vector retrieval.
type Vectorizer interface {
	ComputeTextEmbedding(ctx context.Context, q string) (search.VectorQuery, error)
	ComputeImageEmbedding(ctx context.Context, q string) (search.VectorQuery, error)
}

// TurnStore records conversation turns. Implementations must not block
// the request path; see the store package.
type TurnStore interface {
	Upsert(role, content string)
}

// =============================================================================
// Orchestrator
// =============================================================================

// Config wires an Orchestrator.
type Config struct {
	Completer  Completer
	Searcher   DocumentSearcher
	Vectorizer Vectorizer
	Filters    *search.FilterBuilder
	Store      TurnStore
	Counter    TokenCounter
	Taxonomy   *taxonomy.Taxonomy

	// Model is the chat deployment used for both pipeline calls.
	Model string

	// TokenLimit is the model's context window budget.
	TokenLimit int

	// ResponseTokenLimit reserves room for the generated answer.
	// Zero means defaultResponseTokenLimit.
	ResponseTokenLimit int

	Logger *slog.Logger
}

// Orchestrator runs the grounded chat flow.
//
// # Description
//
// One Orchestrator serves all requests. Each call reconciles the
// caller's history, derives a search query, retrieves and formats
// grounding sources, and generates the answer, whole or streamed. The
// rewrite, retrieve, and generate calls are strictly sequential; each
// consumes the previous call's output.
//
// # Thread Safety
//
// Safe for concurrent use. The Orchestrator holds only immutable
// configuration and long-lived clients; all per-request state lives on
// the call stack.
type Orchestrator struct {
	completer  Completer
	searcher   DocumentSearcher
	vectorizer Vectorizer
	filters    *search.FilterBuilder
	store      TurnStore
	counter    TokenCounter
	stripper   *noiseStripper

	model              string
	tokenLimit         int
	responseTokenLimit int
	logger             *slog.Logger
}

// New builds an Orchestrator from config.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Completer == nil || cfg.Searcher == nil || cfg.Filters == nil || cfg.Counter == nil {
		return nil, fmt.Errorf("pipeline config is missing a required collaborator")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("pipeline config is missing the model name")
	}
	if cfg.TokenLimit <= 0 {
		return nil, fmt.Errorf("pipeline config has token limit %d", cfg.TokenLimit)
	}
	if cfg.Taxonomy == nil {
		tax, err := taxonomy.Default()
		if err != nil {
			return nil, err
		}
		cfg.Taxonomy = tax
	}
	if cfg.Store == nil {
		cfg.Store = store.NopStore{}
	}
	if cfg.ResponseTokenLimit <= 0 {
		cfg.ResponseTokenLimit = defaultResponseTokenLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		completer:          cfg.Completer,
		searcher:           cfg.Searcher,
		vectorizer:         cfg.Vectorizer,
		filters:            cfg.Filters,
		store:              cfg.Store,
		counter:            cfg.Counter,
		stripper:           newNoiseStripper(cfg.Taxonomy.NoiseTerms),
		model:              cfg.Model,
		tokenLimit:         cfg.TokenLimit,
		responseTokenLimit: cfg.ResponseTokenLimit,
		logger:             cfg.Logger,
	}, nil
}

// Prepared is the output of the shared pipeline front half: everything
// up to, but not including, the final answer generation.
type Prepared struct {
	// Context is the diagnostic envelope for the eventual response.
	Context *datatypes.ResponseContext

	// Request is the ready-to-send answer generation request.
	Request openai.ChatCompletionRequest
}

// Prepare runs the pipeline up to the answer call.
//
// # Description
//
// Reconciles history, derives and cleans the search query, retrieves
// and formats sources, and assembles the grounded prompt. Both the
// non-streaming and the streaming path run Prepare; only answer
// delivery differs.
//
// # Inputs
//
//   - history: decoded client transcript ending in the current
//     user question.
//   - overrides: per-request retrieval and prompt tuning.
//   - claims: caller identity for security trimming; nil means
//     anonymous.
//   - shouldStream: marks the returned request for streaming delivery.
//
// # Outputs
//
//   - *Prepared: the answer request plus the diagnostic envelope.
//   - error: the first failing stage's error, undecorated beyond a
//     stage prefix.
func (o *Orchestrator) Prepare(
	ctx context.Context,
	history []InputMessage,
	overrides datatypes.Overrides,
	claims *auth.Claims,
	shouldStream bool,
) (*Prepared, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Prepare")
	defer span.End()

	state, err := Reconcile(history)
	if err != nil {
		span.SetStatus(codes.Error, "history reconciliation failed")
		return nil, err
	}
	originalQuery := state.OriginalQuery()
	o.store.Upsert(store.RoleUser, originalQuery)

	respContext := &datatypes.ResponseContext{}
	addThought := func(title string, description any, props map[string]any) {
		respContext.Thoughts = append(respContext.Thoughts, datatypes.ThoughtStep{
			Title: title, Description: description, Props: props,
		})
	}

	securityClause := auth.SecurityFilter(
		overrides.UseOIDSecurityFilter, overrides.UseGroupsSecurityFilter, claims)
	filter := o.filters.Build(overrides, securityClause)

	// Derive the search query from the conversation.
	queryMessages := buildPromptMessages(
		o.counter,
		queryPromptTemplate,
		queryFewShots,
		allButLast(state.QueryMessages()),
		originalQuery,
		o.tokenLimit-len(originalQuery),
	)
	addThought("Search query prompt", queryMessages, nil)

	rewriteResp, err := o.completer.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:        o.model,
		Messages:     toOpenAIMessages(queryMessages),
		Temperature:  zeroTemperature,
		MaxTokens:    rewriteMaxTokens,
		N:            1,
		Functions:    []openai.FunctionDefinition{searchFunction},
		FunctionCall: "auto",
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query rewrite failed")
		return nil, fmt.Errorf("derive search query: %w", err)
	}

	queryText := selectSearchQuery(rewriteResp, originalQuery)

	// The vector side embeds the model's full phrasing; only the
	// keyword side sees the noise-stripped form.
	vectors, err := o.buildVectorQueries(ctx, overrides, queryText)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return nil, err
	}

	queryText = o.stripper.strip(queryText)
	addThought("Generated search query", queryText, map[string]any{
		"use_semantic_captions": overrides.SemanticCaptions && overrides.HasTextSearch(),
		"has_vector":            overrides.HasVectorSearch(),
	})
	span.SetAttributes(attribute.String("pipeline.search_query", queryText))

	state.AppendQueryRewrite(queryText)
	o.store.Upsert(store.RoleQuery, queryText)

	searchText := queryText
	if !overrides.HasTextSearch() {
		searchText = ""
	}

	passages, err := o.searcher.Retrieve(ctx,
		overrides.TopOrDefault(),
		searchText,
		filter,
		vectors,
		overrides.SemanticRanker,
		overrides.SemanticCaptions && overrides.HasTextSearch(),
	)
	if err != nil {
		span.SetStatus(codes.Error, "retrieval failed")
		return nil, err
	}

	sources, err := search.SourcesContent(passages,
		overrides.SemanticCaptions && overrides.HasTextSearch(), false)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "source formatting failed")
		return nil, err
	}
	sourcesBlock := strings.Join(sources, ",\n")
	dumps := make([]map[string]any, 0, len(passages))
	for _, p := range passages {
		dumps = append(dumps, p.SerializeForResults())
	}
	addThought("Results", dumps, nil)
	o.store.Upsert(store.RoleResults, sourcesBlock)

	groundedQuery := originalQuery + "\n\nSources:\n" + sourcesBlock
	state.AppendGroundedUser(groundedQuery)
	respContext.History = state.Turns()
	respContext.DataPoints = datatypes.DataPoints{Text: sources}

	// Assemble the grounded answering prompt.
	chatMessages := buildPromptMessages(
		o.counter,
		systemPrompt(overrides.PromptTemplate, overrides.SuggestFollowupQuestions),
		nil,
		allButLast(state.ChatMessages()),
		groundedQuery,
		o.tokenLimit-o.responseTokenLimit,
	)
	if len(chatMessages) > reminderThreshold {
		reminder := datatypes.Message{Role: datatypes.RoleSystem, Content: promptReminder}
		last := len(chatMessages) - 1
		chatMessages = append(chatMessages[:last],
			append([]datatypes.Message{reminder}, chatMessages[last])...)
	}
	addThought("Prompt", chatMessages, nil)

	o.logger.Info("prepared grounded chat request",
		"search_query", queryText,
		"sources", len(sources),
		"prompt_messages", len(chatMessages),
		"stream", shouldStream)

	return &Prepared{
		Context: respContext,
		Request: openai.ChatCompletionRequest{
			Model:       o.model,
			Messages:    toOpenAIMessages(chatMessages),
			Temperature: zeroTemperature,
			MaxTokens:   o.responseTokenLimit,
			N:           1,
			Stream:      shouldStream,
		},
	}, nil
}

// Run executes the full pipeline and returns a complete answer.
func (o *Orchestrator) Run(
	ctx context.Context,
	history []InputMessage,
	sessionState any,
	overrides datatypes.Overrides,
	claims *auth.Claims,
) (*datatypes.ChatResponse, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Run")
	defer span.End()

	prep, err := o.Prepare(ctx, history, overrides, claims, false)
	if err != nil {
		return nil, err
	}

	resp, err := o.completer.CreateChatCompletion(ctx, prep.Request)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "answer generation failed")
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("generate answer: empty completion")
	}

	content := resp.Choices[0].Message.Content
	if overrides.SuggestFollowupQuestions {
		answer, questions := extractFollowupQuestions(content)
		content = answer
		prep.Context.FollowupQuestions = questions
	}
	o.store.Upsert(store.RoleAssistant, content)

	return &datatypes.ChatResponse{
		Object: "chat.completion",
		Choices: []datatypes.ResponseChoice{{
			Index:        0,
			Message:      datatypes.Message{Role: datatypes.RoleAssistant, Content: content},
			Context:      prep.Context,
			SessionState: sessionState,
			FinishReason: string(resp.Choices[0].FinishReason),
		}},
	}, nil
}

// OpenStream starts the answer generation stream for a prepared
// request. The caller drives delivery with SplitStream and must close
// the returned stream.
func (o *Orchestrator) OpenStream(ctx context.Context, prep *Prepared) (*openai.ChatCompletionStream, error) {
	stream, err := o.completer.CreateChatCompletionStream(ctx, prep.Request)
	if err != nil {
		return nil, fmt.Errorf("open answer stream: %w", err)
	}
	return stream, nil
}

// SplitStream relays a model stream to emit, separating follow-up
// questions from answer text. See splitStream for the contract.
func SplitStream(
	ctx context.Context,
	src ChunkSource,
	respContext *datatypes.ResponseContext,
	sessionState any,
	suggestFollowups bool,
	emit EmitFunc,
) error {
	return splitStream(ctx, src, respContext, sessionState, suggestFollowups, emit)
}

// =============================================================================
// Helpers
// =============================================================================

// buildVectorQueries embeds the query once per requested vector field.
func (o *Orchestrator) buildVectorQueries(
	ctx context.Context, overrides datatypes.Overrides, queryText string,
) ([]search.VectorQuery, error) {
	if !overrides.HasVectorSearch() {
		return nil, nil
	}
	if o.vectorizer == nil {
		return nil, fmt.Errorf("vector retrieval requested but no vectorizer configured")
	}

	fields := overrides.VectorFields
	if len(fields) == 0 {
		fields = []string{datatypes.VectorFieldText}
	}

	var vectors []search.VectorQuery
	for _, f := range fields {
		switch f {
		case datatypes.VectorFieldText:
			vq, err := o.vectorizer.ComputeTextEmbedding(ctx, queryText)
			if err != nil {
				return nil, err
			}
			vectors = append(vectors, vq)
		case datatypes.VectorFieldImage:
			vq, err := o.vectorizer.ComputeImageEmbedding(ctx, queryText)
			if err != nil {
				return nil, err
			}
			vectors = append(vectors, vq)
		default:
			return nil, fmt.Errorf("unknown vector field %q", f)
		}
	}
	return vectors, nil
}

// allButLast drops the final message. The pipeline passes the current
// turn to the budgeter separately, so projections that end with it
// would otherwise duplicate it.
func allButLast(msgs []datatypes.Message) []datatypes.Message {
	if len(msgs) == 0 {
		return nil
	}
	return msgs[:len(msgs)-1]
}

func toOpenAIMessages(msgs []datatypes.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
