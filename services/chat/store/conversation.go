// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package store persists conversation turns for audit and analytics.
//
// Persistence is best effort. The chat pipeline records what the user
// asked, what query was derived, what was retrieved, and what was
// answered, but a storage outage must never fail or delay a chat
// request. Writes are detached from the request and failures are only
// logged.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// Roles recorded in the conversation log.
const (
	RoleUser      = "user"
	RoleQuery     = "query"
	RoleResults   = "results"
	RoleAssistant = "assistant"
)

// conversationClass is the weaviate class holding conversation records.
const conversationClass = "ConversationRecord"

// writeTimeout bounds each detached write.
const writeTimeout = 5 * time.Second

// WeaviateStore writes conversation turns to a weaviate instance.
type WeaviateStore struct {
	client *weaviate.Client
	logger *slog.Logger
}

// NewWeaviateStore wraps an existing weaviate client.
func NewWeaviateStore(client *weaviate.Client, logger *slog.Logger) *WeaviateStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &WeaviateStore{client: client, logger: logger}
}

// EnsureSchema creates the conversation class when it does not exist.
// Called once at startup; safe to call repeatedly.
func (s *WeaviateStore) EnsureSchema(ctx context.Context) error {
	exists, err := s.client.Schema().ClassExistenceChecker().
		WithClassName(conversationClass).
		Do(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	class := &models.Class{
		Class:       conversationClass,
		Description: "One turn of a chat conversation, kept for audit",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:        "role",
				DataType:    []string{"text"},
				Description: "Which side of the exchange this turn records",
			},
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "The turn payload: question, query, results, or answer",
				Tokenization: "word",
			},
			{
				Name:        "createdAt",
				DataType:    []string{"text"},
				Description: "RFC 3339 creation time",
			},
		},
	}
	return s.client.Schema().ClassCreator().WithClass(class).Do(ctx)
}

// Upsert records one conversation turn.
//
// The write runs detached from the caller with its own timeout, so a
// cancelled request context does not abort it and a slow store does not
// block the response. Failures are logged and swallowed.
func (s *WeaviateStore) Upsert(role, content string) {
	id := uuid.NewString()
	createdAt := time.Now().UTC().Format(time.RFC3339)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		_, err := s.client.Data().Creator().
			WithClassName(conversationClass).
			WithID(id).
			WithProperties(map[string]any{
				"role":      role,
				"content":   content,
				"createdAt": createdAt,
			}).
			Do(ctx)
		if err != nil {
			s.logger.Error("conversation turn write failed",
				"role", role,
				"record_id", id,
				"error", err)
		}
	}()
}

// NopStore discards every turn. Used when no store is configured.
type NopStore struct{}

// Upsert discards the turn.
func (NopStore) Upsert(role, content string) {}
