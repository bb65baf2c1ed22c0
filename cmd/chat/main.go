// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command chat runs the Copperline grounded chat service.
//
// Configuration comes from the environment, optionally seeded from a
// .env file in the working directory:
//
//	CHAT_PORT             listen port (default 8080)
//	GIN_MODE              debug, release, or test
//	OPENAI_API_KEY        completion and embedding credentials
//	OPENAI_BASE_URL       optional compatible gateway
//	CHAT_MODEL            chat deployment (default gpt-35-turbo)
//	EMBEDDING_MODEL       embedding deployment
//	SEARCH_URL            document index base URL
//	SEARCH_INDEX          document index name
//	SEARCH_KEY            document index api key
//	VISION_ENDPOINT       image embedding service
//	VISION_KEY            image embedding credentials
//	WEAVIATE_URL          conversation store, empty disables it
//	OTLP_ENDPOINT         trace collector, empty disables tracing
//	TAXONOMY_PATH         retrieval taxonomy override file
//	LOG_LEVEL, LOG_DIR    logging
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/copperline-ai/copperline/pkg/logging"
	"github.com/copperline-ai/copperline/services/chat"
)

func main() {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	logger := logging.New(logging.Config{
		Level:   os.Getenv("LOG_LEVEL"),
		LogDir:  os.Getenv("LOG_DIR"),
		Service: "chat",
		JSON:    true,
	})
	defer logger.Close()

	svc, err := chat.New(chat.Config{
		Port:           os.Getenv("CHAT_PORT"),
		GinMode:        os.Getenv("GIN_MODE"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:  os.Getenv("OPENAI_BASE_URL"),
		ChatModel:      os.Getenv("CHAT_MODEL"),
		EmbeddingModel: os.Getenv("EMBEDDING_MODEL"),
		SearchURL:      os.Getenv("SEARCH_URL"),
		SearchIndex:    os.Getenv("SEARCH_INDEX"),
		SearchKey:      os.Getenv("SEARCH_KEY"),
		VisionEndpoint: os.Getenv("VISION_ENDPOINT"),
		VisionKey:      os.Getenv("VISION_KEY"),
		WeaviateURL:    os.Getenv("WEAVIATE_URL"),
		OTLPEndpoint:   os.Getenv("OTLP_ENDPOINT"),
		TaxonomyPath:   os.Getenv("TAXONOMY_PATH"),
		Logger:         logger.Logger,
	})
	if err != nil {
		log.Fatalf("chat service init failed: %v", err)
	}
	defer svc.Close()

	if err := svc.Run(); err != nil {
		log.Fatalf("chat service exited: %v", err)
	}
}
