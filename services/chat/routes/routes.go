// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes maps the chat service URL space onto its handlers.
package routes

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/copperline-ai/copperline/services/chat/handlers"
	"github.com/copperline-ai/copperline/services/chat/middleware"
)

// SetupRoutes registers every endpoint of the chat service.
func SetupRoutes(router *gin.Engine, chat *handlers.ChatHandler, logger *slog.Logger) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.Use(middleware.Claims(logger))
	v1.POST("/chat", chat.HandleChat)
	v1.POST("/chat/stream", chat.HandleChatStream)
}
