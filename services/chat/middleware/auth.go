// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware holds the gin middleware for the chat service.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/copperline-ai/copperline/services/chat/auth"
)

// claimsContextKey stores parsed claims in the gin context.
const claimsContextKey = "copperline.auth.claims"

// Claims parses the caller's bearer token once per request and stashes
// the result for handlers. A syntactically invalid token is rejected;
// a missing one yields empty claims, since security trimming is
// per-request opt-in.
func Claims(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		claims, err := auth.ParseBearer(c.GetHeader("Authorization"))
		if err != nil {
			logger.Warn("rejecting request with malformed bearer token",
				"path", c.FullPath(), "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "malformed authorization header",
			})
			return
		}
		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

// GetClaims returns the claims stored by the Claims middleware, or
// empty claims when the middleware did not run.
func GetClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(claimsContextKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return &auth.Claims{}
}
