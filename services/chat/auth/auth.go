// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package auth translates caller identity into retrieval restrictions.
//
// The service runs behind a gateway that authenticates requests and
// forwards the verified bearer token. This package only reads the
// claims it needs for document-level security trimming; it does not
// verify signatures, that is the gateway's job.
package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Claims is the subset of token claims used for security trimming.
type Claims struct {
	// OID is the caller's directory object id.
	OID string `json:"oid"`

	// Groups are the directory group ids the caller belongs to.
	Groups []string `json:"groups"`
}

// ParseBearer extracts claims from an "Authorization: Bearer" header
// value. It decodes the token payload without signature verification.
// A missing header yields empty claims, not an error, so anonymous
// requests still work when security trimming is disabled.
func ParseBearer(header string) (*Claims, error) {
	if header == "" {
		return &Claims{}, nil
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, fmt.Errorf("authorization header is not a bearer token")
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("bearer token is not a JWT")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode token payload: %w", err)
	}
	var c Claims
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("parse token payload: %w", err)
	}
	return &c, nil
}

// SecurityFilter builds the document-level security clause for a
// search filter. useOID and useGroups select which restrictions apply;
// the result is empty when neither does or the claims carry no values.
//
// Documents store the principals allowed to see them in the oids and
// groups collections. A caller may see a document when either
// collection contains one of their principals.
func SecurityFilter(useOID, useGroups bool, c *Claims) string {
	if c == nil {
		c = &Claims{}
	}
	var clauses []string
	if useOID && c.OID != "" {
		clauses = append(clauses,
			fmt.Sprintf("oids/any(g:search.in(g, '%s'))", escapeFilterValue(c.OID)))
	}
	if useGroups && len(c.Groups) > 0 {
		escaped := make([]string, len(c.Groups))
		for i, g := range c.Groups {
			escaped[i] = escapeFilterValue(g)
		}
		clauses = append(clauses,
			fmt.Sprintf("groups/any(g:search.in(g, '%s'))", strings.Join(escaped, ", ")))
	}
	if len(clauses) == 0 {
		return ""
	}
	return strings.Join(clauses, " or ")
}

// escapeFilterValue doubles single quotes so claim values cannot break
// out of the filter string literal.
func escapeFilterValue(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}
