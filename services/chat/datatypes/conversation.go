// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"encoding/json"
	"fmt"
)

// Message is a role/content pair in the chat completion wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat completion roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// RoleSnapshot marks a client history entry whose content is a
	// serialized array of turns from an earlier exchange.
	RoleSnapshot = "history"
)

// TurnKind classifies an entry in the reconciled conversation record.
//
// The set is closed. Code that consumes turns switches over every kind
// explicitly; an unlisted kind is a programming error, not data.
type TurnKind int

const (
	// KindUser is the end user's question, verbatim.
	KindUser TurnKind = iota

	// KindAssistant is an assistant answer, verbatim.
	KindAssistant

	// KindQueryRewrite is the search query the model derived from the
	// user's question. It never reaches the answering prompt.
	KindQueryRewrite

	// KindGroundedUser is the user's question with the retrieved
	// sources block appended. It never reaches the rewrite prompt.
	KindGroundedUser

	// KindSnapshot nests the turns of an earlier exchange.
	KindSnapshot
)

var turnKindNames = map[TurnKind]string{
	KindUser:         "user",
	KindAssistant:    "assistant",
	KindQueryRewrite: "query_rewrite",
	KindGroundedUser: "grounded_user",
	KindSnapshot:     "history",
}

var turnKindValues = map[string]TurnKind{
	"user":          KindUser,
	"assistant":     KindAssistant,
	"query_rewrite": KindQueryRewrite,
	"grounded_user": KindGroundedUser,
	"history":       KindSnapshot,
}

// String returns the wire name of the kind.
func (k TurnKind) String() string {
	if name, ok := turnKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TurnKind(%d)", int(k))
}

// Turn is one entry in the reconciled conversation record.
//
// Content is set for every kind except KindSnapshot, which carries the
// nested turns instead. Turns survive a JSON round trip unchanged.
type Turn struct {
	Kind    TurnKind
	Content string
	Turns   []Turn
}

type turnWire struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// MarshalJSON encodes the turn with its kind spelled as a role string.
func (t Turn) MarshalJSON() ([]byte, error) {
	name, ok := turnKindNames[t.Kind]
	if !ok {
		return nil, fmt.Errorf("cannot marshal unknown turn kind %d", int(t.Kind))
	}
	var content any = t.Content
	if t.Kind == KindSnapshot {
		if t.Turns == nil {
			content = []Turn{}
		} else {
			content = t.Turns
		}
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(turnWire{Role: name, Content: raw})
}

// UnmarshalJSON decodes a turn, rejecting roles outside the closed set.
func (t *Turn) UnmarshalJSON(data []byte) error {
	var w turnWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	kind, ok := turnKindValues[w.Role]
	if !ok {
		return fmt.Errorf("unknown turn role %q", w.Role)
	}
	t.Kind = kind
	t.Content = ""
	t.Turns = nil
	if kind == KindSnapshot {
		return json.Unmarshal(w.Content, &t.Turns)
	}
	return json.Unmarshal(w.Content, &t.Content)
}
