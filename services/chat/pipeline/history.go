// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"fmt"

	"github.com/copperline-ai/copperline/services/chat/datatypes"
)

// InputMessage is one client history entry after the handler has
// decoded the raw request. Snapshot is set only for RoleSnapshot
// entries and carries the turns of an earlier exchange.
type InputMessage struct {
	Role     string
	Content  string
	Snapshot []datatypes.Turn
}

// State is the reconciled record of a conversation.
//
// The turn list is append-only: reconciliation and the pipeline only
// ever add turns, so each exchange's record extends the previous one.
// The two prompt paths read disjoint projections of the same list via
// QueryMessages and ChatMessages.
type State struct {
	turns         []datatypes.Turn
	originalQuery string
}

// Reconcile folds the client history into a fresh State.
//
// Snapshot entries are expanded in place, the latest assistant answer
// is appended as a turn, and the final entry, which must be the user's
// current question, becomes both the original query and the newest
// user turn.
func Reconcile(history []InputMessage) (*State, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("conversation history is empty")
	}

	last := history[len(history)-1]
	if last.Role != datatypes.RoleUser {
		return nil, fmt.Errorf("last history entry has role %q, want %q",
			last.Role, datatypes.RoleUser)
	}

	s := &State{originalQuery: last.Content}
	var lastAssistant string
	for _, m := range history {
		switch m.Role {
		case datatypes.RoleSnapshot:
			s.turns = append(s.turns, m.Snapshot...)
		case datatypes.RoleAssistant:
			lastAssistant = m.Content
		case datatypes.RoleUser, datatypes.RoleSystem:
			// Plain turns are carried by the snapshot; the current
			// question is appended below.
		default:
			return nil, fmt.Errorf("unknown history role %q", m.Role)
		}
	}

	if lastAssistant != "" {
		s.turns = append(s.turns, datatypes.Turn{
			Kind:    datatypes.KindAssistant,
			Content: lastAssistant,
		})
	}
	s.turns = append(s.turns, datatypes.Turn{
		Kind:    datatypes.KindUser,
		Content: s.originalQuery,
	})
	return s, nil
}

// OriginalQuery returns the user's current question, verbatim.
func (s *State) OriginalQuery() string {
	return s.originalQuery
}

// Turns returns a copy of the full reconciled record.
func (s *State) Turns() []datatypes.Turn {
	out := make([]datatypes.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// AppendQueryRewrite records the derived search query.
func (s *State) AppendQueryRewrite(query string) {
	s.turns = append(s.turns, datatypes.Turn{
		Kind:    datatypes.KindQueryRewrite,
		Content: query,
	})
}

// AppendGroundedUser records the question with its sources block.
func (s *State) AppendGroundedUser(content string) {
	s.turns = append(s.turns, datatypes.Turn{
		Kind:    datatypes.KindGroundedUser,
		Content: content,
	})
}

// QueryMessages projects the record for the query rewrite prompt: the
// user's raw questions and earlier rewrites, relabelled to the plain
// chat roles. Grounded turns and answers never appear here, so sources
// cannot leak into query derivation.
func (s *State) QueryMessages() []datatypes.Message {
	var msgs []datatypes.Message
	for _, t := range s.turns {
		switch t.Kind {
		case datatypes.KindUser:
			msgs = append(msgs, datatypes.Message{Role: datatypes.RoleUser, Content: t.Content})
		case datatypes.KindQueryRewrite:
			msgs = append(msgs, datatypes.Message{Role: datatypes.RoleAssistant, Content: t.Content})
		case datatypes.KindAssistant, datatypes.KindGroundedUser, datatypes.KindSnapshot:
			// Not part of the rewrite conversation.
		}
	}
	return msgs
}

// ChatMessages projects the record for the answering prompt: grounded
// questions and answers, relabelled to the plain chat roles. Raw
// questions and rewrites never appear here.
func (s *State) ChatMessages() []datatypes.Message {
	var msgs []datatypes.Message
	for _, t := range s.turns {
		switch t.Kind {
		case datatypes.KindGroundedUser:
			msgs = append(msgs, datatypes.Message{Role: datatypes.RoleUser, Content: t.Content})
		case datatypes.KindAssistant:
			msgs = append(msgs, datatypes.Message{Role: datatypes.RoleAssistant, Content: t.Content})
		case datatypes.KindUser, datatypes.KindQueryRewrite, datatypes.KindSnapshot:
			// Not part of the answering conversation.
		}
	}
	return msgs
}
