// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"strings"

	"github.com/copperline-ai/copperline/services/chat/datatypes"
)

// Placeholders recognized in custom prompt templates.
const (
	injectedPromptPlaceholder = "{injected_prompt}"
	followUpPromptPlaceholder = "{follow_up_questions_prompt}"
	injectionOverridePrefix   = ">>>"
	noQuerySentinel           = "0"
)

// defaultSystemPrompt is the answering prompt. Custom templates replace
// it wholesale unless they start with injectionOverridePrefix, in which
// case the remainder is spliced into the injected_prompt slot.
const defaultSystemPrompt = `You are an assistant that helps company employees with questions about internal documentation, policies, and procedures.
Be brief in your answers. Answer ONLY with the facts listed in the list of sources below.
If there isn't enough information below, say you don't know. Do not generate answers that don't use the sources below.
If asking a clarifying question to the user would help, ask the question.
Each source has a name followed by a colon and the actual information. Always include the source name for each fact you use in the response, in square brackets, for example [info1.txt]. Don't combine sources; list each source separately, for example [info1.txt][info2.pdf].
{injected_prompt}
{follow_up_questions_prompt}`

// followUpQuestionsPrompt asks the model to append follow-up questions
// in the delimited form the stream splitter strips back out.
const followUpQuestionsPrompt = `Generate three very brief follow-up questions that the user would likely ask next about the documentation.
Use double angle brackets to reference the questions, e.g. <<Is there a form I need to fill out?>>.
Try not to repeat questions that have already been asked.
Only generate questions and do not generate any text before or after the questions, such as 'Next Questions'.`

// promptReminder is inserted near the end of long conversations, where
// models drift from instructions given many turns earlier.
const promptReminder = `Remember the rules from the first system message: answer only from the listed sources, say you don't know when the sources don't cover it, and cite every fact with its source name in square brackets.`

// queryPromptTemplate drives search query derivation. The model either
// calls the search function, answers with bare search terms, or returns
// the sentinel when no search could help.
const queryPromptTemplate = `Below is a history of the conversation so far, and a new question asked by the user that needs to be answered by searching the company documentation.
Generate a search query based on the conversation and the new question.
Do not include cited source filenames or document names in the search query terms.
Do not include any text inside [] or <<>> in the search query terms.
Do not include any special characters like '+'.
If the question is not in English, translate the question to English before generating the search query.
If you cannot generate a search query, return just the number 0.`

// queryFewShots prime the rewrite model with the expected shape of a
// derived query. They are always kept in the prompt, before history.
var queryFewShots = []datatypes.Message{
	{Role: datatypes.RoleUser, Content: "How do I submit an expense report?"},
	{Role: datatypes.RoleAssistant, Content: "expense report submission process"},
	{Role: datatypes.RoleUser, Content: "What holidays does the office close for?"},
	{Role: datatypes.RoleAssistant, Content: "office holiday closure schedule"},
}

// systemPrompt resolves the answering prompt from an optional override.
//
// An empty override yields the default prompt. An override starting
// with ">>>" injects its remainder into the default prompt. Any other
// override replaces the prompt entirely, with only the follow-up
// placeholder honored.
func systemPrompt(override string, suggestFollowups bool) string {
	followup := ""
	if suggestFollowups {
		followup = followUpQuestionsPrompt
	}

	if override == "" {
		base := strings.ReplaceAll(defaultSystemPrompt, injectedPromptPlaceholder, "")
		return strings.ReplaceAll(base, followUpPromptPlaceholder, followup)
	}
	if injected, ok := strings.CutPrefix(override, injectionOverridePrefix); ok {
		base := strings.ReplaceAll(defaultSystemPrompt, injectedPromptPlaceholder, injected+"\n")
		return strings.ReplaceAll(base, followUpPromptPlaceholder, followup)
	}
	return strings.ReplaceAll(override, followUpPromptPlaceholder, followup)
}
