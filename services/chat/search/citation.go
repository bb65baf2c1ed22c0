// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
)

// MalformedSourceError reports a source page label that cannot be
// turned into a citation. It indicates corrupt index data, so callers
// fail the request rather than ground an answer on it.
type MalformedSourceError struct {
	SourcePage string
	Reason     string
}

func (e *MalformedSourceError) Error() string {
	return fmt.Sprintf("malformed source page %q: %s", e.SourcePage, e.Reason)
}

// IsMalformedSourceError reports whether err is a MalformedSourceError.
func IsMalformedSourceError(err error) bool {
	var me *MalformedSourceError
	return errors.As(err, &me)
}

// Citation converts an index source page label into the citation shown
// to users.
//
// Page images extracted from PDFs are stored as "<doc>-<page>.png"; the
// citation points back into the source document as "<doc>.pdf#page=N".
// Every other label is already the citation. When useImageCitation is
// set the image label itself is the citation and no conversion happens.
func Citation(sourcePage string, useImageCitation bool) (string, error) {
	if useImageCitation {
		return sourcePage, nil
	}
	if !strings.EqualFold(path.Ext(sourcePage), ".png") {
		return sourcePage, nil
	}

	stem := sourcePage[:len(sourcePage)-len(path.Ext(sourcePage))]
	idx := strings.LastIndex(stem, "-")
	if idx < 0 {
		return "", &MalformedSourceError{
			SourcePage: sourcePage,
			Reason:     "page image label has no page number suffix",
		}
	}
	pageNum, err := strconv.Atoi(stem[idx+1:])
	if err != nil {
		return "", &MalformedSourceError{
			SourcePage: sourcePage,
			Reason:     "page number suffix is not an integer",
		}
	}
	return fmt.Sprintf("%s.pdf#page=%d", stem[:idx], pageNum), nil
}

// SourcesContent renders passages into the "citation: body" lines that
// make up the sources block of a grounded prompt.
//
// With useSemanticCaptions set the body is the passage's extractive
// captions joined together; otherwise it is the full passage content.
// Newlines inside the body are flattened to spaces so each source stays
// on one line; the citation itself is never altered.
func SourcesContent(passages []Passage, useSemanticCaptions, useImageCitation bool) ([]string, error) {
	sources := make([]string, 0, len(passages))
	for _, p := range passages {
		citation, err := Citation(p.SourcePage, useImageCitation)
		if err != nil {
			return nil, err
		}
		var body string
		if useSemanticCaptions {
			parts := make([]string, 0, len(p.Captions))
			for _, c := range p.Captions {
				parts = append(parts, c.Text)
			}
			body = strings.Join(parts, " . ")
		} else {
			body = p.Content
		}
		sources = append(sources, citation+": "+flattenNewlines(body))
	}
	return sources, nil
}

func flattenNewlines(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", " ")
}
