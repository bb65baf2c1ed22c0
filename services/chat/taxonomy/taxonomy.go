// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package taxonomy loads the retrieval taxonomy: the query noise terms
// and the audience role vocabulary used when building search filters.
//
// The default taxonomy ships embedded in the binary so the service has
// sane behavior with zero configuration. Deployments that tag their
// corpus differently can load their own file with LoadFile.
package taxonomy

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var embeddedTaxonomy []byte

// NoiseTerm is a corpus-descriptive word stripped from search queries.
type NoiseTerm struct {
	Term string `yaml:"term"`

	// MatchPlural also strips the naive plural form of the term.
	MatchPlural bool `yaml:"match_plural"`
}

// Audience is the role vocabulary documents are tagged with.
type Audience struct {
	// CatchAll is the allow-list value that expands to OtherRoles.
	CatchAll string `yaml:"catch_all"`

	// DefaultRole tags documents addressed to everyone. It is always
	// admitted by audience filters.
	DefaultRole string `yaml:"default_role"`

	// OtherRoles is the long tail of roles without a dedicated tag.
	OtherRoles []string `yaml:"other_roles"`
}

// Taxonomy is the full retrieval taxonomy.
type Taxonomy struct {
	NoiseTerms []NoiseTerm `yaml:"noise_terms"`
	Audience   Audience    `yaml:"audience"`
}

var (
	defaultOnce sync.Once
	defaultTax  *Taxonomy
	defaultErr  error
)

// Default returns the embedded taxonomy, parsed once per process.
func Default() (*Taxonomy, error) {
	defaultOnce.Do(func() {
		defaultTax, defaultErr = parse(embeddedTaxonomy)
	})
	return defaultTax, defaultErr
}

// LoadFile parses a taxonomy from a YAML file on disk.
func LoadFile(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy %s: %w", path, err)
	}
	return parse(data)
}

func parse(data []byte) (*Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	if t.Audience.CatchAll == "" || t.Audience.DefaultRole == "" {
		return nil, fmt.Errorf("taxonomy audience section is incomplete")
	}
	return &t, nil
}
