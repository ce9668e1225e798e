// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/fabplan/services/plan/datatypes"
)

// Override is a user-supplied per-file override of the computed authority
// and precedence defaults. Both fields are optional; empty means "keep
// the computed default".
type Override struct {
	// Precedence accepts an integer, a numeric string, or one of the
	// keywords highest/high/medium/low.
	Precedence string `yaml:"precedence" json:"precedence,omitempty"`

	// Authority accepts the four canonical values or the synonyms
	// must/shall (mandatory), should (conditional), guidance/info
	// (reference), internal.
	Authority string `yaml:"authority" json:"authority,omitempty"`
}

// precedenceKeywords maps the accepted precedence keywords to ranks.
var precedenceKeywords = map[string]int{
	"highest": 1,
	"high":    2,
	"medium":  5,
	"low":     10,
}

// authoritySynonyms maps accepted authority spellings to canonical tiers.
var authoritySynonyms = map[string]datatypes.Authority{
	"mandatory":   datatypes.AuthorityMandatory,
	"must":        datatypes.AuthorityMandatory,
	"shall":       datatypes.AuthorityMandatory,
	"conditional": datatypes.AuthorityConditional,
	"should":      datatypes.AuthorityConditional,
	"reference":   datatypes.AuthorityReference,
	"guidance":    datatypes.AuthorityReference,
	"info":        datatypes.AuthorityReference,
	"internal":    datatypes.AuthorityInternal,
}

// ParsePrecedence interprets the precedence override.
//
// Outputs:
//   - int: The parsed rank; meaningful only when ok is true.
//   - bool: False when the field is empty or not a valid rank, in which
//     case the caller keeps the computed default.
func (o Override) ParsePrecedence() (int, bool) {
	v := strings.ToLower(strings.TrimSpace(o.Precedence))
	if v == "" {
		return 0, false
	}
	if rank, ok := precedenceKeywords[v]; ok {
		return rank, true
	}
	if rank, err := strconv.Atoi(v); err == nil {
		return rank, true
	}
	return 0, false
}

// ParseAuthority interprets the authority override, accepting canonical
// values and synonyms. Returns false for empty or unrecognized values.
func (o Override) ParseAuthority() (datatypes.Authority, bool) {
	v := strings.ToLower(strings.TrimSpace(o.Authority))
	if v == "" {
		return "", false
	}
	a, ok := authoritySynonyms[v]
	return a, ok
}

// configFileName is the optional project-root config carrying per-file
// source overrides.
const configFileName = "fabplan.config.yaml"

// Config holds the parsed fabplan.config.yaml.
//
// Description:
//
//	All fields are optional. A missing config file is not an error —
//	zero-config works out of the box.
type Config struct {
	// SourceOverrides maps lowercased filenames to overrides.
	SourceOverrides map[string]Override `yaml:"source_overrides"`
}

// LoadConfig reads fabplan.config.yaml from the project root.
//
// Description:
//
//	If projectRoot is empty or the file does not exist, returns an empty
//	config with no error. Only returns an error when the file exists but
//	cannot be parsed. Filename keys are lowercased on load so lookups
//	match the registry's lowercased-filename convention regardless of how
//	the user typed them.
//
// Thread Safety: Safe for concurrent use (stateless function).
func LoadConfig(projectRoot string) (Config, error) {
	if projectRoot == "" {
		return Config{}, nil
	}
	path := filepath.Join(projectRoot, configFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("reading %s: %w", configFileName, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", configFileName, err)
	}

	if len(cfg.SourceOverrides) > 0 {
		normalized := make(map[string]Override, len(cfg.SourceOverrides))
		for name, ov := range cfg.SourceOverrides {
			normalized[strings.ToLower(name)] = ov
		}
		cfg.SourceOverrides = normalized
	}
	return cfg, nil
}
