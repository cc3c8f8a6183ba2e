// Copyright (C) 2025 Redline Systems (engineering@redlinehq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that end up in
// database queries, file paths, or storage object names. Using these
// validators prevents injection attacks (GraphQL filter injection, path
// traversal) at the service boundary.
package validation

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// sourcePattern matches valid document source identifiers.
// Allows: letters, digits, dots, hyphens, underscores and forward slashes
// for directory-style names ("manuals/installation.md").
// Max length: 256 characters.
var sourcePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/\-]{0,255}$`)

// ValidateSource validates a document source identifier before it is used
// in a knowledge-base filter or as an archive key component.
//
// Valid sources:
//   - 1-256 characters
//   - Letters, digits, dots, hyphens, underscores, forward slashes
//   - Must start with a letter or digit
//   - No ".." path elements
//
// Returns an error describing the first violation found.
//
// Example:
//
//	if err := validation.ValidateSource(source); err != nil {
//	    return nil, fmt.Errorf("invalid source: %w", err)
//	}
//	// Safe to use in a where-filter
func ValidateSource(source string) error {
	if source == "" {
		return fmt.Errorf("source cannot be empty")
	}

	if !sourcePattern.MatchString(source) {
		return fmt.Errorf("invalid source format: %q (must be 1-256 alphanumeric chars, dots, hyphens, underscores, or slashes)", source)
	}

	for _, part := range strings.Split(source, "/") {
		if part == ".." {
			return fmt.Errorf("source %q contains a parent-directory element", source)
		}
	}

	return nil
}

// ValidateSources validates multiple source identifiers.
// Returns an error listing all invalid sources if any fail validation.
func ValidateSources(sources []string) error {
	var invalid []string
	for _, s := range sources {
		if err := ValidateSource(s); err != nil {
			invalid = append(invalid, s)
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid sources: %v", invalid)
	}
	return nil
}

// SanitizeSource normalizes and validates a source identifier.
// Returns the cleaned identifier if valid, or an error if invalid.
//
// Normalization trims surrounding whitespace, strips a leading "./" and
// collapses redundant slashes, so "./manuals//guide.md" and
// "manuals/guide.md" refer to the same document.
func SanitizeSource(source string) (string, error) {
	normalized := strings.TrimSpace(source)
	normalized = strings.TrimPrefix(normalized, "./")
	if normalized != "" {
		normalized = path.Clean(normalized)
	}
	if err := ValidateSource(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
