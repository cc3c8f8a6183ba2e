// Copyright (C) 2025 Redline Systems (engineering@redlinehq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/redlinehq/redline/services/reviser/patch"
	"github.com/redlinehq/redline/services/reviser/proposal"
)

// stderrObserver narrates every engine checkpoint for --verbose runs.
type stderrObserver struct{}

func (stderrObserver) OnExactMatch(location string, offset int) {
	fmt.Fprintf(os.Stderr, "%s: exact match at byte %d\n", location, offset)
}

func (stderrObserver) OnFuzzyMatch(location string, tier patch.ConfidenceTier, similarity float64) {
	fmt.Fprintf(os.Stderr, "%s: fuzzy match (%s, similarity %.2f)\n", location, tier, similarity)
}

func (stderrObserver) OnCollisionGuard(location string, replacement string) {
	fmt.Fprintf(os.Stderr, "%s: collision guard, replacement already present: %q\n", location, replacement)
}

var _ patch.Observer = stderrObserver{}

// editsFileSchema accepts both a bare edit array and the service's
// {"modifications": [...]} wrapper, so saved LLM output can be fed back in
// unchanged.
type editsFileSchema struct {
	Modifications []patch.EditRequest `json:"modifications"`
}

// loadEdits reads the edit list from a JSON file.
func loadEdits(path string) ([]patch.EditRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var edits []patch.EditRequest
	if err := json.Unmarshal(data, &edits); err == nil {
		return edits, nil
	}

	var wrapped editsFileSchema
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parse %s: expected an edit array or a modifications object: %w", path, err)
	}
	return wrapped.Modifications, nil
}

// runPatchCommand applies a JSON edit list to a local file with the
// in-process engine. The patched document goes to stdout unless --write or
// --output redirects it; the report always goes to stderr.
func runPatchCommand(cmd *cobra.Command, args []string) {
	raw, err := os.ReadFile(patchFile)
	if err != nil {
		fatalf("read %s: %v", patchFile, err)
	}

	edits, err := loadEdits(editsFile)
	if err != nil {
		fatalf("load edits: %v", err)
	}
	if len(edits) == 0 {
		fatalf("%s contains no edits", editsFile)
	}

	opts := patch.ApplyOptions{}
	if verbose {
		opts.Observer = stderrObserver{}
	}

	patched, report, err := patch.NewApplier(opts).Apply(string(raw), edits)
	if err != nil {
		fatalf("patch failed: %v", err)
	}

	printReport(report)
	fmt.Fprintln(os.Stderr, proposal.SummarizeDiff(string(raw), patched))

	switch {
	case writeInPlace:
		if err := os.WriteFile(patchFile, []byte(patched), 0o644); err != nil {
			fatalf("write %s: %v", patchFile, err)
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", patchFile)
	case outputFile != "":
		if err := os.WriteFile(outputFile, []byte(patched), 0o644); err != nil {
			fatalf("write %s: %v", outputFile, err)
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", outputFile)
	default:
		fmt.Print(patched)
	}

	if len(report.Failed) > 0 {
		os.Exit(1)
	}
}

// runExpandCommand prints the full section a heading anchor stands for.
func runExpandCommand(cmd *cobra.Command, args []string) {
	raw, err := os.ReadFile(patchFile)
	if err != nil {
		fatalf("read %s: %v", patchFile, err)
	}

	section := patch.ExpandHeadingScope(string(raw), headingFlag)
	if section == headingFlag {
		fmt.Fprintf(os.Stderr, "Heading not found; anchor returned unchanged\n")
	}
	fmt.Println(section)
}
