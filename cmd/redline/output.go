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
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/redlinehq/redline/services/reviser/patch"
)

// ANSI codes, emitted only when stdout is a terminal.
const (
	ansiReset  = "\033[0m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
)

// useColor reports whether stdout is an interactive terminal.
func useColor() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// colorize wraps s in the given ANSI code when color is enabled.
func colorize(code, s string) string {
	if !useColor() {
		return s
	}
	return code + s + ansiReset
}

// printReport writes a per-edit outcome summary to stderr, keeping stdout
// clean for the patched document.
func printReport(report *patch.PatchReport) {
	for _, loc := range report.Applied {
		fmt.Fprintf(os.Stderr, "%s %s\n", colorize(ansiGreen, "applied"), loc)
	}
	for _, loc := range report.SkippedNoOp {
		fmt.Fprintf(os.Stderr, "%s %s (no-op)\n", colorize(ansiYellow, "skipped"), loc)
	}
	for _, loc := range report.SkippedDuplicate {
		fmt.Fprintf(os.Stderr, "%s %s (duplicate anchor)\n", colorize(ansiYellow, "skipped"), loc)
	}
	for _, f := range report.Failed {
		fmt.Fprintf(os.Stderr, "%s %s: %s\n", colorize(ansiRed, "failed"), f.Location, f.Reason)
	}

	fmt.Fprintf(os.Stderr, "%d applied, %d skipped, %d failed\n",
		len(report.Applied),
		len(report.SkippedNoOp)+len(report.SkippedDuplicate),
		len(report.Failed))
}

// fatalf prints an error and exits non-zero.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
