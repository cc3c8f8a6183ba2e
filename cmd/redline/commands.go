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
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath string
	serverURL  string
	projectID  string

	// patch / expand
	patchFile    string
	editsFile    string
	outputFile   string
	writeInPlace bool
	verbose      bool
	headingFlag  string

	// check
	checkPoint     string
	checkRequest   string
	checkTarget    string
	checkTopK      int
	checkApply     bool
	checkNoRelated bool

	// runs / docs
	runsLimit    int
	ingestSource string
	docProject   string

	rootCmd = &cobra.Command{
		Use:   "redline",
		Short: "A cli to patch and cross-check Markdown manuscripts",
		Long: `Redline keeps a set of Markdown manuscripts mutually consistent.
				The patch and expand commands run the fuzzy patch engine locally;
				check, runs, and docs talk to a running reviser service.`,
	}

	// --- Local engine ---
	patchCmd = &cobra.Command{
		Use:   "patch",
		Short: "Apply a JSON edit list to a local Markdown file",
		Run:   runPatchCommand, // Defined in cmd_patch.go
	}
	expandCmd = &cobra.Command{
		Use:   "expand",
		Short: "Print the full section a heading anchor stands for",
		Run:   runExpandCommand, // Defined in cmd_patch.go
	}

	// --- Consistency ---
	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Run a cross-document consistency check on the reviser service",
		Run:   runCheckCommand, // Defined in cmd_check.go
	}

	// --- Runs ---
	runsCmd = &cobra.Command{
		Use:   "runs",
		Short: "Inspect archived consistency runs",
	}
	runsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List archived runs, newest first",
		Run:   runListRuns, // Defined in cmd_runs.go
	}
	runsShowCmd = &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show one archived run in full",
		Args:  cobra.ExactArgs(1),
		Run:   runShowRun, // Defined in cmd_runs.go
	}

	// --- Documents ---
	docsCmd = &cobra.Command{
		Use:   "docs",
		Short: "Manage documents in the knowledge base",
	}
	docsIngestCmd = &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Chunk local files into the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		Run:   runIngestDocs, // Defined in cmd_docs.go
	}
	docsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List the sources in the knowledge base",
		Run:   runListDocs, // Defined in cmd_docs.go
	}
	docsDeleteCmd = &cobra.Command{
		Use:   "delete [source]",
		Short: "Delete a source and all its chunks",
		Args:  cobra.ExactArgs(1),
		Run:   runDeleteDoc, // Defined in cmd_docs.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "redline.yaml", "Path to the CLI config file")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Reviser service URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&projectID, "project", "", "Project ID (overrides config)")

	patchCmd.Flags().StringVarP(&patchFile, "file", "f", "", "Markdown file to patch (required)")
	patchCmd.Flags().StringVarP(&editsFile, "edits", "e", "", "JSON file with the edit list (required)")
	patchCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the patched document to this path")
	patchCmd.Flags().BoolVarP(&writeInPlace, "write", "w", false, "Overwrite the input file with the patched document")
	patchCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Report every match decision on stderr")
	patchCmd.MarkFlagRequired("file")
	patchCmd.MarkFlagRequired("edits")

	expandCmd.Flags().StringVarP(&patchFile, "file", "f", "", "Markdown file to read (required)")
	expandCmd.Flags().StringVar(&headingFlag, "heading", "", "Heading line to expand (required)")
	expandCmd.MarkFlagRequired("file")
	expandCmd.MarkFlagRequired("heading")

	checkCmd.Flags().StringVar(&checkPoint, "point", "", "What changed; doubles as the related-document query (required)")
	checkCmd.Flags().StringVar(&checkRequest, "request", "", "Full change instruction for the LLM (required)")
	checkCmd.Flags().StringVar(&checkTarget, "target", "", "Document reference revised first")
	checkCmd.Flags().IntVar(&checkTopK, "top-k", 0, "Related documents to consider")
	checkCmd.Flags().BoolVar(&checkApply, "apply", false, "Write patched documents back and re-ingest them")
	checkCmd.Flags().BoolVar(&checkNoRelated, "no-related", false, "Skip the knowledge base search")
	checkCmd.MarkFlagRequired("point")
	checkCmd.MarkFlagRequired("request")

	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum runs to list")

	docsIngestCmd.Flags().StringVar(&ingestSource, "source", "", "Source name override (single file only)")
	docsListCmd.Flags().StringVar(&docProject, "project-id", "", "Filter by project")

	runsCmd.AddCommand(runsListCmd, runsShowCmd)
	docsCmd.AddCommand(docsIngestCmd, docsListCmd, docsDeleteCmd)
	rootCmd.AddCommand(patchCmd, expandCmd, checkCmd, runsCmd, docsCmd)
}
