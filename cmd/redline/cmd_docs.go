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
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/redlinehq/redline/services/reviser/datatypes"
)

// runIngestDocs chunks local files into the knowledge base through the
// service.
func runIngestDocs(cmd *cobra.Command, args []string) {
	if ingestSource != "" && len(args) > 1 {
		fatalf("--source only applies when ingesting a single file")
	}

	client := newServiceClient(config)
	failures := 0

	for _, path := range args {
		content, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: read %s: %v\n", path, err)
			failures++
			continue
		}

		source := path
		if ingestSource != "" {
			source = ingestSource
		}

		req := datatypes.IngestRequest{
			Source:    source,
			Content:   string(content),
			ProjectID: config.ProjectID,
		}

		var resp struct {
			Status string `json:"status"`
			Source string `json:"source"`
			Chunks int    `json:"chunks"`
		}
		if err := client.postJSON("/v1/documents", req, &resp); err != nil {
			logger.Error("document ingest failed", "source", source, "error", err)
			fmt.Fprintf(os.Stderr, "Error: ingest %s: %v\n", path, err)
			failures++
			continue
		}
		logger.Info("document ingested", "source", resp.Source, "chunks", resp.Chunks)
		fmt.Printf("%s %s (%d chunks)\n", colorize(ansiGreen, "ingested"), resp.Source, resp.Chunks)
	}

	if failures > 0 {
		os.Exit(1)
	}
}

// runListDocs prints the distinct sources in the knowledge base.
func runListDocs(cmd *cobra.Command, args []string) {
	client := newServiceClient(config)

	project := docProject
	if project == "" {
		project = config.ProjectID
	}
	query := url.Values{}
	if project != "" {
		query.Set("project_id", project)
	}

	var resp struct {
		Documents []string `json:"documents"`
		Count     int      `json:"count"`
	}
	if err := client.getJSON("/v1/documents", query, &resp); err != nil {
		fatalf("list documents: %v", err)
	}

	if resp.Count == 0 {
		fmt.Println("Knowledge base is empty.")
		return
	}
	for _, source := range resp.Documents {
		fmt.Println(source)
	}
}

// runDeleteDoc removes one source and all its chunks.
func runDeleteDoc(cmd *cobra.Command, args []string) {
	client := newServiceClient(config)

	var resp struct {
		Status string `json:"status"`
		Source string `json:"source"`
		Chunks int    `json:"chunks"`
	}
	query := url.Values{"source": {args[0]}}
	if err := client.deleteJSON("/v1/documents", query, &resp); err != nil {
		fatalf("delete document: %v", err)
	}
	logger.Info("document deleted", "source", resp.Source, "chunks", resp.Chunks)

	fmt.Printf("%s %s (%d chunks)\n", colorize(ansiRed, "deleted"), resp.Source, resp.Chunks)
}
