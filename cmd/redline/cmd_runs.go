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
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/redlinehq/redline/services/reviser/archive"
)

// runListRuns prints archived consistency runs, newest first.
func runListRuns(cmd *cobra.Command, args []string) {
	client := newServiceClient(config)

	var resp struct {
		Runs  []*archive.Run `json:"runs"`
		Count int            `json:"count"`
	}
	query := url.Values{"limit": {strconv.Itoa(runsLimit)}}
	if err := client.getJSON("/v1/runs", query, &resp); err != nil {
		fatalf("list runs: %v", err)
	}

	if resp.Count == 0 {
		fmt.Println("No archived runs.")
		return
	}

	for _, run := range resp.Runs {
		applied := 0
		failed := 0
		for _, doc := range run.Documents {
			if doc.Report != nil {
				applied += len(doc.Report.Applied)
				failed += len(doc.Report.Failed)
			}
			if doc.Error != "" {
				failed++
			}
		}
		fmt.Printf("%s  %s  %d doc(s)  %d applied  %d failed  %q\n",
			run.ID,
			run.StartedAt.Format("2006-01-02 15:04"),
			len(run.Documents), applied, failed,
			run.ModificationPoint)
	}
}

// runShowRun prints one archived run as indented JSON.
func runShowRun(cmd *cobra.Command, args []string) {
	client := newServiceClient(config)

	var run archive.Run
	if err := client.getJSON("/v1/runs/"+url.PathEscape(args[0]), nil, &run); err != nil {
		fatalf("fetch run: %v", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&run); err != nil {
		fatalf("encode run: %v", err)
	}
}
