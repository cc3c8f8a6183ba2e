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

	"github.com/spf13/cobra"

	"github.com/redlinehq/redline/services/reviser/datatypes"
)

// runCheckCommand drives a cross-document consistency check on the
// service and summarizes the outcome per document.
func runCheckCommand(cmd *cobra.Command, args []string) {
	client := newServiceClient(config)

	req := datatypes.CheckRequest{
		ModificationPoint:   checkPoint,
		ModificationRequest: checkRequest,
		TargetFile:          checkTarget,
		ProjectID:           config.ProjectID,
		TopK:                checkTopK,
		Apply:               checkApply,
	}
	if checkNoRelated {
		related := false
		req.IncludeRelated = &related
	}

	logger.Info("consistency check started",
		"point", checkPoint,
		"target", checkTarget,
		"apply", checkApply)

	var resp datatypes.CheckResponse
	if err := client.postJSON("/v1/consistency/check", req, &resp); err != nil {
		logger.Error("consistency check failed", "error", err)
		fatalf("consistency check: %v", err)
	}

	logger.Info("consistency check finished",
		"run_id", resp.RunID,
		"documents", len(resp.Documents),
		"applied", resp.TotalApplied,
		"failed", resp.TotalFailed)

	if resp.Analysis != "" {
		fmt.Println(resp.Analysis)
		fmt.Println()
	}

	for _, doc := range resp.Documents {
		switch {
		case doc.Error != "":
			fmt.Printf("%s %s: %s\n", colorize(ansiRed, "error"), doc.Source, doc.Error)
		case doc.Report == nil || len(doc.Report.Applied) == 0:
			fmt.Printf("%s %s: no changes\n", colorize(ansiYellow, "clean"), doc.Source)
		default:
			fmt.Printf("%s %s: %d edit(s), %s\n",
				colorize(ansiGreen, "patched"), doc.Source,
				len(doc.Report.Applied), doc.DiffSummary)
			for _, f := range doc.Report.Failed {
				fmt.Printf("        failed %s: %s\n", f.Location, f.Reason)
			}
		}
	}

	fmt.Printf("\nRun %s: %d applied, %d failed across %d document(s)",
		resp.RunID, resp.TotalApplied, resp.TotalFailed, len(resp.Documents))
	if resp.Applied {
		fmt.Print(" (written back)")
	}
	fmt.Println()

	if resp.TotalFailed > 0 {
		os.Exit(1)
	}
}
