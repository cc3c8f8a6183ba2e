// Copyright (C) 2025 Redline Systems (engineering@redlinehq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package proposal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/redlinehq/redline/services/reviser/patch"
)

// editEnvelope is the JSON shape the modification prompt requests.
type editEnvelope struct {
	Modifications []patch.EditRequest `json:"modifications"`
}

// parseEditResponse decodes an LLM reply into edit records.
//
// The payload is searched in order: a ```json fenced block, any fenced
// block, then the raw reply. Records with neither an anchor nor a
// replacement are dropped as noise.
func parseEditResponse(raw string) ([]patch.EditRequest, error) {
	payload := extractJSONPayload(raw)
	if payload == "" {
		return nil, errors.New("empty reply")
	}

	var envelope editEnvelope
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		return nil, fmt.Errorf("decode modifications: %w", err)
	}

	edits := make([]patch.EditRequest, 0, len(envelope.Modifications))
	for _, edit := range envelope.Modifications {
		if edit.OriginalText == "" && edit.ModifiedText == "" {
			continue
		}
		edits = append(edits, edit)
	}
	return edits, nil
}

// extractJSONPayload pulls the JSON body out of a possibly fenced reply.
func extractJSONPayload(raw string) string {
	if i := strings.Index(raw, "```json"); i >= 0 {
		rest := raw[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
		// Unterminated fence, take what follows.
		return strings.TrimSpace(rest)
	}
	if i := strings.Index(raw, "```"); i >= 0 {
		rest := raw[i+3:]
		// A language tag may follow the fence.
		if k := strings.Index(rest, "\n"); k >= 0 && k < 20 && !strings.Contains(rest[:k], "{") {
			rest = rest[k+1:]
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(raw)
}

// parseUnifiedDiffProposals converts a unified diff reply into edit
// records.
//
// Each run of consecutive changed lines in a hunk becomes one edit:
// removed lines form the anchor, added lines the replacement. A block
// with additions only is anchored on the context line above it, since
// the applier replaces text rather than inserting at positions.
func parseUnifiedDiffProposals(raw string) ([]patch.EditRequest, error) {
	start := diffStart(raw)
	if start < 0 {
		return nil, errors.New("no unified diff found")
	}

	fileDiffs, err := diff.NewMultiFileDiffReader(strings.NewReader(raw[start:])).ReadAllFiles()
	if err != nil {
		return nil, fmt.Errorf("parse unified diff: %w", err)
	}

	var edits []patch.EditRequest
	for _, fileDiff := range fileDiffs {
		for _, hunk := range fileDiff.Hunks {
			edits = append(edits, hunkEdits(fileDiff, hunk)...)
		}
	}
	if len(edits) == 0 {
		return nil, errors.New("diff contained no usable edits")
	}
	return edits, nil
}

// diffStart finds the first line that begins a unified diff header.
func diffStart(raw string) int {
	offset := 0
	for _, line := range strings.SplitAfter(raw, "\n") {
		if strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "diff ") {
			return offset
		}
		offset += len(line)
	}
	return -1
}

// hunkEdits walks one hunk body and emits an edit per change block.
func hunkEdits(fileDiff *diff.FileDiff, hunk *diff.Hunk) []patch.EditRequest {
	var edits []patch.EditRequest
	var removed, added []string
	lastContext := ""

	flush := func() {
		if len(removed) == 0 && len(added) == 0 {
			return
		}
		original := strings.Join(removed, "\n")
		modified := strings.Join(added, "\n")

		if original == "" {
			if lastContext == "" {
				// Insertion with nothing to anchor on, drop it.
				removed, added = nil, nil
				return
			}
			original = lastContext
			modified = lastContext + "\n" + modified
		}

		edits = append(edits, patch.EditRequest{
			Location:     hunkLocation(fileDiff, hunk),
			OriginalText: original,
			ModifiedText: modified,
			Reason:       "converted from unified diff reply",
		})
		removed, added = nil, nil
	}

	body := strings.TrimSuffix(string(hunk.Body), "\n")
	for _, line := range strings.Split(body, "\n") {
		switch {
		case strings.HasPrefix(line, "\\"):
			// "\ No newline at end of file" markers carry no content.
		case strings.HasPrefix(line, "-"):
			removed = append(removed, line[1:])
		case strings.HasPrefix(line, "+"):
			added = append(added, line[1:])
		default:
			flush()
			lastContext = strings.TrimPrefix(line, " ")
		}
	}
	flush()

	return edits
}

// hunkLocation labels an edit with the hunk's section heading when the
// diff carries one, else with file and line.
func hunkLocation(fileDiff *diff.FileDiff, hunk *diff.Hunk) string {
	if section := strings.TrimSpace(hunk.Section); section != "" {
		return section
	}

	name := fileDiff.NewName
	if name == "" || name == "/dev/null" {
		name = fileDiff.OrigName
	}
	name = strings.TrimPrefix(name, "a/")
	name = strings.TrimPrefix(name, "b/")
	return fmt.Sprintf("%s:%d", name, hunk.OrigStartLine)
}
