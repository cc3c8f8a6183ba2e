// Copyright (C) 2025 Redline Systems (engineering@redlinehq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redlinehq/redline/services/reviser/datatypes"
)

func doJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	w := doJSON(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	w := doJSON(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "redline_revision_")
}

// TestPatchEndToEnd runs the canonical scenario through the whole HTTP
// stack: a sentence appearing twice gets replaced exactly once.
func TestPatchEndToEnd(t *testing.T) {
	document := "# Report\n\nSystem X uses LSTM for classification.\n\nUnrelated middle paragraph.\n\nSystem X uses LSTM for classification.\n"

	w := doJSON(t, http.MethodPost, "/v1/patch", map[string]any{
		"document": document,
		"edits": []map[string]any{{
			"location":      "architecture section",
			"original_text": "System X uses LSTM for classification.",
			"modified_text": "System X uses Transformer for classification.",
		}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.PatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, 1, strings.Count(resp.Document, "System X uses Transformer for classification."))
	assert.Equal(t, 1, strings.Count(resp.Document, "System X uses LSTM for classification."))
	require.NotNil(t, resp.Report)
	assert.Equal(t, []string{"architecture section"}, resp.Report.Applied)
	assert.Empty(t, resp.Report.Failed)
	assert.NotEmpty(t, resp.DiffSummary)
}

// TestPatchReportsFailures verifies unlocatable anchors come back in the
// report without failing the request.
func TestPatchReportsFailures(t *testing.T) {
	w := doJSON(t, http.MethodPost, "/v1/patch", map[string]any{
		"document": "# Notes\n\nShort body.\n",
		"edits": []map[string]any{{
			"location":      "phantom",
			"original_text": "text that appears nowhere in this document at all",
			"modified_text": "replacement",
		}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.PatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Report.Failed, 1)
	assert.Equal(t, "phantom", resp.Report.Failed[0].Location)
	assert.Empty(t, resp.Report.Applied)
}

func TestPatchRejectsEmptyRequest(t *testing.T) {
	w := doJSON(t, http.MethodPost, "/v1/patch", map[string]any{
		"edits": []map[string]any{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExpandEndpoint(t *testing.T) {
	w := doJSON(t, http.MethodPost, "/v1/expand", map[string]any{
		"document":       "# 3 A\nbody\n# 4 B\nmore",
		"heading_anchor": "# 3 A",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.ExpandResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "# 3 A\nbody", resp.Section)
}

// TestDocumentRoutesAbsentWithoutKB verifies lightweight mode: no
// knowledge base means no document routes.
func TestDocumentRoutesAbsentWithoutKB(t *testing.T) {
	w := doJSON(t, http.MethodGet, "/v1/documents", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunsListEmpty(t *testing.T) {
	w := doJSON(t, http.MethodGet, "/v1/runs", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Count)
}
