// Copyright (C) 2025 Redline Systems (engineering@redlinehq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redlinehq/redline/services/reviser/datatypes"
	"github.com/redlinehq/redline/services/reviser/store"
)

const expandTestDoc = "# Title\n\nIntro.\n\n## Setup\n\nStep one.\n\nStep two.\n\n## Teardown\n\nDone.\n"

func expandRouter(docs *store.Resolver) *gin.Engine {
	router := gin.New()
	router.POST("/v1/expand", HandleExpand(docs))
	return router
}

func TestHandleExpand_InlineDocument(t *testing.T) {
	router := expandRouter(fileResolver(t.TempDir()))

	body := map[string]any{
		"document":       expandTestDoc,
		"heading_anchor": "## Setup",
	}
	w := doJSON(t, router, http.MethodPost, "/v1/expand", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp datatypes.ExpandResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "## Setup", resp.HeadingAnchor)
	assert.Equal(t, "## Setup\n\nStep one.\n\nStep two.", resp.Section)
}

func TestHandleExpand_UnknownAnchorComesBackUnchanged(t *testing.T) {
	router := expandRouter(fileResolver(t.TempDir()))

	body := map[string]any{
		"document":       expandTestDoc,
		"heading_anchor": "## Missing",
	}
	w := doJSON(t, router, http.MethodPost, "/v1/expand", body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.ExpandResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "## Missing", resp.Section)
}

func TestHandleExpand_SourceDocument(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "guide.md"), []byte(expandTestDoc), 0o644))

	router := expandRouter(fileResolver(root))

	body := map[string]any{
		"source":         "guide.md",
		"heading_anchor": "## Teardown",
	}
	w := doJSON(t, router, http.MethodPost, "/v1/expand", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp datatypes.ExpandResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "guide.md", resp.Source)
	assert.Equal(t, "## Teardown\n\nDone.", resp.Section)
}

func TestHandleExpand_RequiresAnchor(t *testing.T) {
	router := expandRouter(fileResolver(t.TempDir()))

	body := map[string]any{"document": expandTestDoc}
	w := doJSON(t, router, http.MethodPost, "/v1/expand", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Contains(t, response["error"], "HeadingAnchor")
}

func TestHandleExpand_RequiresDocumentOrSource(t *testing.T) {
	router := expandRouter(fileResolver(t.TempDir()))

	body := map[string]any{"heading_anchor": "## Setup"}
	w := doJSON(t, router, http.MethodPost, "/v1/expand", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "either source or document must be provided", response["error"])
}
