// Copyright (C) 2025 Redline Systems (engineering@redlinehq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxFetchBytes caps a fetched document's size. Manuscripts are text;
// anything larger is a misdirected reference.
const maxFetchBytes = 32 << 20

// HTTPStore fetches documents from http:// and https:// references.
// It is read-only; consistency fixes to remote documents go through the
// report, not a write-back.
type HTTPStore struct {
	client *http.Client
}

// NewHTTPStore creates an HTTPStore. A nil client gets a default with a
// 60-second timeout.
func NewHTTPStore(client *http.Client) *HTTPStore {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPStore{client: client}
}

// Fetch GETs the document at ref.
func (s *HTTPStore) Fetch(ctx context.Context, ref string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return "", fmt.Errorf("build request for %s: %w", ref, err)
	}
	req.Header.Set("Accept", "text/plain, text/markdown, */*")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %d", ref, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return "", fmt.Errorf("read body of %s: %w", ref, err)
	}
	if len(data) > maxFetchBytes {
		return "", fmt.Errorf("fetch %s: document exceeds %d bytes", ref, maxFetchBytes)
	}
	return string(data), nil
}

// Put always fails: remote documents are not written back over HTTP.
func (s *HTTPStore) Put(ctx context.Context, ref string, content string) error {
	return fmt.Errorf("%w: cannot write %s", ErrReadOnly, ref)
}

var _ DocumentStore = (*HTTPStore)(nil)
