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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// serviceClient talks to a running reviser server.
type serviceClient struct {
	baseURL    string
	httpClient *http.Client
}

// newServiceClient builds a client from the loaded CLI config.
func newServiceClient(cfg Config) *serviceClient {
	return &serviceClient{
		baseURL: strings.TrimSuffix(cfg.ServerURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// postJSON sends a POST with a JSON body and decodes the JSON response
// into out.
func (c *serviceClient) postJSON(path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("contact reviser service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

// getJSON sends a GET with optional query parameters and decodes the JSON
// response into out.
func (c *serviceClient) getJSON(path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	resp, err := c.httpClient.Get(u)
	if err != nil {
		return fmt.Errorf("contact reviser service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

// deleteJSON sends a DELETE with query parameters and decodes the JSON
// response into out.
func (c *serviceClient) deleteJSON(path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequest(http.MethodDelete, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("contact reviser service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

// decodeResponse turns non-2xx statuses into errors carrying the server's
// error message, and unmarshals successful bodies into out.
func decodeResponse(resp *http.Response, out any) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("service returned %s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("service returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
