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
	"os"
	"path/filepath"
	"testing"
)

// TestLoadConfigMissingFile verifies that a missing config file yields
// working defaults rather than an error.
func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() on missing file failed: %v", err)
	}
	if cfg.ServerURL != DefaultServerURL {
		t.Errorf("ServerURL = %q, want %q", cfg.ServerURL, DefaultServerURL)
	}
	if cfg.TimeoutSeconds != 240 {
		t.Errorf("TimeoutSeconds = %d, want 240", cfg.TimeoutSeconds)
	}
}

// TestLoadConfigFile verifies file values win over defaults.
func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redline.yaml")
	content := "server_url: http://reviser.internal:9000\nproject_id: saga\ntimeout_seconds: 30\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if cfg.ServerURL != "http://reviser.internal:9000" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.ProjectID != "saga" {
		t.Errorf("ProjectID = %q, want %q", cfg.ProjectID, "saga")
	}
	if cfg.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d, want 30", cfg.TimeoutSeconds)
	}
}

// TestLoadConfigPartialFile verifies omitted fields fall back to defaults.
func TestLoadConfigPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redline.yaml")
	if err := os.WriteFile(path, []byte("project_id: saga\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if cfg.ServerURL != DefaultServerURL {
		t.Errorf("ServerURL = %q, want default %q", cfg.ServerURL, DefaultServerURL)
	}
	if cfg.TimeoutSeconds != 240 {
		t.Errorf("TimeoutSeconds = %d, want 240", cfg.TimeoutSeconds)
	}
}

// TestLoadConfigBadYAML verifies a malformed file is an error, not a
// silent fallback.
func TestLoadConfigBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redline.yaml")
	if err := os.WriteFile(path, []byte("server_url: [unclosed"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("LoadConfig() on malformed YAML should fail")
	}
}
