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

	"gopkg.in/yaml.v3"
)

// DefaultServerURL is where a locally running reviser listens.
const DefaultServerURL = "http://localhost:12310"

// Config holds CLI settings loaded from redline.yaml. Every field is
// optional; flags override file values.
type Config struct {
	// ServerURL is the reviser service base URL.
	ServerURL string `yaml:"server_url"`

	// ProjectID scopes knowledge base searches and ingestion.
	ProjectID string `yaml:"project_id"`

	// TimeoutSeconds bounds service calls. Consistency checks make
	// several LLM round trips, so the default is generous.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// LogDir enables JSON file logging of CLI activity. Supports ~
	// expansion. Empty logs warnings to stderr only.
	LogDir string `yaml:"log_dir"`
}

// LoadConfig reads the config file at path. A missing file is not an
// error: the CLI works against a default local server with no config at
// all.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServerURL:      DefaultServerURL,
		TimeoutSeconds: 240,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServerURL
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 240
	}
	return cfg, nil
}
