// Copyright (C) 2025 Redline Systems (engineering@redlinehq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command redline is the CLI for the Redline manuscript revision system.
//
// Local commands (patch, expand) run the patch engine in-process against
// files on disk. Service commands (check, runs, docs) talk to a running
// reviser server over HTTP.
package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/redlinehq/redline/pkg/logging"
)

var (
	config Config
	logger *logging.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cfg, err := LoadConfig(configPath)
		if err != nil {
			log.Fatalf("Error reading %s: %v", configPath, err)
		}
		config = cfg

		// Flags override file values.
		if serverURL != "" {
			config.ServerURL = serverURL
		}
		if projectID != "" {
			config.ProjectID = projectID
		}

		// With a log dir, activity goes to a JSON file and stderr stays
		// quiet for command output. Without one, only warnings surface.
		logger = logging.New(logging.Config{
			Level:   warnUnlessFileLogging(config.LogDir),
			Service: "redline-cli",
			LogDir:  config.LogDir,
			Quiet:   config.LogDir != "",
		})
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Close()
		}
	}
}

func warnUnlessFileLogging(logDir string) logging.Level {
	if logDir != "" {
		return logging.LevelInfo
	}
	return logging.LevelWarn
}
