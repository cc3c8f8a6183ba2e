// Copyright (C) 2025 Redline Systems (engineering@redlinehq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command reviser starts the Redline manuscript revision HTTP server.
//
// This is the main entry point for the containerized reviser service. It
// reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - REVISER_PORT: HTTP server port (default: 12310)
//   - LLM_BACKEND_TYPE: LLM provider - openai, ollama (default: openai)
//   - WEAVIATE_SERVICE_URL: Weaviate knowledge base URL (optional; without
//     it the service runs without document ingestion or related-document
//     search)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (optional)
//   - DOCUMENT_ROOT: directory plain-path document references resolve
//     under (optional; empty means unconfined)
//   - GCS_KEY_PATH: service account key enabling the gs:// document store
//     (optional; REVISER_ENABLE_GCS=true enables it with ambient
//     credentials)
//   - REVISER_ARCHIVE_PATH: run archive directory (optional; in-memory
//     without it)
//   - STYLE_GUIDE_PATH: style guide file appended to revision prompts,
//     reloaded on change (optional)
//   - LLM_REQUESTS_PER_MINUTE: proposal engine throttle (default: 30)
//   - PATCH_WORKERS: consistency check fan-out bound (default: 8)
//
// # Usage
//
//	# Build
//	go build -o reviser ./cmd/reviser
//
//	# Run
//	./reviser
//
//	# Or via container
//	podman-compose up reviser
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/redlinehq/redline/services/reviser"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Build configuration from environment variables
	cfg := reviser.Config{
		Port:                 getEnvInt("REVISER_PORT", 12310),
		LLMBackend:           getEnvString("LLM_BACKEND_TYPE", "openai"),
		WeaviateURL:          os.Getenv("WEAVIATE_SERVICE_URL"),
		OTelEndpoint:         os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		DocumentRoot:         os.Getenv("DOCUMENT_ROOT"),
		EnableGCS:            getEnvBool("REVISER_ENABLE_GCS", false),
		GCSKeyPath:           os.Getenv("GCS_KEY_PATH"),
		ArchivePath:          os.Getenv("REVISER_ARCHIVE_PATH"),
		StyleGuidePath:       os.Getenv("STYLE_GUIDE_PATH"),
		LLMRequestsPerMinute: getEnvInt("LLM_REQUESTS_PER_MINUTE", 30),
		PatchWorkers:         getEnvInt("PATCH_WORKERS", 8),
	}

	slog.Info("Starting reviser",
		"port", cfg.Port,
		"llm_backend", cfg.LLMBackend,
		"weaviate_url", cfg.WeaviateURL,
	)

	svc, err := reviser.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create reviser: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Reviser error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
