// Copyright (C) 2025 Redline Systems (engineering@redlinehq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// newTestOllamaClient builds an OllamaClient against a test server URL
// without consulting the environment.
func newTestOllamaClient(baseURL, model string) *OllamaClient {
	return &OllamaClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
	}
}

func TestOllamaClient_Generate(t *testing.T) {
	var gotReq ollamaGenerateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q, want /api/generate", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{
			Model:    "test-model",
			Response: "revised section text",
			Done:     true,
		})
	}))
	defer server.Close()

	client := newTestOllamaClient(server.URL, "test-model")
	got, err := client.Generate(context.Background(), "revise this", GenerationParams{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "revised section text" {
		t.Errorf("Generate() = %q, want %q", got, "revised section text")
	}

	if gotReq.Model != "test-model" {
		t.Errorf("request model = %q, want test-model", gotReq.Model)
	}
	if gotReq.Stream {
		t.Error("request stream = true, want false")
	}
	if gotReq.Prompt != "revise this" {
		t.Errorf("request prompt = %q", gotReq.Prompt)
	}
}

func TestOllamaClient_Generate_ParamsForwarded(t *testing.T) {
	var gotReq ollamaGenerateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "ok", Done: true})
	}))
	defer server.Close()

	temp := float32(0.7)
	maxTokens := 512
	client := newTestOllamaClient(server.URL, "test-model")
	_, err := client.Generate(context.Background(), "p", GenerationParams{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
		Stop:        []string{"```"},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if got := gotReq.Options["temperature"]; got != 0.7 {
		t.Errorf("options temperature = %v, want 0.7", got)
	}
	if got := gotReq.Options["num_predict"]; got != float64(512) {
		t.Errorf("options num_predict = %v, want 512", got)
	}
	stop, ok := gotReq.Options["stop"].([]interface{})
	if !ok || len(stop) != 1 || stop[0] != "```" {
		t.Errorf("options stop = %v, want [```]", gotReq.Options["stop"])
	}
}

func TestOllamaClient_Generate_ModelNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'missing-model' not found"}`))
	}))
	defer server.Close()

	client := newTestOllamaClient(server.URL, "missing-model")
	_, err := client.Generate(context.Background(), "p", GenerationParams{})
	if err == nil {
		t.Fatal("Generate() expected error for missing model")
	}
	if !strings.Contains(err.Error(), "ollama pull") {
		t.Errorf("error should suggest pulling the model: %v", err)
	}
}

func TestOllamaClient_Generate_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("backend exploded"))
	}))
	defer server.Close()

	client := newTestOllamaClient(server.URL, "test-model")
	_, err := client.Generate(context.Background(), "p", GenerationParams{})
	if err == nil {
		t.Fatal("Generate() expected error for 500 response")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error should carry the status code: %v", err)
	}
}

func TestOllamaClient_Generate_ContextCancelled(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server watches the connection and cancels
		// the request context when the client goes away.
		_, _ = io.Copy(io.Discard, r.Body)
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := newTestOllamaClient(server.URL, "test-model")
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := client.Generate(ctx, "p", GenerationParams{})
	if err == nil {
		t.Fatal("Generate() expected error after cancellation")
	}
}

func TestNewBackend(t *testing.T) {
	t.Run("unsupported", func(t *testing.T) {
		_, err := NewBackend("mystery")
		if err == nil {
			t.Fatal("NewBackend() expected error for unsupported backend")
		}
		if !strings.Contains(err.Error(), "mystery") {
			t.Errorf("error should name the backend: %v", err)
		}
	})

	t.Run("ollama_requires_base_url", func(t *testing.T) {
		t.Setenv("OLLAMA_BASE_URL", "")
		_, err := NewBackend("ollama")
		if err == nil {
			t.Fatal("NewBackend(ollama) expected error without OLLAMA_BASE_URL")
		}
	})

	t.Run("ollama_with_base_url", func(t *testing.T) {
		t.Setenv("OLLAMA_BASE_URL", "http://localhost:11434/")
		t.Setenv("OLLAMA_MODEL", "test-model")
		client, err := NewBackend("ollama")
		if err != nil {
			t.Fatalf("NewBackend(ollama) error = %v", err)
		}
		oc, ok := client.(*OllamaClient)
		if !ok {
			t.Fatalf("NewBackend(ollama) returned %T", client)
		}
		if oc.baseURL != "http://localhost:11434" {
			t.Errorf("baseURL = %q, want trailing slash trimmed", oc.baseURL)
		}
	})
}
