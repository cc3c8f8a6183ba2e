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
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

// =============================================================================
// FileStore
// =============================================================================

func TestFileStore_FetchAndPut(t *testing.T) {
	root := t.TempDir()
	s := NewFileStore(root)
	ctx := context.Background()

	if err := s.Put(ctx, "manuals/guide.md", "# Guide\ncontent"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := s.Fetch(ctx, "manuals/guide.md")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got != "# Guide\ncontent" {
		t.Errorf("Fetch() = %q", got)
	}

	// The file really lives under the root.
	if _, err := os.Stat(filepath.Join(root, "manuals", "guide.md")); err != nil {
		t.Errorf("expected file under root: %v", err)
	}
}

func TestFileStore_FetchMissing(t *testing.T) {
	s := NewFileStore(t.TempDir())
	_, err := s.Fetch(context.Background(), "absent.md")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch() error = %v, want ErrNotFound", err)
	}
}

func TestFileStore_RootConfinement(t *testing.T) {
	s := NewFileStore(t.TempDir())
	ctx := context.Background()

	if _, err := s.Fetch(ctx, "../outside.md"); err == nil {
		t.Error("Fetch() should reject references escaping the root")
	}
	if err := s.Put(ctx, "../../outside.md", "x"); err == nil {
		t.Error("Put() should reject references escaping the root")
	}
	if _, err := s.Fetch(ctx, "/etc/passwd"); err == nil {
		t.Error("Fetch() should reject absolute paths under a rooted store")
	}
}

func TestFileStore_UnrootedUsesPlainPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	if err := os.WriteFile(path, []byte("body"), 0640); err != nil {
		t.Fatal(err)
	}

	s := NewFileStore("")
	got, err := s.Fetch(context.Background(), path)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got != "body" {
		t.Errorf("Fetch() = %q", got)
	}
}

// =============================================================================
// HTTPStore
// =============================================================================

func TestHTTPStore_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/doc.md":
			_, _ = w.Write([]byte("remote document body"))
		case "/gone.md":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	s := NewHTTPStore(server.Client())
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		got, err := s.Fetch(ctx, server.URL+"/doc.md")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if got != "remote document body" {
			t.Errorf("Fetch() = %q", got)
		}
	})

	t.Run("not_found", func(t *testing.T) {
		_, err := s.Fetch(ctx, server.URL+"/gone.md")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Fetch() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("server_error", func(t *testing.T) {
		_, err := s.Fetch(ctx, server.URL+"/boom.md")
		if err == nil {
			t.Error("Fetch() expected error on 500")
		}
	})
}

func TestHTTPStore_PutIsReadOnly(t *testing.T) {
	s := NewHTTPStore(nil)
	err := s.Put(context.Background(), "https://example.com/doc.md", "x")
	if !errors.Is(err, ErrReadOnly) {
		t.Errorf("Put() error = %v, want ErrReadOnly", err)
	}
}

// =============================================================================
// Resolver
// =============================================================================

func TestResolver_Resolve(t *testing.T) {
	file := NewFileStore("")
	httpStore := NewHTTPStore(nil)
	r := NewResolver(file, httpStore, nil)

	tests := []struct {
		name string
		ref  string
		want DocumentStore
	}{
		{"relative_path", "docs/guide.md", file},
		{"absolute_path", "/var/docs/guide.md", file},
		{"http", "http://example.com/doc.md", httpStore},
		{"https", "https://example.com/doc.md", httpStore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.ref)
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.ref, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) routed to %T", tt.ref, got)
			}
		})
	}

	t.Run("gcs_unconfigured", func(t *testing.T) {
		if _, err := r.Resolve("gs://bucket/doc.md"); err == nil {
			t.Error("Resolve() should fail for gs:// without a GCS store")
		}
	})
}

func TestResolver_FetchDispatches(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "local.md"), []byte("local body"), 0640); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(NewFileStore(root), NewHTTPStore(nil), nil)
	got, err := r.Fetch(context.Background(), "local.md")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got != "local body" {
		t.Errorf("Fetch() = %q", got)
	}
}

// =============================================================================
// GCS Reference Parsing
// =============================================================================

func TestSplitRef(t *testing.T) {
	tests := []struct {
		name       string
		ref        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"simple", "gs://manuscripts/guide.md", "manuscripts", "guide.md", false},
		{"nested_object", "gs://manuscripts/drafts/v2/guide.md", "manuscripts", "drafts/v2/guide.md", false},
		{"no_scheme", "manuscripts/guide.md", "", "", true},
		{"no_object", "gs://manuscripts", "", "", true},
		{"empty_bucket", "gs:///guide.md", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := splitRef(tt.ref)
			if (err != nil) != tt.wantErr {
				t.Fatalf("splitRef(%q) error = %v, wantErr %v", tt.ref, err, tt.wantErr)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("splitRef(%q) = (%q, %q), want (%q, %q)",
					tt.ref, bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

// =============================================================================
// Metadata Identifiers
// =============================================================================

func TestExtractIdentifier(t *testing.T) {
	tests := []struct {
		name string
		meta map[string]any
		want string
	}{
		{
			name: "file_path_wins",
			meta: map[string]any{
				"file_path": "docs/a.md",
				"source":    "legacy.md",
			},
			want: "docs/a.md",
		},
		{
			name: "source_identifier_second",
			meta: map[string]any{
				"source_identifier": "docs/b.md",
				"minio_url":         "http://minio/bucket/c.md",
			},
			want: "docs/b.md",
		},
		{
			name: "minio_url_third",
			meta: map[string]any{
				"minio_url": "http://minio/bucket/c.md",
				"source":    "legacy.md",
			},
			want: "http://minio/bucket/c.md",
		},
		{
			name: "source_last",
			meta: map[string]any{"source": "legacy.md"},
			want: "legacy.md",
		},
		{
			name: "blank_values_skipped",
			meta: map[string]any{
				"file_path": "   ",
				"source":    "fallback.md",
			},
			want: "fallback.md",
		},
		{
			name: "non_string_values_skipped",
			meta: map[string]any{
				"file_path": 42,
				"source":    "typed.md",
			},
			want: "typed.md",
		},
		{
			name: "nothing_known",
			meta: map[string]any{"other": "x"},
			want: "",
		},
		{
			name: "nil_map",
			meta: nil,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractIdentifier(tt.meta); got != tt.want {
				t.Errorf("ExtractIdentifier() = %q, want %q", got, tt.want)
			}
		})
	}
}
