// Copyright (C) 2025 Redline Systems (engineering@redlinehq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store fetches and writes manuscript documents across storage
// backends.
//
// # Description
//
// A consistency run touches documents that may live on the local
// filesystem, behind an HTTP endpoint, or in a GCS bucket. Each backend
// implements DocumentStore; the Resolver picks one from the reference's
// scheme ("gs://", "http://", "https://", anything else is a file path)
// and hands the reference through unchanged.
//
// Knowledge-base chunks record where their document came from under
// varying metadata keys, depending on which ingestion path produced them.
// ExtractIdentifier walks those keys in priority order to recover a
// reference the Resolver can dispatch.
//
// # Thread Safety
//
// All stores are safe for concurrent use; they hold only immutable
// configuration and clients that are themselves concurrency-safe.
package store

import (
	"context"
	"errors"
	"strings"
)

// =============================================================================
// Interface
// =============================================================================

// DocumentStore reads and writes whole documents by reference.
type DocumentStore interface {
	// Fetch returns the document's full text. ErrNotFound when the
	// reference does not resolve to a document.
	Fetch(ctx context.Context, ref string) (string, error)

	// Put writes the document's full text back. ErrReadOnly for backends
	// that cannot write.
	Put(ctx context.Context, ref string, content string) error
}

// ErrNotFound indicates the reference named no existing document.
var ErrNotFound = errors.New("document not found")

// ErrReadOnly indicates the backend cannot write documents.
var ErrReadOnly = errors.New("store is read-only")

// =============================================================================
// Resolver
// =============================================================================

// Resolver dispatches a document reference to the store that can serve
// it. The GCS store is optional; references with a gs:// scheme fail when
// it is absent.
type Resolver struct {
	file *FileStore
	http *HTTPStore
	gcs  *GCSStore
}

// NewResolver wires the configured backends. file and httpStore must be
// non-nil; gcs may be nil when no bucket access is configured.
func NewResolver(file *FileStore, httpStore *HTTPStore, gcs *GCSStore) *Resolver {
	return &Resolver{
		file: file,
		http: httpStore,
		gcs:  gcs,
	}
}

// Resolve returns the store responsible for ref.
//
// Scheme dispatch: "gs://" to GCS, "http://" and "https://" to HTTP,
// everything else to the local filesystem.
func (r *Resolver) Resolve(ref string) (DocumentStore, error) {
	switch {
	case strings.HasPrefix(ref, "gs://"):
		if r.gcs == nil {
			return nil, errors.New("gs:// reference but no GCS store configured")
		}
		return r.gcs, nil
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return r.http, nil
	default:
		return r.file, nil
	}
}

// Fetch resolves ref and fetches it.
func (r *Resolver) Fetch(ctx context.Context, ref string) (string, error) {
	s, err := r.Resolve(ref)
	if err != nil {
		return "", err
	}
	return s.Fetch(ctx, ref)
}

// Put resolves ref and writes content back to it.
func (r *Resolver) Put(ctx context.Context, ref string, content string) error {
	s, err := r.Resolve(ref)
	if err != nil {
		return err
	}
	return s.Put(ctx, ref, content)
}

// =============================================================================
// Metadata Identifiers
// =============================================================================

// identifierKeys is the priority order for recovering a document
// reference from chunk metadata. Earlier ingestion versions wrote
// different keys; file_path is the current one.
var identifierKeys = []string{"file_path", "source_identifier", "minio_url", "source"}

// ExtractIdentifier returns the first non-empty document reference found
// in the metadata map, or "" when none of the known keys is present.
func ExtractIdentifier(meta map[string]any) string {
	for _, key := range identifierKeys {
		v, ok := meta[key]
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
