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
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore serves documents from gs://bucket/object references.
type GCSStore struct {
	client *storage.Client
}

// NewGCSStore creates a GCSStore authenticated with the service account
// key at saKeyPath. An empty saKeyPath uses ambient credentials
// (workload identity or GOOGLE_APPLICATION_CREDENTIALS).
func NewGCSStore(ctx context.Context, saKeyPath string) (*GCSStore, error) {
	var opts []option.ClientOption
	if saKeyPath != "" {
		if _, err := os.Stat(saKeyPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s. Please ensure you have the correct key and it is accessible", saKeyPath)
		}
		opts = append(opts, option.WithCredentialsFile(saKeyPath))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCSStore{client: client}, nil
}

// splitRef parses "gs://bucket/object/path" into bucket and object.
func splitRef(ref string) (bucket, object string, err error) {
	trimmed := strings.TrimPrefix(ref, "gs://")
	if trimmed == ref {
		return "", "", fmt.Errorf("not a gs:// reference: %s", ref)
	}
	bucket, object, found := strings.Cut(trimmed, "/")
	if !found || bucket == "" || object == "" {
		return "", "", fmt.Errorf("malformed gs:// reference: %s", ref)
	}
	return bucket, object, nil
}

// Fetch reads the object named by ref.
func (s *GCSStore) Fetch(ctx context.Context, ref string) (string, error) {
	bucket, object, err := splitRef(ref)
	if err != nil {
		return "", err
	}

	reader, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return "", fmt.Errorf("open %s: %w", ref, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", ref, err)
	}
	return string(data), nil
}

// Put writes the object named by ref.
func (s *GCSStore) Put(ctx context.Context, ref string, content string) error {
	bucket, object, err := splitRef(ref)
	if err != nil {
		return err
	}

	writer := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	writer.ContentType = "text/markdown; charset=utf-8"
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := io.Copy(writer, strings.NewReader(content)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("write %s: %w", ref, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", ref, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

var _ DocumentStore = (*GCSStore)(nil)
