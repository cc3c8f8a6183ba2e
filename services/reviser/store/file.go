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
	"os"
	"path/filepath"
	"strings"
)

// FileStore serves documents from the local filesystem.
//
// With a root directory configured, relative references resolve under it
// and any reference escaping the root is rejected. Without a root, the
// reference is used as a plain path.
type FileStore struct {
	root string
}

// NewFileStore creates a FileStore. root may be empty for unconfined
// path access (CLI usage); services should set it.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// resolvePath maps a reference onto the filesystem, enforcing the root
// boundary when one is set.
func (s *FileStore) resolvePath(ref string) (string, error) {
	if s.root == "" {
		return ref, nil
	}
	if filepath.IsAbs(ref) {
		return "", fmt.Errorf("absolute path %q not allowed under a rooted store", ref)
	}
	full := filepath.Join(s.root, ref)
	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("reference %q escapes the store root", ref)
	}
	return full, nil
}

// Fetch reads the document at ref.
func (s *FileStore) Fetch(ctx context.Context, ref string) (string, error) {
	path, err := s.resolvePath(ref)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return "", fmt.Errorf("read %s: %w", ref, err)
	}
	return string(data), nil
}

// Put writes the document at ref, creating parent directories as needed.
func (s *FileStore) Put(ctx context.Context, ref string, content string) error {
	path, err := s.resolvePath(ref)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("create directory for %s: %w", ref, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0640); err != nil {
		return fmt.Errorf("write %s: %w", ref, err)
	}
	return nil
}

var _ DocumentStore = (*FileStore)(nil)
