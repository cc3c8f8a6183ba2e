// Copyright (C) 2025 Redline Systems (engineering@redlinehq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides request and response structures for the
// reviser service.
//
// This file contains the patch, expand, consistency check, and document
// ingestion types. Archive records are served as-is from services/reviser/archive.
package datatypes

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/redlinehq/redline/services/reviser/patch"
)

// =============================================================================
// Limits
// =============================================================================

const (
	// MaxDocumentBytes is the maximum inline document size accepted in a
	// request body. Larger manuscripts must be passed by source reference.
	MaxDocumentBytes = 2 * 1024 * 1024 // 2MB

	// MaxEditsPerRequest is the maximum number of edits in one patch request.
	MaxEditsPerRequest = 100

	// DefaultTopK is the related-document count when a check request does
	// not set one.
	DefaultTopK = 5

	// MaxTopK bounds the related-document fan-out.
	MaxTopK = 20
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// revisionValidate is the validator instance for reviser datatypes.
var revisionValidate = validator.New()

// =============================================================================
// Patch Types
// =============================================================================

// PatchRequest applies caller-supplied edits to one document.
//
// # Description
//
// The document is given either inline (Document) or by reference (Source);
// inline content wins when both are set. With WriteBack the patched text is
// written back through the document store, which requires Source.
//
// # Fields
//
//   - Source: Document reference (file path, http(s) URL, or gs:// object).
//   - Document: Inline document text, at most MaxDocumentBytes.
//   - Edits: Proposed edits in application order, 1..MaxEditsPerRequest.
//   - WriteBack: Write the patched text back to Source after applying.
type PatchRequest struct {
	Source    string              `json:"source"`
	Document  string              `json:"document"`
	Edits     []patch.EditRequest `json:"edits" validate:"required,min=1,max=100"`
	WriteBack bool                `json:"write_back"`
}

// Validate checks the request beyond what struct tags can express.
func (r *PatchRequest) Validate() error {
	if r.Source == "" && r.Document == "" {
		return errors.New("either source or document must be provided")
	}
	if len(r.Document) > MaxDocumentBytes {
		return errors.New("inline document exceeds the size limit")
	}
	if r.WriteBack && r.Source == "" {
		return errors.New("write_back requires a source reference")
	}
	return revisionValidate.Struct(r)
}

// PatchResponse returns the patched document and the per-edit outcomes.
type PatchResponse struct {
	Source      string             `json:"source,omitempty"`
	Document    string             `json:"document"`
	Report      *patch.PatchReport `json:"report"`
	DiffSummary string             `json:"diff_summary"`
}

// =============================================================================
// Expand Types
// =============================================================================

// ExpandRequest previews the section a heading anchor would expand to.
type ExpandRequest struct {
	Source        string `json:"source"`
	Document      string `json:"document"`
	HeadingAnchor string `json:"heading_anchor" validate:"required"`
}

// Validate checks the request beyond what struct tags can express.
func (r *ExpandRequest) Validate() error {
	if r.Source == "" && r.Document == "" {
		return errors.New("either source or document must be provided")
	}
	if len(r.Document) > MaxDocumentBytes {
		return errors.New("inline document exceeds the size limit")
	}
	return revisionValidate.Struct(r)
}

// ExpandResponse carries the expanded section text. Section equals the
// anchor itself when the anchor is not a heading the document contains.
type ExpandResponse struct {
	Source        string `json:"source,omitempty"`
	HeadingAnchor string `json:"heading_anchor"`
	Section       string `json:"section"`
}

// =============================================================================
// Consistency Check Types
// =============================================================================

// CheckRequest drives the cross-document consistency pipeline.
//
// # Description
//
// ModificationPoint names what changed ("the CEO's name", "chapter 2's
// timeline") and doubles as the knowledge base search query for related
// documents. ModificationRequest is the author's full change instruction
// handed to the proposal engine.
//
// # Fields
//
//   - ModificationPoint: Required. What changed; also the related-document
//     search query.
//   - ModificationRequest: Required. The change instruction for the LLM.
//   - TargetFile: Optional. Document reference revised first; later
//     documents see its patched text as the consistency reference.
//   - ProjectID: Optional. Restricts the related-document search.
//   - TopK: Related documents to consider, 0 meaning DefaultTopK.
//   - IncludeRelated: Search the knowledge base for related documents.
//     Defaults to true; a nil pointer is treated as unset.
//   - Apply: Write patched documents back through the store and re-ingest
//     them into the knowledge base.
type CheckRequest struct {
	ModificationPoint   string `json:"modification_point" validate:"required"`
	ModificationRequest string `json:"modification_request" validate:"required"`
	TargetFile          string `json:"target_file"`
	ProjectID           string `json:"project_id"`
	TopK                int    `json:"top_k" validate:"gte=0,lte=20"`
	IncludeRelated      *bool  `json:"include_related"`
	Apply               bool   `json:"apply"`
}

// Validate checks the request fields.
func (r *CheckRequest) Validate() error {
	return revisionValidate.Struct(r)
}

// EnsureDefaults populates unset optional fields.
func (r *CheckRequest) EnsureDefaults() {
	if r.TopK <= 0 {
		r.TopK = DefaultTopK
	}
	if r.IncludeRelated == nil {
		related := true
		r.IncludeRelated = &related
	}
}

// Related reports whether the knowledge base search is enabled. Call
// EnsureDefaults first.
func (r *CheckRequest) Related() bool {
	return r.IncludeRelated != nil && *r.IncludeRelated
}

// DocumentResult is one document's outcome within a check run.
//
// Patched carries the revised text for preview runs (Apply=false); on
// applied runs the text went back to the store instead. Error is set when
// the document could not be processed at all; Report covers per-edit
// failures within a processed document.
type DocumentResult struct {
	Source      string             `json:"source"`
	Report      *patch.PatchReport `json:"report,omitempty"`
	DiffSummary string             `json:"diff_summary,omitempty"`
	Patched     string             `json:"patched,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// CheckResponse summarizes a consistency run.
type CheckResponse struct {
	RunID        string           `json:"run_id"`
	StartedAt    time.Time        `json:"started_at"`
	Analysis     string           `json:"analysis,omitempty"`
	Documents    []DocumentResult `json:"documents"`
	TotalApplied int              `json:"total_applied"`
	TotalFailed  int              `json:"total_failed"`
	Applied      bool             `json:"applied"`
}

// =============================================================================
// Document Ingestion Types
// =============================================================================

// IngestRequest loads one document into the knowledge base.
type IngestRequest struct {
	Source    string `json:"source" validate:"required"`
	Content   string `json:"content" validate:"required"`
	ProjectID string `json:"project_id"`
}

// Validate checks the request fields.
func (r *IngestRequest) Validate() error {
	return revisionValidate.Struct(r)
}
