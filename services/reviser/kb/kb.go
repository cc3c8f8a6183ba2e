// Copyright (C) 2025 Redline Systems (engineering@redlinehq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package kb maintains the Weaviate knowledge base behind consistency checks.
//
// # Description
//
// Manuscripts are chunked with a Markdown-aware recursive splitter and stored
// as ManuscriptChunk objects. Retrieval is keyword search (BM25 over the
// content property), so the class uses no vectorizer and ingestion attaches no
// client-side embeddings. Chunk IDs are derived from source, position, and
// content, which makes re-ingesting an unchanged document idempotent.
//
// # Thread Safety
//
// Store is safe for concurrent use. All state lives in Weaviate; the struct
// only holds the client handle.
package kb

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/go-openapi/strfmt"
)

// ManuscriptChunkClassName is the Weaviate class name for manuscript chunks.
const ManuscriptChunkClassName = "ManuscriptChunk"

var (
	chunkSize    = 1000
	chunkOverlap = 150

	markdownSeparators = []string{
		"\n# ", "\n## ", "\n### ", "\n#### ", "\n##### ", "\n###### ",
		"\n\n", "\n", " ", "",
	}
)

// Chunk is one stored manuscript fragment returned by a search.
type Chunk struct {
	Content      string `json:"content"`
	Source       string `json:"source"`
	ParentSource string `json:"parent_source"`
	ChunkIndex   int    `json:"chunk_index"`
}

// SourceHits groups search hits under the document they came from, in the
// order the documents first appeared in the ranked results.
type SourceHits struct {
	Source string  `json:"source"`
	Chunks []Chunk `json:"chunks"`
}

// Store wraps a Weaviate client scoped to the ManuscriptChunk class.
type Store struct {
	client *weaviate.Client
}

// New connects to Weaviate at rawURL and verifies it is ready.
func New(ctx context.Context, rawURL string) (*Store, error) {
	rawURL = strings.Trim(rawURL, "\"' ")

	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid Weaviate URL: %s", rawURL)
	}

	clientConf := weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	}

	client, err := weaviate.NewClient(clientConf)
	if err != nil {
		return nil, fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	ready, err := client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate not reachable at %s: %w", rawURL, err)
	}
	if !ready {
		return nil, fmt.Errorf("weaviate at %s is not ready", rawURL)
	}

	slog.Info("Weaviate client initialized", "url", rawURL)
	return &Store{client: client}, nil
}

// NewWithClient wraps an existing Weaviate client.
func NewWithClient(client *weaviate.Client) *Store {
	return &Store{client: client}
}

// manuscriptChunkSchema returns the class definition for stored chunks.
func manuscriptChunkSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       ManuscriptChunkClassName,
		Description: "A chunk of a Markdown manuscript tracked for consistency.",
		Vectorizer:  "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			IndexTimestamps: true,
		},
		Properties: []*models.Property{
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "The chunk text.",
				Tokenization: "word",
			},
			{
				Name:            "source",
				DataType:        []string{"text"},
				Description:     "Chunk identifier: parent source plus part number.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "parent_source",
				DataType:        []string{"text"},
				Description:     "The document this chunk was split from.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "project_id",
				DataType:        []string{"text"},
				Description:     "Logical project the document belongs to.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "chunk_index",
				DataType:        []string{"int"},
				Description:     "Zero-based position of the chunk within its document.",
				IndexFilterable: indexFilterable,
			},
			{
				Name:            "ingested_at",
				DataType:        []string{"number"},
				Description:     "Timestamp (Unix ms) of when the chunk was ingested.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

// EnsureSchema creates the ManuscriptChunk class if it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	class := manuscriptChunkSchema()

	_, err := s.client.Schema().ClassGetter().WithClassName(class.Class).Do(ctx)
	if err == nil {
		slog.Info("Schema already exists", "class", class.Class)
		return nil
	}

	slog.Info("Schema not found, creating it...", "class", class.Class)
	if err := s.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("failed to create schema for class %s: %w", class.Class, err)
	}

	slog.Info("Successfully created schema", "class", class.Class)
	return nil
}

// Ingest splits a document into chunks and batch-imports them. It returns the
// number of chunks Weaviate accepted.
func (s *Store) Ingest(ctx context.Context, source, projectID, content string) (int, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
		textsplitter.WithSeparators(markdownSeparators),
	)

	chunks, err := splitter.SplitText(content)
	if err != nil {
		slog.Error("Failed to split text", "source", source, "error", err)
		return 0, fmt.Errorf("failed to split content: %w", err)
	}
	if len(chunks) == 0 {
		slog.Warn("No chunks produced after splitting", "source", source)
		return 0, nil
	}
	slog.Info("Split document into chunks", "source", source, "chunk_count", len(chunks))

	objects := make([]*models.Object, len(chunks))
	ingestedAt := time.Now().UnixMilli()

	for i, chunk := range chunks {
		chunkSource := fmt.Sprintf("%s_part_%d", source, i+1)

		objects[i] = &models.Object{
			Class: ManuscriptChunkClassName,
			ID:    strfmt.UUID(chunkID(source, i, chunk)),
			Properties: map[string]interface{}{
				"content":       chunk,
				"source":        chunkSource,
				"parent_source": source,
				"project_id":    projectID,
				"chunk_index":   i,
				"ingested_at":   ingestedAt,
			},
		}
	}

	batcher := s.client.Batch().ObjectsBatcher()
	batcher.WithObjects(objects...)

	resp, err := batcher.Do(ctx)
	if err != nil {
		slog.Error("Failed to perform batch import to Weaviate", "error", err)
		return 0, fmt.Errorf("failed to save objects to Weaviate: %w", err)
	}

	chunksCreated := 0
	hasErrors := false
	for _, item := range resp {
		if item.Result != nil && item.Result.Status != nil && *item.Result.Status == "SUCCESS" {
			chunksCreated++
			continue
		}
		hasErrors = true
		if item.Result != nil && item.Result.Errors != nil && len(item.Result.Errors.Error) > 0 {
			for _, errItem := range item.Result.Errors.Error {
				slog.Warn("Error in Weaviate batch item", "source", source, "error", errItem.Message)
			}
		} else {
			status := "UNKNOWN"
			if item.Result != nil && item.Result.Status != nil {
				status = *item.Result.Status
			}
			slog.Warn("Failed Weaviate batch item, no error provided", "source", source, "status", status)
		}
	}

	if hasErrors {
		slog.Warn("Errors encountered during Weaviate batch import",
			"source", source, "successful_chunks", chunksCreated)
	}

	slog.Info("Successfully ingested document", "source", source, "chunks_processed", chunksCreated)
	return chunksCreated, nil
}

// SearchRelated runs a BM25 keyword search and groups the hits by parent
// document. The exclude argument drops a document from the results, typically
// the one the query text was taken from. At most topK documents are returned.
func (s *Store) SearchRelated(ctx context.Context, query, projectID string, topK int, exclude string) ([]SourceHits, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if topK <= 0 {
		topK = 5
	}

	// Fetch more chunks than requested documents: several hits usually land
	// in the same document.
	fetchLimit := topK * 4
	if fetchLimit < 20 {
		fetchLimit = 20
	}

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "source"},
		{Name: "parent_source"},
		{Name: "chunk_index"},
	}

	getBuilder := s.client.GraphQL().Get().
		WithClassName(ManuscriptChunkClassName).
		WithFields(fields...).
		WithBM25(s.client.GraphQL().Bm25ArgBuilder().WithQuery(query)).
		WithLimit(fetchLimit)

	if projectID != "" {
		getBuilder = getBuilder.WithWhere(filters.Where().
			WithPath([]string{"project_id"}).
			WithOperator(filters.Equal).
			WithValueString(projectID))
	}

	result, err := getBuilder.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("search error: %s", result.Errors[0].Message)
	}

	chunks := parseChunkObjects(jsonObjectMap(result.Data))
	hits := groupBySource(chunks, exclude, topK)

	slog.Info("Searched related manuscripts",
		"query_length", len(query), "documents", len(hits), "chunks", len(chunks))
	return hits, nil
}

// ListSources returns the distinct parent documents currently ingested.
func (s *Store) ListSources(ctx context.Context, projectID string) ([]string, error) {
	aggBuilder := s.client.GraphQL().Aggregate().
		WithClassName(ManuscriptChunkClassName).
		WithGroupBy("parent_source").
		WithFields(graphql.Field{
			Name:   "groupedBy",
			Fields: []graphql.Field{{Name: "value"}},
		})

	if projectID != "" {
		aggBuilder = aggBuilder.WithWhere(filters.Where().
			WithPath([]string{"project_id"}).
			WithOperator(filters.Equal).
			WithValueString(projectID))
	}

	agg, err := aggBuilder.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate manuscript sources: %w", err)
	}
	if len(agg.Errors) > 0 {
		return nil, fmt.Errorf("aggregate error: %s", agg.Errors[0].Message)
	}

	return parseAggregateSources(jsonObjectMap(agg.Data)), nil
}

// DeleteBySource removes every chunk belonging to one parent document and
// returns how many objects Weaviate deleted.
func (s *Store) DeleteBySource(ctx context.Context, source string) (int, error) {
	where := filters.Where().
		WithPath([]string{"parent_source"}).
		WithOperator(filters.Equal).
		WithValueText(source)

	resp, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(ManuscriptChunkClassName).
		WithWhere(where).
		WithOutput("minimal").
		Do(ctx)

	if err != nil {
		return 0, fmt.Errorf("batch delete failed for %s: %w", source, err)
	}
	if resp == nil || resp.Results == nil {
		return 0, nil
	}

	deleted := int(resp.Results.Successful)
	slog.Info("Deleted manuscript chunks", "source", source, "deleted", deleted)
	return deleted, nil
}

// chunkID derives a stable UUID from a chunk's document, position, and text.
func chunkID(source string, index int, chunk string) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s#%d:%s", source, index, chunk)))
	id, _ := uuid.FromBytes(hash[:16])
	return id.String()
}

// jsonObjectMap adapts a Weaviate GraphQL response payload to a plain map.
func jsonObjectMap(data map[string]models.JSONObject) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

// parseChunkObjects walks a GraphQL Get response into typed chunks.
func parseChunkObjects(data map[string]interface{}) []Chunk {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	objects, ok := get[ManuscriptChunkClassName].([]interface{})
	if !ok {
		return nil
	}

	chunks := make([]Chunk, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue // skip malformed objects
		}
		chunks = append(chunks, Chunk{
			Content:      getString(m, "content"),
			Source:       getString(m, "source"),
			ParentSource: getString(m, "parent_source"),
			ChunkIndex:   getInt(m, "chunk_index"),
		})
	}
	return chunks
}

// groupBySource buckets ranked chunks under their parent document, keeping
// the ranked order of both documents and chunks.
func groupBySource(chunks []Chunk, exclude string, topK int) []SourceHits {
	var order []string
	bySource := make(map[string][]Chunk)

	for _, chunk := range chunks {
		if chunk.ParentSource == "" || chunk.ParentSource == exclude {
			continue
		}
		if _, seen := bySource[chunk.ParentSource]; !seen {
			if len(order) == topK {
				continue
			}
			order = append(order, chunk.ParentSource)
		}
		bySource[chunk.ParentSource] = append(bySource[chunk.ParentSource], chunk)
	}

	hits := make([]SourceHits, 0, len(order))
	for _, source := range order {
		hits = append(hits, SourceHits{Source: source, Chunks: bySource[source]})
	}
	return hits
}

// parseAggregateSources extracts grouped parent_source values from an
// Aggregate response.
func parseAggregateSources(data map[string]interface{}) []string {
	var sources []string

	if data["Aggregate"] == nil {
		return sources
	}
	aggMap, ok := data["Aggregate"].(map[string]interface{})
	if !ok || aggMap[ManuscriptChunkClassName] == nil {
		return sources
	}
	groups, ok := aggMap[ManuscriptChunkClassName].([]interface{})
	if !ok {
		return sources
	}

	for _, groupItem := range groups {
		groupMap, ok := groupItem.(map[string]interface{})
		if !ok || groupMap["groupedBy"] == nil {
			continue
		}
		groupedByMap, ok := groupMap["groupedBy"].(map[string]interface{})
		if !ok || groupedByMap["value"] == nil {
			continue
		}
		if sourceName, ok := groupedByMap["value"].(string); ok {
			sources = append(sources, sourceName)
		}
	}
	return sources
}

// getString safely extracts a string from a map.
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// getInt safely extracts an int from a map. GraphQL numbers decode as float64.
func getInt(m map[string]interface{}, key string) int {
	if v, ok := m[key]; ok {
		if f, ok := v.(float64); ok {
			return int(f)
		}
	}
	return 0
}
