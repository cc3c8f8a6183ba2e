// Copyright (C) 2025 Redline Systems (engineering@redlinehq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package archive persists consistency-run history in embedded BadgerDB.
//
// # Description
//
// Every run records what instruction was processed, which documents were
// patched, and how each edit fared. Runs are stored as JSON values under
// keys that sort chronologically, so listing recent runs is a reverse
// prefix scan with no secondary index.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
//
// # Thread Safety
//
// Store is safe for concurrent use; BadgerDB transactions provide
// isolation.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/redlinehq/redline/services/reviser/patch"
)

// runKeyPrefix namespaces run records inside the shared database.
const runKeyPrefix = "run:"

// gcInterval is how often value log garbage collection runs on
// persistent databases.
const gcInterval = 5 * time.Minute

// gcDiscardRatio is the minimum garbage ratio before a value log
// rewrite is attempted.
const gcDiscardRatio = 0.5

// ErrRunNotFound is returned by Get when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// DocumentOutcome records what happened to one document during a run.
type DocumentOutcome struct {
	// Source is the document reference that was fetched and patched.
	Source string `json:"source"`

	// Report holds the per-edit outcomes, nil when the document failed
	// before any edit was attempted.
	Report *patch.PatchReport `json:"report,omitempty"`

	// DiffSummary is a short human-readable description of the change.
	DiffSummary string `json:"diff_summary,omitempty"`

	// Error is set when the document could not be processed at all.
	Error string `json:"error,omitempty"`
}

// Run is one archived consistency run.
type Run struct {
	ID                string            `json:"id"`
	StartedAt         time.Time         `json:"started_at"`
	FinishedAt        time.Time         `json:"finished_at"`
	Instruction       string            `json:"instruction"`
	ModificationPoint string            `json:"modification_point,omitempty"`
	ProjectID         string            `json:"project_id,omitempty"`
	Documents         []DocumentOutcome `json:"documents"`
}

// NewRun creates a run with a fresh ID and the clock started.
func NewRun(instruction, modificationPoint, projectID string) *Run {
	return &Run{
		ID:                uuid.NewString(),
		StartedAt:         time.Now().UTC(),
		Instruction:       instruction,
		ModificationPoint: modificationPoint,
		ProjectID:         projectID,
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is the run archive. Create one with Open or OpenInMemory and
// Close it when done.
type Store struct {
	db       *badger.DB
	inMemory bool
	stopGC   chan struct{}
	doneGC   chan struct{}
}

// Open opens (or creates) a persistent archive at the given directory.
//
// # Inputs
//
//   - path: directory for database files, created if absent.
//   - logger: optional logger for BadgerDB internals. nil disables them.
//
// # Outputs
//
//   - *Store: the opened archive. Caller must call Close when done.
//   - error: non-nil if the path is invalid or the database cannot open.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("path is required for persistent archive")
	}
	if err := os.MkdirAll(path, 0750); err != nil {
		return nil, fmt.Errorf("create archive directory %s: %w", path, err)
	}

	opts := badger.DefaultOptions(path).WithSyncWrites(true).WithNumVersionsToKeep(1)
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &Store{
		db:     db,
		stopGC: make(chan struct{}),
		doneGC: make(chan struct{}),
	}
	go s.runGC(logger)
	return s, nil
}

// OpenInMemory opens an archive with no disk persistence. Used in tests
// and in lightweight deployments without an archive directory.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Store{db: db, inMemory: true}, nil
}

// runGC periodically rewrites the value log. ErrNoRewrite just means
// there was nothing worth collecting.
func (s *Store) runGC(logger *slog.Logger) {
	defer close(s.doneGC)

	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(gcDiscardRatio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) && logger != nil {
				logger.Warn("badger value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}

// Close stops garbage collection and closes the database. Safe to call
// once per Store.
func (s *Store) Close() error {
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.doneGC
	}
	return s.db.Close()
}

// runKey builds the storage key for a run. The zero-padded nanosecond
// timestamp makes lexical key order chronological.
func runKey(startedAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", runKeyPrefix, startedAt.UnixNano(), id))
}

// Put stores one finished run.
func (s *Store) Put(ctx context.Context, run *Run) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if run == nil || run.ID == "" {
		return errors.New("run must have an ID")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	value, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", run.ID, err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(runKey(run.StartedAt, run.ID), value)
	})
}

// Get returns the run with the given ID.
//
// The full key embeds the start timestamp, which the caller does not
// have, so Get scans keys under the run prefix and matches the ID
// suffix. Run counts are small enough that this stays cheap.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	if id == "" {
		return nil, errors.New("run ID must not be empty")
	}

	var run *Run
	suffix := ":" + id

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(runKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if !strings.HasSuffix(string(item.Key()), suffix) {
				continue
			}
			return item.Value(func(val []byte) error {
				run = new(Run)
				return json.Unmarshal(val, run)
			})
		}
		return ErrRunNotFound
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// List returns up to limit runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	if limit <= 0 {
		limit = 50
	}

	runs := make([]*Run, 0, limit)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Reverse = true

		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(runKeyPrefix)
		// Reverse iteration starts past the last possible run key.
		seekKey := append(append([]byte{}, prefix...), 0xFF)

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			err := it.Item().Value(func(val []byte) error {
				run := new(Run)
				if err := json.Unmarshal(val, run); err != nil {
					// Skip malformed records rather than failing the listing.
					slog.Warn("Skipping corrupt run record", "key", string(it.Item().Key()), "error", err)
					return nil
				}
				runs = append(runs, run)
				return nil
			})
			if err != nil {
				return err
			}
			if len(runs) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}
