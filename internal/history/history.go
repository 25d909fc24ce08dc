// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

// Package history persists finished job records in a BadgerDB store so
// the daemon and the `history` command can show what ran, when, and how
// it ended. Records are append-only; retention pruning and value-log GC
// run from the daemon's store layer.
package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/beloureiro/inlocker/internal/backup"
)

// recordKeyPrefix namespaces job records in the key space. Keys embed
// the start time as fixed-width hex nanoseconds so lexicographic key
// order is chronological order.
const recordKeyPrefix = "job:"

// Record is one finished job as stored in history.
type Record struct {
	// Kind is "backup" or "restore".
	Kind string `json:"kind"`

	backup.Job
}

// Store is a BadgerDB-backed history of finished jobs.
type Store struct {
	db *badger.DB
}

// Open opens (creating if needed) the history store at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store at %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores one finished job record.
func (s *Store) Append(rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("history record has no job ID")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal history record: %w", err)
	}
	key := recordKey(rec.StartedAt, rec.ID)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// Recent returns up to n records, newest first. n <= 0 returns all.
func (s *Store) Recent(n int) ([]Record, error) {
	var records []Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(recordKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts from the end of the prefix range.
		seek := append([]byte(recordKeyPrefix), 0xff)
		for it.Seek(seek); it.Valid(); it.Next() {
			if n > 0 && len(records) >= n {
				break
			}
			var rec Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("failed to decode history record: %w", err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Prune deletes records that started before cutoff and reports how many
// were removed.
func (s *Store) Prune(cutoff time.Time) (int, error) {
	// Collect keys first; Badger forbids writes during iteration.
	var stale [][]byte
	end := recordKey(cutoff, "")
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(recordKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if string(key) >= string(end) {
				break
			}
			stale = append(stale, key)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return 0, fmt.Errorf("failed to delete history record: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("failed to flush history deletions: %w", err)
	}
	return len(stale), nil
}

// RunValueLogGC triggers one round of Badger value-log garbage
// collection. Badger reports ErrNoRewrite when there was nothing to
// reclaim; that is not an error for callers.
func (s *Store) RunValueLogGC() error {
	err := s.db.RunValueLogGC(0.5)
	if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		return err
	}
	return nil
}

// recordKey builds the ordered key for a record.
func recordKey(startedAt time.Time, id string) []byte {
	return fmt.Appendf(nil, "%s%016x:%s", recordKeyPrefix, uint64(startedAt.UnixNano()), id)
}
