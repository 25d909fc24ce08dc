// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/beloureiro/inlocker/internal/backup"
)

// openTestStore opens a store in a temp dir and closes it with the test.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return store
}

// testRecord builds a completed backup record started at the given time.
func testRecord(id string, startedAt time.Time) Record {
	return Record{
		Kind: "backup",
		Job: backup.Job{
			ID:         id,
			Target:     "documents",
			Mode:       backup.ModeCompressed,
			Type:       backup.TypeFull,
			Status:     backup.StatusCompleted,
			StartedAt:  startedAt,
			FinishedAt: startedAt.Add(time.Minute),
		},
	}
}

func TestAppendAndRecent(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec := testRecord(fmt.Sprintf("job-%d", i), base.Add(time.Duration(i)*time.Hour))
		if err := store.Append(rec); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}

	records, err := store.Recent(3)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Recent(3) = %d records, want 3", len(records))
	}
	// Newest first
	for i, wantID := range []string{"job-4", "job-3", "job-2"} {
		if records[i].ID != wantID {
			t.Errorf("records[%d].ID = %s, want %s", i, records[i].ID, wantID)
		}
	}
	if records[0].Kind != "backup" {
		t.Errorf("Kind = %q, want backup", records[0].Kind)
	}
	if records[0].Status != backup.StatusCompleted {
		t.Errorf("Status = %s, want completed", records[0].Status)
	}
}

func TestRecentAll(t *testing.T) {
	store := openTestStore(t)

	base := time.Now().UTC()
	for i := 0; i < 4; i++ {
		if err := store.Append(testRecord(fmt.Sprintf("job-%d", i), base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	records, err := store.Recent(0)
	if err != nil {
		t.Fatalf("Recent(0) error = %v", err)
	}
	if len(records) != 4 {
		t.Errorf("Recent(0) = %d records, want 4", len(records))
	}
}

func TestAppendRejectsEmptyID(t *testing.T) {
	store := openTestStore(t)
	if err := store.Append(Record{Kind: "backup"}); err == nil {
		t.Fatal("Append(no ID) = nil, want error")
	}
}

func TestPrune(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		if err := store.Append(testRecord(fmt.Sprintf("job-%d", i), base.AddDate(0, 0, i))); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	// Cut off the first three days.
	pruned, err := store.Prune(base.AddDate(0, 0, 3))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if pruned != 3 {
		t.Errorf("Prune() = %d, want 3", pruned)
	}

	records, err := store.Recent(0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("after prune: %d records, want 3", len(records))
	}
	for _, rec := range records {
		if rec.StartedAt.Before(base.AddDate(0, 0, 3)) {
			t.Errorf("record %s started %v, should have been pruned", rec.ID, rec.StartedAt)
		}
	}

	// Second prune at the same cutoff is a no-op.
	pruned, err = store.Prune(base.AddDate(0, 0, 3))
	if err != nil {
		t.Fatalf("Prune() second error = %v", err)
	}
	if pruned != 0 {
		t.Errorf("second Prune() = %d, want 0", pruned)
	}
}

func TestRunValueLogGCIgnoresNoRewrite(t *testing.T) {
	store := openTestStore(t)
	// Fresh store has nothing to reclaim; ErrNoRewrite must be swallowed.
	if err := store.RunValueLogGC(); err != nil {
		t.Fatalf("RunValueLogGC() error = %v", err)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	rec := testRecord("job-persist", time.Now().UTC())
	rec.Job.Status = backup.StatusFailed
	rec.Job.Error = "disk full"
	if err := store.Append(rec); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer func() {
		if err := reopened.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	records, err := reopened.Recent(1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(records) != 1 || records[0].ID != "job-persist" {
		t.Fatalf("Recent() = %+v, want the persisted record", records)
	}
	if records[0].Error != "disk full" {
		t.Errorf("Error = %q, want disk full", records[0].Error)
	}
}
