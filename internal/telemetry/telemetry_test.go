// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

package telemetry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/beloureiro/inlocker/internal/backup"
	"github.com/beloureiro/inlocker/internal/history"
)

// fakeLister serves a fixed set of active jobs.
type fakeLister struct {
	jobs []*backup.Job
}

func (f *fakeLister) ActiveJobs() []*backup.Job { return f.jobs }

// fakeHistorian serves canned records or an error.
type fakeHistorian struct {
	records []history.Record
	err     error
}

func (f *fakeHistorian) Recent(int) ([]history.Record, error) { return f.records, f.err }

func TestHealthz(t *testing.T) {
	router := NewRouter(&fakeLister{}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("body = %q, want ok", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := NewRouter(&fakeLister{}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "inlocker_") {
		t.Error("metrics output is missing inlocker_ collectors")
	}
}

func TestStatusView(t *testing.T) {
	active := []*backup.Job{{
		ID:        "job-active",
		Target:    "documents",
		Status:    backup.StatusRunning,
		StartedAt: time.Now().UTC(),
	}}
	records := []history.Record{{
		Kind: "backup",
		Job: backup.Job{
			ID:     "job-done",
			Target: "documents",
			Status: backup.StatusCompleted,
		},
	}}
	router := NewRouter(&fakeLister{jobs: active}, &fakeHistorian{records: records})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var status Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if len(status.ActiveJobs) != 1 || status.ActiveJobs[0].ID != "job-active" {
		t.Errorf("ActiveJobs = %+v, want the running job", status.ActiveJobs)
	}
	if len(status.RecentJobs) != 1 || status.RecentJobs[0].ID != "job-done" {
		t.Errorf("RecentJobs = %+v, want the finished job", status.RecentJobs)
	}
}

func TestStatusViewEmptyAndHistoryError(t *testing.T) {
	tests := []struct {
		name string
		hist Historian
	}{
		{"nil historian", nil},
		{"history error", &fakeHistorian{err: errors.New("store closed")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(&fakeLister{}, tt.hist)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			var status Status
			if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
				t.Fatalf("decode status: %v", err)
			}
			// Empty sections render as [], never null.
			if status.ActiveJobs == nil || status.RecentJobs == nil {
				t.Errorf("status sections = %v / %v, want empty slices", status.ActiveJobs, status.RecentJobs)
			}
		})
	}
}

func TestNewServerTimeouts(t *testing.T) {
	srv := NewServer("127.0.0.1:0", &fakeLister{}, nil)
	if srv.ReadHeaderTimeout == 0 || srv.WriteTimeout == 0 {
		t.Error("server is missing read/write timeouts")
	}
	if srv.Addr != "127.0.0.1:0" {
		t.Errorf("Addr = %q, want 127.0.0.1:0", srv.Addr)
	}
}
