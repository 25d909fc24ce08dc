// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

package backup

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/beloureiro/inlocker/internal/crypt"
	"github.com/beloureiro/inlocker/internal/manifest"
	"github.com/beloureiro/inlocker/internal/progress"
)

// testEnv holds the directories and engine shared by engine-level tests.
type testEnv struct {
	srcDir     string
	destDir    string
	restoreDir string
	store      *manifest.FileStore
	engine     *Engine
}

// newTestEnv creates a source, destination, and restore directory under
// one temp root, plus an engine that uses fast key-derivation parameters
// so encrypted tests do not pay the production KDF cost.
func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	root := t.TempDir()
	env := &testEnv{
		srcDir:     filepath.Join(root, "source"),
		destDir:    filepath.Join(root, "backups"),
		restoreDir: filepath.Join(root, "restore"),
		store:      manifest.NewFileStore(),
	}
	for _, dir := range []string{env.srcDir, env.destDir, env.restoreDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}
	env.engine = New(env.store, append([]Option{WithKDFParams(testKDFParams)}, opts...)...)
	return env
}

// testKDFParams returns deliberately weak Argon2id parameters. Tests
// exercise the derivation path, not its cost.
func testKDFParams() (crypt.Params, error) {
	return crypt.Params{
		Time:        1,
		MemoryKiB:   8,
		Threads:     1,
		Salt:        []byte("0123456789abcdef"),
		NoncePrefix: []byte{0x01, 0x02, 0x03, 0x04},
	}, nil
}

// target returns a target wired to the environment's directories.
func (e *testEnv) target(name string, mode Mode, typ Type) Target {
	return Target{
		Name:           name,
		SourceDir:      e.srcDir,
		DestinationDir: e.destDir,
		Mode:           mode,
		Type:           typ,
	}
}

// writeSource writes a file under the source tree, creating parents.
func (e *testEnv) writeSource(t *testing.T, rel, content string) string {
	t.Helper()
	return writeTestFile(t, e.srcDir, rel, []byte(content), 0o644)
}

// mustBackup runs a backup expected to complete.
func (e *testEnv) mustBackup(t *testing.T, target Target, opts BackupOptions) *Job {
	t.Helper()
	job, err := e.engine.RunBackup(context.Background(), target, opts)
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}
	if job.Status != StatusCompleted {
		t.Fatalf("expected status %s, got %s", StatusCompleted, job.Status)
	}
	return job
}

// mustRestore runs a restore expected to complete.
func (e *testEnv) mustRestore(t *testing.T, req RestoreRequest) *RestoreResult {
	t.Helper()
	res, err := e.engine.RunRestore(context.Background(), req)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	return res
}

// writeTestFile writes a file under dir, creating parents, and returns
// its absolute path.
func writeTestFile(t *testing.T, dir, rel string, content []byte, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create parents for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, content, mode); err != nil {
		t.Fatalf("failed to write %s: %v", rel, err)
	}
	return path
}

// setMtime pins a path's modification time.
func setMtime(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("failed to set mtime on %s: %v", path, err)
	}
}

// readTree maps every entry under root to a comparable description:
// file content for regular files, "-> target" for symlinks, "<dir>" for
// directories. Keys are slash-separated relative paths.
func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	tree := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel := relTo(root, path)
		switch {
		case d.IsDir():
			tree[rel] = "<dir>"
		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			tree[rel] = "-> " + target
		default:
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			tree[rel] = string(data)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("failed to read tree %s: %v", root, err)
	}
	return tree
}

// compareTrees fails the test when two trees differ.
func compareTrees(t *testing.T, want, got map[string]string) {
	t.Helper()
	for rel, w := range want {
		g, ok := got[rel]
		if !ok {
			t.Errorf("missing entry %q", rel)
			continue
		}
		if g != w {
			t.Errorf("entry %q: expected %q, got %q", rel, w, g)
		}
	}
	for rel := range got {
		if _, ok := want[rel]; !ok {
			t.Errorf("unexpected entry %q", rel)
		}
	}
}

// regularFiles lists the relative paths of regular files under root.
func regularFiles(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, relTo(root, path))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("failed to list files under %s: %v", root, err)
	}
	return files
}

// recordSink captures progress events for assertions.
type recordSink struct {
	mu     sync.Mutex
	events []progress.Event
}

func (s *recordSink) Emit(ev progress.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

// stageCounts returns how many events each stage emitted.
func (s *recordSink) stageCounts() map[progress.Stage]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[progress.Stage]int)
	for _, ev := range s.events {
		counts[ev.Stage]++
	}
	return counts
}

// last returns the most recent event, or a zero event.
func (s *recordSink) last() progress.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return progress.Event{}
	}
	return s.events[len(s.events)-1]
}
