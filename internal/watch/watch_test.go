package watch

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/electwix/tsql2snow/internal/logging"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]string
	notify  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 16)}
}

func (r *recorder) handle(_ context.Context, paths []string) {
	r.mu.Lock()
	r.batches = append(r.batches, paths)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []string
	for _, b := range r.batches {
		all = append(all, b...)
	}
	return all
}

func startWatcher(t *testing.T, dir string, rec *recorder, opts ...Option) {
	t.Helper()
	w, err := New(logging.NewNopLogger(), rec.handle, append([]Option{WithDebounce(20 * time.Millisecond)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Add(dir); err != nil {
		t.Fatalf("Add: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run: %v", err)
		}
	})
}

func waitFor(t *testing.T, rec *recorder, path string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if slices.Contains(rec.seen(), path) {
			return
		}
		select {
		case <-rec.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %s; saw %v", path, rec.seen())
		}
	}
}

func TestWatcherReportsSQLChanges(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	startWatcher(t, dir, rec)

	target := filepath.Join(dir, "q.sql")
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(target, []byte("SELECT 1;"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	waitFor(t, rec, target)
	if slices.Contains(rec.seen(), filepath.Join(dir, "notes.txt")) {
		t.Fatalf("non-sql file was reported: %v", rec.seen())
	}
}

func TestWatcherFilter(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	startWatcher(t, dir, rec, WithFilter(func(path string) bool {
		return IsSQLFile(path) && filepath.Base(path) != "skip.sql"
	}))

	if err := os.WriteFile(filepath.Join(dir, "skip.sql"), []byte("SELECT 1;"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	keep := filepath.Join(dir, "keep.sql")
	if err := os.WriteFile(keep, []byte("SELECT 2;"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	waitFor(t, rec, keep)
	if slices.Contains(rec.seen(), filepath.Join(dir, "skip.sql")) {
		t.Fatalf("filtered file was reported: %v", rec.seen())
	}
}

func TestWatcherNewDirectory(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	startWatcher(t, dir, rec)

	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	target := filepath.Join(sub, "late.sql")
	deadline := time.Now().Add(5 * time.Second)
	for !slices.Contains(rec.seen(), target) {
		// the watch on sub is added asynchronously; keep touching the file
		if err := os.WriteFile(target, []byte("SELECT 3;"), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s; saw %v", target, rec.seen())
		}
		select {
		case <-rec.notify:
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func TestNewRejectsNilHandler(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Fatalf("expected error for nil handler")
	}
}

func TestAddMissingDirectory(t *testing.T) {
	w, err := New(nil, func(context.Context, []string) {})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = w.Close() }()
	if err := w.Add(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}

func TestIsSQLFile(t *testing.T) {
	for path, want := range map[string]bool{
		"a.sql":     true,
		"A.SQL":     true,
		"a.sql.bak": false,
		"a.txt":     false,
		"sql":       false,
	} {
		if got := IsSQLFile(path); got != want {
			t.Errorf("IsSQLFile(%q) = %v, want %v", path, got, want)
		}
	}
}
