package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu       sync.Mutex
	ingested []string
	removed  []string
}

func (r *recorder) ingest(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ingested = append(r.ingested, path)
}

func (r *recorder) remove(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, path)
}

func (r *recorder) ingestedPaths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ingested...)
}

func (r *recorder) removedPaths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.removed...)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestWatcherIngestsNewFile(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher([]string{dir}, []string{".txt"}, rec.ingest, rec.remove,
		WithDebounce(50*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "cv.txt")
	if err := os.WriteFile(path, []byte("Jane Smith"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 3*time.Second, func() bool { return len(rec.ingestedPaths()) == 1 })
	if got := rec.ingestedPaths()[0]; got != path {
		t.Errorf("ingested %q, want %q", got, path)
	}
}

func TestWatcherIgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher([]string{dir}, []string{".pdf", ".docx"}, rec.ingest, rec.remove,
		WithDebounce(50*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.tmp"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if got := rec.ingestedPaths(); len(got) != 0 {
		t.Errorf("ingested %v, want none", got)
	}
}

func TestWatcherRemoveCallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cv.txt")
	if err := os.WriteFile(path, []byte("Jane Smith"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w := NewWatcher([]string{dir}, []string{".txt"}, rec.ingest, rec.remove,
		WithDebounce(50*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 3*time.Second, func() bool { return len(rec.removedPaths()) == 1 })
	if got := rec.removedPaths()[0]; got != path {
		t.Errorf("removed %q, want %q", got, path)
	}
}

func TestWatcherCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "intake")
	w := NewWatcher([]string{dir}, nil, nil, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("intake dir not created: %v", err)
	}
}

func TestSyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "skip.tmp"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	rec := &recorder{}
	w := NewWatcher([]string{dir}, []string{".txt"}, rec.ingest, rec.remove)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	w.SyncExistingFiles()
	if got := rec.ingestedPaths(); len(got) != 2 {
		t.Errorf("synced %v, want 2 files", got)
	}
}

func TestAddRemoveDirectory(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	rec := &recorder{}
	w := NewWatcher([]string{dir1}, []string{".txt"}, rec.ingest, rec.remove,
		WithDebounce(50*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.AddDirectory(dir2, false); err != nil {
		t.Fatal(err)
	}
	if got := len(w.Directories()); got != 2 {
		t.Fatalf("directories = %d, want 2", got)
	}
	// Adding the same directory again is a no-op.
	if err := w.AddDirectory(dir2, false); err != nil {
		t.Fatal(err)
	}
	if got := len(w.Directories()); got != 2 {
		t.Fatalf("directories after duplicate add = %d, want 2", got)
	}

	path := filepath.Join(dir2, "cv.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 3*time.Second, func() bool { return len(rec.ingestedPaths()) == 1 })

	if err := w.RemoveDirectory(dir2); err != nil {
		t.Fatal(err)
	}
	if got := len(w.Directories()); got != 1 {
		t.Errorf("directories after remove = %d, want 1", got)
	}
}
