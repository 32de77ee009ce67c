package statedir

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileWatcher_StartsDirty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.json")
	fw := Watch(path)
	defer fw.Close()

	if !fw.IsDirty() {
		t.Fatal("expected a freshly constructed watcher to report dirty")
	}
}

func TestFileWatcher_CleanThenDetectsWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.json")
	if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	fw := Watch(path)
	defer fw.Close()
	fw.Clean()

	if err := os.WriteFile(path, []byte(`{"v":2}`), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if fw.IsDirty() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("expected the watcher to observe the write")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFileWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.json")

	fw := Watch(path)
	defer fw.Close()
	fw.Clean()

	if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0o600); err != nil {
		t.Fatalf("write unrelated file: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if fw.IsDirty() {
		t.Fatal("expected writes to an unrelated file to be ignored")
	}
}
