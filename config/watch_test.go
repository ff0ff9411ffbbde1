package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boxfall.yaml")
	if err := os.WriteFile(path, []byte("sim: {bodies: 1}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	// Writes to other files in the directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("sim: {bodies: 2}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-w.Events:
		if got != w.Path() {
			t.Fatalf("event for %q, want %q", got, w.Path())
		}
	case err := <-w.Errors:
		t.Fatalf("watch error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("no event after writing the config")
	}

	cfg, err := Reload(w.Path())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sim.Bodies != 2 {
		t.Fatalf("reload saw %d bodies, want 2", cfg.Sim.Bodies)
	}
}

func TestWatcherWaitsForTruncatedSaves(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boxfall.yaml")
	if err := os.WriteFile(path, []byte("sim: {bodies: 1}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := NewWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := os.Truncate(path, 0); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("sim: {bodies: 50}\n"); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	select {
	case <-w.Events:
	case <-time.After(5 * time.Second):
		t.Fatalf("no event for the save")
	}
	cfg, err := Reload(w.Path())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sim.Bodies != 50 {
		t.Fatalf("reload at event saw %d bodies, want 50", cfg.Sim.Bodies)
	}

	select {
	case <-w.Events:
		t.Fatalf("one save should produce one event")
	case <-time.After(3 * DefaultDebounce):
	}
}

func TestReloadRejectsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boxfall.yaml")
	if err := os.WriteFile(path, []byte("  \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Reload(path); !errors.Is(err, ErrEmpty) {
		t.Fatalf("err = %v, want ErrEmpty", err)
	}
	if _, err := Reload(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for a missing file")
	}
}

func TestWatcherCloseClosesChannels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boxfall.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := NewWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	_ = w.Close()

	select {
	case _, ok := <-w.Events:
		if ok {
			t.Fatalf("unexpected event after close")
		}
	case <-time.After(time.Second):
		t.Fatalf("events channel not closed")
	}
}
