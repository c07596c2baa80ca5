package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const watcherYAML = `
service:
  http_addr: ":8080"
state:
  backend: memory
`

const watcherYAMLv2 = `
service:
  http_addr: ":9090"
state:
  backend: memory
`

func TestWatcherDetectsChange(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "provision.yaml")
	if err := os.WriteFile(fp, []byte(watcherYAML), 0o644); err != nil {
		t.Fatalf("write initial config: %v", err)
	}

	var called atomic.Int32
	var mu sync.Mutex
	var last ChangeEvent

	src := NewFileSource(fp)
	w := NewWatcher(src, func(evt ChangeEvent) {
		mu.Lock()
		last = evt
		mu.Unlock()
		called.Add(1)
	}, WithWatchDebounce(50*time.Millisecond))

	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(fp, []byte(watcherYAMLv2), 0o644); err != nil {
		t.Fatalf("write updated config: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for called.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for change event")
		case <-time.After(20 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if last.Config == nil || last.Config.Service.HTTPAddr != ":9090" {
		t.Errorf("event carries stale config: %+v", last.Config)
	}
	if last.OldHash == last.NewHash {
		t.Error("hashes must differ on change")
	}
}

func TestWatcherIgnoresUnchangedContent(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "provision.yaml")
	if err := os.WriteFile(fp, []byte(watcherYAML), 0o644); err != nil {
		t.Fatalf("write initial config: %v", err)
	}

	var called atomic.Int32
	w := NewWatcher(NewFileSource(fp), func(ChangeEvent) {
		called.Add(1)
	}, WithWatchDebounce(50*time.Millisecond))

	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	// Rewrite identical bytes; the hash check must swallow the event.
	if err := os.WriteFile(fp, []byte(watcherYAML), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	time.Sleep(300 * time.Millisecond)
	if called.Load() != 0 {
		t.Errorf("expected no change events, got %d", called.Load())
	}
}

func TestWatcherStopIdempotent(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "provision.yaml")
	if err := os.WriteFile(fp, []byte(watcherYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	w := NewWatcher(NewFileSource(fp), func(ChangeEvent) {})
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestFileSourceHash(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "provision.yaml")
	if err := os.WriteFile(fp, []byte(watcherYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	src := NewFileSource(fp)
	h1, err := src.Hash(context.Background())
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if err := os.WriteFile(fp, []byte(watcherYAMLv2), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	h2, err := src.Hash(context.Background())
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h1 == h2 {
		t.Error("hash must change with content")
	}
}
