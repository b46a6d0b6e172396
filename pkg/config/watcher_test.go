package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeConfigFile(t, validConfig)

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	updated := []byte(`
server:
  listen_address: "127.0.0.1:9000"
budget:
  daily: 555
  monthly: 5000
`)
	if err := os.WriteFile(path, updated, 0o644); err != nil {
		t.Fatalf("writing updated config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Budget.Daily != 555 {
			t.Errorf("Expected reloaded daily budget 555, got %v", cfg.Budget.Daily)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Expected reload callback within 3s")
	}
}

func TestWatcher_InvalidConfigKeepsPrevious(t *testing.T) {
	path := writeConfigFile(t, validConfig)

	var calls atomic.Int32
	w, err := NewWatcher(path, func(cfg *Config) { calls.Add(1) })
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	// A broken config must not reach the callback
	if err := os.WriteFile(path, []byte("budget:\n  daily: -1\n"), 0o644); err != nil {
		t.Fatalf("writing broken config: %v", err)
	}

	if waitFor(t, 500*time.Millisecond, func() bool { return calls.Load() > 0 }) {
		t.Error("Expected no callback for invalid configuration")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	path := writeConfigFile(t, validConfig)

	var calls atomic.Int32
	w, err := NewWatcher(path, func(cfg *Config) { calls.Add(1) })
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	other := filepath.Join(filepath.Dir(path), "unrelated.txt")
	if err := os.WriteFile(other, []byte("noise"), 0o644); err != nil {
		t.Fatalf("writing unrelated file: %v", err)
	}

	if waitFor(t, 300*time.Millisecond, func() bool { return calls.Load() > 0 }) {
		t.Error("Expected no callback for unrelated file writes")
	}
}

func TestWatcher_StartTwice(t *testing.T) {
	path := writeConfigFile(t, validConfig)

	w, err := NewWatcher(path, func(cfg *Config) {})
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if err := w.Start(ctx); err == nil {
		t.Error("Expected error starting an already running watcher")
	}
}

func TestWatcher_StopBeforeStart(t *testing.T) {
	w, err := NewWatcher(writeConfigFile(t, validConfig), func(cfg *Config) {})
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Expected Stop before Start to be a no-op, got %v", err)
	}
}
