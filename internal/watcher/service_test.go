package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestServiceReportsWritesToWatchedFileOnly(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "catalog.yaml")
	other := filepath.Join(dir, "other.yaml")
	if err := os.WriteFile(watched, []byte("instructions: a\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	changes := make(chan string, 8)
	service, err := New([]string{watched}, slog.New(slog.NewTextHandler(io.Discard, nil)), func(_ context.Context, path string) {
		changes <- path
	})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Start(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.After(3 * time.Second)
	for {
		if err := os.WriteFile(other, []byte("x"), 0o644); err != nil {
			t.Fatalf("write other file: %v", err)
		}
		if err := os.WriteFile(watched, []byte("instructions: b\n"), 0o644); err != nil {
			t.Fatalf("write watched file: %v", err)
		}
		select {
		case path := <-changes:
			if path != watched {
				t.Fatalf("unexpected change path: %s", path)
			}
			return
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("expected change notification")
		}
	}
}
