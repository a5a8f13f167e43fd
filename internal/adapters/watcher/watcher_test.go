package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestFsnotifyOpToOperation(t *testing.T) {
	tests := []struct {
		name     string
		op       fsnotify.Op
		expected Operation
	}{
		{"remove", fsnotify.Remove, OpDelete},
		{"rename", fsnotify.Rename, OpDelete},
		{"create", fsnotify.Create, OpCreate},
		{"write", fsnotify.Write, OpModify},
		{"chmod", fsnotify.Chmod, OpModify},
		{"remove over write", fsnotify.Remove | fsnotify.Write, OpDelete},
		{"rename over create", fsnotify.Rename | fsnotify.Create, OpDelete},
		{"create over write", fsnotify.Create | fsnotify.Write, OpCreate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fsnotifyOpToOperation(tt.op); got != tt.expected {
				t.Errorf("fsnotifyOpToOperation(%v) = %v, want %v", tt.op, got, tt.expected)
			}
		})
	}
}

func TestOperationString(t *testing.T) {
	for op, want := range map[Operation]string{
		OpCreate:      "create",
		OpModify:      "modify",
		OpDelete:      "delete",
		Operation(99): "unknown",
	} {
		if got := op.String(); got != want {
			t.Errorf("Operation(%d).String() = %q, want %q", op, got, want)
		}
	}
}

func TestMergePending(t *testing.T) {
	tests := []struct {
		name     string
		existing Operation
		next     Operation
		want     Operation
	}{
		{"atomic save", OpDelete, OpCreate, OpCreate},
		{"delete wins", OpModify, OpDelete, OpDelete},
		{"modify after create", OpCreate, OpModify, OpCreate},
		{"modify after modify", OpModify, OpModify, OpModify},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &pendingEvent{op: tt.existing}
			mergePending(p, tt.next)
			if p.op != tt.want {
				t.Errorf("op = %v, want %v", p.op, tt.want)
			}
			if p.timestamp.IsZero() {
				t.Error("timestamp not refreshed")
			}
		})
	}
}

func TestSettled(t *testing.T) {
	w := &Watcher{debounce: time.Second, pending: map[string]*pendingEvent{}}
	now := time.Now()
	w.pending["/data/old.csv"] = &pendingEvent{timestamp: now.Add(-2 * time.Second), op: OpModify}
	w.pending["/data/fresh.csv"] = &pendingEvent{timestamp: now, op: OpModify}

	events := w.settled(now)
	if len(events) != 1 || events[0].Path != "/data/old.csv" {
		t.Fatalf("settled() = %v, want only /data/old.csv", events)
	}
	if _, ok := w.pending["/data/fresh.csv"]; !ok {
		t.Error("fresh event should stay pending")
	}
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestWatcherReportsCatalogChanges(t *testing.T) {
	dir := t.TempDir()
	catalog := filepath.Join(dir, "quads.csv")
	if err := os.WriteFile(catalog, []byte("APFONAME\n12345678\n"), 0644); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	w, err := New(Config{Files: []string{catalog}, Debounce: 200 * time.Millisecond}, rec.handle, logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = w.Stop() }()

	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	// Rapid writes settle into one event.
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(catalog, []byte("APFONAME\n12345678\n87654321\n"), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && len(rec.snapshot()) == 0 {
		time.Sleep(50 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	events := rec.snapshot()
	if len(events) != 1 {
		t.Fatalf("events = %v, want exactly one", events)
	}
	if events[0].Path != catalog {
		t.Errorf("Path = %q, want %q", events[0].Path, catalog)
	}
	if events[0].Operation == OpDelete {
		t.Errorf("Operation = %v, want create or modify", events[0].Operation)
	}
}
