package watcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fruitsalade/filesurf/internal/pathindex"
	"github.com/fruitsalade/filesurf/pkg/models"
)

func newStore(t *testing.T) *pathindex.Store {
	t.Helper()
	s, err := pathindex.NewStoreFromTree(models.Folder("proj",
		models.File("a.ts", "a"),
		models.File("b.ts", "b"),
		models.Folder("src", models.File("c.ts", "c")),
	))
	if err != nil {
		t.Fatalf("NewStoreFromTree: %v", err)
	}
	return s
}

func TestTickReportsOneChangePerScan(t *testing.T) {
	s := newStore(t)
	var got []string
	w := New(s, time.Hour, func(path string) { got = append(got, path) })
	w.reset(s.Snapshot())

	if _, ok := w.Tick(); ok {
		t.Fatal("unchanged index reported a change")
	}

	_ = s.UpdateFile("proj/b.ts", "b2")
	_ = s.UpdateFile("proj/src/c.ts", "c2")

	if path, ok := w.Tick(); !ok || path != "proj/b.ts" {
		t.Fatalf("first tick = %q,%v, want proj/b.ts", path, ok)
	}
	if path, ok := w.Tick(); !ok || path != "proj/src/c.ts" {
		t.Fatalf("second tick = %q,%v, want proj/src/c.ts", path, ok)
	}
	if _, ok := w.Tick(); ok {
		t.Fatal("third tick should be quiet")
	}
	if len(got) != 2 || got[0] != "proj/b.ts" || got[1] != "proj/src/c.ts" {
		t.Errorf("handler calls = %v", got)
	}
}

func TestTickAdoptsNewAndPrunesDeleted(t *testing.T) {
	s := newStore(t)
	w := New(s, time.Hour, nil)
	w.reset(s.Snapshot())

	_ = s.AddFile("proj", models.File("new.ts", "fresh"))
	if path, ok := w.Tick(); ok {
		t.Fatalf("new file reported as change: %q", path)
	}

	_ = s.DeleteFile("proj/a.ts")
	_ = s.AddFile("proj", models.File("a.ts", "recreated"))
	if path, ok := w.Tick(); ok {
		t.Fatalf("recreated file reported as change: %q", path)
	}

	_ = s.UpdateFile("proj/new.ts", "edited")
	if path, ok := w.Tick(); !ok || path != "proj/new.ts" {
		t.Fatalf("tick = %q,%v, want proj/new.ts", path, ok)
	}
}

func TestWatcherLoopDetectsChange(t *testing.T) {
	s := newStore(t)
	changes := make(chan string, 4)
	w := New(s, 20*time.Millisecond, func(path string) { changes <- path })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := w.Start(ctx); !errors.Is(err, ErrStarted) {
		t.Errorf("second Start err = %v, want ErrStarted", err)
	}

	_ = s.UpdateFile("proj/a.ts", "a2")

	select {
	case path := <-changes:
		if path != "proj/a.ts" {
			t.Errorf("changed path = %q", path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for change")
	}
}

func TestWakeTriggersImmediateScan(t *testing.T) {
	s := newStore(t)
	changes := make(chan string, 1)
	w := New(s, time.Hour, func(path string) { changes <- path })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	_ = s.UpdateFile("proj/b.ts", "woken")
	w.Wake()

	select {
	case path := <-changes:
		if path != "proj/b.ts" {
			t.Errorf("changed path = %q", path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wake did not trigger a scan")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	w := New(newStore(t), 0, nil)
	if w.interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", w.interval, DefaultInterval)
	}
	w.Stop()
	w.Stop()
}
