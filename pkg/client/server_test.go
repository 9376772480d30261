package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fruitsalade/filesurf/internal/api"
	"github.com/fruitsalade/filesurf/internal/events"
	"github.com/fruitsalade/filesurf/internal/explorer"
	"github.com/fruitsalade/filesurf/internal/pathindex"
	"github.com/fruitsalade/filesurf/pkg/models"
	"github.com/fruitsalade/filesurf/pkg/retry"
)

func serverClient(t *testing.T, root *models.FileNode) (*Client, *pathindex.Store) {
	t.Helper()
	store, err := pathindex.NewStoreFromTree(root)
	if err != nil {
		t.Fatalf("NewStoreFromTree: %v", err)
	}
	srv := api.NewServer(store, events.NewBroadcaster(), explorer.Options{})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	c := New(Config{
		BaseURL:     ts.URL,
		RetryConfig: retry.Config{MaxAttempts: 1, InitialWait: time.Millisecond},
	})
	return c, store
}

func TestReservedCharactersInPaths(t *testing.T) {
	names := []string{"notes#1.md", "100%.md", "what?.md", "a b.md"}
	var files []*models.FileNode
	for _, n := range names {
		files = append(files, models.File(n, "content of "+n))
	}
	c, store := serverClient(t, models.Folder("proj", files...))
	ctx := context.Background()

	for _, n := range names {
		path := "proj/" + n
		resp, err := c.Content(ctx, path)
		if err != nil {
			t.Errorf("Content(%q): %v", path, err)
			continue
		}
		if resp.Path != path || resp.Content != "content of "+n {
			t.Errorf("Content(%q) = %+v", path, resp)
		}
		if _, err := c.Update(ctx, path, "updated"); err != nil {
			t.Errorf("Update(%q): %v", path, err)
		}
		if e, _ := store.Snapshot().Lookup(path); e == nil || e.Content != "updated" {
			t.Errorf("Update(%q) did not reach the entry", path)
		}
	}

	if _, err := c.Add(ctx, "proj", models.Folder("dir#?%")); err != nil {
		t.Fatalf("Add folder: %v", err)
	}
	resp, err := c.Add(ctx, "proj/dir#?%", models.File("x?.go", "package x"))
	if err != nil {
		t.Fatalf("Add file: %v", err)
	}
	if resp.Path != "proj/dir#?%/x?.go" {
		t.Errorf("Add path = %q", resp.Path)
	}

	if err := c.Delete(ctx, "proj/100%.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := store.Snapshot().Lookup("proj/100%.md"); ok {
		t.Error("deleted entry still present")
	}
	if _, ok := store.Snapshot().Lookup("proj/notes#1.md"); !ok {
		t.Error("sibling removed by delete")
	}
}

func TestEscapePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"proj/main.go", "proj/main.go"},
		{"proj/notes#1.md", "proj/notes%231.md"},
		{"proj/100%.md", "proj/100%25.md"},
		{"proj/what?.md", "proj/what%3F.md"},
		{"proj/a b", "proj/a%20b"},
	}
	for _, tt := range tests {
		if got := escapePath(tt.in); got != tt.want {
			t.Errorf("escapePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
