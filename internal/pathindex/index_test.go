package pathindex

import (
	"errors"
	"slices"
	"testing"

	"github.com/fruitsalade/filesurf/pkg/models"
	"github.com/fruitsalade/filesurf/pkg/tree"
)

func projTree() *models.FileNode {
	return models.Folder("proj",
		models.File("x.ts", "let a=1"),
	)
}

func deepTree() *models.FileNode {
	return models.Folder("a",
		models.Folder("b",
			models.File("one.go", "package b"),
			models.Folder("c",
				models.File("two.go", "package c"),
			),
		),
		models.Folder("bc",
			models.File("three.go", "package bc"),
		),
		models.File("README.md", "# a"),
	)
}

func mustBuild(t *testing.T, root *models.FileNode) *Index {
	t.Helper()
	idx, err := Build(root)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := idx.Check(); err != nil {
		t.Fatalf("Check after Build: %v", err)
	}
	return idx
}

func TestBuildOneEntryPerNode(t *testing.T) {
	for _, root := range []*models.FileNode{projTree(), deepTree(), models.Folder("solo")} {
		idx := mustBuild(t, root)
		if idx.Len() != tree.CountNodes(root) {
			t.Errorf("%s: Len = %d, want %d", root.Name, idx.Len(), tree.CountNodes(root))
		}
		idx.Range(func(e *Entry) bool {
			if e.IsRoot() {
				if e.Path != root.Name {
					t.Errorf("root path = %q, want %q", e.Path, root.Name)
				}
				return true
			}
			if _, ok := idx.Lookup(e.ParentPath); !ok {
				t.Errorf("%q: parent %q missing", e.Path, e.ParentPath)
			}
			return true
		})
	}
}

func TestBuildScenario(t *testing.T) {
	idx := mustBuild(t, projTree())

	want := []string{"proj", "proj/x.ts"}
	if got := idx.Paths(); !slices.Equal(got, want) {
		t.Fatalf("Paths = %v, want %v", got, want)
	}

	next, err := idx.Update("proj/x.ts", "let a=2")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	e, ok := next.Lookup("proj/x.ts")
	if !ok || e.Content != "let a=2" {
		t.Fatalf("proj/x.ts = %+v, want content let a=2", e)
	}
}

func TestBuildCopiesInput(t *testing.T) {
	root := projTree()
	idx := mustBuild(t, root)

	root.Children[0].Content = "mutated"
	root.Children = append(root.Children, models.File("late.ts", ""))

	e, _ := idx.Lookup("proj/x.ts")
	if e.Content != "let a=1" {
		t.Errorf("content = %q, want original", e.Content)
	}
	if _, ok := idx.Lookup("proj/late.ts"); ok {
		t.Error("late addition to input tree leaked into index")
	}
}

func TestBuildRejectsInvalid(t *testing.T) {
	if _, err := Build(models.Folder("p", models.File("x", ""), models.File("x", ""))); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate siblings err = %v, want ErrDuplicate", err)
	}
	if _, err := Build(nil); !errors.Is(err, ErrInvalidNode) {
		t.Errorf("nil root err = %v, want ErrInvalidNode", err)
	}
}

func TestAddNestedFolder(t *testing.T) {
	idx := mustBuild(t, projTree())

	next, err := idx.Add("proj", models.Folder("y",
		models.File("z.ts", "export {}"),
		models.Folder("deeper", models.File("w.ts", "")),
	))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := next.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	}
	for _, path := range []string{"proj/y", "proj/y/z.ts", "proj/y/deeper", "proj/y/deeper/w.ts"} {
		if _, ok := next.Lookup(path); !ok {
			t.Errorf("missing %q after Add", path)
		}
	}
	root, _ := next.Lookup("proj")
	if !slices.Equal(root.Children, []string{"x.ts", "y"}) {
		t.Errorf("root children = %v", root.Children)
	}

	// Receiver untouched
	if idx.Len() != 2 {
		t.Errorf("original index Len = %d, want 2", idx.Len())
	}
	orig, _ := idx.Lookup("proj")
	if len(orig.Children) != 1 {
		t.Errorf("original root children = %v", orig.Children)
	}
	if next.Revision() != idx.Revision()+1 {
		t.Errorf("revision = %d, want %d", next.Revision(), idx.Revision()+1)
	}
}

func TestAddErrors(t *testing.T) {
	idx := mustBuild(t, projTree())

	tests := []struct {
		name   string
		parent string
		node   *models.FileNode
		want   error
	}{
		{"missing parent", "nope", models.File("a", ""), ErrNotFound},
		{"file parent", "proj/x.ts", models.File("a", ""), ErrNotFolder},
		{"duplicate", "proj", models.File("x.ts", ""), ErrDuplicate},
		{"invalid name", "proj", models.File("a/b", ""), ErrInvalidNode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := idx.Add(tt.parent, tt.node)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if next != idx {
				t.Error("failed Add must return the receiver")
			}
		})
	}
}

func TestAddDeleteRoundTrip(t *testing.T) {
	idx := mustBuild(t, deepTree())
	before := slices.Sorted(slices.Values(idx.Paths()))

	added, err := idx.Add("a/b", models.Folder("new", models.File("n.txt", "")))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	removed, err := added.Delete("a/b/new")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := removed.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	}

	after := slices.Sorted(slices.Values(removed.Paths()))
	if !slices.Equal(before, after) {
		t.Errorf("keys after round trip = %v, want %v", after, before)
	}
	b, _ := removed.Lookup("a/b")
	if !slices.Equal(b.Children, []string{"one.go", "c"}) {
		t.Errorf("a/b children = %v", b.Children)
	}
}

func TestUpdateTouchesOnlyTarget(t *testing.T) {
	idx := mustBuild(t, deepTree())

	next, err := idx.Update("a/b/one.go", "package b // edited")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	for _, path := range idx.Paths() {
		oldE, _ := idx.Lookup(path)
		newE, _ := next.Lookup(path)
		if path == "a/b/one.go" {
			if newE.Content != "package b // edited" || oldE.Content != "package b" {
				t.Errorf("target contents old=%q new=%q", oldE.Content, newE.Content)
			}
			if newE.ID != oldE.ID || newE.Path != oldE.Path || newE.ParentPath != oldE.ParentPath {
				t.Error("Update changed identity fields")
			}
			continue
		}
		if oldE != newE {
			t.Errorf("%q: entry replaced by Update", path)
		}
	}
	if !slices.Equal(idx.Paths(), next.Paths()) {
		t.Error("Update changed key order")
	}
}

func TestUpdateErrors(t *testing.T) {
	idx := mustBuild(t, deepTree())
	if _, err := idx.Update("a/missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}
	if next, err := idx.Update("a/b", "x"); !errors.Is(err, ErrNotFile) || next != idx {
		t.Errorf("folder update err = %v (same=%v)", err, next == idx)
	}
}

func TestDeleteFolderUsesSeparator(t *testing.T) {
	idx := mustBuild(t, deepTree())

	next, err := idx.Delete("a/b")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := next.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	}
	for _, gone := range []string{"a/b", "a/b/one.go", "a/b/c", "a/b/c/two.go"} {
		if _, ok := next.Lookup(gone); ok {
			t.Errorf("%q survived folder delete", gone)
		}
	}
	for _, kept := range []string{"a", "a/bc", "a/bc/three.go", "a/README.md"} {
		if _, ok := next.Lookup(kept); !ok {
			t.Errorf("%q removed by folder delete", kept)
		}
	}
	root, _ := next.Lookup("a")
	if !slices.Equal(root.Children, []string{"bc", "README.md"}) {
		t.Errorf("root children = %v", root.Children)
	}
}

func TestDeleteMissing(t *testing.T) {
	idx := mustBuild(t, deepTree())
	next, err := idx.Delete("a/zzz")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if next != idx {
		t.Error("failed Delete must return the receiver")
	}
}

func TestDeleteRoot(t *testing.T) {
	idx := mustBuild(t, deepTree())
	next, err := idx.Delete("a")
	if err != nil {
		t.Fatalf("Delete root: %v", err)
	}
	if next.Len() != 0 || next.Root() != nil || next.Tree() != nil {
		t.Errorf("index not empty after root delete: len=%d", next.Len())
	}
}

func TestPathReuseAfterDelete(t *testing.T) {
	idx := mustBuild(t, projTree())
	old, _ := idx.Lookup("proj/x.ts")

	gone, err := idx.Delete("proj/x.ts")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	back, err := gone.Add("proj", models.File("x.ts", "again"))
	if err != nil {
		t.Fatalf("re-Add: %v", err)
	}
	e, _ := back.Lookup("proj/x.ts")
	if e.Content != "again" {
		t.Errorf("content = %q", e.Content)
	}
	if e.ID == old.ID {
		t.Error("re-added path kept the old entry ID")
	}
}

func TestConcurrentDerivationsDoNotShareOrder(t *testing.T) {
	idx := mustBuild(t, deepTree())
	left, err := idx.Add("a", models.File("left.txt", ""))
	if err != nil {
		t.Fatal(err)
	}
	right, err := idx.Add("a", models.File("right.txt", ""))
	if err != nil {
		t.Fatal(err)
	}
	if p := left.Paths(); p[len(p)-1] != "a/left.txt" {
		t.Errorf("left last path = %q", p[len(p)-1])
	}
	if p := right.Paths(); p[len(p)-1] != "a/right.txt" {
		t.Errorf("right last path = %q", p[len(p)-1])
	}
}

func TestTreeRoundTrip(t *testing.T) {
	root := deepTree()
	idx := mustBuild(t, root)

	rebuilt := idx.Tree()
	if tree.CountNodes(rebuilt) != tree.CountNodes(root) {
		t.Fatalf("rebuilt has %d nodes, want %d", tree.CountNodes(rebuilt), tree.CountNodes(root))
	}
	if n := tree.Find(rebuilt, "a/b/c/two.go"); n == nil || n.Content != "package c" {
		t.Errorf("a/b/c/two.go = %+v", n)
	}
	sub, ok := idx.Subtree("a/b")
	if !ok || tree.CountNodes(sub) != 4 {
		t.Errorf("Subtree(a/b) = %+v", sub)
	}
}

func TestFilesAndChildren(t *testing.T) {
	idx := mustBuild(t, deepTree())

	var files []string
	for _, e := range idx.Files() {
		files = append(files, e.Path)
	}
	want := []string{"a/b/one.go", "a/b/c/two.go", "a/bc/three.go", "a/README.md"}
	if !slices.Equal(files, want) {
		t.Errorf("Files = %v, want %v", files, want)
	}

	var names []string
	for _, e := range idx.Children("a") {
		names = append(names, e.Name)
	}
	if !slices.Equal(names, []string{"b", "bc", "README.md"}) {
		t.Errorf("Children(a) = %v", names)
	}
	if idx.Children("a/README.md") != nil {
		t.Error("Children of a file should be nil")
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrNotFound, "invalid-target"},
		{ErrNotFile, "type-mismatch"},
		{ErrNotFolder, "type-mismatch"},
		{ErrDuplicate, "duplicate"},
		{ErrInvalidNode, "invalid-node"},
		{errors.New("other"), "unknown"},
	}
	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
