package treeview

import (
	"bytes"
	"slices"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"github.com/fruitsalade/filesurf/internal/pathindex"
	"github.com/fruitsalade/filesurf/pkg/models"
)

func buildIndex(t *testing.T) *pathindex.Index {
	t.Helper()
	idx, err := pathindex.Build(models.Folder("project",
		models.File("Zeta.md", "# z"),
		models.File("alpha.ts", ""),
		models.Folder("src",
			models.File("main.go", ""),
			models.Folder("lib", models.File("util.go", "")),
		),
		models.Folder("docs", models.File("guide.md", "")),
		models.File("beta.go", ""),
	))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return idx
}

func paths(rows []Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Path)
	}
	return out
}

func TestDefaultExpansion(t *testing.T) {
	idx := buildIndex(t)
	v := New(idx, Options{})

	want := []string{"project", "project/src"}
	if got := v.Expanded(); !slices.Equal(got, want) {
		t.Errorf("Expanded = %v, want %v", got, want)
	}

	v = New(idx, Options{ExpandNames: []string{}})
	if got := v.Expanded(); !slices.Equal(got, []string{"project"}) {
		t.Errorf("Expanded with no names = %v", got)
	}
}

func TestRowsOrderFoldersFirstThenCollated(t *testing.T) {
	idx := buildIndex(t)
	v := New(idx, Options{})

	got := paths(v.Rows(idx, "", 250))
	want := []string{
		"project",
		"project/docs",
		"project/src",
		"project/src/lib",
		"project/src/main.go",
		"project/alpha.ts",
		"project/beta.go",
		"project/Zeta.md",
	}
	if !slices.Equal(got, want) {
		t.Errorf("Rows =\n%v\nwant\n%v", got, want)
	}

	// Storage order untouched
	root, _ := idx.Lookup("project")
	if !slices.Equal(root.Children, []string{"Zeta.md", "alpha.ts", "src", "docs", "beta.go"}) {
		t.Errorf("storage order changed: %v", root.Children)
	}
}

func TestSelectTogglesFoldersOnly(t *testing.T) {
	idx := buildIndex(t)
	v := New(idx, Options{})

	if a := v.Select(idx, "project/docs"); a != ActionToggled {
		t.Fatalf("Select folder = %v, want ActionToggled", a)
	}
	if !v.IsExpanded("project/docs") {
		t.Error("docs should be expanded")
	}
	before := v.Expanded()

	if a := v.Select(idx, "project/docs/guide.md"); a != ActionFileSelected {
		t.Fatalf("Select file = %v, want ActionFileSelected", a)
	}
	if !slices.Equal(before, v.Expanded()) {
		t.Error("selecting a file changed expansion")
	}

	if a := v.Select(idx, "project/docs"); a != ActionToggled || v.IsExpanded("project/docs") {
		t.Error("second select should collapse docs")
	}
	if a := v.Select(idx, "project/missing"); a != ActionNone {
		t.Errorf("Select missing = %v", a)
	}
}

func TestCollapsedRootHidesChildren(t *testing.T) {
	idx := buildIndex(t)
	v := New(idx, Options{})
	v.Toggle(idx, "project")

	rows := v.Rows(idx, "", 250)
	if len(rows) != 1 || rows[0].Path != "project" || rows[0].Expanded {
		t.Errorf("rows = %+v", rows)
	}
}

func TestIndentAndSelection(t *testing.T) {
	idx := buildIndex(t)
	v := New(idx, Options{})
	rows := v.Rows(idx, "project/src/main.go", 250)

	for _, r := range rows {
		want := Indent(r.Level, r.Type)
		if r.Indent != want {
			t.Errorf("%s indent = %d, want %d", r.Path, r.Indent, want)
		}
		if r.Selected != (r.Path == "project/src/main.go") {
			t.Errorf("%s selected = %v", r.Path, r.Selected)
		}
	}

	if got := Indent(2, models.TypeFile); got != 2*IndentStep+FileExtraIndent {
		t.Errorf("Indent(2, file) = %d", got)
	}
	if got := Indent(2, models.TypeFolder); got != 2*IndentStep {
		t.Errorf("Indent(2, folder) = %d", got)
	}
}

func TestTruncate(t *testing.T) {
	long := "a-very-long-file-name-that-will-not-fit.ts"

	if got := Truncate("short.go", 500, 0); got != "short.go" {
		t.Errorf("Truncate short = %q", got)
	}

	got := Truncate(long, 150, 16)
	cells := (150 - 16 - NameReserve) / UnitsPerCell
	if !strings.HasSuffix(got, Ellipsis) {
		t.Errorf("Truncate(%q) = %q, want ellipsis", long, got)
	}
	if w := runewidth.StringWidth(got); w > cells {
		t.Errorf("width %d exceeds %d cells", w, cells)
	}

	narrow := Truncate(long, 100, 90)
	if runewidth.StringWidth(narrow) > 1 {
		t.Errorf("narrow truncation = %q", narrow)
	}

	// Wider panels show more of the name.
	if len(Truncate(long, 300, 0)) <= len(Truncate(long, 150, 0)) {
		t.Error("wider panel should show more characters")
	}
}

func TestPrune(t *testing.T) {
	idx := buildIndex(t)
	v := New(idx, Options{})
	next, err := idx.Delete("project/src")
	if err != nil {
		t.Fatal(err)
	}
	v.Prune(next)
	if v.IsExpanded("project/src") {
		t.Error("pruned path still expanded")
	}
	if !v.IsExpanded("project") {
		t.Error("root lost expansion")
	}
}

func TestRender(t *testing.T) {
	idx := buildIndex(t)
	v := New(idx, Options{})
	var buf bytes.Buffer
	if err := Render(&buf, v.Rows(idx, "project/beta.go", 250)); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"▾ project/", "▸ docs/", "▾ src/", "> ", "beta.go"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "guide.md") {
		t.Errorf("collapsed docs leaked children:\n%s", out)
	}
}
