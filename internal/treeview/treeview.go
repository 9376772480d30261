// Package treeview turns a path index into the ordered, expandable rows of
// the explorer tree. It never mutates the index; display order is computed
// on every call and is independent of storage order.
package treeview

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/fruitsalade/filesurf/internal/pathindex"
	"github.com/fruitsalade/filesurf/pkg/models"
)

// Layout constants, in panel width units.
const (
	IndentStep      = 12
	FileExtraIndent = 16
	NameReserve     = 50
	UnitsPerCell    = 8
)

// Ellipsis marks a truncated name.
const Ellipsis = "…"

// DefaultExpandedNames are folder names expanded when a view is created.
var DefaultExpandedNames = []string{"src"}

// Options configures a View.
type Options struct {
	// ExpandNames lists folder names expanded initially, in addition to the
	// root. Nil means DefaultExpandedNames.
	ExpandNames []string
	// Language selects the collation used to order names. Zero means English.
	Language language.Tag
}

// Row is one visible line of the tree.
type Row struct {
	Path     string          `json:"path"`
	Name     string          `json:"name"`
	Display  string          `json:"display"`
	Type     models.NodeType `json:"type"`
	Level    int             `json:"level"`
	Indent   int             `json:"indent"`
	Expanded bool            `json:"expanded,omitempty"`
	Selected bool            `json:"selected,omitempty"`
}

// Action reports what a selection did.
type Action int

const (
	ActionNone Action = iota
	ActionToggled
	ActionFileSelected
)

// View holds expansion state. It is not safe for concurrent use.
type View struct {
	expanded map[string]struct{}
	collator *collate.Collator
}

// New creates a view whose expanded set is the root plus every folder named
// in opts.ExpandNames.
func New(idx *pathindex.Index, opts Options) *View {
	names := opts.ExpandNames
	if names == nil {
		names = DefaultExpandedNames
	}
	tag := opts.Language
	if tag == language.Und {
		tag = language.English
	}
	v := &View{
		expanded: make(map[string]struct{}),
		collator: collate.New(tag),
	}
	if root := idx.Root(); root != nil {
		v.expanded[root.Path] = struct{}{}
	}
	idx.Range(func(e *pathindex.Entry) bool {
		if e.IsFolder() && slices.Contains(names, e.Name) {
			v.expanded[e.Path] = struct{}{}
		}
		return true
	})
	return v
}

// IsExpanded reports whether path is expanded.
func (v *View) IsExpanded(path string) bool {
	_, ok := v.expanded[path]
	return ok
}

// Expanded returns the expanded paths, sorted.
func (v *View) Expanded() []string {
	out := make([]string, 0, len(v.expanded))
	for p := range v.expanded {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Toggle flips the expansion of a folder. Unknown paths and files are ignored.
func (v *View) Toggle(idx *pathindex.Index, path string) bool {
	e, ok := idx.Lookup(path)
	if !ok || !e.IsFolder() {
		return false
	}
	if v.IsExpanded(path) {
		delete(v.expanded, path)
	} else {
		v.expanded[path] = struct{}{}
	}
	return true
}

// ExpandAll expands every folder in idx.
func (v *View) ExpandAll(idx *pathindex.Index) {
	idx.Range(func(e *pathindex.Entry) bool {
		if e.IsFolder() {
			v.expanded[e.Path] = struct{}{}
		}
		return true
	})
}

// Prune drops expansion state for paths no longer in idx.
func (v *View) Prune(idx *pathindex.Index) {
	for p := range v.expanded {
		if e, ok := idx.Lookup(p); !ok || !e.IsFolder() {
			delete(v.expanded, p)
		}
	}
}

// Select applies a click on path: folders toggle, files are reported as a
// selection and leave expansion alone.
func (v *View) Select(idx *pathindex.Index, path string) Action {
	e, ok := idx.Lookup(path)
	switch {
	case !ok:
		return ActionNone
	case e.IsFolder():
		v.Toggle(idx, path)
		return ActionToggled
	default:
		return ActionFileSelected
	}
}

// Indent returns the left padding for an entry at level.
func Indent(level int, typ models.NodeType) int {
	pad := level * IndentStep
	if typ != models.TypeFolder {
		pad += FileExtraIndent
	}
	return pad
}

// Truncate shortens name to fit the panel width left after indent.
func Truncate(name string, panelWidth, indent int) string {
	cells := (panelWidth - indent - NameReserve) / UnitsPerCell
	if cells < 1 {
		cells = 1
	}
	return runewidth.Truncate(name, cells, Ellipsis)
}

// compare orders folders before files, then names by collation.
func (v *View) compare(a, b *pathindex.Entry) int {
	if a.IsFolder() != b.IsFolder() {
		if a.IsFolder() {
			return -1
		}
		return 1
	}
	if c := v.collator.CompareString(a.Name, b.Name); c != 0 {
		return c
	}
	return cmp.Compare(a.Path, b.Path)
}

// Rows returns the visible rows of idx in display order. selected marks the
// row of the selected file; panelWidth drives name truncation.
func (v *View) Rows(idx *pathindex.Index, selected string, panelWidth int) []Row {
	byParent := make(map[string][]*pathindex.Entry)
	var roots []*pathindex.Entry
	idx.Range(func(e *pathindex.Entry) bool {
		if e.IsRoot() {
			roots = append(roots, e)
		} else {
			byParent[e.ParentPath] = append(byParent[e.ParentPath], e)
		}
		return true
	})

	var rows []Row
	var walk func(entries []*pathindex.Entry, level int)
	walk = func(entries []*pathindex.Entry, level int) {
		slices.SortFunc(entries, v.compare)
		for _, e := range entries {
			indent := Indent(level, e.Type)
			expanded := e.IsFolder() && v.IsExpanded(e.Path)
			rows = append(rows, Row{
				Path:     e.Path,
				Name:     e.Name,
				Display:  Truncate(e.Name, panelWidth, indent),
				Type:     e.Type,
				Level:    level,
				Indent:   indent,
				Expanded: expanded,
				Selected: e.Path == selected,
			})
			if expanded {
				walk(byParent[e.Path], level+1)
			}
		}
	}
	walk(roots, 0)
	return rows
}

// Render writes rows as indented text, one per line.
func Render(w io.Writer, rows []Row) error {
	for _, r := range rows {
		var b strings.Builder
		if r.Selected {
			b.WriteString("> ")
		} else {
			b.WriteString("  ")
		}
		b.WriteString(strings.Repeat("  ", r.Level))
		if r.Type == models.TypeFolder {
			if r.Expanded {
				b.WriteString("▾ ")
			} else {
				b.WriteString("▸ ")
			}
			b.WriteString(r.Display)
			b.WriteString("/")
		} else {
			b.WriteString("  ")
			b.WriteString(r.Display)
		}
		if _, err := fmt.Fprintln(w, b.String()); err != nil {
			return err
		}
	}
	return nil
}
