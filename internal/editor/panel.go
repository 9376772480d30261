// Package editor holds the tabbed editor panel: open tabs, the active tab,
// per-path buffers and the emphasis pulse shown when a file changes. The text
// editor itself sits behind the Widget interface.
package editor

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/filesurf/internal/logging"
	"github.com/fruitsalade/filesurf/internal/pathindex"
	"github.com/fruitsalade/filesurf/pkg/tree"
)

// DefaultPulse is how long a highlighted buffer stays emphasised.
const DefaultPulse = time.Second

// ErrTabNotOpen is returned when switching to a path without an open tab.
var ErrTabNotOpen = errors.New("tab not open")

// Display is what the widget should currently show.
type Display struct {
	Path     string `json:"path,omitempty"`
	Name     string `json:"name,omitempty"`
	Language string `json:"language,omitempty"`
	Content  string `json:"content"`
	Cursor   int    `json:"cursor"`
	Lines    int    `json:"lines"`
}

// Widget renders the active buffer. Implementations must not call back into
// the Panel.
type Widget interface {
	Show(d Display)
	Emphasize(path string, lines int)
	ClearEmphasis(path string)
	Release()
}

// Tab is one open editor tab.
type Tab struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// Options configures a Panel.
type Options struct {
	// Pulse is the emphasis duration. Zero means DefaultPulse.
	Pulse time.Duration
}

// Panel is safe for concurrent use.
type Panel struct {
	mu          sync.Mutex
	tabs        []string
	active      string
	highlighted string
	buffers     map[string]*buffer
	widget      Widget
	pulse       time.Duration
	timer       *time.Timer
	emphasized  string
	released    bool
	log         *zap.Logger
}

// NewPanel creates a panel driving widget. A nil widget discards output.
func NewPanel(widget Widget, opts Options) *Panel {
	if widget == nil {
		widget = nopWidget{}
	}
	pulse := opts.Pulse
	if pulse <= 0 {
		pulse = DefaultPulse
	}
	return &Panel{
		buffers: make(map[string]*buffer),
		widget:  widget,
		pulse:   pulse,
		log:     logging.Named("editor"),
	}
}

// SelectFile opens path as a tab if needed and makes it active. Folders and
// unknown paths are ignored.
func (p *Panel) SelectFile(idx *pathindex.Index, path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := idx.Lookup(path)
	if !ok || !e.IsFile() {
		return false
	}
	if !slices.Contains(p.tabs, path) {
		p.tabs = append(p.tabs, path)
	}
	p.activate(idx, path)
	return true
}

// ChangeTab activates an already open tab.
func (p *Panel) ChangeTab(idx *pathindex.Index, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !slices.Contains(p.tabs, path) {
		return fmt.Errorf("%w: %s", ErrTabNotOpen, path)
	}
	p.activate(idx, path)
	return nil
}

// CloseTab removes the tab for path. When it was active the last remaining
// tab becomes active, or none. It reports whether a tab was closed.
func (p *Panel) CloseTab(idx *pathindex.Index, path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := slices.Index(p.tabs, path)
	if i < 0 {
		return false
	}
	p.tabs = slices.Delete(p.tabs, i, i+1)
	if p.active == path {
		p.activate(idx, p.lastTab())
	}
	return true
}

// Tabs returns the open tabs in opening order.
func (p *Panel) Tabs() []Tab {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Tab, 0, len(p.tabs))
	for _, path := range p.tabs {
		name := path
		if b, ok := p.buffers[path]; ok {
			name = tree.BaseName(b.path)
		}
		out = append(out, Tab{Path: path, Name: name})
	}
	return out
}

// Active returns the active tab path, or "" when none is open.
func (p *Panel) Active() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Highlighted returns the highlighted path.
func (p *Panel) Highlighted() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.highlighted
}

// Display returns what the widget shows for the active tab.
func (p *Panel) Display() Display {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.display()
}

// Cursor returns the cursor of the buffer for path.
func (p *Panel) Cursor(path string) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.buffers[path]
	if !ok {
		return 0, false
	}
	return b.Cursor(), true
}

// SetCursor moves the cursor of an open buffer.
func (p *Panel) SetCursor(path string, offset int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.buffers[path]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTabNotOpen, path)
	}
	b.SetCursor(offset)
	return nil
}

// Edit applies an editor-side change to the buffer of an open tab. The host
// is responsible for writing content back to the store.
func (p *Panel) Edit(path, content string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.buffers[path]
	if !ok || !slices.Contains(p.tabs, path) {
		return fmt.Errorf("%w: %s", ErrTabNotOpen, path)
	}
	b.setContent(content)
	return nil
}

// Sync reconciles buffers with idx. Buffers whose stored content changed are
// replaced, buffers and tabs for removed files are dropped.
func (p *Panel) Sync(idx *pathindex.Index) {
	p.mu.Lock()
	defer p.mu.Unlock()

	activeChanged := false
	for path, b := range p.buffers {
		e, ok := idx.Lookup(path)
		if !ok || !e.IsFile() {
			delete(p.buffers, path)
			continue
		}
		if b.content != e.Content {
			b.setContent(e.Content)
			if path == p.active {
				activeChanged = true
			}
		}
	}

	kept := p.tabs[:0]
	for _, path := range p.tabs {
		if e, ok := idx.Lookup(path); ok && e.IsFile() {
			kept = append(kept, path)
		}
	}
	p.tabs = kept

	if p.active != "" && !slices.Contains(p.tabs, p.active) {
		p.log.Debug("active tab removed", zap.String("path", p.active))
		p.activate(idx, p.lastTab())
		return
	}
	if activeChanged {
		p.widget.Show(p.display())
	}
}

// SetHighlighted marks path as recently changed. When it is the active tab
// the whole buffer is emphasised for the pulse duration.
func (p *Panel) SetHighlighted(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.highlighted = path
	if path != "" && path == p.active {
		p.emphasize()
	}
}

// Release stops pending timers and releases the widget. The panel must not
// be used afterwards.
func (p *Panel) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return
	}
	p.released = true
	p.stopPulse()
	p.widget.Release()
}

func (p *Panel) activate(idx *pathindex.Index, path string) {
	p.active = path
	if path != "" {
		if _, ok := p.buffers[path]; !ok {
			if e, ok := idx.Lookup(path); ok {
				p.buffers[path] = newBuffer(path, e.Name, e.Content)
			}
		}
	}
	p.widget.Show(p.display())
	if path != "" && path == p.highlighted {
		p.emphasize()
	}
}

func (p *Panel) display() Display {
	b, ok := p.buffers[p.active]
	if p.active == "" || !ok {
		return Display{}
	}
	return Display{
		Path:     b.path,
		Name:     tree.BaseName(b.path),
		Language: b.language,
		Content:  b.content,
		Cursor:   b.cursor,
		Lines:    b.Lines(),
	}
}

func (p *Panel) lastTab() string {
	if len(p.tabs) == 0 {
		return ""
	}
	return p.tabs[len(p.tabs)-1]
}

// emphasize must be called with p.mu held.
func (p *Panel) emphasize() {
	b, ok := p.buffers[p.active]
	if !ok || p.released {
		return
	}
	p.stopPulse()
	path := b.path
	p.emphasized = path
	p.widget.Emphasize(path, b.Lines())

	var t *time.Timer
	t = time.AfterFunc(p.pulse, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.timer != t {
			return
		}
		p.timer = nil
		p.emphasized = ""
		p.widget.ClearEmphasis(path)
	})
	p.timer = t
}

func (p *Panel) stopPulse() {
	if p.timer == nil {
		return
	}
	p.timer.Stop()
	p.timer = nil
	if p.emphasized != "" {
		p.widget.ClearEmphasis(p.emphasized)
		p.emphasized = ""
	}
}

type nopWidget struct{}

func (nopWidget) Show(Display) {}
func (nopWidget) Emphasize(string, int) {}
func (nopWidget) ClearEmphasis(string) {}
func (nopWidget) Release() {}
