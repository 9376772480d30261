// Package explorer composes the tree view, the editor panel and the change
// watcher over one store into a mountable file explorer widget.
//
// All entry points are serialised by a single mutex. Listeners registered with
// OnChange receive a fresh View after every state change.
package explorer

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/filesurf/internal/editor"
	"github.com/fruitsalade/filesurf/internal/logging"
	"github.com/fruitsalade/filesurf/internal/pathindex"
	"github.com/fruitsalade/filesurf/internal/treeview"
	"github.com/fruitsalade/filesurf/internal/watcher"
)

// DefaultHighlight is how long a changed file stays highlighted.
const DefaultHighlight = 1500 * time.Millisecond

var (
	// ErrMounted is returned when mounting twice.
	ErrMounted = errors.New("explorer already mounted")
	// ErrUnmounted is returned when mounting after Unmount.
	ErrUnmounted = errors.New("explorer unmounted")
)

// Options configures an Explorer. Zero values select defaults.
type Options struct {
	Width      Dimension
	Height     Dimension
	Theme      Theme
	PanelWidth int

	PollInterval time.Duration
	Highlight    time.Duration
	Pulse        time.Duration

	// Wake scans for changes as soon as the store reports a mutation
	// instead of waiting for the next poll.
	Wake bool

	Tree treeview.Options
}

// View is a snapshot of everything the front end renders.
type View struct {
	Revision    uint64         `json:"revision"`
	Rows        []treeview.Row `json:"rows"`
	Tabs        []editor.Tab   `json:"tabs"`
	Active      string         `json:"active,omitempty"`
	Selected    string         `json:"selected,omitempty"`
	Highlighted string         `json:"highlighted,omitempty"`
	Editor      editor.Display `json:"editor"`
	PanelWidth  int            `json:"panelWidth"`
	Resizing    bool           `json:"resizing,omitempty"`
	Theme       Theme          `json:"theme"`
	Width       Dimension      `json:"width"`
	Height      Dimension      `json:"height"`
}

type state int

const (
	stateIdle state = iota
	stateMounted
	stateUnmounted
)

// Explorer is one mounted file explorer. It is safe for concurrent use.
type Explorer struct {
	store *pathindex.Store
	opts  Options

	mu          sync.Mutex
	state       state
	tree        *treeview.View
	panel       *editor.Panel
	watcher     *watcher.Watcher
	unsubscribe func()
	selected    string
	highlighted string
	hlTimer     *time.Timer
	panelWidth  int
	resizing    bool
	theme       Theme

	// pending maps paths to content written through Edit, so the watcher
	// does not report our own writes as external changes.
	pending map[string]string

	lmu       sync.Mutex
	listeners map[int]func(View)
	nextID    int

	log *zap.Logger
}

// New creates an explorer over store that renders into widget.
func New(store *pathindex.Store, widget editor.Widget, opts Options) *Explorer {
	if opts.Highlight <= 0 {
		opts.Highlight = DefaultHighlight
	}
	opts.Width = opts.Width.orDefault(DefaultWidth)
	opts.Height = opts.Height.orDefault(DefaultHeight)
	if opts.Theme == "" {
		opts.Theme = ThemeDark
	}
	width := DefaultPanelWidth
	if opts.PanelWidth != 0 {
		width = ClampWidth(opts.PanelWidth)
	}

	return &Explorer{
		store:      store,
		opts:       opts,
		tree:       treeview.New(store.Snapshot(), opts.Tree),
		panel:      editor.NewPanel(widget, editor.Options{Pulse: opts.Pulse}),
		panelWidth: width,
		theme:      opts.Theme,
		pending:    make(map[string]string),
		listeners:  make(map[int]func(View)),
		log:        logging.Named("explorer"),
	}
}

// Mount starts watching the store for changes.
func (e *Explorer) Mount(ctx context.Context) error {
	e.mu.Lock()
	switch e.state {
	case stateMounted:
		e.mu.Unlock()
		return ErrMounted
	case stateUnmounted:
		e.mu.Unlock()
		return ErrUnmounted
	}

	w := watcher.New(e.store, e.opts.PollInterval, e.handleChange)
	if err := w.Start(ctx); err != nil {
		e.mu.Unlock()
		return err
	}
	e.watcher = w
	e.unsubscribe = e.store.Subscribe(e.handleMutation)
	e.state = stateMounted
	e.mu.Unlock()

	e.log.Debug("explorer mounted")
	return nil
}

// Unmount stops the watcher, cancels pending highlight timers and releases
// the editor widget. The explorer cannot be mounted again.
func (e *Explorer) Unmount() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == stateUnmounted {
		return
	}
	if e.watcher != nil {
		e.watcher.Stop()
	}
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	if e.hlTimer != nil {
		e.hlTimer.Stop()
		e.hlTimer = nil
	}
	e.panel.Release()
	e.state = stateUnmounted
	e.log.Debug("explorer unmounted")
}

// Mounted reports whether the explorer is running.
func (e *Explorer) Mounted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == stateMounted
}

// OnChange registers fn to receive the view after every change.
func (e *Explorer) OnChange(fn func(View)) (cancel func()) {
	e.lmu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	e.lmu.Unlock()

	return func() {
		e.lmu.Lock()
		delete(e.listeners, id)
		e.lmu.Unlock()
	}
}

// View returns the current view.
func (e *Explorer) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view()
}

// Select handles a click on a tree row. Folders toggle; files open in the
// editor and become the selection.
func (e *Explorer) Select(path string) treeview.Action {
	e.mu.Lock()
	idx := e.store.Snapshot()
	action := e.tree.Select(idx, path)
	if action == treeview.ActionFileSelected {
		e.panel.SelectFile(idx, path)
		e.selected = path
	}
	e.mu.Unlock()

	if action != treeview.ActionNone {
		e.emit()
	}
	return action
}

// Toggle expands or collapses a folder.
func (e *Explorer) Toggle(path string) bool {
	e.mu.Lock()
	ok := e.tree.Toggle(e.store.Snapshot(), path)
	e.mu.Unlock()

	if ok {
		e.emit()
	}
	return ok
}

// ChangeTab activates an open tab and selects its file.
func (e *Explorer) ChangeTab(path string) error {
	e.mu.Lock()
	err := e.panel.ChangeTab(e.store.Snapshot(), path)
	if err == nil {
		e.selected = path
	}
	e.mu.Unlock()

	if err != nil {
		return err
	}
	e.emit()
	return nil
}

// CloseTab closes a tab. Closing the active tab moves the selection to the
// newly active tab, or clears it.
func (e *Explorer) CloseTab(path string) bool {
	e.mu.Lock()
	wasActive := e.panel.Active() == path
	closed := e.panel.CloseTab(e.store.Snapshot(), path)
	if closed && wasActive {
		e.selected = e.panel.Active()
	}
	e.mu.Unlock()

	if closed {
		e.emit()
	}
	return closed
}

// Edit applies an editor change and writes it back to the store.
func (e *Explorer) Edit(path, content string) error {
	e.mu.Lock()
	err := e.panel.Edit(path, content)
	if err == nil {
		e.pending[path] = content
	}
	e.mu.Unlock()
	if err != nil {
		return err
	}

	// The store notifies synchronously, so it must be called unlocked.
	if err := e.store.UpdateFile(path, content); err != nil {
		e.mu.Lock()
		delete(e.pending, path)
		e.mu.Unlock()
		return err
	}
	return nil
}

// BeginResize starts a panel resize drag.
func (e *Explorer) BeginResize() {
	e.mu.Lock()
	e.resizing = true
	e.mu.Unlock()
	e.emit()
}

// ResizeTo sets the panel width to x while a drag is in progress. It reports
// whether the width was applied.
func (e *Explorer) ResizeTo(x int) bool {
	e.mu.Lock()
	if !e.resizing {
		e.mu.Unlock()
		return false
	}
	e.panelWidth = ClampWidth(x)
	e.mu.Unlock()

	e.emit()
	return true
}

// EndResize finishes a drag.
func (e *Explorer) EndResize() {
	e.mu.Lock()
	e.resizing = false
	e.mu.Unlock()
	e.emit()
}

// SetTheme switches the colour scheme.
func (e *Explorer) SetTheme(t Theme) {
	e.mu.Lock()
	e.theme = t
	e.mu.Unlock()
	e.emit()
}

// handleChange runs on the watcher goroutine for each detected change.
func (e *Explorer) handleChange(path string) {
	e.mu.Lock()
	if e.state != stateMounted {
		e.mu.Unlock()
		return
	}
	idx := e.store.Snapshot()
	if content, ok := e.pending[path]; ok {
		delete(e.pending, path)
		if ent, found := idx.Lookup(path); found && ent.Content == content {
			e.mu.Unlock()
			return
		}
	}

	e.highlighted = path
	e.panel.SelectFile(idx, path)
	e.panel.SetHighlighted(path)
	if e.hlTimer != nil {
		e.hlTimer.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(e.opts.Highlight, func() { e.clearHighlight(t) })
	e.hlTimer = t
	e.mu.Unlock()

	e.log.Debug("highlighting changed file", zap.String("path", path))
	e.emit()
}

func (e *Explorer) clearHighlight(t *time.Timer) {
	e.mu.Lock()
	if e.hlTimer != t || e.state != stateMounted {
		e.mu.Unlock()
		return
	}
	e.hlTimer = nil
	e.highlighted = ""
	e.panel.SetHighlighted("")
	e.mu.Unlock()

	e.emit()
}

// handleMutation reconciles view state with the store after a mutation.
func (e *Explorer) handleMutation(c pathindex.Change) {
	e.mu.Lock()
	if e.state != stateMounted {
		e.mu.Unlock()
		return
	}
	idx := e.store.Snapshot()
	e.panel.Sync(idx)
	e.tree.Prune(idx)
	if c.Op == pathindex.OpDelete {
		if _, ok := idx.Lookup(e.selected); !ok {
			e.selected = ""
		}
		if _, ok := idx.Lookup(e.highlighted); !ok {
			e.highlighted = ""
			e.panel.SetHighlighted("")
		}
		for p := range e.pending {
			if _, ok := idx.Lookup(p); !ok {
				delete(e.pending, p)
			}
		}
	}
	w := e.watcher
	e.mu.Unlock()

	if e.opts.Wake && w != nil {
		w.Wake()
	}
	e.emit()
}

// view must be called with e.mu held.
func (e *Explorer) view() View {
	idx := e.store.Snapshot()
	return View{
		Revision:    idx.Revision(),
		Rows:        e.tree.Rows(idx, e.selected, e.panelWidth),
		Tabs:        e.panel.Tabs(),
		Active:      e.panel.Active(),
		Selected:    e.selected,
		Highlighted: e.highlighted,
		Editor:      e.panel.Display(),
		PanelWidth:  e.panelWidth,
		Resizing:    e.resizing,
		Theme:       e.theme,
		Width:       e.opts.Width,
		Height:      e.opts.Height,
	}
}

func (e *Explorer) emit() {
	e.lmu.Lock()
	fns := make([]func(View), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.lmu.Unlock()
	if len(fns) == 0 {
		return
	}

	v := e.View()
	for _, fn := range fns {
		fn(v)
	}
}
