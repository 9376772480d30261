package api

import (
	"sync"

	"github.com/fruitsalade/filesurf/internal/editor"
	"github.com/fruitsalade/filesurf/pkg/protocol"
)

// remoteWidget forwards editor instructions to the session's WebSocket
// clients. Buffer contents travel in the view, so Show is a no-op.
type remoteWidget struct {
	mu       sync.Mutex
	subs     map[chan protocol.Emphasis]struct{}
	current  *protocol.Emphasis
	released bool
}

func newRemoteWidget() *remoteWidget {
	return &remoteWidget{subs: make(map[chan protocol.Emphasis]struct{})}
}

func (w *remoteWidget) Show(editor.Display) {}

func (w *remoteWidget) Emphasize(path string, lines int) {
	e := protocol.Emphasis{Path: path, Lines: lines, Active: true}
	w.mu.Lock()
	w.current = &e
	w.mu.Unlock()
	w.publish(e)
}

func (w *remoteWidget) ClearEmphasis(path string) {
	w.mu.Lock()
	if w.current != nil && w.current.Path == path {
		w.current = nil
	}
	w.mu.Unlock()
	w.publish(protocol.Emphasis{Path: path})
}

func (w *remoteWidget) Release() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.released {
		return
	}
	w.released = true
	for ch := range w.subs {
		delete(w.subs, ch)
		close(ch)
	}
}

// Emphasis returns the active pulse, if any.
func (w *remoteWidget) Emphasis() (protocol.Emphasis, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return protocol.Emphasis{}, false
	}
	return *w.current, true
}

// subscribe returns a channel of emphasis changes. It is closed on Release
// or by cancel.
func (w *remoteWidget) subscribe() (<-chan protocol.Emphasis, func()) {
	ch := make(chan protocol.Emphasis, 8)
	w.mu.Lock()
	if w.released {
		close(ch)
	} else {
		w.subs[ch] = struct{}{}
	}
	w.mu.Unlock()

	return ch, func() {
		w.mu.Lock()
		if _, ok := w.subs[ch]; ok {
			delete(w.subs, ch)
			close(ch)
		}
		w.mu.Unlock()
	}
}

func (w *remoteWidget) publish(e protocol.Emphasis) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for ch := range w.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
