package pathindex

import (
	"sync"

	"go.uber.org/zap"

	"github.com/fruitsalade/filesurf/internal/logging"
	"github.com/fruitsalade/filesurf/internal/metrics"
	"github.com/fruitsalade/filesurf/pkg/models"
	"github.com/fruitsalade/filesurf/pkg/tree"
)

// Op names a store mutation.
type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change describes one successful mutation.
type Change struct {
	Op       Op
	Path     string
	Type     models.NodeType
	Revision uint64
}

// Store owns the current Index and is the mutation surface handed to hosts.
// Failed operations are logged and leave the index untouched; listeners are
// notified after every successful one.
type Store struct {
	mu      sync.RWMutex
	current *Index

	lmu       sync.Mutex
	listeners map[int]func(Change)
	nextID    int

	log *zap.Logger
}

// NewStore wraps idx. A nil idx starts empty.
func NewStore(idx *Index) *Store {
	if idx == nil {
		idx = Empty()
	}
	metrics.SetIndexSize(idx.Len())
	return &Store{
		current:   idx,
		listeners: make(map[int]func(Change)),
		log:       logging.Named("pathindex"),
	}
}

// NewStoreFromTree builds the index from root and wraps it.
func NewStoreFromTree(root *models.FileNode) (*Store, error) {
	idx, err := Build(root)
	if err != nil {
		return nil, err
	}
	return NewStore(idx), nil
}

// Snapshot returns the current index value. It is safe to keep and read
// concurrently with later mutations.
func (s *Store) Snapshot() *Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Subscribe registers fn to be called after every successful mutation. The
// returned function removes the subscription.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

// AddFile inserts node under parentPath.
func (s *Store) AddFile(parentPath string, node *models.FileNode) error {
	var typ models.NodeType
	if node != nil {
		typ = node.Type
	}
	path := parentPath
	if node != nil {
		path = tree.BuildChildPath(parentPath, node.Name)
	}
	return s.apply(OpAdd, path, typ, func(idx *Index) (*Index, error) {
		return idx.Add(parentPath, node)
	})
}

// UpdateFile replaces the content of the file at path.
func (s *Store) UpdateFile(path, content string) error {
	return s.apply(OpUpdate, path, models.TypeFile, func(idx *Index) (*Index, error) {
		return idx.Update(path, content)
	})
}

// DeleteFile removes path and, for folders, everything below it.
func (s *Store) DeleteFile(path string) error {
	var typ models.NodeType
	if e, ok := s.Snapshot().Lookup(path); ok {
		typ = e.Type
	}
	return s.apply(OpDelete, path, typ, func(idx *Index) (*Index, error) {
		return idx.Delete(path)
	})
}

func (s *Store) apply(op Op, path string, typ models.NodeType, fn func(*Index) (*Index, error)) error {
	s.mu.Lock()
	next, err := fn(s.current)
	if err != nil {
		s.mu.Unlock()
		metrics.RecordMutation(string(op), false)
		s.log.Warn("index mutation rejected",
			zap.String("op", string(op)),
			zap.String("path", path),
			zap.String("kind", Kind(err)),
			zap.Error(err))
		return err
	}
	s.current = next
	size := next.Len()
	s.mu.Unlock()

	metrics.RecordMutation(string(op), true)
	metrics.SetIndexSize(size)
	s.log.Debug("index mutated",
		zap.String("op", string(op)),
		zap.String("path", path),
		zap.Uint64("revision", next.Revision()))

	s.notify(Change{Op: op, Path: path, Type: typ, Revision: next.Revision()})
	return nil
}

func (s *Store) notify(c Change) {
	s.lmu.Lock()
	fns := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
