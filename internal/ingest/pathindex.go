package ingest

import (
	"context"
	"strings"

	"github.com/agentic-research/evidencegraph/internal/graph"
)

// PathIndex materializes the folders implied by item paths. Every folder is
// created and emitted once, before anything below it.
type PathIndex struct {
	root  *graph.Item
	dirs  map[string]*graph.Item
	newID func() int
	emit  func(ctx context.Context, it *graph.Item) error
	known func(path string) (*graph.Item, bool)
}

// NewPathIndex indexes root. newID allocates item ids and emit hands newly
// created folders to the sink. known, when not nil, reports items already
// emitted at a path; those are reused as parents instead of creating a
// folder with the same path.
func NewPathIndex(root *graph.Item, newID func() int, emit func(context.Context, *graph.Item) error,
	known func(string) (*graph.Item, bool)) *PathIndex {
	p := &PathIndex{
		root:  root,
		dirs:  make(map[string]*graph.Item),
		newID: newID,
		emit:  emit,
		known: known,
	}
	p.Add(root)
	return p
}

// Add indexes an already emitted folder.
func (p *PathIndex) Add(dir *graph.Item) {
	p.dirs[dir.Path] = dir
}

// Lookup returns the folder indexed at path.
func (p *PathIndex) Lookup(path string) (*graph.Item, bool) {
	it, ok := p.dirs[path]
	return it, ok
}

// Len returns the number of indexed folders, root included.
func (p *PathIndex) Len() int { return len(p.dirs) }

// Parent returns the folder that holds path, creating any missing ancestors
// top-down. A path without a parent segment belongs to the root.
func (p *PathIndex) Parent(ctx context.Context, path string) (*graph.Item, error) {
	idx := strings.LastIndexByte(path, '/')
	if idx < 1 {
		return p.root, nil
	}
	parentPath := path[:idx]
	if dir, ok := p.dirs[parentPath]; ok {
		return dir, nil
	}
	if p.known != nil {
		if it, ok := p.known(parentPath); ok {
			p.dirs[parentPath] = it
			return it, nil
		}
	}

	grand, err := p.Parent(ctx, parentPath)
	if err != nil {
		return nil, err
	}
	dir := graph.NewItem(p.newID(), parentPath)
	dir.IsDir = true
	dir.HasChildren = true
	dir.SkipHash = true
	dir.SetParent(grand)

	p.dirs[parentPath] = dir
	if err := p.emit(ctx, dir); err != nil {
		return nil, err
	}
	return dir, nil
}
