package content

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/agentic-research/evidencegraph/internal/graph"
	billy "github.com/go-git/go-billy/v5"
)

// Provider gives access to extracted bytes, either on disk below the
// evidence root or inside the companion archive.
type Provider interface {
	OpenFile(rel string) (int64, io.ReadCloser, error)
	LookupEntry(name string) (Entry, bool, error)
	ReadEntry(e Entry) ([]byte, error)
}

// Resolver maps declared content paths from the report to content
// references. With an archive configured, lookups go to the archive only.
type Resolver struct {
	root    billy.Filesystem
	archive *Archive
	log     *slog.Logger
}

// NewResolver builds a resolver over the evidence root and an optional
// archive (nil when the report ships as a plain export directory).
func NewResolver(root billy.Filesystem, archive *Archive, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{root: root, archive: archive, log: log}
}

// Archive returns the configured archive, or nil.
func (r *Resolver) Archive() *Archive { return r.archive }

// Assign resolves declared to content for it. Any previous content is
// cleared first. It reports whether content was found; a missing file or
// entry is not an error. Only a failure to open the archive is.
func (r *Resolver) Assign(it *graph.Item, declared string) (bool, error) {
	it.ClearContent()
	if strings.TrimSpace(declared) == "" {
		return false, nil
	}
	p := NormalizePath(declared)

	if r.archive == nil {
		info, err := r.root.Stat(p)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				r.log.Warn("stat content failed", "path", p, "err", err)
			}
			r.log.Debug("content not found on disk", "item", it.Path, "path", p)
			it.SetLength(0)
			return false, nil
		}
		it.Content = &graph.ContentRef{Kind: graph.ContentFile, Path: p}
		it.SetLength(info.Size())
		return true, nil
	}

	e, ok, err := r.archive.Lookup(p)
	if err != nil {
		return false, err
	}
	if !ok {
		r.log.Debug("content not found in archive", "item", it.Path, "path", p)
		it.SetLength(0)
		return false, nil
	}
	ref := ArchivePathPrefix + p
	it.Content = &graph.ContentRef{Kind: graph.ContentArchive, Path: ref, ArchiveID: r.archive.ID()}
	it.SetLength(e.Size)
	if it.IDInSource != "" {
		it.IDInSource = it.IDInSource + "_" + ref
	} else {
		it.IDInSource = ref
	}
	return true, nil
}

// OpenFile opens a file below the evidence root.
func (r *Resolver) OpenFile(rel string) (int64, io.ReadCloser, error) {
	info, err := r.root.Stat(rel)
	if err != nil {
		return 0, nil, err
	}
	f, err := r.root.Open(rel)
	if err != nil {
		return 0, nil, err
	}
	return info.Size(), f, nil
}

// LookupEntry finds an archive entry. Without an archive nothing is found.
func (r *Resolver) LookupEntry(name string) (Entry, bool, error) {
	if r.archive == nil {
		return Entry{}, false, nil
	}
	return r.archive.Lookup(name)
}

// ReadEntry reads an archive entry returned by LookupEntry.
func (r *Resolver) ReadEntry(e Entry) ([]byte, error) {
	if r.archive == nil {
		return nil, errors.New("no archive configured")
	}
	return r.archive.ReadEntry(e)
}

// ReadAvatar loads an avatar image by its report path, from the archive
// when present and from the evidence root otherwise.
func (r *Resolver) ReadAvatar(path string) ([]byte, bool, error) {
	p := NormalizePath(path)
	if r.archive != nil {
		e, ok, err := r.archive.Lookup(p)
		if err != nil || !ok {
			return nil, false, err
		}
		data, err := r.archive.ReadEntry(e)
		if err != nil {
			return nil, false, err
		}
		return data, true, nil
	}
	_, rc, err := r.OpenFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, false, fmt.Errorf("read avatar %s: %w", p, err)
	}
	return data, true, nil
}

// ContentFunc returns a graph.ContentResolverFunc that reads any content
// kind. Preview documents are read from output.
func (r *Resolver) ContentFunc(output billy.Filesystem) graph.ContentResolverFunc {
	return func(it *graph.Item) ([]byte, error) {
		ref := it.Content
		if ref == nil {
			return nil, nil
		}
		switch ref.Kind {
		case graph.ContentFile:
			_, rc, err := r.OpenFile(ref.Path)
			if err != nil {
				return nil, err
			}
			defer func() { _ = rc.Close() }()
			return io.ReadAll(rc)
		case graph.ContentArchive:
			name := strings.TrimPrefix(ref.Path, ArchivePathPrefix)
			e, ok, err := r.LookupEntry(name)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("archive entry %s: %w", name, graph.ErrNotFound)
			}
			return r.ReadEntry(e)
		case graph.ContentPreview:
			f, err := output.Open(ref.Path)
			if err != nil {
				return nil, err
			}
			defer func() { _ = f.Close() }()
			return io.ReadAll(f)
		case graph.ContentMetadata:
			return graph.MarshalMetadata(it.Metadata), nil
		default:
			return nil, fmt.Errorf("unknown content kind %d", ref.Kind)
		}
	}
}

// Close releases the archive handle, if any.
func (r *Resolver) Close() error {
	if r.archive == nil {
		return nil
	}
	return r.archive.Close()
}

// NormalizePath converts backslashes to slashes and trims the spaces some
// extractors leave around path segments.
func NormalizePath(path string) string {
	frags := strings.Split(strings.ReplaceAll(path, "\\", "/"), "/")
	for i, f := range frags {
		frags[i] = strings.TrimSpace(f)
	}
	return strings.Join(frags, "/")
}

var _ Provider = (*Resolver)(nil)
