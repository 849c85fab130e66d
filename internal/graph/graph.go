package graph

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring"
)

var (
	ErrNotFound      = errors.New("item not found")
	ErrDuplicatePath = errors.New("duplicate item path")
)

// ContentKind tells where the bytes behind an item live.
type ContentKind int

const (
	ContentFile     ContentKind = iota + 1 // file under the evidence root
	ContentArchive                         // entry inside the companion archive
	ContentPreview                         // generated preview document under the output dir
	ContentMetadata                        // the item's own metadata, rendered as JSON
)

func (k ContentKind) String() string {
	switch k {
	case ContentFile:
		return "file"
	case ContentArchive:
		return "archive"
	case ContentPreview:
		return "preview"
	case ContentMetadata:
		return "metadata"
	default:
		return "none"
	}
}

// ContentRef is a recipe for lazily fetching an item's bytes.
// Nothing is read while the report is parsed; consumers resolve the
// reference on demand.
type ContentRef struct {
	Kind ContentKind
	// Path is the evidence-root relative path (ContentFile), the
	// marker-prefixed entry name (ContentArchive) or the output-dir relative
	// document path (ContentPreview). Empty for ContentMetadata.
	Path string
	// ArchiveID identifies the open archive handle for ContentArchive.
	ArchiveID string
}

// Item is one node of the evidence graph.
type Item struct {
	ID         int
	ParentID   int // -1 for the root
	Path       string
	Name       string
	ParentPath string

	IsDir       bool
	IsDeleted   bool
	HasChildren bool
	IsRoot      bool

	Length    *int64
	Category  string
	MediaType string
	Metadata  *Metadata
	Content   *ContentRef

	// SkipHash marks items whose content needs no downstream hashing
	// (synthetic folders and decoded records without real content).
	SkipHash bool

	IDInSource string
	Created    *time.Time
	Modified   *time.Time
	Accessed   *time.Time

	Thumbnail  []byte
	Attributes map[string]string
}

// NewItem returns an item with an empty metadata map and no parent.
func NewItem(id int, path string) *Item {
	return &Item{
		ID:       id,
		ParentID: -1,
		Path:     path,
		Name:     path[strings.LastIndexByte(path, '/')+1:],
		Metadata: NewMetadata(),
	}
}

// SetParent links the item below parent.
func (it *Item) SetParent(parent *Item) {
	it.ParentID = parent.ID
	it.ParentPath = parent.Path
}

// SetLength records a known content length.
func (it *Item) SetLength(n int64) {
	it.Length = &n
}

// ContentSize returns the content length, or 0 when still unknown.
func (it *Item) ContentSize() int64 {
	if it.Length == nil {
		return 0
	}
	return *it.Length
}

// ClearContent drops any content reference together with the values derived
// from it, so content can be re-resolved from another source.
func (it *Item) ClearContent() {
	it.Content = nil
	it.MediaType = ""
	it.SkipHash = false
}

// SetAttribute stores an extra, non-metadata attribute.
func (it *Item) SetAttribute(key, value string) {
	if it.Attributes == nil {
		it.Attributes = make(map[string]string)
	}
	it.Attributes[key] = value
}

// ContentResolverFunc resolves a ContentRef of the given item into bytes.
type ContentResolverFunc func(it *Item) ([]byte, error)

// -----------------------------------------------------------------------------
// In-memory evidence store
// -----------------------------------------------------------------------------

// MemoryStore keeps every submitted item in memory, in emission order.
// It is the sink used by tests and by the cat command; SQLiteWriter is the
// persistent one.
type MemoryStore struct {
	mu       sync.RWMutex
	items    map[string]*Item
	order    []string
	children map[string][]string
	resolver ContentResolverFunc
	cache    *contentCache

	// Roaring bitmaps over item IDs for the usual triage filters.
	byCategory map[string]*roaring.Bitmap
	deleted    *roaring.Bitmap
	byID       map[uint32]string

	discoveredCount  int64
	discoveredVolume int64
	blindReport      bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:      make(map[string]*Item),
		children:   make(map[string][]string),
		byCategory: make(map[string]*roaring.Bitmap),
		deleted:    roaring.New(),
		byID:       make(map[uint32]string),
	}
}

// SetBlindReport switches metadata-as-content export on for decoded records.
func (s *MemoryStore) SetBlindReport(on bool) {
	s.blindReport = on
}

// SetResolver configures lazy content resolution for ReadContent.
func (s *MemoryStore) SetResolver(fn ContentResolverFunc) {
	s.resolver = fn
	s.cache = newContentCache(256)
}

// Add stores an item. Items must arrive after their parent.
func (s *MemoryStore) Add(it *Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[it.Path]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePath, it.Path)
	}
	if !it.IsRoot {
		if _, ok := s.items[it.ParentPath]; !ok {
			return fmt.Errorf("parent %q of %q: %w", it.ParentPath, it.Path, ErrNotFound)
		}
		s.children[it.ParentPath] = append(s.children[it.ParentPath], it.Path)
	}
	s.items[it.Path] = it
	s.order = append(s.order, it.Path)
	s.indexItem(it)
	return nil
}

// indexItem must be called with s.mu held.
func (s *MemoryStore) indexItem(it *Item) {
	if it.ID < 0 {
		return
	}
	id := uint32(it.ID)
	s.byID[id] = it.Path
	if it.Category != "" {
		bm, ok := s.byCategory[it.Category]
		if !ok {
			bm = roaring.New()
			s.byCategory[it.Category] = bm
		}
		bm.Add(id)
	}
	if it.IsDeleted {
		s.deleted.Add(id)
	}
}

// GetItem returns the item stored at path.
func (s *MemoryStore) GetItem(path string) (*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[strings.TrimPrefix(path, "/")]
	if !ok {
		return nil, ErrNotFound
	}
	return it, nil
}

// ListChildren returns the child paths of path in emission order.
func (s *MemoryStore) ListChildren(path string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	path = strings.TrimPrefix(path, "/")
	if _, ok := s.items[path]; !ok {
		return nil, ErrNotFound
	}
	return append([]string(nil), s.children[path]...), nil
}

// Items returns every stored item in emission order.
func (s *MemoryStore) Items() []*Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Item, 0, len(s.order))
	for _, p := range s.order {
		out = append(out, s.items[p])
	}
	return out
}

// ByCategory returns the paths of items tagged with category, ordered by ID.
func (s *MemoryStore) ByCategory(category string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bm, ok := s.byCategory[category]
	if !ok {
		return nil
	}
	return s.pathsOf(bm)
}

// Deleted returns the paths of items flagged as deleted, ordered by ID.
func (s *MemoryStore) Deleted() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pathsOf(s.deleted)
}

func (s *MemoryStore) pathsOf(bm *roaring.Bitmap) []string {
	out := make([]string, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, s.byID[it.Next()])
	}
	return out
}

// DiscoveredCount returns the running discovered-item counter.
func (s *MemoryStore) DiscoveredCount() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.discoveredCount
}

// DiscoveredVolume returns the running discovered-bytes counter.
func (s *MemoryStore) DiscoveredVolume() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.discoveredVolume
}

// ReadContent reads the content of the item at path. It handles every
// ContentRef kind through the configured resolver.
func (s *MemoryStore) ReadContent(path string, buf []byte, offset int64) (int, error) {
	it, err := s.GetItem(path)
	if err != nil {
		return 0, err
	}
	if it.Content == nil {
		return 0, nil
	}
	data, err := s.resolveContent(it)
	if err != nil {
		return 0, err
	}
	if offset >= int64(len(data)) {
		return 0, nil
	}
	end := offset + int64(len(buf))
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return copy(buf, data[offset:end]), nil
}

func (s *MemoryStore) resolveContent(it *Item) ([]byte, error) {
	if s.cache != nil {
		if cached, ok := s.cache.get(it.Path); ok {
			return cached, nil
		}
	}
	if s.resolver == nil {
		return nil, errors.New("no resolver configured for lazy content")
	}
	data, err := s.resolver(it)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.put(it.Path, data)
	}
	return data, nil
}

// contentCache is a simple FIFO-evicting bounded cache for resolved content.
type contentCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	keys    []string
	maxSize int
}

func newContentCache(maxSize int) *contentCache {
	return &contentCache{
		entries: make(map[string][]byte, maxSize),
		keys:    make([]string, 0, maxSize),
		maxSize: maxSize,
	}
}

func (c *contentCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *contentCache) put(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		c.entries[key] = value
		return
	}
	if len(c.entries) >= c.maxSize {
		evict := c.keys[0]
		c.keys = c.keys[1:]
		delete(c.entries, evict)
	}
	c.entries[key] = value
	c.keys = append(c.keys, key)
}
