package ingest

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/agentic-research/evidencegraph/internal/content"
	"github.com/agentic-research/evidencegraph/internal/graph"
	"github.com/agentic-research/evidencegraph/internal/preview"
	"github.com/agentic-research/evidencegraph/internal/telemetry"
)

// DecodedFolderName holds every decoded record, grouped by type.
const DecodedFolderName = "_DecodedData"

// Phone parser selections. With PhoneParsersInternal, WhatsApp chats keep the
// generic chat media type.
const (
	PhoneParsersInternal = "internal"
	PhoneParsersExternal = "external"
	PhoneParsersAll      = "all"
)

// Field names whose text is structural and never copied to metadata.
var ignoredFieldNames = stringSet(
	"Tags",
	"Local Path",
	"CreationTime",
	"ModifyTime",
	"AccessTime",
	"CoreFileSystemFileSystemNodeCreationTime",
	"CoreFileSystemFileSystemNodeModifyTime",
	"CoreFileSystemFileSystemNodeLastAccessTime",
	"UserMapping",
)

// Record attributes that are structural rather than metadata.
var ignoredAttrs = stringSet("type", "path", "size", "deleted", "deleted_state")

func stringSet(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

// Options configure an Engine.
type Options struct {
	// EvidenceName names the root item, usually the base name of the report
	// file, container or export directory.
	EvidenceName string
	// EvidenceSize is the container size recorded on the root. Zero leaves
	// the root without a length.
	EvidenceSize int64
	// ListOnly only counts items and bytes. Nothing is built or submitted.
	ListOnly     bool
	PhoneParsers string
	// MaxNameLength bounds names taken from record fields.
	MaxNameLength int

	Logger  *slog.Logger
	Metrics *telemetry.Collector
}

// Engine turns one report into evidence items.
type Engine struct {
	sink     Sink
	resolver *content.Resolver
	previews *preview.Materializer
	opts     Options
	log      *slog.Logger
}

// NewEngine wires an engine. resolver and previews may be nil in list-only
// mode.
func NewEngine(sink Sink, resolver *content.Resolver, previews *preview.Materializer, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxNameLength <= 0 {
		opts.MaxNameLength = preview.DefaultMaxNameLength
	}
	if opts.PhoneParsers == "" {
		opts.PhoneParsers = PhoneParsersAll
	}
	if opts.EvidenceName == "" {
		opts.EvidenceName = "report"
	}
	return &Engine{
		sink:     sink,
		resolver: resolver,
		previews: previews,
		opts:     opts,
		log:      opts.Logger,
	}
}

// Run parses report in a single forward pass. A cancelled context is not an
// error: Run stops at the next record boundary and returns a Result with
// Canceled set.
func (e *Engine) Run(ctx context.Context, report io.Reader) (Result, error) {
	r := &run{
		e:           e,
		ctx:         ctx,
		extractions: make(map[string]string),
		emitted:     make(map[string]*graph.Item),
		aliases:     make(map[int]*graph.Item),
	}
	err := r.parse(report)
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		e.log.Info("ingestion cancelled", "evidence", e.opts.EvidenceName, "emitted", r.result.Emitted)
		r.result.Canceled = true
		return r.result, nil
	}
	return r.result, err
}

// run holds the state of one Run call.
type run struct {
	e   *Engine
	ctx context.Context

	nextID  int
	root    *graph.Item
	decoded *graph.Item
	index   *PathIndex
	emitted map[string]*graph.Item
	// aliases maps the id of a dropped duplicate to the item kept at its
	// path, so anything parented to the duplicate lands on the survivor.
	aliases map[int]*graph.Item

	frames      frameStack
	records     recordStack
	extractions map[string]string

	chars         strings.Builder
	bookmarkDepth int

	result Result
}

func (r *run) newID() int {
	id := r.nextID
	r.nextID++
	return id
}

func (r *run) parse(report io.Reader) error {
	if !r.e.opts.ListOnly {
		if err := r.addRoots(); err != nil {
			return err
		}
	}

	dec := xml.NewDecoder(xmlCleaner{report})
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("parse report: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := r.start(t); err != nil {
				return err
			}
		case xml.EndElement:
			if err := r.end(t.Name.Local); err != nil {
				return err
			}
		case xml.CharData:
			if !r.e.opts.ListOnly && r.bookmarkDepth == 0 {
				r.chars.Write(t)
			}
		}
	}
}

// addRoots creates the evidence root and the decoded-data folder.
func (r *run) addRoots() error {
	root := graph.NewItem(r.newID(), r.e.opts.EvidenceName)
	root.IsRoot = true
	root.IsDir = true
	root.HasChildren = true
	root.SkipHash = true
	if r.e.opts.EvidenceSize > 0 {
		root.SetLength(r.e.opts.EvidenceSize)
	}
	r.root = root
	r.index = NewPathIndex(root, r.newID, r.emitDir, r.emittedAt)
	if err := r.countAndSubmit(root); err != nil {
		return err
	}

	decoded := graph.NewItem(r.newID(), root.Path+"/"+DecodedFolderName)
	decoded.IsDir = true
	decoded.HasChildren = true
	decoded.SkipHash = true
	decoded.SetParent(root)
	r.decoded = decoded
	r.index.Add(decoded)
	return r.countAndSubmit(decoded)
}

func (r *run) emitDir(_ context.Context, dir *graph.Item) error {
	return r.countAndSubmit(dir)
}

// countAndSubmit emits a folder the report never declared. Those are
// counted here since a list-only pass cannot know them.
func (r *run) countAndSubmit(dir *graph.Item) error {
	r.discovered(1, 0)
	return r.submit(dir, "dir")
}

func (r *run) discovered(n int, bytes int64) {
	if n > 0 {
		r.e.sink.IncDiscoveredCount(n)
		r.result.DiscoveredCount += int64(n)
	}
	if bytes > 0 {
		r.e.sink.IncDiscoveredVolume(bytes)
		r.result.DiscoveredVolume += bytes
	}
	r.e.opts.Metrics.Discovered(n, bytes)
}

func (r *run) emittedAt(path string) (*graph.Item, bool) {
	it, ok := r.emitted[path]
	return it, ok
}

func (r *run) submit(it *graph.Item, kind string) error {
	if survivor, ok := r.aliases[it.ParentID]; ok {
		it.SetParent(survivor)
	}
	if prev, dup := r.emitted[it.Path]; dup {
		r.e.log.Warn("duplicate item path dropped", "path", it.Path, "id", it.ID, "kept", prev.ID)
		r.aliases[it.ID] = prev
		return nil
	}
	if err := r.e.sink.Submit(r.ctx, it); err != nil {
		return fmt.Errorf("submit %s: %w", it.Path, err)
	}
	r.emitted[it.Path] = it
	r.result.Emitted++
	r.e.opts.Metrics.ItemEmitted(kind)
	return nil
}

// -----------------------------------------------------------------------------
// Element start
// -----------------------------------------------------------------------------

func (r *run) start(el xml.StartElement) error {
	r.chars.Reset()
	name := el.Name.Local
	if r.bookmarkDepth > 0 || name == "entityBookmarks" {
		r.bookmarkDepth++
		return nil
	}

	enclosing := r.frames.top()
	f := &frame{name: name, attrs: el.Attr}
	r.frames.push(f)

	switch name {
	case "extractionInfo":
		r.extractions[f.attrOr("id", "")] = f.attrOr("name", "")
	case "file":
		if err := r.ctx.Err(); err != nil {
			return err
		}
		return r.startFile(f)
	case "model":
		if err := r.ctx.Err(); err != nil {
			return err
		}
		if enclosing == nil {
			return nil
		}
		switch enclosing.name {
		case "modelType":
			return r.startTopModel(f)
		case "modelField", "multiModelField":
			return r.startNestedModel(f, enclosing)
		}
	}
	return nil
}

func (r *run) startFile(f *frame) error {
	var size *int64
	if raw, ok := f.attr("size"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			r.e.log.Warn("invalid file size", "size", raw, "path", f.attrOr("path", ""))
		} else {
			size = &n
		}
	}

	if r.e.opts.ListOnly {
		var n int64
		if size != nil {
			n = *size
		}
		r.discovered(1, n)
		return nil
	}

	path := joinPath(r.root.Name, f.attrOr("fs", ""), f.attrOr("path", ""))
	parent, err := r.index.Parent(r.ctx, path)
	if err != nil {
		return err
	}
	it := graph.NewItem(r.newID(), path)
	it.SetParent(parent)
	it.Length = size
	it.IsDeleted = strings.EqualFold(f.attrOr("deleted", ""), "deleted")
	r.fillCommonMeta(it, f)

	f.opened = true
	r.records.push(&record{item: it})
	return nil
}

func (r *run) startTopModel(f *frame) error {
	if r.e.opts.ListOnly {
		r.discovered(1, 0)
		return nil
	}
	typ := f.attrOr("type", "")
	name := typ + "_" + f.attrOr("id", "")
	path := r.decoded.Path + "/" + typ + "/" + name

	parent, err := r.index.Parent(r.ctx, path)
	if err != nil {
		return err
	}
	it := graph.NewItem(r.newID(), path)
	it.SetParent(parent)
	it.MediaType = graph.MediaTypeRecordPrefix + strings.ToLower(typ)
	if r.e.sink.ContainsBlindReportMode() {
		it.Content = &graph.ContentRef{Kind: graph.ContentMetadata}
	}
	it.SkipHash = true
	it.IsDeleted = strings.EqualFold(f.attrOr("deleted_state", ""), "deleted")
	r.fillCommonMeta(it, f)

	f.opened = true
	r.records.push(&record{item: it, typ: typ})
	return nil
}

func (r *run) startNestedModel(f, field *frame) error {
	typ := f.attrOr("type", "")
	merged := classifyRecord(typ) != Emit
	if r.e.opts.ListOnly {
		if !merged {
			r.discovered(1, 0)
		}
		return nil
	}

	top := r.records.top()
	if top == nil {
		r.e.log.Debug("nested record outside any record dropped", "type", typ)
		return nil
	}
	parent := top.item

	name := typ + "_" + f.attrOr("id", "")
	fieldName := field.attrOr("name", "")
	if typ == "Location" && (fieldName == "FromPoint" || fieldName == "ToPoint") {
		name = fieldName + "_" + name
	}
	it := graph.NewItem(r.newID(), parent.Path+"/"+name)
	it.SetParent(parent)
	it.MediaType = graph.MediaTypeRecordPrefix + strings.ToLower(typ)
	it.Content = &graph.ContentRef{Kind: graph.ContentMetadata}
	it.SkipHash = true
	if !merged {
		parent.HasChildren = true
	}
	it.IsDeleted = strings.EqualFold(f.attrOr("deleted_state", ""), "deleted")
	r.fillCommonMeta(it, f)

	f.opened = true
	r.records.push(&record{item: it, typ: typ, nested: true})
	return nil
}

// fillCommonMeta copies record attributes into metadata.
func (r *run) fillCommonMeta(it *graph.Item, f *frame) {
	if f.attrOr("type", "") == "StreetAddress" {
		return
	}
	if name, ok := r.extractions[f.attrOr("extractionId", "")]; ok {
		it.Metadata.Add(graph.KeyExtractionName, name)
	}
	for _, a := range f.attrs {
		if ignoredAttrs[a.Name.Local] {
			continue
		}
		it.Metadata.Add(graph.Meta(a.Name.Local), a.Value)
	}
	if id, ok := it.Metadata.Get(graph.KeySourceID); ok {
		it.IDInSource = id
	}
}

// -----------------------------------------------------------------------------
// Element end
// -----------------------------------------------------------------------------

func (r *run) end(name string) error {
	if r.bookmarkDepth > 0 {
		r.bookmarkDepth--
		r.chars.Reset()
		return nil
	}
	if len(r.frames) == 0 {
		return nil
	}
	f := r.frames.pop()
	text := r.chars.String()
	r.chars.Reset()
	if r.e.opts.ListOnly {
		return nil
	}

	var it *graph.Item
	if top := r.records.top(); top != nil {
		it = top.item
	}
	enclosing := r.frames.top()
	fieldName := f.attrOr("name", "")

	switch name {
	case "item":
		if it == nil {
			return nil
		}
		return r.endItem(it, fieldName, text)

	case "timestamp":
		value := strings.TrimSpace(text)
		if it == nil || value == "" {
			return nil
		}
		return r.endTimestamp(it, fieldName, value)

	case "value":
		if it == nil || enclosing == nil || (enclosing.name != "field" && enclosing.name != "multiField") {
			return nil
		}
		field := enclosing.attrOr("name", "")
		if ignoredFieldNames[field] {
			return nil
		}
		value := strings.TrimSpace(text)
		if f.attrOr("type", "") == "TimeStamp" && value != "" {
			canon, err := canonicalTimestamp(field, value)
			if err != nil {
				r.e.log.Warn("keeping unparsed timestamp", "item", it.Path, "field", field, "value", value, "err", err)
			} else {
				value = canon
			}
		}
		it.Metadata.Add(graph.Meta(field), value)

	case "targetid":
		if it != nil && enclosing != nil && enclosing.name == "jumptargets" {
			it.Metadata.Add(graph.KeyJumpTargets, strings.TrimSpace(text))
		}

	case "file":
		if !f.opened {
			return nil
		}
		if err := r.ctx.Err(); err != nil {
			return err
		}
		return r.finish(r.records.pop())

	case "model":
		if !f.opened {
			return nil
		}
		if err := r.ctx.Err(); err != nil {
			return err
		}
		return r.endModel(r.records.pop(), enclosing)
	}
	return nil
}

func (r *run) endItem(it *graph.Item, field, text string) error {
	switch {
	case field == "Tags" && text == "Configuration":
		it.Category = text
	case field == "Local Path":
		return r.assignContent(it, text)
	case ignoredFieldNames[field] || strings.HasPrefix(strings.ToLower(field), "exif"):
	default:
		if v := strings.TrimSpace(text); v != "" {
			it.Metadata.Add(graph.Meta(field), v)
		}
	}
	return nil
}

func (r *run) endTimestamp(it *graph.Item, field, value string) error {
	switch field {
	case "CreationTime", "ModifyTime", "AccessTime":
		t, err := parseTimestamp(field, value)
		if err != nil {
			return err
		}
		switch field {
		case "CreationTime":
			it.Created = &t
		case "ModifyTime":
			it.Modified = &t
		default:
			it.Accessed = &t
		}
	case "TimeStamp":
		canon, err := canonicalTimestamp(field, value)
		if err != nil {
			return err
		}
		it.Metadata.Add(graph.Meta(field), canon)
	default:
		it.Metadata.Add(graph.Meta(field), value)
	}
	return nil
}

func (r *run) assignContent(it *graph.Item, declared string) error {
	if r.e.resolver == nil {
		return nil
	}
	ok, err := r.e.resolver.Assign(it, declared)
	if err != nil {
		return err
	}
	if !ok && strings.TrimSpace(declared) != "" {
		r.e.opts.Metrics.ContentUnresolved()
	}
	return nil
}

func (r *run) endModel(rec *record, field *frame) error {
	it := rec.item
	var parent *record
	if rec.nested {
		parent = r.records.top()
	}

	switch rec.typ {
	case "Contact", "UserAccount":
		if r.e.previews != nil {
			if err := r.e.previews.Contact(it); err != nil {
				return err
			}
		}
	case "Email":
		if r.e.previews != nil {
			if err := r.e.previews.Email(it); err != nil {
				return err
			}
		}
	case "Attachment":
		if err := r.handleAttachment(it); err != nil {
			return err
		}
		if parent != nil && strings.Contains(parent.item.MediaType, "email") {
			parent.item.Metadata.Add(graph.KeyEmailAttachNames, it.Name)
		}
	case "Chat":
		source, _ := it.Metadata.Get(graph.Meta("Source"))
		if strings.EqualFold(source, "whatsapp") && r.e.opts.PhoneParsers != PhoneParsersInternal {
			it.MediaType = graph.MediaTypeChatWhatsApp
		}
		it.SetAttribute(graph.AttrTreeNode, "true")
	}
	if isMessageLike(rec.typ) {
		renameMessageFields(it.Metadata)
	}

	kind := classifyRecord(rec.typ)
	if kind == Emit || parent == nil {
		return r.finish(rec)
	}

	fieldName := ""
	if field != nil {
		fieldName = field.attrOr("name", "")
	}
	mergeInto(kind, it, parent.item, fieldName)
	r.result.Merged++
	r.e.opts.Metrics.RecordMerged(rec.typ)

	// Anything emitted below a merged record moves up to the record it was
	// merged into, dropping the merged record's segment from its path.
	prefix := it.Path + "/"
	for _, p := range rec.pending {
		if p.item.ParentID == it.ID {
			p.item.SetParent(parent.item)
			parent.item.HasChildren = true
		} else if strings.HasPrefix(p.item.ParentPath, prefix) {
			p.item.ParentPath = parent.item.Path + "/" + strings.TrimPrefix(p.item.ParentPath, prefix)
		}
		if strings.HasPrefix(p.item.Path, prefix) {
			p.item.Path = parent.item.Path + "/" + strings.TrimPrefix(p.item.Path, prefix)
		}
	}
	parent.pending = append(parent.pending, rec.pending...)
	return nil
}

func (r *run) handleAttachment(it *graph.Item) error {
	if name, ok := it.Metadata.Get(graph.Meta("Filename")); ok {
		it.Name = preview.Truncate(name, r.e.opts.MaxNameLength)
	}
	declared, _ := it.Metadata.Get(graph.KeyAttachmentPath)
	if err := r.assignContent(it, declared); err != nil {
		return err
	}
	if it.Content == nil {
		if raw, ok := it.Metadata.Get(graph.Meta("Size")); ok {
			if n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
				it.SetLength(n)
			}
		}
	}
	return nil
}

// finish emits a record, or parks it on its parent record when that one is
// still open, so parents always reach the sink before their children.
func (r *run) finish(rec *record) error {
	if rec.nested {
		if parent := r.records.top(); parent != nil {
			parent.pending = append(parent.pending, rec)
			parent.pending = append(parent.pending, rec.pending...)
			rec.pending = nil
			return nil
		}
	}
	if err := r.emitRecord(rec); err != nil {
		return err
	}
	for _, p := range rec.pending {
		if err := r.emitRecord(p); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) emitRecord(rec *record) error {
	if rec.typ == "" {
		return r.submit(rec.item, "file")
	}
	r.discovered(0, rec.item.ContentSize())
	return r.submit(rec.item, rec.typ)
}

func joinPath(parts ...string) string {
	var segs []string
	for _, p := range parts {
		for _, s := range strings.Split(p, "/") {
			if s != "" {
				segs = append(segs, s)
			}
		}
	}
	return strings.Join(segs, "/")
}

// xmlCleaner blanks control bytes that XML 1.0 forbids. Some extractors
// leave them in free-text fields.
type xmlCleaner struct{ r io.Reader }

func (c xmlCleaner) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	for i := 0; i < n; i++ {
		if b := p[i]; b < 0x20 && b != '\t' && b != '\n' && b != '\r' {
			p[i] = ' '
		}
	}
	return n, err
}
