// Package preview renders the flat HTML documents that replace the
// structured payload of contact and email records.
package preview

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/agentic-research/evidencegraph/internal/graph"
	"github.com/agentic-research/evidencegraph/internal/telemetry"
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Output subtrees below the preview filesystem.
const (
	EmailDir   = "view/emails"
	ContactDir = "view/contacts"
)

// DefaultMaxNameLength bounds rewritten display names.
const DefaultMaxNameLength = 4096

// AvatarSource loads avatar images by their report path.
type AvatarSource interface {
	ReadAvatar(path string) ([]byte, bool, error)
}

const head = `<!DOCTYPE html>
<html>
<head>
<meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
</head>
`

var emailTmpl = template.Must(template.New("email").Parse(head +
	`<body>{{range .Headers}}<b>{{.Label}}:</b>{{range .Values}} {{.}}{{end}}<br>{{end}}` +
	`{{if .Attachments}}<b>Attachments ({{len .Attachments}}):</b><br>{{range .Attachments}}{{.}}<br>{{end}}{{end}}` +
	`<hr>{{.Body}}</body></html>`))

var contactTmpl = template.Must(template.New("contact").Parse(head +
	"<body>\n" +
	`{{if .Avatar}}<img src="{{.Avatar}}" width="150"/><br>` + "\n{{end}}" +
	`{{range .Fields}}{{.Key}}: {{range $i, $v := .Values}}{{if $i}} | {{end}}{{$v}}{{end}}<br>{{end}}` +
	`</body></html>`))

type header struct {
	Label  string
	Values []string
}

type field struct {
	Key    string
	Values []string
}

type emailView struct {
	Headers     []header
	Attachments []string
	Body        string
}

type contactView struct {
	Avatar template.URL
	Fields []field
}

// Materializer writes preview documents to an output filesystem and points
// the records at them.
type Materializer struct {
	out           billy.Filesystem
	avatars       AvatarSource
	log           *slog.Logger
	metrics       *telemetry.Collector
	maxNameLength int
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(m *Materializer) { m.log = log }
}

// WithMetrics counts written previews on c.
func WithMetrics(c *telemetry.Collector) Option {
	return func(m *Materializer) { m.metrics = c }
}

// WithMaxNameLength bounds rewritten display names, in characters.
func WithMaxNameLength(n int) Option {
	return func(m *Materializer) {
		if n > 0 {
			m.maxNameLength = n
		}
	}
}

// New returns a Materializer writing below out. avatars may be nil.
func New(out billy.Filesystem, avatars AvatarSource, opts ...Option) *Materializer {
	m := &Materializer{
		out:           out,
		avatars:       avatars,
		log:           slog.Default(),
		maxNameLength: DefaultMaxNameLength,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Email renders an email record. The body is moved out of the metadata and
// into the document, which becomes the record's only content.
func (m *Materializer) Email(it *graph.Item) error {
	md := it.Metadata
	v := emailView{}
	for _, h := range []struct{ label, key string }{
		{"Subject", graph.Meta("Subject")},
		{"From", graph.KeyMessageFrom},
		{"To", graph.KeyMessageTo},
		{"Cc", graph.KeyMessageCc},
		{"Bcc", graph.KeyMessageBcc},
		{"Date", graph.Meta("TimeStamp")},
	} {
		if vals := md.Values(h.key); len(vals) > 0 {
			v.Headers = append(v.Headers, header{Label: h.label, Values: vals})
		}
	}
	v.Attachments = md.Values(graph.KeyEmailAttachNames)

	bodyKey := graph.Meta("Body")
	body, ok := md.Get(bodyKey)
	md.Remove(bodyKey)
	if !ok {
		body, _ = md.Get(graph.Meta("Snippet"))
	}
	v.Body = body

	var buf bytes.Buffer
	if err := emailTmpl.Execute(&buf, v); err != nil {
		return fmt.Errorf("render email %d: %w", it.ID, err)
	}
	rel := path.Join(EmailDir, "view-"+strconv.Itoa(it.ID)+".html")
	if err := m.write(rel, buf.Bytes()); err != nil {
		return err
	}

	it.ClearContent()
	it.MediaType = graph.MediaTypeEmail
	it.Content = &graph.ContentRef{Kind: graph.ContentPreview, Path: rel}
	it.SetLength(int64(buf.Len()))
	m.metrics.PreviewWritten("email")
	return nil
}

// Contact renders a contact or user account record: an optional inline
// avatar followed by every metadata field in key order. The display name is
// rewritten from the Name or Username field.
func (m *Materializer) Contact(it *graph.Item) error {
	md := it.Metadata
	name, ok := md.Get(graph.Meta("Name"))
	if !ok {
		name, ok = md.Get(graph.Meta("Username"))
	}
	if ok {
		prefix := ""
		for i := 0; i < len(it.Name); i++ {
			if it.Name[i] == '_' {
				prefix = it.Name[:i+1]
				break
			}
		}
		it.Name = Truncate(prefix+name, m.maxNameLength)
	}

	v := contactView{}
	if avatarPath, ok := md.Get(graph.KeyAvatarPath); ok {
		md.Remove(graph.KeyAvatarPath)
		if data := m.readAvatar(it, avatarPath); data != nil {
			v.Avatar = template.URL("data:image/jpg;base64," + base64.StdEncoding.EncodeToString(data))
			it.Thumbnail = data
		}
	}

	keys := md.Names()
	sort.Strings(keys)
	for _, k := range keys {
		v.Fields = append(v.Fields, field{Key: k, Values: md.Values(k)})
	}

	var buf bytes.Buffer
	if err := contactTmpl.Execute(&buf, v); err != nil {
		return fmt.Errorf("render contact %d: %w", it.ID, err)
	}
	rel := path.Join(ContactDir, "view-"+strconv.Itoa(it.ID)+".html")
	if err := m.write(rel, buf.Bytes()); err != nil {
		return err
	}

	it.Content = &graph.ContentRef{Kind: graph.ContentPreview, Path: rel}
	it.SetLength(int64(buf.Len()))
	it.SkipHash = false
	m.metrics.PreviewWritten("contact")
	return nil
}

func (m *Materializer) readAvatar(it *graph.Item, avatarPath string) []byte {
	if m.avatars == nil {
		return nil
	}
	data, ok, err := m.avatars.ReadAvatar(avatarPath)
	if err != nil {
		m.log.Warn("read avatar failed", "item", it.Path, "avatar", avatarPath, "err", err)
		return nil
	}
	if !ok {
		m.log.Debug("avatar not found", "item", it.Path, "avatar", avatarPath)
		return nil
	}
	return data
}

func (m *Materializer) write(rel string, data []byte) error {
	if err := m.out.MkdirAll(path.Dir(rel), 0o755); err != nil {
		return fmt.Errorf("create preview dir: %w", err)
	}
	if err := util.WriteFile(m.out, rel, data, 0o644); err != nil {
		return fmt.Errorf("write preview %s: %w", rel, err)
	}
	return nil
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
