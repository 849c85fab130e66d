package ingest

import (
	"encoding/xml"

	"github.com/agentic-research/evidencegraph/internal/graph"
)

// frame is one open element.
type frame struct {
	name  string
	attrs []xml.Attr
	// opened is set when the element pushed a record.
	opened bool
}

func (f *frame) attr(name string) (string, bool) {
	for _, a := range f.attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func (f *frame) attrOr(name, def string) string {
	if v, ok := f.attr(name); ok {
		return v
	}
	return def
}

// record is an item under construction.
type record struct {
	item *graph.Item
	// typ is the decoded record type, empty for file records.
	typ    string
	nested bool
	// pending holds finished descendants, in emission order, that wait for
	// this record to be emitted first.
	pending []*record
}

type frameStack []*frame

func (s *frameStack) push(f *frame) { *s = append(*s, f) }

func (s *frameStack) pop() *frame {
	old := *s
	f := old[len(old)-1]
	*s = old[:len(old)-1]
	return f
}

func (s frameStack) top() *frame {
	if len(s) == 0 {
		return nil
	}
	return s[len(s)-1]
}

type recordStack []*record

func (s *recordStack) push(r *record) { *s = append(*s, r) }

func (s *recordStack) pop() *record {
	old := *s
	r := old[len(old)-1]
	*s = old[:len(old)-1]
	return r
}

func (s recordStack) top() *record {
	if len(s) == 0 {
		return nil
	}
	return s[len(s)-1]
}
