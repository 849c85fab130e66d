package ingest

import (
	"bytes"
	"context"
	"testing"

	"github.com/agentic-research/evidencegraph/internal/content"
	"github.com/agentic-research/evidencegraph/internal/graph"
	"github.com/agentic-research/evidencegraph/internal/preview"
	"github.com/go-git/go-billy/v5/memfs"
)

// FuzzRun feeds arbitrary documents to the engine. Errors are fine; panics
// and malformed trees are not.
func FuzzRun(f *testing.F) {
	f.Add([]byte(report(fileReport)))
	f.Add([]byte(report(emailReport)))
	f.Add([]byte(report(`<decodedData><modelType type="Chat"><model type="Chat" id="1"><multiModelField name="Messages"><model type="InstantMessage" id="2"/></multiModelField></model></modelType></decodedData>`)))
	f.Add([]byte(`<project><bookmark><file path="a"/></bookmark></project>`))

	f.Fuzz(func(t *testing.T, doc []byte) {
		store := graph.NewMemoryStore()
		res := content.NewResolver(memfs.New(), nil, nil)
		e := NewEngine(store, res, preview.New(memfs.New(), res), Options{EvidenceName: "fz"})
		_, _ = e.Run(context.Background(), bytes.NewReader(doc))

		seen := make(map[string]bool)
		for _, it := range store.Items() {
			if seen[it.Path] {
				t.Fatalf("duplicate path %s", it.Path)
			}
			if !it.IsRoot && !seen[it.ParentPath] {
				t.Fatalf("%s emitted before %s", it.Path, it.ParentPath)
			}
			seen[it.Path] = true
		}
	})
}
