package ingest

import (
	"bytes"
	"context"
	"testing"

	"github.com/agentic-research/evidencegraph/internal/content"
	"github.com/agentic-research/evidencegraph/internal/graph"
	"github.com/agentic-research/evidencegraph/internal/preview"
	"github.com/agentic-research/evidencegraph/internal/reportgen"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func synthetic(tb testing.TB, o reportgen.Options) []byte {
	tb.Helper()
	var buf bytes.Buffer
	require.NoError(tb, reportgen.Write(&buf, o))
	return buf.Bytes()
}

func TestRun_SyntheticReport(t *testing.T) {
	h := newHarness()
	res := h.run(t, string(synthetic(t, reportgen.Default)))

	items := h.store.Items()
	assertTree(t, items)
	assert.Equal(t, len(items), res.Emitted)

	counts := make(map[string]int)
	for _, it := range items {
		if it.MediaType != "" {
			counts[it.MediaType]++
		}
	}
	assert.Equal(t, reportgen.Default.Contacts, counts[graph.MediaTypeRecordPrefix+"contact"])
	assert.Equal(t, reportgen.Default.Chats, counts[graph.MediaTypeChatWhatsApp])
	assert.Equal(t, reportgen.Default.Chats*reportgen.Default.MessagesPerChat, counts[graph.MediaTypeRecordPrefix+"instantmessage"])
	assert.Equal(t, reportgen.Default.Emails, counts[graph.MediaTypeEmail])
	assert.Equal(t, reportgen.Default.Contacts*2+reportgen.Default.Chats*reportgen.Default.MessagesPerChat+reportgen.Default.Emails*2, res.Merged)
}

func BenchmarkRun(b *testing.B) {
	doc := synthetic(b, reportgen.Options{Seed: 7, Files: 2000, Contacts: 500, Chats: 50, MessagesPerChat: 40, Emails: 200, DirFanout: 8})
	b.SetBytes(int64(len(doc)))
	b.ReportAllocs()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res := content.NewResolver(memfs.New(), nil, nil)
		e := NewEngine(graph.NewMemoryStore(), res, preview.New(memfs.New(), res), Options{EvidenceName: "bench"})
		if _, err := e.Run(context.Background(), bytes.NewReader(doc)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRun_ListOnly(b *testing.B) {
	doc := synthetic(b, reportgen.Options{Seed: 7, Files: 2000, Contacts: 500, Chats: 50, MessagesPerChat: 40, Emails: 200, DirFanout: 8})
	b.SetBytes(int64(len(doc)))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e := NewEngine(graph.NewMemoryStore(), content.NewResolver(memfs.New(), nil, nil), nil, Options{EvidenceName: "bench", ListOnly: true})
		if _, err := e.Run(context.Background(), bytes.NewReader(doc)); err != nil {
			b.Fatal(err)
		}
	}
}
