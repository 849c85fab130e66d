package ingest

import (
	"context"

	"github.com/agentic-research/evidencegraph/internal/graph"
)

// Sink receives the items produced by a run. Implementations are shared with
// other ingestion runs and must do their own locking.
type Sink interface {
	IncDiscoveredCount(n int)
	IncDiscoveredVolume(bytes int64)
	// Submit hands over a finished item. It may block, and must return the
	// context's error when ctx is cancelled while waiting.
	Submit(ctx context.Context, it *graph.Item) error
	// ContainsBlindReportMode reports whether decoded records without real
	// content should carry their metadata as content.
	ContainsBlindReportMode() bool
}

// Result summarizes a run.
type Result struct {
	Emitted          int
	Merged           int
	DiscoveredCount  int64
	DiscoveredVolume int64
	// Canceled is set when the context was cancelled mid-run. Items emitted
	// before that point stay emitted.
	Canceled bool
}

var (
	_ Sink = (*graph.MemoryStore)(nil)
	_ Sink = (*graph.SQLiteWriter)(nil)
)
