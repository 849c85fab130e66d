package graph

import "context"

// Submit stores an emitted item. A cancelled context aborts before the
// item becomes visible.
func (s *MemoryStore) Submit(ctx context.Context, it *Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Add(it)
}

func (s *MemoryStore) IncDiscoveredCount(n int) {
	s.mu.Lock()
	s.discoveredCount += int64(n)
	s.mu.Unlock()
}

func (s *MemoryStore) IncDiscoveredVolume(bytes int64) {
	s.mu.Lock()
	s.discoveredVolume += bytes
	s.mu.Unlock()
}

func (s *MemoryStore) ContainsBlindReportMode() bool {
	return s.blindReport
}
