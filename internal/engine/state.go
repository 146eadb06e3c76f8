package engine

import (
	"sync"

	"github.com/dlqueue/dlq/internal/chunkplan"
	"github.com/dlqueue/dlq/internal/journal"
)

// sharedState guards the chunk table one engine invocation mutates from
// many concurrent workers. Readers (journal snapshots) take the read
// lock; the update path (advancing current, marking finished) takes the
// write lock, matching the lock discipline an RWMutex-backed download
// state is expected to follow.
type sharedState struct {
	mu        sync.RWMutex
	url       string
	totalSize uint64
	chunks    []chunkplan.Chunk
}

func newSharedState(s journal.State) *sharedState {
	return &sharedState{url: s.URL, totalSize: *s.TotalSize, chunks: s.ToChunks()}
}

// advance sets the chunk at index to the absolute offset current and the
// given finished flag, and returns a point-in-time journal snapshot to
// persist.
func (s *sharedState) advance(index int, current uint64, finished bool) journal.State {
	s.mu.Lock()
	s.chunks[index].Current = current
	s.chunks[index].Finished = finished
	s.mu.Unlock()
	return s.snapshot()
}

func (s *sharedState) snapshot() journal.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]chunkplan.Chunk, len(s.chunks))
	copy(cp, s.chunks)
	return journal.FromChunks(s.url, s.totalSize, cp)
}

func (s *sharedState) chunk(index int) chunkplan.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chunks[index]
}
