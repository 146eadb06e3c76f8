// Package journal persists the per-file download state that lets an
// interrupted ranged download resume without re-fetching finished chunks.
package journal

import (
	"encoding/json"
	"os"

	"github.com/dlqueue/dlq/internal/chunkplan"
	"github.com/dlqueue/dlq/internal/errs"
)

// ChunkState is the on-disk shape of one chunkplan.Chunk.
type ChunkState struct {
	Index      int    `json:"index"`
	Start      uint64 `json:"start"`
	End        uint64 `json:"end"`
	Current    uint64 `json:"current"`
	IsFinished bool   `json:"is_finished"`
}

// State is the durable record for one in-flight file: origin URL, size (if
// known), and per-chunk progress. A journal with an empty Chunks slice and
// Streaming true carries no resume information.
type State struct {
	URL       string       `json:"url"`
	TotalSize *uint64      `json:"total_size"`
	Chunks    []ChunkState `json:"chunks"`
	Streaming bool         `json:"is_streaming"`
}

// FromChunks builds a journal State from a chunk plan for a ranged
// download of the given URL and size.
func FromChunks(url string, totalSize uint64, chunks []chunkplan.Chunk) State {
	cs := make([]ChunkState, len(chunks))
	for i, c := range chunks {
		cs[i] = ChunkState{Index: c.Index, Start: c.Start, End: c.End, Current: c.Current, IsFinished: c.Finished}
	}
	return State{URL: url, TotalSize: &totalSize, Chunks: cs}
}

// ToChunks converts the journal's chunk states back into chunkplan.Chunk
// values, preserving resume position.
func (s State) ToChunks() []chunkplan.Chunk {
	out := make([]chunkplan.Chunk, len(s.Chunks))
	for i, c := range s.Chunks {
		out[i] = chunkplan.Chunk{Index: c.Index, Start: c.Start, End: c.End, Current: c.Current, Finished: c.IsFinished}
	}
	return out
}

// Path returns the journal file path for a given destination file.
func Path(dest string) string {
	return dest + ".json"
}

// Load reads the journal at path. A missing file is not an error: it
// returns (nil, nil), signalling a fresh download.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.Journal, "reading journal", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errs.Wrap(errs.Journal, "parsing journal", err)
	}
	return &s, nil
}

// Save atomically rewrites the journal. It writes to a temp file in the
// same directory and renames over the destination so a crash mid-write
// never leaves a truncated journal.
func Save(path string, s State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return errs.Wrap(errs.Journal, "encoding journal", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.Wrap(errs.Journal, "writing journal", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errs.Wrap(errs.Journal, "renaming journal into place", err)
	}
	return nil
}

// Delete removes the journal file. A missing file is not an error.
func Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.Journal, "deleting journal", err)
	}
	return nil
}
