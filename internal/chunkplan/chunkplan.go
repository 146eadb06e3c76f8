// Package chunkplan computes the fixed partition of a file's byte range
// into per-worker chunks.
package chunkplan

import "fmt"

// Chunk is one half-open-at-the-end-plus-one byte interval assigned to a
// single worker, with its own resumable cursor.
type Chunk struct {
	Index    int
	Start    uint64
	End      uint64 // inclusive
	Current  uint64
	Finished bool
}

// Build partitions [0, totalSize) into ceil(totalSize/chunkSize) chunks of
// at most chunkSize bytes each. It is pure and deterministic: the same
// inputs always produce the same plan.
func Build(totalSize, chunkSize uint64) ([]Chunk, error) {
	if totalSize == 0 {
		return nil, fmt.Errorf("chunkplan: total size must be positive")
	}
	if chunkSize == 0 {
		return nil, fmt.Errorf("chunkplan: chunk size must be positive")
	}

	count := (totalSize + chunkSize - 1) / chunkSize
	chunks := make([]Chunk, 0, count)
	for i := uint64(0); i < count; i++ {
		start := i * chunkSize
		end := start + chunkSize - 1
		if end >= totalSize {
			end = totalSize - 1
		}
		chunks = append(chunks, Chunk{
			Index:   int(i),
			Start:   start,
			End:     end,
			Current: start,
		})
	}
	return chunks, nil
}
