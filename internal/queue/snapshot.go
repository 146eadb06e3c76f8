package queue

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/dlqueue/dlq/internal/errs"
	"github.com/gofrs/flock"
)

// saveSnapshot writes doc to path, pretty-printed, guarded by an
// exclusive file lock so concurrent dlq invocations against the same
// queue.json never interleave writes. The lock guards only the snapshot
// file, not the whole process, unlike the teacher's original
// single-instance lock.
func saveSnapshot(path string, doc snapshotDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errs.Wrap(errs.Journal, "encoding queue snapshot", err)
	}

	lock := flock.New(path + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		return errs.Wrap(errs.Journal, "acquiring queue snapshot lock", err)
	}
	defer lock.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.Wrap(errs.Journal, "writing queue snapshot", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errs.Wrap(errs.Journal, "renaming queue snapshot into place", err)
	}
	return nil
}

func decodeSnapshot(data []byte) (snapshotDoc, error) {
	var doc snapshotDoc
	err := json.Unmarshal(data, &doc)
	return doc, err
}
