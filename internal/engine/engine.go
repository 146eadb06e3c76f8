// Package engine drives one download: it probes the origin, chooses
// ranged or streaming mode, fans out chunk workers under a permit pool,
// and emits a progress-event stream.
package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dlqueue/dlq/internal/chunkplan"
	"github.com/dlqueue/dlq/internal/client"
	"github.com/dlqueue/dlq/internal/errs"
	"github.com/dlqueue/dlq/internal/events"
	"github.com/dlqueue/dlq/internal/journal"
	"github.com/dlqueue/dlq/internal/limiter"
	"github.com/dlqueue/dlq/internal/utils"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Mode forces or auto-selects between ranged and streaming downloads.
type Mode int

const (
	Auto Mode = iota
	Streaming
)

// Config is the per-task set of engine knobs; Client carries the
// networking configuration (timeout, headers, proxy, user-agent).
type Config struct {
	MaxConcurrent int
	ChunkSize     uint64
	Mode          Mode
	SpeedLimit    int64         // bytes/sec, 0 disables limiting
	RetryBackoff  time.Duration // defaults to 2s; overridable for tests
}

const (
	maxChunkAttempts    = 6
	defaultRetryBackoff = 2 * time.Second
	readBufSize         = 32 * 1024
)

// Run performs one download of url into dest, resuming from an existing
// journal if present, and emits progress events on sink. Sink sends are
// non-blocking: a slow subscriber drops events rather than stalling the
// download.
func Run(ctx context.Context, c *client.Client, rawURL, dest string, cfg Config, sink chan<- any) error {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 10 << 20
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}

	journalPath := journal.Path(dest)
	state, err := journal.Load(journalPath)
	if err != nil {
		return err
	}
	if state != nil && state.URL != rawURL {
		utils.Debug("journal URL mismatch for %s, discarding", dest)
		state = nil
	}

	if state == nil {
		probe, err := c.Probe(ctx, rawURL)
		if err != nil {
			return err
		}
		if probe.HasTotalSize && probe.TotalSize == 0 {
			return errs.New(errs.Origin, "origin reports zero-length content")
		}
		useStreaming := cfg.Mode == Streaming || !probe.HasTotalSize || !probe.AcceptsRanges
		if useStreaming {
			return runStreaming(ctx, c, rawURL, dest, cfg, sink)
		}
		chunks, err := chunkplan.Build(probe.TotalSize, cfg.ChunkSize)
		if err != nil {
			return errs.Wrap(errs.Origin, "building chunk plan", err)
		}
		fresh := journal.FromChunks(rawURL, probe.TotalSize, chunks)
		state = &fresh
		if err := preallocate(dest, probe.TotalSize); err != nil {
			return err
		}
		if err := journal.Save(journalPath, *state); err != nil {
			return err
		}
	}

	if state.Streaming {
		return runStreaming(ctx, c, rawURL, dest, cfg, sink)
	}
	return runRanged(ctx, c, rawURL, dest, journalPath, *state, cfg, sink)
}

func preallocate(dest string, size uint64) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.Wrap(errs.FileSystem, "creating destination file", err)
	}
	defer f.Close()
	if err := f.Truncate(int64(size)); err != nil {
		return errs.Wrap(errs.FileSystem, "preallocating destination file", err)
	}
	return nil
}

func emit(sink chan<- any, ev any) {
	select {
	case sink <- ev:
	default:
	}
}

func runRanged(ctx context.Context, c *client.Client, rawURL, dest, journalPath string, state journal.State, cfg Config, sink chan<- any) error {
	emit(sink, events.Initialized{TotalSize: *state.TotalSize})

	f, err := os.OpenFile(dest, os.O_WRONLY, 0o644)
	if err != nil {
		return errs.Wrap(errs.FileSystem, "opening destination file", err)
	}
	defer f.Close()

	lim := limiter.New(cfg.SpeedLimit)
	shared := newSharedState(state)

	// Journal mutations are serialized through a dedicated goroutine so
	// concurrent chunk workers never race on the on-disk file.
	saveCh := make(chan journal.State, cfg.MaxConcurrent)
	saveErrCh := make(chan error, 1)
	go func() {
		var lastErr error
		for s := range saveCh {
			if err := journal.Save(journalPath, s); err != nil {
				lastErr = err
			}
		}
		saveErrCh <- lastErr
	}()

	sem := semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	group, gctx := errgroup.WithContext(ctx)

	for i := range shared.chunks {
		index := i
		if shared.chunks[index].Finished {
			continue
		}
		group.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			return downloadChunk(gctx, c, rawURL, f, index, shared, lim, cfg.RetryBackoff, saveCh, sink)
		})
	}

	runErr := group.Wait()
	close(saveCh)
	saveErr := <-saveErrCh

	if runErr != nil {
		return runErr
	}
	if saveErr != nil {
		return saveErr
	}

	if err := journal.Delete(journalPath); err != nil {
		return err
	}
	emit(sink, events.Finished{})
	return nil
}

func downloadChunk(ctx context.Context, c *client.Client, rawURL string, f *os.File, index int, shared *sharedState, lim *limiter.Limiter, backoff time.Duration, saveCh chan<- journal.State, sink chan<- any) error {
	var lastErr error
	for attempt := 0; attempt < maxChunkAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			utils.Debug("retrying chunk %d, attempt %d", index, attempt+1)
		}

		err := streamChunk(ctx, c, rawURL, f, index, shared, lim, saveCh, sink)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return errs.Wrap(errs.Transport, fmt.Sprintf("chunk %d failed after %d attempts", index, maxChunkAttempts), lastErr)
}

func streamChunk(ctx context.Context, c *client.Client, rawURL string, f *os.File, index int, shared *sharedState, lim *limiter.Limiter, saveCh chan<- journal.State, sink chan<- any) error {
	chunk := shared.chunk(index)

	resp, err := c.RangedGet(ctx, rawURL, chunk.Current, chunk.End)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	buf := make([]byte, readBufSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := f.WriteAt(buf[:n], int64(chunk.Current)); err != nil {
				return errs.Wrap(errs.FileSystem, "writing chunk", err)
			}
			chunk.Current += uint64(n)

			if err := lim.Wait(ctx, n); err != nil {
				return err
			}

			emit(sink, events.ChunkUpdated{ChunkIndex: index, Delta: uint64(n)})
			saveCh <- shared.advance(index, chunk.Current, false)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return errs.Wrap(errs.Transport, "reading chunk stream", readErr)
		}
	}

	if chunk.Current != chunk.End+1 {
		return errs.New(errs.Transport, fmt.Sprintf("chunk %d ended short: at %d, want %d", index, chunk.Current, chunk.End+1))
	}
	saveCh <- shared.advance(index, chunk.Current, true)
	return nil
}

func runStreaming(ctx context.Context, c *client.Client, rawURL, dest string, cfg Config, sink chan<- any) error {
	resp, err := c.PlainGet(ctx, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errs.Wrap(errs.FileSystem, "creating destination file", err)
	}
	defer f.Close()

	lim := limiter.New(cfg.SpeedLimit)
	buf := make([]byte, readBufSize)
	var downloaded uint64

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return errs.Wrap(errs.FileSystem, "writing stream", err)
			}
			downloaded += uint64(n)
			if err := lim.Wait(ctx, n); err != nil {
				return err
			}
			emit(sink, events.StreamUpdated{Downloaded: downloaded})
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return errs.Wrap(errs.Transport, "reading stream", readErr)
		}
	}

	emit(sink, events.Finished{})
	return nil
}
