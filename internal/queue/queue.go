// Package queue implements the task-queue supervisor: admission control,
// the task lifecycle state machine, event fan-out, and durable snapshot
// persistence.
package queue

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dlqueue/dlq/internal/client"
	"github.com/dlqueue/dlq/internal/engine"
	"github.com/dlqueue/dlq/internal/errs"
	"github.com/dlqueue/dlq/internal/events"
	"github.com/dlqueue/dlq/internal/journal"
	"github.com/dlqueue/dlq/internal/speedwindow"
	"github.com/dlqueue/dlq/internal/task"
	"github.com/dlqueue/dlq/internal/utils"
	"github.com/dlqueue/dlq/internal/verify"
	"github.com/google/uuid"
)

// Config is the engine/client configuration applied uniformly to every
// task this supervisor runs; per-task overrides are limited to checksum
// and priority, carried on the task row itself.
type Config struct {
	MaxConcurrentTasks int
	ClientConfig       client.Config
	EngineConfig       engine.Config
	SnapshotPath       string

	// NoAutoStart disables admission entirely: Add/Resume/Cancel persist
	// their status change but never spawn an engine invocation. Used by
	// CLI commands that only manipulate the on-disk snapshot (add, ls,
	// pause, resume, rm) and exit immediately; "dlq get" leaves this
	// false so it can actually run the task it submits.
	NoAutoStart bool
}

type activeDownload struct {
	cancel context.CancelFunc
}

// Supervisor owns the task table and the queue snapshot file. It admits
// up to MaxConcurrentTasks engine invocations at a time and republishes
// their progress as QueueEvents.
type Supervisor struct {
	cfg Config

	tasksMu sync.RWMutex
	tasks   map[string]task.DownloadTask
	order   []string // insertion order, for FIFO-within-priority

	activeMu sync.Mutex // taken AFTER tasksMu, never the reverse
	active   map[string]activeDownload

	eventCh chan any

	newClient func(client.Config) (*client.Client, error)
	now       func() time.Time
}

// New constructs a Supervisor. Call Load to rehydrate from a prior
// snapshot before submitting new tasks.
func New(cfg Config) *Supervisor {
	if cfg.MaxConcurrentTasks <= 0 {
		cfg.MaxConcurrentTasks = 1
	}
	return &Supervisor{
		cfg:       cfg,
		tasks:     make(map[string]task.DownloadTask),
		active:    make(map[string]activeDownload),
		eventCh:   make(chan any, 1024),
		newClient: client.New,
		now:       time.Now,
	}
}

// Events returns the queue-wide event stream. Sends are non-blocking: a
// lagging subscriber misses idempotent summary events rather than
// stalling the supervisor.
func (s *Supervisor) Events() <-chan any {
	return s.eventCh
}

func (s *Supervisor) emit(ev any) {
	select {
	case s.eventCh <- ev:
	default:
	}
}

// Load rehydrates the task table from the snapshot file, if one exists.
// Any task loaded as Downloading is demoted to Paused, since no worker is
// actually running after a restart.
func (s *Supervisor) Load() error {
	data, err := os.ReadFile(s.cfg.SnapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.Wrap(errs.Journal, "reading queue snapshot", err)
	}

	snap, err := decodeSnapshot(data)
	if err != nil {
		return errs.Wrap(errs.Journal, "parsing queue snapshot", err)
	}

	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	for _, t := range snap.Tasks {
		if t.Status == task.Downloading {
			t.Status = task.Paused
		}
		s.tasks[t.ID] = t
		s.order = append(s.order, t.ID)
	}
	return nil
}

// AddOptions carries the per-submission parameters the caller controls.
type AddOptions struct {
	Priority   task.Priority
	Checksum   string
	AutoRename bool
}

// Add records a new Pending task, persists the snapshot, emits
// TaskAdded, and re-drives admission. If AutoRename is set and dest
// already exists, it is suffixed " (1)", " (2)", ... until free.
func (s *Supervisor) Add(url, dest string, opts AddOptions) (string, error) {
	if opts.AutoRename {
		dest = uniqueDest(dest)
	}

	id := uuid.NewString()
	t := task.DownloadTask{
		ID:        id,
		URL:       url,
		Dest:      dest,
		Status:    task.Pending,
		Priority:  opts.Priority,
		CreatedAt: s.now().Unix(),
		Checksum:  opts.Checksum,
	}

	s.tasksMu.Lock()
	s.tasks[id] = t
	s.order = append(s.order, id)
	s.tasksMu.Unlock()

	if err := s.saveSnapshot(); err != nil {
		return "", err
	}
	s.emit(events.TaskAdded{TaskID: id})
	s.processQueue()
	return id, nil
}

func uniqueDest(dest string) string {
	if _, err := os.Stat(dest); err != nil {
		return dest
	}
	ext := filepath.Ext(dest)
	base := dest[:len(dest)-len(ext)]
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if _, err := os.Stat(candidate); err != nil {
			return candidate
		}
	}
}

// Pause aborts the running worker for a Downloading task and transitions
// it to Paused. The journal is left on disk so resume picks up where it
// left off.
func (s *Supervisor) Pause(id string) error {
	s.tasksMu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.tasksMu.Unlock()
		return errs.New(errs.NotFound, fmt.Sprintf("task %s not found", id))
	}
	if t.Status != task.Downloading {
		s.tasksMu.Unlock()
		return nil
	}
	t.Status = task.Paused
	s.tasks[id] = t
	s.tasksMu.Unlock()

	s.activeMu.Lock()
	if a, ok := s.active[id]; ok {
		a.cancel()
		delete(s.active, id)
	}
	s.activeMu.Unlock()

	if err := s.saveSnapshot(); err != nil {
		return err
	}
	s.emit(events.TaskPaused{TaskID: id})
	return nil
}

// Resume transitions a Paused or Failed task back to Pending and
// re-drives admission.
func (s *Supervisor) Resume(id string) error {
	s.tasksMu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.tasksMu.Unlock()
		return errs.New(errs.NotFound, fmt.Sprintf("task %s not found", id))
	}
	if !task.CanTransition(t.Status, task.Pending) {
		s.tasksMu.Unlock()
		return errs.New(errs.InvalidStateTransition, fmt.Sprintf("cannot resume task in status %s", t.Status))
	}
	t.Status = task.Pending
	t.Error = nil
	s.tasks[id] = t
	s.tasksMu.Unlock()

	if err := s.saveSnapshot(); err != nil {
		return err
	}
	s.emit(events.TaskResumed{TaskID: id})
	s.processQueue()
	return nil
}

// Cancel aborts any in-flight worker, deletes the destination file and
// journal, and transitions the task to Cancelled. Valid from any
// non-terminal status.
func (s *Supervisor) Cancel(id string) error {
	s.tasksMu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.tasksMu.Unlock()
		return errs.New(errs.NotFound, fmt.Sprintf("task %s not found", id))
	}
	if t.Status == task.Completed || t.Status == task.Cancelled {
		s.tasksMu.Unlock()
		return errs.New(errs.InvalidStateTransition, fmt.Sprintf("cannot cancel task in status %s", t.Status))
	}
	t.Status = task.Cancelled
	t.Error = nil
	s.tasks[id] = t
	s.tasksMu.Unlock()

	s.activeMu.Lock()
	if a, ok := s.active[id]; ok {
		a.cancel()
		delete(s.active, id)
	}
	s.activeMu.Unlock()

	os.Remove(t.Dest)
	journal.Delete(journal.Path(t.Dest))

	if err := s.saveSnapshot(); err != nil {
		return err
	}
	s.emit(events.TaskCancelled{TaskID: id})
	s.processQueue()
	return nil
}

// Remove drops a task row. Valid only from Completed, Failed, or
// Cancelled.
func (s *Supervisor) Remove(id string) error {
	s.tasksMu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.tasksMu.Unlock()
		return errs.New(errs.NotFound, fmt.Sprintf("task %s not found", id))
	}
	if t.Status != task.Completed && t.Status != task.Failed && t.Status != task.Cancelled {
		s.tasksMu.Unlock()
		return errs.New(errs.InvalidStateTransition, fmt.Sprintf("cannot remove task in status %s", t.Status))
	}
	delete(s.tasks, id)
	s.removeFromOrder(id)
	s.tasksMu.Unlock()

	return s.saveSnapshot()
}

// removeFromOrder must be called with tasksMu held.
func (s *Supervisor) removeFromOrder(id string) {
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// GetAll returns a snapshot copy of every task, ordered as submitted.
func (s *Supervisor) GetAll() []task.DownloadTask {
	s.tasksMu.RLock()
	defer s.tasksMu.RUnlock()
	out := make([]task.DownloadTask, 0, len(s.order))
	for _, id := range s.order {
		if t, ok := s.tasks[id]; ok {
			out = append(out, t.Clone())
		}
	}
	return out
}

// Get returns a copy of one task row.
func (s *Supervisor) Get(id string) (task.DownloadTask, error) {
	s.tasksMu.RLock()
	defer s.tasksMu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return task.DownloadTask{}, errs.New(errs.NotFound, fmt.Sprintf("task %s not found", id))
	}
	return t.Clone(), nil
}

// ClearCompleted drops every task currently in Completed.
func (s *Supervisor) ClearCompleted() error {
	s.tasksMu.Lock()
	for id, t := range s.tasks {
		if t.Status == task.Completed {
			delete(s.tasks, id)
			s.removeFromOrder(id)
		}
	}
	s.tasksMu.Unlock()
	return s.saveSnapshot()
}

// processQueue admits as many Pending tasks as there are free slots,
// ordered by (priority desc, created_at asc).
func (s *Supervisor) processQueue() {
	if s.cfg.NoAutoStart {
		return
	}
	s.activeMu.Lock()
	free := s.cfg.MaxConcurrentTasks - len(s.active)
	s.activeMu.Unlock()
	if free <= 0 {
		return
	}

	s.tasksMu.RLock()
	var pending []task.DownloadTask
	for _, id := range s.order {
		if t, ok := s.tasks[id]; ok && t.Status == task.Pending {
			pending = append(pending, t)
		}
	}
	s.tasksMu.RUnlock()

	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].Priority != pending[j].Priority {
			return pending[i].Priority > pending[j].Priority
		}
		return pending[i].CreatedAt < pending[j].CreatedAt
	})

	if len(pending) > free {
		pending = pending[:free]
	}
	for _, t := range pending {
		s.startTask(t.ID)
	}
}

// startTask transitions a Pending/Paused task to Downloading and spawns
// its engine invocation plus an event-translation goroutine.
func (s *Supervisor) startTask(id string) {
	s.tasksMu.Lock()
	t, ok := s.tasks[id]
	if !ok || (t.Status != task.Pending && t.Status != task.Paused) {
		s.tasksMu.Unlock()
		return
	}
	t.Status = task.Downloading
	s.tasks[id] = t
	s.tasksMu.Unlock()

	if err := s.saveSnapshot(); err != nil {
		utils.Debug("startTask %s: save snapshot: %v", id, err)
	}
	s.emit(events.TaskStarted{TaskID: id})

	ctx, cancel := context.WithCancel(context.Background())
	s.activeMu.Lock()
	s.active[id] = activeDownload{cancel: cancel}
	s.activeMu.Unlock()

	go s.runTask(ctx, id, t)
}

func (s *Supervisor) runTask(ctx context.Context, id string, t task.DownloadTask) {
	progressCh := make(chan any, 1024)
	done := make(chan struct{})
	go s.translateProgress(id, progressCh, done)

	c, err := s.newClient(s.cfg.ClientConfig)
	if err != nil {
		close(progressCh)
		<-done
		s.finishTask(id, err)
		return
	}

	err = engine.Run(ctx, c, t.URL, t.Dest, s.cfg.EngineConfig, progressCh)
	close(progressCh)
	<-done

	if ctx.Err() != nil {
		// Pause or Cancel aborted this run and has already recorded the
		// task's new status and freed its slot; only re-drive admission.
		s.processQueue()
		return
	}
	if err != nil {
		s.finishTask(id, err)
		return
	}
	s.finishTask(id, nil)
}

// translateProgress consumes one engine invocation's ProgressEvents,
// updates the task row, and republishes TaskProgress/Verify events. It
// exits when progressCh is closed.
func (s *Supervisor) translateProgress(id string, progressCh <-chan any, done chan<- struct{}) {
	defer close(done)
	speed := speedwindow.New()
	var total uint64

	for ev := range progressCh {
		switch e := ev.(type) {
		case events.Initialized:
			total = e.TotalSize
			s.updateTask(id, func(t *task.DownloadTask) { t.TotalSize = total })

		case events.ChunkUpdated:
			speed.Add(e.Delta)
			var downloaded uint64
			s.updateTask(id, func(t *task.DownloadTask) {
				t.Downloaded += e.Delta
				downloaded = t.Downloaded
			})
			sp := speed.Speed()
			s.emit(events.TaskProgress{TaskID: id, Downloaded: downloaded, Total: total, Speed: sp, ETASeconds: speedwindow.ETA(downloaded, total, sp)})

		case events.StreamUpdated:
			speed.Add(e.Downloaded - lastStreamDownloaded(s, id))
			s.updateTask(id, func(t *task.DownloadTask) { t.Downloaded = e.Downloaded })
			sp := speed.Speed()
			s.emit(events.TaskProgress{TaskID: id, Downloaded: e.Downloaded, Total: total, Speed: sp, ETASeconds: speedwindow.ETA(e.Downloaded, total, sp)})

		case events.Finished:
			// terminal handling happens in finishTask once engine.Run returns
		}
	}
}

func lastStreamDownloaded(s *Supervisor, id string) uint64 {
	t, err := s.Get(id)
	if err != nil {
		return 0
	}
	return t.Downloaded
}

func (s *Supervisor) updateTask(id string, mutate func(*task.DownloadTask)) {
	s.tasksMu.Lock()
	t, ok := s.tasks[id]
	if ok {
		mutate(&t)
		s.tasks[id] = t
	}
	s.tasksMu.Unlock()
}

// finishTask applies the terminal transition for a task whose engine
// invocation has returned, runs checksum verification if configured,
// frees its admission slot, persists, and re-drives the queue.
func (s *Supervisor) finishTask(id string, engineErr error) {
	s.activeMu.Lock()
	delete(s.active, id)
	s.activeMu.Unlock()

	t, err := s.Get(id)
	if err != nil {
		return
	}

	if engineErr != nil {
		msg := engineErr.Error()
		s.updateTask(id, func(t *task.DownloadTask) { t.Status = task.Failed; t.Error = &msg })
		s.emit(events.TaskFailed{TaskID: id, Error: msg})
		s.saveSnapshot()
		s.processQueue()
		return
	}

	if t.Checksum != "" {
		s.emit(events.VerifyStarted{TaskID: id})
		ck, perr := verify.Parse(t.Checksum)
		var verr error
		if perr != nil {
			verr = perr
		} else if ck != nil {
			verr = ck.File(t.Dest)
		}
		success := verr == nil
		s.emit(events.VerifyCompleted{TaskID: id, Success: success})
		if !success {
			msg := verr.Error()
			s.updateTask(id, func(t *task.DownloadTask) { t.Status = task.Failed; t.Error = &msg })
			s.emit(events.TaskFailed{TaskID: id, Error: msg})
			s.saveSnapshot()
			s.processQueue()
			return
		}
	}

	s.updateTask(id, func(t *task.DownloadTask) { t.Status = task.Completed })
	s.emit(events.TaskCompleted{TaskID: id})
	s.saveSnapshot()
	s.processQueue()
}

type snapshotDoc struct {
	Tasks []task.DownloadTask `json:"tasks"`
}

func (s *Supervisor) saveSnapshot() error {
	tasks := s.GetAll()
	return saveSnapshot(s.cfg.SnapshotPath, snapshotDoc{Tasks: tasks})
}
