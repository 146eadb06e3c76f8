package queue

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/dlqueue/dlq/internal/client"
	"github.com/dlqueue/dlq/internal/engine"
	"github.com/dlqueue/dlq/internal/events"
	"github.com/dlqueue/dlq/internal/journal"
	"github.com/dlqueue/dlq/internal/task"
	"github.com/stretchr/testify/require"
)

func newReadSeeker(b []byte) io.ReadSeeker {
	return bytes.NewReader(b)
}

func newTestSupervisor(t *testing.T, maxConcurrentTasks int) *Supervisor {
	dir := t.TempDir()
	return New(Config{
		MaxConcurrentTasks: maxConcurrentTasks,
		SnapshotPath:       filepath.Join(dir, "queue.json"),
		EngineConfig:       engine.Config{MaxConcurrent: 2, ChunkSize: 512, RetryBackoff: time.Millisecond},
		ClientConfig:       client.Config{Timeout: 5 * time.Second},
	})
}

func waitForStatus(t *testing.T, s *Supervisor, id string, want task.Status, timeout time.Duration) task.DownloadTask {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		tk, err := s.Get(id)
		require.NoError(t, err)
		if tk.Status == want {
			return tk
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never reached status %s", id, want)
	return task.DownloadTask{}
}

func fileServer(t *testing.T, body []byte) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Accept-Ranges", "bytes")
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			w.WriteHeader(http.StatusOK)
			return
		}
		http.ServeContent(w, r, "f", time.Time{}, newReadSeeker(body))
	}))
}

func TestAddCompletesTask(t *testing.T) {
	body := make([]byte, 4096)
	srv := fileServer(t, body)
	defer srv.Close()

	s := newTestSupervisor(t, 1)
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")

	id, err := s.Add(srv.URL, dest, AddOptions{})
	require.NoError(t, err)

	tk := waitForStatus(t, s, id, task.Completed, 5*time.Second)
	require.EqualValues(t, len(body), tk.Downloaded)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, body, got)
}

func TestAddAutoRenameAvoidsCollision(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")
	require.NoError(t, os.WriteFile(dest, []byte("existing"), 0o644))

	srv := fileServer(t, []byte("hello"))
	defer srv.Close()

	s := newTestSupervisor(t, 1)
	id, err := s.Add(srv.URL, dest, AddOptions{AutoRename: true})
	require.NoError(t, err)

	tk, err := s.Get(id)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "out (1).bin"), tk.Dest)
}

func TestAdmissionRespectsMaxConcurrentTasks(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Accept-Ranges", "bytes")
			w.Header().Set("Content-Length", "10")
			w.WriteHeader(http.StatusOK)
			return
		}
		<-block
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := newTestSupervisor(t, 2)
	dir := t.TempDir()

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := s.Add(srv.URL, filepath.Join(dir, "f"+strconv.Itoa(i)), AddOptions{})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	time.Sleep(100 * time.Millisecond)
	downloading := 0
	for _, id := range ids {
		tk, err := s.Get(id)
		require.NoError(t, err)
		if tk.Status == task.Downloading {
			downloading++
		}
	}
	require.LessOrEqual(t, downloading, 2)
	close(block)
}

func TestHighPriorityAdmittedAheadOfOlderNormal(t *testing.T) {
	block := make(chan struct{})
	var mu sync.Mutex
	var probed []string // order in which tasks start, by URL path
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			mu.Lock()
			probed = append(probed, r.URL.Path)
			mu.Unlock()
			w.Header().Set("Accept-Ranges", "bytes")
			w.Header().Set("Content-Length", "10")
			w.WriteHeader(http.StatusOK)
			return
		}
		<-block
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := newTestSupervisor(t, 1)
	dir := t.TempDir()

	first, err := s.Add(srv.URL+"/first", filepath.Join(dir, "a"), AddOptions{Priority: task.Normal})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond) // let `first` claim the only slot

	older, err := s.Add(srv.URL+"/older", filepath.Join(dir, "c"), AddOptions{Priority: task.Normal})
	require.NoError(t, err)
	high, err := s.Add(srv.URL+"/high", filepath.Join(dir, "b"), AddOptions{Priority: task.High})
	require.NoError(t, err)

	waitForStatus(t, s, first, task.Downloading, time.Second)
	tk, err := s.Get(high)
	require.NoError(t, err)
	require.Equal(t, task.Pending, tk.Status)

	close(block)
	waitForStatus(t, s, first, task.Failed, 2*time.Second)
	waitForStatus(t, s, high, task.Failed, 2*time.Second)
	waitForStatus(t, s, older, task.Failed, 2*time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"/first", "/high", "/older"}, probed)
}

func TestPauseThenResume(t *testing.T) {
	body := make([]byte, 1<<16)
	srv := fileServer(t, body)
	defer srv.Close()

	s := newTestSupervisor(t, 1)
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")

	id, err := s.Add(srv.URL, dest, AddOptions{})
	require.NoError(t, err)
	waitForStatus(t, s, id, task.Downloading, time.Second)

	require.NoError(t, s.Pause(id))
	tk, err := s.Get(id)
	require.NoError(t, err)
	require.Equal(t, task.Paused, tk.Status)

	require.NoError(t, s.Resume(id))
	waitForStatus(t, s, id, task.Completed, 5*time.Second)
}

func TestCancelRemovesDestAndJournal(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Accept-Ranges", "bytes")
			w.Header().Set("Content-Length", "65536")
			w.WriteHeader(http.StatusOK)
			return
		}
		<-block
	}))
	defer srv.Close()

	s := newTestSupervisor(t, 1)
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")

	id, err := s.Add(srv.URL, dest, AddOptions{})
	require.NoError(t, err)
	waitForStatus(t, s, id, task.Downloading, time.Second)
	close(block)

	require.NoError(t, s.Cancel(id))
	tk, err := s.Get(id)
	require.NoError(t, err)
	require.Equal(t, task.Cancelled, tk.Status)

	_, statErr := os.Stat(dest)
	require.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(journal.Path(dest))
	require.True(t, os.IsNotExist(statErr))
}

func TestRemoveOnlyFromTerminalStatus(t *testing.T) {
	s := newTestSupervisor(t, 1)
	id, err := s.Add("https://example.invalid/f", filepath.Join(t.TempDir(), "f"), AddOptions{})
	require.NoError(t, err)

	waitForStatus(t, s, id, task.Downloading, time.Second)
	err = s.Remove(id)
	require.Error(t, err)
}

func TestCancelClearsErrorOnFailedTask(t *testing.T) {
	s := newTestSupervisor(t, 1)
	id, err := s.Add("https://example.invalid/f", filepath.Join(t.TempDir(), "f"), AddOptions{})
	require.NoError(t, err)

	waitForStatus(t, s, id, task.Failed, 2*time.Second)
	tk, err := s.Get(id)
	require.NoError(t, err)
	require.NotNil(t, tk.Error)

	require.NoError(t, s.Cancel(id))
	tk, err = s.Get(id)
	require.NoError(t, err)
	require.Equal(t, task.Cancelled, tk.Status)
	require.Nil(t, tk.Error)
}

func TestAddCancelRemoveLeavesTableEmpty(t *testing.T) {
	srv := fileServer(t, make([]byte, 1024))
	defer srv.Close()

	s := newTestSupervisor(t, 1)
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")

	id, err := s.Add(srv.URL, dest, AddOptions{})
	require.NoError(t, err)
	require.NoError(t, s.Cancel(id))
	require.NoError(t, s.Remove(id))
	require.Empty(t, s.GetAll())
}

func TestLoadDemotesDownloadingToPaused(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.json")
	require.NoError(t, saveSnapshot(path, snapshotDoc{Tasks: []task.DownloadTask{
		{ID: "abc", URL: "https://example.com/f", Dest: "f", Status: task.Downloading},
	}}))

	s := New(Config{MaxConcurrentTasks: 1, SnapshotPath: path})
	require.NoError(t, s.Load())

	tk, err := s.Get("abc")
	require.NoError(t, err)
	require.Equal(t, task.Paused, tk.Status)
}

func TestEmitsTaskProgressEvents(t *testing.T) {
	body := make([]byte, 8192)
	srv := fileServer(t, body)
	defer srv.Close()

	s := newTestSupervisor(t, 1)
	dir := t.TempDir()

	_, err := s.Add(srv.URL, filepath.Join(dir, "out.bin"), AddOptions{})
	require.NoError(t, err)

	deadline := time.After(5 * time.Second)
	sawProgress := false
	sawCompleted := false
	for !sawCompleted {
		select {
		case ev := <-s.Events():
			switch ev.(type) {
			case events.TaskProgress:
				sawProgress = true
			case events.TaskCompleted:
				sawCompleted = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for terminal event")
		}
	}
	require.True(t, sawProgress)
}
