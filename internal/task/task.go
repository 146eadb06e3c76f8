// Package task defines the queue's task record and its state machine.
package task

import "fmt"

// Status is one of the closed set of lifecycle states a DownloadTask can be in.
type Status string

const (
	Pending     Status = "pending"
	Downloading Status = "downloading"
	Paused      Status = "paused"
	Completed   Status = "completed"
	Failed      Status = "failed"
	Cancelled   Status = "cancelled"
)

// Priority tags a task for admission ordering only; it never preempts
// in-flight work.
type Priority int

const (
	Low Priority = iota
	Normal
	High
)

// ParsePriority maps the CLI's lowercase priority names onto Priority.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "low":
		return Low, nil
	case "", "normal":
		return Normal, nil
	case "high":
		return High, nil
	default:
		return Normal, fmt.Errorf("invalid priority %q: want low, normal, or high", s)
	}
}

func (p Priority) String() string {
	switch p {
	case Low:
		return "low"
	case High:
		return "high"
	default:
		return "normal"
	}
}

var legalTransitions = map[Status]map[Status]bool{
	Pending:     {Downloading: true, Cancelled: true},
	Downloading: {Paused: true, Completed: true, Failed: true, Cancelled: true},
	Paused:      {Pending: true, Cancelled: true},
	Failed:      {Pending: true, Cancelled: true},
	Completed:   {},
	Cancelled:   {},
}

// CanTransition reports whether moving from `from` to `to` is a legal
// state-machine edge per the lifecycle in the task model.
func CanTransition(from, to Status) bool {
	return legalTransitions[from][to]
}

// DownloadTask is one row of the queue: identity, origin, destination,
// lifecycle status, and progress totals.
type DownloadTask struct {
	ID         string   `json:"id"`
	URL        string   `json:"url"`
	Dest       string   `json:"dest"`
	Status     Status   `json:"status"`
	Priority   Priority `json:"priority"`
	TotalSize  uint64   `json:"total_size"`
	Downloaded uint64   `json:"downloaded"`
	Speed      float64  `json:"speed,omitempty"`
	ETASeconds float64  `json:"eta_seconds,omitempty"`
	CreatedAt  int64    `json:"created_at"`
	Checksum   string   `json:"checksum,omitempty"`
	Error      *string  `json:"error,omitempty"`
}

// Clone returns an independent copy, so callers reading a snapshot never
// hold a reference into the supervisor's live task table.
func (t DownloadTask) Clone() DownloadTask {
	clone := t
	if t.Error != nil {
		msg := *t.Error
		clone.Error = &msg
	}
	return clone
}
