// Package utils holds small cross-cutting helpers shared by the engine,
// queue, and CLI: a trace logger lives here because it isn't tied to any
// one component's lifecycle.
package utils

import (
	"fmt"
	"os"
	"sync"
	"time"
)

var (
	debugOnce    sync.Once
	debugFile    *os.File
	debugEnabled bool
)

// Debug writes a trace-level line when DLQ_DEBUG is set in the
// environment; otherwise it is a no-op. Call sites pass a printf-style
// format so retries, admission decisions, and journal I/O can all log
// through the same path without allocating when disabled.
func Debug(format string, args ...any) {
	debugOnce.Do(initDebug)
	if !debugEnabled {
		return
	}
	fmt.Fprintf(debugFile, "[%s] %s\n", time.Now().Format(time.RFC3339Nano), fmt.Sprintf(format, args...))
}

func initDebug() {
	if os.Getenv("DLQ_DEBUG") == "" {
		return
	}
	debugEnabled = true
	debugFile = os.Stderr
	if path := os.Getenv("DLQ_DEBUG_FILE"); path != "" {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			debugFile = f
		}
	}
}
