// Package cmd implements the dlq command-line surface: a one-shot
// blocking `get`, and `add`/`ls`/`pause`/`resume`/`rm` for driving a
// supervisor against a shared queue snapshot file.
package cmd

import (
	"os"
	"path/filepath"

	"github.com/dlqueue/dlq/internal/errs"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dlq",
	Short: "A resumable, multi-connection HTTP file downloader",
	Long:  "dlq fetches HTTP(S) resources with range-split concurrent chunks, resuming after interruption, and optionally queues multiple downloads under an admission-controlled supervisor.",
}

var queueFileFlag string
var configFileFlag string

func init() {
	rootCmd.PersistentFlags().StringVar(&queueFileFlag, "queue-file", defaultQueueFile(), "path to the queue snapshot file")
	rootCmd.PersistentFlags().StringVar(&configFileFlag, "config", "", "path to a JSON config file of networking defaults")
}

// Execute runs the CLI, returning the first error encountered.
func Execute() error {
	return rootCmd.Execute()
}

func defaultQueueFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "dlq", "queue.json")
}

// ExitCodeFor maps an engine/supervisor error onto the CLI's exit code
// contract: 0 success, 1 network failure, 2 verification failure, 3
// invalid arguments.
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	switch {
	case errs.Is(err, errs.Verification):
		return 2
	case errs.Is(err, errs.Config):
		return 3
	default:
		return 1
	}
}
