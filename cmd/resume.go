package cmd

import (
	"github.com/dlqueue/dlq/internal/queue"
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <id>",
	Short: "Resume a paused or failed task",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		// NoAutoStart: the task is marked Pending here; it starts
		// running the next time a blocking `dlq get`-style invocation
		// (or a future daemon) drives this queue file's admission.
		sup := queue.New(queue.Config{SnapshotPath: queueFileFlag, NoAutoStart: true})
		if err := sup.Load(); err != nil {
			return err
		}
		return sup.Resume(args[0])
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}
