package cmd

import (
	"github.com/dlqueue/dlq/internal/queue"
	"github.com/spf13/cobra"
)

var pauseCmd = &cobra.Command{
	Use:   "pause <id>",
	Short: "Pause a downloading task",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		sup := queue.New(queue.Config{SnapshotPath: queueFileFlag, NoAutoStart: true})
		if err := sup.Load(); err != nil {
			return err
		}
		return sup.Pause(args[0])
	},
}

func init() {
	rootCmd.AddCommand(pauseCmd)
}
