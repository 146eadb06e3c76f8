package cmd

import (
	"os"

	"github.com/dlqueue/dlq/internal/journal"
	"github.com/dlqueue/dlq/internal/queue"
	"github.com/spf13/cobra"
)

var rmClean bool

var rmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a completed, failed, or cancelled task from the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		sup := queue.New(queue.Config{SnapshotPath: queueFileFlag, NoAutoStart: true})
		if err := sup.Load(); err != nil {
			return err
		}
		if rmClean {
			t, err := sup.Get(args[0])
			if err != nil {
				return err
			}
			os.Remove(t.Dest)
			journal.Delete(journal.Path(t.Dest))
		}
		return sup.Remove(args[0])
	},
}

func init() {
	rmCmd.Flags().BoolVar(&rmClean, "clean", false, "also delete the destination file and journal before removing")
	rootCmd.AddCommand(rmCmd)
}
