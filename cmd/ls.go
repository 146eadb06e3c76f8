package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/dlqueue/dlq/internal/humanize"
	"github.com/dlqueue/dlq/internal/queue"
	"github.com/spf13/cobra"
)

var lsJSON bool

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the download queue",
	Args:  cobra.NoArgs,
	RunE:  runLs,
}

func init() {
	lsCmd.Flags().BoolVar(&lsJSON, "json", false, "print the queue snapshot as JSON")
	rootCmd.AddCommand(lsCmd)
}

func runLs(c *cobra.Command, args []string) error {
	sup := queue.New(queue.Config{SnapshotPath: queueFileFlag, NoAutoStart: true})
	if err := sup.Load(); err != nil {
		return err
	}
	tasks := sup.GetAll()

	if lsJSON {
		enc := json.NewEncoder(c.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	}

	w := tabwriter.NewWriter(c.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPRIORITY\tPROGRESS\tDEST")
	for _, t := range tasks {
		progress := "-"
		if t.TotalSize > 0 {
			progress = fmt.Sprintf("%s / %s", humanize.Bytes(t.Downloaded), humanize.Bytes(t.TotalSize))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Priority, progress, t.Dest)
	}
	return w.Flush()
}
