package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dlqueue/dlq/internal/client"
	"github.com/dlqueue/dlq/internal/errs"
	"github.com/dlqueue/dlq/internal/events"
	"github.com/dlqueue/dlq/internal/humanize"
	"github.com/dlqueue/dlq/internal/queue"
	"github.com/spf13/cobra"
)

var getFlags downloadFlags

var getCmd = &cobra.Command{
	Use:   "get <url> [dest]",
	Short: "Download one file and block until it finishes",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runGet,
}

func init() {
	getFlags.register(getCmd)
	rootCmd.AddCommand(getCmd)
}

func runGet(c *cobra.Command, args []string) error {
	if err := getFlags.applyFileDefaults(c); err != nil {
		return err
	}

	url := args[0]
	var dest string
	if len(args) == 2 {
		dest = args[1]
	}

	clientCfg, err := getFlags.clientConfig()
	if err != nil {
		return errs.Wrap(errs.Config, "building client config", err)
	}
	engineCfg, err := getFlags.engineConfig()
	if err != nil {
		return errs.Wrap(errs.Config, "building engine config", err)
	}
	priority, err := getFlags.priorityValue()
	if err != nil {
		return errs.Wrap(errs.Config, "parsing priority", err)
	}

	probeClient, err := client.New(clientCfg)
	if err != nil {
		return err
	}
	dest, err = resolveDest(c.Context(), probeClient, url, dest)
	if err != nil {
		return err
	}

	snapshotDir, err := os.MkdirTemp("", "dlq-get-")
	if err != nil {
		return errs.Wrap(errs.FileSystem, "creating scratch directory", err)
	}
	defer os.RemoveAll(snapshotDir)

	sup := queue.New(queue.Config{
		MaxConcurrentTasks: 1,
		ClientConfig:       clientCfg,
		EngineConfig:       engineCfg,
		SnapshotPath:       filepath.Join(snapshotDir, "queue.json"),
	})

	id, err := sup.Add(url, dest, queue.AddOptions{
		Priority:   priority,
		Checksum:   getFlags.checksum,
		AutoRename: getFlags.autoRename,
	})
	if err != nil {
		return err
	}

	return waitForTerminal(c, sup, id)
}

// waitForTerminal prints progress lines for id until it reaches a
// terminal QueueEvent, then returns an error derived from the task's
// final status so the caller can map it to an exit code.
func waitForTerminal(c *cobra.Command, sup *queue.Supervisor, id string) error {
	verifyFailed := false
	for ev := range sup.Events() {
		switch e := ev.(type) {
		case events.TaskProgress:
			if e.TaskID != id {
				continue
			}
			fmt.Fprintf(c.OutOrStdout(), "\r%s / %s  %s/s  eta %.0fs   ",
				humanize.Bytes(e.Downloaded), humanize.Bytes(e.Total), humanize.Bytes(uint64(e.Speed)), e.ETASeconds)

		case events.VerifyCompleted:
			if e.TaskID == id && !e.Success {
				verifyFailed = true
			}

		case events.TaskCompleted:
			if e.TaskID != id {
				continue
			}
			fmt.Fprintln(c.OutOrStdout())
			return nil

		case events.TaskFailed:
			if e.TaskID != id {
				continue
			}
			fmt.Fprintln(c.OutOrStdout())
			if verifyFailed {
				return errs.New(errs.Verification, e.Error)
			}
			return errs.New(errs.Transport, e.Error)

		case events.TaskCancelled:
			if e.TaskID != id {
				continue
			}
			fmt.Fprintln(c.OutOrStdout())
			return errs.New(errs.InvalidStateTransition, "task cancelled")
		}
	}
	return errs.New(errs.Transport, "event stream closed before task reached a terminal state")
}
