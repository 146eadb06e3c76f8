package cmd

import (
	"fmt"

	"github.com/dlqueue/dlq/internal/client"
	"github.com/dlqueue/dlq/internal/errs"
	"github.com/dlqueue/dlq/internal/queue"
	"github.com/spf13/cobra"
)

var addFlags downloadFlags

var addCmd = &cobra.Command{
	Use:   "add <url> [dest]",
	Short: "Queue a download without waiting for it to finish",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runAdd,
}

func init() {
	addFlags.register(addCmd)
	rootCmd.AddCommand(addCmd)
}

func runAdd(c *cobra.Command, args []string) error {
	if err := addFlags.applyFileDefaults(c); err != nil {
		return err
	}

	url := args[0]
	var dest string
	if len(args) == 2 {
		dest = args[1]
	}

	clientCfg, err := addFlags.clientConfig()
	if err != nil {
		return errs.Wrap(errs.Config, "building client config", err)
	}
	engineCfg, err := addFlags.engineConfig()
	if err != nil {
		return errs.Wrap(errs.Config, "building engine config", err)
	}
	priority, err := addFlags.priorityValue()
	if err != nil {
		return errs.Wrap(errs.Config, "parsing priority", err)
	}

	if dest == "" {
		probeClient, err := client.New(clientCfg)
		if err != nil {
			return err
		}
		dest, err = resolveDest(c.Context(), probeClient, url, dest)
		if err != nil {
			return err
		}
	}

	sup := queue.New(queue.Config{
		MaxConcurrentTasks: 1,
		ClientConfig:       clientCfg,
		EngineConfig:       engineCfg,
		SnapshotPath:       queueFileFlag,
		NoAutoStart:        true,
	})
	if err := sup.Load(); err != nil {
		return err
	}

	id, err := sup.Add(url, dest, queue.AddOptions{
		Priority:   priority,
		Checksum:   addFlags.checksum,
		AutoRename: addFlags.autoRename,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(c.OutOrStdout(), id)
	return nil
}
