package cmd

import (
	"context"
	"fmt"

	"github.com/dlqueue/dlq/internal/client"
)

// resolveDest returns dest unchanged if non-empty, otherwise probes the
// origin and derives a destination filename in the current directory.
func resolveDest(ctx context.Context, c *client.Client, rawURL, dest string) (string, error) {
	if dest != "" {
		return dest, nil
	}
	probe, err := c.Probe(ctx, rawURL)
	if err != nil {
		return "", err
	}
	name, err := client.DetermineFilename(rawURL, probe.Header, nil)
	if err != nil {
		return "", fmt.Errorf("determining filename: %w", err)
	}
	return name, nil
}
