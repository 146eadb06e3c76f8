package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/dlqueue/dlq/internal/client"
	"github.com/dlqueue/dlq/internal/config"
	"github.com/dlqueue/dlq/internal/engine"
	"github.com/dlqueue/dlq/internal/humanize"
	"github.com/dlqueue/dlq/internal/task"
	"github.com/spf13/cobra"
)

// downloadFlags holds the per-submission options shared by `get` and
// `add`, registered as cobra flags and resolved into engine/client
// configuration and queue.AddOptions.
type downloadFlags struct {
	concurrency int
	chunkSize   string
	speedLimit  string
	proxy       string
	userAgent   string
	headers     []string
	priority    string
	checksum    string
	autoRename  bool
	timeout     int

	// chunkSizeBytes, when non-zero, is a config-file-supplied byte count
	// that takes precedence over parsing chunkSize as a humanized string.
	// This keeps a config file's exact numeric chunk_size (e.g. the
	// binary 10485760) from round-tripping through a lossy SI display
	// string and back.
	chunkSizeBytes uint64
}

func (f *downloadFlags) register(c *cobra.Command) {
	c.Flags().IntVarP(&f.concurrency, "concurrency", "c", 4, "max concurrent range requests per download")
	c.Flags().StringVar(&f.chunkSize, "chunk-size", "10MiB", "target chunk size (accepts humanized suffixes)")
	c.Flags().StringVar(&f.speedLimit, "speed-limit", "", "cap aggregate throughput (bytes/sec, humanized)")
	c.Flags().StringVar(&f.proxy, "proxy", "", "proxy URL")
	c.Flags().StringVar(&f.userAgent, "user-agent", "", "custom User-Agent header")
	c.Flags().StringArrayVar(&f.headers, "header", nil, "custom header as 'Name: Value' (repeatable)")
	c.Flags().StringVar(&f.priority, "priority", "normal", "admission priority: low, normal, or high")
	c.Flags().StringVar(&f.checksum, "checksum", "", "verify result against md5:HEX, sha1:HEX, or sha256:HEX")
	c.Flags().BoolVar(&f.autoRename, "auto-rename", false, "suffix the destination if it already exists")
	c.Flags().IntVar(&f.timeout, "timeout", 30, "per-request timeout, in seconds")
}

func (f *downloadFlags) clientConfig() (client.Config, error) {
	headers := make(map[string]string, len(f.headers))
	for _, h := range f.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return client.Config{}, fmt.Errorf("invalid --header %q: want 'Name: Value'", h)
		}
		headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return client.Config{
		Timeout:   time.Duration(f.timeout) * time.Second,
		UserAgent: f.userAgent,
		Headers:   headers,
		Proxy:     f.proxy,
	}, nil
}

func (f *downloadFlags) engineConfig() (engine.Config, error) {
	chunkSize := f.chunkSizeBytes
	if chunkSize == 0 {
		var err error
		chunkSize, err = humanize.ParseBytes(f.chunkSize)
		if err != nil {
			return engine.Config{}, fmt.Errorf("invalid --chunk-size %q: %w", f.chunkSize, err)
		}
	}
	var speedLimit uint64
	var err error
	if f.speedLimit != "" {
		speedLimit, err = humanize.ParseBytes(f.speedLimit)
		if err != nil {
			return engine.Config{}, fmt.Errorf("invalid --speed-limit %q: %w", f.speedLimit, err)
		}
	}
	return engine.Config{
		MaxConcurrent: f.concurrency,
		ChunkSize:     chunkSize,
		SpeedLimit:    int64(speedLimit),
	}, nil
}

func (f *downloadFlags) priorityValue() (task.Priority, error) {
	return task.ParsePriority(f.priority)
}

// applyFileDefaults loads configFileFlag, if set, and fills in any flag
// the caller left at its zero/default value. Flags the user actually
// passed on the command line always win.
func (f *downloadFlags) applyFileDefaults(c *cobra.Command) error {
	if configFileFlag == "" {
		return nil
	}
	fileCfg, err := config.Load(configFileFlag)
	if err != nil {
		return err
	}
	if !c.Flags().Changed("concurrency") {
		f.concurrency = fileCfg.MaxConcurrent
	}
	if !c.Flags().Changed("chunk-size") {
		f.chunkSizeBytes = fileCfg.ChunkSize
	}
	if !c.Flags().Changed("user-agent") && fileCfg.UserAgent != "" {
		f.userAgent = fileCfg.UserAgent
	}
	if !c.Flags().Changed("timeout") && fileCfg.TimeoutSeconds > 0 {
		f.timeout = fileCfg.TimeoutSeconds
	}
	return nil
}
