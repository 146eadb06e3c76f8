// Package client is a thin byte-range HTTP client: it probes an origin's
// range support and total size, then issues ranged or plain GETs.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dlqueue/dlq/internal/errs"
	"github.com/dlqueue/dlq/internal/utils"
	"github.com/vfaronov/httpheader"
)

// Config is the set of networking knobs the client applies to every
// outbound request for one task.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	Proxy     string
}

// Client wraps a tuned *http.Client for one task's probe and GET calls.
type Client struct {
	cfg  Config
	http *http.Client
}

// New builds a Client from cfg, applying a proxy and keep-alive transport
// matching the values in cfg.
func New(cfg Config) (*Client, error) {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, errs.Wrap(errs.Config, "invalid proxy URL", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Transport: transport, Timeout: timeout},
	}, nil
}

func (c *Client) applyHeaders(req *http.Request) {
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	} else {
		req.Header.Set("User-Agent", "dlq/1.0")
	}
	for name, value := range c.cfg.Headers {
		req.Header.Set(name, value)
	}
}

// ProbeResult carries what a HEAD probe discovered about the origin.
type ProbeResult struct {
	TotalSize     uint64
	HasTotalSize  bool
	AcceptsRanges bool
	ContentType   string
	Header        http.Header
}

// Probe issues a HEAD request and reports Content-Length and whether
// Accept-Ranges includes "bytes". A missing length or absent range
// support means the caller should fall back to streaming mode.
func (c *Client) Probe(ctx context.Context, rawURL string) (*ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.Transport, "building probe request", err)
	}
	c.applyHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.Transport, "probe request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errs.New(errs.Origin, fmt.Sprintf("probe: unexpected status %d", resp.StatusCode))
	}

	result := &ProbeResult{ContentType: resp.Header.Get("Content-Type"), Header: resp.Header}
	if resp.ContentLength >= 0 {
		result.TotalSize = uint64(resp.ContentLength)
		result.HasTotalSize = true
	}

	acceptRanges := httpheader.AcceptRanges(resp.Header)
	for _, unit := range acceptRanges {
		if strings.EqualFold(unit, "bytes") {
			result.AcceptsRanges = true
			break
		}
	}

	utils.Debug("probe %s: size=%d hasSize=%v ranges=%v", rawURL, result.TotalSize, result.HasTotalSize, result.AcceptsRanges)
	return result, nil
}

// RangedGet issues a GET with a Range header covering [start, end]
// (inclusive). The caller must close the returned response body.
func (c *Client) RangedGet(ctx context.Context, rawURL string, start, end uint64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.Transport, "building ranged request", err)
	}
	c.applyHeaders(req)
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.Transport, "ranged GET failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, errs.New(errs.Origin, fmt.Sprintf("ranged GET: unexpected status %d", resp.StatusCode))
	}
	return resp, nil
}

// PlainGet issues a single unranged GET, used by the streaming path. The
// caller must close the returned response body.
func (c *Client) PlainGet(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.Transport, "building request", err)
	}
	c.applyHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.Transport, "GET failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, errs.New(errs.Origin, fmt.Sprintf("GET: unexpected status %d", resp.StatusCode))
	}
	return resp, nil
}
