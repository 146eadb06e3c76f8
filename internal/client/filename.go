package client

import (
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/vfaronov/httpheader"
)

// DetermineFilename derives a destination filename from a URL and its
// probe response headers, falling back to content sniffing and finally
// to a generic name when nothing else yields one.
func DetermineFilename(rawURL string, header http.Header, sniff []byte) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing url for filename: %w", err)
	}

	var candidate string

	if _, name, err := httpheader.ContentDisposition(header); err == nil && name != "" {
		candidate = name
	}

	if candidate == "" {
		q := parsed.Query()
		if name := q.Get("filename"); name != "" {
			candidate = name
		} else if name := q.Get("file"); name != "" {
			candidate = name
		}
	}

	if candidate == "" {
		candidate = filepath.Base(parsed.Path)
	}
	if candidate == "/" {
		candidate = ""
	}

	name := sanitizeFilename(candidate)

	if filepath.Ext(name) == "" && len(sniff) > 0 {
		if kind, _ := filetype.Match(sniff); kind != filetype.Unknown && kind.Extension != "" {
			name = name + "." + kind.Extension
		}
	}

	if name == "" || name == "." || name == "/" {
		name = "download.bin"
	}
	return name, nil
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	if name == "." {
		return name
	}
	if name == "/" {
		return "_"
	}
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "/", "_")
	for _, bad := range []string{":", "*", "?", "\"", "<", ">", "|"} {
		name = strings.ReplaceAll(name, bad, "_")
	}
	return name
}
