// Package verify checks a completed download against a caller-supplied
// checksum, in the md5:HEX | sha1:HEX | sha256:HEX forms the CLI accepts.
package verify

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/dlqueue/dlq/internal/errs"
)

// Checksum is a parsed `algo:hex` spec as accepted by the CLI's
// --checksum flag.
type Checksum struct {
	Algo string
	Want []byte
}

// Parse validates and decodes a "md5:HEX", "sha1:HEX", or "sha256:HEX"
// string. An empty string means no verification was requested.
func Parse(spec string) (*Checksum, error) {
	if spec == "" {
		return nil, nil
	}
	algo, hexDigest, ok := strings.Cut(spec, ":")
	if !ok {
		return nil, errs.New(errs.Config, fmt.Sprintf("checksum %q: want algo:hex", spec))
	}
	algo = strings.ToLower(algo)
	switch algo {
	case "md5", "sha1", "sha256":
	default:
		return nil, errs.New(errs.Config, fmt.Sprintf("checksum algorithm %q not supported", algo))
	}
	want, err := hex.DecodeString(hexDigest)
	if err != nil {
		return nil, errs.Wrap(errs.Config, "checksum is not valid hex", err)
	}
	return &Checksum{Algo: algo, Want: want}, nil
}

func (c *Checksum) newHash() hash.Hash {
	switch c.Algo {
	case "md5":
		return md5.New()
	case "sha1":
		return sha1.New()
	default:
		return sha256.New()
	}
}

// File computes the configured digest over the file at path and compares
// it in constant time against the expected value.
func (c *Checksum) File(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errs.Wrap(errs.FileSystem, "opening file for verification", err)
	}
	defer f.Close()

	h := c.newHash()
	if _, err := io.Copy(h, f); err != nil {
		return errs.Wrap(errs.FileSystem, "reading file for verification", err)
	}

	got := h.Sum(nil)
	if subtle.ConstantTimeCompare(got, c.Want) != 1 {
		return errs.New(errs.Verification, fmt.Sprintf("%s mismatch: got %x, want %x", c.Algo, got, c.Want))
	}
	return nil
}
