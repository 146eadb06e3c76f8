package verify

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/dlqueue/dlq/internal/errs"
	"github.com/stretchr/testify/require"
)

func TestParseValid(t *testing.T) {
	sum := md5.Sum([]byte("hello"))
	c, err := Parse("md5:" + hex.EncodeToString(sum[:]))
	require.NoError(t, err)
	require.Equal(t, "md5", c.Algo)
}

func TestParseEmptyIsNil(t *testing.T) {
	c, err := Parse("")
	require.NoError(t, err)
	require.Nil(t, c)
}

func TestParseRejectsUnknownAlgo(t *testing.T) {
	_, err := Parse("crc32:deadbeef")
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.Config))
}

func TestParseRejectsMalformed(t *testing.T) {
	_, err := Parse("not-a-checksum")
	require.Error(t, err)
}

func TestFileMatches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	sum := md5.Sum([]byte("hello"))
	c, err := Parse("md5:" + hex.EncodeToString(sum[:]))
	require.NoError(t, err)
	require.NoError(t, c.File(path))
}

func TestFileMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	c, err := Parse("md5:d41d8cd98f00b204e9800998ecf8427e") // empty-string md5
	require.NoError(t, err)
	err = c.File(path)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.Verification))
}
