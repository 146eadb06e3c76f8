package humanize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	kb = uint64(1) << 10
	mb = uint64(1) << 20
	gb = uint64(1) << 30
	tb = uint64(1) << 40
	pb = uint64(1) << 50
)

func TestFromBytes(t *testing.T) {
	cases := []struct {
		bytes               uint64
		quotient, remainder uint64
		unit                Unit
	}{
		{0, 0, 0, UnitB},
		{1, 1, 0, UnitB},
		{512, 512, 0, UnitB},
		{1023, 1023, 0, UnitB},
		{kb, 1, 0, UnitKB},
		{mb, 1, 0, UnitMB},
		{gb, 1, 0, UnitGB},
		{tb, 1, 0, UnitTB},
		{pb, 1, 0, UnitPB},
		{1536, 1, 512, UnitKB},
		{mb + 512, 1, 512, UnitMB},
		{3*mb + 256, 3, 256, UnitMB},
		{5*gb + mb, 5, mb, UnitGB},
		{mb - 1, 1023, 1023, UnitKB},
		{10 * pb, 10, 0, UnitPB},
		{100*pb + 512, 100, 512, UnitPB},
	}
	for _, c := range cases {
		got := FromBytes(c.bytes)
		require.Equal(t, NewStorage(c.quotient, c.remainder, c.unit), got, "FromBytes(%d)", c.bytes)
	}
}

func TestStorageToBytes(t *testing.T) {
	cases := []struct {
		quotient, remainder uint64
		unit                Unit
		want                uint64
	}{
		{0, 0, UnitB, 0},
		{1, 0, UnitB, 1},
		{1023, 0, UnitB, 1023},
		{1, 0, UnitKB, kb},
		{1, 0, UnitMB, mb},
		{1, 0, UnitGB, gb},
		{1, 0, UnitTB, tb},
		{1, 0, UnitPB, pb},
		{1, 512, UnitKB, 1536},
		{1, 512, UnitMB, mb + 512},
		{3, 256, UnitMB, 3*mb + 256},
		{5, mb, UnitGB, 5*gb + mb},
		{100, 512, UnitPB, 100*pb + 512},
		{1023, 1023, UnitKB, 1023*kb + 1023},
		{10, 0, UnitTB, 10 * tb},
	}
	for _, c := range cases {
		require.Equal(t, c.want, NewStorage(c.quotient, c.remainder, c.unit).ToBytes())
	}
}

// TestRoundTrip is the spec's invariant: FromBytes(n).ToBytes() == n for
// every representable n.
func TestRoundTrip(t *testing.T) {
	cases := []uint64{
		0, 1, 512, 1023,
		kb, kb + 1, 1536,
		mb - 1, mb, mb + 512, 3*mb + 256,
		gb - 1, gb, 5*gb + mb,
		tb, 10 * pb, 100*pb + 512,
	}
	for _, bytes := range cases {
		require.Equal(t, bytes, FromBytes(bytes).ToBytes(), "round trip %d", bytes)
	}
}

func TestBoundaryValues(t *testing.T) {
	cases := []struct {
		bytes               uint64
		quotient, remainder uint64
		unit                Unit
	}{
		{kb - 1, 1023, 0, UnitB},
		{kb, 1, 0, UnitKB},
		{kb + 1, 1, 1, UnitKB},
		{mb - 1, 1023, 1023, UnitKB},
		{mb, 1, 0, UnitMB},
		{mb + 1, 1, 1, UnitMB},
		{gb - 1, 1023, mb - 1, UnitMB},
		{gb, 1, 0, UnitGB},
		{gb + 1, 1, 1, UnitGB},
		{tb, 1, 0, UnitTB},
		{pb, 1, 0, UnitPB},
	}
	for _, c := range cases {
		got := FromBytes(c.bytes)
		require.Equal(t, NewStorage(c.quotient, c.remainder, c.unit), got, "boundary %d", c.bytes)
	}
}

func TestToFloat(t *testing.T) {
	const epsilon = 1e-10
	cases := []struct {
		quotient, remainder uint64
		unit                Unit
		want                float64
	}{
		{0, 0, UnitB, 0},
		{1, 0, UnitB, 1},
		{512, 0, UnitB, 512},
		{1023, 0, UnitB, 1023},
		{1, 0, UnitKB, 1},
		{5, 0, UnitKB, 5},
		{1, 512, UnitKB, 1.5},
		{2, 256, UnitKB, 2.25},
		{1, 0, UnitMB, 1},
		{3, 0, UnitMB, 3},
		{1, 0, UnitGB, 1},
		{5, 0, UnitGB, 5},
		{1, 0, UnitTB, 1},
		{10, 0, UnitTB, 10},
		{1, 0, UnitPB, 1},
		{100, 0, UnitPB, 100},
		{1000, 0, UnitPB, 1000},
		{1023, 1023, UnitKB, 1023 + 1023.0/1024.0},
	}
	for _, c := range cases {
		got := NewStorage(c.quotient, c.remainder, c.unit).ToFloat()
		require.InDelta(t, c.want, got, epsilon)
	}
}

func TestAddRedecomposesSum(t *testing.T) {
	sum := FromBytes(mb).Add(FromBytes(512))
	require.Equal(t, mb+512, sum.ToBytes())
}

func TestBytesString(t *testing.T) {
	require.Equal(t, "1.50 KB", Bytes(1536))
	require.Equal(t, "0.00 B", Bytes(0))
}

func TestParseBytes(t *testing.T) {
	n, err := ParseBytes("10MB")
	require.NoError(t, err)
	require.EqualValues(t, 10000000, n)
}
