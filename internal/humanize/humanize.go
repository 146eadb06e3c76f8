// Package humanize formats and parses byte sizes for the CLI's progress
// output and size-bearing flags.
package humanize

import (
	"fmt"

	gohumanize "github.com/dustin/go-humanize"
)

// Unit is the binary size unit a Storage value is expressed in.
type Unit int

const (
	UnitB Unit = iota
	UnitKB
	UnitMB
	UnitGB
	UnitTB
	UnitPB
)

func (u Unit) String() string {
	switch u {
	case UnitKB:
		return "KB"
	case UnitMB:
		return "MB"
	case UnitGB:
		return "GB"
	case UnitTB:
		return "TB"
	case UnitPB:
		return "PB"
	default:
		return "B"
	}
}

const (
	shiftKB = 10
	shiftMB = 20
	shiftGB = 30
	shiftTB = 40
	shiftPB = 50
)

var scaleByUnit = [...]float64{
	UnitB:  1,
	UnitKB: 1.0 / float64(uint64(1)<<shiftKB),
	UnitMB: 1.0 / float64(uint64(1)<<shiftMB),
	UnitGB: 1.0 / float64(uint64(1)<<shiftGB),
	UnitTB: 1.0 / float64(uint64(1)<<shiftTB),
	UnitPB: 1.0 / float64(uint64(1)<<shiftPB),
}

// Storage is an exact, lossless decomposition of a byte count into a
// quotient/remainder pair against the largest binary unit it fits, so
// FromBytes(n).ToBytes() == n for every representable n — unlike a
// formatted-then-reparsed display string, which rounds.
type Storage struct {
	quotient  uint64
	remainder uint64
	unit      Unit
}

// NewStorage builds a Storage directly from its parts.
func NewStorage(quotient, remainder uint64, unit Unit) Storage {
	return Storage{quotient: quotient, remainder: remainder, unit: unit}
}

// FromBytes decomposes n into the largest binary unit that divides it
// into a non-zero quotient, keeping the rest as an exact remainder.
func FromBytes(n uint64) Storage {
	switch {
	case n >= uint64(1)<<shiftPB:
		return Storage{n >> shiftPB, n & (uint64(1)<<shiftPB - 1), UnitPB}
	case n >= uint64(1)<<shiftTB:
		return Storage{n >> shiftTB, n & (uint64(1)<<shiftTB - 1), UnitTB}
	case n >= uint64(1)<<shiftGB:
		return Storage{n >> shiftGB, n & (uint64(1)<<shiftGB - 1), UnitGB}
	case n >= uint64(1)<<shiftMB:
		return Storage{n >> shiftMB, n & (uint64(1)<<shiftMB - 1), UnitMB}
	case n >= uint64(1)<<shiftKB:
		return Storage{n >> shiftKB, n & (uint64(1)<<shiftKB - 1), UnitKB}
	default:
		return Storage{n, 0, UnitB}
	}
}

// ToBytes reconstructs the exact byte count this Storage represents.
func (s Storage) ToBytes() uint64 {
	switch s.unit {
	case UnitKB:
		return s.quotient<<shiftKB | s.remainder
	case UnitMB:
		return s.quotient<<shiftMB | s.remainder
	case UnitGB:
		return s.quotient<<shiftGB | s.remainder
	case UnitTB:
		return s.quotient<<shiftTB | s.remainder
	case UnitPB:
		return s.quotient<<shiftPB | s.remainder
	default:
		return s.quotient
	}
}

// ToFloat returns the value as a float in its own unit, e.g. Storage for
// 1536 bytes (1 KB + 512 B) in KB yields 1.5.
func (s Storage) ToFloat() float64 {
	if s.unit == UnitB {
		return float64(s.quotient)
	}
	return float64(s.quotient) + float64(s.remainder)*scaleByUnit[s.unit]
}

func (s Storage) Quotient() uint64 { return s.quotient }
func (s Storage) Remainder() uint64 { return s.remainder }
func (s Storage) Unit() Unit { return s.unit }

// Add combines two Storage values by total byte count, redecomposing the
// sum into its own largest-fitting unit.
func (s Storage) Add(other Storage) Storage {
	return FromBytes(s.ToBytes() + other.ToBytes())
}

// String renders the Storage as "<value> <unit>" to two decimal places,
// e.g. "1.50 KB".
func (s Storage) String() string {
	return fmt.Sprintf("%.2f %s", s.ToFloat(), s.unit)
}

// Bytes renders n as a human-readable size, e.g. "10.00 MB", using the
// exact binary decomposition above rather than go-humanize's lossy SI/IEC
// formatting.
func Bytes(n uint64) string {
	return FromBytes(n).String()
}

// ParseBytes parses a human-readable size such as "10MiB" or "512k" back
// into a byte count, as used by --chunk-size and --speed-limit flags.
// Flag parsing is the one place an approximate, user-facing format is
// appropriate; config-file and journal/snapshot values must never
// round-trip through this.
func ParseBytes(s string) (uint64, error) {
	return gohumanize.ParseBytes(s)
}
