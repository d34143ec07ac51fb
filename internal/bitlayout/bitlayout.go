// Package bitlayout converts between the compact "guessed bits" form used while
// enumerating a layer and the full 48-bit register layout.
package bitlayout

import (
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// ErrHex is returned for values that are not a hex number.
var ErrHex = errors.New("invalid hex value")

// Width is the register width in bits.
const Width = 48

// StateMask selects the meaningful bits of a register state.
const StateMask uint64 = 1<<Width - 1

// Popcount returns the number of set bits in mask, i.e. the degrees of
// freedom of a layer guessing that mask.
func Popcount(mask uint64) int {
	return bits.OnesCount64(mask)
}

// Expand scatters the low bits of x onto the set positions of mask.
//
// Set positions are visited from least to most significant and each one takes
// the next low bit of x. Positions outside mask are zero. Bits of x beyond
// Popcount(mask) are dropped.
//
// Args:
//   - mask: Register positions to fill
//   - x: Compact value, at most Popcount(mask) meaningful bits
//
// Returns:
//   - The 48-bit value with x's bits placed under mask
func Expand(mask, x uint64) uint64 {
	var res uint64
	mask &= StateMask
	for mask != 0 {
		low := mask & -mask
		if x&1 != 0 {
			res |= low
		}
		x >>= 1
		mask ^= low
	}
	return res
}

// Compress gathers the bits of x found at the set positions of mask and packs
// them, in ascending position order, into the low bits of the result.
func Compress(mask, x uint64) uint64 {
	var res uint64
	var out uint
	mask &= StateMask
	for mask != 0 {
		low := mask & -mask
		if x&low != 0 {
			res |= 1 << out
		}
		out++
		mask ^= low
	}
	return res
}

// ParseHex parses a register, mask or keystream value written in hex, with or
// without a 0x prefix. Surrounding space is ignored; an empty string is an
// error.
func ParseHex(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrHex)
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrHex, s)
	}
	return v, nil
}
