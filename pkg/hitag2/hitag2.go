package hitag2

import "math/bits"

// StateMask selects the 48 meaningful bits of a register state.
const StateMask uint64 = 1<<48 - 1

// FilterMask marks the 20 register positions read by Filter.
const FilterMask uint64 = 0x5806b4a2d16c

const (
	// feedback taps 0,2,3,6,7,8,16,22,23,26,30,41,42,43,46,47
	feedbackTaps uint64 = 0xce0044c101cd
	// taps of Unshift: feedbackTaps without bit 0, moved down one, plus bit 47
	inverseTaps uint64 = 0xe700226080e6

	fa uint32 = 0x3c65
	fb uint32 = 0xee5
	fc uint32 = 0xdd3929b
)

var filterTaps = []int{2, 3, 5, 6, 8, 12, 14, 15, 17, 21, 23, 26, 28, 29, 31, 33, 34, 43, 44, 46}

// FilterTaps returns the register positions read by Filter, ascending.
func FilterTaps() []int {
	out := make([]int, len(filterTaps))
	copy(out, filterTaps)
	return out
}

func bit(x uint64, n uint) uint32 {
	return uint32(x>>n) & 1
}

func i4(x uint64, a, b, c, d uint) uint32 {
	return bit(x, a)<<3 | bit(x, b)<<2 | bit(x, c)<<1 | bit(x, d)
}

// Filter evaluates the two-level f20 function on state and returns the
// keystream bit it produces (0 or 1).
func Filter(state uint64) uint8 {
	s0 := (fa >> i4(state, 2, 3, 5, 6)) & 1
	s1 := (fb >> i4(state, 8, 12, 14, 15)) & 1
	s2 := (fb >> i4(state, 17, 21, 23, 26)) & 1
	s3 := (fb >> i4(state, 28, 29, 31, 33)) & 1
	s4 := (fa >> i4(state, 34, 43, 44, 46)) & 1
	return uint8((fc >> (s0<<4 | s1<<3 | s2<<2 | s3<<1 | s4)) & 1)
}

func parity(x uint64) uint64 {
	return uint64(bits.OnesCount64(x) & 1)
}

// Shift advances the LFSR by one step.
func Shift(state uint64) uint64 {
	state &= StateMask
	return state>>1 | parity(state&feedbackTaps)<<47
}

// Unshift undoes one Shift.
func Unshift(state uint64) uint64 {
	state &= StateMask
	return (state<<1)&StateMask | parity(state&inverseTaps)
}

// Init derives the register state used for the first keystream bit from the
// 48-bit key, the tag serial number and the reader nonce.
func Init(key uint64, uid, nonce uint32) uint64 {
	var state uint64
	for i := uint(32); i < 48; i++ {
		state = state<<1 | (key>>i)&1
	}
	for i := uint(0); i < 32; i++ {
		state = state<<1 | uint64(uid>>i)&1
	}
	for i := uint(0); i < 32; i++ {
		in := uint64(Filter(state)) ^ uint64(nonce>>(31-i))&1 ^ (key>>(31-i))&1
		state = state>>1 | in<<47
	}
	return state
}

// Keystream generates n keystream bits from state, n at most 64. The first
// generated bit is the most significant bit of the result.
func Keystream(state uint64, n int) uint64 {
	var out uint64
	for i := 0; i < n; i++ {
		out = out<<1 | uint64(Filter(state))
		state = Shift(state)
	}
	return out
}

// KeystreamBits generates n keystream bits from state, one per element, first
// bit first.
func KeystreamBits(state uint64, n int) []uint8 {
	out := make([]uint8, n)
	for i := range out {
		out[i] = Filter(state)
		state = Shift(state)
	}
	return out
}

// Trajectory returns the n successive register states starting at state.
func Trajectory(state uint64, n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = state
		state = Shift(state)
	}
	return out
}

// Cipher exposes the primitives as a value so they can be passed to the
// search engine.
type Cipher struct{}

// Filter calls the package-level Filter.
func (Cipher) Filter(state uint64) uint8 {
	return Filter(state)
}

// Shift calls the package-level Shift.
func (Cipher) Shift(state uint64) uint64 {
	return Shift(state)
}

// Unshift calls the package-level Unshift.
func (Cipher) Unshift(state uint64) uint64 {
	return Unshift(state)
}
