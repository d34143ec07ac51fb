package search

// Validate checks a candidate that has passed every search layer against the
// rest of the keystream.
//
// The candidate is aligned to keystream position consumed. Each remaining bit
// must match Filter before the register is shifted on. When all of them match,
// the register is shifted back len(ks) times, once for every layer and every
// validated position, so the returned state produced ks[0].
//
// Args:
//   - c: Cipher primitives
//   - candidate: Register as it left the last layer
//   - ks: Full observed keystream
//   - consumed: Number of keystream bits already checked by the search
//
// Returns:
//   - The state aligned to the first keystream bit, and true on success
func Validate(c Cipher, candidate uint64, ks Keystream, consumed int) (uint64, bool) {
	state := candidate
	for i := consumed; i < len(ks); i++ {
		if c.Filter(state) != ks[i] {
			return 0, false
		}
		state = c.Shift(state)
	}
	for i := 0; i < len(ks); i++ {
		state = c.Unshift(state)
	}
	return state, true
}

// Consistent reports whether state reproduces every bit of ks.
func Consistent(c Cipher, state uint64, ks Keystream) bool {
	for _, b := range ks {
		if c.Filter(state) != b {
			return false
		}
		state = c.Shift(state)
	}
	return true
}
