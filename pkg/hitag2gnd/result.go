package hitag2gnd

import (
	"sort"
	"time"
)

// RecoveryResult contains the outcome of one search.
type RecoveryResult struct {
	RunID     string        // Identifies the run in logs
	Keystream Keystream     // Keystream the search ran against
	Solutions []Solution    // Every emission reproducing Keystream, in search order
	Discarded int           // Emissions dropped for contradicting Keystream
	Stats     *Stats        // Explored tree counters
	Duration  time.Duration // Wall time of the search
	Expected  *uint64       // Known answer, when the input carried one
}

// States returns the distinct recovered states, ascending.
func (r *RecoveryResult) States() []uint64 {
	seen := make(map[uint64]struct{}, len(r.Solutions))
	out := make([]uint64, 0, len(r.Solutions))
	for _, s := range r.Solutions {
		if _, ok := seen[s.State]; ok {
			continue
		}
		seen[s.State] = struct{}{}
		out = append(out, s.State)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Contains reports whether state was recovered.
func (r *RecoveryResult) Contains(state uint64) bool {
	for _, s := range r.Solutions {
		if s.State == state {
			return true
		}
	}
	return false
}

// Hit reports whether the expected state was recovered. It is false when no
// expected state is known.
func (r *RecoveryResult) Hit() bool {
	return r.Expected != nil && r.Contains(*r.Expected)
}
