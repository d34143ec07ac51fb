package hitag2gnd

import (
	"time"

	"github.com/mahdiidarabi/hitag2-gnd/internal/schedule"
	"github.com/mahdiidarabi/hitag2-gnd/internal/search"
	"github.com/mahdiidarabi/hitag2-gnd/pkg/hitag2"
)

type (
	// Keystream holds observed output bits, first bit first.
	Keystream = search.Keystream
	// Schedule is the per-layer mask list plus the threshold layer.
	Schedule = schedule.Schedule
	// Solution is one confirmed state.
	Solution = search.Solution
	// Stats counts what the search explored.
	Stats = search.Stats
	// Cipher is the set of primitives the search calls.
	Cipher = search.Cipher
)

// Observer receives the counters of every finished search.
type Observer interface {
	Observe(stats *Stats, elapsed time.Duration)
}

// DebugConfig pins register positions to a known trajectory so the search
// only explores hypotheses agreeing with it.
type DebugConfig struct {
	// Mask selects the compared positions.
	Mask uint64

	// Reference holds the expected register per layer. When empty it is
	// derived from State.
	Reference []uint64

	// State is the register at the first keystream bit.
	State uint64
}

// DefaultDebugConfig pins the filter taps to the trajectory starting at state.
func DefaultDebugConfig(state uint64) *DebugConfig {
	return &DebugConfig{Mask: hitag2.FilterMask, State: state}
}

func (d *DebugConfig) reference(layers int) []uint64 {
	if len(d.Reference) > 0 {
		return d.Reference
	}
	return hitag2.Trajectory(d.State, layers)
}

// DefaultMinValidationBits is the number of keystream bits past the last
// layer that candidates must also reproduce. With the HiTag2 schedule it asks
// for 32 bits in total.
const DefaultMinValidationBits = 23

// Config configures a search.
type Config struct {
	// Schedule overrides the HiTag2 schedule when set.
	Schedule *Schedule

	// Debug restricts the search to a known trajectory when set.
	Debug *DebugConfig

	// MinValidationBits is how many keystream bits beyond one per layer
	// Recover requires. Zero selects DefaultMinValidationBits; a negative
	// value lifts the requirement.
	MinValidationBits int

	// Trace logs every surviving fill at debug level.
	Trace bool
}

// DefaultConfig searches the HiTag2 schedule without restriction.
func DefaultConfig() Config {
	return Config{MinValidationBits: DefaultMinValidationBits}
}

func (c Config) minValidationBits() int {
	switch {
	case c.MinValidationBits == 0:
		return DefaultMinValidationBits
	case c.MinValidationBits < 0:
		return 0
	}
	return c.MinValidationBits
}

func (c Config) schedule() Schedule {
	if c.Schedule != nil {
		return *c.Schedule
	}
	return schedule.HiTag2()
}
