// Package search implements the layered guess-and-determine search over a
// 48-bit LFSR register and the validator for the candidates it produces.
package search

import (
	"log/slog"

	"github.com/mahdiidarabi/hitag2-gnd/internal/bitlayout"
	"github.com/mahdiidarabi/hitag2-gnd/internal/schedule"
)

// Cipher is the set of primitives the search consumes.
type Cipher interface {
	// Filter maps a full register state to one keystream bit.
	Filter(state uint64) uint8
	// Shift advances the register by one step.
	Shift(state uint64) uint64
	// Unshift undoes one Shift.
	Unshift(state uint64) uint64
}

// Keystream holds observed output bits, one per element, first bit first.
type Keystream []uint8

// KeystreamFromUint unpacks the n low bits of v, most significant first.
func KeystreamFromUint(v uint64, n int) Keystream {
	ks := make(Keystream, n)
	for i := 0; i < n; i++ {
		ks[i] = uint8(v>>uint(n-1-i)) & 1
	}
	return ks
}

// Uint packs the keystream back into an integer, first bit most significant.
// Only the last 64 bits survive for longer keystreams.
func (k Keystream) Uint() uint64 {
	var v uint64
	for _, b := range k {
		v = v<<1 | uint64(b&1)
	}
	return v
}

// Debug restricts the search to hypotheses agreeing with a known trajectory.
// Reference[l] is the expected register at layer l; only positions under Mask
// are compared.
type Debug struct {
	Reference []uint64
	Mask      uint64
}

// Config is everything one search run needs. Keystream must hold at least
// Schedule.Len() bits and the schedule must pass schedule.Check; neither is
// verified here.
type Config struct {
	Cipher    Cipher
	Schedule  schedule.Schedule
	Keystream Keystream
	Debug     *Debug
	Logger    *slog.Logger

	// Trace, when set, sees every fill that survives both prunes.
	Trace func(layer int, candidate uint64)
}

// Solution is a register state confirmed against the whole keystream.
type Solution struct {
	// State is aligned to the first keystream bit.
	State uint64

	// Candidate is the hypothesis as it left the last layer.
	Candidate uint64
}

type searcher struct {
	cfg   Config
	bits  []int
	emit  func(Solution)
	stats *Stats
}

// Run explores the full hypothesis tree and calls emit for every validated
// candidate, in depth-first order. It never stops early and does not remove
// duplicates: distinct branches reaching the same state each emit it.
//
// Args:
//   - cfg: Cipher, schedule, keystream and optional debug reference
//   - emit: Called once per confirmed solution; may be nil
//
// Returns:
//   - Counters describing the explored tree
func Run(cfg Config, emit func(Solution)) *Stats {
	layers := cfg.Schedule.Len()
	s := &searcher{
		cfg:   cfg,
		bits:  cfg.Schedule.Bits(),
		emit:  emit,
		stats: newStats(layers),
	}

	s.fillLayer(0, 0)

	if cfg.Logger != nil {
		for l, ls := range s.stats.Layers {
			cfg.Logger.Debug("layer done",
				slog.Int("layer", l),
				slog.Int("bits", s.bits[l]),
				slog.Uint64("entered", ls.Entered),
				slog.Uint64("fills", ls.Fills),
				slog.Uint64("debug_pruned", ls.DebugPruned),
				slog.Uint64("filter_pruned", ls.FilterPruned),
				slog.Uint64("survived", ls.Survived),
			)
		}
	}
	return s.stats
}

func (s *searcher) fillLayer(state uint64, layer int) {
	if layer == len(s.cfg.Schedule.Masks) {
		s.stats.Candidates++
		solved, ok := Validate(s.cfg.Cipher, state, s.cfg.Keystream, layer)
		if !ok {
			s.stats.Rejected++
			return
		}
		s.stats.Solutions++
		if s.emit != nil {
			s.emit(Solution{State: solved, Candidate: state})
		}
		return
	}

	mask := s.cfg.Schedule.Masks[layer]
	want := s.cfg.Keystream[layer]
	fills := uint64(1) << uint(s.bits[layer])
	ls := &s.stats.Layers[layer]
	ls.Entered++

	var dmask, dref uint64
	debug := s.cfg.Debug != nil
	if debug {
		dmask = s.cfg.Debug.Mask
		dref = s.cfg.Debug.Reference[layer] & dmask
	}

	for fill := uint64(0); fill < fills; fill++ {
		ls.Fills++
		candidate := state | bitlayout.Expand(mask, fill)
		if debug && candidate&dmask != dref {
			ls.DebugPruned++
			continue
		}
		if s.cfg.Cipher.Filter(candidate) != want {
			ls.FilterPruned++
			continue
		}
		ls.Survived++
		if s.cfg.Trace != nil {
			s.cfg.Trace(layer, candidate)
		}

		if layer < s.cfg.Schedule.Threshold {
			// the bit entering position 47 is not determined yet
			next := candidate >> 1
			s.fillLayer(next, layer+1)
			s.fillLayer(next|1<<(bitlayout.Width-1), layer+1)
		} else {
			s.fillLayer(s.cfg.Cipher.Shift(candidate), layer+1)
		}
	}
}
