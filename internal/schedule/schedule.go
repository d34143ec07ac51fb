// Package schedule describes the guessing schedule of the layered search: which
// register positions are hypothesized at each layer, and the layer from which
// the register is fully determined and advances by the cipher's own shift.
package schedule

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/mahdiidarabi/hitag2-gnd/internal/bitlayout"
	"github.com/mahdiidarabi/hitag2-gnd/pkg/hitag2"
)

const (
	// DefaultThreshold is the HiTag2 layer at which every register bit is known.
	DefaultThreshold = 8
	// DefaultLayers is the number of HiTag2 layers searched.
	DefaultLayers = DefaultThreshold + 1
)

var (
	ErrThreshold = errors.New("threshold out of range")
	ErrWidth     = errors.New("mask wider than register")
	ErrOverlap   = errors.New("position hypothesized twice")
	ErrUncovered = errors.New("register not determined at threshold")
)

// Schedule is the ordered list of layer masks plus the threshold layer.
//
// Layers before Threshold branch on the bit shifted into position 47; layers at
// or after it advance with the cipher's forward shift.
type Schedule struct {
	Masks     []uint64
	Threshold int
}

// Len returns the number of layers.
func (s Schedule) Len() int {
	return len(s.Masks)
}

// Bits returns the popcount of every layer mask.
func (s Schedule) Bits() []int {
	out := make([]int, len(s.Masks))
	for i, m := range s.Masks {
		out[i] = bitlayout.Popcount(m)
	}
	return out
}

// HiTag2 returns the schedule for the HiTag2 filter taps with the default
// threshold.
func HiTag2() Schedule {
	s, err := Generate(hitag2.FilterTaps(), DefaultThreshold, DefaultLayers)
	if err != nil {
		panic(err)
	}
	return s
}

// Generate derives a schedule from the positions read by the filter function.
//
// Layer l hypothesizes every tap p whose sequence bit l+p is still unknown.
// Below the threshold the bit l+48 entering the register is known afterwards
// because the search branches on it. At the threshold every remaining unknown
// position of the frame is added, so the register is complete. Layers after the
// threshold only check consistency and have empty masks.
//
// Args:
//   - taps: Register positions read by the filter (0..47)
//   - threshold: Layer at which the register must be complete
//   - layers: Total number of layers, at least threshold+1
//
// Returns:
//   - The schedule, or an error for out-of-range arguments
func Generate(taps []int, threshold, layers int) (Schedule, error) {
	if threshold < 0 || threshold >= layers {
		return Schedule{}, fmt.Errorf("%w: threshold %d, layers %d", ErrThreshold, threshold, layers)
	}
	for _, p := range taps {
		if p < 0 || p >= bitlayout.Width {
			return Schedule{}, fmt.Errorf("%w: tap %d", ErrWidth, p)
		}
	}

	known := make([]bool, layers+bitlayout.Width)
	masks := make([]uint64, layers)
	for l := 0; l < layers; l++ {
		var m uint64
		if l <= threshold {
			for _, p := range taps {
				if !known[l+p] {
					known[l+p] = true
					m |= 1 << uint(p)
				}
			}
		}
		if l == threshold {
			for p := 0; p < bitlayout.Width; p++ {
				if !known[l+p] {
					known[l+p] = true
					m |= 1 << uint(p)
				}
			}
		}
		masks[l] = m
		known[l+bitlayout.Width] = true
	}
	return Schedule{Masks: masks, Threshold: threshold}, nil
}

// Check verifies that s covers every register position exactly once and that
// the register is complete at the threshold. The search itself assumes this
// and does not check it.
func Check(s Schedule) error {
	if s.Threshold < 0 || s.Threshold >= len(s.Masks) {
		return fmt.Errorf("%w: threshold %d, layers %d", ErrThreshold, s.Threshold, len(s.Masks))
	}

	known := make([]bool, len(s.Masks)+bitlayout.Width)
	for l, m := range s.Masks {
		if m&^bitlayout.StateMask != 0 {
			return fmt.Errorf("%w: layer %d mask %012x", ErrWidth, l, m)
		}
		for p := 0; p < bitlayout.Width; p++ {
			if m&(1<<uint(p)) == 0 {
				continue
			}
			if known[l+p] {
				return fmt.Errorf("%w: layer %d position %d", ErrOverlap, l, p)
			}
			known[l+p] = true
		}
		if l == s.Threshold {
			for p := 0; p < bitlayout.Width; p++ {
				if !known[l+p] {
					return fmt.Errorf("%w: layer %d position %d", ErrUncovered, l, p)
				}
			}
		}
		known[l+bitlayout.Width] = true
	}
	return nil
}

// FormatMask renders a mask as 12 hex digits.
func FormatMask(m uint64) string {
	return fmt.Sprintf("%012x", m)
}

type yamlSchedule struct {
	Threshold int      `yaml:"threshold"`
	Masks     []string `yaml:"masks"`
}

// MarshalYAML writes masks as hex strings.
func (s Schedule) MarshalYAML() (interface{}, error) {
	out := yamlSchedule{Threshold: s.Threshold, Masks: make([]string, len(s.Masks))}
	for i, m := range s.Masks {
		out.Masks[i] = FormatMask(m)
	}
	return out, nil
}

// UnmarshalYAML reads masks from hex strings.
func (s *Schedule) UnmarshalYAML(value *yaml.Node) error {
	var in yamlSchedule
	if err := value.Decode(&in); err != nil {
		return err
	}
	masks := make([]uint64, len(in.Masks))
	for i, str := range in.Masks {
		m, err := bitlayout.ParseHex(str)
		if err != nil {
			return fmt.Errorf("mask %d: %w", i, err)
		}
		masks[i] = m
	}
	s.Masks = masks
	s.Threshold = in.Threshold
	return nil
}
