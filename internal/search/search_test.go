package search

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahdiidarabi/hitag2-gnd/internal/bitlayout"
	"github.com/mahdiidarabi/hitag2-gnd/internal/schedule"
	"github.com/mahdiidarabi/hitag2-gnd/pkg/hitag2"
)

// state derived from key 0x414141414141, uid 0x42424242, nonce 0x43434343
const fixedState uint64 = 0xb43281238282

func debugConfig(state uint64, n int, sched schedule.Schedule, dmask uint64) Config {
	return Config{
		Cipher:    hitag2.Cipher{},
		Schedule:  sched,
		Keystream: Keystream(hitag2.KeystreamBits(state, n)),
		Debug: &Debug{
			Reference: hitag2.Trajectory(state, sched.Len()),
			Mask:      dmask,
		},
	}
}

func collect(cfg Config) ([]uint64, *Stats) {
	var states []uint64
	stats := Run(cfg, func(sol Solution) {
		states = append(states, sol.State)
	})
	return states, stats
}

func unique(states []uint64) []uint64 {
	seen := make(map[uint64]bool)
	var out []uint64
	for _, s := range states {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestRun_FixedKey(t *testing.T) {
	cfg := debugConfig(fixedState, 32, schedule.HiTag2(), hitag2.FilterMask)
	require.Equal(t, uint64(0xa79d82d0), cfg.Keystream.Uint())

	states, stats := collect(cfg)

	assert.Equal(t, []uint64{fixedState}, states)
	assert.Equal(t, uint64(1), stats.Solutions)
	assert.Equal(t, stats.Candidates, stats.Rejected+stats.Solutions)
}

func TestRun_RecallRandomStates(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 4; i++ {
		state := rng.Uint64() & bitlayout.StateMask
		cfg := debugConfig(state, 32, schedule.HiTag2(), hitag2.FilterMask)

		states, _ := collect(cfg)

		require.Containsf(t, states, state, "state %012x not recovered", state)
		for _, s := range states {
			assert.Equal(t, hitag2.Keystream(state, 32), hitag2.Keystream(s, 32))
		}
	}
}

func TestRun_PartialDebugMask(t *testing.T) {
	// leave the five lowest filter taps to the keystream check
	dmask := hitag2.FilterMask &^ 0x16c
	cfg := debugConfig(fixedState, 32, schedule.HiTag2(), dmask)

	states, stats := collect(cfg)

	// the four taps below the final frame are dropped, so 2^4 branches
	// reach the same state
	assert.Len(t, states, 16)
	assert.Equal(t, []uint64{fixedState}, unique(states))
	assert.Greater(t, stats.Layers[0].FilterPruned, uint64(0))
}

func TestRun_FillCountLaw(t *testing.T) {
	sched := schedule.HiTag2()
	cfg := debugConfig(fixedState, 32, sched, hitag2.FilterMask&^0x16c)

	_, stats := collect(cfg)

	bits := sched.Bits()
	require.Len(t, stats.Layers, sched.Len())
	assert.Equal(t, uint64(1), stats.Layers[0].Entered)
	for l, ls := range stats.Layers {
		assert.Equalf(t, ls.Entered<<uint(bits[l]), ls.Fills, "layer %d", l)
		assert.Equalf(t, ls.Fills, ls.DebugPruned+ls.FilterPruned+ls.Survived, "layer %d", l)

		next := ls.Survived
		if l < sched.Threshold {
			next *= 2
		}
		if l+1 < len(stats.Layers) {
			assert.Equalf(t, next, stats.Layers[l+1].Entered, "layer %d", l+1)
		} else {
			assert.Equal(t, next, stats.Candidates)
		}
	}
	assert.Greater(t, stats.Fills(), uint64(1)<<20)
}

func TestRun_SurvivorsMatchKeystream(t *testing.T) {
	cfg := debugConfig(fixedState, 32, schedule.HiTag2(), hitag2.FilterMask&^0x16c)
	ref := cfg.Debug.Reference

	var traced int
	cfg.Trace = func(layer int, candidate uint64) {
		traced++
		require.Equal(t, cfg.Keystream[layer], hitag2.Filter(candidate))
		require.Equal(t, ref[layer]&cfg.Debug.Mask, candidate&cfg.Debug.Mask)
		require.Zero(t, candidate&^bitlayout.StateMask)
	}

	_, stats := collect(cfg)

	var survived uint64
	for _, ls := range stats.Layers {
		survived += ls.Survived
	}
	assert.Equal(t, survived, uint64(traced))
}

func TestRun_EmptyMaskLayers(t *testing.T) {
	sched, err := schedule.Generate(hitag2.FilterTaps(), schedule.DefaultThreshold, 12)
	require.NoError(t, err)
	cfg := debugConfig(fixedState, 32, sched, hitag2.FilterMask)

	states, stats := collect(cfg)

	assert.Contains(t, states, fixedState)
	for l := schedule.DefaultLayers; l < sched.Len(); l++ {
		ls := stats.Layers[l]
		assert.Equalf(t, ls.Entered, ls.Fills, "layer %d must enumerate one fill", l)
		if l+1 < sched.Len() {
			assert.Equal(t, ls.Survived, stats.Layers[l+1].Entered)
		}
	}
}

func TestRun_Deterministic(t *testing.T) {
	cfg := debugConfig(fixedState, 32, schedule.HiTag2(), hitag2.FilterMask&^0x16c)

	first, s1 := collect(cfg)
	second, s2 := collect(cfg)

	assert.Equal(t, first, second)
	assert.Equal(t, s1, s2)
}

func TestRun_NilEmit(t *testing.T) {
	cfg := debugConfig(fixedState, 32, schedule.HiTag2(), hitag2.FilterMask)
	stats := Run(cfg, nil)
	assert.Equal(t, uint64(1), stats.Solutions)
}

func TestRun_WrongKeystreamFindsNothing(t *testing.T) {
	cfg := debugConfig(fixedState, 32, schedule.HiTag2(), hitag2.FilterMask)
	ks := append(Keystream(nil), cfg.Keystream...)
	ks[20] ^= 1
	cfg.Keystream = ks

	states, stats := collect(cfg)

	assert.Empty(t, states)
	assert.Zero(t, stats.Solutions)
}

func TestValidate(t *testing.T) {
	c := hitag2.Cipher{}
	ks := Keystream(hitag2.KeystreamBits(fixedState, 32))
	candidate := fixedState
	for i := 0; i < 9; i++ {
		candidate = hitag2.Shift(candidate)
	}

	got, ok := Validate(c, candidate, ks, 9)
	require.True(t, ok)
	assert.Equal(t, fixedState, got)

	bad := append(Keystream(nil), ks...)
	bad[31] ^= 1
	_, ok = Validate(c, candidate, bad, 9)
	assert.False(t, ok)

	// nothing left to check: only the shifts are undone
	end := fixedState
	for i := 0; i < 32; i++ {
		end = hitag2.Shift(end)
	}
	got, ok = Validate(c, end, ks, 32)
	require.True(t, ok)
	assert.Equal(t, fixedState, got)
}

func TestConsistent(t *testing.T) {
	c := hitag2.Cipher{}
	ks := Keystream(hitag2.KeystreamBits(fixedState, 32))
	assert.True(t, Consistent(c, fixedState, ks))
	assert.True(t, Consistent(c, fixedState, ks[:1]))
	assert.True(t, Consistent(c, 0, nil))

	for _, i := range []int{0, 8, 31} {
		bad := append(Keystream(nil), ks...)
		bad[i] ^= 1
		assert.False(t, Consistent(c, fixedState, bad), "bit %d flipped", i)
	}
	assert.False(t, Consistent(c, hitag2.Shift(fixedState), ks))
}

func TestKeystreamFromUint(t *testing.T) {
	ks := KeystreamFromUint(0xa79d82d0, 32)
	require.Len(t, ks, 32)
	assert.Equal(t, Keystream(hitag2.KeystreamBits(fixedState, 32)), ks)
	assert.Equal(t, uint64(0xa79d82d0), ks.Uint())
	assert.Equal(t, Keystream{0, 0, 1}, KeystreamFromUint(1, 3))
}
