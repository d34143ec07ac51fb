// Package scenario builds attack inputs from key material: the register state
// at the first keystream bit, the keystream itself and the reference
// trajectory used to pin a search to a known answer.
package scenario

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"github.com/mahdiidarabi/hitag2-gnd/internal/search"
	"github.com/mahdiidarabi/hitag2-gnd/pkg/hitag2"
)

const seedDomain = "hitag2-gnd/scenario/v1"

// Scenario is one key/uid/nonce triple.
type Scenario struct {
	Key   uint64
	UID   uint32
	Nonce uint32
}

// New returns the scenario for explicit key material. Key bits above 48 are
// ignored.
func New(key uint64, uid, nonce uint32) Scenario {
	return Scenario{Key: key & hitag2.StateMask, UID: uid, Nonce: nonce}
}

// FromSeed expands seed with SHAKE256 into a 48-bit key, a uid and a nonce, so
// the same seed always gives the same scenario.
func FromSeed(seed []byte) Scenario {
	h := sha3.NewShake256()
	h.Write([]byte(seedDomain))
	h.Write(seed)

	var buf [14]byte
	_, _ = h.Read(buf[:])

	var key [8]byte
	copy(key[2:], buf[:6])
	return New(
		binary.BigEndian.Uint64(key[:]),
		binary.BigEndian.Uint32(buf[6:10]),
		binary.BigEndian.Uint32(buf[10:14]),
	)
}

// State returns the register that produces the first keystream bit.
func (s Scenario) State() uint64 {
	return hitag2.Init(s.Key, s.UID, s.Nonce)
}

// Keystream returns the first n keystream bits.
func (s Scenario) Keystream(n int) search.Keystream {
	return search.Keystream(hitag2.KeystreamBits(s.State(), n))
}

// Reference returns the register at each of the first layers positions.
func (s Scenario) Reference(layers int) []uint64 {
	return hitag2.Trajectory(s.State(), layers)
}

// Debug returns a search restriction pinning the positions under mask to this
// scenario's trajectory.
func (s Scenario) Debug(layers int, mask uint64) *search.Debug {
	return &search.Debug{Reference: s.Reference(layers), Mask: mask}
}
