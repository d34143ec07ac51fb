// Package hitag2 implements the HiTag2 stream cipher primitives needed to build
// and check a state recovery: the 48-bit LFSR step and its inverse, the f20
// nonlinear filter, key/uid/nonce initialisation and keystream generation.
//
// The register is held in the low 48 bits of a uint64. Shift moves every bit
// one position down and inserts the feedback bit at position 47, so the bit at
// position p of the state after t steps is bit p+t of the register sequence.
//
// Reference:
//
//	"Gone in 360 Seconds: Hijacking with Hitag2", Verdult, Garcia, Balasch,
//	USENIX Security 2012, Figure 11.
package hitag2
