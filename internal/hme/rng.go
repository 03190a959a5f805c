// Package hme implements the Human Motion Engine: a deterministic
// choreographer that drives cursor moves, hovers, and inertial scrolling
// in place of naive sleep-based scene scripts. It is
// intentionally dependency-free: cubic-Bézier/minimum-jerk sampling and a
// Mulberry32 PRNG are closed-form math with no natural library home in
// the example corpus (see DESIGN.md).
package hme

import "hash/fnv"

// SeedFromURL derives a deterministic 32-bit seed from a scene URL via
// FNV-1a, so the same URL + duration always produces the same beats.
func SeedFromURL(url string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(url))
	return h.Sum32()
}

// RNG is a Mulberry32 pseudo-random generator: small, fast, and exactly
// reproducible across runs given the same seed.
type RNG struct {
	state uint32
}

func NewRNG(seed uint32) *RNG {
	return &RNG{state: seed}
}

// Float64 returns the next pseudo-random value in [0, 1).
func (r *RNG) Float64() float64 {
	r.state += 0x6D2B79F5
	a := r.state
	t := (a ^ (a >> 15)) * (1 | a)
	t = (t + (t^(t>>7))*(61|t)) ^ t
	return float64(t^(t>>14)) / 4294967296.0
}

// Range returns a pseudo-random value in [min, max).
func (r *RNG) Range(min, max float64) float64 {
	return min + r.Float64()*(max-min)
}

// RangeDuration returns a pseudo-random duration in [min, max).
func (r *RNG) RangeDuration(minMs, maxMs float64) float64 {
	return r.Range(minMs, maxMs)
}

// Bool returns true with the given probability in [0, 1].
func (r *RNG) Bool(probability float64) bool {
	return r.Float64() < probability
}

// Sign returns -1 or 1 with equal probability, used to pick which side
// of a path a Bézier control point bows toward.
func (r *RNG) Sign() float64 {
	if r.Bool(0.5) {
		return 1
	}
	return -1
}
