package propcheck

import "golang.org/x/crypto/blake2b"

// Rand is a small deterministic PRNG. Case generation must be reproducible
// given the same seed regardless of which Go runtime executes it, so this
// does not use math/rand's global state; it self-seeds via blake2b over the
// seed's bytes and then walks a splitmix64 stream.
type Rand struct {
	state uint64
}

// NewRand derives a 64-bit generator state from seed via blake2b-256, so
// seeds of any magnitude (including the zero seed) produce well-distributed
// initial state.
func NewRand(seed int64) *Rand {
	b := [8]byte{
		byte(seed), byte(seed >> 8), byte(seed >> 16), byte(seed >> 24),
		byte(seed >> 32), byte(seed >> 40), byte(seed >> 48), byte(seed >> 56),
	}
	sum := blake2b.Sum256(b[:])
	var state uint64
	for i := 0; i < 8; i++ {
		state = state<<8 | uint64(sum[i])
	}
	if state == 0 {
		state = 0x9E3779B97F4A7C15
	}
	return &Rand{state: state}
}

func (r *Rand) next() uint64 {
	r.state += 0x9E3779B97F4A7C15
	z := r.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// Intn returns a value in [0, n). n must be positive.
func (r *Rand) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.next() % uint64(n))
}

// IntRange returns a value in [lo, hi] inclusive.
func (r *Rand) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.Intn(hi-lo+1)
}

// Bool returns a pseudo-random boolean.
func (r *Rand) Bool() bool { return r.next()%2 == 0 }
