// Package randsrc provides the deterministic, per-cache pseudo-random source
// used to pick a victim set among a probed chain.
//
// Caches are constructed during single-threaded simulator bootstrap, so a
// process-local counter can hand out seeds in construction order without any
// locking. Reusing the same construction order across two runs of the same
// binary therefore reproduces the same victim choices.
package randsrc

import (
	"math/rand"
	"sync/atomic"
)

var constructionCounter uint64

// NextSeed returns the seed for the next cache to be constructed. It must
// only be called while the simulator is still single-threaded (during
// bootstrap); callers that construct caches concurrently will still get
// distinct seeds, but the seed-to-cache mapping will not be reproducible
// across runs.
func NextSeed() int64 {
	return int64(atomic.AddUint64(&constructionCounter, 1))
}

// Source is a minimal pseudo-random source used by the cache replacement
// policy. It exposes exactly the operation the cache needs: drawing a
// uniformly distributed index in [0, n).
type Source struct {
	rng *rand.Rand
}

// NewSource creates a Source seeded with seed.
func NewSource(seed int64) *Source {
	return &Source{rng: rand.New(rand.NewSource(seed))}
}

// Next returns a pseudo-random value in [0, n). It panics if n <= 0.
func (s *Source) Next(n int) int {
	if n <= 0 {
		panic("randsrc: Next called with n <= 0")
	}

	if n == 1 {
		return 0
	}

	return s.rng.Intn(n)
}
