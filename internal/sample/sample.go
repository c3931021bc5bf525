// Package sample draws from an injected random source. Every random choice
// the generator makes goes through here, so a seeded source reproduces a run.
package sample

import (
	"hash/fnv"
	"math/rand/v2"
)

// Source is the subset of *rand.Rand the generator needs.
type Source interface {
	IntN(n int) int
}

// New returns a PCG source seeded from seed and an optional stream label, so
// independent work units get independent but reproducible streams.
func New(seed uint64, stream string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(stream))
	return rand.New(rand.NewPCG(seed, h.Sum64()))
}

// Choice returns a uniformly chosen element. xs must be non-empty.
func Choice[T any](r Source, xs []T) T {
	return xs[r.IntN(len(xs))]
}

// Shuffle permutes xs in place (Fisher-Yates).
func Shuffle[T any](r Source, xs []T) {
	for i := len(xs) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		xs[i], xs[j] = xs[j], xs[i]
	}
}

// Sample returns k distinct elements in random order without modifying xs.
// k is clamped to len(xs).
func Sample[T any](r Source, xs []T, k int) []T {
	if k > len(xs) {
		k = len(xs)
	}
	pool := make([]T, len(xs))
	copy(pool, xs)
	for i := 0; i < k; i++ {
		j := i + r.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}

// Between returns an int in [lo, hi].
func Between(r Source, lo, hi int) int {
	return lo + r.IntN(hi-lo+1)
}
