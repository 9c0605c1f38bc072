// Package shuffle keeps the site-wide shuffle seed and applies it.
package shuffle

import (
	"math/rand/v2"
	"slices"
	"sync/atomic"
	"time"
)

// Seed is the process-wide shuffle seed. It starts at the current Unix
// millisecond and only ever increases.
type Seed struct {
	v   atomic.Int64
	now func() time.Time
}

// NewSeed returns a seed initialised from the clock.
func NewSeed() *Seed {
	return newSeed(time.Now)
}

func newSeed(now func() time.Time) *Seed {
	s := &Seed{now: now}
	s.v.Store(now().UnixMilli())
	return s
}

// Value returns the current seed.
func (s *Seed) Value() int64 {
	return s.v.Load()
}

// Reshuffle replaces the seed with the current time, or the previous
// seed plus one when the clock has not moved past it, and returns it.
func (s *Seed) Reshuffle() int64 {
	next := s.now().UnixMilli()
	for {
		cur := s.v.Load()
		candidate := next
		if candidate <= cur {
			candidate = cur + 1
		}
		if s.v.CompareAndSwap(cur, candidate) {
			return candidate
		}
	}
}

// Shuffle returns a permutation of items determined by seed. items is not
// modified.
func Shuffle[T any](items []T, seed int64) []T {
	out := slices.Clone(items)
	r := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	r.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
