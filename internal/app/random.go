package app

import (
	"math/rand"
	"sync"
	"time"
)

// RandomSource picks uniformly in [0, n). Inject a seeded source for reproducible draws.
type RandomSource interface {
	Intn(n int) int
}

type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomSource returns a goroutine-safe source seeded with seed.
func NewRandomSource(seed int64) RandomSource {
	return &lockedRand{rnd: rand.New(rand.NewSource(seed))}
}

// NewTimeSeededSource is the production source.
func NewTimeSeededSource() RandomSource {
	return NewRandomSource(time.Now().UnixNano())
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Intn(n)
}
