package catalog

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Sanskarlajurkar07/memeverse/internal/memes"
)

const (
	maxSeedLikes = 1000
	maxSeedAge   = 10_000_000_000 * time.Millisecond
)

// Seed holds the engagement values assigned to an upstream item that carries none.
type Seed struct {
	LikeCount int
	CreatedAt time.Time
	Category  memes.Category
}

// Seeder assigns engagement values at fetch time.
type Seeder interface {
	Seed(now time.Time) Seed
}

// SeederFunc adapts a function to the Seeder interface.
type SeederFunc func(now time.Time) Seed

// Seed calls f(now).
func (f SeederFunc) Seed(now time.Time) Seed {
	return f(now)
}

// RandomSeeder draws likes from [0,1000), an age of up to 10^10 ms and a uniform category.
type RandomSeeder struct {
	mu     sync.Mutex
	random *rand.Rand
}

// NewRandomSeeder constructs a seeder over the supplied source; nil uses a time based PCG.
func NewRandomSeeder(source rand.Source) *RandomSeeder {
	if source == nil {
		now := uint64(time.Now().UnixNano())
		source = rand.NewPCG(now, now>>32|1)
	}
	return &RandomSeeder{random: rand.New(source)}
}

func (s *RandomSeeder) Seed(now time.Time) Seed {
	s.mu.Lock()
	defer s.mu.Unlock()
	age := time.Duration(s.random.Int64N(int64(maxSeedAge)))
	return Seed{
		LikeCount: s.random.IntN(maxSeedLikes),
		CreatedAt: now.Add(-age).UTC(),
		Category:  memes.Categories[s.random.IntN(len(memes.Categories))],
	}
}
