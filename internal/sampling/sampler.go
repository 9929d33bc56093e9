package sampling

import (
	"math/rand/v2"

	"github.com/kdimtricp/anilights/internal/models"
)

// ShuffleFunc permutes n elements by calling swap, with the contract of rand.Shuffle.
type ShuffleFunc func(n int, swap func(i, j int))

// Sampler draws bounded display sets from a category's items.
type Sampler struct {
	shuffle ShuffleFunc
}

// NewSampler builds a sampler around shuffle. A nil shuffle uses the global
// math/rand/v2 source.
func NewSampler(shuffle ShuffleFunc) *Sampler {
	if shuffle == nil {
		shuffle = rand.Shuffle
	}
	return &Sampler{shuffle: shuffle}
}

// NewSeededSampler returns a sampler whose draws are reproducible for a given
// seed. It is not safe for concurrent use.
func NewSeededSampler(seed1, seed2 uint64) *Sampler {
	r := rand.New(rand.NewPCG(seed1, seed2))
	return NewSampler(r.Shuffle)
}

// Sample returns min(size, len(items)) distinct items. Categories that fit
// are returned whole in their original order; larger ones are shuffled in
// full and the first size elements taken. items is never modified.
func (s *Sampler) Sample(items []models.CatalogItem, size int) []models.CatalogItem {
	if size <= 0 || len(items) == 0 {
		return []models.CatalogItem{}
	}

	out := make([]models.CatalogItem, len(items))
	copy(out, items)
	if len(items) <= size {
		return out
	}

	s.shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out[:size:size]
}
