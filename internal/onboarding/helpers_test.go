package onboarding

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kdimtricp/anilights/internal/models"
	"github.com/kdimtricp/anilights/internal/sampling"
	"github.com/kdimtricp/anilights/internal/taste"
)

// fixtureCatalog puts 3 items in Action (11-13), 3 in Fantasy (41-43),
// 8 in Comedy (21-28), 2 in Drama (31-32) and 6 in Mystery (51-56).
func fixtureCatalog() []models.CatalogItem {
	var items []models.CatalogItem
	add := func(genre string, ids ...int) {
		for _, id := range ids {
			items = append(items, models.CatalogItem{ID: id, Title: genre, Genres: []string{genre}})
		}
	}
	add("Action", 11, 12, 13)
	add("Fantasy", 41, 42, 43)
	add("Comedy", 21, 22, 23, 24, 25, 26, 27, 28)
	add("Drama", 31, 32)
	add("Mystery", 51, 52, 53, 54, 55, 56)
	return items
}

func fixtureClassification(t *testing.T) *taste.Classification {
	t.Helper()
	c, err := taste.NewClassifier(taste.DefaultCategories, taste.DefaultScoreTable())
	require.NoError(t, err)
	return c.Classify(fixtureCatalog())
}

// countingShuffle reverses the slice and counts how often it was asked to.
type countingShuffle struct {
	calls int
}

func (c *countingShuffle) shuffle(n int, swap func(i, j int)) {
	c.calls++
	for i := 0; i < n/2; i++ {
		swap(i, n-1-i)
	}
}

func newTestSession(t *testing.T) (*Session, *countingShuffle) {
	t.Helper()
	cs := &countingShuffle{}
	return NewSession(fixtureClassification(t), sampling.NewSampler(cs.shuffle), 5), cs
}

func optionIDs(t *testing.T, s *Session) []int {
	t.Helper()
	opts, err := s.Options()
	require.NoError(t, err)
	ids := make([]int, len(opts))
	for i, o := range opts {
		ids[i] = o.ID
	}
	return ids
}

func pickFirst(t *testing.T, s *Session) int {
	t.Helper()
	id := optionIDs(t, s)[0]
	_, err := s.Pick(id)
	require.NoError(t, err)
	return id
}
