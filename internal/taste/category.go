package taste

import "fmt"

// Category is one taste dimension. The position of a category in the
// configured ordering is the round in which it is offered.
type Category string

const (
	ActionAdventure     Category = "Action & Adventure"
	FantasySupernatural Category = "Fantasy & Supernatural"
	ComedySliceOfLife   Category = "Comedy & Slice of Life"
	DramaEmotional      Category = "Drama & Emotional"
	MysterySuspense     Category = "Mystery & Suspense"
)

// DefaultCategories is the round order of the reference onboarding flow.
var DefaultCategories = Categories{
	ActionAdventure,
	FantasySupernatural,
	ComedySliceOfLife,
	DramaEmotional,
	MysterySuspense,
}

// Categories is a fixed, ordered set of categories.
type Categories []Category

// NewCategories validates an ordering: it must be non-empty and free of
// duplicates and blank names.
func NewCategories(names ...Category) (Categories, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one category is required")
	}

	seen := make(map[Category]bool, len(names))
	out := make(Categories, 0, len(names))
	for _, c := range names {
		if c == "" {
			return nil, fmt.Errorf("category name cannot be empty")
		}
		if seen[c] {
			return nil, fmt.Errorf("duplicate category %q", c)
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}

// Default is the first category in the ordering. Unmatched and tied items land here.
func (cs Categories) Default() Category {
	return cs[0]
}

func (cs Categories) Index(c Category) int {
	for i, x := range cs {
		if x == c {
			return i
		}
	}
	return -1
}

func (cs Categories) Contains(c Category) bool {
	return cs.Index(c) >= 0
}
