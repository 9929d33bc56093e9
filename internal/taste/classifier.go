package taste

import (
	"fmt"
	"strings"

	"github.com/kdimtricp/anilights/internal/models"
)

// Classifier assigns catalog items to categories using a ScoreTable.
type Classifier struct {
	categories Categories
	table      ScoreTable
}

func NewClassifier(categories Categories, table ScoreTable) (*Classifier, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("classifier needs at least one category")
	}
	if err := table.Validate(categories); err != nil {
		return nil, fmt.Errorf("invalid score table: %w", err)
	}
	return &Classifier{categories: categories, table: table}, nil
}

func (c *Classifier) Categories() Categories {
	return c.categories
}

// CategoryOf returns the category with the strictly highest accumulated
// weight. When nothing matches, or when two or more categories share the top
// score, the item goes to the default (first) category.
func (c *Classifier) CategoryOf(item models.CatalogItem) Category {
	scores := make(map[Category]int, len(c.categories))
	for _, genre := range item.Genres {
		for cat, w := range c.table[strings.TrimSpace(genre)] {
			scores[cat] += w
		}
	}

	best := c.categories.Default()
	bestScore := 0
	tied := false
	for _, cat := range c.categories {
		s := scores[cat]
		switch {
		case s > bestScore:
			best, bestScore, tied = cat, s, false
		case s == bestScore && s > 0:
			tied = true
		}
	}

	if bestScore == 0 || tied {
		return c.categories.Default()
	}
	return best
}

// Classify buckets the whole catalog. The result depends only on the catalog
// and the table, so one Classification can back any number of sessions.
func (c *Classifier) Classify(catalog []models.CatalogItem) *Classification {
	result := &Classification{
		categories: c.categories,
		byID:       make(map[int]Category, len(catalog)),
		byCategory: make(map[Category][]models.CatalogItem, len(c.categories)),
	}

	for _, item := range catalog {
		cat := c.CategoryOf(item)
		result.byID[item.ID] = cat
		result.byCategory[cat] = append(result.byCategory[cat], item)
	}
	return result
}

// Classification is the immutable output of Classify.
type Classification struct {
	categories Categories
	byID       map[int]Category
	byCategory map[Category][]models.CatalogItem
}

func (r *Classification) Categories() Categories {
	return r.categories
}

// CategoryOf reports the category an item id was assigned to.
func (r *Classification) CategoryOf(id int) (Category, bool) {
	cat, ok := r.byID[id]
	return cat, ok
}

// Items returns a copy of the items in cat, in catalog order.
func (r *Classification) Items(cat Category) []models.CatalogItem {
	items := r.byCategory[cat]
	out := make([]models.CatalogItem, len(items))
	copy(out, items)
	return out
}

// Mapping returns a copy of the full id -> category assignment.
func (r *Classification) Mapping() map[int]Category {
	out := make(map[int]Category, len(r.byID))
	for id, cat := range r.byID {
		out[id] = cat
	}
	return out
}

// Counts returns the number of items per category, aligned with Categories().
func (r *Classification) Counts() []int {
	counts := make([]int, len(r.categories))
	for i, cat := range r.categories {
		counts[i] = len(r.byCategory[cat])
	}
	return counts
}

func (r *Classification) Len() int {
	return len(r.byID)
}
