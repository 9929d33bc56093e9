package taste

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ScoreTable maps a raw genre label to the weight it contributes to each
// category. Genres missing from the table contribute nothing.
type ScoreTable map[string]map[Category]int

// DefaultScoreTable returns the weighting used by the reference flow.
// Fantasy labels weigh more so that mixed action/fantasy titles land in fantasy.
func DefaultScoreTable() ScoreTable {
	return ScoreTable{
		"Action":    {ActionAdventure: 10},
		"Adventure": {ActionAdventure: 10},
		"Sports":    {ActionAdventure: 10},
		"Mecha":     {ActionAdventure: 10},

		"Fantasy":      {FantasySupernatural: 15},
		"Supernatural": {FantasySupernatural: 15},
		"Sci-Fi":       {FantasySupernatural: 12},
		"Magic":        {FantasySupernatural: 15},

		"Comedy":        {ComedySliceOfLife: 10},
		"Slice of Life": {ComedySliceOfLife: 10},
		"Gourmet":       {ComedySliceOfLife: 10},

		"Drama":   {DramaEmotional: 10},
		"Romance": {DramaEmotional: 10},
		"School":  {DramaEmotional: 8},
		"Shoujo":  {DramaEmotional: 8},

		"Mystery":  {MysterySuspense: 10},
		"Suspense": {MysterySuspense: 10},
		"Thriller": {MysterySuspense: 10},
		"Horror":   {MysterySuspense: 8},
	}
}

// Validate checks that every weight is non-negative and targets a known category.
func (t ScoreTable) Validate(categories Categories) error {
	for genre, weights := range t {
		for c, w := range weights {
			if !categories.Contains(c) {
				return fmt.Errorf("genre %q: unknown category %q", genre, c)
			}
			if w < 0 {
				return fmt.Errorf("genre %q: negative weight %d for %q", genre, w, c)
			}
		}
	}
	return nil
}

// LoadScoreTable reads a YAML score table of the form
//
//	Action:
//	  Action & Adventure: 10
//	Sci-Fi:
//	  Fantasy & Supernatural: 12
//
// The file replaces the default table entirely.
func LoadScoreTable(path string, categories Categories) (ScoreTable, error) {
	// Genre and category names contain spaces and dashes but never dots or
	// slashes, so a slash delimiter keeps every key intact.
	k := koanf.New("/")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading score table %s: %w", path, err)
	}

	raw := map[string]map[string]int{}
	if err := k.Unmarshal("", &raw); err != nil {
		return nil, fmt.Errorf("decoding score table %s: %w", path, err)
	}

	table := make(ScoreTable, len(raw))
	for genre, weights := range raw {
		row := make(map[Category]int, len(weights))
		for c, w := range weights {
			row[Category(c)] = w
		}
		table[genre] = row
	}

	if err := table.Validate(categories); err != nil {
		return nil, err
	}
	return table, nil
}
