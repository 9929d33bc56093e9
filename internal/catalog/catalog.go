// Package catalog reads the static anime catalog the onboarding flow samples from.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/kdimtricp/anilights/internal/models"
)

// ErrDuplicateID is returned when two catalog records share an anime_id.
var ErrDuplicateID = errors.New("duplicate catalog id")

// Source yields the full catalog. Implementations must return items in a
// stable order.
type Source interface {
	ListItems(ctx context.Context) ([]models.CatalogItem, error)
}

// record mirrors one entry of popular_animes.json.
type record struct {
	AnimeID  int      `json:"anime_id"`
	Title    string   `json:"title"`
	ImageURL string   `json:"image_url"`
	Score    *float64 `json:"score"`
	Genres   string   `json:"genres"`
	Synopsis string   `json:"synopsis"`
	Episodes *int     `json:"episodes"`
	Year     *int     `json:"year"`
}

func (r record) item() models.CatalogItem {
	return models.CatalogItem{
		ID:       r.AnimeID,
		Title:    r.Title,
		ImageURL: r.ImageURL,
		Score:    r.Score,
		Genres:   models.SplitGenres(r.Genres),
		Episodes: r.Episodes,
		Synopsis: r.Synopsis,
		Year:     r.Year,
	}
}

// Decode parses a JSON array of catalog records.
func Decode(r io.Reader) ([]models.CatalogItem, error) {
	var records []record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}

	items := make([]models.CatalogItem, 0, len(records))
	for _, rec := range records {
		items = append(items, rec.item())
	}
	if err := Check(items); err != nil {
		return nil, err
	}
	return items, nil
}

// Check rejects catalogs with repeated ids or untitled entries.
func Check(items []models.CatalogItem) error {
	seen := make(map[int]struct{}, len(items))
	for i, item := range items {
		if _, ok := seen[item.ID]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicateID, item.ID)
		}
		seen[item.ID] = struct{}{}
		if item.Title == "" {
			return fmt.Errorf("catalog entry %d (id %d) has no title", i, item.ID)
		}
	}
	return nil
}

// LoadFile reads a catalog file in the popular_animes.json format.
func LoadFile(path string) ([]models.CatalogItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// FileSource is a Source backed by a JSON file.
type FileSource struct {
	Path string
}

func (s FileSource) ListItems(ctx context.Context) ([]models.CatalogItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadFile(s.Path)
}
