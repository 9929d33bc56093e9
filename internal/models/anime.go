package models

import (
	"strings"
)

// CatalogItem is one entry of the static catalog. Items are read-only once loaded.
type CatalogItem struct {
	ID       int      `json:"id"`
	Title    string   `json:"title"`
	ImageURL string   `json:"imageUrl"`
	Score    *float64 `json:"score,omitempty"`
	Genres   []string `json:"genres"`
	Episodes *int     `json:"episodes,omitempty"`
	Synopsis string   `json:"synopsis,omitempty"`
	Year     *int     `json:"year,omitempty"`
}

// Recommendation is a single ranked record returned by the recommendation service.
type Recommendation struct {
	ID         int     `json:"anime_id" validate:"required"`
	Title      string  `json:"title" validate:"required"`
	Genre      string  `json:"genre"`
	Type       string  `json:"type"`
	Episodes   int     `json:"episodes"`
	Rating     string  `json:"rating"`
	ImageURL   string  `json:"image_url"`
	MatchScore float64 `json:"match_score" validate:"gte=0,lte=1"`
}

// SplitGenres turns the catalog's comma separated genre text into an ordered
// list of trimmed labels. Blank entries are dropped.
func SplitGenres(raw string) []string {
	parts := strings.Split(raw, ",")
	genres := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			genres = append(genres, p)
		}
	}
	return genres
}

// JoinGenres is the inverse of SplitGenres.
func JoinGenres(genres []string) string {
	return strings.Join(genres, ", ")
}
