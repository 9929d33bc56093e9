package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kdimtricp/anilights/internal/models"
)

type CatalogRepository struct {
	db *DB
}

func NewCatalogRepository(db *DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ReplaceItems swaps the stored catalog for items in one transaction. The
// slice order is kept as the listing order.
func (r *CatalogRepository) ReplaceItems(ctx context.Context, items []models.CatalogItem) error {
	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM catalog_items"); err != nil {
		return fmt.Errorf("failed to clear catalog: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO catalog_items (id, position, title, image_url, score, genres, episodes, synopsis, year)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, item := range items {
		if _, err := stmt.ExecContext(ctx,
			item.ID, i, item.Title, item.ImageURL, item.Score,
			models.JoinGenres(item.Genres), item.Episodes, item.Synopsis, item.Year,
		); err != nil {
			return fmt.Errorf("failed to insert catalog item %d: %w", item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit catalog: %w", err)
	}
	return nil
}

// ListItems returns the catalog in import order.
func (r *CatalogRepository) ListItems(ctx context.Context) ([]models.CatalogItem, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT id, title, image_url, score, genres, episodes, synopsis, year
		FROM catalog_items
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	defer rows.Close()

	items := []models.CatalogItem{}
	for rows.Next() {
		var (
			item     models.CatalogItem
			genres   string
			score    sql.NullFloat64
			episodes sql.NullInt64
			year     sql.NullInt64
		)
		if err := rows.Scan(&item.ID, &item.Title, &item.ImageURL, &score, &genres, &episodes, &item.Synopsis, &year); err != nil {
			return nil, fmt.Errorf("failed to scan catalog item: %w", err)
		}
		item.Genres = models.SplitGenres(genres)
		if score.Valid {
			item.Score = &score.Float64
		}
		if episodes.Valid {
			n := int(episodes.Int64)
			item.Episodes = &n
		}
		if year.Valid {
			n := int(year.Int64)
			item.Year = &n
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	return items, nil
}

func (r *CatalogRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM catalog_items").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count catalog: %w", err)
	}
	return n, nil
}
