// Package setup wires config into the pieces both binaries need: the
// database, the catalog and its classification.
package setup

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/kdimtricp/anilights/internal/catalog"
	"github.com/kdimtricp/anilights/internal/config"
	"github.com/kdimtricp/anilights/internal/database"
	"github.com/kdimtricp/anilights/internal/logging"
	"github.com/kdimtricp/anilights/internal/metrics"
	"github.com/kdimtricp/anilights/internal/models"
	"github.com/kdimtricp/anilights/internal/taste"
	"github.com/kdimtricp/anilights/migrations"
)

func Logging(cfg config.LoggingConfig) {
	logging.Init(logging.Config{
		Level:  cfg.Level,
		Format: cfg.Format,
		Caller: cfg.Caller,
	})
}

// MigrationsFS returns the configured migrations directory, or the embedded
// schema when none is set.
func MigrationsFS(cfg config.DatabaseConfig) fs.FS {
	if cfg.MigrationsPath != "" {
		return os.DirFS(cfg.MigrationsPath)
	}
	return migrations.FS
}

// OpenDatabase opens the sqlite file and applies pending migrations.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.NewDB(ctx, database.Config{Path: cfg.Path})
	if err != nil {
		return nil, err
	}

	if _, err := database.NewMigrator(db.Conn()).Run(ctx, MigrationsFS(cfg)); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// CatalogSource picks the JSON file or the sqlite table as configured.
func CatalogSource(cfg config.CatalogConfig, db *database.DB) (catalog.Source, error) {
	switch cfg.Source {
	case "json":
		return catalog.FileSource{Path: cfg.Path}, nil
	case "sqlite":
		if db == nil {
			return nil, fmt.Errorf("catalog source sqlite needs a database")
		}
		return database.NewCatalogRepository(db), nil
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.Source)
	}
}

// Classifier builds the classifier from the default categories and the
// configured score table.
func Classifier(cfg config.TasteConfig) (*taste.Classifier, error) {
	table := taste.DefaultScoreTable()
	if cfg.ScoreTablePath != "" {
		loaded, err := taste.LoadScoreTable(cfg.ScoreTablePath, taste.DefaultCategories)
		if err != nil {
			return nil, err
		}
		table = loaded
	}
	return taste.NewClassifier(taste.DefaultCategories, table)
}

// Classify loads the whole catalog from source and classifies it. It fails on
// an empty catalog since no session could ever complete.
func Classify(ctx context.Context, source catalog.Source, classifier *taste.Classifier) (*taste.Classification, []models.CatalogItem, error) {
	items, err := source.ListItems(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading catalog: %w", err)
	}
	if len(items) == 0 {
		return nil, nil, fmt.Errorf("catalog is empty")
	}
	if err := catalog.Check(items); err != nil {
		return nil, nil, err
	}

	classification := classifier.Classify(items)

	counts := classification.Counts()
	for i, cat := range classification.Categories() {
		metrics.CatalogItems.WithLabelValues(string(cat)).Set(float64(counts[i]))
		if counts[i] == 0 {
			logging.Warn().Str("category", string(cat)).Msg("Category has no items; sessions cannot pass this round")
		}
	}
	logging.Info().Int("items", classification.Len()).Ints("per_category", counts).Msg("Catalog classified")

	return classification, items, nil
}
