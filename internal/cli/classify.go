package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kdimtricp/anilights/internal/config"
	"github.com/kdimtricp/anilights/internal/database"
	"github.com/kdimtricp/anilights/internal/models"
	"github.com/kdimtricp/anilights/internal/sampling"
	"github.com/kdimtricp/anilights/internal/setup"
	"github.com/kdimtricp/anilights/internal/taste"
)

// classifyConfigured loads and classifies the configured catalog.
func classifyConfigured(ctx context.Context, cfg *config.Config) (*taste.Classification, error) {
	var db *database.DB
	if cfg.Catalog.Source == "sqlite" {
		var err error
		db, err = setup.OpenDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		defer db.Close()
	}

	source, err := setup.CatalogSource(cfg.Catalog, db)
	if err != nil {
		return nil, err
	}
	classifier, err := setup.Classifier(cfg.Taste)
	if err != nil {
		return nil, err
	}
	classification, _, err := setup.Classify(ctx, source, classifier)
	return classification, err
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify",
		Short: "Show how many catalog items fall in each category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			classification, err := classifyConfigured(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STEP\tCATEGORY\tITEMS")
			counts := classification.Counts()
			for i, cat := range classification.Categories() {
				fmt.Fprintf(w, "%d\t%s\t%d\n", i+1, cat, counts[i])
			}
			fmt.Fprintf(w, "\ttotal\t%d\n", classification.Len())
			return w.Flush()
		},
	}
}

func newSampleCmd() *cobra.Command {
	var (
		category string
		size     int
		seed     uint64
	)

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print a display set for one category",
		Long: `Draw one display set the way a session round would.

Examples:
  catalogctl sample --category "Mystery & Suspense"
  catalogctl sample --category "Drama & Emotional" --size 8 --seed 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			classification, err := classifyConfigured(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			cat := taste.Category(category)
			if !classification.Categories().Contains(cat) {
				names := make([]string, 0, len(classification.Categories()))
				for _, c := range classification.Categories() {
					names = append(names, string(c))
				}
				return fmt.Errorf("unknown category %q (one of: %s)", category, strings.Join(names, ", "))
			}
			if size <= 0 {
				size = cfg.Taste.DisplaySize
			}

			sampler := sampling.NewSampler(nil)
			if cmd.Flags().Changed("seed") {
				sampler = sampling.NewSeededSampler(seed, seed)
			}

			out := cmd.OutOrStdout()
			for _, item := range sampler.Sample(classification.Items(cat), size) {
				fmt.Fprintf(out, "%d\t%s\t%s\n", item.ID, item.Title, models.JoinGenres(item.Genres))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", string(taste.DefaultCategories.Default()), "category name")
	cmd.Flags().IntVarP(&size, "size", "n", 0, "display set size (defaults to the configured size)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "seed for a reproducible draw")
	return cmd
}
