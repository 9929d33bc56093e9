package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kdimtricp/anilights/internal/catalog"
	"github.com/kdimtricp/anilights/internal/database"
	"github.com/kdimtricp/anilights/internal/setup"
)

func newImportCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a JSON catalog into sqlite",
		Long: `Replace the sqlite catalog with the contents of a popular_animes.json file.
The file path defaults to the configured catalog path.

Examples:
  catalogctl import --file data/popular_animes.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if path == "" {
				path = cfg.Catalog.Path
			}

			items, err := catalog.LoadFile(path)
			if err != nil {
				return err
			}

			db, err := setup.OpenDatabase(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.NewCatalogRepository(db).ReplaceItems(cmd.Context(), items); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d items from %s\n", len(items), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "file", "f", "", "catalog JSON file")
	return cmd
}
