package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kdimtricp/anilights/internal/database"
	"github.com/kdimtricp/anilights/internal/setup"
)

func newMigrateCmd() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Apply every pending sqlite migration, or list them with --status.

Examples:
  catalogctl migrate
  catalogctl migrate --status`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			db, err := database.NewDB(cmd.Context(), database.Config{Path: cfg.Database.Path})
			if err != nil {
				return err
			}
			defer db.Close()

			migrator := database.NewMigrator(db.Conn())
			fsys := setup.MigrationsFS(cfg.Database)
			out := cmd.OutOrStdout()

			if status {
				statuses, err := migrator.Status(cmd.Context(), fsys)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tNAME\tSTATUS")
				for _, s := range statuses {
					state := "pending"
					if s.Applied {
						state = "applied"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", s.Version, s.Name, state)
				}
				return w.Flush()
			}

			n, err := migrator.Run(cmd.Context(), fsys)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "applied %d migration(s)\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "show migration status only")
	return cmd
}
