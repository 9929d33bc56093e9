// Package cli implements the catalogctl operator commands.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/kdimtricp/anilights/internal/config"
	"github.com/kdimtricp/anilights/internal/setup"
)

// NewRootCmd builds the catalogctl command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "catalogctl",
		Short: "Manage the anilights catalog and database",
		Long: `catalogctl - operator tool for the anilights onboarding service
  - apply or inspect sqlite migrations
  - import a popular_animes.json catalog into sqlite
  - inspect how the catalog splits into taste categories`,
		SilenceUsage: true,
	}

	root.AddCommand(newMigrateCmd())
	root.AddCommand(newImportCmd())
	root.AddCommand(newClassifyCmd())
	root.AddCommand(newSampleCmd())
	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig reads the service configuration and configures logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setup.Logging(cfg.Logging)
	return cfg, nil
}
