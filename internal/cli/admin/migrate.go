package admin

import (
	"fmt"

	"github.com/cloo-solutions/tutorai/internal/database"
	"github.com/spf13/cobra"
)

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if !cfg.HasDatabase() {
				return fmt.Errorf("TUTOR_DATABASE_URL is not set")
			}
			dir, _ := cmd.Flags().GetString("migrations")
			return database.Migrate(cfg.DatabaseURL, dir, logger)
		},
	}

	cmd.Flags().String("migrations", database.DefaultMigrationsDir, "Migrations directory")

	return cmd
}
