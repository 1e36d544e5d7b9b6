package commands

import (
	"fmt"

	"report_renderer/internal/config"
	"report_renderer/internal/database"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the render journal table",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadEnvironment(cmd)
		if err != nil {
			return err
		}

		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close(db)

		if err := database.AutoMigrate(db, logger); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Migrations completed successfully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

// openDatabase подключается к БД журнала независимо от флага enabled
func openDatabase(cfg config.Config) (*gorm.DB, error) {
	db, err := database.NewDatabase(database.Config{
		Driver: cfg.DB.Driver,
		DSN:    cfg.DB.DSN,
		Debug:  verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}
