package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/department-tree/internal/database"
)

func newMigrateCmd(load loader) *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := connect(cmd.Context(), load)
			if err != nil {
				return err
			}
			defer a.close()

			if status {
				sqlDB, err := a.db.DB()
				if err != nil {
					return err
				}
				return database.MigrationStatus(cmd.Context(), sqlDB)
			}

			if err := a.migrate(cmd.Context()); err != nil {
				a.logger.Error("failed to run migrations", slog.Any("error", err))
				return err
			}
			a.logger.Info("migrations applied")
			return nil
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "Print migration status instead of applying")
	return cmd
}
