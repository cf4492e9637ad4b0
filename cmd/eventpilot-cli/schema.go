package main

import (
	"database/sql"
	"fmt"
	"strconv"

	"eventpilot/internal/database/migrations"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Apply or roll back the database schema",
}

var schemaUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Run all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(func(r *migrations.Runner) error { return r.MigrateUp() })
	},
}

var schemaDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back every migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(func(r *migrations.Runner) error { return r.MigrateDown() })
	},
}

var schemaToCmd = &cobra.Command{
	Use:   "to <version>",
	Short: "Migrate up or down to a specific version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		return withRunner(func(r *migrations.Runner) error { return r.MigrateTo(uint(version)) })
	},
}

var schemaVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(func(r *migrations.Runner) error {
			v, err := r.Version()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		})
	},
}

// withRunner hands fn a runner on its own connection, which the migrate
// driver closes together with the runner.
func withRunner(fn func(r *migrations.Runner) error) error {
	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	runner := migrations.NewRunner(sqldb, log)
	defer runner.Close()

	if err := fn(runner); err != nil {
		return err
	}
	log.Info("MIGRATE", "Schema command finished")
	return nil
}

func init() {
	schemaCmd.AddCommand(schemaUpCmd, schemaDownCmd, schemaToCmd, schemaVersionCmd)
}
