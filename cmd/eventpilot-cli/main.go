package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"eventpilot/internal/config"
	"eventpilot/internal/database"
	"eventpilot/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
)

var (
	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "eventpilot-cli",
	Short: "EventPilot maintenance commands",
	Long: `Operational tasks for an EventPilot installation: schema migrations,
the one-off sponsor data migration, and bootstrapping admins and demo data.

Settings are read from the same environment variables (and .env file) as
the API server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		if cfg.Database.DSN == "" {
			return fmt.Errorf("DATABASE_DSN is required")
		}
		// maintenance runs are short, keep the output on the terminal
		log = logger.NewWithWriter(os.Stdout, cfg.Logger.Level)
		return nil
	},
}

// connect opens the database for commands that work through bun.
func connect(ctx context.Context) (*bun.DB, error) {
	return database.ConnectPostgres(ctx, cfg.Database, log)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd.AddCommand(schemaCmd, migrateSponsorsCmd, initAdminCmd, seedCmd)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
