package main

import (
	"encoding/json"
	"fmt"
	"time"

	"eventpilot/internal/seed"
	"eventpilot/internal/sponsormigration"

	"github.com/spf13/cobra"
)

var (
	dryRun bool

	adminName     string
	adminUsername string
	adminEmail    string
	adminPassword string
	adminSuper    bool
)

var migrateSponsorsCmd = &cobra.Command{
	Use:   "migrate-sponsors",
	Short: "Move legacy hosting and catering data into sponsors and sponsorships",
	Long: `Creates sponsors for users who offered to host, marks registrations that
offered sponsorship, and turns legacy catering rows into sponsorships.

With --dry-run every change is rolled back and only the report is printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		report, err := sponsormigration.NewMigrator(db, log).Run(cmd.Context(), dryRun)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		if report.Failures > 0 {
			return fmt.Errorf("%d records failed to migrate", report.Failures)
		}
		return nil
	},
}

var initAdminCmd = &cobra.Command{
	Use:   "init-admin",
	Short: "Create the first admin, or promote an existing user by email",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		res, err := seed.EnsureAdmin(cmd.Context(), db, seed.AdminInput{
			Name:     adminName,
			Username: adminUsername,
			Email:    adminEmail,
			Password: adminPassword,
			Super:    adminSuper,
		}, time.Now())
		if err != nil {
			return err
		}
		if res.Created {
			log.Info("ADMIN", fmt.Sprintf("Created %s account %s", res.User.Role, res.User.Email))
		} else {
			log.Info("ADMIN", fmt.Sprintf("Promoted %s to %s", res.User.Email, res.User.Role))
		}
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert a demo session and user into an empty database",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		wrote, err := seed.Sample(cmd.Context(), db, time.Now())
		if err != nil {
			return err
		}
		if !wrote {
			log.Info("SEED", "Session 1 already exists, nothing to do")
			return nil
		}
		log.Info("SEED", "Demo session and user@example.com created")
		return nil
	},
}

func init() {
	migrateSponsorsCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing")

	f := initAdminCmd.Flags()
	f.StringVar(&adminName, "name", "مدير النظام", "display name")
	f.StringVar(&adminUsername, "username", "admin", "login username")
	f.StringVar(&adminEmail, "email", "", "admin email")
	f.StringVar(&adminPassword, "password", "", "initial password, at least 8 characters")
	f.BoolVar(&adminSuper, "super", false, "grant SUPER_ADMIN instead of ADMIN")
	_ = initAdminCmd.MarkFlagRequired("email")
	_ = initAdminCmd.MarkFlagRequired("password")
}
