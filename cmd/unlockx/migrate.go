package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|version|force VERSION]",
	Short:     "Manage the audit log schema",
	Long:      `Apply, roll back or inspect the migrations of the verification audit log in DATABASE_URL.`,
	Args:      cobra.RangeArgs(0, 2),
	ValidArgs: []string{"up", "down", "version", "force"},
	RunE:      runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	action := "up"
	if len(args) > 0 {
		action = args[0]
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.AuditEnabled() {
		return errors.New("DATABASE_URL is not set")
	}
	logger := cliLogger(cfg)

	migrator, err := database.OpenMigrator(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = migrator.Close() }()

	logger.Info("connected to database", "database", migrator.Database)
	out := cmd.OutOrStdout()

	switch action {
	case "up":
		if err := migrator.Up(); err != nil {
			return err
		}
		fmt.Fprintln(out, "✓ Migrations completed successfully")

	case "down":
		if err := migrator.Down(); err != nil {
			return err
		}
		fmt.Fprintln(out, "✓ Migration rolled back successfully")

	case "version":
		version, dirty, err := migrator.Version()
		if err != nil {
			return err
		}
		if dirty {
			fmt.Fprintf(out, "Current version: %d (DIRTY - migration incomplete)\n", version)
		} else {
			fmt.Fprintf(out, "Current version: %d\n", version)
		}

	case "force":
		if len(args) < 2 {
			return errors.New("force needs a version")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		if err := migrator.Force(version); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Migration version forced to %d\n", version)

	default:
		return fmt.Errorf("invalid action: %s (use: up, down, version, force)", action)
	}

	return nil
}
