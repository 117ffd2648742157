package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"eon-server/internal/database"
)

var printSchema bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long: `Apply the embedded schema to the configured database. Every statement is
idempotent, so running it against an up-to-date database is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if printSchema {
			fmt.Fprint(cmd.OutOrStdout(), database.Schema())
			return nil
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		dbService, err := database.NewService(ctx, cfg.DatabaseURL)
		if err != nil {
			color.Red("✗ Could not connect to database")
			return err
		}
		defer dbService.Close()

		if err := database.Migrate(ctx, dbService.Pool()); err != nil {
			color.Red("✗ Migration failed")
			return err
		}
		color.Green("✓ Schema applied")
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&printSchema, "print", false, "print the schema instead of applying it")
}
