package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	dbfs "github.com/garnizeh/freelance/db"
	"github.com/garnizeh/freelance/internal/config"
	"github.com/garnizeh/freelance/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply every pending migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		if err := db.Migrate(cmd.Context(), e.db, dbfs.Migrations); err != nil {
			return err
		}
		fmt.Println("Migrations applied.")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back every migration (drops all data)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("refusing to drop the schema without --yes")
		}

		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		if err := db.MigrateDown(cmd.Context(), e.db, dbfs.Migrations); err != nil {
			return err
		}
		fmt.Println("Migrations rolled back.")
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the applied and latest migration versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		st, err := db.Status(e.db, dbfs.Migrations)
		if err != nil {
			return err
		}
		fmt.Printf("Current version: %d\n", st.CurrentVersion)
		fmt.Printf("Latest version:  %d\n", st.LatestVersion)
		fmt.Printf("Dirty:           %t\n", st.Dirty)
		fmt.Printf("Pending:         %t\n", st.Pending)
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Migrate and load the sample profiles, contracts and jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		if err := db.Migrate(cmd.Context(), e.db, dbfs.Migrations); err != nil {
			return err
		}
		if err := db.Seed(cmd.Context(), e.db, dbfs.SeedFiles); err != nil {
			return err
		}
		fmt.Println("Database seeded.")
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup [file]",
	Short: "Write a consistent copy of the database",
	Long: `Write a consistent copy of the database. Without a file argument the copy
is written next to the database as <database>.<timestamp>.bak.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		dst := e.cfg.DatabasePath + "." + time.Now().UTC().Format("20060102T150405Z") + ".bak"
		if len(args) == 1 {
			dst = args[0]
		}
		if err := db.Backup(cmd.Context(), e.db, dst); err != nil {
			return err
		}
		fmt.Printf("Database backed up to %s\n", dst)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Replace the database with a backup (stop the server first)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := db.Restore(args[0], cfg.DatabasePath); err != nil {
			return err
		}
		fmt.Printf("Database restored from %s\n", args[0])
		return nil
	},
}

func init() {
	migrateDownCmd.Flags().Bool("yes", false, "Confirm dropping every table")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}
