package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/garnizeh/freelance/internal/config"
	"github.com/garnizeh/freelance/internal/db"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "freelancectl",
	Short: "Administer the freelance marketplace database",
	Long: `freelancectl runs migrations, loads sample data, takes backups and
performs payments, deposits and reports against the marketplace database
without going through the HTTP API.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (YAML, or TOML with a .toml extension)")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(payCmd)
	rootCmd.AddCommand(depositCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(tasksCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what every command needs: validated config, a logger and an open database.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *db.DB
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	database, err := db.New(ctx, db.DSN(cfg.DatabasePath), logger)
	if err != nil {
		return nil, err
	}

	return &env{cfg: cfg, logger: logger, db: database}, nil
}

func (e *env) Close() error {
	return e.db.Close()
}
