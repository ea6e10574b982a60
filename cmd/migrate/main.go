package main

import (
	"os"

	"studytimer/backend/internal/config"
	"studytimer/backend/internal/db"
	"studytimer/backend/internal/logging"
)

func main() {
	cfg := config.Load()
	logging.Initialize(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	if err := migrate(cfg); err != nil {
		logging.Logger.Error("migration failed", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	logging.Logger.Info("migrations applied successfully", "path", cfg.DBPath)
}

func migrate(cfg config.Config) error {
	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	return db.RunMigrations(database, db.MigrationSource(cfg.MigrationsDir))
}
