package main

import (
	"os"

	"github.com/galexy/revivo-mk1-sub001/internal/cli"
	"github.com/galexy/revivo-mk1-sub001/internal/config"
	"github.com/galexy/revivo-mk1-sub001/internal/log"
	"github.com/galexy/revivo-mk1-sub001/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentMigrate)

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.DataBackend != config.BackendSQLite {
		logger.Info("Nothing to migrate", log.FieldBackend, cfg.DataBackend)
		return
	}

	logger.Info("Running migrations", "path", cfg.SQLiteDBPath)
	version, err := storage.RunMigrations(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Migration failed", log.FieldError, err.Error(), "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	logger.Info("Schema up to date", "version", version)
}
