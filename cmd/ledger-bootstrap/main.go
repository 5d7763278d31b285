package main

import (
	"context"
	"os"

	"github.com/galexy/revivo-mk1-sub001/internal/cli"
	"github.com/galexy/revivo-mk1-sub001/internal/core"
	"github.com/galexy/revivo-mk1-sub001/internal/log"
)

// ledger-bootstrap prepares a household: it creates the system category and,
// when SEED_CATEGORIES_FILE is set, the categories listed there. The household
// is taken from the first argument, then DEFAULT_HOUSEHOLD_ID; with neither a
// new household id is generated and printed.
func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentBootstrap)
	cfg := cli.LoadAndValidateConfig(logger)

	householdID, err := householdFromArgs(cfg.DefaultHouseholdID)
	if err != nil {
		logger.Error("Invalid household id", log.FieldError, err.Error())
		os.Exit(1)
	}

	ctx := context.Background()
	b := cli.OpenBackend(ctx, logger, cfg)
	defer func() {
		if err := b.Cleanup(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err.Error())
		}
	}()

	system, err := b.Ledger.BootstrapHousehold(ctx, householdID)
	if err != nil {
		logger.Error("Bootstrap failed", log.FieldError, err.Error(), log.FieldHouseholdID, householdID)
		os.Exit(1)
	}
	logger.Info("Household ready",
		log.FieldHouseholdID, householdID,
		log.FieldCategoryID, system.ID())

	if cfg.SeedCategoriesFile == "" {
		return
	}
	seeds, err := cli.ReadSeedFile(cfg.SeedCategoriesFile)
	if err != nil {
		logger.Error("Failed to read seed file", log.FieldError, err.Error())
		os.Exit(1)
	}
	created, err := cli.SeedCategories(ctx, b.Ledger, householdID, seeds)
	if err != nil {
		logger.Error("Seeding categories failed", log.FieldError, err.Error(), "created", created)
		os.Exit(1)
	}
	logger.Info("Categories seeded", "file", cfg.SeedCategoriesFile, "created", created, "lines", len(seeds))
}

func householdFromArgs(fallback string) (core.HouseholdID, error) {
	raw := fallback
	if len(os.Args) > 1 {
		raw = os.Args[1]
	}
	if raw == "" {
		return core.NewHouseholdID(), nil
	}
	return core.ParseHouseholdID(raw)
}
