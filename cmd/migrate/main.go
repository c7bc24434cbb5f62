package main

import (
	"fmt"
	"os"

	"costwise/internal/config"
	"costwise/internal/database"
	"costwise/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalw("Migration command failed", "error", err)
	}
}

func run() error {
	if len(os.Args) < 2 {
		return fmt.Errorf("usage: migrate <up|down|version>")
	}

	if _, err := config.Load(); err != nil {
		return err
	}

	dbConfig, err := database.NewConfig()
	if err != nil {
		return err
	}

	mig, err := migrate.New("file://migrations", dbConfig.URL())
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := mig.Close()
		if srcErr != nil {
			logger.Get().Warnf("migrate source close error: %v", srcErr)
		}
		if dbErr != nil {
			logger.Get().Warnf("migrate database close error: %v", dbErr)
		}
	}()

	switch os.Args[1] {
	case "up":
		if err := mig.Up(); err != nil && err != migrate.ErrNoChange {
			return fmt.Errorf("migration up failed: %w", err)
		}
		logger.Get().Info("Migrations applied")
	case "down":
		if err := mig.Steps(-1); err != nil {
			return fmt.Errorf("migration down failed: %w", err)
		}
		logger.Get().Info("Rolled back one migration")
	case "version":
		version, dirty, err := mig.Version()
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		logger.Get().Infow("Current migration version", "version", version, "dirty", dirty)
	default:
		return fmt.Errorf("unknown command %q: expected up, down or version", os.Args[1])
	}

	return nil
}
