// Command migrate applies the schema migrations to every client database,
// or to the clients named on the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/iliyamo/jewelry-storefront/internal/config"
	"github.com/iliyamo/jewelry-storefront/internal/database"
	"github.com/iliyamo/jewelry-storefront/internal/logger"
	"github.com/iliyamo/jewelry-storefront/internal/tenant"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	dir := flag.String("clients", cfg.ClientsDir, "directory holding <client>.env files")
	flag.Parse()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "")
	if err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	loader := tenant.NewLoader(*dir)
	ids := flag.Args()
	if len(ids) == 0 {
		if ids, err = loader.IDs(); err != nil {
			log.Fatal("list clients", zap.Error(err))
		}
	}

	failed := 0
	for _, id := range ids {
		if err := migrateClient(loader, id, log); err != nil {
			log.Error("migration failed", zap.String("client", id), zap.Error(err))
			failed++
		}
	}
	if failed > 0 {
		log.Fatal("migrations incomplete", zap.Int("failed", failed), zap.Int("clients", len(ids)))
	}
}

func migrateClient(loader *tenant.Loader, id string, log *zap.Logger) error {
	cfg, err := loader.Load(id)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	version, err := database.Migrate(db)
	if err != nil {
		return err
	}
	log.Info("client migrated", zap.String("client", id), zap.Uint("version", version))
	return nil
}
