package main

import (
	"context"
	"os"

	"storefront/internal/bootstrap"
	"storefront/internal/config"
	"storefront/internal/logging"
	"storefront/internal/seed"
)

func main() {
	cfg, err := config.FromEnv()
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat).With().Str("component", "seed").Logger()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	ctx := context.Background()
	store, err := bootstrap.OpenStore(ctx, cfg, bootstrap.StoreOptions{Migrate: true}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open store")
	}
	defer store.Close()

	if err := seed.Apply(ctx, store); err != nil {
		logger.Fatal().Err(err).Msg("seed apply")
	}
	logger.Info().Int("categories", len(seed.Categories)).Int("products", len(seed.Products)).Msg("seed applied")
}
