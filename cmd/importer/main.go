package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"storefront/internal/bootstrap"
	"storefront/internal/config"
	"storefront/internal/importer"
	"storefront/internal/logging"
	categoryrepo "storefront/internal/repository/category"
	categorysvc "storefront/internal/service/category"
	productsvc "storefront/internal/service/product"
)

func main() {
	var filePath string
	flag.StringVar(&filePath, "file", "", "Path to a CSV file with columns id,name,price,category,imageUrl")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.FromEnv()
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat).With().Str("component", "importer").Logger()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	ctx := context.Background()
	store, err := bootstrap.OpenStore(ctx, cfg, bootstrap.StoreOptions{Migrate: true}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open store")
	}
	defer store.Close()

	productRepo, closeCache := bootstrap.Products(cfg, store, logger)
	defer closeCache()

	bus, err := bootstrap.OpenBus(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open event bus")
	}
	defer bus.Close()

	f, err := os.Open(filePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("open file")
	}
	defer f.Close()

	// Imports only add or replace products, so no cart sweep is needed.
	imp := importer.NewCSVImporter(f, productsvc.New(productRepo, nil, bus, logger), categorysvc.New(categoryrepo.New(store)))

	start := time.Now()
	count, err := imp.Run(ctx)
	if err != nil {
		logger.Fatal().Err(err).Int("imported", count).Msg("import failed")
	}

	fmt.Printf("Imported %d products in %s\n", count, time.Since(start).Truncate(time.Millisecond))
}
