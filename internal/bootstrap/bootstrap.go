// Package bootstrap builds the store, bus and identity backends selected by
// configuration. It is shared by the binaries under cmd/.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"storefront/internal/auth"
	"storefront/internal/config"
	"storefront/internal/docstore"
	"storefront/internal/docstore/fsdocs"
	"storefront/internal/docstore/mongodocs"
	"storefront/internal/docstore/pgdocs"
	"storefront/internal/events"
	"storefront/internal/migrate"
	productrepo "storefront/internal/repository/product"
)

// StoreOptions tune OpenStore.
type StoreOptions struct {
	// Migrate applies the Postgres schema before returning.
	Migrate bool
}

// OpenStore connects to the document store named by cfg.DocStore. With
// DOCSTORE_ATOMIC=false the store is returned without transaction support.
func OpenStore(ctx context.Context, cfg config.Config, opts StoreOptions, logger zerolog.Logger) (docstore.Store, error) {
	var (
		store docstore.Store
		err   error
	)
	switch cfg.DocStore {
	case "memory":
		store = docstore.NewMemory()
	case "postgres":
		pool, cerr := pgdocs.Connect(ctx, cfg.DBConnString)
		if cerr != nil {
			return nil, fmt.Errorf("connect postgres: %w", cerr)
		}
		if opts.Migrate {
			if err := migrate.Apply(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		store = pgdocs.New(pool)
	case "firestore":
		store, err = fsdocs.Open(ctx, cfg.FirestoreProjectID, cfg.GoogleCredentialsFile)
	case "mongo":
		store, err = mongodocs.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		err = fmt.Errorf("unknown docstore %q", cfg.DocStore)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s docstore: %w", cfg.DocStore, err)
	}

	logger.Info().Str("docstore", cfg.DocStore).Bool("atomic", cfg.DocStoreAtomic).Msg("document store ready")
	if !cfg.DocStoreAtomic {
		store = docstore.NonAtomic(store)
	}
	return store, nil
}

// OpenBus returns a NATS bus when NATS_URL is set and an in-process bus
// otherwise.
func OpenBus(cfg config.Config, logger zerolog.Logger) (events.Bus, error) {
	if cfg.NATSURL == "" {
		return events.NewLocal(), nil
	}
	bus, err := events.ConnectNATS(cfg.NATSURL, logger)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return bus, nil
}

// Products returns the product repository on ops, wrapped in a Redis
// read-through cache when REDIS_ADDR is set. The returned func releases the
// Redis client.
func Products(cfg config.Config, ops docstore.Ops, logger zerolog.Logger) (productrepo.Repository, func() error) {
	repo := productrepo.New(ops, logger)
	if cfg.RedisAddr == "" {
		return repo, func() error { return nil }
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	logger.Info().Str("addr", cfg.RedisAddr).Dur("ttl", cfg.CatalogCacheTTL).Msg("catalog cache enabled")
	return productrepo.NewCached(repo, rdb, cfg.CatalogCacheTTL, logger), rdb.Close
}

// Verifier returns the token verifier for cfg.AuthMode. In dev mode the
// verifier is also returned as a *auth.DevVerifier so that tokens can be
// issued.
func Verifier(ctx context.Context, cfg config.Config) (auth.Verifier, *auth.DevVerifier, error) {
	switch cfg.AuthMode {
	case "firebase":
		v, err := auth.NewFirebaseVerifier(ctx, cfg.FirestoreProjectID, cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, nil, fmt.Errorf("init firebase auth: %w", err)
		}
		return v, nil, nil
	case "dev":
		dev := auth.NewDevVerifier(cfg.DevTokenTTL)
		return dev, dev, nil
	}
	return nil, nil, fmt.Errorf("unknown auth mode %q", cfg.AuthMode)
}
