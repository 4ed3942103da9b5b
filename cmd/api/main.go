package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"storefront/internal/bootstrap"
	"storefront/internal/config"
	"storefront/internal/httpserver"
	"storefront/internal/logging"
	categoryrepo "storefront/internal/repository/category"
	userrepo "storefront/internal/repository/user"
	"storefront/internal/service/cart"
	categorysvc "storefront/internal/service/category"
	ordersvc "storefront/internal/service/order"
	productsvc "storefront/internal/service/product"
	usersvc "storefront/internal/service/user"
	"storefront/internal/telemetry"
)

func main() {
	cfg, err := config.FromEnv()
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat).With().Str("component", "api").Logger()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	ctx := context.Background()
	store, err := bootstrap.OpenStore(ctx, cfg, bootstrap.StoreOptions{Migrate: true}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open store")
	}
	defer store.Close()

	bus, err := bootstrap.OpenBus(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open event bus")
	}
	defer bus.Close()

	verifier, devTokens, err := bootstrap.Verifier(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("init auth")
	}

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	productRepo, closeCache := bootstrap.Products(cfg, store, logger)
	defer closeCache()

	engine := cart.NewEngine(store, bus, metrics, logger)
	srv, err := httpserver.New(cfg.HTTPAddr, logger, httpserver.Deps{
		Store:      store,
		Carts:      engine,
		Projector:  cart.NewProjector(store, productRepo),
		Bus:        bus,
		Products:   productsvc.New(productRepo, engine, bus, logger),
		Categories: categorysvc.New(categoryrepo.New(store)),
		Orders:     ordersvc.New(store, bus, metrics, logger),
		Users:      usersvc.New(userrepo.New(store), cfg.AdminUserIDs),
		Verifier:   verifier,
		DevTokens:  devTokens,
		Gatherer:   prometheus.DefaultGatherer,
		Cookie: httpserver.CookieConfig{
			Name:   cfg.CartCookieName,
			MaxAge: cfg.CartCookieMaxAge,
		},
		CORSOrigins: cfg.CORSOrigins,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init server")
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serverErr:
		logger.Error().Err(err).Msg("server error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		logger.Info().Msg("server stopped")
	}
}
