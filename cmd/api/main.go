package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/distribuida/libreria-backend/api/routes"
	"github.com/distribuida/libreria-backend/internal/cart"
	"github.com/distribuida/libreria-backend/internal/catalog"
	"github.com/distribuida/libreria-backend/internal/checkout"
	"github.com/distribuida/libreria-backend/internal/customers"
	"github.com/distribuida/libreria-backend/internal/pricing"
	"github.com/distribuida/libreria-backend/pkg/config"
	"github.com/distribuida/libreria-backend/pkg/db"
	"github.com/distribuida/libreria-backend/pkg/logger"
	"github.com/distribuida/libreria-backend/pkg/metrics"
	"github.com/distribuida/libreria-backend/pkg/migrate"
	pkgredis "github.com/distribuida/libreria-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	var redisClient *pkgredis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = pkgredis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(context.Background(), "redis url not set, idempotency replay guard disabled")
	}

	taxPolicy, err := pricing.NewPolicy(cfg.Pricing.TaxRate)
	if err != nil {
		logg.Error(context.Background(), "invalid tax rate", err)
		os.Exit(1)
	}

	catalogRepo := catalog.NewRepository(dbClient.DB())
	customersRepo := customers.NewRepository(dbClient.DB())
	cartRepo := cart.NewRepository(dbClient.DB())
	invoiceRepo := checkout.NewRepository(dbClient.DB())

	catalogService, err := catalog.NewService(catalogRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cartRepo, dbClient, catalogRepo, customersRepo, taxPolicy)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(dbClient, cartRepo, catalogRepo, invoiceRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(registry)

	deps := routes.Dependencies{
		Config:      cfg,
		Logger:      logg,
		HTTPMetrics: httpMetrics,
		Registry:    registry,
		DB:          dbClient,
		Catalog:     catalogService,
		Customers:   customersRepo,
		Carts:       cartService,
		Checkout:    checkoutService,
	}
	if redisClient != nil {
		deps.Cache = redisClient
		if cfg.FeatureFlags.CheckoutIdempotent {
			deps.IdempotencyStore = redisClient
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(deps),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
