package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/codyseavey/tcg-tradein/backend/internal/api"
	"github.com/codyseavey/tcg-tradein/backend/internal/config"
	"github.com/codyseavey/tcg-tradein/backend/internal/database"
	"github.com/codyseavey/tcg-tradein/backend/internal/logger"
	"github.com/codyseavey/tcg-tradein/backend/internal/models"
	"github.com/codyseavey/tcg-tradein/backend/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get().Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.Init(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Service: "tcg-tradein"})
	log := logger.Named("server")

	if err := database.Initialize(cfg.Database.Path); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	db := database.GetDB()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Catalog, inventory and payouts go either to the store admin API or the local database
	var (
		catalog   services.CatalogLookup
		inventory services.InventoryAdjuster
		payouts   services.PayoutIssuer
		customers services.CustomerDirectory
	)
	switch cfg.Catalog.Mode {
	case "remote":
		client := services.NewStoreAPIClient(services.StoreAPIConfig{
			BaseURL:           cfg.Catalog.BaseURL,
			Token:             cfg.Catalog.APIToken,
			RequestsPerSecond: cfg.Catalog.RequestsPerSecond,
			Burst:             cfg.Catalog.Burst,
		})
		catalog, inventory, payouts, customers = client, client, client, client
		log.Info().Str("base_url", cfg.Catalog.BaseURL).Msg("using store admin API")
	default:
		local := services.NewLocalCatalog(db)
		ledger := services.NewLocalLedger(db)
		catalog, inventory, payouts, customers = local, local, ledger, ledger

		if cfg.Catalog.SeedFile != "" {
			stats, err := services.ImportProductsFile(ctx, local, cfg.Catalog.SeedFile, false)
			if err != nil {
				log.Fatal().Err(err).Str("file", cfg.Catalog.SeedFile).Msg("failed to seed catalog")
			}
			log.Info().Int("products", stats.Products).Int("variants", stats.Variants).Msg("seeded local catalog")
		}
		log.Info().Msg("using local catalog")
	}

	var cache *services.ResolutionCache
	if cfg.Cache.Enabled {
		opts := services.CacheOptions{
			TTL:      cfg.Cache.TTL,
			Capacity: cfg.Cache.Capacity,
			TrueLRU:  cfg.Cache.TrueLRU,
		}
		if cfg.Cache.Persist {
			opts.Backing = services.NewGormCacheStore(db)
		}
		cache, err = services.NewResolutionCache(opts)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create resolution cache")
		}

		// Restart the janitor if a sweep panics
		janitor := services.NewCacheJanitor(cache, cfg.Cache.JanitorInterval)
		go func() {
			for {
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Error().Interface("panic", r).Msg("cache janitor panicked, restarting in 30 seconds")
						}
					}()
					janitor.Start(ctx)
				}()

				select {
				case <-ctx.Done():
					return
				case <-time.After(30 * time.Second):
				}
			}
		}()
	}

	rates := services.NewRateSchedule()
	resolver := services.NewResolver(catalog, services.ResolverOptions{
		PreviewTimeout: cfg.Resolver.PreviewTimeout,
		CommitTimeout:  cfg.Resolver.CommitTimeout,
		Cache:          cache,
		Scorer:         services.NewMatchScorer(cfg.Resolver.MinScore, cfg.Resolver.MaxCandidates),
	})

	submissions := services.NewGormSubmissionStore(db)
	processor := services.NewTradeProcessor(resolver, rates, services.TradeDeps{
		Inventory:   inventory,
		Payouts:     payouts,
		Customers:   customers,
		Submissions: submissions,
	}, services.TradeOptions{
		PayoutCeiling:    models.NewMoney(decimal.NewFromFloat(cfg.Trade.PayoutCeiling)),
		SkipCeilingCheck: !cfg.Trade.ValidateOverride,
		BatchTimeout:     cfg.Trade.BatchTimeout,
		Concurrency:      cfg.Trade.Concurrency,
		LocationID:       cfg.Catalog.LocationID,
	})

	router := api.SetupRouter(api.RouterDeps{
		Resolver:       resolver,
		Rates:          rates,
		Processor:      processor,
		Submissions:    submissions,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		FrontendPath:   cfg.Server.FrontendPath,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("environment", cfg.Server.Environment).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	// Stop the janitor before draining requests
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}
