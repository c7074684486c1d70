// Package main is the entry point for the questrade-sentinel portfolio
// aggregation service: it wires C1-C11 together and serves the HTTP
// boundary (spec §6) until signalled to stop.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/questrade-sentinel/internal/activity"
	"github.com/aristath/questrade-sentinel/internal/aggregator"
	"github.com/aristath/questrade-sentinel/internal/backup"
	"github.com/aristath/questrade-sentinel/internal/broker/questrade"
	"github.com/aristath/questrade-sentinel/internal/clients/exchangerate"
	"github.com/aristath/questrade-sentinel/internal/config"
	"github.com/aristath/questrade-sentinel/internal/database"
	"github.com/aristath/questrade-sentinel/internal/domain"
	"github.com/aristath/questrade-sentinel/internal/evaluator"
	"github.com/aristath/questrade-sentinel/internal/events"
	"github.com/aristath/questrade-sentinel/internal/logger"
	"github.com/aristath/questrade-sentinel/internal/pricecache"
	"github.com/aristath/questrade-sentinel/internal/queue"
	"github.com/aristath/questrade-sentinel/internal/scheduler"
	"github.com/aristath/questrade-sentinel/internal/server"
	"github.com/aristath/questrade-sentinel/internal/tokenstore"
)

func main() {
	var dataDirFlag string
	flag.StringVar(&dataDirFlag, "data-dir", "", "data directory (overrides TRADER_DATA_DIR environment variable)")
	flag.Parse()

	cfg, err := config.Load(dataDirFlag)
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	log.Info().Str("data_dir", cfg.DataDir).Msg("starting questrade-sentinel")

	tokens, err := tokenstore.New(tokenstore.Config{
		Path: filepath.Join(cfg.DataDir, "tokens.json"),
		Log:  log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open token store")
	}

	accountsConfig, err := config.New(filepath.Join(cfg.DataDir, "accounts.json"), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open accounts config")
	}

	broker := questrade.New(questrade.Config{
		Tokens: tokens,
		Log:    log,
	})

	// Candle fetches are authenticated like any other Questrade call, so
	// the cache's PriceSource needs one fixed login to quote against; any
	// configured login works since candle data isn't account-specific.
	var primaryPriceSource domain.PriceSource
	if logins, err := tokens.ListLogins(); err != nil {
		log.Warn().Err(err).Msg("failed to list logins, price cache has no primary source")
	} else if len(logins) > 0 {
		primaryPriceSource = &questrade.PriceSource{Client: broker, Login: logins[0]}
	} else {
		log.Warn().Msg("no logins configured yet, price cache has no primary source")
	}

	// Fallback is left unconfigured: the teacher's only other price
	// sources (Yahoo, Alpha Vantage) were dropped as reference-only or
	// irreparably incomplete (see DESIGN.md), so Cache runs primary-only.
	cache := pricecache.New(pricecache.Config{
		Primary: primaryPriceSource,
		Log:     log,
	})

	crawler := activity.New(broker, log)

	models := evaluator.NewRegistry(evaluator.NewQQQTemperatureModel())

	bus := events.NewBus(log)

	jobDB, err := database.New(database.Config{Path: filepath.Join(cfg.DataDir, "jobs.db")})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open job history database")
	}
	defer jobDB.Close()
	if err := jobDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate job history database")
	}

	jobHistory := queue.NewHistory(jobDB.Conn())
	jobQueue := queue.NewMemoryQueue()
	jobManager := queue.NewManager(jobQueue, jobHistory)
	jobRegistry := queue.NewRegistry()

	backupSvc, backupEnabled, err := backup.New(backup.Config{
		ObjectStore: backup.ObjectStoreConfig{
			AccountID:       os.Getenv("R2_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
			Bucket:          os.Getenv("R2_BACKUP_BUCKET"),
		},
		TokenStorePath:     filepath.Join(cfg.DataDir, "tokens.json"),
		AccountsConfigPath: filepath.Join(cfg.DataDir, "accounts.json"),
		RetentionDays:      30,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure backup service")
	}
	if backupEnabled {
		log.Info().Msg("backup service enabled")
	} else {
		log.Info().Msg("backup service disabled, no R2 credentials configured")
	}

	scheduler.RegisterHandlers(jobRegistry, scheduler.Dependencies{
		ConfigStore: accountsConfig,
		TokenStore:  tokens,
		Broker:      broker,
		Cache:       cache,
		Crawler:     crawler,
		Models:      models,
		Bus:         bus,
		Backup:      backupSvc,
	})

	workers := queue.NewWorkerPool(jobManager, jobRegistry, 4)
	workers.SetLogger(log)
	workers.Start()

	sched := scheduler.New(jobManager, log)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	agg := &aggregator.Aggregator{
		Broker:  broker,
		Tokens:  tokens,
		Config:  accountsConfig,
		Prices:  cache,
		Crawler: crawler,
		Log:     log,
		// Backstops today's USD/CAD rate: C5's cache never admits today's
		// candle (cache.go's clampEnd), so without a live quote the most
		// recent day's conversions would sit at 1:1 until tomorrow.
		FxRates: exchangerate.NewClient(log),
		Models:  models,
	}

	srv := server.New(server.Config{
		Port:       cfg.Port,
		Log:        log,
		Aggregator: agg,
		Config:     accountsConfig,
		Models:     models,
		Bus:        bus,
		DevMode:    cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	sched.Stop()
	workers.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
