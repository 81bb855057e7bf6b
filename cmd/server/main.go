package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"stock-alert-server/internal/config"
	"stock-alert-server/internal/database"
	"stock-alert-server/internal/logger"
	"stock-alert-server/internal/pricecache"
	"stock-alert-server/internal/quotes"
	"stock-alert-server/internal/server"
	"stock-alert-server/internal/store"

	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database
	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.", zap.String("dsn", cfg.Database.DSN))

	symbols, err := config.LoadSymbols(cfg.Quotes.SymbolsFile)
	if err != nil {
		log.Fatal("Failed to load symbol list", zap.Error(err))
	}
	log.Info("Symbol list loaded", zap.Int("symbols", len(symbols)))

	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	prices := pricecache.New()
	refresher := quotes.NewRefresher(quotes.NewClient(&cfg.Quotes, log), prices, symbols, cfg.Quotes.RefreshInterval, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		refresher.Run(ctx)
	}()

	srv := server.New(&cfg.Server, store.New(db, cfg.Auth.BcryptCost, log), prices, log)

	var status *server.StatusAPI
	if cfg.Status.Port != 0 {
		addr, err := server.StatusAddress(cfg.Server.Address, cfg.Status.Port)
		if err != nil {
			log.Fatal("Invalid status API address", zap.Error(err))
		}
		status = server.NewStatusAPI(addr, srv, prices, log)
		status.Start()
	}

	serveErr := srv.ListenAndServe(ctx)
	if serveErr != nil {
		log.Error("Server failed", zap.Error(serveErr))
		cancel()
	} else {
		log.Info("Shutdown signal received, gracefully shutting down...")
	}

	if status != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := status.Stop(shutdownCtx); err != nil {
			log.Warn("Status API shutdown failed", zap.Error(err))
		}
		shutdownCancel()
	}
	wg.Wait()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("Server has been shut down.")
	if serveErr != nil {
		_ = log.Sync()
		os.Exit(1)
	}
}
