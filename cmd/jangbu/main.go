package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"jangbu/internal/advisor"
	"jangbu/internal/amqp"
	"jangbu/internal/backend"
	"jangbu/internal/config"
	"jangbu/internal/core"
	"jangbu/internal/extraction"
	"jangbu/internal/geo"
	apphttp "jangbu/internal/http"
	applog "jangbu/internal/log"
	"jangbu/internal/rates"
	"jangbu/internal/services"
)

func main() {
	// Load .env for local development; absent in production is fine.
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Ledger store
	storeResult, err := backend.NewFactory(logger.Logger).CreateStore(backend.Config{
		Type:         backend.Type(cfg.DataBackend),
		SQLiteDBPath: cfg.SQLiteDBPath,
	})
	if err != nil {
		logger.Error("Failed to initialize ledger store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if storeResult.Cleanup != nil {
			if err := storeResult.Cleanup(); err != nil {
				logger.Error("Store cleanup failed", "error", err)
			}
		}
	}()

	// AMQP publisher (optional: without it receipts stay local)
	var publisher services.SyncPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without sheet sync", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	extractor := extraction.NewClient(cfg.GeminiAPIKey, cfg.GeminiVisionModel)
	normalizer := core.NewNormalizer(core.NormalizerConfig{
		HomeCurrency:    cfg.HomeCurrency,
		DefaultLocation: cfg.DefaultLocation,
		TotalTolerance:  cfg.TotalTolerance,
	})
	rateProvider := rates.NewProvider(cfg.RatesURL, cfg.HomeCurrency, cfg.RatesTTL)
	geocoder := geo.NewGeocoder(cfg.GeocoderURL, cfg.GeocoderUserAgent)

	receiptService := services.NewReceiptService(extractor, normalizer, rateProvider, storeResult.Store, publisher)

	var advisorClient apphttp.Advisor
	if cfg.GeminiAPIKey != "" {
		advisorClient = advisor.NewClient(cfg.GeminiAPIKey, cfg.GeminiAdvisorModel)
	} else {
		logger.Warn("No Gemini API key configured, advisor and extraction are disabled")
	}

	srv := apphttp.NewServer(":"+cfg.Port, receiptService, advisorClient, geocoder, cfg.HomeCurrency)
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 60 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting jangbu server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"home_currency", cfg.HomeCurrency,
		"amqp_enabled", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
