package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/storage"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/wildfire-analyser/internal/adapter/blobstore"
	"github.com/couchcryptid/wildfire-analyser/internal/adapter/earthengine"
	"github.com/couchcryptid/wildfire-analyser/internal/adapter/gcs"
	httpadapter "github.com/couchcryptid/wildfire-analyser/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/wildfire-analyser/internal/adapter/kafka"
	"github.com/couchcryptid/wildfire-analyser/internal/assessment"
	"github.com/couchcryptid/wildfire-analyser/internal/audit"
	"github.com/couchcryptid/wildfire-analyser/internal/config"
	"github.com/couchcryptid/wildfire-analyser/internal/observability"
	"github.com/couchcryptid/wildfire-analyser/internal/pipeline"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat).With("service", "wildfire-analyser")
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eeHTTP, err := earthengine.NewHTTPClient(ctx, cfg.CredentialsFile, cfg.EETimeout)
	if err != nil {
		logger.Error("earth engine credentials", "error", err)
		os.Exit(1)
	}
	eeClient := earthengine.NewClient(eeHTTP, cfg.EEBaseURL, cfg.GEEProjectID, cfg.EERequestsPerSecond, cfg.EEMaxRetries, logger, metrics)

	store, err := blobstore.Open(ctx, cfg.StoreURL, cfg.SignedURLTTL)
	if err != nil {
		logger.Error("open product store", "error", err, "store_url", cfg.StoreURL)
		os.Exit(1)
	}

	assessor := assessment.NewPostFireAssessment(earthengine.NewImagery(eeClient), logger, metrics,
		assessment.WithWindowDays(cfg.WindowDays),
		assessment.WithConcurrency(cfg.DownloadConcurrency),
	)
	service := assessment.NewService(assessor, store, logger, metrics)
	runner := assessment.NewCachedService(service, cfg.ResultCacheSize, cfg.ResultCacheTTL, metrics)
	logger.Info("assessment service ready",
		"store_url", cfg.StoreURL,
		"window_days", cfg.WindowDays,
		"download_concurrency", cfg.DownloadConcurrency,
		"cache_size", cfg.ResultCacheSize,
	)

	// Bucket audit (cron). Skipped when disabled or when the storage client
	// cannot be built, e.g. running against a local store without Google
	// credentials. Without an auditor /bucketz is not served.
	var auditor *audit.Auditor
	var gcsClient *storage.Client
	if cfg.BucketAuditSchedule == "" {
		logger.Info("bucket audit disabled")
	} else if gcsClient, err = storage.NewClient(ctx); err != nil {
		logger.Warn("bucket audit unavailable", "error", err)
		gcsClient = nil
	} else {
		auditor = audit.New(gcs.NewBucketPolicy(gcsClient, cfg.GCPBucketName), logger, metrics)
		if err := auditor.Start(cfg.BucketAuditSchedule); err != nil {
			logger.Error("start bucket audit", "error", err)
			os.Exit(1)
		}
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(runner, logger)

	p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)

	var bucketStatus httpadapter.BucketStatus
	if auditor != nil {
		bucketStatus = auditor
	}
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, bucketStatus, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start assessment pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if auditor != nil {
		auditor.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
	if err := store.Close(); err != nil {
		logger.Error("product store close error", "error", err)
	}
	if gcsClient != nil {
		if err := gcsClient.Close(); err != nil {
			logger.Error("storage client close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
