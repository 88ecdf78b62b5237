package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/wildfire-analyser/internal/adapter/blobstore"
	"github.com/couchcryptid/wildfire-analyser/internal/adapter/earthengine"
	"github.com/couchcryptid/wildfire-analyser/internal/assessment"
	"github.com/couchcryptid/wildfire-analyser/internal/config"
	"github.com/couchcryptid/wildfire-analyser/internal/domain"
	"github.com/couchcryptid/wildfire-analyser/internal/observability"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

func assessCommand() *cli.Command {
	flags := append(requestFlags(),
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write products and report.json under `DIR`"},
		&cli.BoolFlag{Name: "upload", Usage: "publish products to STORE_URL and print signed URLs"},
		&cli.IntFlag{Name: "concurrency", Usage: "parallel product downloads", EnvVars: []string{"DOWNLOAD_CONCURRENCY"}, Value: assessment.DefaultConcurrency},
	)
	return &cli.Command{
		Name:   "assess",
		Usage:  "run a post-fire assessment",
		Flags:  flags,
		Action: assessAction,
	}
}

func assessAction(c *cli.Context) error {
	req, err := requestFromFlags(c)
	if err != nil {
		return err
	}
	if _, err := req.Validate(); err != nil {
		return cli.Exit(err, 2)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := sharedobs.NewLogger(cfg.LogLevel, "text")
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	eeHTTP, err := earthengine.NewHTTPClient(ctx, cfg.CredentialsFile, cfg.EETimeout)
	if err != nil {
		return err
	}
	eeClient := earthengine.NewClient(eeHTTP, cfg.EEBaseURL, cfg.GEEProjectID, cfg.EERequestsPerSecond, cfg.EEMaxRetries, logger, metrics)
	assessor := assessment.NewPostFireAssessment(earthengine.NewImagery(eeClient), logger, metrics,
		assessment.WithWindowDays(c.Int("window-days")),
		assessment.WithConcurrency(c.Int("concurrency")),
	)

	res, err := assessment.NewService(assessor, nil, logger, metrics).Evaluate(ctx, req)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Assessment %s\n", res.Assessment.ID)
	printAreas(w, res.AreaBySeverity)
	printTimings(w, res.Timings)

	runID := uuid.NewString()
	if dir := c.String("out"); dir != "" {
		report, err := publish(ctx, assessor, dir, 0, runID, res, logger, metrics)
		if err != nil {
			return err
		}
		if err := writeReport(filepath.Join(dir, assessment.ObjectKey(report.RequestID, runID, "report.json")), report); err != nil {
			return err
		}
		fmt.Fprintf(w, "Products written under %s\n", dir)
		printProducts(w, report.Products)
	}
	if c.Bool("upload") {
		report, err := publish(ctx, assessor, cfg.StoreURL, cfg.SignedURLTTL, runID, res, logger, metrics)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Products uploaded to %s\n", cfg.StoreURL)
		printProducts(w, report.Products)
	}
	return nil
}

// publish stores res in the bucket at storeURL and returns its report.
func publish(ctx context.Context, assessor *assessment.PostFireAssessment, storeURL string, ttl time.Duration, runID string, res domain.AssessmentResult, logger *slog.Logger, metrics *observability.Metrics) (domain.Report, error) {
	store, err := blobstore.Open(ctx, storeURL, ttl)
	if err != nil {
		return domain.Report{}, err
	}
	defer store.Close()
	return assessment.NewService(assessor, store, logger, metrics).Publish(ctx, runID, res)
}

func writeReport(path string, report domain.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
