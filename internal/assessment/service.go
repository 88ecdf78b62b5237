package assessment

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/couchcryptid/wildfire-analyser/internal/domain"
	"github.com/couchcryptid/wildfire-analyser/internal/observability"
	"github.com/google/uuid"
)

// objectPrefix roots every product key in the bucket.
const objectPrefix = "assessments"

// ProductStore persists rendered products.
type ProductStore interface {
	Put(ctx context.Context, key string, p domain.Product) (domain.StoredProduct, error)
}

// Runner turns an assessment request into a report.
type Runner interface {
	Assess(ctx context.Context, req domain.AssessmentRequest) (domain.Report, error)
}

// ObjectKey is the bucket key of a product: assessments/<request>/<run>/<file>.
func ObjectKey(requestID, runID, filename string) string {
	return path.Join(objectPrefix, requestID, runID, filename)
}

// Service validates requests, runs assessments and publishes their products.
type Service struct {
	assessor *PostFireAssessment
	store    ProductStore
	newRunID func() string
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewService creates a Service that writes products to store.
func NewService(assessor *PostFireAssessment, store ProductStore, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		assessor: assessor,
		store:    store,
		newRunID: uuid.NewString,
		metrics:  metrics,
		logger:   logger,
	}
}

// Evaluate validates and runs a request without publishing anything.
func (s *Service) Evaluate(ctx context.Context, req domain.AssessmentRequest) (domain.AssessmentResult, error) {
	a, err := req.Validate()
	if err != nil {
		return domain.AssessmentResult{}, err
	}
	return s.assessor.Run(ctx, a)
}

// Assess runs a request end to end. Validation and assessment failures are
// reported as a failed report; only context cancellation returns an error,
// so the caller can retry the request later.
func (s *Service) Assess(ctx context.Context, req domain.AssessmentRequest) (domain.Report, error) {
	runID := s.newRunID()

	res, err := s.Evaluate(ctx, req)
	if err == nil {
		var report domain.Report
		report, err = s.Publish(ctx, runID, res)
		if err == nil {
			s.metrics.Assessments.WithLabelValues(domain.StatusSucceeded).Inc()
			s.logger.Info("assessment succeeded",
				"request_id", report.RequestID,
				"run_id", runID,
				"burned_ha", report.BurnedHectares,
				"products", len(report.Products),
			)
			return report, nil
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.Report{}, ctxErr
	}

	requestID := res.Assessment.ID
	if requestID == "" {
		requestID = req.ID
	}
	s.metrics.Assessments.WithLabelValues(domain.StatusFailed).Inc()
	s.logger.Warn("assessment failed", "request_id", requestID, "run_id", runID, "error", err)
	return domain.FailedReport(requestID, runID, err), nil
}

// Publish stores every product of res under its run and builds the report.
func (s *Service) Publish(ctx context.Context, runID string, res domain.AssessmentResult) (domain.Report, error) {
	stored := make([]domain.StoredProduct, 0, len(res.Products))
	for _, p := range res.Products {
		sp, err := s.store.Put(ctx, ObjectKey(res.Assessment.ID, runID, p.Filename), p)
		if err != nil {
			return domain.Report{}, fmt.Errorf("store %s: %w", p.Filename, err)
		}
		s.metrics.ProductBytes.Add(float64(sp.Size))
		stored = append(stored, sp)
	}
	return domain.NewReport(runID, res, stored), nil
}
