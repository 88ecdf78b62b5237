package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/wildfire-analyser/internal/assessment"
	"github.com/couchcryptid/wildfire-analyser/internal/domain"
)

// AssessmentTransformer implements Transformer by running each request
// through an assessment.Runner and serializing the resulting report.
type AssessmentTransformer struct {
	runner assessment.Runner
	logger *slog.Logger
}

// NewTransformer creates an AssessmentTransformer backed by runner.
func NewTransformer(runner assessment.Runner, logger *slog.Logger) *AssessmentTransformer {
	return &AssessmentTransformer{
		runner: runner,
		logger: logger,
	}
}

// Transform returns an error only for payloads that are not requests at all
// or when ctx ends mid-assessment. Assessment failures come back as failed
// reports.
func (t *AssessmentTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	req, err := domain.ParseAssessmentRequest(raw)
	if err != nil {
		return domain.OutputEvent{}, err
	}

	t.logger.Debug("assessing request", "key", string(raw.Key), "offset", raw.Offset)

	report, err := t.runner.Assess(ctx, req)
	if err != nil {
		return domain.OutputEvent{}, fmt.Errorf("assess: %w", err)
	}
	if report.RequestID == "" {
		report.RequestID = string(raw.Key)
	}

	return domain.SerializeReport(report)
}
