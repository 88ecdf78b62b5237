package assessment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/wildfire-analyser/internal/domain"
	"github.com/couchcryptid/wildfire-analyser/internal/observability"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel product renders when none is configured.
const DefaultConcurrency = 3

// PostFireAssessment computes a single assessment against an Imagery backend.
type PostFireAssessment struct {
	imagery     Imagery
	windowDays  int
	concurrency int
	clock       clockwork.Clock
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// Option customizes a PostFireAssessment.
type Option func(*PostFireAssessment)

// WithWindowDays sets how many days before and after the fire are searched.
func WithWindowDays(days int) Option {
	return func(p *PostFireAssessment) { p.windowDays = days }
}

// WithConcurrency limits how many products are rendered at once.
func WithConcurrency(n int) Option {
	return func(p *PostFireAssessment) { p.concurrency = n }
}

// WithClock replaces the clock used for stage timings.
func WithClock(c clockwork.Clock) Option {
	return func(p *PostFireAssessment) { p.clock = c }
}

// NewPostFireAssessment creates an assessor backed by the given imagery.
func NewPostFireAssessment(imagery Imagery, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *PostFireAssessment {
	p := &PostFireAssessment{
		imagery:     imagery,
		windowDays:  domain.DefaultWindowDays,
		concurrency: DefaultConcurrency,
		clock:       clockwork.NewRealClock(),
		metrics:     metrics,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	return p
}

// Run executes the assessment: check both windows have imagery, compute the
// area per severity class, then render every requested product.
func (p *PostFireAssessment) Run(ctx context.Context, a domain.Assessment) (domain.AssessmentResult, error) {
	beforeWindow, afterWindow := domain.ExpandDates(a.Start, a.End, p.windowDays)
	before := Composite{ROI: a.ROI, Window: beforeWindow, Strategy: a.Strategy, CloudThreshold: a.CloudThreshold}
	after := Composite{ROI: a.ROI, Window: afterWindow, Strategy: a.Strategy, CloudThreshold: a.CloudThreshold}

	res := domain.AssessmentResult{Assessment: a}
	log := p.logger.With("request_id", a.ID)

	start := p.clock.Now()
	for _, c := range []Composite{before, after} {
		if err := p.ensureNotEmpty(ctx, c); err != nil {
			return res, err
		}
	}
	res.Timings = append(res.Timings, p.stage(domain.StageCollection, start))

	start = p.clock.Now()
	areas, err := p.imagery.SeverityAreas(ctx, before, after)
	if err != nil {
		return res, fmt.Errorf("compute area by severity: %w", err)
	}
	res.AreaBySeverity = normalizeAreas(areas)
	res.Timings = append(res.Timings, p.stage(domain.StageIndexes, start))
	log.Debug("severity areas computed", "burned_ha", res.AreaBySeverity.Burned(), "total_ha", res.AreaBySeverity.Total())

	start = p.clock.Now()
	products, err := p.render(ctx, domain.ProductsFor(a.Deliverables), before, after)
	if err != nil {
		return res, err
	}
	res.Products = products
	res.Timings = append(res.Timings, p.stage(domain.StageDownloads, start))
	log.Debug("products rendered", "count", len(products))

	return res, nil
}

// ensureNotEmpty treats a failed count like an empty window.
func (p *PostFireAssessment) ensureNotEmpty(ctx context.Context, c Composite) error {
	n, err := p.imagery.CountScenes(ctx, c)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		p.logger.Warn("scene count failed", "window", c.Window.String(), "error", err)
		n = 0
	}
	if n == 0 {
		return fmt.Errorf("%w in date range %s", domain.ErrNoScenes, c.Window)
	}
	return nil
}

func (p *PostFireAssessment) render(ctx context.Context, kinds []domain.ProductKind, before, after Composite) ([]domain.Product, error) {
	products := make([]domain.Product, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, kind := range kinds {
		g.Go(func() error {
			data, err := p.imagery.Render(gctx, RenderJob{Kind: kind, Before: before, After: after})
			if err != nil {
				return fmt.Errorf("render %s: %w", kind, err)
			}
			if len(data) == 0 {
				return fmt.Errorf("render %s: empty response", kind)
			}
			products[i] = domain.Product{
				Kind:        kind,
				Filename:    kind.Filename(),
				ContentType: kind.ContentType(),
				Data:        data,
			}
			p.metrics.ProductsRendered.WithLabelValues(string(kind)).Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return products, nil
}

func (p *PostFireAssessment) stage(name string, start time.Time) domain.StageTiming {
	d := p.clock.Since(start)
	p.metrics.StageDuration.WithLabelValues(name).Observe(d.Seconds())
	return domain.StageTiming{Stage: name, Duration: d}
}

// normalizeAreas fills classes the backend left out with zero.
func normalizeAreas(in domain.AreaBySeverity) domain.AreaBySeverity {
	out := domain.NewAreaBySeverity()
	for _, c := range domain.SeverityClasses {
		out[c] = in[c]
	}
	return out
}
