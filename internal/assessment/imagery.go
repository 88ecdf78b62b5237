// Package assessment runs post-fire severity assessments: it builds pre-fire
// and post-fire composites through an Imagery backend, derives burned area per
// severity class, renders the requested products and publishes them.
package assessment

import (
	"context"

	"github.com/couchcryptid/wildfire-analyser/internal/domain"
)

// Composite describes one mosaicked Sentinel-2 image over the region.
type Composite struct {
	ROI            domain.ROI
	Window         domain.DateRange
	Strategy       domain.MosaicStrategy
	CloudThreshold float64
}

// RenderJob asks the backend for one product. Before and After are both set;
// single-phase products use only the one their phase names.
type RenderJob struct {
	Kind   domain.ProductKind
	Before Composite
	After  Composite
}

// Composite returns the composite that feeds a single-phase product.
func (j RenderJob) Composite() Composite {
	if j.Kind.Phase() == domain.PhasePost {
		return j.After
	}
	return j.Before
}

// Imagery is the remote raster backend the assessment is computed on.
type Imagery interface {
	// CountScenes returns how many scenes fall inside the composite window.
	CountScenes(ctx context.Context, c Composite) (int, error)
	// SeverityAreas classifies RBR between the two composites and sums
	// the area of each class in hectares.
	SeverityAreas(ctx context.Context, before, after Composite) (domain.AreaBySeverity, error)
	// Render produces the encoded file for one product.
	Render(ctx context.Context, job RenderJob) ([]byte, error)
}
