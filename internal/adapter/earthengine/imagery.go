package earthengine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/couchcryptid/wildfire-analyser/internal/assessment"
	"github.com/couchcryptid/wildfire-analyser/internal/domain"
)

// Imagery implements assessment.Imagery on Earth Engine.
type Imagery struct {
	client *Client
}

var _ assessment.Imagery = (*Imagery)(nil)

// NewImagery creates an Imagery backed by client.
func NewImagery(client *Client) *Imagery {
	return &Imagery{client: client}
}

func (i *Imagery) CountScenes(ctx context.Context, c assessment.Composite) (int, error) {
	raw, err := i.client.ComputeValue(ctx, sceneCount(c))
	if err != nil {
		return 0, fmt.Errorf("count scenes in %s: %w", c.Window, err)
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("decode scene count: %w", err)
	}
	return n, nil
}

func (i *Imagery) SeverityAreas(ctx context.Context, before, after assessment.Composite) (domain.AreaBySeverity, error) {
	expr, err := areaBySeverity(before, after)
	if err != nil {
		return nil, err
	}
	raw, err := i.client.ComputeValue(ctx, expr)
	if err != nil {
		return nil, fmt.Errorf("reduce severity areas: %w", err)
	}

	// Classes with no pixels come back null or missing.
	var sums map[string]*float64
	if err := json.Unmarshal(raw, &sums); err != nil {
		return nil, fmt.Errorf("decode severity areas: %w", err)
	}
	areas := domain.NewAreaBySeverity()
	for _, c := range domain.SeverityClasses {
		if v := sums[areaKey(c)]; v != nil {
			areas[c] = *v
		}
	}
	return areas, nil
}

func (i *Imagery) Render(ctx context.Context, job assessment.RenderJob) ([]byte, error) {
	expr, format, err := renderExpression(job)
	if err != nil {
		return nil, err
	}
	return i.client.ComputePixels(ctx, expr, format)
}
