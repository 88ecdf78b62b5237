package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Stage names used for assessment timings.
const (
	StageCollection = "collection"
	StageIndexes    = "indexes"
	StageDownloads  = "downloads"
)

// StageTiming records how long one assessment stage took.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration_ns"`
}

// AssessmentResult is the in-memory outcome of a completed assessment.
type AssessmentResult struct {
	Assessment     Assessment
	Products       []Product
	Timings        []StageTiming
	AreaBySeverity AreaBySeverity
}

// Report statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// StoredProduct describes a product after it was written to the bucket.
type StoredProduct struct {
	Kind        ProductKind `json:"kind"`
	Key         string      `json:"key"`
	URI         string      `json:"uri"`
	SignedURL   string      `json:"signed_url,omitempty"`
	ContentType string      `json:"content_type"`
	Size        int64       `json:"size"`
}

// SeverityArea is the serialized area of one class.
type SeverityArea struct {
	Class    int     `json:"class"`
	Label    string  `json:"label"`
	Hectares float64 `json:"hectares"`
}

// Report is the published outcome of an assessment request.
type Report struct {
	RequestID      string          `json:"request_id"`
	RunID          string          `json:"run_id"`
	Status         string          `json:"status"`
	Error          string          `json:"error,omitempty"`
	StartDate      string          `json:"start_date,omitempty"`
	EndDate        string          `json:"end_date,omitempty"`
	MosaicStrategy string          `json:"mosaic_strategy,omitempty"`
	ROIHectares    float64         `json:"roi_hectares,omitempty"`
	AreaBySeverity []SeverityArea  `json:"area_by_severity,omitempty"`
	BurnedHectares float64         `json:"burned_hectares"`
	TotalHectares  float64         `json:"total_hectares"`
	Timings        []StageTiming   `json:"timings,omitempty"`
	Products       []StoredProduct `json:"products,omitempty"`
	CompletedAt    time.Time       `json:"completed_at"`
}

// NewReport builds a succeeded report from a result and its stored products.
func NewReport(runID string, res AssessmentResult, stored []StoredProduct) Report {
	a := res.Assessment
	areas := make([]SeverityArea, 0, len(SeverityClasses))
	for _, c := range SeverityClasses {
		areas = append(areas, SeverityArea{Class: int(c), Label: c.String(), Hectares: res.AreaBySeverity[c]})
	}
	return Report{
		RequestID:      a.ID,
		RunID:          runID,
		Status:         StatusSucceeded,
		StartDate:      a.Start.Format(DateLayout),
		EndDate:        a.End.Format(DateLayout),
		MosaicStrategy: string(a.Strategy),
		ROIHectares:    a.ROI.AreaHectares(),
		AreaBySeverity: areas,
		BurnedHectares: res.AreaBySeverity.Burned(),
		TotalHectares:  res.AreaBySeverity.Total(),
		Timings:        res.Timings,
		Products:       stored,
		CompletedAt:    clock.Now().UTC(),
	}
}

// FailedReport records an assessment that could not complete.
func FailedReport(requestID, runID string, err error) Report {
	return Report{
		RequestID:   requestID,
		RunID:       runID,
		Status:      StatusFailed,
		Error:       err.Error(),
		CompletedAt: clock.Now().UTC(),
	}
}

// SerializeReport converts a report into an OutputEvent keyed by request ID.
func SerializeReport(r Report) (OutputEvent, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize report: %w", err)
	}
	return OutputEvent{
		Key:   []byte(r.RequestID),
		Value: data,
		Headers: map[string]string{
			"status":       r.Status,
			"completed_at": r.CompletedAt.Format(time.RFC3339),
		},
	}, nil
}
