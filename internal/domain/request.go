package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultCloudThreshold keeps every scene (CLOUDY_PIXEL_PERCENTAGE < 100).
const DefaultCloudThreshold = 100

// AssessmentRequest is the wire form of an assessment request. The region is
// given either inline (GeoJSON) or as a path to a GeoJSON file.
type AssessmentRequest struct {
	ID             string          `json:"id,omitempty" yaml:"id"`
	GeoJSON        json.RawMessage `json:"geojson,omitempty" yaml:"-"`
	GeoJSONPath    string          `json:"geojson_path,omitempty" yaml:"geojson_path"`
	StartDate      string          `json:"start_date" yaml:"start_date"`
	EndDate        string          `json:"end_date" yaml:"end_date"`
	Deliverables   []string        `json:"deliverables,omitempty" yaml:"deliverables"`
	MosaicStrategy string          `json:"mosaic_strategy,omitempty" yaml:"mosaic_strategy"`
	// CloudThreshold is nil when absent, which selects DefaultCloudThreshold.
	CloudThreshold *float64 `json:"cloud_threshold,omitempty" yaml:"cloud_threshold"`
}

// UnmarshalYAML lets request files embed the region as a YAML mapping under
// "geojson"; it is re-encoded to JSON for the GeoJSON parser.
func (r *AssessmentRequest) UnmarshalYAML(node *yaml.Node) error {
	type plain AssessmentRequest
	var aux struct {
		plain   `yaml:",inline"`
		GeoJSON any `yaml:"geojson"`
	}
	if err := node.Decode(&aux); err != nil {
		return err
	}
	*r = AssessmentRequest(aux.plain)
	if aux.GeoJSON != nil {
		data, err := json.Marshal(aux.GeoJSON)
		if err != nil {
			return fmt.Errorf("encode inline geojson: %w", err)
		}
		r.GeoJSON = data
	}
	return nil
}

// Assessment is a validated, normalized request. ID names the report and
// its objects; Fingerprint identifies the normalized parameters and is what
// identical requests share.
type Assessment struct {
	ID             string
	Fingerprint    string
	ROI            ROI
	Start          time.Time
	End            time.Time
	Deliverables   []Deliverable
	Strategy       MosaicStrategy
	CloudThreshold float64
}

// ParseAssessmentRequest decodes the JSON payload of a raw event.
func ParseAssessmentRequest(raw RawEvent) (AssessmentRequest, error) {
	var req AssessmentRequest
	if err := json.Unmarshal(raw.Value, &req); err != nil {
		return AssessmentRequest{}, fmt.Errorf("parse assessment request: %w", err)
	}
	return req, nil
}

// ParseRequestFile decodes a YAML (or JSON, which is valid YAML) request file body.
func ParseRequestFile(data []byte) (AssessmentRequest, error) {
	var req AssessmentRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return AssessmentRequest{}, fmt.Errorf("parse request file: %w", err)
	}
	return req, nil
}

// Validate checks the request and returns its normalized form.
func (r AssessmentRequest) Validate() (Assessment, error) {
	var (
		roi ROI
		err error
	)
	switch {
	case len(r.GeoJSON) > 0:
		roi, err = ParseGeoJSON(r.GeoJSON)
	case r.GeoJSONPath != "":
		roi, err = LoadGeoJSON(r.GeoJSONPath)
	default:
		err = fmt.Errorf("%w: a region is required (geojson or geojson_path)", ErrInvalidGeometry)
	}
	if err != nil {
		return Assessment{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	start, err := ParseDate(r.StartDate, "start_date")
	if err != nil {
		return Assessment{}, err
	}
	end, err := ParseDate(r.EndDate, "end_date")
	if err != nil {
		return Assessment{}, err
	}

	deliverables, err := ParseDeliverables(r.Deliverables)
	if err != nil {
		return Assessment{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	if start.After(end) {
		return Assessment{}, fmt.Errorf("%w: 'start_date' must be earlier than 'end_date'. Received: %s > %s",
			ErrInvalidRequest, r.StartDate, r.EndDate)
	}

	strategy, err := ParseMosaicStrategy(r.MosaicStrategy)
	if err != nil {
		return Assessment{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	threshold := float64(DefaultCloudThreshold)
	if r.CloudThreshold != nil {
		threshold = *r.CloudThreshold
	}
	if threshold <= 0 || threshold > 100 {
		return Assessment{}, fmt.Errorf("%w: 'cloud_threshold' must be in (0, 100], got %v", ErrInvalidRequest, threshold)
	}

	a := Assessment{
		ID:             r.ID,
		ROI:            roi,
		Start:          start,
		End:            end,
		Deliverables:   deliverables,
		Strategy:       strategy,
		CloudThreshold: threshold,
	}
	if a.Fingerprint, err = fingerprint(a); err != nil {
		return Assessment{}, err
	}
	if a.ID == "" {
		a.ID = a.Fingerprint
	}
	return a, nil
}

// Float64 returns a pointer to v, for optional request fields.
func Float64(v float64) *float64 { return &v }

// fingerprint hashes the normalized fields. The caller's ID is not part of it.
func fingerprint(a Assessment) (string, error) {
	geom, err := a.ROI.MarshalGeoJSON()
	if err != nil {
		return "", fmt.Errorf("encode region: %w", err)
	}
	names := make([]string, len(a.Deliverables))
	for i, d := range a.Deliverables {
		names[i] = string(d)
	}
	h := sha256.New()
	h.Write(geom)
	fmt.Fprintf(h, "|%s|%s|%s|%s|%s",
		a.Start.Format(DateLayout),
		a.End.Format(DateLayout),
		strings.Join(names, ","),
		a.Strategy,
		strconv.FormatFloat(a.CloudThreshold, 'f', -1, 64),
	)
	return "fire-" + hex.EncodeToString(h.Sum(nil))[:16], nil
}
