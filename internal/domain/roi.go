package domain

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

// ROI is the polygonal region of interest an assessment is clipped to.
// Every accepted input is normalized to a MultiPolygon.
type ROI struct {
	Polygons orb.MultiPolygon
}

// LoadGeoJSON reads and parses a GeoJSON file.
func LoadGeoJSON(path string) (ROI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ROI{}, fmt.Errorf("%w: read %s: %v", ErrInvalidGeometry, path, err)
	}
	return ParseGeoJSON(data)
}

// ParseGeoJSON accepts a FeatureCollection, a Feature or a bare Polygon /
// MultiPolygon geometry.
func ParseGeoJSON(data []byte) (ROI, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return ROI{}, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}

	var geoms []orb.Geometry
	switch probe.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return ROI{}, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
		for _, f := range fc.Features {
			geoms = append(geoms, f.Geometry)
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return ROI{}, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
		geoms = append(geoms, f.Geometry)
	case "Polygon", "MultiPolygon":
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return ROI{}, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
		geoms = append(geoms, g.Geometry())
	default:
		return ROI{}, fmt.Errorf("%w: unsupported GeoJSON type %q", ErrInvalidGeometry, probe.Type)
	}

	return newROI(geoms)
}

func newROI(geoms []orb.Geometry) (ROI, error) {
	var mp orb.MultiPolygon
	for _, g := range geoms {
		switch v := g.(type) {
		case orb.Polygon:
			mp = append(mp, v)
		case orb.MultiPolygon:
			mp = append(mp, v...)
		case nil:
			return ROI{}, fmt.Errorf("%w: feature without geometry", ErrInvalidGeometry)
		default:
			return ROI{}, fmt.Errorf("%w: %s is not polygonal", ErrInvalidGeometry, g.GeoJSONType())
		}
	}
	if len(mp) == 0 {
		return ROI{}, fmt.Errorf("%w: no polygons found", ErrInvalidGeometry)
	}
	for i, poly := range mp {
		if len(poly) == 0 {
			return ROI{}, fmt.Errorf("%w: polygon %d has no rings", ErrInvalidGeometry, i)
		}
		for j, ring := range poly {
			if len(ring) < 4 {
				return ROI{}, fmt.Errorf("%w: polygon %d ring %d has %d positions, need at least 4", ErrInvalidGeometry, i, j, len(ring))
			}
		}
	}
	return ROI{Polygons: mp}, nil
}

// Bound is the lon/lat bounding box of the region.
func (r ROI) Bound() orb.Bound {
	return r.Polygons.Bound()
}

// AreaHectares is the geodesic area of the region.
func (r ROI) AreaHectares() float64 {
	return geo.Area(r.Polygons) / 10000
}

// MarshalGeoJSON encodes the region as a GeoJSON MultiPolygon geometry.
func (r ROI) MarshalGeoJSON() ([]byte, error) {
	return geojson.NewGeometry(r.Polygons).MarshalJSON()
}

// IsZero reports whether the region is unset.
func (r ROI) IsZero() bool {
	return len(r.Polygons) == 0
}
