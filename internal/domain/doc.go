// Package domain models post-fire severity assessments built from
// Sentinel-2 surface reflectance imagery.
//
// # Data Source
//
// Imagery comes from the Earth Engine collection COPERNICUS/S2_SR_HARMONIZED
// (Sentinel-2 Level-2A, harmonized to remove the 2022 processing baseline
// offset). Scenes are filtered by the region of interest, by the scene-level
// CLOUDY_PIXEL_PERCENTAGE property and by acquisition date.
//
// # Assessment Windows
//
// A request carries the fire start and end dates. Two windows are derived
// from them by [ExpandDates]:
//
//	before: [start - 30d, start)   pre-fire composite
//	after:  [end, end + 30d)       post-fire composite
//
// Window ends are exclusive, matching Earth Engine date filters.
//
// # Spectral Indices
//
// Digital numbers are scaled to reflectance with a 0.0001 factor and exposed
// as "<band>_refl" bands. Indices are normalized differences:
//
//	NDVI = (B8 - B4)  / (B8 + B4)
//	NBR  = (B8 - B12) / (B8 + B12)
//
// The Relative Burn Ratio compares pre- and post-fire NBR:
//
//	RBR = (NBR_pre - NBR_post) / (NBR_pre + 1.001)
//
// # Severity Classification
//
// RBR is split into five classes (see [ClassifyRBR]):
//
//	0 unburned   RBR < 0.10
//	1 low        0.10 <= RBR < 0.27
//	2 moderate   0.27 <= RBR < 0.44
//	3 high       0.44 <= RBR < 0.66
//	4 very high  RBR >= 0.66
//
// Area per class is reported in hectares at 10 m resolution.
//
// # Request IDs
//
// Requests without an explicit ID get a deterministic SHA-256 derived ID over
// the normalized request fields. Replays of the same request map to the same
// ID, which keys the result cache and the object prefix in the bucket.
package domain
