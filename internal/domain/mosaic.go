package domain

import (
	"fmt"
	"strings"
)

// MosaicStrategy selects how scenes in a window are combined into one image.
type MosaicStrategy string

const (
	// CloudSortedMosaic sorts scenes by cloudiness (cloudiest first) and
	// mosaics them so the clearest scene ends up on top.
	CloudSortedMosaic MosaicStrategy = "cloud_sorted_mosaic"
	// BestAvailableSceneRaw keeps only the least cloudy acquisition.
	BestAvailableSceneRaw MosaicStrategy = "best_available_scene_raw"
	// BestAvailableScene is BestAvailableSceneRaw with SCL cloud masking.
	BestAvailableScene MosaicStrategy = "best_available_scene"
	// CloudMaskedLightMosaic is a per-pixel quality mosaic weighted by cloud probability.
	CloudMaskedLightMosaic MosaicStrategy = "cloud_masked_light_mosaic"
)

// DefaultMosaicStrategy is used when a request does not name one.
const DefaultMosaicStrategy = CloudSortedMosaic

var mosaicStrategies = []MosaicStrategy{CloudSortedMosaic, BestAvailableSceneRaw, BestAvailableScene, CloudMaskedLightMosaic}

// ParseMosaicStrategy validates a strategy name. Empty selects the default.
func ParseMosaicStrategy(s string) (MosaicStrategy, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultMosaicStrategy, nil
	}
	for _, m := range mosaicStrategies {
		if MosaicStrategy(s) == m {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: '%s'", ErrUnknownStrategy, s)
}
