package domain

// ReflectanceScale converts Sentinel-2 L2A digital numbers to reflectance.
const ReflectanceScale = 0.0001

// rbrOffset keeps the RBR denominator away from zero when pre-fire NBR is -1.
const rbrOffset = 1.001

// NormalizedDifference returns (a-b)/(a+b), or 0 when the sum is zero.
func NormalizedDifference(a, b float64) float64 {
	if a+b == 0 {
		return 0
	}
	return (a - b) / (a + b)
}

// NDVI computes the vegetation index from NIR (B8) and red (B4) reflectance.
func NDVI(nir, red float64) float64 {
	return NormalizedDifference(nir, red)
}

// NBR computes the normalized burn ratio from NIR (B8) and SWIR2 (B12) reflectance.
func NBR(nir, swir2 float64) float64 {
	return NormalizedDifference(nir, swir2)
}

// RelativeBurnRatio compares pre- and post-fire NBR.
func RelativeBurnRatio(preNBR, postNBR float64) float64 {
	return (preNBR - postNBR) / (preNBR + rbrOffset)
}
