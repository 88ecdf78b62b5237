package earthengine

import (
	"fmt"

	"github.com/couchcryptid/wildfire-analyser/internal/assessment"
	"github.com/couchcryptid/wildfire-analyser/internal/domain"
)

const (
	collectionID = "COPERNICUS/S2_SR_HARMONIZED"

	cloudProperty = "CLOUDY_PIXEL_PERCENTAGE"
	indexProperty = "system:index"
	timeProperty  = "system:time_start"

	// maxCloudPercentage drops fully clouded scenes before any strategy runs.
	maxCloudPercentage = 100

	// Scale is the output resolution in meters (Sentinel-2 10 m bands).
	Scale = 10
	// maxPixels lets reduceRegion cover large fires without tiling.
	maxPixels = 1e12

	mapVar = "_MAPPING_VAR_0_0"
)

// spectralBands are the raw bands kept from each scene.
var spectralBands = []string{"B2", "B3", "B4", "B8", "B12"}

// maskedSCLClasses are scene classes treated as invalid: saturated or
// defective, cloud shadow, high probability cloud and cirrus.
var maskedSCLClasses = []float64{1, 3, 9, 10}

// sclCloudEdge is the medium probability cloud class, penalized but kept.
const sclCloudEdge = 8

// --- image algebra ---

func imageSelect(img *Expr, bands ...string) *Expr {
	return Call("Image.select", Args{"input": img, "bandSelectors": Const(bands)})
}

func rename(img *Expr, names ...string) *Expr {
	return Call("Image.rename", Args{"input": img, "names": Const(names)})
}

func imageConstant(v float64) *Expr {
	return Call("Image.constant", Args{"value": Const(v)})
}

func binary(op string, a, b *Expr) *Expr {
	return Call("Image."+op, Args{"image1": a, "image2": b})
}

func eq(img *Expr, v float64) *Expr  { return binary("eq", img, imageConstant(v)) }
func gte(img *Expr, v float64) *Expr { return binary("gte", img, imageConstant(v)) }

func not(img *Expr) *Expr {
	return Call("Image.not", Args{"value": img})
}

func updateMask(img, mask *Expr) *Expr {
	return Call("Image.updateMask", Args{"image": img, "mask": mask})
}

func addBands(dst, src *Expr) *Expr {
	return Call("Image.addBands", Args{"dstImg": dst, "srcImg": src})
}

// --- collections ---

func filter(col, f *Expr) *Expr {
	return Call("Collection.filter", Args{"collection": col, "filter": f})
}

func sortBy(col *Expr, property string, ascending bool) *Expr {
	return Call("Collection.limit", Args{"collection": col, "key": Const(property), "ascending": Const(ascending)})
}

func mosaic(col *Expr) *Expr {
	return Call("ImageCollection.mosaic", Args{"collection": col})
}

// geometry converts the region into a server-side MultiPolygon.
func geometry(roi domain.ROI) *Expr {
	coords := make([][][][2]float64, len(roi.Polygons))
	for i, poly := range roi.Polygons {
		rings := make([][][2]float64, len(poly))
		for j, ring := range poly {
			pts := make([][2]float64, len(ring))
			for k, p := range ring {
				pts[k] = [2]float64{p[0], p[1]}
			}
			rings[j] = pts
		}
		coords[i] = rings
	}
	return Call("GeometryConstructors.MultiPolygon", Args{
		"coordinates": Const(coords),
		"evenOdd":     Const(true),
	})
}

// sceneCollection is every scene over the region inside the window with
// fewer than 100% cloudy pixels.
func sceneCollection(c assessment.Composite) *Expr {
	col := Call("ImageCollection.load", Args{"id": Const(collectionID)})
	col = filter(col, Call("Filter.intersects", Args{
		"leftField":  Const(".all"),
		"rightValue": geometry(c.ROI),
	}))
	col = filter(col, Call("Filter.dateRangeContains", Args{
		"leftValue": Call("DateRange", Args{
			"start": Const(c.Window.Start.Format(domain.DateLayout)),
			"end":   Const(c.Window.End.Format(domain.DateLayout)),
		}),
		"rightField": Const(timeProperty),
	}))
	return filter(col, Call("Filter.lessThan", Args{
		"leftField":  Const(cloudProperty),
		"rightValue": Const(maxCloudPercentage),
	}))
}

// candidateScenes applies the request cloud threshold the way the strategy
// expects: scene strategies keep scenes at the threshold, mosaics drop them.
func candidateScenes(c assessment.Composite) *Expr {
	col := sceneCollection(c)
	switch c.Strategy {
	case domain.BestAvailableScene, domain.BestAvailableSceneRaw:
		return filter(col, Call("Filter.lessThanOrEquals", Args{
			"leftField":  Const(cloudProperty),
			"rightValue": Const(c.CloudThreshold),
		}))
	default:
		if c.CloudThreshold >= maxCloudPercentage {
			return col
		}
		return filter(col, Call("Filter.lessThan", Args{
			"leftField":  Const(cloudProperty),
			"rightValue": Const(c.CloudThreshold),
		}))
	}
}

// sceneCount is the number of candidate scenes.
func sceneCount(c assessment.Composite) *Expr {
	return Call("Collection.size", Args{"collection": candidateScenes(c)})
}

// maskInvalidSCL hides invalid scene classes.
func maskInvalidSCL(img *Expr) *Expr {
	scl := imageSelect(img, "SCL")
	invalid := eq(scl, maskedSCLClasses[0])
	for _, class := range maskedSCLClasses[1:] {
		invalid = binary("or", invalid, eq(scl, class))
	}
	return updateMask(img, not(invalid))
}

// bestScene mosaics only the tiles of the least cloudy acquisition.
func bestScene(col *Expr) *Expr {
	first := Call("Collection.first", Args{"collection": sortBy(col, cloudProperty, true)})
	sceneID := Call("Element.get", Args{"object": first, "property": Const(indexProperty)})
	same := filter(col, Call("Filter.equals", Args{
		"leftField":  Const(indexProperty),
		"rightValue": sceneID,
	}))
	return mosaic(same)
}

// withQuality appends a "quality" band: 100 minus cloud probability, with a
// further penalty on cloud edges.
func withQuality(img *Expr) *Expr {
	quality := binary("subtract", imageConstant(100), imageSelect(img, "MSK_CLDPRB"))
	quality = Call("Image.where", Args{
		"input": quality,
		"test":  eq(imageSelect(img, "SCL"), sclCloudEdge),
		"value": binary("subtract", quality, imageConstant(5)),
	})
	return addBands(img, rename(quality, "quality"))
}

func lightMaskedMosaic(col *Expr) *Expr {
	fn := Lambda([]string{mapVar}, withQuality(maskInvalidSCL(Arg(mapVar))))
	mapped := Call("Collection.map", Args{"collection": col, "baseAlgorithm": fn})
	return Call("ImageCollection.qualityMosaic", Args{"collection": mapped, "qualityBand": Const("quality")})
}

// reflectance keeps the spectral bands scaled to surface reflectance as
// <band>_refl. Scaling is linear per pixel, so applying it to the mosaic
// matches scaling each scene.
func reflectance(img *Expr) *Expr {
	names := make([]string, len(spectralBands))
	for i, b := range spectralBands {
		names[i] = b + "_refl"
	}
	scaled := binary("multiply", imageSelect(img, spectralBands...), imageConstant(domain.ReflectanceScale))
	return rename(scaled, names...)
}

// compositeImage builds the reflectance composite for one window.
func compositeImage(c assessment.Composite) (*Expr, error) {
	col := candidateScenes(c)
	var img *Expr
	switch c.Strategy {
	case domain.CloudSortedMosaic:
		img = mosaic(sortBy(col, cloudProperty, false))
	case domain.BestAvailableSceneRaw:
		img = bestScene(col)
	case domain.BestAvailableScene:
		img = maskInvalidSCL(bestScene(col))
	case domain.CloudMaskedLightMosaic:
		img = lightMaskedMosaic(col)
	default:
		return nil, fmt.Errorf("%w: '%s'", domain.ErrUnknownStrategy, c.Strategy)
	}
	return reflectance(img), nil
}

// --- indices ---

func normalizedDifference(img *Expr, a, b, name string) *Expr {
	nd := Call("Image.normalizedDifference", Args{"input": img, "bandNames": Const([]string{a, b})})
	return rename(nd, name)
}

func ndvi(composite *Expr) *Expr {
	return normalizedDifference(composite, "B8_refl", "B4_refl", "ndvi")
}

func nbr(composite *Expr) *Expr {
	return normalizedDifference(composite, "B8_refl", "B12_refl", "nbr")
}

// relativeBurnRatio is (NBRpre - NBRpost) / (NBRpre + 1.001).
func relativeBurnRatio(before, after *Expr) *Expr {
	pre, post := nbr(before), nbr(after)
	delta := binary("subtract", pre, post)
	return rename(binary("divide", delta, binary("add", pre, imageConstant(1.001))), "rbr")
}

// severity counts the thresholds each pixel reaches, giving classes 0..4.
func severity(rbr *Expr) *Expr {
	var sum *Expr
	for _, t := range domain.SeverityThresholds {
		step := gte(rbr, t)
		if sum == nil {
			sum = step
			continue
		}
		sum = binary("add", sum, step)
	}
	return rename(sum, "severity")
}

func rbrImage(before, after assessment.Composite) (*Expr, error) {
	pre, err := compositeImage(before)
	if err != nil {
		return nil, err
	}
	post, err := compositeImage(after)
	if err != nil {
		return nil, err
	}
	return relativeBurnRatio(pre, post), nil
}

// areaBySeverity sums pixel area in hectares per class into a dictionary
// keyed area_0..area_4.
func areaBySeverity(before, after assessment.Composite) (*Expr, error) {
	rbr, err := rbrImage(before, after)
	if err != nil {
		return nil, err
	}
	sev := severity(rbr)
	hectares := binary("divide", Call("Image.pixelArea", nil), imageConstant(10000))

	var stack *Expr
	for _, c := range domain.SeverityClasses {
		band := rename(updateMask(hectares, eq(sev, float64(c))), areaKey(c))
		if stack == nil {
			stack = band
			continue
		}
		stack = addBands(stack, band)
	}

	return Call("Image.reduceRegion", Args{
		"image":     stack,
		"reducer":   Call("Reducer.sum", nil),
		"geometry":  geometry(before.ROI),
		"scale":     Const(Scale),
		"maxPixels": Const(maxPixels),
	}), nil
}

func areaKey(c domain.FireSeverity) string {
	return fmt.Sprintf("area_%d", int(c))
}

// --- rendering ---

// File formats accepted by image:computePixels.
const (
	FormatGeoTIFF = "GEO_TIFF"
	FormatJPEG    = "JPEG"
)

func clip(img *Expr, roi domain.ROI) *Expr {
	return Call("Image.clipToBoundsAndScale", Args{
		"input":    img,
		"geometry": geometry(roi),
		"scale":    Const(Scale),
	})
}

// renderExpression builds the image and file format for one product.
func renderExpression(job assessment.RenderJob) (*Expr, string, error) {
	var (
		img    *Expr
		format = FormatGeoTIFF
	)
	switch job.Kind {
	case domain.ProductRGBPreFire, domain.ProductRGBPostFire:
		composite, err := compositeImage(job.Composite())
		if err != nil {
			return nil, "", err
		}
		img = imageSelect(composite, "B4_refl", "B3_refl", "B2_refl")
	case domain.ProductNDVIPreFire, domain.ProductNDVIPostFire:
		composite, err := compositeImage(job.Composite())
		if err != nil {
			return nil, "", err
		}
		img = ndvi(composite)
	case domain.ProductRBR:
		rbr, err := rbrImage(job.Before, job.After)
		if err != nil {
			return nil, "", err
		}
		img = rbr
	case domain.ProductSeverityVisual:
		rbr, err := rbrImage(job.Before, job.After)
		if err != nil {
			return nil, "", err
		}
		img = Call("Image.visualize", Args{
			"image":   severity(rbr),
			"min":     Const(0),
			"max":     Const(len(domain.SeverityClasses) - 1),
			"palette": Const(domain.SeverityPalette),
		})
		format = FormatJPEG
	default:
		return nil, "", fmt.Errorf("%w: product %q", domain.ErrUnknownDeliverable, job.Kind)
	}
	return clip(img, job.Before.ROI), format, nil
}
