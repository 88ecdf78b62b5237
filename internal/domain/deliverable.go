package domain

import (
	"fmt"
	"strings"
)

// Deliverable names an output family a caller can request.
type Deliverable string

const (
	RGBPreFire   Deliverable = "rgb_pre_fire"
	RGBPostFire  Deliverable = "rgb_post_fire"
	NDVIPreFire  Deliverable = "ndvi_pre_fire"
	NDVIPostFire Deliverable = "ndvi_post_fire"
	RBR          Deliverable = "rbr"
)

// AllDeliverables lists the catalog in canonical order.
var AllDeliverables = []Deliverable{RGBPreFire, RGBPostFire, NDVIPreFire, NDVIPostFire, RBR}

// ProductKind identifies a single rendered file.
type ProductKind string

const (
	ProductRGBPreFire     ProductKind = "rgb_pre_fire"
	ProductRGBPostFire    ProductKind = "rgb_post_fire"
	ProductNDVIPreFire    ProductKind = "ndvi_pre_fire"
	ProductNDVIPostFire   ProductKind = "ndvi_post_fire"
	ProductRBR            ProductKind = "rbr"
	ProductSeverityVisual ProductKind = "severity_visual"
)

const (
	ContentTypeTIFF = "image/tiff"
	ContentTypeJPEG = "image/jpeg"
)

// Phase tells which composite a product is rendered from.
type Phase int

const (
	PhasePre Phase = iota
	PhasePost
	PhaseChange // needs both composites
)

// ParseDeliverable converts a name into a Deliverable.
func ParseDeliverable(s string) (Deliverable, error) {
	d := Deliverable(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllDeliverables {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDeliverable, s)
}

// ParseDeliverables parses names in order, dropping duplicates. An empty
// input is valid and yields statistics without rendered products.
func ParseDeliverables(names []string) ([]Deliverable, error) {
	out := make([]Deliverable, 0, len(names))
	seen := make(map[Deliverable]bool, len(names))
	for _, n := range names {
		d, err := ParseDeliverable(n)
		if err != nil {
			return nil, err
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out, nil
}

// Products returns the files rendered for the deliverable. RBR also emits
// the colorized severity map.
func (d Deliverable) Products() []ProductKind {
	switch d {
	case RBR:
		return []ProductKind{ProductRBR, ProductSeverityVisual}
	default:
		return []ProductKind{ProductKind(d)}
	}
}

// Filename is the object name used when the product is stored.
func (k ProductKind) Filename() string {
	switch k {
	case ProductSeverityVisual:
		return "severity.jpg"
	default:
		return string(k) + ".tif"
	}
}

// ContentType is the MIME type of the rendered file.
func (k ProductKind) ContentType() string {
	if k == ProductSeverityVisual {
		return ContentTypeJPEG
	}
	return ContentTypeTIFF
}

// Phase reports which composite feeds the product.
func (k ProductKind) Phase() Phase {
	switch k {
	case ProductRGBPreFire, ProductNDVIPreFire:
		return PhasePre
	case ProductRGBPostFire, ProductNDVIPostFire:
		return PhasePost
	default:
		return PhaseChange
	}
}

// ProductsFor expands deliverables into the ordered list of products to render.
func ProductsFor(deliverables []Deliverable) []ProductKind {
	var kinds []ProductKind
	for _, d := range deliverables {
		kinds = append(kinds, d.Products()...)
	}
	return kinds
}

// Product is a rendered file held in memory until it is stored.
type Product struct {
	Kind        ProductKind
	Filename    string
	ContentType string
	Data        []byte
}
