package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeliverables(t *testing.T) {
	t.Run("dedupes and keeps order", func(t *testing.T) {
		got, err := ParseDeliverables([]string{"rbr", "RGB_PRE_FIRE", "rbr", " ndvi_post_fire "})
		require.NoError(t, err)
		assert.Equal(t, []Deliverable{RBR, RGBPreFire, NDVIPostFire}, got)
	})

	t.Run("empty is valid", func(t *testing.T) {
		got, err := ParseDeliverables(nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := ParseDeliverables([]string{"rgb_pre_fire", "thermal"})
		require.ErrorIs(t, err, ErrUnknownDeliverable)
		assert.Contains(t, err.Error(), "thermal")
	})
}

func TestDeliverable_Products(t *testing.T) {
	assert.Equal(t, []ProductKind{ProductRBR, ProductSeverityVisual}, RBR.Products())
	assert.Equal(t, []ProductKind{ProductNDVIPreFire}, NDVIPreFire.Products())

	kinds := ProductsFor([]Deliverable{RGBPostFire, RBR})
	assert.Equal(t, []ProductKind{ProductRGBPostFire, ProductRBR, ProductSeverityVisual}, kinds)
}

func TestProductKind_Metadata(t *testing.T) {
	cases := []struct {
		kind        ProductKind
		filename    string
		contentType string
		phase       Phase
	}{
		{ProductRGBPreFire, "rgb_pre_fire.tif", ContentTypeTIFF, PhasePre},
		{ProductRGBPostFire, "rgb_post_fire.tif", ContentTypeTIFF, PhasePost},
		{ProductNDVIPreFire, "ndvi_pre_fire.tif", ContentTypeTIFF, PhasePre},
		{ProductNDVIPostFire, "ndvi_post_fire.tif", ContentTypeTIFF, PhasePost},
		{ProductRBR, "rbr.tif", ContentTypeTIFF, PhaseChange},
		{ProductSeverityVisual, "severity.jpg", ContentTypeJPEG, PhaseChange},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			assert.Equal(t, tc.filename, tc.kind.Filename())
			assert.Equal(t, tc.contentType, tc.kind.ContentType())
			assert.Equal(t, tc.phase, tc.kind.Phase())
		})
	}
}
