package graft

import (
	"testing"

	"github.com/ocrchestra/ocrchestra-core/internal/geometry"
	"github.com/stretchr/testify/assert"
)

func TestGraftTextLayerMatrixComposesWithoutPanicking(t *testing.T) {
	translate := geometry.Translated(-5, -5)
	rotate := geometry.Rotated(90)
	scale := geometry.Scaled(1, 1)
	untranslate := geometry.Translated(5, 5)
	corner := geometry.Translated(0, 0)

	ctm := translate.Compose(rotate).Compose(scale).Compose(untranslate).Compose(corner)
	enc := ctm.Encode()
	assert.Len(t, enc, 6)
}

func TestMaxReplacePagesConstant(t *testing.T) {
	assert.Equal(t, 100, MaxReplacePages)
}
