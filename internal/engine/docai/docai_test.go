package docai

import (
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/stretchr/testify/assert"
)

func TestBoundingBoxScalesNormalizedVertices(t *testing.T) {
	dim := &documentaipb.Document_Page_Dimension{Width: 1000, Height: 2000}
	layout := &documentaipb.Document_Page_Layout{
		BoundingPoly: &documentaipb.BoundingPoly{
			NormalizedVertices: []*documentaipb.NormalizedVertex{
				{X: 0.1, Y: 0.1}, {X: 0.9, Y: 0.1}, {X: 0.9, Y: 0.2}, {X: 0.1, Y: 0.2},
			},
		},
	}
	box := boundingBox(layout, dim)
	assert.InDelta(t, 100, box.Left, 1)
	assert.InDelta(t, 900, box.Right, 1)
	assert.InDelta(t, 200, box.Top, 1)
	assert.InDelta(t, 400, box.Bottom, 1)
}

func TestBoundingBoxHandlesMissingLayout(t *testing.T) {
	box := boundingBox(nil, nil)
	assert.Equal(t, 0.0, box.Width())
}
