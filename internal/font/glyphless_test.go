package font

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unidoc/unipdf/v3/core"
)

func TestBuildGlyphlessFontStructure(t *testing.T) {
	gf, err := BuildGlyphlessFont("GL1", "GlyphlessFont")
	require.NoError(t, err)
	assert.Equal(t, "GL1", gf.ResourceName)
	assert.NotNil(t, gf.Dict.Get("Subtype"))
	assert.NotNil(t, gf.Dict.Get("Encoding"))
	assert.NotNil(t, gf.Dict.Get("DescendantFonts"))
}

func TestIdentityCIDToGIDStreamCoversAllCIDs(t *testing.T) {
	stream, err := identityCIDToGIDStream()
	require.NoError(t, err)
	require.NotNil(t, stream)

	data, err := core.DecodeStream(stream)
	require.NoError(t, err)
	require.Len(t, data, 65536*2)
	assert.Equal(t, []byte{0x01, 0x02}, data[0x0102*2:0x0102*2+2])
	assert.Equal(t, []byte{0xFF, 0xFF}, data[65535*2:])
}
