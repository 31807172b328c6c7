package render

import (
	"fmt"
	"strings"
	"testing"

	gofontshaping "github.com/go-text/typesetting/shaping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unidoc/unipdf/v3/core"
	"golang.org/x/image/math/fixed"

	"github.com/ocrchestra/ocrchestra-core/internal/geometry"
	"github.com/ocrchestra/ocrchestra-core/internal/ocrtree"
)

func sampleWideLine() *ocrtree.Element {
	return ocrtree.NewElement(ocrtree.TagLine, geometry.NewBoundingBox(0, 0, 1000, 50))
}

func TestIsCJKOnly(t *testing.T) {
	assert.True(t, isCJKOnly("日本語"))
	assert.True(t, isCJKOnly("한글"))
	assert.False(t, isCJKOnly("hello"))
	assert.False(t, isCJKOnly("日本語abc"))
	assert.False(t, isCJKOnly(""))
}

func TestAspectPlausibleFlagsRotatedWideLine(t *testing.T) {
	r := &Renderer{}
	line := sampleWideLine()
	assert.False(t, r.aspectPlausible(line, 90))
	assert.True(t, r.aspectPlausible(line, 0))
}

// TestShouldAppendSpaceSkipsOnlyCJKPairs covers the spec.md §4.E.3 step 8
// trailing-space rule (property 1, scenario E1): a space belongs between
// any two words except when both are CJK-only.
func TestShouldAppendSpaceSkipsOnlyCJKPairs(t *testing.T) {
	assert.True(t, shouldAppendSpace("Hello", "World"))
	assert.False(t, shouldAppendSpace("日本語", "語彙"))
	assert.True(t, shouldAppendSpace("日本語", "World"))
	assert.True(t, shouldAppendSpace("World", "日本語"))
}

// TestComputeTzMatchesTargetWidth is the coordinate-alignment property
// (property 2): scaling naturalWidth by the returned Tz percentage must
// reproduce targetWidth, so the invisible text lands within 2pt of the
// word's own hOCR bounding box.
func TestComputeTzMatchesTargetWidth(t *testing.T) {
	cases := []struct{ natural, target float64 }{
		{50, 60},
		{120, 30},
		{10, 10},
		{0.001, 200},
	}
	for _, c := range cases {
		scale := computeTz(c.natural, c.target)
		got := c.natural * scale / 100.0
		assert.InDelta(t, c.target, got, 0.01, "natural=%v target=%v", c.natural, c.target)
	}
}

func TestComputeTzClampsDegenerateInputs(t *testing.T) {
	assert.Equal(t, 100.0, computeTz(0, 50))
	assert.Equal(t, 100.0, computeTz(-5, 50))
	assert.Equal(t, 100.0, computeTz(50, 0))
}

// TestEncodeGlyphCIDsEmitsBigEndianIdentityCIDs covers properties 1 and 10
// and scenario E1: the Tj operand for an Identity-H font must be 2-byte
// big-endian CIDs equal to the shaped glyph IDs, not UTF-8 text.
func TestEncodeGlyphCIDsEmitsBigEndianIdentityCIDs(t *testing.T) {
	out := &gofontshaping.Output{
		Glyphs: []gofontshaping.Glyph{
			{GlyphID: 0x0041, XAdvance: fixed.I(5), ClusterIndex: 0},
			{GlyphID: 0x0102, XAdvance: fixed.I(7), ClusterIndex: 1},
		},
	}
	widths := make(map[uint16]int64)
	runes := make(map[uint16]rune)
	cidBytes := encodeGlyphCIDs(out, []rune("Hi"), 10, widths, runes)

	require.Len(t, cidBytes, 4)
	assert.Equal(t, []byte{0x00, 0x41, 0x01, 0x02}, cidBytes)
	assert.Equal(t, rune('H'), runes[0x0041])
	assert.Equal(t, rune('i'), runes[0x0102])
	// Advance was 5pt at a 10pt font size, so the 1000-unit glyph-space
	// width is 500.
	assert.Equal(t, int64(500), widths[0x0041])
	assert.Equal(t, int64(700), widths[0x0102])
}

// TestEncodeCodepointCIDsRoundTripsToUnicode exercises the glyphless
// fallback path end to end: encode "Hi There" (with the trailing-space
// injection already applied by the caller) into CIDs, build the ToUnicode
// CMap those CIDs are declared against, and decode the CMap's own bfchar
// entries back into the original text — this is the render-then-extract
// round trip for words with no covering face (property 10, scenario E1).
func TestEncodeCodepointCIDsRoundTripsToUnicode(t *testing.T) {
	widths := make(map[uint16]int64)
	text := "Hi There"
	cidBytes := encodeCodepointCIDs(text, widths)
	require.Len(t, cidBytes, len(text)*2)

	runes := make(map[uint16]rune)
	for i := 0; i < len(cidBytes); i += 2 {
		cid := uint16(cidBytes[i])<<8 | uint16(cidBytes[i+1])
		runes[cid] = rune(cid) // glyphless CID == Unicode codepoint, by construction
	}
	stream, err := buildToUnicodeCMap(runes)
	require.NoError(t, err)
	require.NotNil(t, stream)

	cmapData, err := core.DecodeStream(stream)
	require.NoError(t, err)
	bfchar := make(map[uint16]rune)
	inBfchar := false
	for _, l := range strings.Split(string(cmapData), "\n") {
		switch {
		case strings.HasSuffix(l, "beginbfchar"):
			inBfchar = true
		case l == "endbfchar":
			inBfchar = false
		case inBfchar:
			var cid, uni uint32
			if n, _ := fmt.Sscanf(l, "<%x> <%x>", &cid, &uni); n == 2 {
				bfchar[uint16(cid)] = rune(uni)
			}
		}
	}

	var decoded []rune
	for i := 0; i < len(cidBytes); i += 2 {
		cid := uint16(cidBytes[i])<<8 | uint16(cidBytes[i+1])
		decoded = append(decoded, bfchar[cid])
	}
	assert.Equal(t, text, string(decoded))
}

// TestEncodeCodepointCIDsAppendedSpaceSurvives is scenario E1 directly:
// appending a trailing space to a non-last word, as renderLine does, must
// not collapse back into a run-on word once encoded as CIDs.
func TestEncodeCodepointCIDsAppendedSpaceSurvives(t *testing.T) {
	widths := make(map[uint16]int64)
	cidBytes := encodeCodepointCIDs("Hello"+" ", widths)
	require.Len(t, cidBytes, 12) // 6 runes * 2 bytes
	lastCID := uint16(cidBytes[10])<<8 | uint16(cidBytes[11])
	assert.Equal(t, uint16(' '), lastCID)
}

func TestBuildWArraySortsByCID(t *testing.T) {
	widths := map[uint16]int64{300: 10, 100: 20, 200: 30}
	arr := buildWArray(widths)
	require.NotNil(t, arr)
	require.Equal(t, 6, arr.Len()) // 3 cids * (cid, [width]) pairs

	var seenCIDs []string
	for i := 0; i < arr.Len(); i += 2 {
		seenCIDs = append(seenCIDs, arr.Get(i).String())
	}
	assert.Equal(t, []string{"100", "200", "300"}, seenCIDs)
}

func TestBuildWArrayEmptyIsNil(t *testing.T) {
	assert.Nil(t, buildWArray(map[uint16]int64{}))
}

// TestFontUsageBuildDictGlyphless exercises the wiring from review item
// (f): the renderer's no-coverage path builds a real glyphless composite
// font dictionary, not a no-op.
func TestFontUsageBuildDictGlyphless(t *testing.T) {
	u := newFontUsage(nil, true)
	u.widths[65] = 500
	u.runes[65] = 'A'

	dict, err := u.buildDict()
	require.NoError(t, err)
	require.NotNil(t, dict)
	assert.NotNil(t, dict.Get("DescendantFonts"))
	assert.NotNil(t, dict.Get("Encoding"))

	subtype := dict.Get("Subtype")
	require.NotNil(t, subtype)
	assert.Equal(t, "Type0", subtype.String())
}
