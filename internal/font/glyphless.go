package font

import (
	"bytes"
	"fmt"

	"github.com/unidoc/unipdf/v3/core"
)

// CharAspect is the assumed glyph width-to-height ratio used to size the
// glyphless font's advance width, matching the original renderer's
// CHAR_ASPECT constant.
const CharAspect = 2.0

// glyphDW is the Type0 font's default glyph width in 1/1000 em units,
// derived from CharAspect the same way fpdf_renderer.py computes it.
const glyphDW = 1000.0 / CharAspect

// GlyphlessCharWidthRatio is glyphDW expressed as a fraction of em, for
// callers estimating a glyphless-rendered word's width at a given font
// size without going through the font dictionary.
const GlyphlessCharWidthRatio = 1.0 / CharAspect

// GlyphlessFont holds the PDF objects making up the mandatory invisible
// fallback font described in spec.md §6.2: a Type0 composite font over a
// CIDFontType2 descendant with Identity-H encoding, a literal CIDToGIDMap
// identity stream (not the /Identity name shortcut), and a ToUnicode CMap.
//
// This is built by hand against unipdf/v3/core primitives instead of via
// model.NewCompositePdfFontFromTTFFile because that convenience
// constructor emits /CIDToGIDMap /Identity and font-derived widths, which
// does not match the literal byte-level structure this fallback requires
// (see DESIGN.md).
type GlyphlessFont struct {
	ResourceName string
	Dict         *core.PdfObjectDictionary
}

// BuildGlyphlessFont constructs the font dictionary tree. baseFont is the
// PDF /BaseFont name (cosmetic only, since the font is never actually
// rendered visibly).
func BuildGlyphlessFont(resourceName, baseFont string) (*GlyphlessFont, error) {
	cidToGID, err := identityCIDToGIDStream()
	if err != nil {
		return nil, fmt.Errorf("font: build CIDToGIDMap stream: %w", err)
	}
	toUnicode, err := identityToUnicodeStream()
	if err != nil {
		return nil, fmt.Errorf("font: build ToUnicode stream: %w", err)
	}

	descriptor := core.MakeDict()
	descriptor.Set("Type", core.MakeName("FontDescriptor"))
	descriptor.Set("FontName", core.MakeName(baseFont))
	// Symbolic + fixed-pitch, per spec.md §6.2's descriptor flags.
	descriptor.Set("Flags", core.MakeInteger(1|4))
	descriptor.Set("FontBBox", core.MakeArrayFromIntegers([]int{0, 0, 1000, 1000}))
	descriptor.Set("ItalicAngle", core.MakeInteger(0))
	descriptor.Set("Ascent", core.MakeInteger(1000))
	descriptor.Set("Descent", core.MakeInteger(0))
	descriptor.Set("CapHeight", core.MakeInteger(1000))
	descriptor.Set("StemV", core.MakeInteger(80))

	cidSystemInfo := core.MakeDict()
	cidSystemInfo.Set("Registry", core.MakeString("Adobe"))
	cidSystemInfo.Set("Ordering", core.MakeString("Identity"))
	cidSystemInfo.Set("Supplement", core.MakeInteger(0))

	descendant := core.MakeDict()
	descendant.Set("Type", core.MakeName("Font"))
	descendant.Set("Subtype", core.MakeName("CIDFontType2"))
	descendant.Set("BaseFont", core.MakeName(baseFont))
	descendant.Set("CIDSystemInfo", cidSystemInfo)
	descendant.Set("FontDescriptor", core.MakeIndirectObject(descriptor))
	descendant.Set("DW", core.MakeFloat(glyphDW))
	descendant.Set("CIDToGIDMap", core.MakeIndirectObject(cidToGID))

	type0 := core.MakeDict()
	type0.Set("Type", core.MakeName("Font"))
	type0.Set("Subtype", core.MakeName("Type0"))
	type0.Set("BaseFont", core.MakeName(baseFont))
	type0.Set("Encoding", core.MakeName("Identity-H"))
	type0.Set("DescendantFonts", core.MakeArray(core.MakeIndirectObject(descendant)))
	type0.Set("ToUnicode", core.MakeIndirectObject(toUnicode))

	return &GlyphlessFont{ResourceName: resourceName, Dict: type0}, nil
}

// identityCIDToGIDStream builds the literal byte stream mapping every CID
// 0..65535 to the identical GID, two bytes per entry, big-endian, as
// spec.md §6.2 requires instead of the /Identity name shortcut.
func identityCIDToGIDStream() (*core.PdfObjectStream, error) {
	buf := make([]byte, 65536*2)
	for cid := 0; cid < 65536; cid++ {
		buf[cid*2] = byte(cid >> 8)
		buf[cid*2+1] = byte(cid)
	}
	encoder := core.NewFlateEncoder()
	return core.MakeStream(buf, encoder)
}

// identityToUnicodeStream builds a minimal ToUnicode CMap mapping every
// codepoint to itself, sufficient for copy-paste/search over the invisible
// layer even though no glyphs are ever painted.
func identityToUnicodeStream() (*core.PdfObjectStream, error) {
	var b bytes.Buffer
	b.WriteString("/CIDInit /ProcSet findresource begin\n")
	b.WriteString("12 dict begin\nbegincmap\n")
	b.WriteString("/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def\n")
	b.WriteString("/CMapName /Adobe-Identity-UCS def\n/CMapType 2 def\n")
	b.WriteString("1 begincodespacerange\n<0000> <FFFF>\nendcodespacerange\n")
	b.WriteString("1 beginbfrange\n<0000> <FFFF> <0000>\nendbfrange\n")
	b.WriteString("endcmap\nCMapName currentdict /CMap defineresource pop\nend\nend\n")
	encoder := core.NewFlateEncoder()
	return core.MakeStream(b.Bytes(), encoder)
}
