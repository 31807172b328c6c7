// Package render implements the hOCR-tree-to-PDF-text-layer renderer
// described in spec.md §4.E: one invisible (or, in debug mode, visible)
// BT block per line, with per-word horizontal scaling to match the
// original glyph widths, a baseline-aligned coordinate system, and a
// plausibility filter against misdetected line rotation.
package render

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"unicode"
	"unicode/utf8"

	"github.com/go-text/typesetting/shaping"
	"github.com/sirupsen/logrus"
	"github.com/unidoc/unipdf/v3/contentstream"
	"github.com/unidoc/unipdf/v3/core"
	"github.com/unidoc/unipdf/v3/model"

	"github.com/ocrchestra/ocrchestra-core/internal/config"
	"github.com/ocrchestra/ocrchestra-core/internal/font"
	"github.com/ocrchestra/ocrchestra-core/internal/geometry"
	"github.com/ocrchestra/ocrchestra-core/internal/ocrtree"
)

// maxAspectDeviation bounds how far a line's measured aspect ratio may
// differ from what its claimed textangle implies before the renderer
// suppresses the rotation and treats the line as upright, matching
// _check_aspect_ratio_plausible's sanity check against OCR engines that
// occasionally emit a bogus 90/180/270 textangle for a normal line.
const maxAspectDeviation = 0.3

// glyphlessResourceName is the fixed PDF font resource key every word with
// no covering face is drawn under, regardless of which Manager the
// selector fell back to, so every uncovered word on a page shares one
// glyphless font dictionary rather than minting one per fallback Manager.
const glyphlessResourceName = "GlyphlessFallback"

// Renderer builds one-page PDF text layers from an ocrtree.Element page.
type Renderer struct {
	Fonts *font.MultiManager
	Debug bool
	Log   *logrus.Logger
}

// New constructs a Renderer.
func New(fonts *font.MultiManager, opts config.Options, log *logrus.Logger) *Renderer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Renderer{Fonts: fonts, Debug: opts.Debug, Log: log}
}

// fontUsage accumulates, across every word on a page that was drawn under
// one font resource, the glyph widths and CID-to-Unicode mapping that
// resource's /W array and /ToUnicode CMap need once the whole page is
// known — both are font-dictionary-wide, not something a single word can
// emit in isolation.
type fontUsage struct {
	mgr       *font.Manager // meaningful only when !glyphless
	glyphless bool
	widths    map[uint16]int64 // CID -> width in 1000-unit glyph space
	runes     map[uint16]rune  // CID -> best-effort Unicode codepoint
}

func newFontUsage(mgr *font.Manager, glyphless bool) *fontUsage {
	return &fontUsage{
		mgr:       mgr,
		glyphless: glyphless,
		widths:    make(map[uint16]int64),
		runes:     make(map[uint16]rune),
	}
}

func (u *fontUsage) buildDict() (*core.PdfObjectDictionary, error) {
	if u.glyphless {
		gl, err := font.BuildGlyphlessFont(glyphlessResourceName, glyphlessResourceName)
		if err != nil {
			return nil, fmt.Errorf("render: build glyphless fallback font: %w", err)
		}
		return gl.Dict, nil
	}
	return buildCompositeFontDict(u.mgr, u.widths, u.runes)
}

// RenderPage builds a single-page PDF (MediaBox sized to page.BBox at the
// page's resolution) containing the text layer for page.
func (r *Renderer) RenderPage(page *ocrtree.Element) (*model.PdfPage, error) {
	if page.Tag != ocrtree.TagPage {
		return nil, fmt.Errorf("render: RenderPage requires a TagPage element, got %s", page.Tag)
	}

	widthPt := page.DPI.PxToPt(page.BBox.Width())
	heightPt := page.DPI.PxToPtY(page.BBox.Height())
	if widthPt == 0 {
		widthPt = page.BBox.Width()
	}
	if heightPt == 0 {
		heightPt = page.BBox.Height()
	}

	cc := contentstream.NewContentCreator()
	usage := make(map[core.PdfObjectName]*fontUsage)

	// transform converts hOCR pixel coordinates (Y-down, origin top-left)
	// into PDF point coordinates (Y-up, origin bottom-left).
	transform := func(x, y float64) (float64, float64) {
		return page.DPI.PxToPt(x), heightPt - page.DPI.PxToPtY(y)
	}

	for _, line := range page.Lines() {
		if err := r.renderLine(cc, page.DPI, line, transform, usage); err != nil {
			r.Log.WithError(err).Warn("render: skipping line that failed to render")
		}
	}

	pdfPage := model.NewPdfPage()
	mbox := &model.PdfRectangle{Llx: 0, Lly: 0, Urx: widthPt, Ury: heightPt}
	pdfPage.MediaBox = mbox

	resources := model.NewPdfPageResources()
	for name, u := range usage {
		dict, err := u.buildDict()
		if err != nil {
			return nil, fmt.Errorf("render: build font resource %s: %w", name, err)
		}
		if err := resources.SetFontByName(name, core.MakeIndirectObject(dict)); err != nil {
			return nil, fmt.Errorf("render: set font resource %s: %w", name, err)
		}
	}
	pdfPage.Resources = resources

	if err := pdfPage.SetContentStreams([]string{cc.String()}, core.NewFlateEncoder()); err != nil {
		return nil, fmt.Errorf("render: set content stream: %w", err)
	}
	return pdfPage, nil
}

// renderLine emits exactly one BT..ET block for line, per spec.md §4.E.3
// step 4's "single BT block per line" requirement.
func (r *Renderer) renderLine(
	cc *contentstream.ContentCreator,
	dpi geometry.Resolution,
	line *ocrtree.Element,
	transform func(x, y float64) (float64, float64),
	usage map[core.PdfObjectName]*fontUsage,
) error {
	words := line.Words()
	if len(words) == 0 {
		return nil
	}

	angle := line.TextAngle
	if !r.aspectPlausible(line, angle) {
		r.Log.WithField("angle", angle).Debug("render: suppressing implausible line rotation")
		angle = 0
	}

	// Baseline-relative coordinate system: step 1-3 of the algorithm.
	// Anchor at the line box's lower-left corner in pixel space, transform
	// to PDF points, then rotate by -angle (hOCR angle is clockwise;
	// PDF's cm rotation is counter-clockwise) around that anchor.
	anchorX, anchorY := transform(line.BBox.Left, line.BBox.Bottom)
	var baselineOffset float64
	if line.Baseline != nil {
		baselineOffset = -dpi.PxToPtY(line.Baseline.YAt(0))
	}

	ctm := geometry.Translated(anchorX, anchorY+baselineOffset).Compose(geometry.Rotated(-angle))
	enc := ctm.Encode()

	cc.Add_q()
	cc.Add_cm(enc[0], enc[1], enc[2], enc[3], enc[4], enc[5])
	cc.Add_BT()
	if r.Debug {
		cc.Add_Tr(0)
	} else {
		cc.Add_Tr(3)
	}

	fontSizePx := line.BBox.Height()
	if fontSizePx <= 0 {
		fontSizePx = 10
	}
	fontSize := dpi.PxToPtY(fontSizePx)

	prevTextEnd := 0.0
	for i, w := range words {
		mgr, err := r.Fonts.SelectFontForWord(w.Text, w.Language)
		if err != nil {
			return fmt.Errorf("render: select font for %q: %w", w.Text, err)
		}
		covered := mgr.Covers(w.Text)

		var resName core.PdfObjectName
		if covered {
			resName = core.PdfObjectName(mgr.Name)
		} else {
			resName = core.PdfObjectName(glyphlessResourceName)
		}
		u, ok := usage[resName]
		if !ok {
			u = newFontUsage(mgr, !covered)
			usage[resName] = u
		}

		wordBox := w.BBox
		wordLeftPt, _ := transform(wordBox.Left, wordBox.Top)

		// Append a trailing space to every non-last word and size it (via
		// Tz below) to span exactly to the next word's start, so text
		// extraction recovers "Hello World" instead of "HelloWorld" (the
		// poppler Tz-across-BT/ET workaround, renderer.py:561,671-693).
		// Skip it when both neighboring words are CJK-only: CJK text has
		// no word-separating spaces in the source raster, so a synthetic
		// gap would misalign the selection layer.
		appendSpace := i < len(words)-1 && shouldAppendSpace(w.Text, words[i+1].Text)
		textToDraw := w.Text
		if appendSpace {
			textToDraw += " "
		}

		var naturalWidth float64
		var cidBytes []byte
		if covered {
			dir := font.ShapingDirection(line.Direction, w.Language)
			lang := font.LanguageTag(w.Language)
			shaped, err := mgr.Shape(textToDraw, dir, lang, fontSize)
			if err != nil {
				return fmt.Errorf("render: shape %q: %w", w.Text, err)
			}
			naturalWidth = mgr.ShapedWidth(shaped)
			cidBytes = encodeGlyphCIDs(shaped, []rune(textToDraw), fontSize, u.widths, u.runes)
		} else {
			naturalWidth = float64(utf8.RuneCountInString(textToDraw)) * fontSize * font.GlyphlessCharWidthRatio
			cidBytes = encodeCodepointCIDs(textToDraw, u.widths)
		}

		targetWidth := dpi.PxToPt(wordBox.Width())
		if appendSpace {
			nextLeftPt, _ := transform(words[i+1].BBox.Left, words[i+1].BBox.Top)
			if span := nextLeftPt - wordLeftPt; span > 0 {
				targetWidth = span
			}
		}

		scale := computeTz(naturalWidth, targetWidth)

		if i == 0 {
			dx := wordLeftPt - anchorX
			cc.Add_Tf(resName, fontSize)
			cc.Add_Tz(scale)
			cc.Add_Td(dx, 0)
			prevTextEnd = dx
		} else {
			dx := wordLeftPt - anchorX - prevTextEnd
			if !isCJKOnly(w.Text) && dx < 0 {
				dx = 0
			}
			cc.Add_Tf(resName, fontSize)
			cc.Add_Tz(scale)
			cc.Add_Td(dx, 0)
			prevTextEnd += dx
		}
		cc.Add_Tj(*core.MakeString(string(cidBytes)))
	}

	cc.Add_ET()
	cc.Add_Q()
	return nil
}

// aspectPlausible implements _check_aspect_ratio_plausible: a claimed
// 90/270 rotation on a line whose measured bounding-box aspect ratio still
// looks landscape (width > height) is very likely a misdetection, and
// vice versa for 0/180 claims on a portrait-shaped box.
func (r *Renderer) aspectPlausible(line *ocrtree.Element, angle float64) bool {
	norm := math.Mod(angle, 360)
	if norm < 0 {
		norm += 360
	}
	ar := line.BBox.AspectRatio()
	if ar == 0 {
		return true
	}
	rotated := norm > 45 && norm < 135 || norm > 225 && norm < 315
	landscape := ar > 1.0+maxAspectDeviation
	portrait := ar < 1.0-maxAspectDeviation
	if rotated && landscape {
		return false
	}
	if !rotated && portrait && ar < 0.3 {
		return false
	}
	return true
}

// shouldAppendSpace reports whether a trailing space belongs between
// current and next: always, unless both are CJK-only, since CJK text has
// no word-separating spaces in the source raster.
func shouldAppendSpace(current, next string) bool {
	return !(isCJKOnly(current) && isCJKOnly(next))
}

// computeTz returns the Tz horizontal-scale percentage that stretches or
// compresses naturalWidth to exactly targetWidth. Degenerate inputs (a
// zero/negative natural width, or a zero/negative/non-finite result) fall
// back to 100 (no scaling); any other ratio is returned as is, without an
// upper or lower bound.
func computeTz(naturalWidth, targetWidth float64) float64 {
	if naturalWidth <= 0 {
		return 100.0
	}
	scale := (targetWidth / naturalWidth) * 100.0
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return 100.0
	}
	return scale
}

// isCJKOnly reports whether every rune in s falls in a CJK Unicode block,
// in which case inter-word spacing is never inserted (CJK text has no
// word-separating spaces in the original raster, so a synthetic gap would
// misalign the selection layer), mirroring _is_cjk_only's exact ranges.
func isCJKOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isCJKRune(r) {
			return false
		}
	}
	return true
}

func isCJKRune(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF: // CJK Unified Ideographs
		return true
	case r >= 0x3040 && r <= 0x30FF: // Hiragana + Katakana
		return true
	case r >= 0xAC00 && r <= 0xD7A3: // Hangul Syllables
		return true
	case r >= 0x3400 && r <= 0x4DBF: // CJK Extension A
		return true
	case r >= 0xF900 && r <= 0xFAFF: // CJK Compatibility Ideographs
		return true
	default:
		return unicode.Is(unicode.Han, r)
	}
}

// encodeGlyphCIDs walks a shaped run's glyphs, emitting 2-byte big-endian
// CIDs for the Tj operand (CID == GID, matching the composite font's
// Identity CIDToGIDMap) and recording each CID's width (in 1000-unit glyph
// space, independent of fontSize) and best-effort source rune into widths
// and runes for the font resource's /W array and /ToUnicode CMap.
//
// A glyph's ClusterIndex addresses back into runesIn; for ligatures that
// merge several runes into one glyph this picks only the cluster's first
// rune, a standard ToUnicode simplification (readers recover the rest from
// surrounding context, not from this map).
func encodeGlyphCIDs(out *shaping.Output, runesIn []rune, fontSize float64, widths map[uint16]int64, runes map[uint16]rune) []byte {
	var buf bytes.Buffer
	for _, g := range out.Glyphs {
		cid := uint16(g.GlyphID)
		buf.WriteByte(byte(cid >> 8))
		buf.WriteByte(byte(cid))
		if fontSize > 0 {
			widths[cid] = int64(math.Round(float64(g.XAdvance) / 64 / fontSize * 1000))
		}
		if _, ok := runes[cid]; !ok && g.ClusterIndex >= 0 && g.ClusterIndex < len(runesIn) {
			runes[cid] = runesIn[g.ClusterIndex]
		}
	}
	return buf.Bytes()
}

// encodeCodepointCIDs is the glyphless-fallback encoding: since the
// glyphless font's ToUnicode map and CIDToGIDMap are both Identity (see
// font.BuildGlyphlessFont), CID == Unicode codepoint is simplest and
// requires no shaping at all. Codepoints outside the Basic Multilingual
// Plane are truncated to 16 bits, matching the glyphless font's <0000>
// <FFFF> codespace.
func encodeCodepointCIDs(text string, widths map[uint16]int64) []byte {
	var buf bytes.Buffer
	for _, r := range text {
		cid := uint16(r)
		buf.WriteByte(byte(cid >> 8))
		buf.WriteByte(byte(cid))
		widths[cid] = int64(1000.0 * font.GlyphlessCharWidthRatio)
	}
	return buf.Bytes()
}

// buildCompositeFontDict builds a real CIDFontType2 composite font for
// mgr: a Type0/Identity-H font over a descendant embedding mgr's raw font
// program as /FontFile2, with a /W array from widths and a /ToUnicode CMap
// from runes, so the text layer is both renderable and extractable by
// conformant readers.
func buildCompositeFontDict(mgr *font.Manager, widths map[uint16]int64, runes map[uint16]rune) (*core.PdfObjectDictionary, error) {
	fontFile, err := core.MakeStream(mgr.Data, core.NewFlateEncoder())
	if err != nil {
		return nil, fmt.Errorf("embed font program for %s: %w", mgr.Name, err)
	}

	descriptor := core.MakeDict()
	descriptor.Set("Type", core.MakeName("FontDescriptor"))
	descriptor.Set("FontName", core.MakeName(mgr.Name))
	descriptor.Set("Flags", core.MakeInteger(4))
	descriptor.Set("FontBBox", core.MakeArrayFromIntegers([]int{0, 0, 1000, 1000}))
	descriptor.Set("ItalicAngle", core.MakeInteger(0))
	descriptor.Set("Ascent", core.MakeInteger(1000))
	descriptor.Set("Descent", core.MakeInteger(0))
	descriptor.Set("CapHeight", core.MakeInteger(1000))
	descriptor.Set("StemV", core.MakeInteger(80))
	descriptor.Set("FontFile2", core.MakeIndirectObject(fontFile))

	cidSystemInfo := core.MakeDict()
	cidSystemInfo.Set("Registry", core.MakeString("Adobe"))
	cidSystemInfo.Set("Ordering", core.MakeString("Identity"))
	cidSystemInfo.Set("Supplement", core.MakeInteger(0))

	descendant := core.MakeDict()
	descendant.Set("Type", core.MakeName("Font"))
	descendant.Set("Subtype", core.MakeName("CIDFontType2"))
	descendant.Set("BaseFont", core.MakeName(mgr.Name))
	descendant.Set("CIDSystemInfo", cidSystemInfo)
	descendant.Set("FontDescriptor", core.MakeIndirectObject(descriptor))
	descendant.Set("DW", core.MakeInteger(1000))
	descendant.Set("CIDToGIDMap", core.MakeName("Identity"))
	if w := buildWArray(widths); w != nil {
		descendant.Set("W", w)
	}

	toUnicode, err := buildToUnicodeCMap(runes)
	if err != nil {
		return nil, fmt.Errorf("build ToUnicode cmap for %s: %w", mgr.Name, err)
	}

	d := core.MakeDict()
	d.Set("Type", core.MakeName("Font"))
	d.Set("Subtype", core.MakeName("Type0"))
	d.Set("BaseFont", core.MakeName(mgr.Name))
	d.Set("Encoding", core.MakeName("Identity-H"))
	d.Set("DescendantFonts", core.MakeArray(core.MakeIndirectObject(descendant)))
	d.Set("ToUnicode", core.MakeIndirectObject(toUnicode))
	return d, nil
}

// buildWArray renders widths (CID -> 1000-unit glyph width) as a PDF /W
// array of singleton "c [w]" entries, sorted by CID for determinism.
func buildWArray(widths map[uint16]int64) *core.PdfObjectArray {
	if len(widths) == 0 {
		return nil
	}
	cids := sortedCIDs(widths)
	elems := make([]core.PdfObject, 0, len(cids)*2)
	for _, cid := range cids {
		elems = append(elems, core.MakeInteger(int64(cid)), core.MakeArray(core.MakeInteger(widths[cid])))
	}
	return core.MakeArray(elems...)
}

// buildToUnicodeCMap renders runes (CID -> Unicode codepoint) as a minimal
// bfchar ToUnicode CMap, chunked at 100 entries per begin/end block as the
// CMap format requires.
func buildToUnicodeCMap(runes map[uint16]rune) (*core.PdfObjectStream, error) {
	cids := sortedCIDRunes(runes)

	var b bytes.Buffer
	b.WriteString("/CIDInit /ProcSet findresource begin\n12 dict begin\nbegincmap\n")
	b.WriteString("/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def\n")
	b.WriteString("/CMapName /Adobe-Identity-UCS def\n/CMapType 2 def\n")
	b.WriteString("1 begincodespacerange\n<0000> <FFFF>\nendcodespacerange\n")
	const chunk = 100
	for start := 0; start < len(cids); start += chunk {
		end := start + chunk
		if end > len(cids) {
			end = len(cids)
		}
		fmt.Fprintf(&b, "%d beginbfchar\n", end-start)
		for _, cid := range cids[start:end] {
			fmt.Fprintf(&b, "<%04X> <%04X>\n", cid, runes[cid])
		}
		b.WriteString("endbfchar\n")
	}
	b.WriteString("endcmap\nCMapName currentdict /CMap defineresource pop\nend\nend\n")
	return core.MakeStream(b.Bytes(), core.NewFlateEncoder())
}

func sortedCIDs(m map[uint16]int64) []uint16 {
	out := make([]uint16, 0, len(m))
	for cid := range m {
		out = append(out, cid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedCIDRunes(m map[uint16]rune) []uint16 {
	out := make([]uint16, 0, len(m))
	for cid := range m {
		out = append(out, cid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
