// Package graft implements Component F: inserting a rendered text-layer
// page into an existing PDF page ("grafting"), tracking the working
// document across many pages, and periodically checkpointing it to bound
// memory, all mirroring _graft.py's OcrGrafter.
package graft

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/unidoc/unipdf/v3/contentstream"
	"github.com/unidoc/unipdf/v3/core"
	"github.com/unidoc/unipdf/v3/model"

	"github.com/ocrchestra/ocrchestra-core/internal/font"
	"github.com/ocrchestra/ocrchestra-core/internal/geometry"
)

// glyphlessResourceKey is the page-0 font resource name the working
// document's mandatory glyphless fallback is kept under, independent of
// whatever font key a rendered text layer itself used.
const glyphlessResourceKey = core.PdfObjectName("GlyphlessFallback")

// MaxReplacePages bounds how many page emplacements happen before the
// working document is saved and reloaded, the same cadence _graft.py uses
// to keep memory bounded on very large documents.
const MaxReplacePages = 100

// PageSpec is everything Grafter needs to graft one page: the rendered
// text-layer page (may be nil if no OCR text was produced for this page)
// and the rotation correction autorotate decided on, in degrees clockwise.
type PageSpec struct {
	PageNumber          int // zero-based
	TextLayer           *model.PdfPage
	ContentRotation     int
	AutorotateCorrection int
	StripOldText        bool
}

// Grafter owns the working document across a whole run and grafts pages
// into it one at a time, in ascending page order, from a single goroutine
// (see internal/pipeline, which is the only caller).
type Grafter struct {
	base    *model.PdfReader
	baseSrc io.ReadSeeker

	font    *core.PdfObjectDictionary
	fontKey core.PdfObjectName

	glyphlessFont *core.PdfObjectDictionary

	pages        []*model.PdfPage
	emplacements int
	log          *logrus.Logger

	tmpDir string
}

// New opens the base document and prepares a Grafter for it.
func New(pdfData []byte, tmpDir string, log *logrus.Logger) (*Grafter, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	src := bytes.NewReader(pdfData)
	reader, err := model.NewPdfReader(src)
	if err != nil {
		return nil, fmt.Errorf("graft: open base pdf: %w", err)
	}
	n, err := reader.GetNumPages()
	if err != nil {
		return nil, fmt.Errorf("graft: read page count: %w", err)
	}
	pages := make([]*model.PdfPage, n)
	for i := 0; i < n; i++ {
		p, err := reader.GetPage(i + 1)
		if err != nil {
			return nil, fmt.Errorf("graft: read page %d: %w", i+1, err)
		}
		pages[i] = p
	}

	glyphless, err := font.BuildGlyphlessFont(string(glyphlessResourceKey), string(glyphlessResourceKey))
	if err != nil {
		return nil, fmt.Errorf("graft: build glyphless fallback font: %w", err)
	}

	g := &Grafter{base: reader, baseSrc: src, pages: pages, log: log, tmpDir: tmpDir, glyphlessFont: glyphless.Dict}
	if err := g.attachGlyphlessFont(); err != nil {
		return nil, fmt.Errorf("graft: attach glyphless fallback font: %w", err)
	}
	return g, nil
}

// attachGlyphlessFont registers the working document's mandatory glyphless
// fallback under page 0's resources, per spec.md §4.F.2 step 5: the font is
// otherwise referenced by nothing the writer walks from the page tree, so
// without this it is silently dropped on the next save/reload instead of
// surviving for pages that need it later in the run.
func (g *Grafter) attachGlyphlessFont() error {
	if len(g.pages) == 0 {
		return nil
	}
	page0 := g.pages[0]
	if page0.Resources == nil {
		page0.Resources = model.NewPdfPageResources()
	}
	return page0.Resources.SetFontByName(glyphlessResourceKey, core.MakeIndirectObject(g.glyphlessFont))
}

// GraftPage applies spec to the base document's page spec.PageNumber,
// following _graft.py's graft_page: align text-layer rotation against the
// page's content rotation, strip stale invisible text if asked, prepend
// the new text layer as a Form XObject, and fix up the page's own
// /Rotate once text and content agree.
func (g *Grafter) GraftPage(spec PageSpec) error {
	page := g.pages[spec.PageNumber]

	textMisaligned := (spec.AutorotateCorrection - spec.ContentRotation) % 360
	if textMisaligned < 0 {
		textMisaligned += 360
	}

	if spec.TextLayer != nil {
		if g.font == nil {
			font, key, err := findFont(spec.TextLayer)
			if err != nil {
				g.log.WithError(err).Debug("graft: no font found in rendered text layer")
			} else {
				g.font, g.fontKey = font, key
			}
		}
		if g.font != nil {
			if err := g.graftTextLayer(page, spec.TextLayer, g.font, g.fontKey, textMisaligned, spec.StripOldText); err != nil {
				return fmt.Errorf("graft: page %d: %w", spec.PageNumber, err)
			}
		}
	}

	pageRotation := (spec.ContentRotation - spec.AutorotateCorrection) % 360
	if pageRotation < 0 {
		pageRotation += 360
	}
	rot := int64(pageRotation)
	page.Rotate = &rot

	g.emplacements++
	if g.emplacements%MaxReplacePages == 0 {
		if err := g.saveAndReload(); err != nil {
			return fmt.Errorf("graft: checkpoint: %w", err)
		}
	}
	return nil
}

// findFont mirrors _find_font: it tries the keys f-0-0 and F1 first, then
// takes the first font dictionary listed in the text page's /Font resources
// (internal/render names its resources after the selected face or
// GlyphlessFallback).
func findFont(textPage *model.PdfPage) (*core.PdfObjectDictionary, core.PdfObjectName, error) {
	if textPage.Resources == nil {
		return nil, "", fmt.Errorf("text page has no resources")
	}
	for _, key := range []core.PdfObjectName{"f-0-0", "F1"} {
		obj, ok := textPage.Resources.GetFontByName(key)
		if ok && obj != nil {
			dict, ok := core.GetDict(obj)
			if ok {
				return dict, key, nil
			}
		}
	}
	// Fall back to whatever single font is present, if any.
	if fonts, ok := core.GetDict(textPage.Resources.Font); ok {
		for _, key := range fonts.Keys() {
			if dict, ok := core.GetDict(fonts.Get(key)); ok {
				return dict, key, nil
			}
		}
	}
	return nil, "", fmt.Errorf("no recognizable font resource key")
}

// graftTextLayer mirrors _graft_text_layer's matrix composition: translate
// the text page to be centered at the origin, rotate it to align with the
// base page's content, rescale for any DPI rounding drift, then move it
// back out to the base page's mediabox corner.
func (g *Grafter) graftTextLayer(
	basePage *model.PdfPage,
	textPage *model.PdfPage,
	font *core.PdfObjectDictionary,
	fontKey core.PdfObjectName,
	rotationDeg int,
	stripOld bool,
) error {
	textBox, err := textPage.GetMediaBox()
	if err != nil {
		return fmt.Errorf("text page media box: %w", err)
	}
	baseBox, err := basePage.GetMediaBox()
	if err != nil {
		return fmt.Errorf("base page media box: %w", err)
	}
	wt, ht := textBox.Urx-textBox.Llx, textBox.Ury-textBox.Lly
	wp, hp := baseBox.Urx-baseBox.Llx, baseBox.Ury-baseBox.Lly

	translate := geometry.Translated(-wt/2, -ht/2)
	untranslate := geometry.Translated(wp/2, hp/2)
	corner := geometry.Translated(baseBox.Llx, baseBox.Lly)

	ccwAngle := -float64(rotationDeg)
	for ccwAngle < 0 {
		ccwAngle += 360
	}
	rotate := geometry.Rotated(ccwAngle)

	scaleWT, scaleHT := wt, ht
	if rotationDeg == 90 || rotationDeg == 270 {
		scaleWT, scaleHT = ht, wt
	}
	scaleX, scaleY := 1.0, 1.0
	if scaleWT != 0 {
		scaleX = wp / scaleWT
	}
	if scaleHT != 0 {
		scaleY = hp / scaleHT
	}
	scale := geometry.Scaled(scaleX, scaleY)

	ctm := translate.Compose(rotate).Compose(scale).Compose(untranslate).Compose(corner)

	textContent, err := textPage.GetAllContentStreams()
	if err != nil {
		return fmt.Errorf("read text content stream: %w", err)
	}
	if textContent == "" {
		return nil
	}

	xobj := model.NewXObjectForm()
	xobj.FormType = core.MakeInteger(1)
	xobj.BBox = core.MakeArrayFromFloats([]float64{textBox.Llx, textBox.Lly, textBox.Urx, textBox.Ury})
	if err := xobj.SetContentStream([]byte(textContent), core.NewFlateEncoder()); err != nil {
		return fmt.Errorf("set xobject content: %w", err)
	}
	xobjResources := model.NewPdfPageResources()
	if font != nil {
		_ = xobjResources.SetFontByName(fontKey, core.MakeIndirectObject(font))
	}
	xobj.Resources = xobjResources

	if basePage.Resources == nil {
		basePage.Resources = model.NewPdfPageResources()
	}
	xobjName := core.PdfObjectName(uuid.NewString())
	if err := basePage.Resources.SetXObjectFormByName(xobjName, xobj); err != nil {
		return fmt.Errorf("attach xobject to base page: %w", err)
	}
	if font != nil {
		_ = basePage.Resources.SetFontByName(fontKey, core.MakeIndirectObject(font))
	}

	enc := ctm.Encode()
	drawCmd := contentstream.NewContentCreator()
	drawCmd.Add_q()
	drawCmd.Add_cm(enc[0], enc[1], enc[2], enc[3], enc[4], enc[5])
	drawCmd.Add_Do(xobjName)
	drawCmd.Add_Q()

	if stripOld {
		if err := StripInvisibleText(basePage); err != nil {
			return fmt.Errorf("strip invisible text: %w", err)
		}
	}

	return prependContentStream(basePage, drawCmd.Bytes())
}

// prependContentStream puts newContent ahead of the page's existing
// content streams, preserving everything already drawn, matching
// page_contents_add(..., prepend=True).
func prependContentStream(page *model.PdfPage, newContent []byte) error {
	existing, err := page.GetAllContentStreams()
	if err != nil {
		return err
	}
	combined := append(append([]byte{}, newContent...), []byte("\n")...)
	combined = append(combined, []byte(existing)...)
	return page.SetContentStreams([]string{string(combined)}, core.NewFlateEncoder())
}

// saveAndReload mirrors save_and_reload: write the working document out,
// close it, and reopen from the fresh copy to release memory held by the
// in-memory object graph of everything grafted so far.
func (g *Grafter) saveAndReload() error {
	if err := g.attachGlyphlessFont(); err != nil {
		return fmt.Errorf("attach glyphless fallback font before checkpoint: %w", err)
	}
	writer := model.NewPdfWriter()
	for _, p := range g.pages {
		if err := writer.AddPage(p); err != nil {
			return fmt.Errorf("add page to checkpoint writer: %w", err)
		}
	}
	tmp, err := os.CreateTemp(g.tmpDir, "graft-checkpoint-*.pdf")
	if err != nil {
		return fmt.Errorf("create checkpoint file: %w", err)
	}
	defer tmp.Close()
	if err := writer.Write(tmp); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return err
	}
	data, err := io.ReadAll(tmp)
	if err != nil {
		return err
	}
	os.Remove(tmp.Name())

	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("reopen checkpoint: %w", err)
	}
	n, err := reader.GetNumPages()
	if err != nil {
		return err
	}
	pages := make([]*model.PdfPage, n)
	for i := 0; i < n; i++ {
		p, err := reader.GetPage(i + 1)
		if err != nil {
			return err
		}
		pages[i] = p
	}
	g.base = reader
	g.pages = pages
	g.font, g.fontKey = nil, ""
	return nil
}

// Finalize writes the finished document and returns its bytes.
func (g *Grafter) Finalize() ([]byte, error) {
	if err := g.attachGlyphlessFont(); err != nil {
		return nil, fmt.Errorf("graft: attach glyphless fallback font before final save: %w", err)
	}
	writer := model.NewPdfWriter()
	for _, p := range g.pages {
		if err := writer.AddPage(p); err != nil {
			return nil, fmt.Errorf("graft: finalize add page: %w", err)
		}
	}
	var buf bytes.Buffer
	if err := writer.Write(&buf); err != nil {
		return nil, fmt.Errorf("graft: finalize write: %w", err)
	}
	return buf.Bytes(), nil
}

// PageCount returns the number of pages in the working document.
func (g *Grafter) PageCount() int { return len(g.pages) }
