package engine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"

	"codeberg.org/go-pdf/fpdf"
	"codeberg.org/go-pdf/fpdf/contrib/gofpdi"
	"github.com/unidoc/unipdf/v3/model"
)

// BuildRasterPagePDF wraps a single rasterized page image in a one-page PDF
// sized to the image's own pixel dimensions at dpi, standing in for the
// "image-as-pdf" fixture step a real Rasterizer's output goes through
// before it reaches internal/graft (spec.md §4.F.2 step 1; see the
// teacher's createPDFFromImage, which does the same AddPageFormat +
// RegisterImageOptionsReader + ImageOptions sequence for a real document
// instead of a test fixture).
func BuildRasterPagePDF(img image.Image, dpi float64) ([]byte, error) {
	if dpi <= 0 {
		dpi = 300
	}
	bounds := img.Bounds()
	wPt := float64(bounds.Dx()) / dpi * 72
	hPt := float64(bounds.Dy()) / dpi * 72

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: wPt, Ht: hPt})

	var imgBuf bytes.Buffer
	if err := png.Encode(&imgBuf, img); err != nil {
		return nil, fmt.Errorf("engine: encode fixture page image: %w", err)
	}
	opts := fpdf.ImageOptions{ReadDpi: false, ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("page", opts, bytes.NewReader(imgBuf.Bytes()))
	pdf.ImageOptions("page", 0, 0, wPt, hPt, false, opts, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("engine: output fixture pdf: %w", err)
	}
	return out.Bytes(), nil
}

// CombineRasterPagePDFs imports every one-page fixture in pages (each
// normally produced by BuildRasterPagePDF) as a template page into a single
// working document, the same role gofpdi.Importer plays in the teacher's
// modifyExistingPDF when it imports pages from a real source PDF rather
// than a freshly rasterized one.
func CombineRasterPagePDFs(pages [][]byte) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "", "")
	importer := gofpdi.NewImporter()

	for i, pageData := range pages {
		rs := io.ReadSeeker(bytes.NewReader(pageData))
		box, err := mediaBoxPoints(pageData)
		if err != nil {
			return nil, fmt.Errorf("engine: read fixture page %d media box: %w", i+1, err)
		}
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: box.w, Ht: box.h})
		tpl := importer.ImportPageFromStream(pdf, &rs, 1, "/MediaBox")
		importer.UseImportedTemplate(pdf, tpl, 0, 0, box.w, 0)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("engine: output combined fixture pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type pointsBox struct{ w, h float64 }

func mediaBoxPoints(pdfData []byte) (pointsBox, error) {
	reader, err := model.NewPdfReader(bytes.NewReader(pdfData))
	if err != nil {
		return pointsBox{}, err
	}
	page, err := reader.GetPage(1)
	if err != nil {
		return pointsBox{}, err
	}
	box, err := page.GetMediaBox()
	if err != nil {
		return pointsBox{}, err
	}
	return pointsBox{w: box.Urx - box.Llx, h: box.Ury - box.Lly}, nil
}

// RasterStub is a Rasterizer implementation backed by a real multi-page PDF
// it reports page dimensions from, for tests that need a Rasterizer
// collaborator without a real rendering backend (Ghostscript/pdfium
// bindings are out of scope, spec.md §1). It returns a blank image sized to
// the requested dpi rather than real pixel content.
type RasterStub struct {
	src []byte
}

// NewRasterStub wraps pdfData for page-size lookups.
func NewRasterStub(pdfData []byte) *RasterStub {
	return &RasterStub{src: pdfData}
}

func (r *RasterStub) Rasterize(_ context.Context, pageNumber int, dpi float64) (image.Image, error) {
	if dpi <= 0 {
		dpi = 300
	}
	reader, err := model.NewPdfReader(bytes.NewReader(r.src))
	if err != nil {
		return nil, fmt.Errorf("engine: RasterStub open: %w", err)
	}
	page, err := reader.GetPage(pageNumber + 1)
	if err != nil {
		return nil, fmt.Errorf("engine: RasterStub page %d: %w", pageNumber, err)
	}
	box, err := page.GetMediaBox()
	if err != nil {
		return nil, fmt.Errorf("engine: RasterStub media box: %w", err)
	}
	wPx := int((box.Urx - box.Llx) / 72 * dpi)
	hPx := int((box.Ury - box.Lly) / 72 * dpi)
	if wPx <= 0 {
		wPx = 1
	}
	if hPx <= 0 {
		hPx = 1
	}
	return image.NewGray(image.Rect(0, 0, wPx, hPx)), nil
}

var _ Rasterizer = (*RasterStub)(nil)
