// Package engine defines the OcrEngine and Rasterizer capability
// interfaces collaborators implement (spec.md §6.3/§6.4), plus null
// implementations usable in tests and in text-layer-only runs.
package engine

import (
	"context"
	"image"

	"github.com/ocrchestra/ocrchestra-core/internal/ocrtree"
)

// OcrEngine recognizes text on a page image. Implementations may support
// either or both of hOCR-bytes output and direct-tree output; callers
// check SupportsGenerateOCR before calling GenerateOCR, per the single-
// interface-with-explicit-variants design note in spec.md §9.
type OcrEngine interface {
	// RecognizeHOCR returns raw hOCR bytes for one page image.
	RecognizeHOCR(ctx context.Context, pageImage image.Image, lang string) ([]byte, error)
	// SupportsGenerateOCR reports whether GenerateOCR can be called.
	SupportsGenerateOCR() bool
	// GenerateOCR returns an ocrtree.Element (TagPage) directly, skipping
	// the hOCR round trip, for engines whose native output already has
	// richer structure than hOCR can carry.
	GenerateOCR(ctx context.Context, pageImage image.Image, lang string) (*ocrtree.Element, error)
}

// Rasterizer renders one page of a source document to an image at a given
// resolution. No concrete implementation ships here: Ghostscript/pdfium
// bindings are out of scope (spec.md §1's Non-goals).
type Rasterizer interface {
	Rasterize(ctx context.Context, pageNumber int, dpi float64) (image.Image, error)
}

// NullEngine performs no recognition; it is useful for grafting a
// pre-existing hOCR sidecar (the common case: an external OCR binary
// already produced hOCR, and this engine is never actually asked to
// recognize anything) and for tests.
type NullEngine struct{}

func (NullEngine) RecognizeHOCR(context.Context, image.Image, string) ([]byte, error) {
	return nil, errNullEngine
}

func (NullEngine) SupportsGenerateOCR() bool { return false }

func (NullEngine) GenerateOCR(context.Context, image.Image, string) (*ocrtree.Element, error) {
	return nil, errNullEngine
}

var errNullEngine = nullEngineError{}

type nullEngineError struct{}

func (nullEngineError) Error() string {
	return "engine: NullEngine performs no recognition; supply hOCR directly"
}

// NullRasterizer returns a blank page-sized image, for tests that need a
// Rasterizer but never inspect pixel content.
type NullRasterizer struct {
	Width, Height int
}

func (r NullRasterizer) Rasterize(context.Context, int, float64) (image.Image, error) {
	w, h := r.Width, r.Height
	if w == 0 {
		w = 100
	}
	if h == 0 {
		h = 100
	}
	return image.NewGray(image.Rect(0, 0, w, h)), nil
}
