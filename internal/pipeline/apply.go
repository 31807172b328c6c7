package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"codeberg.org/go-pdf/fpdf"
	"github.com/sirupsen/logrus"

	"github.com/ocrchestra/ocrchestra-core/internal/config"
	"github.com/ocrchestra/ocrchestra-core/internal/font"
	"github.com/ocrchestra/ocrchestra-core/internal/graft"
	"github.com/ocrchestra/ocrchestra-core/internal/ocrtree"
	"github.com/ocrchestra/ocrchestra-core/internal/progress"
	"github.com/ocrchestra/ocrchestra-core/internal/werrors"
)

// ApplyOCR is the library entry point cmd/ocrchestra calls for the
// "existing PDF" path: mirrors the teacher's pkg/pdfocr.ApplyOCR, but
// delegates the actual page work to Runner.Run instead of fpdf's
// page-by-page drawing, since pdfData already has real content to graft
// onto (see internal/render's decision note on why fpdf cannot do that
// part of the job).
func ApplyOCR(
	ctx context.Context,
	pdfData []byte,
	pages []*ocrtree.Element,
	opts config.Options,
	fonts *font.MultiManager,
	log *logrus.Logger,
	bar progress.ProgressBar,
) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(pdfData) == 0 {
		return nil, &werrors.InputFileError{Path: "<input>", Reason: "empty PDF data"}
	}
	if len(pages) == 0 {
		return nil, &werrors.HocrParseError{Path: "<hocr>", Reason: "no pages parsed"}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	hasOCR, warnings, err := graft.HasExistingOCR(pdfData, opts.LayerName)
	if err != nil {
		log.WithError(err).Warn("existing OCR layer detection failed; proceeding without it")
	}
	for _, w := range warnings {
		log.Warn(w)
	}
	if hasOCR {
		if opts.Strict && !opts.Force {
			return nil, &werrors.PriorOcrFoundError{Path: "<input>"}
		}
		if opts.Force {
			log.Warn("force mode enabled: proceeding despite existing OCR layer (may duplicate text)")
		} else {
			log.Warn("input already has an OCR text layer; proceeding (use Strict to prevent this)")
		}
	}

	grafter, err := graft.New(pdfData, opts.WorkDir, log)
	if err != nil {
		return nil, fmt.Errorf("pipeline: open base pdf: %w", err)
	}

	jobs := make([]Job, 0, len(pages))
	for i, page := range pages {
		if i >= grafter.PageCount() {
			break
		}
		jobs = append(jobs, Job{
			PageNumber:      i,
			Page:            page,
			HasExistingText: hasOCR && !opts.RedoOCR,
		})
	}

	runner := New(opts, fonts, log, bar)
	return runner.Run(ctx, grafter, jobs)
}

// AssembleWithOCR builds a brand-new PDF from page images and grafts an
// OCR text layer onto it, mirroring the teacher's AssembleWithOCR. Unlike
// the teacher, which draws text straight onto the fpdf canvas it is
// already building, this first lays the images down into a flat base
// document with fpdf (the one job fpdf is actually suited for here, see
// DESIGN.md), then routes that base document through the same
// render+graft path ApplyOCR uses, so both entry points share one text
// layout and grafting implementation.
func AssembleWithOCR(
	ctx context.Context,
	pages []*ocrtree.Element,
	imagesData [][]byte,
	opts config.Options,
	fonts *font.MultiManager,
	log *logrus.Logger,
	bar progress.ProgressBar,
) ([]byte, error) {
	if len(pages) == 0 {
		return nil, &werrors.HocrParseError{Path: "<hocr>", Reason: "no pages parsed"}
	}
	if len(imagesData) < len(pages) {
		return nil, &werrors.InputFileError{Path: "<images>", Reason: fmt.Sprintf("not enough images (%d) for pages (%d)", len(imagesData), len(pages))}
	}

	baseline, err := buildImageBasePDF(pages, imagesData)
	if err != nil {
		return nil, fmt.Errorf("pipeline: assemble base pdf from images: %w", err)
	}
	return ApplyOCR(ctx, baseline, pages, opts, fonts, log, bar)
}

// buildImageBasePDF lays one image per page into a flat PDF sized to each
// hOCR page's own bounding box, in points, mirroring createPDFFromImage's
// per-page AddPageFormat/ImageOptions calls.
func buildImageBasePDF(pages []*ocrtree.Element, imagesData [][]byte) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)

	for i, page := range pages {
		w, h := page.BBox.Right, page.BBox.Bottom
		if w <= 0 || h <= 0 {
			w, h = 612, 792 // US Letter fallback in points
		}
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})

		imageType, err := detectImageType(imagesData[i])
		if err != nil {
			return nil, fmt.Errorf("detect image type for page %d: %w", i+1, err)
		}
		imageName := fmt.Sprintf("img%d", i)
		opts := fpdf.ImageOptions{ReadDpi: false, ImageType: imageType}
		pdf.RegisterImageOptionsReader(imageName, opts, bytes.NewReader(imagesData[i]))
		pdf.ImageOptions(imageName, 0, 0, w, h, false, opts, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("fpdf output: %w", err)
	}
	return buf.Bytes(), nil
}

func detectImageType(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image config: %w", err)
	}
	return strings.ToUpper(format), nil
}
