// ocrchestra is a command-line tool for creating searchable PDFs with OCR
// text layers from hOCR data.
//
// This tool can either enhance an existing PDF with an OCR text layer or
// assemble a new PDF from a directory of page images. It reads hOCR data
// to position text accurately at the location of each recognized word.
//
// Usage:
//
//	ocrchestra -hocr document.hocr [options]
//	ocrchestra -pdf document.pdf -check-ocr
//
// Required flags:
//
//	-hocr string      Path to an hOCR file (required except for -check-ocr)
//	-output string    Output PDF path (required except for -check-ocr)
//
// Input options (one required):
//
//	-pdf string       Path to an existing PDF to enhance with OCR
//	-image-dir string Directory of page images to assemble a new PDF from
//
// Processing options:
//
//	-debug          Render the text layer visibly instead of invisibly (no bounding boxes)
//	-force          Reapply OCR even if a layer already exists
//	-strict         Fail instead of warning when OCR already exists
//	-redo-ocr       Strip any existing text layer before grafting a new one
//	-jobs int       Number of page workers (default: 4)
//	-layer-name     Optional content group name the existing-OCR check looks for
//	-font-dir       Directory BuiltinFontProvider loads faces from
//	-overwrite      Overwrite the output file if it exists
//	-check-ocr      Check whether the PDF already has an OCR layer and exit
//
// Exit codes follow internal/werrors.ExitCode.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ocrchestra/ocrchestra-core/internal/config"
	"github.com/ocrchestra/ocrchestra-core/internal/font"
	"github.com/ocrchestra/ocrchestra-core/internal/graft"
	"github.com/ocrchestra/ocrchestra-core/internal/hocr"
	"github.com/ocrchestra/ocrchestra-core/internal/pipeline"
	"github.com/ocrchestra/ocrchestra-core/internal/progress"
	"github.com/ocrchestra/ocrchestra-core/internal/werrors"
)

// warningWriter mirrors the teacher's cmd/pdfocr warningWriter: a
// logrus.Logger output target that also remembers whether anything logged
// so far looked like a warning, so main can pick an exit code after the
// run finishes without re-parsing logrus's own records.
type warningWriter struct {
	buf    bytes.Buffer
	target io.Writer
}

func newWarningWriter(target io.Writer) *warningWriter {
	return &warningWriter{target: target}
}

func (w *warningWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	return w.target.Write(p)
}

func (w *warningWriter) HasWarnings() bool {
	return strings.Contains(w.buf.String(), "level=warning")
}

func (w *warningWriter) HasOCRWarning() bool {
	return strings.Contains(w.buf.String(), "already has an OCR text layer") ||
		strings.Contains(w.buf.String(), "already has OCR")
}

func main() {
	hocrPath := flag.String("hocr", "", "Path to an hOCR file")
	imageDirPath := flag.String("image-dir", "", "Directory containing page images")
	pdfPath := flag.String("pdf", "", "Path to an existing PDF to add an OCR layer to")
	outputPath := flag.String("output", "", "Output PDF path")
	debug := flag.Bool("debug", false, "Render a visible debug text layer instead of an invisible one")
	force := flag.Bool("force", false, "Reapply OCR even if a layer already exists")
	strict := flag.Bool("strict", false, "Fail instead of warning when OCR detection finds an existing layer")
	redoOCR := flag.Bool("redo-ocr", false, "Strip any existing text layer before grafting a new one")
	jobs := flag.Int("jobs", 4, "Number of concurrent page workers")
	layerName := flag.String("layer-name", "OCR-text", "Optional content group name the existing-OCR check looks for")
	fontDir := flag.String("font-dir", "", "Directory BuiltinFontProvider loads faces from")
	overwriteOutput := flag.Bool("overwrite", false, "Overwrite the output file if it already exists")
	checkOCR := flag.Bool("check-ocr", false, "Check whether the PDF already has an OCR layer and exit")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "  %s -hocr document.hocr -pdf document.pdf -output out.pdf\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "  %s -pdf document.pdf -check-ocr\n\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *checkOCR {
		handleCheckOCRMode(*pdfPath, *layerName)
		return
	}

	handleApplyMode(applyFlags{
		hocrPath:     *hocrPath,
		imageDirPath: *imageDirPath,
		pdfPath:      *pdfPath,
		outputPath:   *outputPath,
		debug:        *debug,
		force:        *force,
		strict:       *strict,
		redoOCR:      *redoOCR,
		jobs:         *jobs,
		layerName:    *layerName,
		fontDir:      *fontDir,
		overwrite:    *overwriteOutput,
	})
}

func handleCheckOCRMode(pdfPath, layerName string) {
	if pdfPath == "" {
		fmt.Println("Error: must provide -pdf for OCR checking")
		os.Exit(int(werrors.ExitBadArgs))
	}
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		fmt.Printf("Failed to read input PDF: %v\n", err)
		os.Exit(int(werrors.ExitCodeFor(&werrors.InputFileError{Path: pdfPath, Reason: err.Error()})))
	}
	result, err := graft.CheckExistingLayer(data, layerName)
	if err != nil {
		fmt.Printf("Error during OCR detection: %v\n", err)
		os.Exit(int(werrors.ExitOther))
	}
	fmt.Printf("OCR detection results for %s:\n", pdfPath)
	fmt.Printf("Has OCR: %v\n", result.HasOCRLayer)
	if result.HasOCRLayer {
		fmt.Printf("OCR layer: %s\n", result.OCRLayerName)
	}
	if len(result.Layers) > 0 {
		fmt.Println("\nDetected layers:")
		for i, l := range result.Layers {
			fmt.Printf("  %d. %s\n", i+1, l)
		}
	}
	for _, w := range result.Warnings {
		fmt.Println("Warning:", w)
	}
	if result.HasOCRLayer {
		os.Exit(int(werrors.ExitAlreadyDoneOCR))
	}
	os.Exit(int(werrors.ExitOK))
}

type applyFlags struct {
	hocrPath, imageDirPath, pdfPath, outputPath string
	debug, force, strict, redoOCR               bool
	jobs                                        int
	layerName, fontDir                          string
	overwrite                                   bool
}

func handleApplyMode(f applyFlags) {
	if f.hocrPath == "" {
		fmt.Println("Error: must provide -hocr path")
		os.Exit(int(werrors.ExitBadArgs))
	}
	if f.imageDirPath == "" && f.pdfPath == "" {
		fmt.Println("Error: must provide either -image-dir or -pdf")
		os.Exit(int(werrors.ExitBadArgs))
	}
	if f.outputPath == "" {
		fmt.Println("Error: must provide -output path")
		os.Exit(int(werrors.ExitBadArgs))
	}
	if _, err := os.Stat(f.outputPath); err == nil {
		if !f.overwrite {
			fmt.Printf("Output file %s already exists. Use -overwrite to overwrite.\n", f.outputPath)
			os.Exit(int(werrors.ExitFileAccessError))
		}
		os.Remove(f.outputPath)
	}

	warningCapture := newWarningWriter(os.Stdout)
	log := logrus.New()
	log.SetOutput(warningCapture)
	log.SetFormatter(&logrus.TextFormatter{DisableColors: true})

	opts := config.Default()
	opts.Debug = f.debug
	opts.Force = f.force
	opts.Strict = f.strict
	opts.RedoOCR = f.redoOCR
	opts.Jobs = f.jobs
	opts.LayerName = f.layerName
	if f.fontDir != "" {
		opts.Font.Dir = f.fontDir
	}
	if err := opts.Validate(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(int(werrors.ExitBadArgs))
	}

	hocrData, err := os.ReadFile(f.hocrPath)
	if err != nil {
		fmt.Printf("Failed to read hOCR file: %v\n", err)
		os.Exit(int(werrors.ExitInputFile))
	}
	pages, err := hocr.Parse(hocrData)
	if err != nil {
		fmt.Printf("Failed to parse hOCR: %v\n", err)
		os.Exit(int(werrors.ExitCodeFor(err)))
	}

	provider := font.NewChainedFontProvider(font.NewBuiltinFontProvider(opts.Font.Dir), font.NewSystemFontProvider())
	if _, err := provider.Fallback(); err != nil {
		fmt.Printf("Error: mandatory fallback font unavailable: %v\n", err)
		os.Exit(int(werrors.ExitMissingDependency))
	}
	fonts := font.NewMultiManager(provider, log)
	bar := progress.NewTerminalBar(float64(len(pages)), "OCR", os.Stdout)

	ctx := context.Background()
	var finalPDF []byte
	if f.imageDirPath != "" {
		imagePaths, err := filepath.Glob(filepath.Join(f.imageDirPath, "*"))
		if err != nil {
			fmt.Printf("Error accessing image directory: %v\n", err)
			os.Exit(int(werrors.ExitInputFile))
		}
		sort.Strings(imagePaths)
		fmt.Printf("Found %d image files in %s\n", len(imagePaths), f.imageDirPath)

		imagesData := make([][]byte, 0, len(imagePaths))
		for _, p := range imagePaths {
			data, err := os.ReadFile(p)
			if err != nil {
				fmt.Printf("Failed to read image %s: %v\n", p, err)
				os.Exit(int(werrors.ExitInputFile))
			}
			imagesData = append(imagesData, data)
		}
		finalPDF, err = pipeline.AssembleWithOCR(ctx, pages, imagesData, opts, fonts, log, bar)
	} else {
		var inputData []byte
		inputData, err = os.ReadFile(f.pdfPath)
		if err != nil {
			fmt.Printf("Failed to read input PDF: %v\n", err)
			os.Exit(int(werrors.ExitInputFile))
		}
		finalPDF, err = pipeline.ApplyOCR(ctx, inputData, pages, opts, fonts, log, bar)
	}
	if err != nil {
		if _, ok := err.(*werrors.PriorOcrFoundError); ok {
			fmt.Printf("Error: %v\n", err)
			os.Exit(int(werrors.ExitAlreadyDoneOCR))
		}
		fmt.Printf("Error building OCR-enhanced PDF: %v\n", err)
		os.Exit(int(werrors.ExitCodeFor(err)))
	}

	if f.imageDirPath != "" && (f.force || f.strict) {
		fmt.Println("Note: -force and -strict only apply to -pdf input; ignored for -image-dir input.")
	}

	if err := os.WriteFile(f.outputPath, finalPDF, 0o666); err != nil {
		fmt.Printf("Failed to write output PDF: %v\n", err)
		os.Exit(int(werrors.ExitFileAccessError))
	}
	fmt.Println("OCR-enhanced PDF created:", f.outputPath)

	switch {
	case warningCapture.HasOCRWarning():
		fmt.Println("Note: completed with OCR warnings - existing OCR was detected")
		os.Exit(int(werrors.ExitAlreadyDoneOCR))
	case warningCapture.HasWarnings():
		fmt.Println("Note: completed with warnings")
		os.Exit(int(werrors.ExitOther))
	default:
		os.Exit(int(werrors.ExitOK))
	}
}
