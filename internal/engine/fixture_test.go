package engine

import (
	"context"
	"image"
	"testing"
)

func TestBuildRasterPagePDFProducesNonEmptyOutput(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 100, 200))
	data, err := BuildRasterPagePDF(img, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty PDF bytes")
	}
}

func TestRasterStubReturnsPageSizedImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 100, 200))
	pageData, err := BuildRasterPagePDF(img, 100)
	if err != nil {
		t.Fatalf("build fixture: %v", err)
	}
	stub := NewRasterStub(pageData)
	out, err := stub.Rasterize(context.Background(), 0, 100)
	if err != nil {
		t.Fatalf("rasterize: %v", err)
	}
	if out.Bounds().Dx() <= 0 || out.Bounds().Dy() <= 0 {
		t.Fatalf("unexpected bounds: %v", out.Bounds())
	}
}
