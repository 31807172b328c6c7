package graft

import "testing"

func TestDetectLayersFindsOCGName(t *testing.T) {
	data := []byte(`<</Type/OCG/Name(OCR-text (Page 1))>>`)
	layers, err := DetectLayers(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(layers) != 1 || layers[0] != "OCR-text (Page 1)" {
		t.Fatalf("unexpected layers: %v", layers)
	}
}

func TestHasExistingOCRMatchesPerPageLayerName(t *testing.T) {
	data := []byte(`<</Type/OCG/Name(OCR-text (Page 1))>>`)
	has, warnings, err := HasExistingOCR(data, "OCR-text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !has {
		t.Fatalf("expected HasExistingOCR true, warnings=%v", warnings)
	}
}

func TestHasExistingOCRFalseWithoutLayers(t *testing.T) {
	has, _, err := HasExistingOCR([]byte("%PDF-1.4\n"), "OCR-text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if has {
		t.Fatalf("expected HasExistingOCR false")
	}
}
