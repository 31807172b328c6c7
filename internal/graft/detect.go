package graft

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf16"
)

// ocgPatterns finds optional-content-group names in raw PDF bytes without
// fully parsing the document, mirroring detect.go's regex-based scan: a
// malformed or partially-written PDF should still report what layers it
// can find instead of failing outright.
var ocgPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/Type\s*/OCG\s*/Name\s*\(((?:[^()]|\([^()]*\))+)\)`),
	regexp.MustCompile(`/OCG\s*<<[^>]*?/Name\s*\(((?:[^()]|\([^()]*\))+)\)`),
	regexp.MustCompile(`<</Type/OCG/Name\(((?:[^()]|\([^()]*\))+)\)`),
	regexp.MustCompile(`/Name\s*\(((?:[^()]|\([^()]*\))+)\)[\s\S]{1,50}/Type\s*/OCG`),
}

// DetectLayers scans pdfData for optional-content-group names.
func DetectLayers(pdfData []byte) ([]string, error) {
	if len(pdfData) == 0 {
		return nil, fmt.Errorf("graft: detect layers: empty pdf data")
	}
	content := string(pdfData)

	var layers []string
	for _, re := range ocgPatterns {
		for _, match := range re.FindAllStringSubmatch(content, -1) {
			if len(match) >= 2 {
				layers = append(layers, unescapeName(match[1]))
			}
		}
	}
	for i, l := range layers {
		if len(l) >= 2 && l[0] == '\xfe' && l[1] == '\xff' {
			if decoded, err := decodeUTF16BE([]byte(l)); err == nil {
				layers[i] = decoded
			}
		}
	}

	seen := make(map[string]bool)
	unique := layers[:0]
	for _, l := range layers {
		if !seen[l] {
			seen[l] = true
			unique = append(unique, l)
		}
	}
	return unique, nil
}

// LayerCheckResult reports what DetectLayers found relative to a single
// expected layer name.
type LayerCheckResult struct {
	Layers       []string
	HasOCRLayer  bool
	OCRLayerName string
	Warnings     []string
}

// CheckExistingLayer looks for layerName (or a "layerName (Page N...)"
// per-page variant) among the document's optional-content groups, and
// separately flags any other layer whose name merely contains "ocr" as
// worth a warning, the same two-tier signal detect.go produces.
func CheckExistingLayer(pdfData []byte, layerName string) (LayerCheckResult, error) {
	result := LayerCheckResult{}
	layers, err := DetectLayers(pdfData)
	if err != nil {
		return result, fmt.Errorf("graft: analyze layers: %w", err)
	}
	result.Layers = layers

	pagePattern := regexp.MustCompile(fmt.Sprintf(`^%s\s*\(Page\s*\d+.*`, regexp.QuoteMeta(layerName)))
	for _, layer := range layers {
		if layer == layerName || pagePattern.MatchString(layer) {
			result.HasOCRLayer = true
			result.OCRLayerName = layer
			break
		}
		if strings.Contains(strings.ToLower(layer), "ocr") && !strings.HasPrefix(layer, layerName) {
			result.Warnings = append(result.Warnings, fmt.Sprintf("existing layer might contain OCR: %s", layer))
		}
	}
	return result, nil
}

// HasExistingOCR is the single boolean question the assembly layer (see
// internal/pipeline's ApplyOCR) actually needs answered before deciding
// whether to skip, warn, or abort per Options.Force/Strict.
func HasExistingOCR(pdfData []byte, layerName string) (bool, []string, error) {
	result, err := CheckExistingLayer(pdfData, layerName)
	if err != nil {
		return false, nil, err
	}
	return result.HasOCRLayer, result.Warnings, nil
}

func unescapeName(s string) string {
	replacer := strings.NewReplacer(`\(`, "(", `\)`, ")", `\\`, `\`)
	return replacer.Replace(s)
}

func decodeUTF16BE(b []byte) (string, error) {
	if len(b) < 2 || len(b)%2 != 0 {
		return "", fmt.Errorf("graft: odd-length utf16 data")
	}
	b = b[2:] // drop BOM
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
	}
	return string(utf16.Decode(units)), nil
}
