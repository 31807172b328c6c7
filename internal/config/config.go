// Package config holds the run options consumed by internal/pipeline,
// internal/render, internal/graft, and internal/font. Parsing flags or
// config files into an Options value is a caller concern (see
// cmd/ocrchestra); this package stays a plain struct because CLI and
// config-file parsing are out of scope here.
package config

import "fmt"

// FontConfig holds font settings. Only Dir is used (cmd/ocrchestra passes
// it to BuiltinFontProvider), and Size is checked by Validate; Name, Style,
// Size and AscentRatio do not affect rendering.
type FontConfig struct {
	Name        string
	Style       string
	Size        float64
	AscentRatio float64
	// Dir is the on-disk directory BuiltinFontProvider loads from. There is
	// no compiled-in default: font binaries are not shipped in this module.
	Dir string
}

// DefaultFontConfig mirrors the original's Helvetica/10pt/0.718 defaults.
func DefaultFontConfig() FontConfig {
	return FontConfig{Name: "Helvetica", Size: 10, AscentRatio: 0.718}
}

// Options configures one end-to-end OCR run (spec.md §4.G / §9's per-run
// RunContext in place of global mutable state).
type Options struct {
	// Debug makes the renderer emit its text with render mode 0 (visible)
	// instead of 3 (invisible). No bounding boxes or other debug shapes are
	// drawn.
	Debug bool
	// Force skips the existing-OCR-layer check entirely.
	Force bool
	// Strict fails the whole run if the input already has a text layer and
	// Force was not also given, instead of only warning.
	Strict bool
	// RedoOCR strips any existing invisible text layer before grafting,
	// instead of leaving stale text underneath the new layer.
	RedoOCR bool
	// LayerName is the optional content group name the existing-OCR check
	// looks for in the input PDF. The renderer does not create an optional
	// content group; the grafted text is not tagged with a layer.
	LayerName string
	// Jobs bounds the number of concurrent page workers. Zero means
	// runtime.NumCPU().
	Jobs int
	// DeterministicOutput is not read by the pipeline: workers are always
	// dispatched, and results always grafted, in ascending page order.
	DeterministicOutput bool
	// WorkDir is the scratch directory for per-page intermediates
	// (see spec.md §6.5); callers must create and own its lifetime.
	WorkDir string
	// KeepTemporaryFiles is not read: internal/graft always removes its
	// intermediate working-document checkpoints (the save_and_reload
	// cadence).
	KeepTemporaryFiles bool
	Font               FontConfig
}

// Default returns the same baseline configuration the teacher's
// DefaultConfig() constructed, extended with the pipeline-level fields
// SPEC_FULL.md's orchestrator needs.
func Default() Options {
	return Options{
		LayerName: "OCR-text",
		Jobs:      0,
		Font:      DefaultFontConfig(),
	}
}

// Validate reports a descriptive error for option combinations that can
// never be satisfied, the same role original_source's CLI-layer validation
// plays ahead of pipeline construction.
func (o Options) Validate() error {
	if o.Jobs < 0 {
		return fmt.Errorf("config: Jobs must be >= 0, got %d", o.Jobs)
	}
	if o.Force && o.Strict {
		return fmt.Errorf("config: Force and Strict are mutually exclusive")
	}
	if o.Font.Size <= 0 {
		return fmt.Errorf("config: Font.Size must be positive, got %v", o.Font.Size)
	}
	return nil
}
