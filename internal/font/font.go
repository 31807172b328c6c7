// Package font implements the font catalog and per-word font selection
// described in spec.md §3.3/§4.D: a Manager wraps one parsed face, a
// Provider resolves names to Managers, and a MultiManager picks the right
// face for a given word by language hint and glyph coverage.
package font

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/go-text/typesetting/di"
	gofont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
)

// Manager wraps one parsed font face plus the metadata the renderer and
// grafter need: its PDF resource name, raw font bytes for embedding, and
// glyph coverage.
type Manager struct {
	Name string // PDF resource key, e.g. "NotoSans"
	Path string
	Data []byte // raw TTF/OTF bytes, retained for embedding as /FontFile2
	Face *gofont.Face

	shaper *shaping.HarfbuzzShaper

	mu       sync.Mutex
	coverage map[rune]bool
}

// LoadManager parses a TTF/OTF file at path into a Manager named name.
func LoadManager(name, path string, data []byte) (*Manager, error) {
	face, err := gofont.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("font: parse %s: %w", path, err)
	}
	return &Manager{Name: name, Path: path, Data: data, Face: face, coverage: make(map[rune]bool)}, nil
}

// Covers reports whether the face has a glyph for every rune in s.
func (m *Manager) Covers(s string) bool {
	for _, r := range s {
		if !m.coversRune(r) {
			return false
		}
	}
	return true
}

func (m *Manager) coversRune(r rune) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if got, ok := m.coverage[r]; ok {
		return got
	}
	gid, ok := m.Face.NominalGlyph(r)
	covered := ok && gid != 0
	m.coverage[r] = covered
	return covered
}

// Shape runs the HarfBuzz-class shaper over text at sizePt points and
// returns the shaped glyph run: glyph IDs (for Identity-H CID encoding) and
// advances already scaled to sizePt, handling Arabic joining, Devanagari
// conjuncts, and RTL reordering per dir.
func (m *Manager) Shape(text string, dir di.Direction, lang language.Language, sizePt float64) (*shaping.Output, error) {
	if m.shaper == nil {
		m.shaper = &shaping.HarfbuzzShaper{}
	}
	runes := []rune(text)
	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: dir,
		Face:      m.Face,
		Size:      fixed.Int26_6(sizePt * 64),
		Language:  lang,
	}
	out := m.shaper.Shape(input)
	return &out, nil
}

// ShapedWidth sums a shaped run's glyph advances back into points. The
// advances are already scaled to whatever size was passed to Shape, so this
// is a plain sum, not a further upem-based scale.
func (m *Manager) ShapedWidth(out *shaping.Output) float64 {
	var total fixed.Int26_6
	for _, g := range out.Glyphs {
		total += g.XAdvance
	}
	return float64(total) / 64
}

// UnitsPerEm exposes the face's em size for scaling glyph metrics to text
// space.
func (m *Manager) UnitsPerEm() int32 {
	return int32(m.Face.Upem())
}

// rtlLanguages mirrors the script families multi_font_manager.py's
// LANGUAGE_FONT_MAP treats as right-to-left, used when a line carries no
// explicit hOCR direction hint.
var rtlLanguages = map[string]bool{
	"ara": true, "fas": true, "urd": true, "heb": true, "yid": true,
}

// ShapingDirection resolves the direction to shape a word in: an explicit
// hOCR "ltr"/"rtl" hint on the line wins, otherwise a right-to-left script
// family in lang implies RTL, otherwise left-to-right.
func ShapingDirection(explicit, lang string) di.Direction {
	switch explicit {
	case "rtl":
		return di.DirectionRTL
	case "ltr":
		return di.DirectionLTR
	}
	if rtlLanguages[lang] {
		return di.DirectionRTL
	}
	return di.DirectionLTR
}

// LanguageTag converts an hOCR language hint into the tag the shaper uses to
// pick language-specific shaping rules (Urdu vs Arabic within the same
// script, for example).
func LanguageTag(lang string) language.Language {
	return language.NewLanguage(lang)
}

// Provider resolves a font name (or language hint) to a loaded Manager.
// Mirrors the original's FontProvider Protocol: BuiltinFontProvider,
// SystemFontProvider, and ChainedFontProvider all satisfy it.
type Provider interface {
	// Get returns the Manager for name, loading it lazily if needed.
	Get(name string) (*Manager, error)
	// Fallback returns the mandatory fallback Manager,
	// used when no other face covers a word. Implementations must make
	// this fatal-if-missing, never silently nil.
	Fallback() (*Manager, error)
}
