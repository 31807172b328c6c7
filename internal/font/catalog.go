package font

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// languageFontMap mirrors multi_font_manager.py's LANGUAGE_FONT_MAP: a
// language hint (hOCR's `lang` attribute, lowercased ISO 639) to the font
// name MultiManager prefers for words tagged with that language.
var languageFontMap = map[string]string{
	"ara":     "NotoSansArabic",
	"fas":     "NotoSansArabic",
	"urd":     "NotoSansArabic",
	"heb":     "NotoSansHebrew",
	"yid":     "NotoSansHebrew",
	"hin":     "NotoSansDevanagari",
	"mar":     "NotoSansDevanagari",
	"nep":     "NotoSansDevanagari",
	"tha":     "NotoSansThai",
	"jpn":     "NotoSansCJKjp",
	"kor":     "NotoSansCJKkr",
	"chi_sim": "NotoSansCJKsc",
	"chi_tra": "NotoSansCJKtc",
	"ell":     "NotoSansGreek",
	"rus":     "NotoSansGeorgian",
}

// fallbackFonts mirrors FALLBACK_FONTS: the ordered chain tried for any
// word whose language-mapped font (if any) does not cover its text.
var fallbackFonts = []string{
	"NotoSans-Regular",
	"NotoSansArabic",
	"NotoSansHebrew",
	"NotoSansDevanagari",
	"NotoSansThai",
	"NotoSansCJKsc",
	"NotoSansCJKtc",
	"NotoSansCJKjp",
	"NotoSansCJKkr",
}

// selectionKey caches a (text, language) -> resolved font name decision so
// repeated identical words (page headers, running text) do not re-run
// coverage checks line after line.
type selectionKey struct {
	text string
	lang string
}

// MultiManager selects the best available font Manager for a given word,
// trying the language-hinted font first, then glyph coverage against the
// fallback chain, and finally the provider's mandatory Fallback.
type MultiManager struct {
	provider Provider
	log      *logrus.Logger

	mu      sync.Mutex
	cache   map[selectionKey]*Manager
	warned  map[string]bool
}

// NewMultiManager builds a selector backed by provider.
func NewMultiManager(provider Provider, log *logrus.Logger) *MultiManager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &MultiManager{
		provider: provider,
		log:      log,
		cache:    make(map[selectionKey]*Manager),
		warned:   make(map[string]bool),
	}
}

// SelectFontForWord returns the Manager that should render text, preferring
// lang's mapped font, then any fallback-chain font that covers every
// rune in text, then the mandatory fallback (which may not cover every
// glyph, in which case the renderer falls back to the glyphless font at
// the per-word level).
func (m *MultiManager) SelectFontForWord(text, lang string) (*Manager, error) {
	key := selectionKey{text: text, lang: lang}
	m.mu.Lock()
	if cached, ok := m.cache[key]; ok {
		m.mu.Unlock()
		return cached, nil
	}
	m.mu.Unlock()

	if mapped, ok := languageFontMap[lang]; ok {
		if mgr, err := m.provider.Get(mapped); err == nil && mgr.Covers(text) {
			m.remember(key, mgr)
			return mgr, nil
		}
	}

	for _, name := range fallbackFonts {
		mgr, err := m.provider.Get(name)
		if err != nil {
			continue
		}
		if mgr.Covers(text) {
			m.remember(key, mgr)
			return mgr, nil
		}
	}

	mgr, err := m.provider.Fallback()
	if err != nil {
		return nil, err
	}
	m.warnOnce(lang)
	m.remember(key, mgr)
	return mgr, nil
}

func (m *MultiManager) remember(key selectionKey, mgr *Manager) {
	m.mu.Lock()
	m.cache[key] = mgr
	m.mu.Unlock()
}

// warnOnce logs once per language that no covering font was found, instead
// of once per word, matching the original's dedup-by-language warning.
func (m *MultiManager) warnOnce(lang string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.warned[lang] {
		return
	}
	m.warned[lang] = true
	m.log.WithField("lang", lang).Warn("no font covers all glyphs for this language; using mandatory fallback")
}
