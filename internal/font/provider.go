package font

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/ocrchestra/ocrchestra-core/internal/werrors"
)

// builtinFontFiles names the faces the original's BuiltinFontProvider ships
// with its package data. This module carries no font binaries (see
// DESIGN.md), so Dir must point at a real directory containing files named
// exactly these at runtime; NotoSans-Regular.ttf doubles as both the
// default visible fallback and the glyph-coverage source for "latin-ish"
// scripts. Occulta.ttf can be loaded by name, but nothing in this module
// requests it; the renderer's glyphless fallback is the dictionary built by
// BuildGlyphlessFont.
var builtinFontFiles = map[string]string{
	"NotoSans-Regular": "NotoSans-Regular.ttf",
	"Occulta":          "Occulta.ttf",
}

// FallbackFontName is the face BuiltinFontProvider treats as mandatory.
const FallbackFontName = "NotoSans-Regular"

// BuiltinFontProvider loads faces from a single configured directory,
// caching successfully parsed Managers. Failure to load FallbackFontName is
// fatal, mirroring font_provider.py's behavior.
type BuiltinFontProvider struct {
	dir string

	mu    sync.Mutex
	cache map[string]*Manager
}

// NewBuiltinFontProvider constructs a provider rooted at dir. It does not
// eagerly load anything; call Fallback once at startup to fail fast.
func NewBuiltinFontProvider(dir string) *BuiltinFontProvider {
	return &BuiltinFontProvider{dir: dir, cache: make(map[string]*Manager)}
}

func (p *BuiltinFontProvider) Get(name string) (*Manager, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.cache[name]; ok {
		return m, nil
	}
	filename, ok := builtinFontFiles[name]
	if !ok {
		return nil, fmt.Errorf("font: unknown builtin face %q", name)
	}
	path := filepath.Join(p.dir, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("font: read %s: %w", path, err)
	}
	m, err := LoadManager(name, path, data)
	if err != nil {
		return nil, err
	}
	p.cache[name] = m
	return m, nil
}

func (p *BuiltinFontProvider) Fallback() (*Manager, error) {
	m, err := p.Get(FallbackFontName)
	if err != nil {
		return nil, &werrors.MissingFontError{Path: filepath.Join(p.dir, builtinFontFiles[FallbackFontName])}
	}
	return m, nil
}

// systemFontDirs lists candidate system font directories per OS, matching
// the original's SYSTEM_FONT_DIRS table.
var systemFontDirs = map[string][]string{
	"linux":   {"/usr/share/fonts", "/usr/local/share/fonts"},
	"darwin":  {"/System/Library/Fonts", "/Library/Fonts"},
	"windows": {`C:\Windows\Fonts`},
}

// notoPatterns maps a language hint substring to the Noto family filename
// fragment most likely to cover it, mirroring NOTO_FONT_PATTERNS.
var notoPatterns = map[string]string{
	"ara": "NotoSansArabic",
	"heb": "NotoSansHebrew",
	"hin": "NotoSansDevanagari",
	"tha": "NotoSansThai",
	"jpn": "NotoSansCJKjp",
	"kor": "NotoSansCJKkr",
	"chi_sim": "NotoSansCJKsc",
	"chi_tra": "NotoSansCJKtc",
	"ell": "NotoSansGreek",
	"rus": "NotoSansGeorgian",
}

// SystemFontProvider lazily scans the host's system font directories for a
// face matching a requested language hint, caching both hits and misses so
// a missing script is not re-scanned on every word.
type SystemFontProvider struct {
	dirs []string

	mu      sync.Mutex
	cache   map[string]*Manager
	missing map[string]bool
}

// NewSystemFontProvider builds a provider scanning the current OS's
// default font directories.
func NewSystemFontProvider() *SystemFontProvider {
	return &SystemFontProvider{
		dirs:    systemFontDirs[runtime.GOOS],
		cache:   make(map[string]*Manager),
		missing: make(map[string]bool),
	}
}

func (p *SystemFontProvider) Get(name string) (*Manager, error) {
	p.mu.Lock()
	if m, ok := p.cache[name]; ok {
		p.mu.Unlock()
		return m, nil
	}
	if p.missing[name] {
		p.mu.Unlock()
		return nil, fmt.Errorf("font: %q not found on system", name)
	}
	p.mu.Unlock()

	pattern, ok := notoPatterns[name]
	if !ok {
		pattern = name
	}
	for _, dir := range p.dirs {
		found := findFontFile(dir, pattern)
		if found == "" {
			continue
		}
		data, err := os.ReadFile(found)
		if err != nil {
			continue
		}
		m, err := LoadManager(name, found, data)
		if err != nil {
			continue
		}
		p.mu.Lock()
		p.cache[name] = m
		p.mu.Unlock()
		return m, nil
	}
	p.mu.Lock()
	p.missing[name] = true
	p.mu.Unlock()
	return nil, fmt.Errorf("font: %q not found on system", name)
}

func (p *SystemFontProvider) Fallback() (*Manager, error) {
	return nil, fmt.Errorf("font: SystemFontProvider has no mandatory fallback")
}

func findFontFile(dir, pattern string) string {
	var found string
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || found != "" {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".ttf" && ext != ".otf" && ext != ".ttc" {
			return nil
		}
		if strings.Contains(strings.ToLower(name), strings.ToLower(pattern)) {
			found = path
		}
		return nil
	})
	return found
}

// ChainedFontProvider tries each provider in order, returning the first
// successful resolution.
type ChainedFontProvider struct {
	providers []Provider
}

// NewChainedFontProvider composes providers, tried in the given order.
func NewChainedFontProvider(providers ...Provider) *ChainedFontProvider {
	return &ChainedFontProvider{providers: providers}
}

func (c *ChainedFontProvider) Get(name string) (*Manager, error) {
	var lastErr error
	for _, p := range c.providers {
		m, err := p.Get(name)
		if err == nil {
			return m, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *ChainedFontProvider) Fallback() (*Manager, error) {
	for _, p := range c.providers {
		m, err := p.Fallback()
		if err == nil {
			return m, nil
		}
	}
	return nil, fmt.Errorf("font: no provider in chain has a mandatory fallback")
}
