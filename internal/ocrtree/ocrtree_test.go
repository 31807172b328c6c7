package ocrtree

import (
	"testing"

	"github.com/ocrchestra/ocrchestra-core/internal/geometry"
	"github.com/stretchr/testify/assert"
)

func buildSamplePage() *Element {
	page := NewElement(TagPage, geometry.NewBoundingBox(0, 0, 1000, 1400))
	para := page.AddChild(NewElement(TagParagraph, geometry.NewBoundingBox(0, 0, 1000, 100)))
	line := para.AddChild(NewElement(TagLine, geometry.NewBoundingBox(0, 0, 1000, 50)))
	w1 := NewElement(TagWord, geometry.NewBoundingBox(0, 0, 100, 50))
	w1.Text = "hello"
	w2 := NewElement(TagWord, geometry.NewBoundingBox(110, 0, 200, 50))
	w2.Text = "world"
	line.AddChild(w1)
	line.AddChild(w2)
	return page
}

func TestWordsCollectsAllDescendants(t *testing.T) {
	page := buildSamplePage()
	words := page.Words()
	if assert.Len(t, words, 2) {
		assert.Equal(t, "hello", words[0].Text)
		assert.Equal(t, "world", words[1].Text)
	}
}

func TestLinesStopsAtLineTag(t *testing.T) {
	page := buildSamplePage()
	lines := page.Lines()
	assert.Len(t, lines, 1)
	assert.Equal(t, TagLine, lines[0].Tag)
}

func TestEffectiveLanguagePrefersOwn(t *testing.T) {
	assert.Equal(t, "fra", EffectiveLanguage("fra", "eng"))
	assert.Equal(t, "eng", EffectiveLanguage("", "eng"))
}
