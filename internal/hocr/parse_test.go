package hocr

import (
	"testing"

	"github.com/ocrchestra/ocrchestra-core/internal/ocrtree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `<?xml version="1.0" encoding="UTF-8"?>
<html>
<head><title>sample</title></head>
<body>
<div class='ocr_page' id='page_1' title='bbox 0 0 1000 1400; image "page1.png"; ppageno 0; scan_res 300 300'>
 <div class='ocr_carea' id='block_1' title='bbox 100 100 900 300'>
  <p class='ocr_par' id='par_1' title='bbox 100 100 900 300'>
   <span class='ocr_line' id='line_1' title='bbox 100 100 900 150; baseline 0.001 -2'>
    <span class='ocrx_word' id='word_1' title='bbox 100 100 200 150; x_wconf 95'>hello</span>
    <span class='ocrx_word' id='word_2' title='bbox 210 100 300 150; x_wconf 91'>world</span>
   </span>
  </p>
 </div>
</div>
</body>
</html>`

func TestParseBuildsTree(t *testing.T) {
	pages, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)
	require.Len(t, pages, 1)

	page := pages[0]
	assert.Equal(t, ocrtree.TagPage, page.Tag)
	assert.Equal(t, 0, page.PageNumber)
	assert.Equal(t, "page1.png", page.ImageName)
	assert.Equal(t, 300.0, page.DPI.X)

	words := page.Words()
	require.Len(t, words, 2)
	assert.Equal(t, "hello", words[0].Text)
	assert.Equal(t, 95.0, words[0].Confidence)

	lines := page.Lines()
	require.Len(t, lines, 1)
	require.NotNil(t, lines[0].Baseline)
	assert.InDelta(t, 0.001, lines[0].Baseline.Slope, 1e-9)
}

func TestParseRejectsDocWithoutPages(t *testing.T) {
	_, err := Parse([]byte(`<html><body><p>no page here</p></body></html>`))
	assert.Error(t, err)
}

func TestParseFallsBackToBareWords(t *testing.T) {
	doc := `<html><body>
<div class='ocr_page' id='page_1' title='bbox 0 0 100 100'>
 <span class='ocrx_word' id='w1' title='bbox 1 1 10 10'>bare</span>
</div>
</body></html>`
	pages, err := Parse([]byte(doc))
	require.NoError(t, err)
	words := pages[0].Words()
	require.Len(t, words, 1)
	assert.Equal(t, "bare", words[0].Text)
}
