// Package docai adapts Google Document AI's proto output into an
// ocrtree.Element tree directly, implementing the OcrEngine.GenerateOCR
// "direct tree" collaborator variant from spec.md §6.3 instead of routing
// through hOCR bytes. Adapted from the teacher's pkg/gdocai/hocr.go, which
// built the same structure into hOCR-specific types.
package docai

import (
	"context"
	"fmt"
	"image"
	"strings"

	"cloud.google.com/go/documentai/apiv1/documentaipb"

	"github.com/ocrchestra/ocrchestra-core/internal/engine"
	"github.com/ocrchestra/ocrchestra-core/internal/geometry"
	"github.com/ocrchestra/ocrchestra-core/internal/ocrtree"
)

// Client recognizes pages via a Document AI processor and converts the
// result straight into ocrtree.Element. The actual RPC call is left to
// Recognizer so this type stays testable without live credentials.
type Client struct {
	Recognizer func(ctx context.Context, img image.Image) (*documentaipb.Document, error)
}

var _ engine.OcrEngine = (*Client)(nil)

func (c *Client) RecognizeHOCR(ctx context.Context, img image.Image, lang string) ([]byte, error) {
	return nil, fmt.Errorf("docai: RecognizeHOCR not supported, use GenerateOCR")
}

func (c *Client) SupportsGenerateOCR() bool { return true }

func (c *Client) GenerateOCR(ctx context.Context, img image.Image, lang string) (*ocrtree.Element, error) {
	if c.Recognizer == nil {
		return nil, fmt.Errorf("docai: no Recognizer configured")
	}
	doc, err := c.Recognizer(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("docai: recognize: %w", err)
	}
	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("docai: response had no pages")
	}
	return ConvertPage(doc.Pages[0], doc.Text, 0), nil
}

// ConvertPage converts one Document AI page into a TagPage ocrtree.Element,
// flattening blocks the way internal/hocr flattens ocr_carea: blocks exist
// only to scope which paragraphs/lines belong together, not as a distinct
// tree node.
func ConvertPage(page *documentaipb.Document_Page, fullText string, pageNumber int) *ocrtree.Element {
	bbox := boundingBox(page.Layout, page.Dimension)
	el := ocrtree.NewElement(ocrtree.TagPage, bbox)
	el.PageNumber = pageNumber
	if len(page.DetectedLanguages) > 0 {
		el.Language = page.DetectedLanguages[0].LanguageCode
	}

	assignedLines := make(map[string]bool)

	for _, para := range page.Paragraphs {
		paraEl := ocrtree.NewElement(ocrtree.TagParagraph, boundingBox(para.Layout, page.Dimension))
		for _, line := range page.Lines {
			if !withinParent(line.Layout, para.Layout) {
				continue
			}
			assignedLines[layoutKey(line.Layout)] = true
			paraEl.Children = append(paraEl.Children, convertLine(line, page, fullText))
		}
		if len(paraEl.Children) > 0 {
			el.Children = append(el.Children, paraEl)
		}
	}

	for _, line := range page.Lines {
		if assignedLines[layoutKey(line.Layout)] {
			continue
		}
		el.Children = append(el.Children, convertLine(line, page, fullText))
	}

	return el
}

func convertLine(line *documentaipb.Document_Page_Line, page *documentaipb.Document_Page, fullText string) *ocrtree.Element {
	lineEl := ocrtree.NewElement(ocrtree.TagLine, boundingBox(line.Layout, page.Dimension))
	lineEl.Baseline = &geometry.Baseline{}
	if len(line.DetectedLanguages) > 0 {
		lineEl.Language = line.DetectedLanguages[0].LanguageCode
	}

	for _, token := range page.Tokens {
		if !withinParent(token.Layout, line.Layout) {
			continue
		}
		text := cleanTokenText(tokenText(token.Layout, fullText), token)
		wordEl := ocrtree.NewElement(ocrtree.TagWord, boundingBox(token.Layout, page.Dimension))
		wordEl.Text = text
		if token.Layout != nil {
			wordEl.Confidence = float64(token.Layout.Confidence * 100)
		}
		if len(token.DetectedLanguages) > 0 {
			wordEl.Language = token.DetectedLanguages[0].LanguageCode
		}
		lineEl.Children = append(lineEl.Children, wordEl)
	}
	return lineEl
}

func cleanTokenText(text string, token *documentaipb.Document_Page_Token) string {
	clean := strings.TrimSpace(text)
	clean = strings.ReplaceAll(clean, "\n", " ")
	clean = strings.ReplaceAll(clean, "\r", "")
	if token.DetectedBreak != nil &&
		token.DetectedBreak.Type != documentaipb.Document_Page_Token_DetectedBreak_TYPE_UNSPECIFIED {
		runes := []rune(clean)
		if len(runes) > 0 {
			switch runes[len(runes)-1] {
			case ' ', '\n', '\r', '\t':
				clean = string(runes[:len(runes)-1])
			}
		}
	}
	return clean
}

func boundingBox(layout *documentaipb.Document_Page_Layout, dim *documentaipb.Document_Page_Dimension) geometry.BoundingBox {
	if layout == nil || layout.BoundingPoly == nil || dim == nil || len(layout.BoundingPoly.NormalizedVertices) < 4 {
		return geometry.BoundingBox{}
	}
	v := layout.BoundingPoly.NormalizedVertices
	return geometry.NewBoundingBox(
		float64(v[0].X*dim.Width),
		float64(v[0].Y*dim.Height),
		float64(v[2].X*dim.Width),
		float64(v[2].Y*dim.Height),
	)
}

func withinParent(el, parent *documentaipb.Document_Page_Layout) bool {
	if el == nil || parent == nil || el.TextAnchor == nil || parent.TextAnchor == nil ||
		len(el.TextAnchor.TextSegments) == 0 || len(parent.TextAnchor.TextSegments) == 0 {
		return false
	}
	es, ee := el.TextAnchor.TextSegments[0].StartIndex, el.TextAnchor.TextSegments[0].EndIndex
	ps, pe := parent.TextAnchor.TextSegments[0].StartIndex, parent.TextAnchor.TextSegments[0].EndIndex
	return es >= ps && ee <= pe
}

func layoutKey(layout *documentaipb.Document_Page_Layout) string {
	if layout == nil || layout.TextAnchor == nil || len(layout.TextAnchor.TextSegments) == 0 {
		return ""
	}
	seg := layout.TextAnchor.TextSegments[0]
	return fmt.Sprintf("%d-%d", seg.StartIndex, seg.EndIndex)
}

func tokenText(layout *documentaipb.Document_Page_Layout, fullText string) string {
	if layout == nil || layout.TextAnchor == nil {
		return ""
	}
	var b strings.Builder
	for _, seg := range layout.TextAnchor.TextSegments {
		start, end := int(seg.StartIndex), int(seg.EndIndex)
		if start < 0 || end > len(fullText) || start > end {
			continue
		}
		b.WriteString(fullText[start:end])
	}
	return b.String()
}
