// Package hocr parses hOCR documents directly into an ocrtree.Element,
// generalizing the title-attribute grammar (bbox, baseline, textangle,
// x_wconf, lang, ppageno, scan_res) across every class of element instead
// of binding to format-specific structs.
package hocr

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"

	"github.com/ocrchestra/ocrchestra-core/internal/geometry"
	"github.com/ocrchestra/ocrchestra-core/internal/ocrtree"
)

// ParseError reports an hOCR document that could not be parsed at all, as
// opposed to individual elements silently dropped (which mirrors how the
// original tolerates malformed sub-trees).
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "hocr: " + e.Reason }

// classOrder maps an hOCR class token to an ocrtree.Tag. Checked in this
// order because classes are matched by substring, and some compound class
// strings (e.g. "ocr_line ocr_header") could otherwise match more than one
// entry; the most specific wins.
var classOrder = []struct {
	class string
	tag   ocrtree.Tag
}{
	{"ocr_header", ocrtree.TagHeader},
	{"ocr_caption", ocrtree.TagCaption},
	{"ocr_textfloat", ocrtree.TagTextFloat},
	{"ocr_carea", ocrtree.Tag(-1)}, // area: flattened into its parent, no Tag of its own
	{"ocr_par", ocrtree.TagParagraph},
	{"ocr_line", ocrtree.TagLine},
	{"ocrx_word", ocrtree.TagWord},
}

func classTag(class string) (ocrtree.Tag, bool) {
	for _, c := range classOrder {
		if strings.Contains(class, c.class) {
			return c.tag, true
		}
	}
	return 0, false
}

// Parse converts raw hOCR bytes into one ocrtree.Element per ocr_page found,
// in document order.
func Parse(data []byte) ([]*ocrtree.Element, error) {
	decoded, err := decodeBytes(data)
	if err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}

	doc, err := html.Parse(strings.NewReader(string(decoded)))
	if err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}

	var pages []*ocrtree.Element
	var findPages func(*html.Node)
	findPages = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "div" && strings.Contains(attrVal(n, "class"), "ocr_page") {
			pages = append(pages, processPage(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findPages(c)
		}
	}
	findPages(doc)

	if len(pages) == 0 {
		return nil, &ParseError{Reason: "no ocr_page elements found in hOCR data"}
	}
	return pages, nil
}

func decodeBytes(data []byte) ([]byte, error) {
	content := string(data)
	encoding := "utf-8"
	if idx := strings.Index(content, "charset="); idx >= 0 {
		start := idx + len("charset=")
		if start+20 < len(content) {
			snippet := content[start : start+20]
			fields := strings.FieldsFunc(snippet, func(r rune) bool {
				return r == '"' || r == ';' || r == '\'' || r == '>'
			})
			if len(fields) > 0 && fields[0] != "" {
				encoding = strings.ToLower(fields[0])
			}
		}
	}
	if encoding == "utf-8" {
		return data, nil
	}
	decoder := charmap.ISO8859_1.NewDecoder()
	decoded, err := decoder.Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", encoding, err)
	}
	return decoded, nil
}

// titleProps splits a title="k v1 v2; k2 v3" attribute into a property map.
func titleProps(title string) map[string][]string {
	result := make(map[string][]string)
	for _, part := range strings.Split(title, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Fields(part)
		if len(fields) > 0 {
			result[fields[0]] = fields[1:]
		}
	}
	return result
}

func bboxFromTitle(title string) (geometry.BoundingBox, bool) {
	props := titleProps(title)
	v, ok := props["bbox"]
	if !ok || len(v) < 4 {
		return geometry.BoundingBox{}, false
	}
	x1, _ := strconv.ParseFloat(v[0], 64)
	y1, _ := strconv.ParseFloat(v[1], 64)
	x2, _ := strconv.ParseFloat(v[2], 64)
	y2, _ := strconv.ParseFloat(v[3], 64)
	return geometry.NewBoundingBox(x1, y1, x2, y2), true
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// processPage builds the page Element and recurses into its subtree,
// flattening ocr_carea nodes (areas have no distinct tag in ocrtree) and
// falling back to treating bare words directly under the page as a single
// implicit line, matching the original parser's leniency for minimal hOCR.
func processPage(n *html.Node) *ocrtree.Element {
	bbox, _ := bboxFromTitle(attrVal(n, "title"))
	page := ocrtree.NewElement(ocrtree.TagPage, bbox)
	page.Language = attrVal(n, "lang")

	props := titleProps(attrVal(n, "title"))
	if img, ok := props["image"]; ok && len(img) > 0 {
		page.ImageName = strings.Trim(img[0], "\"")
	}
	if ppn, ok := props["ppageno"]; ok && len(ppn) > 0 {
		page.PageNumber, _ = strconv.Atoi(ppn[0])
	}
	if res, ok := props["scan_res"]; ok && len(res) >= 2 {
		x, _ := strconv.ParseFloat(res[0], 64)
		y, _ := strconv.ParseFloat(res[1], 64)
		page.DPI = geometry.Resolution{X: x, Y: y}
	}

	children := processChildren(n)
	page.Children = children

	if len(page.Lines()) == 0 && len(page.Words()) > 0 {
		// Bare words directly under the page with no carea/par/line wrapper:
		// collect them into one synthetic line so the renderer still has a
		// line-like element to attach a baseline to.
		words := collectWordsDirect(n)
		if len(words) > 0 {
			line := ocrtree.NewElement(ocrtree.TagLine, bbox)
			line.Baseline = &geometry.Baseline{}
			line.Children = words
			page.Children = []*ocrtree.Element{line}
		}
	}
	return page
}

func processChildren(n *html.Node) []*ocrtree.Element {
	var out []*ocrtree.Element
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		class := attrVal(c, "class")
		tag, matched := classTag(class)
		if !matched {
			out = append(out, processChildren(c)...)
			continue
		}
		if tag == ocrtree.Tag(-1) {
			// ocr_carea: flatten, recurse directly into its children.
			out = append(out, processChildren(c)...)
			continue
		}
		// Elements without a usable bbox, and words with no text, are dropped.
		if _, ok := bboxFromTitle(attrVal(c, "title")); !ok {
			continue
		}
		el := processElement(c, tag)
		if tag == ocrtree.TagWord && el.Text == "" {
			continue
		}
		out = append(out, el)
	}
	return out
}

func processElement(n *html.Node, tag ocrtree.Tag) *ocrtree.Element {
	title := attrVal(n, "title")
	bbox, _ := bboxFromTitle(title)
	el := ocrtree.NewElement(tag, bbox)
	el.Language = attrVal(n, "lang")

	props := titleProps(title)
	if ocrtree.LineTags()[tag] {
		if baseline, ok := props["baseline"]; ok && len(baseline) >= 2 {
			slope, _ := strconv.ParseFloat(baseline[0], 64)
			intercept, _ := strconv.ParseFloat(baseline[1], 64)
			el.Baseline = &geometry.Baseline{Slope: slope, Intercept: intercept}
		} else {
			el.Baseline = &geometry.Baseline{}
		}
		if angle, ok := props["textangle"]; ok && len(angle) > 0 {
			el.TextAngle, _ = strconv.ParseFloat(angle[0], 64)
		}
	}

	if tag == ocrtree.TagWord {
		if conf, ok := props["x_wconf"]; ok && len(conf) > 0 {
			el.Confidence, _ = strconv.ParseFloat(conf[0], 64)
		}
		if font, ok := props["x_font"]; ok && len(font) > 0 {
			el.FontHint = strings.Join(font, " ")
		}
		if lang, ok := props["lang"]; ok && len(lang) > 0 {
			el.Language = lang[0]
		}
		el.Text = norm.NFKC.String(extractText(n))
		return el
	}

	el.Children = processChildren(n)
	return el
}

func collectWordsDirect(n *html.Node) []*ocrtree.Element {
	var out []*ocrtree.Element
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && strings.Contains(attrVal(node, "class"), "ocrx_word") {
			out = append(out, processElement(node, ocrtree.TagWord))
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return out
}

func extractText(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}
	var text strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		text.WriteString(extractText(c))
	}
	return strings.TrimSpace(text.String())
}
