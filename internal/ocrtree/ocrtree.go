// Package ocrtree defines the engine-agnostic OCR result tree that both the
// hOCR parser and any OcrEngine adapter (for example Google Document AI)
// build, so the renderer and grafter never depend on a source format.
package ocrtree

import "github.com/ocrchestra/ocrchestra-core/internal/geometry"

// Tag identifies the structural role of an Element.
type Tag int

const (
	TagPage Tag = iota
	TagParagraph
	TagLine
	TagHeader
	TagCaption
	TagTextFloat
	TagWord
)

func (t Tag) String() string {
	switch t {
	case TagPage:
		return "page"
	case TagParagraph:
		return "paragraph"
	case TagLine:
		return "line"
	case TagHeader:
		return "header"
	case TagCaption:
		return "caption"
	case TagTextFloat:
		return "textfloat"
	case TagWord:
		return "word"
	default:
		return "unknown"
	}
}

// LineTags returns the set of tags treated as a "line" for rendering
// purposes: ordinary body lines plus headers, captions, and floating text
// blocks, all of which carry words directly and get one BT block each.
func LineTags() map[Tag]bool {
	return map[Tag]bool{
		TagLine:      true,
		TagHeader:    true,
		TagCaption:   true,
		TagTextFloat: true,
	}
}

// Element is one node of the OCR result tree.
type Element struct {
	Tag      Tag
	BBox     geometry.BoundingBox
	Children []*Element

	// Populated on word elements.
	Text       string
	Confidence float64
	FontHint   string

	// Populated on line-like elements (Tag in LineTags()).
	Baseline  *geometry.Baseline
	TextAngle float64 // degrees, clockwise

	// Populated on page elements.
	PageNumber int
	DPI        geometry.Resolution
	ImageName  string

	Language  string // BCP-47 or ISO 639-ish hint, may be empty
	Direction string // "ltr", "rtl", or "" (inherit)
}

// NewElement constructs an Element with the given tag and box.
func NewElement(tag Tag, bbox geometry.BoundingBox) *Element {
	return &Element{Tag: tag, BBox: bbox}
}

// AddChild appends a child element and returns it for chaining.
func (e *Element) AddChild(child *Element) *Element {
	e.Children = append(e.Children, child)
	return child
}

// Words returns all TagWord descendants of e, in document order.
func (e *Element) Words() []*Element {
	var out []*Element
	var walk func(*Element)
	walk = func(n *Element) {
		if n.Tag == TagWord {
			out = append(out, n)
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(e)
	return out
}

// Lines returns all descendants whose tag is in LineTags(), in document
// order. For pages whose hOCR has words but no line element, the hOCR
// parser wraps all the page's words in one synthetic TagLine, so such pages
// yield that single line here.
func (e *Element) Lines() []*Element {
	lineTags := LineTags()
	var out []*Element
	var walk func(*Element)
	walk = func(n *Element) {
		if lineTags[n.Tag] {
			out = append(out, n)
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(e)
	return out
}

// EffectiveLanguage returns own if set, otherwise inherited (trees here are
// parent-pointer-free, so callers that need inheritance track the chain
// during traversal and call this with the nearest ancestor language already
// resolved).
func EffectiveLanguage(own, inherited string) string {
	if own != "" {
		return own
	}
	return inherited
}
