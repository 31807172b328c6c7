package graft

import (
	"fmt"

	"github.com/unidoc/unipdf/v3/contentstream"
	"github.com/unidoc/unipdf/v3/core"
	"github.com/unidoc/unipdf/v3/model"
)

// StripInvisibleText rewrites page's content stream dropping any BT..ET
// text object whose render mode (Tr) is 3 (invisible), mirroring
// strip_invisible_text. Used when redoing OCR on a page that already
// carries a prior invisible text layer, so the old and new layers don't
// overlap.
func StripInvisibleText(page *model.PdfPage) error {
	content, err := page.GetAllContentStreams()
	if err != nil {
		return fmt.Errorf("graft: read content stream: %w", err)
	}

	ops, err := contentstream.NewContentStreamParser(content).Parse()
	if err != nil {
		return fmt.Errorf("graft: parse content stream: %w", err)
	}

	var kept contentstream.ContentStreamOperations
	var textObj contentstream.ContentStreamOperations
	inText := false
	renderMode := int64(0)

	for _, op := range *ops {
		if !inText {
			if op.Operand == "BT" {
				inText = true
				renderMode = 0
				textObj = append(textObj, op)
				continue
			}
			kept = append(kept, op)
			continue
		}

		if op.Operand == "Tr" && len(op.Params) > 0 {
			if n, ok := op.Params[0].(*core.PdfObjectInteger); ok {
				renderMode = int64(*n)
			}
		}
		textObj = append(textObj, op)
		if op.Operand == "ET" {
			inText = false
			if renderMode != 3 {
				kept = append(kept, textObj...)
			}
			textObj = nil
		}
	}

	return page.SetContentStreams([]string{string(kept.Bytes())}, core.NewFlateEncoder())
}
