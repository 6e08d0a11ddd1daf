package pdf

import (
	"image/color"
	"strings"

	"github.com/a3tai/mcp-form-filler/internal/fields"
	"github.com/a3tai/mcp-form-filler/internal/form"
)

// PageSize is a page's width and height in points
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// A4 is used for the blank fallback document
var A4 = PageSize{Width: 595.28, Height: 841.89}

// OpKind distinguishes draw operations
type OpKind string

const (
	OpText  OpKind = "text"
	OpImage OpKind = "image"
)

// DrawOp is one drawing command in PDF user space, origin at the bottom-left
// corner of the page. Text ops place the baseline at (X, Y); image ops place
// the lower-left corner of a Width x Height box at (X, Y).
type DrawOp struct {
	Kind     OpKind     `json:"kind"`
	FieldKey string     `json:"field_key"`
	Page     int        `json:"page"`
	X        float64    `json:"x"`
	Y        float64    `json:"y"`
	FontSize float64    `json:"font_size,omitempty"`
	Color    color.RGBA `json:"color"`
	Text     string     `json:"text,omitempty"`
	Width    float64    `json:"width,omitempty"`
	Height   float64    `json:"height,omitempty"`

	ImageData string `json:"-"`
}

// Plan converts the registry's PDF geometry into draw ops for the given
// pages. Field coordinates are measured from the top edge, so Y is flipped
// against the height of the field's page. Fields on pages the document does
// not have are dropped.
func Plan(reg *fields.Registry, snap form.Snapshot, pages []PageSize) []DrawOp {
	ops := make([]DrawOp, 0, reg.Len())

	for _, d := range reg.Fields() {
		if d.Hidden || !d.EnabledInPDF {
			continue
		}
		if d.Page < 1 || d.Page > len(pages) {
			continue
		}
		pageHeight := pages[d.Page-1].Height

		value := strings.TrimSpace(snap.Resolve(d))
		if value == "" {
			continue
		}

		if d.IsSignature() {
			ops = append(ops, DrawOp{
				Kind:      OpImage,
				FieldKey:  d.Key,
				Page:      d.Page,
				X:         d.PDF.X,
				Y:         pageHeight - d.PDF.Y - d.PDFHeight,
				Width:     d.PDFWidth,
				Height:    d.PDFHeight,
				ImageData: value,
			})
			continue
		}

		ops = append(ops, DrawOp{
			Kind:     OpText,
			FieldKey: d.Key,
			Page:     d.Page,
			X:        d.PDF.X,
			Y:        pageHeight - d.PDF.Y,
			FontSize: d.PDF.FontSize,
			Color:    d.RGBA(),
			Text:     value,
		})
	}

	return ops
}

// opsForPage returns the ops drawn on page, preserving order
func opsForPage(ops []DrawOp, page int) []DrawOp {
	var out []DrawOp
	for _, op := range ops {
		if op.Page == page {
			out = append(out, op)
		}
	}
	return out
}
