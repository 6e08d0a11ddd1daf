// Package fields holds the static registry of form field descriptors that
// drives canvas overlays, PDF drawing and the email body.
package fields

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Kind identifies the input type of a field
type Kind string

const (
	KindText      Kind = "text"
	KindNumber    Kind = "number"
	KindEmail     Kind = "email"
	KindTel       Kind = "tel"
	KindDate      Kind = "date"
	KindSignature Kind = "signature"
)

// DefaultColor is used for text overlays when a descriptor has no color
const DefaultColor = "#000000"

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindNumber, KindEmail, KindTel, KindDate, KindSignature:
		return true
	default:
		return false
	}
}

// Geometry places a field in one rendering context.
// Y is measured from the top edge; for text it is the baseline.
type Geometry struct {
	X        float64 `json:"x" yaml:"x"`
	Y        float64 `json:"y" yaml:"y"`
	FontSize float64 `json:"font_size" yaml:"fontSize"`
}

// Descriptor describes one form field: identity, validation and its
// canvas and PDF geometry.
type Descriptor struct {
	Key         string   `json:"key"`
	Label       string   `json:"label"`
	Placeholder string   `json:"placeholder,omitempty"`
	Kind        Kind     `json:"kind"`
	Required    bool     `json:"required"`
	Hidden      bool     `json:"hidden"`
	Canvas      Geometry `json:"canvas"`
	PDF         Geometry `json:"pdf"`
	Page        int      `json:"page"`
	Width       float64  `json:"width,omitempty"`
	Height      float64  `json:"height,omitempty"`
	PDFWidth    float64  `json:"pdf_width,omitempty"`
	PDFHeight   float64  `json:"pdf_height,omitempty"`
	Color       string   `json:"color,omitempty"`

	// DerivedFrom names the field whose value this field displays.
	DerivedFrom string `json:"derived_from,omitempty"`

	EnabledInCanvas bool `json:"enabled_in_canvas"`
	EnabledInPDF    bool `json:"enabled_in_pdf"`
}

// IsSignature reports whether the field carries an embedded image
func (d Descriptor) IsSignature() bool {
	return d.Kind == KindSignature
}

// IsDerived reports whether the field mirrors another field's value
func (d Descriptor) IsDerived() bool {
	return d.DerivedFrom != ""
}

// RGBA returns the text color, falling back to black on a bad value
func (d Descriptor) RGBA() color.RGBA {
	c, err := ParseColor(d.Color)
	if err != nil {
		return color.RGBA{A: 0xff}
	}
	return c
}

func (d *Descriptor) applyDefaults() {
	if d.Page < 1 {
		d.Page = 1
	}
	if d.Color == "" {
		d.Color = DefaultColor
	}
	if d.Kind == "" {
		d.Kind = KindText
	}
	if d.PDFWidth == 0 {
		d.PDFWidth = d.Width
	}
	if d.PDFHeight == 0 {
		d.PDFHeight = d.Height
	}
}

// ParseColor parses #RGB or #RRGGBB hex colors
func ParseColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
