// Package overlay turns form values into the draw instructions of the
// canvas preview.
package overlay

import (
	"image/color"
	"strings"

	"github.com/a3tai/mcp-form-filler/internal/dataurl"
	"github.com/a3tai/mcp-form-filler/internal/fields"
	"github.com/a3tai/mcp-form-filler/internal/form"
)

// Kind distinguishes the instruction variants
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Instruction is one draw command in canvas space (top-left origin).
// Text instructions use X, Y as the baseline origin; image instructions use
// them as the top-left corner of a Width x Height box.
type Instruction struct {
	Kind     Kind       `json:"kind"`
	FieldKey string     `json:"field_key"`
	X        float64    `json:"x"`
	Y        float64    `json:"y"`
	FontSize float64    `json:"font_size,omitempty"`
	Color    color.RGBA `json:"color"`
	Content  string     `json:"content,omitempty"`
	Width    float64    `json:"width,omitempty"`
	Height   float64    `json:"height,omitempty"`

	// ImageData is the signature data URL
	ImageData string `json:"image_data,omitempty"`
}

// Build maps the snapshot onto the registry, in registry order.
// Fields that are hidden, disabled on the canvas, blank, or (for signatures)
// not an embedded image produce no instruction.
func Build(reg *fields.Registry, snap form.Snapshot) []Instruction {
	out := make([]Instruction, 0, reg.Len())

	for _, d := range reg.Fields() {
		if d.Hidden || !d.EnabledInCanvas {
			continue
		}

		value := snap.Resolve(d)

		if d.IsSignature() {
			if !dataurl.IsImage(value) {
				continue
			}
			out = append(out, Instruction{
				Kind:      KindImage,
				FieldKey:  d.Key,
				X:         d.Canvas.X,
				Y:         d.Canvas.Y,
				Width:     d.Width,
				Height:    d.Height,
				ImageData: value,
			})
			continue
		}

		content := strings.TrimSpace(value)
		if content == "" {
			continue
		}
		out = append(out, Instruction{
			Kind:     KindText,
			FieldKey: d.Key,
			X:        d.Canvas.X,
			Y:        d.Canvas.Y,
			FontSize: d.Canvas.FontSize,
			Color:    d.RGBA(),
			Content:  content,
		})
	}

	return out
}

// Images returns only the image instructions
func Images(instructions []Instruction) []Instruction {
	var out []Instruction
	for _, in := range instructions {
		if in.Kind == KindImage {
			out = append(out, in)
		}
	}
	return out
}
