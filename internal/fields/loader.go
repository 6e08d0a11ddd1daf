package fields

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileDescriptor is the on-disk shape of a descriptor. Pointers mark values
// that fall back to something else when absent.
type fileDescriptor struct {
	Key             string   `yaml:"key"`
	Label           string   `yaml:"label"`
	Placeholder     string   `yaml:"placeholder"`
	Kind            Kind     `yaml:"kind"`
	Required        bool     `yaml:"required"`
	Hidden          bool     `yaml:"hidden"`
	X               float64  `yaml:"x"`
	Y               float64  `yaml:"y"`
	FontSize        float64  `yaml:"fontSize"`
	XPdf            *float64 `yaml:"xPdf"`
	YPdf            *float64 `yaml:"yPdf"`
	FontSizePdf     *float64 `yaml:"fontSizePdf"`
	Page            int      `yaml:"page"`
	Width           float64  `yaml:"width"`
	Height          float64  `yaml:"height"`
	WidthPdf        float64  `yaml:"widthPdf"`
	HeightPdf       float64  `yaml:"heightPdf"`
	Color           string   `yaml:"color"`
	DerivedFrom     string   `yaml:"derivedFrom"`
	EnabledInCanvas *bool    `yaml:"enabledInCanvas"`
	EnabledInPDF    *bool    `yaml:"enabledInPdf"`
}

type registryFile struct {
	Fields []fileDescriptor `yaml:"fields"`
}

// LoadFile reads a YAML registry from disk
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read field registry %s: %w", path, err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load field registry %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes a YAML registry.
//
// Descriptors that omit enabledInCanvas / enabledInPdf get them inferred from
// the legacy zero sentinels: a zero font size or an origin of (0,0) disables
// the field in that context.
func Parse(data []byte) (*Registry, error) {
	var rf registryFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("invalid registry YAML: %w", err)
	}

	descs := make([]Descriptor, 0, len(rf.Fields))
	for _, fd := range rf.Fields {
		descs = append(descs, fd.descriptor())
	}
	return New(descs...)
}

func (fd fileDescriptor) descriptor() Descriptor {
	d := Descriptor{
		Key:         fd.Key,
		Label:       fd.Label,
		Placeholder: fd.Placeholder,
		Kind:        fd.Kind,
		Required:    fd.Required,
		Hidden:      fd.Hidden,
		Canvas:      Geometry{X: fd.X, Y: fd.Y, FontSize: fd.FontSize},
		PDF:         Geometry{X: fd.X, Y: fd.Y, FontSize: fd.FontSize},
		Page:        fd.Page,
		Width:       fd.Width,
		Height:      fd.Height,
		PDFWidth:    fd.WidthPdf,
		PDFHeight:   fd.HeightPdf,
		Color:       fd.Color,
		DerivedFrom: fd.DerivedFrom,
	}
	if d.Kind == "" {
		d.Kind = KindText
	}
	if fd.XPdf != nil {
		d.PDF.X = *fd.XPdf
	}
	if fd.YPdf != nil {
		d.PDF.Y = *fd.YPdf
	}
	if fd.FontSizePdf != nil {
		d.PDF.FontSize = *fd.FontSizePdf
	}

	if fd.EnabledInCanvas != nil {
		d.EnabledInCanvas = *fd.EnabledInCanvas
	} else {
		d.EnabledInCanvas = !sentinelDisabled(d, d.Canvas, d.Width, d.Height)
	}
	if fd.EnabledInPDF != nil {
		d.EnabledInPDF = *fd.EnabledInPDF
	} else {
		d.EnabledInPDF = !sentinelDisabled(d, d.PDF, orDefault(d.PDFWidth, d.Width), orDefault(d.PDFHeight, d.Height))
	}
	return d
}

// sentinelDisabled applies the legacy "0 means do not draw" convention.
// Signature fields have no font size, so their box size stands in for it.
func sentinelDisabled(d Descriptor, g Geometry, width, height float64) bool {
	if g.X == 0 && g.Y == 0 {
		return true
	}
	if d.IsSignature() {
		return width == 0 || height == 0
	}
	return g.FontSize == 0
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// Marshal encodes a registry back to YAML with explicit enable flags
func Marshal(r *Registry) ([]byte, error) {
	rf := registryFile{Fields: make([]fileDescriptor, 0, r.Len())}
	for _, d := range r.Fields() {
		xPdf, yPdf, fsPdf := d.PDF.X, d.PDF.Y, d.PDF.FontSize
		canvas, pdf := d.EnabledInCanvas, d.EnabledInPDF
		rf.Fields = append(rf.Fields, fileDescriptor{
			Key:             d.Key,
			Label:           d.Label,
			Placeholder:     d.Placeholder,
			Kind:            d.Kind,
			Required:        d.Required,
			Hidden:          d.Hidden,
			X:               d.Canvas.X,
			Y:               d.Canvas.Y,
			FontSize:        d.Canvas.FontSize,
			XPdf:            &xPdf,
			YPdf:            &yPdf,
			FontSizePdf:     &fsPdf,
			Page:            d.Page,
			Width:           d.Width,
			Height:          d.Height,
			WidthPdf:        d.PDFWidth,
			HeightPdf:       d.PDFHeight,
			Color:           d.Color,
			DerivedFrom:     d.DerivedFrom,
			EnabledInCanvas: &canvas,
			EnabledInPDF:    &pdf,
		})
	}
	return yaml.Marshal(rf)
}
