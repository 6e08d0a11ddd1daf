package fields

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacyRegistry = `
fields:
  - key: name
    label: Name
    required: true
    x: 10
    y: 20
    fontSize: 12
    xPdf: 10
    yPdf: 30
  - key: origin
    label: Origin only on PDF
    x: 0
    y: 0
    fontSize: 12
    xPdf: 50
    yPdf: 60
  - key: unsized
    label: No font
    x: 5
    y: 5
  - key: signature
    kind: signature
    x: 100
    y: 200
    width: 120
    height: 40
  - key: forced
    x: 0
    y: 0
    fontSize: 8
    enabledInCanvas: true
    enabledInPdf: false
`

func TestParse_SentinelInference(t *testing.T) {
	r, err := Parse([]byte(legacyRegistry))
	require.NoError(t, err)

	tests := []struct {
		key        string
		wantCanvas bool
		wantPDF    bool
	}{
		{key: "name", wantCanvas: true, wantPDF: true},
		{key: "origin", wantCanvas: false, wantPDF: true},
		{key: "unsized", wantCanvas: false, wantPDF: false},
		{key: "signature", wantCanvas: true, wantPDF: true},
		{key: "forced", wantCanvas: true, wantPDF: false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			d, ok := r.Lookup(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.wantCanvas, d.EnabledInCanvas, "canvas")
			assert.Equal(t, tt.wantPDF, d.EnabledInPDF, "pdf")
		})
	}
}

func TestParse_PDFGeometryDefaultsToCanvas(t *testing.T) {
	r, err := Parse([]byte(legacyRegistry))
	require.NoError(t, err)

	name, _ := r.Lookup("name")
	assert.Equal(t, Geometry{X: 10, Y: 20, FontSize: 12}, name.Canvas)
	assert.Equal(t, Geometry{X: 10, Y: 30, FontSize: 12}, name.PDF, "unset fontSizePdf falls back to fontSize")

	sig, _ := r.Lookup("signature")
	assert.Equal(t, Geometry{X: 100, Y: 200}, sig.PDF)
	assert.Equal(t, 120.0, sig.PDFWidth)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("fields: [unterminated"))
	assert.Error(t, err)

	_, err = Parse([]byte("fields: []"))
	assert.Error(t, err)
}

func TestLoadFileAndMarshal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fields.yaml")

	data, err := Marshal(Default())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Fields(), loaded.Fields())

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
