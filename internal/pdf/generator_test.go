package pdf

import (
	"context"
	"errors"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-form-filler/internal/dataurl"
	ferrors "github.com/a3tai/mcp-form-filler/internal/errors"
	"github.com/a3tai/mcp-form-filler/internal/fields"
	"github.com/a3tai/mcp-form-filler/internal/form"
)

func testRegistry(t *testing.T) *fields.Registry {
	t.Helper()
	reg, err := fields.New(
		fields.Descriptor{
			Key: "name", Label: "Name", Required: true,
			Canvas: fields.Geometry{X: 10, Y: 20, FontSize: 12},
			PDF:    fields.Geometry{X: 10, Y: 30, FontSize: 12},
			EnabledInCanvas: true, EnabledInPDF: true,
		},
		fields.Descriptor{
			Key: "name_repeat", Label: "Name again", DerivedFrom: "name",
			PDF:          fields.Geometry{X: 60, Y: 90, FontSize: 8},
			EnabledInPDF: true,
		},
		fields.Descriptor{
			Key: "canvas_only", Label: "Canvas only",
			Canvas:          fields.Geometry{X: 5, Y: 5, FontSize: 10},
			EnabledInCanvas: true,
		},
		fields.Descriptor{
			Key: "sig", Label: "Signature", Kind: fields.KindSignature,
			Canvas: fields.Geometry{X: 1, Y: 1}, PDF: fields.Geometry{X: 50, Y: 20},
			Width: 80, Height: 30, PDFWidth: 100, PDFHeight: 40,
			EnabledInCanvas: true, EnabledInPDF: true,
		},
		fields.Descriptor{
			Key: "notes", Label: "Notes", Page: 2,
			PDF:          fields.Geometry{X: 20, Y: 50, FontSize: 10},
			EnabledInPDF: true,
		},
		fields.Descriptor{Key: "ref", Label: "Reference", Hidden: true},
	)
	require.NoError(t, err)
	return reg
}

func TestPlan(t *testing.T) {
	reg := testRegistry(t)
	sig := dataurl.Encode("image/png", []byte("png"))
	snap := form.NewSnapshot(map[string]string{
		"name":        "Alice",
		"name_repeat": "ignored",
		"canvas_only": "never in PDF",
		"sig":         sig,
		"notes":       "second page",
		"ref":         "R-1",
	})

	ops := Plan(reg, snap, []PageSize{{Width: 200, Height: 100}})

	black := color.RGBA{A: 0xff}
	want := []DrawOp{
		{Kind: OpText, FieldKey: "name", Page: 1, X: 10, Y: 70, FontSize: 12, Color: black, Text: "Alice"},
		{Kind: OpText, FieldKey: "name_repeat", Page: 1, X: 60, Y: 10, FontSize: 8, Color: black, Text: "Alice"},
		{Kind: OpImage, FieldKey: "sig", Page: 1, X: 50, Y: 40, Width: 100, Height: 40, ImageData: sig},
	}
	if diff := cmp.Diff(want, ops); diff != "" {
		t.Errorf("Plan() mismatch (-want +got):\n%s", diff)
	}

	twoPages := Plan(reg, snap, []PageSize{{Width: 200, Height: 100}, {Width: 300, Height: 400}})
	require.Len(t, twoPages, 4)
	assert.Equal(t, DrawOp{Kind: OpText, FieldKey: "notes", Page: 2, X: 20, Y: 350, FontSize: 10, Color: black, Text: "second page"}, twoPages[3])
}

func TestPlan_BlankValues(t *testing.T) {
	reg := testRegistry(t)
	ops := Plan(reg, form.NewSnapshot(map[string]string{"name": "   ", "sig": ""}), pages(2))
	assert.Empty(t, ops)
}

func TestGenerator_Generate(t *testing.T) {
	reg := testRegistry(t)
	loader := memLoader{"template.pdf": makePDF(t, pages(2), "TEMPLATE")}
	gen := NewGenerator(loader, "template.pdf")
	assert.Equal(t, FallbackFail, gen.Fallback())

	t.Run("text only", func(t *testing.T) {
		out, err := gen.Generate(context.Background(), reg, form.NewSnapshot(map[string]string{"name": "Alice"}))
		require.NoError(t, err)

		info, err := Inspect(out)
		require.NoError(t, err)
		assert.Equal(t, 2, info.Pages)
		assert.Equal(t, 0, info.ImageCount, "empty signature draws no image")
		assert.Contains(t, info.Text, "Alice")
	})

	t.Run("with signature", func(t *testing.T) {
		snap := form.NewSnapshot(map[string]string{
			"name": "Alice",
			"sig":  dataurl.Encode("image/png", signaturePNG(t)),
		})
		out, err := gen.Generate(context.Background(), reg, snap)
		require.NoError(t, err)

		count, err := PageCount(out)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		info, err := Inspect(out)
		require.NoError(t, err)
		assert.Equal(t, 1, info.ImageCount)
	})

	t.Run("template is not modified", func(t *testing.T) {
		before := append([]byte(nil), loader["template.pdf"]...)
		_, err := gen.Generate(context.Background(), reg, form.NewSnapshot(map[string]string{"name": "Bob"}))
		require.NoError(t, err)
		assert.Equal(t, before, loader["template.pdf"])
	})
}

func TestGenerator_SignatureErrors(t *testing.T) {
	reg := testRegistry(t)
	gen := NewGenerator(memLoader{"template.pdf": makePDF(t, pages(1))}, "template.pdf")

	tests := []struct {
		name string
		sig  string
		want error
	}{
		{name: "no comma", sig: "data:image/png;base64", want: dataurl.ErrMalformed},
		{name: "unsupported mime", sig: dataurl.Encode("image/gif", []byte("GIF89a")), want: dataurl.ErrUnsupportedFormat},
		{name: "not an image", sig: dataurl.Encode("image/png", []byte("definitely not png")), want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gen.Generate(context.Background(), reg, form.NewSnapshot(map[string]string{"sig": tt.sig}))
			require.Error(t, err)
			assert.True(t, ferrors.IsType(err, ferrors.ErrorTypeFormat))

			var fe *ferrors.FormError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, "sig", fe.Field)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestGenerator_TemplateFallback(t *testing.T) {
	reg := testRegistry(t)
	snap := form.NewSnapshot(map[string]string{"name": "Alice", "notes": "dropped"})

	_, err := NewGenerator(memLoader{}, "missing.pdf").Generate(context.Background(), reg, snap)
	assert.True(t, ferrors.IsType(err, ferrors.ErrorTypeAssetLoad))

	_, err = NewGenerator(memLoader{"broken.pdf": []byte("%PDF-1.4 garbage")}, "broken.pdf").
		Generate(context.Background(), reg, snap)
	assert.True(t, ferrors.IsType(err, ferrors.ErrorTypeAssetLoad))

	blank := NewGenerator(memLoader{}, "missing.pdf", WithFallback(FallbackBlank))
	assert.Equal(t, FallbackBlank, blank.Fallback())
	out, err := blank.Generate(context.Background(), reg, snap)
	require.NoError(t, err)

	count, err := PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	sizes, err := PageSizes(out)
	require.NoError(t, err)
	require.Len(t, sizes, 1)
	assert.True(t, cmp.Equal(A4, sizes[0], cmpopts.EquateApprox(0, 0.5)))

	ignored := NewGenerator(memLoader{}, "missing.pdf", WithFallback("sometimes"))
	assert.Equal(t, FallbackFail, ignored.Fallback())
}

func TestGenerator_Cancelled(t *testing.T) {
	reg := testRegistry(t)
	gen := NewGenerator(memLoader{"template.pdf": makePDF(t, pages(1))}, "template.pdf", WithFallback(FallbackBlank))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gen.Generate(ctx, reg, form.NewSnapshot(map[string]string{"name": "Alice"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestToWinAnsi(t *testing.T) {
	assert.Equal(t, "Caf\xe9 \x80 ?", toWinAnsi("Café € 日"))
	assert.Equal(t, "plain", toWinAnsi("plain"))
}
