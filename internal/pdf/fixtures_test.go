package pdf

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"codeberg.org/go-pdf/fpdf"
	"github.com/stretchr/testify/require"

	ferrors "github.com/a3tai/mcp-form-filler/internal/errors"
)

// makePDF builds a document with one page per size, each page labelled
// with the matching entry of labels
func makePDF(t *testing.T, sizes []PageSize, labels ...string) []byte {
	t.Helper()

	doc := fpdf.New("P", "pt", "", "")
	doc.SetAutoPageBreak(false, 0)
	doc.SetFont("Helvetica", "", 12)
	for i, size := range sizes {
		doc.AddPageFormat("P", fpdf.SizeType{Wd: size.Width, Ht: size.Height})
		if i < len(labels) {
			doc.Text(20, 40, labels[i])
		}
	}

	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func pages(n int) []PageSize {
	out := make([]PageSize, n)
	for i := range out {
		out[i] = A4
	}
	return out
}

func signaturePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 20, 10))
	for x := 0; x < 20; x++ {
		img.Set(x, 5, color.NRGBA{A: 0xff})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type memLoader map[string][]byte

func (m memLoader) Load(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, ferrors.Wrap(ferrors.ErrorTypeAssetLoad, "failed to load asset "+ref, err)
	}
	data, ok := m[ref]
	if !ok {
		return nil, ferrors.New(ferrors.ErrorTypeAssetLoad, "failed to load asset "+ref)
	}
	return data, nil
}
