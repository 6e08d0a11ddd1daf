package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // signature formats
	_ "image/png"
	"io"
	"strings"

	"codeberg.org/go-pdf/fpdf"
	"codeberg.org/go-pdf/fpdf/contrib/gofpdi"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/charmap"

	"github.com/a3tai/mcp-form-filler/internal/dataurl"
	ferrors "github.com/a3tai/mcp-form-filler/internal/errors"
	"github.com/a3tai/mcp-form-filler/internal/fields"
	"github.com/a3tai/mcp-form-filler/internal/form"
)

// FallbackPolicy decides what happens when the template cannot be loaded
type FallbackPolicy string

const (
	// FallbackFail reports template load failures to the caller
	FallbackFail FallbackPolicy = "fail"
	// FallbackBlank generates onto a single blank A4 page instead
	FallbackBlank FallbackPolicy = "blank"
)

// Valid reports whether p is a known policy
func (p FallbackPolicy) Valid() bool {
	return p == FallbackFail || p == FallbackBlank
}

const textFont = "Helvetica"

// Loader fetches asset bytes
type Loader interface {
	Load(ctx context.Context, ref string) ([]byte, error)
}

// Generator fills the PDF template with form values
type Generator struct {
	loader      Loader
	templateRef string
	fallback    FallbackPolicy
}

// GeneratorOption configures a Generator
type GeneratorOption func(*Generator)

// WithFallback sets the template load failure policy
func WithFallback(p FallbackPolicy) GeneratorOption {
	return func(g *Generator) {
		if p.Valid() {
			g.fallback = p
		}
	}
}

// NewGenerator creates a generator drawing onto the template at templateRef
func NewGenerator(loader Loader, templateRef string, opts ...GeneratorOption) *Generator {
	g := &Generator{
		loader:      loader,
		templateRef: templateRef,
		fallback:    FallbackFail,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Fallback returns the configured template failure policy
func (g *Generator) Fallback() FallbackPolicy {
	return g.fallback
}

// decodedImage is a signature ready for embedding
type decodedImage struct {
	data      []byte
	imageType string
}

// Generate draws every planned op onto a fresh copy of the template and
// returns the serialized document. Pages are neither added nor removed.
func (g *Generator) Generate(ctx context.Context, reg *fields.Registry, snap form.Snapshot) ([]byte, error) {
	tmpl, pages, err := g.loadTemplate(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkCancelled(ctx, "generation cancelled after template load"); err != nil {
		return nil, err
	}

	ops := Plan(reg, snap, pages)

	images, err := decodeSignatures(ctx, ops)
	if err != nil {
		return nil, err
	}
	if err := checkCancelled(ctx, "generation cancelled after signature decode"); err != nil {
		return nil, err
	}

	return render(tmpl, pages, ops, images)
}

// Pages returns the page sizes the generator would draw on
func (g *Generator) Pages(ctx context.Context) ([]PageSize, error) {
	_, pages, err := g.loadTemplate(ctx)
	return pages, err
}

func (g *Generator) loadTemplate(ctx context.Context) ([]byte, []PageSize, error) {
	data, err := g.loader.Load(ctx, g.templateRef)
	if err == nil {
		var pages []PageSize
		pages, err = PageSizes(data)
		if err == nil {
			return data, pages, nil
		}
		err = ferrors.Wrap(ferrors.ErrorTypeAssetLoad, "failed to parse PDF template", err)
	}

	if g.fallback == FallbackBlank && !ferrors.IsType(err, ferrors.ErrorTypeCancelled) && ctx.Err() == nil {
		return nil, []PageSize{A4}, nil
	}
	return nil, nil, err
}

// PageSizes returns the size of every page in data
func PageSizes(data []byte) (pages []PageSize, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("failed to read page sizes: %v", r)
		}
	}()

	dims, err := api.PageDims(bytes.NewReader(data), newConfiguration())
	if err != nil {
		return nil, err
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("document has no pages")
	}
	pages = make([]PageSize, len(dims))
	for i, d := range dims {
		pages[i] = PageSize{Width: d.Width, Height: d.Height}
	}
	return pages, nil
}

// decodeSignatures decodes every image op concurrently; all must succeed
// before any page is drawn.
func decodeSignatures(ctx context.Context, ops []DrawOp) (map[string]decodedImage, error) {
	var imageOps []DrawOp
	for _, op := range ops {
		if op.Kind == OpImage {
			imageOps = append(imageOps, op)
		}
	}
	if len(imageOps) == 0 {
		return nil, nil
	}

	decoded := make([]decodedImage, len(imageOps))
	g, gctx := errgroup.WithContext(ctx)
	for i, op := range imageOps {
		i, op := i, op
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return ferrors.Wrap(ferrors.ErrorTypeCancelled, "signature decode cancelled", err)
			}
			img, err := decodeSignature(op.ImageData)
			if err != nil {
				return ferrors.Wrap(ferrors.ErrorTypeFormat, "failed to decode signature", err).WithField(op.FieldKey)
			}
			decoded[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]decodedImage, len(imageOps))
	for i, op := range imageOps {
		out[op.FieldKey] = decoded[i]
	}
	return out, nil
}

func decodeSignature(url string) (decodedImage, error) {
	parsed, err := dataurl.Decode(url)
	if err != nil {
		return decodedImage{}, err
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(parsed.Data)); err != nil {
		return decodedImage{}, fmt.Errorf("invalid %s signature image: %w", parsed.Format, err)
	}
	imageType := "PNG"
	if parsed.Format == dataurl.FormatJPEG {
		imageType = "JPG"
	}
	return decodedImage{data: parsed.Data, imageType: imageType}, nil
}

// render builds the output with fpdf, importing template pages with gofpdi.
// A nil template produces blank pages of the given sizes.
func render(tmpl []byte, pages []PageSize, ops []DrawOp, images map[string]decodedImage) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = ferrors.Newf(ferrors.ErrorTypeFormat, "failed to render PDF: %v", r)
		}
	}()

	doc := fpdf.New("P", "pt", "", "")
	doc.SetAutoPageBreak(false, 0)
	doc.SetCreator("mcp-form-filler", true)

	var importer *gofpdi.Importer
	var rs io.ReadSeeker
	if tmpl != nil {
		importer = gofpdi.NewImporter()
		rs = io.ReadSeeker(bytes.NewReader(tmpl))
	}

	for i, page := range pages {
		pageNum := i + 1
		doc.AddPageFormat("P", fpdf.SizeType{Wd: page.Width, Ht: page.Height})

		if importer != nil {
			tpl := importer.ImportPageFromStream(doc, &rs, pageNum, "/MediaBox")
			importer.UseImportedTemplate(doc, tpl, 0, 0, page.Width, page.Height)
		}

		for _, op := range opsForPage(ops, pageNum) {
			switch op.Kind {
			case OpText:
				drawText(doc, page, op)
			case OpImage:
				img, ok := images[op.FieldKey]
				if !ok {
					continue
				}
				drawImage(doc, page, op, img)
			}
		}
	}

	if err := doc.Error(); err != nil {
		return nil, ferrors.Wrap(ferrors.ErrorTypeFormat, "failed to render PDF", err)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, ferrors.Wrap(ferrors.ErrorTypeFormat, "failed to serialize PDF", err)
	}
	return buf.Bytes(), nil
}

// fpdf measures from the top edge; ops are bottom-left based
func drawText(doc *fpdf.Fpdf, page PageSize, op DrawOp) {
	if op.FontSize <= 0 {
		return
	}
	doc.SetFont(textFont, "", op.FontSize)
	doc.SetTextColor(int(op.Color.R), int(op.Color.G), int(op.Color.B))
	doc.Text(op.X, page.Height-op.Y, toWinAnsi(op.Text))
}

func drawImage(doc *fpdf.Fpdf, page PageSize, op DrawOp, img decodedImage) {
	name := "signature-" + op.FieldKey
	opts := fpdf.ImageOptions{ImageType: img.imageType}
	doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.data))
	doc.ImageOptions(name, op.X, page.Height-op.Y-op.Height, op.Width, op.Height, false, opts, 0, "")
}

// toWinAnsi encodes s for the core fonts, which only cover Windows-1252
func toWinAnsi(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if c, ok := charmap.Windows1252.EncodeRune(r); ok {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('?')
	}
	return b.String()
}

func checkCancelled(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return ferrors.Wrap(ferrors.ErrorTypeCancelled, message, err)
	}
	return nil
}
