// Package render draws overlay instructions on top of the form background
// and exports the result as a downloadable image.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"
	"sync"

	_ "golang.org/x/image/webp" // background images may be WebP

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/sync/errgroup"

	"github.com/a3tai/mcp-form-filler/internal/artifact"
	"github.com/a3tai/mcp-form-filler/internal/dataurl"
	ferrors "github.com/a3tai/mcp-form-filler/internal/errors"
	"github.com/a3tai/mcp-form-filler/internal/overlay"
)

// Output formats for Export
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
)

const (
	jpegQuality     = 92
	maxCachedImages = 16
)

// Loader fetches asset bytes
type Loader interface {
	Load(ctx context.Context, ref string) ([]byte, error)
}

// Renderer owns the decoded background and redraws it with every overlay
// list it is given. Drawing is serialized; font faces are not safe for
// concurrent use.
type Renderer struct {
	loader        Loader
	backgroundRef string
	font          *opentype.Font

	mu         sync.Mutex
	background image.Image
	faces      map[float64]font.Face
	images     map[string]image.Image
}

// NewRenderer creates a renderer for the background at backgroundRef
func NewRenderer(loader Loader, backgroundRef string) (*Renderer, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return &Renderer{
		loader:        loader,
		backgroundRef: backgroundRef,
		font:          f,
		faces:         make(map[float64]font.Face),
		images:        make(map[string]image.Image),
	}, nil
}

// Load fetches and decodes the background. It is a no-op once loaded.
func (r *Renderer) Load(ctx context.Context) error {
	if r.Loaded() {
		return nil
	}
	data, err := r.loader.Load(ctx, r.backgroundRef)
	if err != nil {
		return err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return ferrors.Wrap(ferrors.ErrorTypeAssetLoad, "failed to decode background image", err)
	}

	r.mu.Lock()
	r.background = img
	r.mu.Unlock()
	return nil
}

// Loaded reports whether the background is ready
func (r *Renderer) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.background != nil
}

// Bounds returns the background size, or an empty rectangle before Load
func (r *Renderer) Bounds() image.Rectangle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.background == nil {
		return image.Rectangle{}
	}
	return r.background.Bounds()
}

// Draw paints the background and then every instruction in order, so later
// instructions cover earlier ones. It returns false without drawing while
// the background is not loaded. Image instructions whose data cannot be
// decoded are skipped.
func (r *Renderer) Draw(instructions []overlay.Instruction) (*image.RGBA, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.background == nil {
		return nil, false
	}

	bounds := r.background.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), r.background, bounds.Min, draw.Src)

	for _, in := range instructions {
		switch in.Kind {
		case overlay.KindText:
			r.drawText(dst, in)
		case overlay.KindImage:
			img, err := r.decodeLocked(in.ImageData)
			if err != nil {
				continue
			}
			drawImage(dst, in, img)
		}
	}

	return dst, true
}

// Export waits for the background and every signature bitmap to decode,
// then draws and encodes the surface.
func (r *Renderer) Export(ctx context.Context, instructions []overlay.Instruction, format string) (*artifact.Artifact, error) {
	if err := r.Load(ctx); err != nil {
		return nil, err
	}
	if err := r.Prepare(ctx, instructions); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, ferrors.Wrap(ferrors.ErrorTypeCancelled, "preview cancelled", err)
	}

	surface, ok := r.Draw(instructions)
	if !ok {
		return nil, ferrors.New(ferrors.ErrorTypeAssetLoad, "background image not loaded")
	}

	var buf bytes.Buffer
	var name, mime string
	switch format {
	case FormatJPEG:
		if err := jpeg.Encode(&buf, surface, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, fmt.Errorf("failed to encode JPEG: %w", err)
		}
		name, mime = "form-preview.jpg", artifact.MIMEJPEG
	case FormatPNG, "":
		if err := png.Encode(&buf, surface); err != nil {
			return nil, fmt.Errorf("failed to encode PNG: %w", err)
		}
		name, mime = "form-preview.png", artifact.MIMEPNG
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}

	return artifact.New(name, mime, buf.Bytes()), nil
}

// Prepare decodes every image instruction concurrently and returns once all
// of them are cached. The first decode failure is returned.
func (r *Renderer) Prepare(ctx context.Context, instructions []overlay.Instruction) error {
	images := overlay.Images(instructions)
	if len(images) == 0 {
		return nil
	}

	decoded := make([]image.Image, len(images))
	g, gctx := errgroup.WithContext(ctx)
	for i, in := range images {
		i, in := i, in
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := decodeDataURL(in.ImageData)
			if err != nil {
				return ferrors.Wrap(ferrors.ErrorTypeFormat, "failed to decode signature", err).WithField(in.FieldKey)
			}
			decoded[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, in := range images {
		r.cacheLocked(in.ImageData, decoded[i])
	}
	return nil
}

func (r *Renderer) drawText(dst *image.RGBA, in overlay.Instruction) {
	if in.FontSize <= 0 {
		return
	}
	face, err := r.faceLocked(in.FontSize)
	if err != nil {
		return
	}
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(in.Color),
		Face: face,
		Dot:  fixed.P(int(math.Round(in.X)), int(math.Round(in.Y))),
	}
	d.DrawString(in.Content)
}

func drawImage(dst *image.RGBA, in overlay.Instruction, img image.Image) {
	x0, y0 := int(math.Round(in.X)), int(math.Round(in.Y))
	w, h := int(math.Round(in.Width)), int(math.Round(in.Height))
	if w <= 0 || h <= 0 {
		return
	}
	rect := image.Rect(x0, y0, x0+w, y0+h)
	draw.CatmullRom.Scale(dst, rect, img, img.Bounds(), draw.Over, nil)
}

func (r *Renderer) faceLocked(size float64) (font.Face, error) {
	if face, ok := r.faces[size]; ok {
		return face, nil
	}
	face, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	r.faces[size] = face
	return face, nil
}

func (r *Renderer) decodeLocked(url string) (image.Image, error) {
	if img, ok := r.images[url]; ok {
		return img, nil
	}
	img, err := decodeDataURL(url)
	if err != nil {
		return nil, err
	}
	r.cacheLocked(url, img)
	return img, nil
}

func (r *Renderer) cacheLocked(url string, img image.Image) {
	if len(r.images) >= maxCachedImages {
		r.images = make(map[string]image.Image)
	}
	r.images[url] = img
}

func decodeDataURL(url string) (image.Image, error) {
	parsed, err := dataurl.Decode(url)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(parsed.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s image: %w", parsed.Format, err)
	}
	return img, nil
}
