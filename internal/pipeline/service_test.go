package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"codeberg.org/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-form-filler/internal/dataurl"
	"github.com/a3tai/mcp-form-filler/internal/dispatch"
	ferrors "github.com/a3tai/mcp-form-filler/internal/errors"
	"github.com/a3tai/mcp-form-filler/internal/fields"
	"github.com/a3tai/mcp-form-filler/internal/form"
	"github.com/a3tai/mcp-form-filler/internal/pdf"
)

type memLoader map[string][]byte

func (m memLoader) Load(_ context.Context, ref string) ([]byte, error) {
	data, ok := m[ref]
	if !ok {
		return nil, ferrors.New(ferrors.ErrorTypeAssetLoad, "missing asset "+ref)
	}
	return data, nil
}

type fakeSender struct {
	mu       sync.Mutex
	payloads []*dispatch.Payload
	err      error
}

func (f *fakeSender) Send(_ context.Context, p *dispatch.Payload) (*dispatch.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.payloads = append(f.payloads, p)
	return &dispatch.SendResult{StatusCode: 200, ID: "msg-1"}, nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func templatePDF(t *testing.T, pages int) []byte {
	t.Helper()
	doc := fpdf.New("P", "pt", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	for i := 0; i < pages; i++ {
		doc.AddPage()
		doc.Text(40, 40, "Enrolment form")
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testRegistry(t *testing.T) *fields.Registry {
	t.Helper()
	reg, err := fields.New(
		fields.Descriptor{
			Key: "name", Label: "Name", Required: true,
			Canvas: fields.Geometry{X: 10, Y: 30, FontSize: 16}, PDF: fields.Geometry{X: 100, Y: 150, FontSize: 12},
			EnabledInCanvas: true, EnabledInPDF: true,
		},
		fields.Descriptor{
			Key: "email", Label: "Email", Kind: fields.KindEmail, Required: true,
			Canvas: fields.Geometry{X: 10, Y: 60, FontSize: 16}, PDF: fields.Geometry{X: 100, Y: 180, FontSize: 12},
			EnabledInCanvas: true, EnabledInPDF: true,
		},
		fields.Descriptor{
			Key: "name_repeat", Label: "Name again", DerivedFrom: "name",
			PDF: fields.Geometry{X: 300, Y: 700, FontSize: 9}, EnabledInPDF: true,
		},
		fields.Descriptor{
			Key: "sig", Label: "Signature", Kind: fields.KindSignature, Required: true,
			Canvas: fields.Geometry{X: 150, Y: 100}, PDF: fields.Geometry{X: 300, Y: 600},
			Width: 100, Height: 50, PDFWidth: 120, PDFHeight: 60,
			EnabledInCanvas: true, EnabledInPDF: true,
		},
	)
	require.NoError(t, err)
	return reg
}

type fixture struct {
	svc    *Service
	sender *fakeSender
	sig    string
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	loader := memLoader{
		"template.pdf": templatePDF(t, 1),
		"bg.png":       pngBytes(t, 300, 200, color.White),
	}
	cfg := Config{
		Registry:      testRegistry(t),
		TemplateRef:   "template.pdf",
		BackgroundRef: "bg.png",
		DebounceDelay: 10 * time.Millisecond,
		MailTo:        "office@example.org",
		MailSubject:   "Enrolment",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	sender := &fakeSender{}
	svc, err := NewService(cfg, loader, sender)
	require.NoError(t, err)
	return &fixture{
		svc:    svc,
		sender: sender,
		sig:    dataurl.Encode("image/png", pngBytes(t, 20, 10, color.Black)),
	}
}

func (f *fixture) fill(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.svc.SetField(id, "name", "Alice"))
	require.NoError(t, f.svc.SetField(id, "email", "alice@example.org"))
	require.NoError(t, f.svc.SetSignature(id, "sig", f.sig))
}

func TestNewService_Errors(t *testing.T) {
	_, err := NewService(Config{}, memLoader{}, nil)
	assert.Error(t, err)

	_, err = NewService(Config{Registry: testRegistry(t)}, memLoader{}, nil)
	assert.Error(t, err, "template required without blank fallback")

	svc, err := NewService(Config{Registry: testRegistry(t), Fallback: pdf.FallbackBlank}, memLoader{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPDFFilename, svc.Config().PDFFilename)
}

func TestService_SetField(t *testing.T) {
	f := newFixture(t, nil)
	sess := f.svc.NewSession()

	err := f.svc.SetField(sess.ID, "unknown", "x")
	assert.True(t, ferrors.IsType(err, ferrors.ErrorTypeValidation))

	err = f.svc.SetField(sess.ID, "name_repeat", "x")
	assert.True(t, ferrors.IsType(err, ferrors.ErrorTypeValidation))

	err = f.svc.SetSignature(sess.ID, "name", f.sig)
	assert.True(t, ferrors.IsType(err, ferrors.ErrorTypeValidation))

	err = f.svc.SetSignature(sess.ID, "sig", "data:image/png;base64")
	assert.True(t, ferrors.IsType(err, ferrors.ErrorTypeFormat))
	assert.ErrorIs(t, err, dataurl.ErrMalformed)

	err = f.svc.SetField("missing", "name", "x")
	assert.ErrorIs(t, err, form.ErrSessionNotFound)

	require.NoError(t, f.svc.SetField(sess.ID, "name", "Alice"))
	require.NoError(t, f.svc.SetField(sess.ID, "sig", f.sig), "signature keys route to SetSignature")
	assert.Equal(t, "Alice", sess.State.Get("name"))
	assert.Equal(t, f.sig, sess.State.Get("sig"))

	overlays, err := f.svc.Overlays(sess.ID)
	require.NoError(t, err)
	require.Len(t, overlays, 2)
	assert.Equal(t, "name", overlays[0].FieldKey)
	assert.Equal(t, "sig", overlays[1].FieldKey)
}

func TestService_Preview(t *testing.T) {
	f := newFixture(t, nil)
	sess := f.svc.NewSession()
	f.fill(t, sess.ID)

	result, err := f.svc.Preview(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Len(t, result.Overlays, 3)
	assert.Same(t, result.Artifact, sess.Preview())
	assert.Equal(t, form.StepPreviewed, sess.Step())

	first := result.Artifact
	second, err := f.svc.Preview(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.True(t, first.Released(), "superseded preview is released")
	assert.False(t, second.Artifact.Released())
}

func TestService_DebouncedPreview(t *testing.T) {
	f := newFixture(t, nil)
	sess := f.svc.NewSession()

	require.NoError(t, f.svc.SetField(sess.ID, "name", "A"))
	require.NoError(t, f.svc.SetField(sess.ID, "name", "Alice"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.svc.WaitIdle(ctx, sess.ID))

	require.NotNil(t, sess.Preview())
	msg, err := f.svc.PreviewError(sess.ID)
	require.NoError(t, err)
	assert.Empty(t, msg)
}

func TestService_PreviewWithoutBackground(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.BackgroundRef = "" })
	sess := f.svc.NewSession()
	require.NoError(t, f.svc.SetField(sess.ID, "name", "Alice"))

	_, err := f.svc.Preview(context.Background(), sess.ID)
	assert.True(t, ferrors.IsType(err, ferrors.ErrorTypeAssetLoad))
}

func TestService_GeneratePDF(t *testing.T) {
	f := newFixture(t, nil)
	sess := f.svc.NewSession()
	f.fill(t, sess.ID)

	a, err := f.svc.GeneratePDF(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, DefaultPDFFilename, a.Filename)

	info, err := pdf.Inspect(a.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 1, info.Pages)
	assert.Equal(t, 1, info.ImageCount)
}

func TestService_Submit(t *testing.T) {
	f := newFixture(t, nil)
	sess := f.svc.NewSession()
	f.fill(t, sess.ID)
	require.NoError(t, f.svc.AttachPDF(sess.ID, "transcript.pdf", templatePDF(t, 2)))
	upload := sess.Upload()

	result, err := f.svc.Submit(context.Background(), sess.ID, SubmitRequest{Note: "Thanks"})
	require.NoError(t, err)

	assert.True(t, result.Merged)
	assert.Equal(t, 3, result.Pages)
	assert.Nil(t, result.Compression, "small payloads skip compression")
	assert.Equal(t, "msg-1", result.Dispatch.ID)

	require.Equal(t, 1, f.sender.count())
	p := f.sender.payloads[0]
	assert.Equal(t, "office@example.org", p.To)
	assert.Equal(t, "Enrolment", p.Subject)
	require.Len(t, p.Attachments, 1)
	assert.Equal(t, DefaultPDFFilename, p.Attachments[0].Filename)
	assert.Contains(t, p.HTML, "Alice")
	assert.Contains(t, p.HTML, "Thanks")

	assert.Equal(t, "", sess.State.Get("name"), "state is cleared after a successful submit")
	assert.Nil(t, sess.Upload())
	assert.True(t, upload.Released())
	assert.Equal(t, form.StepSubmitted, sess.Step())
	assert.False(t, sess.Submitting())
}

func TestService_SubmitFailuresKeepState(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		f := newFixture(t, nil)
		sess := f.svc.NewSession()
		require.NoError(t, f.svc.SetField(sess.ID, "name", "Alice"))

		_, err := f.svc.Submit(context.Background(), sess.ID, SubmitRequest{})
		require.Error(t, err)
		assert.True(t, ferrors.IsType(err, ferrors.ErrorTypeValidation))
		assert.Zero(t, f.sender.count())
		assert.Equal(t, "Alice", sess.State.Get("name"))
		assert.Equal(t, form.StepEditing, sess.Step())
	})

	t.Run("transport", func(t *testing.T) {
		f := newFixture(t, nil)
		f.sender.err = ferrors.New(ferrors.ErrorTypeTransport, "Mailbox unavailable")
		sess := f.svc.NewSession()
		f.fill(t, sess.ID)

		_, err := f.svc.Submit(context.Background(), sess.ID, SubmitRequest{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Mailbox unavailable")
		assert.Equal(t, "Alice", sess.State.Get("name"))
		assert.False(t, sess.Submitting())
	})

	t.Run("size limit", func(t *testing.T) {
		f := newFixture(t, func(c *Config) { c.MaxPayload = 2048 })
		sess := f.svc.NewSession()
		f.fill(t, sess.ID)

		_, err := f.svc.Submit(context.Background(), sess.ID, SubmitRequest{})
		require.Error(t, err)
		assert.True(t, ferrors.IsType(err, ferrors.ErrorTypeSizeLimit))
		assert.Contains(t, err.Error(), "above the 2048 byte limit")
		assert.Zero(t, f.sender.count())
		assert.Equal(t, "Alice", sess.State.Get("name"))
	})

	t.Run("no recipient", func(t *testing.T) {
		f := newFixture(t, func(c *Config) { c.MailTo = "" })
		sess := f.svc.NewSession()
		f.fill(t, sess.ID)

		_, err := f.svc.Submit(context.Background(), sess.ID, SubmitRequest{})
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "recipient"))
		assert.Equal(t, f.sig, sess.State.Get("sig"))
	})

	t.Run("bad upload", func(t *testing.T) {
		f := newFixture(t, nil)
		sess := f.svc.NewSession()
		err := f.svc.AttachPDF(sess.ID, "bad.pdf", []byte("not a pdf"))
		assert.True(t, ferrors.IsType(err, ferrors.ErrorTypeParse))
		assert.Nil(t, sess.Upload())
	})
}

func TestService_SubmitInFlight(t *testing.T) {
	f := newFixture(t, nil)
	sess := f.svc.NewSession()
	f.fill(t, sess.ID)

	require.NoError(t, sess.BeginSubmit())
	_, err := f.svc.Submit(context.Background(), sess.ID, SubmitRequest{})
	assert.True(t, errors.Is(err, form.ErrSubmitInFlight))
	assert.ErrorIs(t, f.svc.SetField(sess.ID, "name", "Bob"), form.ErrSubmitInFlight)
	assert.ErrorIs(t, f.svc.AttachPDF(sess.ID, "late.pdf", templatePDF(t, 1)), form.ErrSubmitInFlight)
	assert.ErrorIs(t, f.svc.Reset(sess.ID), form.ErrSubmitInFlight)
	assert.Nil(t, sess.Upload(), "no upload swapped in while submitting")
	assert.Equal(t, "Alice", sess.State.Get("name"), "values survive a reset attempt while submitting")
	sess.EndSubmit(false)

	require.NoError(t, f.svc.AttachPDF(sess.ID, "late.pdf", templatePDF(t, 1)))
	require.NoError(t, f.svc.Reset(sess.ID))
}

func TestService_ResetAndClose(t *testing.T) {
	f := newFixture(t, nil)
	sess := f.svc.NewSession()
	f.fill(t, sess.ID)
	assert.Len(t, f.svc.Sessions(), 1)

	require.NoError(t, f.svc.Reset(sess.ID))
	assert.Equal(t, "", sess.State.Get("name"))

	result, err := f.svc.Validate(sess.ID)
	require.NoError(t, err)
	assert.False(t, result.Valid)

	require.NoError(t, f.svc.CloseSession(sess.ID))
	_, err = f.svc.Session(sess.ID)
	assert.ErrorIs(t, err, form.ErrSessionNotFound)
	assert.Empty(t, f.svc.Sessions())
}

func TestService_StatelessRender(t *testing.T) {
	f := newFixture(t, nil)
	values := map[string]string{"name": "Alice", "sig": f.sig}

	a, err := f.svc.Generate(context.Background(), values)
	require.NoError(t, err)
	count, err := pdf.PageCount(a.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	img, err := f.svc.Render(context.Background(), values, "png")
	require.NoError(t, err)
	assert.NotZero(t, img.Size())
}
