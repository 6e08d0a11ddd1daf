// Package pipeline wires the field registry, renderers, PDF utilities and
// dispatch client into one service that owns the editing sessions.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/a3tai/mcp-form-filler/internal/artifact"
	"github.com/a3tai/mcp-form-filler/internal/dataurl"
	"github.com/a3tai/mcp-form-filler/internal/dispatch"
	ferrors "github.com/a3tai/mcp-form-filler/internal/errors"
	"github.com/a3tai/mcp-form-filler/internal/fields"
	"github.com/a3tai/mcp-form-filler/internal/form"
	"github.com/a3tai/mcp-form-filler/internal/overlay"
	"github.com/a3tai/mcp-form-filler/internal/pdf"
	"github.com/a3tai/mcp-form-filler/internal/render"
)

// DefaultPDFFilename names generated documents
const DefaultPDFFilename = "form.pdf"

// Loader fetches asset bytes
type Loader interface {
	Load(ctx context.Context, ref string) ([]byte, error)
}

// Sender delivers a submission payload
type Sender interface {
	Send(ctx context.Context, p *dispatch.Payload) (*dispatch.SendResult, error)
}

// Config parameterises the pipeline for one form
type Config struct {
	Registry      *fields.Registry
	TemplateRef   string
	BackgroundRef string
	Fallback      pdf.FallbackPolicy
	MaxPayload    int
	MaxUploadSize int64
	DebounceDelay time.Duration
	MailTo        string
	MailSubject   string
	PDFFilename   string
	Debug         bool
}

// Service runs the fill, preview, generate and submit flow for every session
type Service struct {
	cfg        Config
	reg        *fields.Registry
	sessions   *form.Store
	generator  *pdf.Generator
	renderer   *render.Renderer
	compressor *pdf.Compressor
	validator  *pdf.Validator
	sender     Sender

	mu       sync.Mutex
	runtimes map[string]*runtime
}

// runtime tracks preview regeneration for one session
type runtime struct {
	debouncer *form.Debouncer
	regen     sync.Mutex
	gen       atomic.Uint64
	lastErr   atomic.Value // string
}

// PreviewResult is a rendered preview
type PreviewResult struct {
	Overlays []overlay.Instruction `json:"overlays"`
	Artifact *artifact.Artifact    `json:"-"`
}

// NewService builds the pipeline. A nil sender makes Submit fail with a
// transport error; an empty background disables previews.
func NewService(cfg Config, loader Loader, sender Sender) (*Service, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("field registry is required")
	}
	if cfg.TemplateRef == "" && cfg.Fallback != pdf.FallbackBlank {
		return nil, fmt.Errorf("PDF template is required unless the blank fallback is enabled")
	}
	if cfg.PDFFilename == "" {
		cfg.PDFFilename = DefaultPDFFilename
	}

	s := &Service{
		cfg:        cfg,
		reg:        cfg.Registry,
		sessions:   form.NewStore(),
		generator:  pdf.NewGenerator(loader, cfg.TemplateRef, pdf.WithFallback(cfg.Fallback)),
		compressor: pdf.NewCompressor(cfg.MaxPayload),
		validator:  pdf.NewValidator(cfg.MaxUploadSize),
		sender:     sender,
		runtimes:   make(map[string]*runtime),
	}

	if cfg.BackgroundRef != "" {
		r, err := render.NewRenderer(loader, cfg.BackgroundRef)
		if err != nil {
			return nil, err
		}
		s.renderer = r
	}

	return s, nil
}

// Registry returns the field registry
func (s *Service) Registry() *fields.Registry {
	return s.reg
}

// Config returns the configuration the service was built with
func (s *Service) Config() Config {
	return s.cfg
}

// Validator returns the upload validator
func (s *Service) Validator() *pdf.Validator {
	return s.validator
}

// Compressor returns the compressor used before dispatch
func (s *Service) Compressor() *pdf.Compressor {
	return s.compressor
}

// TemplatePages returns the page sizes generation draws on
func (s *Service) TemplatePages(ctx context.Context) ([]pdf.PageSize, error) {
	return s.generator.Pages(ctx)
}

// NewSession starts an editing session
func (s *Service) NewSession() *form.Session {
	sess := s.sessions.Create()
	s.mu.Lock()
	s.runtimes[sess.ID] = &runtime{debouncer: form.NewDebouncer(s.cfg.DebounceDelay)}
	s.mu.Unlock()
	s.debugf("session %s started", sess.ID)
	return sess
}

// Session looks up a session
func (s *Service) Session(id string) (*form.Session, error) {
	return s.sessions.Get(id)
}

// Sessions lists the active sessions
func (s *Service) Sessions() []*form.Session {
	return s.sessions.List()
}

// CloseSession stops pending work and forgets the session
func (s *Service) CloseSession(id string) error {
	s.mu.Lock()
	rt := s.runtimes[id]
	delete(s.runtimes, id)
	s.mu.Unlock()
	if rt != nil {
		rt.debouncer.Stop()
	}
	return s.sessions.Delete(id)
}

// SetField stores a value and schedules a debounced preview
func (s *Service) SetField(id, key, value string) error {
	sess, rt, err := s.lookup(id)
	if err != nil {
		return err
	}
	d, ok := s.reg.Lookup(key)
	if !ok {
		return ferrors.Newf(ferrors.ErrorTypeValidation, "unknown field %q", key).WithField(key)
	}
	if d.IsDerived() {
		return ferrors.Newf(ferrors.ErrorTypeValidation, "field %q mirrors %q and cannot be set", key, d.DerivedFrom).WithField(key)
	}
	if d.IsSignature() {
		return s.SetSignature(id, key, value)
	}
	if sess.Submitting() {
		return form.ErrSubmitInFlight
	}

	sess.State.Set(key, value)
	s.schedulePreview(sess, rt)
	return nil
}

// SetSignature stores a signature data URL. An empty value clears it.
func (s *Service) SetSignature(id, key, value string) error {
	sess, rt, err := s.lookup(id)
	if err != nil {
		return err
	}
	d, ok := s.reg.Lookup(key)
	if !ok || !d.IsSignature() {
		return ferrors.Newf(ferrors.ErrorTypeValidation, "%q is not a signature field", key).WithField(key)
	}
	if value != "" {
		if _, err := dataurl.Decode(value); err != nil {
			return ferrors.Wrap(ferrors.ErrorTypeFormat, "invalid signature", err).WithField(key)
		}
	}
	if sess.Submitting() {
		return form.ErrSubmitInFlight
	}

	sess.State.Set(key, value)
	s.schedulePreview(sess, rt)
	return nil
}

// AttachPDF validates data and keeps it for merging on submit
func (s *Service) AttachPDF(id, filename string, data []byte) error {
	sess, _, err := s.lookup(id)
	if err != nil {
		return err
	}
	if err := s.validator.Validate(data); err != nil {
		return err
	}
	if sess.Submitting() {
		return form.ErrSubmitInFlight
	}
	if filename == "" {
		filename = "attachment.pdf"
	}
	sess.AttachUpload(artifact.New(filename, artifact.MIMEPDF, data))
	s.debugf("session %s: attached %s (%d bytes)", id, filename, len(data))
	return nil
}

// Reset clears the session's values, upload and preview
func (s *Service) Reset(id string) error {
	sess, rt, err := s.lookup(id)
	if err != nil {
		return err
	}
	if sess.Submitting() {
		return form.ErrSubmitInFlight
	}
	rt.gen.Add(1)
	rt.debouncer.Stop()
	sess.Clear()
	return nil
}

// Validate checks the session's current values
func (s *Service) Validate(id string) (form.ValidationResult, error) {
	sess, _, err := s.lookup(id)
	if err != nil {
		return form.ValidationResult{}, err
	}
	return form.Validate(s.reg, sess.State.Snapshot()), nil
}

// Overlays returns the canvas instructions for the session's values
func (s *Service) Overlays(id string) ([]overlay.Instruction, error) {
	sess, _, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return overlay.Build(s.reg, sess.State.Snapshot()), nil
}

// Preview renders the preview now, superseding any scheduled regeneration,
// and installs it on the session
func (s *Service) Preview(ctx context.Context, id string) (*PreviewResult, error) {
	sess, rt, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	gen := rt.gen.Add(1)
	rt.debouncer.Stop()
	return s.regenerate(ctx, sess, rt, gen)
}

// PreviewError returns the error of the last background regeneration
func (s *Service) PreviewError(id string) (string, error) {
	_, rt, err := s.lookup(id)
	if err != nil {
		return "", err
	}
	msg, _ := rt.lastErr.Load().(string)
	return msg, nil
}

// WaitIdle blocks until no debounced regeneration is pending for id
func (s *Service) WaitIdle(ctx context.Context, id string) error {
	_, rt, err := s.lookup(id)
	if err != nil {
		return err
	}
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for rt.debouncer.Pending() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// GeneratePDF fills the template with the session's values
func (s *Service) GeneratePDF(ctx context.Context, id string) (*artifact.Artifact, error) {
	sess, _, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	data, err := s.generator.Generate(ctx, s.reg, sess.State.Snapshot())
	if err != nil {
		return nil, err
	}
	s.debugf("session %s: generated %s (%d bytes)", id, s.cfg.PDFFilename, len(data))
	return artifact.New(s.cfg.PDFFilename, artifact.MIMEPDF, data), nil
}

// Generate fills the template with values outside of any session
func (s *Service) Generate(ctx context.Context, values map[string]string) (*artifact.Artifact, error) {
	data, err := s.generator.Generate(ctx, s.reg, form.NewSnapshot(values))
	if err != nil {
		return nil, err
	}
	return artifact.New(s.cfg.PDFFilename, artifact.MIMEPDF, data), nil
}

// Render exports a preview for values outside of any session
func (s *Service) Render(ctx context.Context, values map[string]string, format string) (*artifact.Artifact, error) {
	if s.renderer == nil {
		return nil, ferrors.New(ferrors.ErrorTypeAssetLoad, "no background image configured")
	}
	return s.renderer.Export(ctx, overlay.Build(s.reg, form.NewSnapshot(values)), format)
}

func (s *Service) schedulePreview(sess *form.Session, rt *runtime) {
	if s.renderer == nil {
		return
	}
	gen := rt.gen.Add(1)
	rt.debouncer.Trigger(func(ctx context.Context) {
		if _, err := s.regenerate(ctx, sess, rt, gen); err != nil {
			s.debugf("session %s: preview regeneration failed: %v", sess.ID, err)
		}
	})
}

// regenerate renders and installs a preview. Runs are serialised per
// session; a result whose generation was superseded is discarded.
func (s *Service) regenerate(ctx context.Context, sess *form.Session, rt *runtime, gen uint64) (*PreviewResult, error) {
	if s.renderer == nil {
		return nil, ferrors.New(ferrors.ErrorTypeAssetLoad, "no background image configured")
	}

	rt.regen.Lock()
	defer rt.regen.Unlock()

	overlays := overlay.Build(s.reg, sess.State.Snapshot())
	a, err := s.renderer.Export(ctx, overlays, render.FormatPNG)
	if err != nil {
		rt.lastErr.Store(err.Error())
		return nil, err
	}
	rt.lastErr.Store("")

	if rt.gen.Load() != gen {
		a.Release()
		return nil, ferrors.New(ferrors.ErrorTypeCancelled, "preview superseded by a newer change")
	}
	sess.ReplacePreview(a)
	return &PreviewResult{Overlays: overlays, Artifact: a}, nil
}

func (s *Service) lookup(id string) (*form.Session, *runtime, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, nil, ferrors.Wrap(ferrors.ErrorTypeValidation, "unknown session "+strings.TrimSpace(id), err)
	}
	s.mu.Lock()
	rt, ok := s.runtimes[id]
	if !ok {
		rt = &runtime{debouncer: form.NewDebouncer(s.cfg.DebounceDelay)}
		s.runtimes[id] = rt
	}
	s.mu.Unlock()
	return sess, rt, nil
}

func (s *Service) debugf(format string, args ...any) {
	if s.cfg.Debug {
		log.Printf(format, args...)
	}
}
