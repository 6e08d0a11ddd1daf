package pipeline

import (
	"context"
	"strings"

	"github.com/a3tai/mcp-form-filler/internal/artifact"
	"github.com/a3tai/mcp-form-filler/internal/dispatch"
	ferrors "github.com/a3tai/mcp-form-filler/internal/errors"
	"github.com/a3tai/mcp-form-filler/internal/form"
	"github.com/a3tai/mcp-form-filler/internal/pdf"
)

// SubmitRequest overrides the configured addressing for one submission
type SubmitRequest struct {
	To      string `json:"to,omitempty"`
	Subject string `json:"subject,omitempty"`
	Note    string `json:"note,omitempty"`
}

// SubmitResult reports what was sent
type SubmitResult struct {
	Pages       int                  `json:"pages"`
	PDFSize     int                  `json:"pdf_size"`
	PayloadSize int                  `json:"payload_size"`
	Merged      bool                 `json:"merged"`
	Compression *pdf.CompressionInfo `json:"compression,omitempty"`
	Dispatch    *dispatch.SendResult `json:"dispatch"`
}

// Submit validates, generates, merges the upload, compresses when the
// payload would be too large, and dispatches. The session is cleared only
// after the collaborator accepted the submission; any failure leaves it
// untouched.
func (s *Service) Submit(ctx context.Context, id string, req SubmitRequest) (*SubmitResult, error) {
	sess, rt, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := sess.BeginSubmit(); err != nil {
		return nil, err
	}
	success := false
	defer func() {
		if success {
			rt.gen.Add(1)
			rt.debouncer.Stop()
		}
		sess.EndSubmit(success)
	}()

	snap := sess.State.Snapshot()
	if result := form.Validate(s.reg, snap); !result.Valid {
		return nil, result.Err()
	}

	out, err := s.generator.Generate(ctx, s.reg, snap)
	if err != nil {
		return nil, err
	}
	s.debugf("session %s: generated %d bytes", id, len(out))

	result := &SubmitResult{}
	if upload := sess.Upload(); upload != nil && !upload.Released() {
		merged, err := pdf.Merge(out, upload.Bytes())
		if err != nil {
			return nil, err
		}
		out = merged.Bytes
		result.Merged = true
		s.debugf("session %s: merged %s, %d pages", id, upload.Filename, merged.PageCount)
	}

	msg := dispatch.Message{
		To:      firstNonEmpty(req.To, s.cfg.MailTo),
		Subject: firstNonEmpty(req.Subject, s.cfg.MailSubject),
		Note:    req.Note,
	}
	payload, err := dispatch.BuildPayload(s.reg, snap, msg, dispatch.NewAttachment(s.cfg.PDFFilename, artifact.MIMEPDF, out))
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrorTypeValidation, "failed to build submission", err)
	}

	if s.compressor.NeedsCompression(out, payload.HTML) {
		compressed := s.compressor.Compress(out)
		info := compressed.Info
		result.Compression = &info
		out = compressed.Bytes
		payload.Attachments[0] = dispatch.NewAttachment(s.cfg.PDFFilename, artifact.MIMEPDF, out)
		s.debugf("session %s: compression %s", id, info.Message)
	}

	size := pdf.EstimatePayloadSize(payload.HTML, payload.AttachmentContents()...)
	if size > s.compressor.Ceiling() {
		return nil, ferrors.Newf(ferrors.ErrorTypeSizeLimit,
			"submission is %d bytes, above the %d byte limit", size, s.compressor.Ceiling()).
			WithContext("remove the attachment or shorten the content and try again")
	}

	if err := ctx.Err(); err != nil {
		return nil, ferrors.Wrap(ferrors.ErrorTypeCancelled, "submission cancelled", err)
	}
	if s.sender == nil {
		return nil, ferrors.New(ferrors.ErrorTypeTransport, "no dispatch endpoint configured")
	}
	sent, err := s.sender.Send(ctx, payload)
	if err != nil {
		return nil, err
	}

	pages, err := pdf.PageCount(out)
	if err == nil {
		result.Pages = pages
	}
	result.PDFSize = len(out)
	result.PayloadSize = size
	result.Dispatch = sent
	success = true
	s.debugf("session %s: submitted %d bytes", id, size)
	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
