package mcp

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/a3tai/mcp-form-filler/internal/artifact"
	"github.com/a3tai/mcp-form-filler/internal/dataurl"
	"github.com/a3tai/mcp-form-filler/internal/pdf"
	"github.com/a3tai/mcp-form-filler/internal/pipeline"
	"github.com/a3tai/mcp-form-filler/internal/render"
)

const outputPerm = 0o600

func (s *Server) handleFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatFields(s.service.Registry())), nil
}

func (s *Server) handleSessionStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess := s.service.NewSession()

	text := fmt.Sprintf("Session started: %s\n", sess.ID)
	text += fmt.Sprintf("Fields: %d (use form_fields to list them)\n", s.service.Registry().Len())
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleSetField(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key, err := request.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, err := request.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.service.SetField(id, key, value); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if value == "" {
		return mcp.NewToolResultText(fmt.Sprintf("Cleared %s", key)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Set %s", key)), nil
}

func (s *Server) handleSetSignature(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key, err := request.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := request.GetArguments()
	value := stringArg(args, "data_url")
	if path := stringArg(args, "path"); path != "" {
		if value != "" {
			return mcp.NewToolResultError("pass either data_url or path, not both"), nil
		}
		value, err = s.readSignature(path)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	if value == "" {
		return mcp.NewToolResultError("data_url or path is required"), nil
	}

	if err := s.service.SetSignature(id, key, value); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Signature set for %s", key)), nil
}

func (s *Server) handleAttachPDF(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data, resolved, err := s.readPDF(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.service.AttachPDF(id, filepath.Base(resolved), data); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	pages, _ := pdf.PageCount(data)
	text := fmt.Sprintf("Attached %s\n", filepath.Base(resolved))
	text += fmt.Sprintf("Pages: %d\n", pages)
	text += fmt.Sprintf("Size: %d bytes\n", len(data))
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.Validate(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatValidation(result)), nil
}

func (s *Server) handlePreview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := request.GetArguments()
	format := strings.ToLower(stringArg(args, "format"))
	if format == "" {
		format = render.FormatPNG
	}

	res, err := s.service.Preview(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	a := res.Artifact
	if format != render.FormatPNG {
		sess, err := s.service.Session(id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		a, err = s.service.Render(ctx, sess.State.Snapshot().Values(), format)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	ext := ".png"
	if a.MIMEType == artifact.MIMEJPEG {
		ext = ".jpg"
	}
	out, err := s.writeOutput(stringArg(args, "output"), "preview-"+shortID(id)+ext, ext, a.Bytes())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Preview written to %s\n", out)
	text += fmt.Sprintf("Format: %s\n", a.MIMEType)
	text += fmt.Sprintf("Size: %d bytes\n", a.Size())
	text += fmt.Sprintf("Overlays drawn: %d\n", len(res.Overlays))

	if inline, _ := args["inline"].(bool); inline {
		return mcp.NewToolResultImage(text, base64.StdEncoding.EncodeToString(a.Bytes()), a.MIMEType), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleGeneratePDF(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	a, err := s.service.GeneratePDF(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.writeOutput(stringArg(request.GetArguments(), "output"), "form-"+shortID(id)+".pdf", ".pdf", a.Bytes())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	pages, _ := pdf.PageCount(a.Bytes())
	text := fmt.Sprintf("PDF written to %s\n", out)
	text += fmt.Sprintf("Pages: %d\n", pages)
	text += fmt.Sprintf("Size: %d bytes\n", a.Size())
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleMergePDF(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	primaryPath, err := request.RequireString("primary")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	secondaryPath, err := request.RequireString("secondary")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	primary, _, err := s.readPDF(primaryPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("primary: %v", err)), nil
	}
	secondary, _, err := s.readPDF(secondaryPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("secondary: %v", err)), nil
	}

	result, err := pdf.Merge(primary, secondary)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.writeOutput(stringArg(request.GetArguments(), "output"), "merged.pdf", ".pdf", result.Bytes)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Merged PDF written to %s\n", out)
	text += fmt.Sprintf("Pages: %d\n", result.PageCount)
	text += fmt.Sprintf("Size: %d bytes\n", result.TotalSize)
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleCompressPDF(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data, resolved, err := s.readPDF(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := s.service.Compressor().Compress(data)
	base := strings.TrimSuffix(filepath.Base(resolved), filepath.Ext(resolved))
	out, err := s.writeOutput(stringArg(request.GetArguments(), "output"), base+"-compressed.pdf", ".pdf", result.Bytes)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Compressed PDF written to %s\n", out)
	text += formatCompression(result.Info, s.service.Compressor().Ceiling())
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleInspectPDF(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data, resolved, err := s.readPDF(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	inspection, err := pdf.Inspect(data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatInspection(resolved, inspection)), nil
}

func (s *Server) handleSubmit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := request.GetArguments()

	result, err := s.service.Submit(ctx, id, pipeline.SubmitRequest{
		To:      stringArg(args, "to"),
		Subject: stringArg(args, "subject"),
		Note:    stringArg(args, "note"),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSubmit(result)), nil
}

func (s *Server) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if closeSession, _ := request.GetArguments()["close"].(bool); closeSession {
		if err := s.service.CloseSession(id); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Session %s closed", id)), nil
	}

	if err := s.service.Reset(id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Session %s reset", id)), nil
}

func (s *Server) handleServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info, err := s.collectServerInfo(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatServerInfo(info)), nil
}

// readPDF resolves path inside the form directory and validates the file
func (s *Server) readPDF(path string) ([]byte, string, error) {
	resolved, err := s.paths.ResolveFile(path)
	if err != nil {
		return nil, "", err
	}
	data, err := s.service.Validator().ReadFile(resolved)
	if err != nil {
		return nil, "", err
	}
	return data, resolved, nil
}

// readSignature loads an image file as a data URL
func (s *Server) readSignature(path string) (string, error) {
	resolved, err := s.paths.ResolveFile(path)
	if err != nil {
		return "", err
	}

	var mimeType string
	switch strings.ToLower(filepath.Ext(resolved)) {
	case ".png":
		mimeType = artifact.MIMEPNG
	case ".jpg", ".jpeg":
		mimeType = artifact.MIMEJPEG
	default:
		return "", fmt.Errorf("signature must be a PNG or JPEG file: %s", path)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("cannot access file: %w", err)
	}
	if info.Size() > s.config.MaxFileSize {
		return "", fmt.Errorf("file too large: %d bytes (max: %d bytes)", info.Size(), s.config.MaxFileSize)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("cannot read file: %w", err)
	}
	return dataurl.Encode(mimeType, data), nil
}

// writeOutput writes data to path, or to fallback when path is empty
func (s *Server) writeOutput(path, fallback, ext string, data []byte) (string, error) {
	if path == "" {
		path = fallback
	}
	resolved, err := s.paths.ResolveOutput(path, ext)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o750); err != nil {
		return "", fmt.Errorf("cannot create output directory: %w", err)
	}
	if err := os.WriteFile(resolved, data, outputPerm); err != nil {
		return "", fmt.Errorf("cannot write %s: %w", path, err)
	}
	return resolved, nil
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
