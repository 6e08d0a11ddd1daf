package mcp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/mcp-form-filler/internal/config"
	"github.com/a3tai/mcp-form-filler/internal/descriptions"
	"github.com/a3tai/mcp-form-filler/internal/pipeline"
	"github.com/a3tai/mcp-form-filler/internal/security"
)

const shutdownTimeout = 5 * time.Second

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	service   *pipeline.Service
	paths     *security.PathValidator
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, service *pipeline.Service) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	paths, err := security.NewPathValidator(cfg.Directory)
	if err != nil {
		return nil, fmt.Errorf("invalid form directory: %w", err)
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		config:    cfg,
		service:   service,
		paths:     paths,
		mcpServer: mcpServer,
	}

	s.registerTools()

	return s, nil
}

func sessionParam() mcp.ToolOption {
	return mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("Session ID returned by form_session_start"),
	)
}

func outputParam(example string) mcp.ToolOption {
	return mcp.WithString("output",
		mcp.Description("Output path inside the form directory (default: "+example+")"),
	)
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("form_fields",
		mcp.WithDescription(descriptions.GetToolDescription("form_fields")),
	), s.handleFields)

	s.mcpServer.AddTool(mcp.NewTool("form_session_start",
		mcp.WithDescription(descriptions.GetToolDescription("form_session_start")),
	), s.handleSessionStart)

	s.mcpServer.AddTool(mcp.NewTool("form_set_field",
		mcp.WithDescription(descriptions.GetToolDescription("form_set_field")),
		sessionParam(),
		mcp.WithString("key", mcp.Required(), mcp.Description("Field key from form_fields")),
		mcp.WithString("value", mcp.Required(), mcp.Description("New value; empty clears the field")),
	), s.handleSetField)

	s.mcpServer.AddTool(mcp.NewTool("form_set_signature",
		mcp.WithDescription(descriptions.GetToolDescription("form_set_signature")),
		sessionParam(),
		mcp.WithString("key", mcp.Required(), mcp.Description("Signature field key")),
		mcp.WithString("data_url", mcp.Description("PNG or JPEG data URL")),
		mcp.WithString("path", mcp.Description("PNG or JPEG file inside the form directory")),
	), s.handleSetSignature)

	s.mcpServer.AddTool(mcp.NewTool("form_attach_pdf",
		mcp.WithDescription(descriptions.GetToolDescription("form_attach_pdf")),
		sessionParam(),
		mcp.WithString("path", mcp.Required(), mcp.Description("PDF file inside the form directory")),
	), s.handleAttachPDF)

	s.mcpServer.AddTool(mcp.NewTool("form_validate",
		mcp.WithDescription(descriptions.GetToolDescription("form_validate")),
		sessionParam(),
	), s.handleValidate)

	s.mcpServer.AddTool(mcp.NewTool("form_preview",
		mcp.WithDescription(descriptions.GetToolDescription("form_preview")),
		sessionParam(),
		outputParam("preview-<session>.png"),
		mcp.WithString("format", mcp.Description("png (default) or jpeg")),
		mcp.WithBoolean("inline", mcp.Description("Also return the image in the response")),
	), s.handlePreview)

	s.mcpServer.AddTool(mcp.NewTool("form_generate_pdf",
		mcp.WithDescription(descriptions.GetToolDescription("form_generate_pdf")),
		sessionParam(),
		outputParam("form-<session>.pdf"),
	), s.handleGeneratePDF)

	s.mcpServer.AddTool(mcp.NewTool("form_merge_pdf",
		mcp.WithDescription(descriptions.GetToolDescription("form_merge_pdf")),
		mcp.WithString("primary", mcp.Required(), mcp.Description("PDF whose pages come first")),
		mcp.WithString("secondary", mcp.Required(), mcp.Description("PDF appended after the primary")),
		outputParam("merged.pdf"),
	), s.handleMergePDF)

	s.mcpServer.AddTool(mcp.NewTool("form_compress_pdf",
		mcp.WithDescription(descriptions.GetToolDescription("form_compress_pdf")),
		mcp.WithString("path", mcp.Required(), mcp.Description("PDF file inside the form directory")),
		outputParam("<name>-compressed.pdf"),
	), s.handleCompressPDF)

	s.mcpServer.AddTool(mcp.NewTool("form_inspect_pdf",
		mcp.WithDescription(descriptions.GetToolDescription("form_inspect_pdf")),
		mcp.WithString("path", mcp.Required(), mcp.Description("PDF file inside the form directory")),
	), s.handleInspectPDF)

	s.mcpServer.AddTool(mcp.NewTool("form_submit",
		mcp.WithDescription(descriptions.GetToolDescription("form_submit")),
		sessionParam(),
		mcp.WithString("to", mcp.Description("Recipient (default: configured mail-to)")),
		mcp.WithString("subject", mcp.Description("Subject (default: configured mail-subject)")),
		mcp.WithString("note", mcp.Description("Optional note included in the email body")),
	), s.handleSubmit)

	s.mcpServer.AddTool(mcp.NewTool("form_reset",
		mcp.WithDescription(descriptions.GetToolDescription("form_reset")),
		sessionParam(),
		mcp.WithBoolean("close", mcp.Description("End the session after clearing it")),
	), s.handleReset)

	s.mcpServer.AddTool(mcp.NewTool("form_server_info",
		mcp.WithDescription(descriptions.GetToolDescription("form_server_info")),
	), s.handleServerInfo)
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode serves MCP over stdin/stdout until ctx is done or stdin closes
func (s *Server) runStdioMode(ctx context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting form MCP server in stdio mode")
		log.Printf("Form directory: %s", s.config.Directory)
	}

	stdio := server.NewStdioServer(s.mcpServer)
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves MCP over streamable HTTP on the configured address
func (s *Server) runServerMode(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	log.Printf("Starting form MCP server on %s", s.config.Address())

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start(s.config.Address())
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down http server: %w", err)
		}
		return ctx.Err()
	}
}
