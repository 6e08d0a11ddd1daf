package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/a3tai/mcp-form-filler/internal/assets"
	"github.com/a3tai/mcp-form-filler/internal/config"
	"github.com/a3tai/mcp-form-filler/internal/dispatch"
	"github.com/a3tai/mcp-form-filler/internal/fields"
	"github.com/a3tai/mcp-form-filler/internal/mcp"
	"github.com/a3tai/mcp-form-filler/internal/pdf"
	"github.com/a3tai/mcp-form-filler/internal/pipeline"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging configures logging based on the server mode
func setupLogging(cfg *config.Config) {
	if cfg.IsStdioMode() {
		// stdout carries the MCP protocol in stdio mode
		log.SetOutput(os.Stderr)
		if !cfg.IsDebug() {
			log.SetOutput(os.NewFile(0, os.DevNull))
		}
	} else {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}
}

// loadRegistry reads the field file when one is configured, relative paths
// resolving against the form directory
func loadRegistry(cfg *config.Config) (*fields.Registry, error) {
	if cfg.FieldsFile == "" {
		return fields.Default(), nil
	}
	path := cfg.FieldsFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(cfg.Directory, path)
	}
	return fields.LoadFile(path)
}

// buildService wires assets, fields and dispatch into the form pipeline
func buildService(cfg *config.Config) (*pipeline.Service, error) {
	registry, err := loadRegistry(cfg)
	if err != nil {
		return nil, err
	}

	store := assets.NewStore(cfg.Directory, cfg.MaxFileSize)

	// Typed nil would defeat the nil-sender check in the pipeline
	var sender pipeline.Sender
	if cfg.DispatchURL != "" {
		sender = dispatch.NewClient(cfg.DispatchURL, dispatch.WithTimeout(cfg.DispatchTimeout))
	}

	return pipeline.NewService(pipeline.Config{
		Registry:      registry,
		TemplateRef:   cfg.Template,
		BackgroundRef: cfg.Background,
		Fallback:      pdf.FallbackPolicy(cfg.TemplateFallback),
		MaxPayload:    cfg.MaxPayload,
		MaxUploadSize: cfg.MaxFileSize,
		DebounceDelay: cfg.Debounce,
		MailTo:        cfg.MailTo,
		MailSubject:   cfg.MailSubject,
		Debug:         cfg.IsDebug(),
	}, store, sender)
}

// runServerMode handles server mode execution with signal handling
func runServerMode(ctx context.Context, cancel context.CancelFunc, server *mcp.Server) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Run(ctx)
	}()

	select {
	case sig := <-signalCh:
		log.Printf("Received signal: %s", sig)
		log.Println("Initiating graceful shutdown...")
		cancel()

		if err := <-serverErrCh; err != nil && ctx.Err() == nil {
			log.Printf("Server shutdown with error: %v", err)
			os.Exit(1)
		}

	case err := <-serverErrCh:
		if err != nil {
			log.Printf("Server error: %v", err)
			os.Exit(1)
		}
	}

	log.Println("Server stopped successfully")
}

// runStdioMode handles stdio mode execution
func runStdioMode(ctx context.Context, _ context.CancelFunc, server *mcp.Server) {
	// The parent process owns our lifecycle; exit when stdin closes
	if err := server.Run(ctx); err != nil {
		if os.Getenv("DEBUG") != "" {
			log.Printf("Server error: %v", err)
		}
		os.Exit(1)
	}
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg)

	if version != "dev" {
		cfg.Version = version
	}

	if cfg.IsDebug() && cfg.IsServerMode() {
		log.Printf("Starting with configuration: %s", cfg.String())
	}

	service, err := buildService(cfg)
	if err != nil {
		log.Fatalf("Failed to build form pipeline: %v", err)
	}

	server, err := mcp.NewServer(cfg, service)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.IsServerMode() {
		runServerMode(ctx, cancel, server)
	} else {
		runStdioMode(ctx, cancel, server)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("MCP Form Filler\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
