// form_render fills a form template from a values file without running the
// MCP server. It writes the filled PDF and, when a background is given, a
// PNG preview. Optionally it merges another PDF, compresses the result and
// writes the JSON payload the email service would receive.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/a3tai/mcp-form-filler/internal/assets"
	"github.com/a3tai/mcp-form-filler/internal/config"
	"github.com/a3tai/mcp-form-filler/internal/dispatch"
	"github.com/a3tai/mcp-form-filler/internal/fields"
	"github.com/a3tai/mcp-form-filler/internal/form"
	"github.com/a3tai/mcp-form-filler/internal/pdf"
	"github.com/a3tai/mcp-form-filler/internal/pipeline"
)

type options struct {
	dir        string
	template   string
	background string
	fieldsFile string
	fallback   string
	output     string
	png        string
	merge      string
	compress   bool
	payload    string
	to         string
	subject    string
	note       string
	maxPayload int
	verbose    bool
	help       bool
}

func parseOptions(args []string) (*options, *pflag.FlagSet, error) {
	opts := &options{}
	fs := pflag.NewFlagSet("form_render", pflag.ContinueOnError)
	fs.StringVar(&opts.dir, "dir", ".", "Directory that relative asset paths resolve against")
	fs.StringVar(&opts.template, "template", config.DefaultTemplate, "PDF template to fill")
	fs.StringVar(&opts.background, "background", "", "Background image for the PNG preview")
	fs.StringVar(&opts.fieldsFile, "fields", "", "YAML field registry (built-in fields when empty)")
	fs.StringVar(&opts.fallback, "fallback", config.DefaultFallback, "Behaviour when the template cannot be loaded: fail or blank")
	fs.StringVarP(&opts.output, "output", "o", "form.pdf", "Filled PDF output path")
	fs.StringVar(&opts.png, "png", "", "Preview PNG output path (requires --background)")
	fs.StringVar(&opts.merge, "merge", "", "PDF to append to the filled form")
	fs.BoolVar(&opts.compress, "compress", false, "Compress the final PDF")
	fs.StringVar(&opts.payload, "payload", "", "Write the email service JSON payload to this path")
	fs.StringVar(&opts.to, "to", "", "Payload recipient")
	fs.StringVar(&opts.subject, "subject", config.DefaultMailSubject, "Payload subject")
	fs.StringVar(&opts.note, "note", "", "Payload note")
	fs.IntVar(&opts.maxPayload, "max-payload", config.DefaultMaxPayload, "Payload size ceiling in bytes")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "Print a summary of each step")
	fs.BoolVarP(&opts.help, "help", "h", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	if opts.help {
		return opts, fs, nil
	}
	if fs.NArg() != 1 {
		return nil, fs, fmt.Errorf("values file required")
	}
	if opts.png != "" && opts.background == "" {
		return nil, fs, fmt.Errorf("--png requires --background")
	}
	if opts.payload != "" && opts.to == "" {
		return nil, fs, fmt.Errorf("--payload requires --to")
	}
	if !pdf.FallbackPolicy(opts.fallback).Valid() {
		return nil, fs, fmt.Errorf("invalid fallback %q: must be 'fail' or 'blank'", opts.fallback)
	}
	return opts, fs, nil
}

// readValues decodes a flat key/value map. YAML is a superset of JSON so
// one decoder handles both.
func readValues(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read values file: %w", err)
	}
	values := make(map[string]string)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse values file %s: %w", path, err)
	}
	return values, nil
}

func (o *options) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(o.dir, path)
}

func (o *options) registry() (*fields.Registry, error) {
	if o.fieldsFile == "" {
		return fields.Default(), nil
	}
	return fields.LoadFile(o.resolve(o.fieldsFile))
}

type summary struct {
	PDFPages    int
	PDFSize     int
	PNGSize     int
	Compression *pdf.CompressionInfo
	PayloadSize int
}

func run(ctx context.Context, opts *options, valuesPath string) (*summary, error) {
	values, err := readValues(valuesPath)
	if err != nil {
		return nil, err
	}
	reg, err := opts.registry()
	if err != nil {
		return nil, err
	}

	service, err := pipeline.NewService(pipeline.Config{
		Registry:      reg,
		TemplateRef:   opts.template,
		BackgroundRef: opts.background,
		Fallback:      pdf.FallbackPolicy(opts.fallback),
		MaxPayload:    opts.maxPayload,
		MaxUploadSize: config.DefaultMaxFileSize,
	}, assets.NewStore(opts.dir, config.DefaultMaxFileSize), nil)
	if err != nil {
		return nil, err
	}

	filled, err := service.Generate(ctx, values)
	if err != nil {
		return nil, err
	}
	doc := filled.Bytes()

	if opts.merge != "" {
		extra, err := service.Validator().ReadFile(opts.resolve(opts.merge))
		if err != nil {
			return nil, err
		}
		merged, err := pdf.Merge(doc, extra)
		if err != nil {
			return nil, err
		}
		doc = merged.Bytes
	}

	sum := &summary{}
	if opts.compress {
		result := service.Compressor().Compress(doc)
		doc = result.Bytes
		sum.Compression = &result.Info
	}

	if sum.PDFPages, err = pdf.PageCount(doc); err != nil {
		return nil, err
	}
	sum.PDFSize = len(doc)
	if err := os.WriteFile(opts.output, doc, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}

	if opts.png != "" {
		preview, err := service.Render(ctx, values, "png")
		if err != nil {
			return nil, err
		}
		sum.PNGSize = preview.Size()
		if err := os.WriteFile(opts.png, preview.Bytes(), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write preview: %w", err)
		}
	}

	if opts.payload != "" {
		payload, err := dispatch.BuildPayload(reg, form.NewSnapshot(values), dispatch.Message{
			To:      opts.to,
			Subject: opts.subject,
			Note:    opts.note,
		}, dispatch.NewAttachment(filepath.Base(opts.output), "application/pdf", doc))
		if err != nil {
			return nil, err
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload: %w", err)
		}
		if len(data) > opts.maxPayload {
			return nil, fmt.Errorf("payload is %d bytes, over the %d byte ceiling", len(data), opts.maxPayload)
		}
		sum.PayloadSize = len(data)
		if err := os.WriteFile(opts.payload, data, 0o600); err != nil {
			return nil, fmt.Errorf("failed to write payload: %w", err)
		}
	}

	return sum, nil
}

func printSummary(opts *options, sum *summary) {
	fmt.Printf("PDF: %s (%d pages, %d bytes)\n", opts.output, sum.PDFPages, sum.PDFSize)
	if sum.Compression != nil {
		fmt.Printf("Compression: %s\n", sum.Compression.Message)
	}
	if opts.png != "" {
		fmt.Printf("Preview: %s (%d bytes)\n", opts.png, sum.PNGSize)
	}
	if opts.payload != "" {
		fmt.Printf("Payload: %s (%d bytes)\n", opts.payload, sum.PayloadSize)
	}
}

func main() {
	opts, fs, err := parseOptions(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		printUsage(fs)
		os.Exit(1)
	}
	if opts.help {
		printUsage(fs)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	sum, err := run(ctx, opts, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if opts.verbose {
		printSummary(opts, sum)
	}
}

func printUsage(fs *pflag.FlagSet) {
	fmt.Fprintln(os.Stderr, "Usage: form_render [options] <values.json|values.yaml>")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Options:")
	fs.SetOutput(os.Stderr)
	fs.PrintDefaults()
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Examples:")
	fmt.Fprintln(os.Stderr, "  form_render --dir ./assets values.yaml")
	fmt.Fprintln(os.Stderr, "  form_render --background bg.png --png preview.png values.json")
	fmt.Fprintln(os.Stderr, "  form_render --merge id.pdf --compress --payload out.json --to office@example.org values.json")
}
