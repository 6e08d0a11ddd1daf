package mcp

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/a3tai/mcp-form-filler/internal/fields"
	"github.com/a3tai/mcp-form-filler/internal/form"
	"github.com/a3tai/mcp-form-filler/internal/pdf"
	"github.com/a3tai/mcp-form-filler/internal/pipeline"
)

// maxResponseText caps extracted text echoed back to the client
const maxResponseText = 16 * 1024

func formatFields(reg *fields.Registry) string {
	text := fmt.Sprintf("Form fields (%d):\n", reg.Len())
	for i, d := range reg.Fields() {
		text += fmt.Sprintf("%d. %s", i+1, d.Key)
		if d.Label != "" {
			text += fmt.Sprintf(" (%s)", d.Label)
		}
		text += fmt.Sprintf(" - %s, page %d", d.Kind, d.Page)

		var flags []string
		if d.Required {
			flags = append(flags, "required")
		}
		if d.Hidden {
			flags = append(flags, "hidden")
		}
		if d.IsDerived() {
			flags = append(flags, "mirrors "+d.DerivedFrom)
		}
		if len(flags) > 0 {
			text += " [" + strings.Join(flags, ", ") + "]"
		}
		text += "\n"
	}
	return text
}

func formatValidation(result form.ValidationResult) string {
	text := "Form is valid and ready to submit\n"
	if !result.Valid {
		text = fmt.Sprintf("Form has %d invalid field(s):\n", len(result.Issues))
		for _, issue := range result.Issues {
			text += fmt.Sprintf("• %s: %s\n", issue.Field, issue.Message)
		}
	}
	text += fmt.Sprintf("Required fields complete: %t\n", result.Complete)
	text += fmt.Sprintf("Signature complete: %t\n", result.SignatureComplete)
	return text
}

func formatCompression(info pdf.CompressionInfo, ceiling int) string {
	text := fmt.Sprintf("Original size: %d bytes\n", info.OriginalSize)
	text += fmt.Sprintf("Compressed size: %d bytes\n", info.CompressedSize)
	text += fmt.Sprintf("Reduction: %.1f%%\n", info.ReductionPercent)
	text += fmt.Sprintf("Fits %d byte limit: %t\n", ceiling, info.Success)
	text += fmt.Sprintf("Result: %s\n", info.Message)
	return text
}

func formatInspection(path string, in *pdf.Inspection) string {
	text := fmt.Sprintf("PDF: %s\n", path)
	text += fmt.Sprintf("Pages: %d\n", in.Pages)
	text += fmt.Sprintf("Size: %d bytes\n", in.Size)
	text += fmt.Sprintf("Embedded images: %d\n", in.ImageCount)

	content := in.Text
	if len(content) > maxResponseText {
		cut := maxResponseText
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut] + "\n... (truncated)"
	}
	if strings.TrimSpace(content) == "" {
		text += "\nNo extractable text\n"
		return text
	}
	text += "\nText:\n" + content
	return text
}

func formatSubmit(result *pipeline.SubmitResult) string {
	text := "Submission sent\n"
	text += fmt.Sprintf("Pages: %d\n", result.Pages)
	text += fmt.Sprintf("PDF size: %d bytes\n", result.PDFSize)
	text += fmt.Sprintf("Payload size: %d bytes\n", result.PayloadSize)
	if result.Merged {
		text += "Uploaded PDF appended\n"
	}
	if result.Compression != nil {
		text += fmt.Sprintf("Compressed: %d → %d bytes (%.1f%%)\n",
			result.Compression.OriginalSize, result.Compression.CompressedSize, result.Compression.ReductionPercent)
	}
	if d := result.Dispatch; d != nil {
		text += fmt.Sprintf("Email service status: %d\n", d.StatusCode)
		if d.ID != "" {
			text += fmt.Sprintf("Message ID: %s\n", d.ID)
		}
	}
	return text
}

func formatServerInfo(info *serverInfo) string {
	text := fmt.Sprintf("📋 %s v%s - Server Information\n", info.ServerName, info.Version)
	text += fmt.Sprintf("📁 Form Directory: %s\n", info.Directory)
	text += fmt.Sprintf("📄 Template: %s", info.Template)
	if info.TemplatePages > 0 {
		text += fmt.Sprintf(" (%d page(s))", info.TemplatePages)
	}
	text += "\n"
	if info.Background != "" {
		text += fmt.Sprintf("🖼️  Preview background: %s\n", info.Background)
	} else {
		text += "🖼️  Preview background: none (previews disabled)\n"
	}
	text += fmt.Sprintf("🧾 Fields: %d (%s)\n", info.FieldCount, info.FieldsSource)
	if info.DispatchURL != "" {
		text += fmt.Sprintf("✉️  Email service: %s\n", info.DispatchURL)
	} else {
		text += "✉️  Email service: not configured (form_submit disabled)\n"
	}
	text += fmt.Sprintf("📏 Max Upload Size: %d MB\n", info.MaxFileSize/(1024*1024))
	text += fmt.Sprintf("📦 Max Payload: %d bytes\n", info.MaxPayload)
	text += fmt.Sprintf("👥 Active sessions: %d\n\n", info.Sessions)

	if len(info.Files) > 0 {
		text += fmt.Sprintf("📂 Directory Contents (%d form file(s) found):\n", len(info.Files))
		for i, file := range info.Files {
			if i >= maxListedFiles {
				text += fmt.Sprintf("   ... and %d more files\n", len(info.Files)-maxListedFiles)
				break
			}
			text += fmt.Sprintf("   %d. %s (%d bytes)\n", i+1, file.Name, file.Size)
		}
		text += "\n"
	} else {
		text += "📂 Directory Contents: No PDF or image files found\n\n"
	}

	text += "🛠️  Available Tools:\n"
	for _, name := range info.Tools {
		text += fmt.Sprintf("• %s\n", name)
	}

	text += "\n" + usageGuidance
	return text
}

const usageGuidance = `💡 Typical flow:
1. form_fields to learn the keys
2. form_session_start
3. form_set_field for each value, form_set_signature for signatures
4. form_preview to check the result, form_validate to find missing values
5. form_attach_pdf for supporting documents (optional)
6. form_submit, or form_generate_pdf to keep the document locally
`
