package descriptions

import "sort"

// Tool descriptions with practical examples and workflows

const (
	// Session Tools
	FormFieldsDescription = `List every field the form defines.

**When to use:** Before filling a form, to learn which keys exist, which are required and which expect a signature image.

**Why it's useful:** Field keys, labels, kinds and page numbers come straight from the field registry, so the values you set are the ones the PDF and preview will draw.

**Examples:**
• Discover the form: "Which fields does the intake form have?"
• Check requirements: "Which fields must be filled before I can submit?"

**Best practices:** Skip derived fields; they mirror another field and cannot be set directly.`

	FormSessionStartDescription = `Start a new editing session with empty values.

**When to use:** At the beginning of every fill. All other session tools take the returned session_id.

**Common workflows:**
1. Fill and send: form_session_start → form_set_field (repeat) → form_set_signature → form_validate → form_submit
2. Fill and keep: form_session_start → form_set_field → form_generate_pdf

**Best practices:** One session per person filling the form; sessions are independent and hold their own upload and preview.`

	FormSetFieldDescription = `Set the value of one text, date, phone or email field.

**When to use:** Whenever a value changes. The preview is regenerated after a short quiet period, not on every call.

**Examples:**
• "Set full_name to Jane Doe in session 6f1c..."
• "Set date_of_birth to 1990-04-12"

**Best practices:** Setting a signature key here is accepted if the value is an image data URL; prefer form_set_signature, which also reads image files.`

	FormSetSignatureDescription = `Set a signature field from a PNG or JPEG image.

**When to use:** After the person has signed. Pass either a data URL (data:image/png;base64,...) or the path of an image file inside the configured directory.

**Why it's useful:** The signature is drawn into both the preview and the generated PDF at the field's configured box.

**Best practices:** Transparent PNGs give the cleanest result over the template.`

	FormAttachPDFDescription = `Attach an existing PDF to the session.

**When to use:** When supporting documents must travel with the submission. At submit time the attachment's pages are appended after the generated form pages.

**Best practices:** The file must be inside the configured directory and below the maximum upload size. Attaching again replaces the previous upload.`

	FormValidateDescription = `Validate the session's values against the field rules.

**When to use:** Before submitting, or to show the person what is still missing.

**Why it's useful:** Reports every invalid field at once: missing required values, malformed email addresses, phone numbers and dates.`

	FormPreviewDescription = `Render the form preview image now, bypassing the debounce delay.

**When to use:** To show the person what the form looks like with the current values.

**Examples:**
• "Render a PNG preview of session 6f1c... to preview.png"
• "Render the preview as JPEG"

**Best practices:** Requires a configured background image. Output paths are resolved inside the configured directory.`

	FormGeneratePDFDescription = `Generate the filled PDF for a session.

**When to use:** When the person wants the document without sending it, or to check the output before submitting.

**Why it's useful:** Values are drawn on a fresh copy of the template; the template itself is never modified and the page count is preserved.`

	// Document Tools
	FormMergePDFDescription = `Append every page of one PDF after every page of another.

**When to use:** Combining a generated form with supporting documents outside a session.

**Best practices:** Both inputs must parse; the error names the one that does not.`

	FormCompressPDFDescription = `Re-serialize a PDF with object and cross-reference streams to shrink it.

**When to use:** When a document is too large to send. The result reports original and compressed size and whether it fits the transmit limit.

**Best practices:** Compression never fails outright; when it cannot help, the original bytes are kept.`

	FormInspectPDFDescription = `Read a PDF back and report its pages, size, embedded image count and text.

**When to use:** Verifying a generated or merged document, or checking an upload before attaching it.`

	FormSubmitDescription = `Validate, generate, merge, compress if needed, and send the session to the email service.

**When to use:** When the form is complete and ready to send.

**Why it's useful:** Runs the whole submission in one step. A failure at any stage leaves the session's values, signature and upload untouched so the person can retry.

**Examples:**
• "Submit session 6f1c... to office@example.com with subject Intake"

**Best practices:** Run form_validate first. Only one submission per session runs at a time; the session is cleared after the service accepts it.`

	FormResetDescription = `Clear a session's values, signature, upload and preview.

**When to use:** Starting over. Pass close=true to end the session as well.`

	FormServerInfoDescription = `Get server information, the configured assets, available tools and the files in the form directory.

**When to use:** First call in a new conversation, to learn how the server is configured and which files it can read.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"form_fields":        FormFieldsDescription,
	"form_session_start": FormSessionStartDescription,
	"form_set_field":     FormSetFieldDescription,
	"form_set_signature": FormSetSignatureDescription,
	"form_attach_pdf":    FormAttachPDFDescription,
	"form_validate":      FormValidateDescription,
	"form_preview":       FormPreviewDescription,
	"form_generate_pdf":  FormGeneratePDFDescription,
	"form_merge_pdf":     FormMergePDFDescription,
	"form_compress_pdf":  FormCompressPDFDescription,
	"form_inspect_pdf":   FormInspectPDFDescription,
	"form_submit":        FormSubmitDescription,
	"form_reset":         FormResetDescription,
	"form_server_info":   FormServerInfoDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns every tool name, sorted
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
