// Package dispatch builds the submission payload and posts it to the
// email-sending collaborator.
package dispatch

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/a3tai/mcp-form-filler/internal/fields"
	"github.com/a3tai/mcp-form-filler/internal/form"
)

// EncodingBase64 is the only attachment encoding the collaborator accepts
const EncodingBase64 = "base64"

// Attachment is a file carried in the payload
type Attachment struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
	Encoding    string `json:"encoding"`
}

// NewAttachment base64-encodes data
func NewAttachment(filename, contentType string, data []byte) Attachment {
	return Attachment{
		Filename:    filename,
		Content:     base64.StdEncoding.EncodeToString(data),
		ContentType: contentType,
		Encoding:    EncodingBase64,
	}
}

// Payload is the JSON body posted to the email endpoint
type Payload struct {
	To          string       `json:"to"`
	Subject     string       `json:"subject"`
	HTML        string       `json:"html"`
	Attachments []Attachment `json:"attachments"`
}

// AttachmentContents returns the base64 content of every attachment
func (p *Payload) AttachmentContents() []string {
	out := make([]string, len(p.Attachments))
	for i, a := range p.Attachments {
		out[i] = a.Content
	}
	return out
}

// Message addresses the submission
type Message struct {
	To      string
	Subject string
	// Note is free text from the user, sanitized before it is embedded
	Note string
}

type row struct {
	Label string
	Value string
}

var bodyTemplate = template.Must(template.New("body").Parse(`<h2>{{.Subject}}</h2>
<table cellpadding="4" cellspacing="0" border="1">
{{- range .Rows}}
<tr><th align="left">{{.Label}}</th><td>{{.Value}}</td></tr>
{{- end}}
</table>
{{- if .Note}}
<p>{{.Note}}</p>
{{- end}}
{{- if .Files}}
<p>Attached: {{range $i, $f := .Files}}{{if $i}}, {{end}}{{$f}}{{end}}</p>
{{- end}}
`))

var (
	notePolicyOnce sync.Once
	notePolicy     *bluemonday.Policy
)

func noteSanitizer() *bluemonday.Policy {
	notePolicyOnce.Do(func() {
		notePolicy = bluemonday.UGCPolicy()
	})
	return notePolicy
}

// BuildPayload renders the HTML body from the registry and values and
// attaches the given files. Hidden, signature and derived fields are left
// out of the body.
func BuildPayload(reg *fields.Registry, snap form.Snapshot, msg Message, attachments ...Attachment) (*Payload, error) {
	if strings.TrimSpace(msg.To) == "" {
		return nil, fmt.Errorf("recipient cannot be empty")
	}

	rows := make([]row, 0, reg.Len())
	for _, d := range reg.Fields() {
		if d.Hidden || d.IsSignature() || d.IsDerived() {
			continue
		}
		label := d.Label
		if label == "" {
			label = d.Key
		}
		rows = append(rows, row{Label: label, Value: strings.TrimSpace(snap.Value(d.Key))})
	}

	files := make([]string, len(attachments))
	for i, a := range attachments {
		files[i] = a.Filename
	}

	var note template.HTML
	if trimmed := strings.TrimSpace(msg.Note); trimmed != "" {
		note = template.HTML(noteSanitizer().Sanitize(trimmed)) //nolint:gosec // sanitized by bluemonday
	}

	var buf bytes.Buffer
	err := bodyTemplate.Execute(&buf, struct {
		Subject string
		Rows    []row
		Note    template.HTML
		Files   []string
	}{msg.Subject, rows, note, files})
	if err != nil {
		return nil, fmt.Errorf("failed to render email body: %w", err)
	}

	if attachments == nil {
		attachments = []Attachment{}
	}
	return &Payload{
		To:          msg.To,
		Subject:     msg.Subject,
		HTML:        buf.String(),
		Attachments: attachments,
	}, nil
}
