package form

import (
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/a3tai/mcp-form-filler/internal/dataurl"
	ferrors "github.com/a3tai/mcp-form-filler/internal/errors"
	"github.com/a3tai/mcp-form-filler/internal/fields"
)

// DateLayouts are the accepted layouts for date fields
var DateLayouts = []string{"2006-01-02", "02/01/2006"}

const minPhoneDigits = 7

// Issue describes one invalid field
type Issue struct {
	Field   string `json:"field"`
	Label   string `json:"label,omitempty"`
	Message string `json:"message"`
}

// ValidationResult captures the outcome of validating a snapshot
type ValidationResult struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues,omitempty"`
	// Complete and SignatureComplete mirror the Snapshot checks
	Complete          bool `json:"complete"`
	SignatureComplete bool `json:"signature_complete"`
}

// Err converts a failed result into a validation error naming the first issue
func (r ValidationResult) Err() error {
	if r.Valid || len(r.Issues) == 0 {
		return nil
	}
	first := r.Issues[0]
	fe := ferrors.New(ferrors.ErrorTypeValidation, first.Message).WithField(first.Field)
	if len(r.Issues) > 1 {
		fe.WithContext(fmt.Sprintf("%d more invalid field(s)", len(r.Issues)-1))
	}
	return fe
}

// Validate checks a snapshot against the registry. Hidden and derived fields
// are not validated on their own.
func Validate(reg *fields.Registry, snap Snapshot) ValidationResult {
	result := ValidationResult{
		Valid:             true,
		Complete:          snap.Complete(reg),
		SignatureComplete: snap.SignatureComplete(reg),
	}

	for _, d := range reg.Fields() {
		if d.Hidden || d.IsDerived() {
			continue
		}
		if msg := validateField(d, snap.Value(d.Key)); msg != "" {
			result.Valid = false
			result.Issues = append(result.Issues, Issue{Field: d.Key, Label: d.Label, Message: msg})
		}
	}

	return result
}

func validateField(d fields.Descriptor, raw string) string {
	value := strings.TrimSpace(raw)

	if d.IsSignature() {
		if value == "" {
			if d.Required {
				return "signature is required"
			}
			return ""
		}
		if _, err := dataurl.Decode(value); err != nil {
			return err.Error()
		}
		return ""
	}

	if value == "" {
		if d.Required {
			return fmt.Sprintf("%s is required", labelOf(d))
		}
		return ""
	}

	switch d.Kind {
	case fields.KindEmail:
		addr, err := mail.ParseAddress(value)
		if err != nil || addr.Address != value {
			return fmt.Sprintf("%s is not a valid email address", labelOf(d))
		}
	case fields.KindNumber:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Sprintf("%s must be a number", labelOf(d))
		}
	case fields.KindTel:
		if !validPhone(value) {
			return fmt.Sprintf("%s is not a valid phone number", labelOf(d))
		}
	case fields.KindDate:
		if !validDate(value) {
			return fmt.Sprintf("%s must be a date (%s)", labelOf(d), strings.Join(DateLayouts, " or "))
		}
	}
	return ""
}

func labelOf(d fields.Descriptor) string {
	if d.Label != "" {
		return d.Label
	}
	return d.Key
}

func validPhone(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		case r == '+':
		default:
			return false
		}
	}
	return digits >= minPhoneDigits
}

func validDate(s string) bool {
	for _, layout := range DateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
