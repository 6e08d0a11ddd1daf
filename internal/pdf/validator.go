package pdf

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	ferrors "github.com/a3tai/mcp-form-filler/internal/errors"
)

var pdfHeader = []byte("%PDF-")

// Validator checks documents before they enter the pipeline
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a new PDF validator with the specified constraints
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
	}
}

// ValidationReport is the outcome of validating a document
type ValidationReport struct {
	Valid   bool   `json:"valid"`
	Path    string `json:"path,omitempty"`
	Pages   int    `json:"pages,omitempty"`
	Size    int64  `json:"size"`
	Message string `json:"message,omitempty"`
}

// Validate checks the header, size limit and that pdfcpu can parse data
func (v *Validator) Validate(data []byte) error {
	if len(data) == 0 {
		return ferrors.New(ferrors.ErrorTypeParse, "PDF is empty")
	}
	if v.maxFileSize > 0 && int64(len(data)) > v.maxFileSize {
		return ferrors.Newf(ferrors.ErrorTypeSizeLimit, "PDF too large: %d bytes (max: %d bytes)",
			len(data), v.maxFileSize)
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\n\r "), pdfHeader) {
		return ferrors.New(ferrors.ErrorTypeParse, "missing %PDF- header")
	}
	if _, err := PageCount(data); err != nil {
		return ferrors.Wrap(ferrors.ErrorTypeParse, "invalid PDF", err)
	}
	return nil
}

// ReadFile validates the file at filePath and returns its bytes
func (v *Validator) ReadFile(filePath string) ([]byte, error) {
	if err := v.validateFileInfo(filePath); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("cannot read file: %w", err)
	}
	if err := v.Validate(data); err != nil {
		return nil, err
	}
	return data, nil
}

// ValidateFile reports whether the file at filePath is a usable PDF.
// Validation failures are reported in the result, not as an error.
func (v *Validator) ValidateFile(filePath string) *ValidationReport {
	report := &ValidationReport{Path: filePath}

	data, err := v.ReadFile(filePath)
	if err != nil {
		report.Message = err.Error()
		return report
	}

	report.Size = int64(len(data))
	report.Pages, _ = PageCount(data)
	report.Valid = true
	return report
}

// IsValidPDF performs a quick check to see if a file is a valid PDF
func (v *Validator) IsValidPDF(filePath string) bool {
	_, err := v.ReadFile(filePath)
	return err == nil
}

func (v *Validator) validateFileInfo(filePath string) error {
	if filePath == "" {
		return fmt.Errorf("path cannot be empty")
	}

	fileInfo, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", filePath)
	}
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}

	if fileInfo.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	if !strings.HasSuffix(strings.ToLower(filePath), ".pdf") {
		return fmt.Errorf("file is not a PDF: %s", filePath)
	}

	if fileInfo.Size() == 0 {
		return fmt.Errorf("file is empty: %s", filePath)
	}

	if v.maxFileSize > 0 && fileInfo.Size() > v.maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)",
			fileInfo.Size(), v.maxFileSize)
	}

	return nil
}
