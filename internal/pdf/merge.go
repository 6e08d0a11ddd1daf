package pdf

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	ferrors "github.com/a3tai/mcp-form-filler/internal/errors"
)

// MergeResult is the merged document
type MergeResult struct {
	Bytes     []byte `json:"-"`
	PageCount int    `json:"page_count"`
	TotalSize int    `json:"total_size"`
}

// newConfiguration returns the pdfcpu configuration shared by all operations
func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PageCount returns the number of pages in data
func PageCount(data []byte) (count int, err error) {
	defer func() {
		if r := recover(); r != nil {
			count, err = 0, fmt.Errorf("failed to read PDF: %v", r)
		}
	}()

	ctx, err := api.ReadContext(bytes.NewReader(data), newConfiguration())
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return 0, fmt.Errorf("failed to ensure page count: %w", err)
	}
	return ctx.PageCount, nil
}

// Merge appends every page of secondary after every page of primary.
// Both inputs must parse; the error names the one that does not.
func Merge(primary, secondary []byte) (*MergeResult, error) {
	primaryPages, err := PageCount(primary)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrorTypeParse, "primary PDF could not be parsed", err)
	}
	secondaryPages, err := PageCount(secondary)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrorTypeParse, "secondary PDF could not be parsed", err)
	}

	inputs := []io.ReadSeeker{bytes.NewReader(primary), bytes.NewReader(secondary)}
	var buf bytes.Buffer
	if err := api.MergeRaw(inputs, &buf, false, newConfiguration()); err != nil {
		return nil, ferrors.Wrap(ferrors.ErrorTypeParse, "failed to merge PDFs", err)
	}

	merged := buf.Bytes()
	pages, err := PageCount(merged)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrorTypeParse, "merged PDF could not be parsed", err)
	}
	if pages != primaryPages+secondaryPages {
		return nil, ferrors.Newf(ferrors.ErrorTypeParse,
			"merged PDF has %d pages, expected %d", pages, primaryPages+secondaryPages)
	}

	return &MergeResult{
		Bytes:     merged,
		PageCount: pages,
		TotalSize: len(merged),
	}, nil
}
