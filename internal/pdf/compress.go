package pdf

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// MaxTransmitSize is the largest payload the dispatch collaborator accepts
const MaxTransmitSize = 15 * 1024 * 1024

// CompressionInfo describes one compression attempt
type CompressionInfo struct {
	OriginalSize     int     `json:"original_size"`
	CompressedSize   int     `json:"compressed_size"`
	ReductionPercent float64 `json:"reduction_percent"`
	Success          bool    `json:"success"`
	Message          string  `json:"message"`
}

// CompressionResult holds the bytes to transmit and how they were obtained
type CompressionResult struct {
	Bytes []byte          `json:"-"`
	Info  CompressionInfo `json:"info"`
}

// Compressor re-serializes documents to shrink them below a ceiling
type Compressor struct {
	ceiling int
}

// NewCompressor creates a compressor; a ceiling <= 0 uses MaxTransmitSize
func NewCompressor(ceiling int) *Compressor {
	if ceiling <= 0 {
		ceiling = MaxTransmitSize
	}
	return &Compressor{ceiling: ceiling}
}

// Ceiling returns the size limit in bytes
func (c *Compressor) Ceiling() int {
	return c.ceiling
}

// Compress optimizes data with object and xref streams. It never fails:
// if pdfcpu cannot process the document the original bytes are returned
// with Success false. Output larger than the input is discarded.
func (c *Compressor) Compress(data []byte) (result CompressionResult) {
	defer func() {
		if r := recover(); r != nil {
			result = c.fallback(data, fmt.Sprintf("compression failed: %v", r))
		}
	}()

	conf := newConfiguration()
	conf.WriteObjectStream = true
	conf.WriteXRefStream = true

	var buf bytes.Buffer
	if err := api.Optimize(bytes.NewReader(data), &buf, conf); err != nil {
		return c.fallback(data, fmt.Sprintf("compression failed: %v", err))
	}

	out := buf.Bytes()
	message := "compressed"
	if len(out) >= len(data) {
		out = data
		message = "compression did not reduce size, original kept"
	}

	info := c.info(len(data), len(out))
	if info.Success {
		info.Message = message
	} else {
		info.Message = fmt.Sprintf("%s but still %d bytes, above the %d byte limit", message, len(out), c.ceiling)
	}
	return CompressionResult{Bytes: out, Info: info}
}

func (c *Compressor) fallback(data []byte, message string) CompressionResult {
	info := c.info(len(data), len(data))
	info.Success = false
	info.Message = message
	return CompressionResult{Bytes: data, Info: info}
}

func (c *Compressor) info(original, compressed int) CompressionInfo {
	reduction := 0.0
	if original > 0 {
		reduction = float64(original-compressed) / float64(original) * 100
	}
	return CompressionInfo{
		OriginalSize:     original,
		CompressedSize:   compressed,
		ReductionPercent: reduction,
		Success:          compressed <= c.ceiling,
	}
}
