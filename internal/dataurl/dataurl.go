// Package dataurl decodes the data URLs that carry signature bitmaps.
package dataurl

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ImagePrefix is the prefix every embeddable image value starts with
const ImagePrefix = "data:image/"

// Supported image formats
const (
	FormatPNG  = "PNG"
	FormatJPEG = "JPEG"
)

var (
	// ErrMalformed is returned when the value has no comma separating header and payload
	ErrMalformed = errors.New("malformed data URL")
	// ErrUnsupportedFormat is returned for MIME types other than PNG and JPEG
	ErrUnsupportedFormat = errors.New("unsupported image format for signature")
)

// Image is a decoded data URL
type Image struct {
	MIMEType string
	Format   string
	Data     []byte
}

// IsImage reports whether s looks like an embedded image reference
func IsImage(s string) bool {
	return strings.HasPrefix(s, ImagePrefix)
}

// Decode parses a data URL and returns the raw image bytes.
// Only PNG and JPEG payloads are accepted.
func Decode(s string) (*Image, error) {
	header, payload, ok := strings.Cut(s, ",")
	if !ok {
		return nil, ErrMalformed
	}
	if !strings.HasPrefix(header, "data:") {
		return nil, fmt.Errorf("%w: missing data: scheme", ErrMalformed)
	}

	meta := strings.TrimPrefix(header, "data:")
	params := strings.Split(meta, ";")
	mimeType := strings.ToLower(strings.TrimSpace(params[0]))
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}

	format, err := formatFor(mimeType)
	if err != nil {
		return nil, err
	}

	var data []byte
	if isBase64 {
		data, err = decodeBase64(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		data = []byte(unescaped)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformed)
	}

	return &Image{MIMEType: mimeType, Format: format, Data: data}, nil
}

// Encode builds a base64 data URL for data with the given MIME type
func Encode(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func formatFor(mimeType string) (string, error) {
	switch mimeType {
	case "image/png":
		return FormatPNG, nil
	case "image/jpeg", "image/jpg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, mimeType)
	}
}

// decodeBase64 accepts padded and unpadded payloads
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
