package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const maxInspectText = 1024 * 1024

// Inspection summarizes a generated or uploaded document
type Inspection struct {
	Pages      int    `json:"pages"`
	Size       int    `json:"size"`
	ImageCount int    `json:"image_count"`
	Text       string `json:"text"`
}

// Inspect reads data back and reports its pages, text and embedded images
func Inspect(data []byte) (result *Inspection, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("failed to read PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	return &Inspection{
		Pages:      reader.NumPage(),
		Size:       len(data),
		ImageCount: countImages(reader),
		Text:       extractText(reader),
	}, nil
}

// extractText concatenates the plain text of every page, skipping pages
// that fail to decode
func extractText(reader *pdf.Reader) string {
	var builder strings.Builder

	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		if builder.Len()+len(content) > maxInspectText {
			builder.WriteString(truncateText(content, maxInspectText-builder.Len()))
			break
		}
		builder.WriteString(content)

		if pageNum < reader.NumPage() {
			builder.WriteString("\n")
		}
	}

	return builder.String()
}

// truncateText cuts s to at most n bytes without splitting a rune
func truncateText(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// countImages counts distinct image XObjects referenced by the pages.
// Writers such as fpdf share one resource dictionary across pages, so
// names already seen are not counted again.
func countImages(reader *pdf.Reader) int {
	seen := make(map[string]bool)
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		for _, name := range imagesOnPage(reader, pageNum) {
			seen[name] = true
		}
	}
	return len(seen)
}

func imagesOnPage(reader *pdf.Reader, pageNum int) (names []string) {
	defer func() {
		if recover() != nil {
			names = nil
		}
	}()

	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return nil
	}

	resources := page.V.Key("Resources")
	if resources.IsNull() {
		return nil
	}

	xObjects := resources.Key("XObject")
	if xObjects.IsNull() || xObjects.Kind() != pdf.Dict {
		return nil
	}

	for _, key := range xObjects.Keys() {
		obj := xObjects.Key(key)
		if obj.IsNull() {
			continue
		}
		subtype := obj.Key("Subtype")
		if subtype.IsNull() || subtype.Name() != "Image" {
			continue
		}
		names = append(names, key)
	}

	return names
}
