package pdf

import "strings"

// PayloadOverhead approximates the JSON envelope around body and attachments
const PayloadOverhead = 1024

// EstimatePayloadSize returns the approximate transmitted size of an HTML
// body and base64 attachments, counting attachments at their decoded size.
func EstimatePayloadSize(html string, attachmentsBase64 ...string) int {
	total := len(html) + PayloadOverhead
	for _, a := range attachmentsBase64 {
		total += decodedLen(a)
	}
	return total
}

// NeedsCompression reports whether the raw PDF plus the rest of the payload
// exceeds MaxTransmitSize
func NeedsCompression(pdf []byte, html string, attachmentsBase64 ...string) bool {
	return needsCompression(MaxTransmitSize, pdf, html, attachmentsBase64...)
}

// NeedsCompression is like the package function but uses c's ceiling
func (c *Compressor) NeedsCompression(pdf []byte, html string, attachmentsBase64 ...string) bool {
	return needsCompression(c.ceiling, pdf, html, attachmentsBase64...)
}

func needsCompression(limit int, pdf []byte, html string, attachmentsBase64 ...string) bool {
	return len(pdf)+EstimatePayloadSize(html, attachmentsBase64...) > limit
}

// decodedLen computes the decoded size of padded or unpadded base64
func decodedLen(s string) int {
	s = strings.TrimSpace(s)
	n := len(s)
	pad := 0
	for pad < 2 && n-pad > 0 && s[n-pad-1] == '=' {
		pad++
	}
	return (n-pad)*3/4
}
