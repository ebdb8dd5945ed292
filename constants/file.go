package constants

import (
	"bytes"
	"strings"
)

// PDFMagic is the header every PDF starts with.
var PDFMagic = []byte("%PDF-")

// MaxPDFBytes caps uploads accepted by the ingestion paths.
const MaxPDFBytes = 100 << 20

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsPDFExt reports whether ext (with or without dot) names a PDF.
func IsPDFExt(ext string) bool {
	return NormalizeExt(ext) == "pdf"
}

// LooksLikePDF sniffs the magic within the first KiB, where some
// generators put a BOM or junk before the header.
func LooksLikePDF(head []byte) bool {
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, PDFMagic)
}
