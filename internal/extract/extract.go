// Package extract turns uploaded bytes into plain text, picking the
// adapter by file extension.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"pandaqa/internal/pkg/pdfextract"
)

// Kind tags the detected upload format.
type Kind string

const (
	KindText     Kind = "txt"
	KindMarkdown Kind = "md"
	KindCSV      Kind = "csv"
	KindPDF      Kind = "pdf"
)

var ErrUnsupportedType = errors.New("unsupported file type")

// Detect maps a filename extension to a supported format kind.
func Detect(filename string) (Kind, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	switch ext {
	case "txt":
		return KindText, nil
	case "md":
		return KindMarkdown, nil
	case "csv":
		return KindCSV, nil
	case "pdf":
		return KindPDF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
}

// Text extracts plain text from raw upload bytes according to kind.
// Plain-text formats are decoded as UTF-8 with a Latin-1 fallback, so
// byte content never fails decoding outright.
func Text(kind Kind, content []byte) (string, error) {
	switch kind {
	case KindText, KindMarkdown, KindCSV:
		return decodeText(content), nil
	case KindPDF:
		return pdfextract.ExtractText(content)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, kind)
	}
}

func decodeText(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}
	// Latin-1: every byte maps 1:1 to the code point of the same value.
	runes := make([]rune, len(content))
	for i, b := range content {
		runes[i] = rune(b)
	}
	return string(runes)
}
