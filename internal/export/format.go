// Package export serializes rendered documents into output formats.
package export

import (
	"strings"
)

// Format is a supported output format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatXLSX Format = "xlsx"
)

// Formats returns every supported format in a stable order.
func Formats() []Format {
	return []Format{FormatPDF, FormatDOCX, FormatXLSX}
}

// ParseFormat maps a case-insensitive format name to a Format.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if !f.IsValid() {
		return "", &Error{Kind: UnsupportedFormat, Format: Format(s)}
	}
	return f, nil
}

// IsValid проверяет валидность формата
func (f Format) IsValid() bool {
	switch f {
	case FormatPDF, FormatDOCX, FormatXLSX:
		return true
	default:
		return false
	}
}

func (f Format) String() string {
	return string(f)
}
