package export

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/datagrid/internal/core"
)

// Format is a supported export file format.
type Format int

const (
	FormatCSV Format = iota
	FormatXLSX
	FormatPDF
)

// Formats lists every supported format in menu order.
func Formats() []Format {
	return []Format{FormatCSV, FormatXLSX, FormatPDF}
}

// String returns the lowercase format name, which is also its file extension.
func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatXLSX:
		return "xlsx"
	case FormatPDF:
		return "pdf"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Extension returns the file extension without the leading dot.
func (f Format) Extension() string {
	return f.String()
}

// MIMEType returns the content type handed to the download sink.
func (f Format) MIMEType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	return f >= FormatCSV && f <= FormatPDF
}

// ParseFormat converts a format name or extension ("csv", ".XLSX", "pdf") to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "pdf":
		return FormatPDF, nil
	default:
		return FormatCSV, &core.ValidationError{
			Field:   "format",
			Value:   s,
			Message: "unsupported export format",
		}
	}
}

// MarshalText renders the format by name in JSON and YAML.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText parses a format name.
func (f *Format) UnmarshalText(b []byte) error {
	v, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}
