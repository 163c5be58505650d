package export

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JonMunkholm/datagrid/internal/core"
)

// MaxFilenameLength bounds the base filename, extension excluded.
const MaxFilenameLength = 100

// reservedFilenameChars cannot appear in a filename on common filesystems.
const reservedFilenameChars = `/\<>:"|?*`

// Request describes one export action. It is constructed per action and
// discarded after completion.
type Request struct {
	Format         Format
	Filename       string   // Base name; a matching extension is stripped
	ExcludeColumns []string // Column ids left out, typically structural ones
	OnlySelected   bool     // Export the selected visible rows only
	Title          string   // Optional heading for paginated output
}

// Snapshot is the immutable input of an export: the request plus the columns
// and rows captured when the export was invoked.
type Snapshot struct {
	Request Request
	Table   core.TableInfo
	Columns []core.Column
	Rows    []core.Row
	TakenAt time.Time
}

// NewSnapshot deep-copies columns and rows so later view mutations cannot
// affect an in-flight export.
func NewSnapshot(req Request, columns []core.Column, rows []core.Row) *Snapshot {
	s := &Snapshot{
		Request: req,
		Columns: make([]core.Column, len(columns)),
		Rows:    make([]core.Row, len(rows)),
		TakenAt: time.Now(),
	}
	s.Request.ExcludeColumns = append([]string(nil), req.ExcludeColumns...)
	for i, c := range columns {
		c.Options = append([]core.Option(nil), c.Options...)
		s.Columns[i] = c
	}
	for i, r := range rows {
		s.Rows[i] = core.NewRow(r.Key, r.Cells)
	}
	return s
}

// FromView builds a snapshot from a table view capture.
func FromView(req Request, vs *core.ViewSnapshot) *Snapshot {
	s := NewSnapshot(req, vs.Columns, vs.Rows)
	s.Table = vs.Table
	s.TakenAt = vs.TakenAt
	return s
}

// ValidateFilename trims name, strips a trailing extension matching f and
// returns the base filename. Empty, overlong or unsafe names yield a
// *core.ValidationError.
func ValidateFilename(name string, f Format) (string, error) {
	base := strings.TrimSpace(name)
	ext := "." + f.Extension()
	if len(base) >= len(ext) && strings.EqualFold(base[len(base)-len(ext):], ext) {
		base = strings.TrimSpace(base[:len(base)-len(ext)])
	}

	if base == "" {
		return "", &core.ValidationError{Field: "filename", Value: name, Message: "filename is required"}
	}
	if strings.ContainsAny(base, reservedFilenameChars) || strings.ContainsFunc(base, isControl) {
		return "", &core.ValidationError{Field: "filename", Value: name, Message: "filename contains reserved characters"}
	}
	if base == "." || base == ".." {
		return "", &core.ValidationError{Field: "filename", Value: name, Message: "filename contains reserved characters"}
	}
	if utf8.RuneCountInString(base) > MaxFilenameLength {
		return "", &core.ValidationError{Field: "filename", Value: name, Message: "filename exceeds 100 characters"}
	}
	return base, nil
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}

// validate checks the request before any serialization work and returns the
// full delivery filename.
func (r Request) validate() (string, error) {
	if !r.Format.Valid() {
		return "", &core.ValidationError{Field: "format", Value: r.Format.String(), Message: "unsupported export format"}
	}
	base, err := ValidateFilename(r.Filename, r.Format)
	if err != nil {
		return "", err
	}
	return base + "." + r.Format.Extension(), nil
}
