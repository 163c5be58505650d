package export

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/JonMunkholm/datagrid/internal/core"
)

// csvEncoder writes comma-separated text: a header of column ids, then one
// line per row, every line terminated by "\n". Text-column strings are always
// quoted; other values are quoted only when they contain a comma, quote or
// line break. encoding/csv cannot force quoting, so the writer is local.
type csvEncoder struct{}

func (csvEncoder) Encode(ctx context.Context, w io.Writer, s *Snapshot) error {
	bw := bufio.NewWriter(w)

	ids := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		ids[i] = c.ID
	}
	if err := writeCSVLine(bw, ids, nil); err != nil {
		return err
	}

	force := make([]bool, len(s.Columns))
	fields := make([]string, len(s.Columns))
	for i, row := range s.Rows {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for j, col := range s.Columns {
			v := row.Value(col.ID)
			_, isString := v.(string)
			force[j] = col.Kind == core.FieldText && isString
			fields[j] = core.Stringify(v)
		}
		if err := writeCSVLine(bw, fields, force); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func writeCSVLine(w *bufio.Writer, fields []string, force []bool) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		quote := (force != nil && force[i]) || needsQuotes(f)
		if !quote {
			if _, err := w.WriteString(f); err != nil {
				return err
			}
			continue
		}
		if err := w.WriteByte('"'); err != nil {
			return err
		}
		if _, err := w.WriteString(strings.ReplaceAll(f, `"`, `""`)); err != nil {
			return err
		}
		if err := w.WriteByte('"'); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}

func needsQuotes(s string) bool {
	return strings.ContainsAny(s, ",\"\r\n")
}
