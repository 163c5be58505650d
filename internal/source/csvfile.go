package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JonMunkholm/datagrid/internal/core"
	"github.com/JonMunkholm/datagrid/internal/logging"
)

// ErrMissingHeader is returned for a CSV file without a header line.
var ErrMissingHeader = errors.New("csv file has no header row")

// CSVFile loads rows from a CSV file whose header names the table's columns
// by id or label. Unknown header columns are ignored; columns missing from
// the file load as nil.
type CSVFile struct {
	Path       string
	Columns    []core.Column
	KeyColumn  string
	Comma      rune // defaults to ','
	checkEvery int
}

// NewCSVFile returns a loader for path shaped by def.
func NewCSVFile(path string, def core.TableDefinition) *CSVFile {
	return &CSVFile{
		Path:       path,
		Columns:    def.DataColumns(),
		KeyColumn:  def.KeyColumn,
		Comma:      ',',
		checkEvery: 1000,
	}
}

// Load reads and parses the whole file.
func (l *CSVFile) Load(ctx context.Context) ([]core.Row, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	rows, n, err := l.read(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", l.Path, err)
	}
	logging.FromContext(ctx).Debug("csv parsed", "path", l.Path, "rows", len(rows), "bytes", n)
	return rows, nil
}

func (l *CSVFile) read(ctx context.Context, r io.Reader) ([]core.Row, int64, error) {
	in, counter := cleanInput(r)
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	if l.Comma != 0 {
		cr.Comma = l.Comma
	}

	header, err := cr.Read()
	if err == io.EOF {
		return nil, counter.n, ErrMissingHeader
	}
	if err != nil {
		return nil, counter.n, fmt.Errorf("header: %w", err)
	}

	index := l.mapHeader(header)
	every := l.checkEvery
	if every <= 0 {
		every = 1000
	}

	var rows []core.Row
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, counter.n, fmt.Errorf("line %d: %w", line, err)
		}
		if isBlankRecord(record) {
			continue
		}
		if len(rows)%every == 0 {
			if err := ctx.Err(); err != nil {
				return nil, counter.n, err
			}
		}

		cells := make(map[string]any, len(l.Columns))
		for i, col := range l.Columns {
			pos := index[i]
			if pos < 0 || pos >= len(record) {
				cells[col.ID] = nil
				continue
			}
			cells[col.ID] = core.CoerceCell(col.Kind, record[pos])
		}
		rows = append(rows, core.Row{Key: rowKey(l.KeyColumn, cells, len(rows)+1), Cells: cells})
	}
	return rows, counter.n, nil
}

// mapHeader returns, per column, the index of its header field or -1.
// Column ids match before labels; both ignore case and surrounding space.
func (l *CSVFile) mapHeader(header []string) []int {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := byName[key]; !dup {
			byName[key] = i
		}
	}

	index := make([]int, len(l.Columns))
	for i, col := range l.Columns {
		index[i] = -1
		if pos, ok := byName[strings.ToLower(col.ID)]; ok {
			index[i] = pos
		} else if pos, ok := byName[strings.ToLower(col.Title())]; ok {
			index[i] = pos
		}
	}
	return index
}

func isBlankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
