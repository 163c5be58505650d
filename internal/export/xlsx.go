package export

import (
	"context"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/datagrid/internal/core"
)

// SheetName is the name of the single worksheet in every workbook.
const SheetName = "Sheet1"

// Worksheet limits of the XLSX format.
const (
	maxSheetRows    = 1048576
	maxSheetColumns = 16384
)

const (
	minColumnWidth = 8.0
	maxColumnWidth = 60.0
)

// xlsxEncoder writes a workbook with one sheet: a bold header row of column
// labels followed by one row of display strings per record.
type xlsxEncoder struct{}

func (xlsxEncoder) Encode(ctx context.Context, w io.Writer, s *Snapshot) error {
	if len(s.Columns) > maxSheetColumns {
		return fmt.Errorf("%d columns exceeds sheet limit of %d", len(s.Columns), maxSheetColumns)
	}
	if len(s.Rows)+1 > maxSheetRows {
		return fmt.Errorf("%d rows exceeds sheet limit of %d", len(s.Rows), maxSheetRows-1)
	}

	f := excelize.NewFile()
	defer f.Close()

	if s.Request.Title != "" {
		if err := f.SetDocProps(&excelize.DocProperties{Title: s.Request.Title, Creator: "datagrid"}); err != nil {
			return fmt.Errorf("set document properties: %w", err)
		}
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("open stream writer: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"E0E0E0"}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	cells := make([][]string, len(s.Rows))
	widths := make([]int, len(s.Columns))
	for j, col := range s.Columns {
		widths[j] = utf8.RuneCountInString(col.Title())
	}
	for i, row := range s.Rows {
		cells[i] = make([]string, len(s.Columns))
		for j, col := range s.Columns {
			v := core.Stringify(row.Value(col.ID))
			cells[i][j] = v
			if n := utf8.RuneCountInString(v); n > widths[j] {
				widths[j] = n
			}
		}
	}

	// Column widths must be set before any row is written.
	for j, n := range widths {
		width := float64(n) + 2
		width = min(max(width, minColumnWidth), maxColumnWidth)
		if err := sw.SetColWidth(j+1, j+1, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	header := make([]interface{}, len(s.Columns))
	for j, col := range s.Columns {
		header[j] = excelize.Cell{StyleID: headerStyle, Value: col.Title()}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	values := make([]interface{}, len(s.Columns))
	for i, row := range cells {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for j, v := range row {
			values[j] = v
		}
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(axis, values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	return f.Write(w)
}
