package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/datagrid/internal/core"
)

func TestExport_CSVExcludesStructuralColumns(t *testing.T) {
	sink := &recordingSink{}
	engine := NewEngine(sink)

	snap := NewSnapshot(
		Request{Format: FormatCSV, Filename: "tasks", ExcludeColumns: []string{"select", "actions"}},
		taskColumns(),
		[]core.Row{taskRow("1", "Fix bug", "DONE")},
	)

	res, err := engine.Export(context.Background(), snap)
	require.NoError(t, err)

	got := sink.last()
	assert.Equal(t, "tasks.csv", got.filename)
	assert.Equal(t, "text/csv; charset=utf-8", got.mimeType)
	assert.Equal(t, "title,status\n\"Fix bug\",DONE\n", string(got.payload))
	assert.Equal(t, 1, res.Rows)
	assert.Equal(t, len(got.payload), res.Bytes)
}

func TestExport_CSVQuoting(t *testing.T) {
	cols := []core.Column{
		{ID: "title", Kind: core.FieldText, Visible: true},
		{ID: "status", Kind: core.FieldEnum, Visible: true},
		{ID: "estimate", Kind: core.FieldNumeric, Visible: true},
		{ID: "createdAt", Kind: core.FieldDate, Visible: true},
	}

	tests := []struct {
		name  string
		cells map[string]any
		want  string
	}{
		{
			name:  "comma in text",
			cells: map[string]any{"title": "Fix, then ship", "status": "DONE", "estimate": 3.5},
			want:  `"Fix, then ship",DONE,3.5,`,
		},
		{
			name:  "embedded quotes doubled",
			cells: map[string]any{"title": `Say "hi"`, "status": "TODO"},
			want:  `"Say ""hi""",TODO,,`,
		},
		{
			name:  "newline in text",
			cells: map[string]any{"title": "two\nlines", "status": "TODO"},
			want:  "\"two\nlines\",TODO,,",
		},
		{
			name:  "enum with comma is quoted",
			cells: map[string]any{"title": "x", "status": "A,B"},
			want:  `"x","A,B",,`,
		},
		{
			name:  "non-string values unquoted",
			cells: map[string]any{"title": float64(42), "estimate": int64(7), "createdAt": time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
			want:  `42,,7,2024-05-01`,
		},
		{
			name:  "empty text is quoted, null is empty",
			cells: map[string]any{"title": "", "status": nil},
			want:  `"",,,`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			snap := NewSnapshot(Request{Format: FormatCSV, Filename: "x"}, cols, []core.Row{core.NewRow("1", tt.cells)})

			require.NoError(t, csvEncoder{}.Encode(context.Background(), &buf, snap))
			assert.Equal(t, "title,status,estimate,createdAt\n"+tt.want+"\n", buf.String())
		})
	}
}

func TestExport_EmptyFilenameNeverTouchesSink(t *testing.T) {
	for _, f := range Formats() {
		for _, name := range []string{"", "   ", "\t", "." + f.Extension()} {
			t.Run(f.String()+"/"+name, func(t *testing.T) {
				sink := &recordingSink{}
				enc := &countingEncoder{}
				engine := NewEngine(sink, WithEncoder(f, enc))

				snap := NewSnapshot(Request{Format: f, Filename: name}, taskColumns(), []core.Row{taskRow("1", "a", "TODO")})
				_, err := engine.Export(context.Background(), snap)

				require.Error(t, err)
				var ve *core.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, "filename", ve.Field)
				assert.Equal(t, 0, sink.count(), "sink was called")
				assert.Equal(t, 0, enc.calls, "encoder ran before validation")
			})
		}
	}
}

type countingEncoder struct{ calls int }

func (c *countingEncoder) Encode(context.Context, io.Writer, *Snapshot) error {
	c.calls++
	return nil
}

func TestExport_EmptySourceHeaderOnly(t *testing.T) {
	ctx := context.Background()

	t.Run("csv", func(t *testing.T) {
		sink := &recordingSink{}
		_, err := NewEngine(sink).Export(ctx, NewSnapshot(Request{Format: FormatCSV, Filename: "empty"}, taskColumns(), nil))
		require.NoError(t, err)

		payload := string(sink.last().payload)
		assert.Equal(t, "title,status\n", payload)
		assert.Equal(t, 1, strings.Count(payload, "\n"))
	})

	t.Run("xlsx", func(t *testing.T) {
		sink := &recordingSink{}
		_, err := NewEngine(sink).Export(ctx, NewSnapshot(Request{Format: FormatXLSX, Filename: "empty"}, taskColumns(), nil))
		require.NoError(t, err)

		f, err := excelize.OpenReader(bytes.NewReader(sink.last().payload))
		require.NoError(t, err)
		defer f.Close()

		assert.Equal(t, []string{SheetName}, f.GetSheetList())
		rows, err := f.GetRows(SheetName)
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"Title", "Status"}}, rows)
	})

	t.Run("pdf", func(t *testing.T) {
		sink := &recordingSink{}
		_, err := NewEngine(sink).Export(ctx, NewSnapshot(Request{Format: FormatPDF, Filename: "empty"}, taskColumns(), nil))
		require.NoError(t, err)

		payload := sink.last().payload
		assert.True(t, bytes.HasPrefix(payload, []byte("%PDF-")), "payload is not a PDF")
		assert.True(t, bytes.Contains(payload, []byte("%%EOF")), "PDF is not terminated")
		assert.Equal(t, "application/pdf", sink.last().mimeType)
	})
}

func TestExport_XLSXReadBack(t *testing.T) {
	sink := &recordingSink{}
	cols := append(taskColumns(), core.Column{ID: "estimate", Label: "Estimate", Kind: core.FieldNumeric, Visible: true})
	rows := []core.Row{
		core.NewRow("1", map[string]any{"title": "Fix, bug", "status": "DONE", "estimate": 2.5}),
		core.NewRow("2", map[string]any{"title": "Docs", "status": nil, "estimate": nil}),
	}

	res, err := NewEngine(sink).Export(context.Background(), NewSnapshot(Request{Format: FormatXLSX, Filename: "report.XLSX", Title: "Tasks"}, cols, rows))
	require.NoError(t, err)
	assert.Equal(t, "report.xlsx", res.Filename)

	f, err := excelize.OpenReader(bytes.NewReader(sink.last().payload))
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"Title", "Status", "Estimate"}, got[0])
	assert.Equal(t, []string{"Fix, bug", "DONE", "2.5"}, got[1])
	assert.Equal(t, "Docs", got[2][0])

	styleID, err := f.GetCellStyle(SheetName, "A1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold, "header is not bold")
}

func TestExport_PDFPaginatesAndRepeatsHeader(t *testing.T) {
	cols := []core.Column{
		{ID: "title", Label: "Title", Kind: core.FieldText, Visible: true},
		{ID: "status", Label: "Status", Kind: core.FieldEnum, Visible: true},
		{ID: "createdAt", Label: "Created", Kind: core.FieldDate, Visible: true},
	}

	small, err := renderPDF(context.Background(), NewSnapshot(Request{Format: FormatPDF, Filename: "x"}, cols, manyRows(5)))
	require.NoError(t, err)
	assert.Equal(t, 1, small.PageNo())

	large, err := renderPDF(context.Background(), NewSnapshot(Request{Format: FormatPDF, Filename: "x", Title: "All tasks"}, cols, manyRows(300)))
	require.NoError(t, err)
	assert.Greater(t, large.PageNo(), 1)
}

func TestExport_PDFWidthsFillPage(t *testing.T) {
	snap := NewSnapshot(Request{Format: FormatPDF, Filename: "x"}, taskColumns(), manyRows(3))
	doc, err := renderPDF(context.Background(), snap)
	require.NoError(t, err)

	tbl := &pdfTable{doc: doc, tr: func(s string) string { return s }, headers: []string{"Title", "Status"}}
	widths := tbl.fitWidths([][]string{{"a", "b"}})
	pageW, _ := doc.GetPageSize()

	total := 0.0
	for _, w := range widths {
		total += w
	}
	assert.InDelta(t, pageW-2*pdfMargin, total, 0.01)
}

func TestExport_PDFEllipsizesOverlongCell(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	cols := []core.Column{
		{ID: "title", Label: "Title", Kind: core.FieldText, Visible: true},
		{ID: "status", Label: "Status", Kind: core.FieldEnum, Visible: true},
	}
	long := strings.Repeat("release notes ", 2000)
	rows := append(manyRows(2), core.NewRow("", map[string]any{"title": long, "status": "DONE"}))

	doc, err := renderPDF(context.Background(), NewSnapshot(Request{Format: FormatPDF, Filename: "notes"}, cols, rows))
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "pdf cells truncated")
	assert.Contains(t, logs.String(), `"cells":1`)

	tbl := &pdfTable{doc: doc, widths: []float64{60}}
	lines, truncated := tbl.wrap(long, 0)
	require.True(t, truncated)
	assert.Len(t, lines, tbl.maxLines())
	last := lines[len(lines)-1]
	assert.True(t, strings.HasSuffix(last, pdfEllipsis), "last line %q has no ellipsis", last)
	assert.LessOrEqual(t, doc.GetStringWidth(last), 60-2*pdfCellPadding)

	short, truncated := tbl.wrap("Fix bug", 0)
	assert.False(t, truncated)
	assert.Equal(t, []string{"Fix bug"}, short)
}

func TestExport_EncodeFailure(t *testing.T) {
	sink := &recordingSink{}
	engine := NewEngine(sink, WithEncoder(FormatPDF, failingEncoder{}))

	_, err := engine.Export(context.Background(), NewSnapshot(Request{Format: FormatPDF, Filename: "r"}, taskColumns(), nil))
	require.Error(t, err)

	var ef *ExportFailure
	require.ErrorAs(t, err, &ef)
	assert.Equal(t, FormatPDF, ef.Format)
	assert.Equal(t, "r.pdf", ef.Filename)
	assert.Equal(t, "encode", ef.Stage)
	assert.Equal(t, 0, sink.count())
	assert.Equal(t, "EXP006", core.MapError(err).Code)
}

func TestExport_DeliveryFailure(t *testing.T) {
	sink := &recordingSink{err: errDiskFull}
	_, err := NewEngine(sink).Export(context.Background(), NewSnapshot(Request{Format: FormatCSV, Filename: "r"}, taskColumns(), nil))

	require.Error(t, err)
	assert.True(t, IsExportFailure(err))
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, "EXP005", core.MapError(err).Code)
}

func TestExport_CancelledContextSuppressesDelivery(t *testing.T) {
	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(sink).Export(ctx, NewSnapshot(Request{Format: FormatCSV, Filename: "r"}, taskColumns(), nil))
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 0, sink.count())
}

func TestExport_XLSXSheetLimit(t *testing.T) {
	cols := make([]core.Column, maxSheetColumns+1)
	for i := range cols {
		cols[i] = core.Column{ID: fmt.Sprintf("c%d", i), Kind: core.FieldText}
	}

	var buf bytes.Buffer
	err := xlsxEncoder{}.Encode(context.Background(), &buf, NewSnapshot(Request{Format: FormatXLSX, Filename: "x"}, cols, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sheet limit")
}

func TestNewSnapshot_IsDetached(t *testing.T) {
	cols := taskColumns()
	rows := []core.Row{taskRow("1", "Fix bug", "DONE")}
	req := Request{Format: FormatCSV, Filename: "x", ExcludeColumns: []string{"select"}}

	snap := NewSnapshot(req, cols, rows)
	cols[0].ID = "mutated"
	cols[1].Options[0].Value = "mutated"
	rows[0].Cells["title"] = "mutated"
	req.ExcludeColumns[0] = "mutated"

	assert.Equal(t, "title", snap.Columns[0].ID)
	assert.Equal(t, "TODO", snap.Columns[1].Options[0].Value)
	assert.Equal(t, "Fix bug", snap.Rows[0].Value("title"))
	assert.Equal(t, "select", snap.Request.ExcludeColumns[0])
}

func TestFromView(t *testing.T) {
	vs := &core.ViewSnapshot{
		Table:   core.TableInfo{Key: "tasks"},
		Columns: taskColumns(),
		Rows:    []core.Row{taskRow("1", "a", "TODO")},
		TakenAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	snap := FromView(Request{Format: FormatCSV, Filename: "x"}, vs)

	assert.Equal(t, "tasks", snap.Table.Key)
	assert.Equal(t, vs.TakenAt, snap.TakenAt)
	assert.Len(t, snap.Rows, 1)
}
