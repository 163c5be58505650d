package export

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/go-pdf/fpdf"

	"github.com/JonMunkholm/datagrid/internal/core"
	"github.com/JonMunkholm/datagrid/internal/logging"
)

// Table styling for paginated output.
const (
	pdfMargin       = 10.0 // mm on every side
	pdfFontSize     = 10.0
	pdfTitleSize    = 14.0
	pdfLineHeight   = 5.0
	pdfCellPadding  = 1.5
	pdfMaxColWidth  = 80.0
	pdfLandscapeMin = 7 // columns at which the page turns landscape
)

var (
	pdfHeaderFill = [3]int{22, 160, 133}
	pdfStripeFill = [3]int{245, 245, 245}
	pdfBorder     = [3]int{200, 200, 200}
	pdfBodyText   = [3]int{60, 60, 60}
)

// pdfEncoder renders a single grid table with a styled header row repeated
// on every page, wrapped cell text and column widths fitted to the page.
type pdfEncoder struct{}

func (pdfEncoder) Encode(ctx context.Context, w io.Writer, s *Snapshot) error {
	doc, err := renderPDF(ctx, s)
	if err != nil {
		return err
	}
	return doc.Output(w)
}

// pdfTable holds the layout state of one rendered table.
type pdfTable struct {
	doc       *fpdf.Fpdf
	tr        func(string) string
	headers   []string
	widths    []float64
	bottom    float64
	truncated int // cells cut short by wrap
}

func renderPDF(ctx context.Context, s *Snapshot) (*fpdf.Fpdf, error) {
	orientation := "P"
	if len(s.Columns) >= pdfLandscapeMin {
		orientation = "L"
	}

	doc := fpdf.New(orientation, "mm", "A4", "")
	doc.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	doc.SetAutoPageBreak(false, pdfMargin)
	doc.SetCellMargin(pdfCellPadding)
	doc.SetCreator("datagrid", true)
	if s.Request.Title != "" {
		doc.SetTitle(s.Request.Title, true)
	}

	t := &pdfTable{doc: doc, tr: doc.UnicodeTranslatorFromDescriptor("")}
	_, pageH := doc.GetPageSize()
	t.bottom = pageH - pdfMargin

	body := make([][]string, len(s.Rows))
	for i, row := range s.Rows {
		body[i] = make([]string, len(s.Columns))
		for j, col := range s.Columns {
			body[i][j] = t.tr(core.Stringify(row.Value(col.ID)))
		}
	}
	t.headers = make([]string, len(s.Columns))
	for j, col := range s.Columns {
		t.headers[j] = t.tr(col.Title())
	}
	t.widths = t.fitWidths(body)

	doc.AddPage()
	if s.Request.Title != "" {
		doc.SetFont("Helvetica", "B", pdfTitleSize)
		doc.SetTextColor(0, 0, 0)
		doc.CellFormat(0, 8, t.tr(s.Request.Title), "", 1, "L", false, 0, "")
		doc.Ln(2)
	}
	t.drawHeader()

	for i, cells := range body {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		t.drawRow(cells, i%2 == 1)
	}

	if err := doc.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	if t.truncated > 0 {
		logging.FromContext(ctx).Warn("pdf cells truncated",
			"filename", s.Request.Filename,
			"cells", t.truncated,
			"max_lines", t.maxLines(),
		)
	}
	return doc, nil
}

// fitWidths sizes each column to its widest header or cell text, caps overly
// wide columns and scales the result to fill the printable width.
func (t *pdfTable) fitWidths(body [][]string) []float64 {
	n := len(t.headers)
	if n == 0 {
		return nil
	}
	pageW, _ := t.doc.GetPageSize()
	printable := pageW - 2*pdfMargin

	natural := make([]float64, n)
	t.doc.SetFont("Helvetica", "B", pdfFontSize)
	for j, h := range t.headers {
		natural[j] = t.doc.GetStringWidth(h)
	}
	t.doc.SetFont("Helvetica", "", pdfFontSize)
	for _, row := range body {
		for j, cell := range row {
			natural[j] = math.Max(natural[j], t.doc.GetStringWidth(cell))
		}
	}

	total := 0.0
	for j := range natural {
		natural[j] = math.Min(natural[j]+2*pdfCellPadding+1, pdfMaxColWidth)
		total += natural[j]
	}

	scale := printable / total
	for j := range natural {
		natural[j] *= scale
	}
	return natural
}

func (t *pdfTable) drawHeader() {
	doc := t.doc
	doc.SetFont("Helvetica", "B", pdfFontSize)
	doc.SetFillColor(pdfHeaderFill[0], pdfHeaderFill[1], pdfHeaderFill[2])
	doc.SetTextColor(255, 255, 255)
	doc.SetDrawColor(pdfBorder[0], pdfBorder[1], pdfBorder[2])
	t.drawCells(t.headers, true)

	doc.SetFont("Helvetica", "", pdfFontSize)
	doc.SetTextColor(pdfBodyText[0], pdfBodyText[1], pdfBodyText[2])
}

func (t *pdfTable) drawRow(cells []string, striped bool) {
	doc := t.doc
	if doc.GetY()+t.rowHeight(cells) > t.bottom {
		doc.AddPage()
		t.drawHeader()
	}
	if striped {
		doc.SetFillColor(pdfStripeFill[0], pdfStripeFill[1], pdfStripeFill[2])
	}
	t.drawCells(cells, striped)
}

// pdfEllipsis marks a cell cut short to keep its row on one page.
const pdfEllipsis = "..."

// wrap splits text into the lines that fit column j, capped so one row
// never exceeds a page. A capped cell ends in an ellipsis and reports
// truncated.
func (t *pdfTable) wrap(text string, j int) (lines []string, truncated bool) {
	raw := t.doc.SplitLines([]byte(text), t.widths[j])
	if len(raw) == 0 {
		return []string{""}, false
	}
	if limit := t.maxLines(); len(raw) > limit {
		raw = raw[:limit]
		truncated = true
	}
	lines = make([]string, len(raw))
	for i, b := range raw {
		lines[i] = string(b)
	}
	if truncated {
		last := len(lines) - 1
		lines[last] = t.ellipsize(lines[last], t.widths[j])
	}
	return lines, truncated
}

func (t *pdfTable) maxLines() int {
	_, pageH := t.doc.GetPageSize()
	return int((pageH-2*pdfMargin)/pdfLineHeight) - 2
}

// ellipsize trims line until it fits width with the ellipsis appended.
func (t *pdfTable) ellipsize(line string, width float64) string {
	room := width - 2*pdfCellPadding
	for line != "" && t.doc.GetStringWidth(line+pdfEllipsis) > room {
		line = line[:len(line)-1]
	}
	return line + pdfEllipsis
}

func (t *pdfTable) rowHeight(cells []string) float64 {
	lines := 1
	for j, c := range cells {
		if wrapped, _ := t.wrap(c, j); len(wrapped) > lines {
			lines = len(wrapped)
		}
	}
	return float64(lines) * pdfLineHeight
}

func (t *pdfTable) drawCells(cells []string, fill bool) {
	doc := t.doc
	h := t.rowHeight(cells)
	x, y := doc.GetX(), doc.GetY()

	style := "D"
	if fill {
		style = "FD"
	}
	for j, c := range cells {
		w := t.widths[j]
		doc.Rect(x, y, w, h, style)
		lines, truncated := t.wrap(c, j)
		if truncated {
			t.truncated++
		}
		for k, line := range lines {
			doc.SetXY(x, y+float64(k)*pdfLineHeight)
			doc.CellFormat(w, pdfLineHeight, line, "", 0, "L", false, 0, "")
		}
		x += w
	}
	doc.SetXY(pdfMargin, y+h)
}
