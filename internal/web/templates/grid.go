package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/datagrid/internal/core"
)

// Facet is one toolbar facet with its option counts.
type Facet struct {
	Column  core.Column
	Options []core.FacetOption
}

// GridData is everything the grid partial renders for one view.
type GridData struct {
	ViewID        string
	Table         core.TableInfo
	Columns       []core.Column // visible, in registry order
	AllColumns    []core.Column
	Rows          []core.Row // visible rows
	Total         int        // rows before filtering
	Facets        []Facet
	Query         string
	DateColumn    string
	DateFrom      string
	DateTo        string
	Filtered      bool
	Selected      map[string]bool
	SelectedCount int
	Formats       []string
}

func (d GridData) api(path string) string {
	return "/api/views/" + d.ViewID + path
}

// TablePage renders the full page for a mounted view.
func TablePage(d GridData) templ.Component {
	return Page(d.Table.Label, Grid(d))
}

// Grid renders the toolbar and the rows. Every toolbar action swaps the
// whole grid.
func Grid(d GridData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<div id="grid"`)
		h.attr("data-view", d.ViewID)
		h.raw(` hx-target="#grid" hx-swap="outerHTML">`)
		renderToolbar(h, d)
		renderRows(h, d)
		renderExport(h, d)
		h.raw("</div>")
		return h.err
	})
}

func renderToolbar(h *htmlWriter, d GridData) {
	h.raw(`<div class="toolbar">`)

	h.raw(`<input type="search" name="query" placeholder="Filter..."`)
	h.attr("value", d.Query)
	h.attr("hx-put", d.api("/search"))
	h.raw(` hx-trigger="keyup changed delay:300ms, search">`)

	for _, f := range d.Facets {
		h.raw(`<span class="facet">`)
		h.text(f.Column.Title())
		h.raw(":")
		for _, opt := range f.Options {
			h.raw("<button")
			if opt.Selected {
				h.raw(` class="on"`)
			}
			h.attr("hx-post", d.api("/facets/"+f.Column.ID+"/toggle"))
			h.attr("hx-vals", fmt.Sprintf(`{"value":%q}`, opt.Value))
			h.raw(">")
			h.text(opt.Label)
			h.printf(`<span class="count">%d</span></button>`, opt.Count)
		}
		h.raw("</span>")
	}

	if d.DateColumn != "" {
		h.raw(`<form class="facet"`)
		h.attr("hx-put", d.api("/filters/"+d.DateColumn))
		h.raw(` hx-trigger="change">`)
		h.raw(`<input type="date" name="from"`)
		h.attr("value", d.DateFrom)
		h.raw(`> to <input type="date" name="to"`)
		h.attr("value", d.DateTo)
		h.raw("></form>")
	}

	if d.Filtered || d.Query != "" {
		h.raw("<button")
		h.attr("hx-post", d.api("/reset"))
		h.raw(">Reset</button>")
	}

	h.raw(`<details class="facet"><summary>Columns</summary>`)
	for _, c := range d.AllColumns {
		if c.Structural {
			continue
		}
		h.raw(`<label><input type="checkbox" name="visible" value="true"`)
		if c.Visible {
			h.raw(" checked")
		}
		h.attr("hx-put", d.api("/columns/"+c.ID+"/visibility"))
		h.raw(">")
		h.text(c.Title())
		h.raw("</label> ")
	}
	h.raw("</details></div>")
}

func renderRows(h *htmlWriter, d GridData) {
	h.printf(`<p class="muted">%d of %d rows`, len(d.Rows), d.Total)
	if d.SelectedCount > 0 {
		h.printf(", %d selected", d.SelectedCount)
	}
	h.raw("</p><table><thead><tr>")
	for _, c := range d.Columns {
		h.raw("<th")
		h.attr("data-column", c.ID)
		h.raw(">")
		if c.Structural && c.ID == "select" {
			h.raw(`<input type="checkbox" aria-label="Select all"`)
			h.attr("hx-post", d.api("/selection"))
			h.raw(` hx-vals='{"all_visible":"true"}'>`)
		} else if !c.Structural {
			h.text(c.Title())
		}
		h.raw("</th>")
	}
	h.raw("</tr></thead><tbody>")

	if len(d.Rows) == 0 {
		h.printf(`<tr><td colspan="%d" class="muted">No results.</td></tr>`, len(d.Columns))
	}
	for _, r := range d.Rows {
		h.raw("<tr")
		h.attr("data-key", r.Key)
		h.raw(">")
		for _, c := range d.Columns {
			h.raw("<td>")
			switch {
			case c.Structural && c.ID == "select":
				h.raw(`<input type="checkbox"`)
				if d.Selected[r.Key] {
					h.raw(" checked")
					h.attr("hx-delete", d.api("/selection"))
				} else {
					h.attr("hx-post", d.api("/selection"))
				}
				h.attr("hx-vals", fmt.Sprintf(`{"keys":%q}`, r.Key))
				h.attr("aria-label", "Select "+r.Key)
				h.raw(">")
			case c.Structural:
			default:
				h.text(core.Stringify(r.Value(c.ID)))
			}
			h.raw("</td>")
		}
		h.raw("</tr>")
	}
	h.raw("</tbody></table>")
}

func renderExport(h *htmlWriter, d GridData) {
	h.raw(`<form method="post" class="toolbar" hx-boost="false"`)
	h.attr("action", d.api("/export"))
	h.raw(`><input name="filename" placeholder="Filename" required`)
	h.attr("value", d.Table.Key)
	h.raw(`><select name="format">`)
	for _, f := range d.Formats {
		h.raw("<option")
		h.attr("value", f)
		h.raw(">")
		h.text(f)
		h.raw("</option>")
	}
	h.raw(`</select><label><input type="checkbox" name="only_selected" value="true"> Selected only</label>`)
	h.raw(`<button type="submit">Export</button></form>`)
}
