package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// TableCard is one table listed on the dashboard.
type TableCard struct {
	Key         string
	Label       string
	Description string
	Columns     int
}

// TableGroup is a catalog group of tables.
type TableGroup struct {
	Name   string
	Tables []TableCard
}

// Dashboard lists every registered table by group.
func Dashboard(groups []TableGroup) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		if len(groups) == 0 {
			h.raw(`<p class="muted">No tables are registered.</p>`)
		}
		for _, g := range groups {
			h.raw("<section><h2>")
			h.text(g.Name)
			h.raw("</h2><ul>")
			for _, t := range g.Tables {
				h.raw("<li><a")
				h.attr("href", "/table/"+t.Key)
				h.raw(">")
				h.text(t.Label)
				h.raw("</a>")
				if t.Description != "" {
					h.raw(` <span class="muted">`)
					h.text(t.Description)
					h.raw("</span>")
				}
				h.printf(` <span class="count">%d columns</span></li>`, t.Columns)
			}
			h.raw("</ul></section>")
		}
		return h.err
	})
	return Page("Tables", body)
}
