package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// HTMXSrc is where pages load htmx from.
const HTMXSrc = "https://unpkg.com/htmx.org@1.9.12"

const pageStyle = `body{font-family:system-ui,sans-serif;margin:0;color:#222}
header{padding:12px 24px;border-bottom:1px solid #ddd}
main{padding:16px 24px}
table{border-collapse:collapse;width:100%}
th,td{border-bottom:1px solid #eee;padding:6px 8px;text-align:left;font-size:14px}
th{background:#f6f6f6}
.toolbar{display:flex;flex-wrap:wrap;gap:8px;align-items:center;margin-bottom:12px}
.facet{border:1px dashed #bbb;border-radius:6px;padding:4px 8px}
.facet button{border:0;background:none;cursor:pointer}
.facet button.on{font-weight:bold;text-decoration:underline}
.count{color:#888;font-size:12px;margin-left:2px}
.alert{border:1px solid #e99;background:#fee;padding:8px 12px;border-radius:6px}
.muted{color:#888}`

// Page wraps body in the document shell.
func Page(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw("<!DOCTYPE html><html lang=\"en\"><head><meta charset=\"utf-8\">")
		h.raw("<title>")
		h.text(title)
		h.raw("</title><style>" + pageStyle + "</style>")
		h.raw(`<script src="` + HTMXSrc + `"></script></head><body>`)
		h.raw(`<header><a href="/">datagrid</a> / `)
		h.text(title)
		h.raw("</header><main>")
		if h.err != nil {
			return h.err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		h.raw("</main></body></html>")
		return h.err
	})
}

// ErrorAlert renders an HTMX error fragment.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<div class="alert" role="alert"><strong>`)
		h.text(message)
		h.raw("</strong>")
		if action != "" {
			h.raw(" ")
			h.text(action)
		}
		if code != "" {
			h.raw(` <span class="muted">(`)
			h.text(code)
			h.raw(")</span>")
		}
		h.raw("</div>")
		return h.err
	})
}
