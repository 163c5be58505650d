package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/datagrid/internal/core"
	"github.com/JonMunkholm/datagrid/internal/logging"
	"github.com/JonMunkholm/datagrid/internal/web/templates"
)

// viewResponse is the JSON state of a mounted view.
type viewResponse struct {
	ViewID   string            `json:"view_id"`
	Table    string            `json:"table"`
	Columns  []columnResponse  `json:"columns"`
	Filters  map[string]string `json:"filters"`
	Query    string            `json:"query,omitempty"`
	Filtered bool              `json:"filtered"`
	Selected int               `json:"selected"`
}

func (s *Server) viewState(id string, view *core.TableView) viewResponse {
	filters := view.Filters()
	return viewResponse{
		ViewID:   id,
		Table:    view.Table().Info.Key,
		Columns:  columnsResponse(view.Columns()),
		Filters:  filters.ActiveFilters(),
		Query:    filters.GlobalQuery(),
		Filtered: filters.IsFiltered(),
		Selected: view.SelectedCount(),
	}
}

// view resolves the {viewID} route parameter. The returned request carries
// the view id in its logger.
func (s *Server) view(w http.ResponseWriter, r *http.Request) (string, *core.TableView, *http.Request, bool) {
	id := chi.URLParam(r, "viewID")
	view, err := s.views.Get(id)
	if err != nil {
		s.respondError(w, r, err)
		return "", nil, r, false
	}
	return id, view, r.WithContext(logging.WithViewID(r.Context(), id)), true
}

// column resolves the {columnID} route parameter against the view's schema.
func column(view *core.TableView, r *http.Request) (core.Column, error) {
	id := chi.URLParam(r, "columnID")
	for _, c := range view.Columns() {
		if c.ID == id {
			return c, nil
		}
	}
	return core.Column{}, fmt.Errorf("column %q: %w", id, core.ErrUnknownColumn)
}

// respondView answers a view mutation: the re-rendered grid for HTMX,
// the view state otherwise.
func (s *Server) respondView(w http.ResponseWriter, r *http.Request, id string, view *core.TableView) {
	if isHTMX(r) {
		s.renderGrid(w, r, id, view)
		return
	}
	writeJSON(w, r, http.StatusOK, s.viewState(id, view))
}

func (s *Server) renderGrid(w http.ResponseWriter, r *http.Request, id string, view *core.TableView) {
	data, err := s.gridData(r.Context(), id, view)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	renderHTML(w, r, templates.Grid(data))
}

func (s *Server) handleViewState(w http.ResponseWriter, r *http.Request) {
	id, view, r, ok := s.view(w, r)
	if !ok {
		return
	}
	s.respondView(w, r, id, view)
}

func (s *Server) handleUnmountView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "viewID")
	if !s.views.Unmount(id) {
		s.respondError(w, r, fmt.Errorf("view %s: %w", id, core.ErrViewNotFound))
		return
	}
	logging.FromContext(logging.WithViewID(r.Context(), id)).Info("view unmounted")
	w.WriteHeader(http.StatusNoContent)
}

// rowsResponse is a page of visible rows. Cells hold display strings of the
// visible columns.
type rowsResponse struct {
	Columns []string     `json:"columns"`
	Rows    []rowPayload `json:"rows"`
	Visible int          `json:"visible"`
	Total   int          `json:"total"`
	Offset  int          `json:"offset"`
}

type rowPayload struct {
	Key      string            `json:"key"`
	Selected bool              `json:"selected,omitempty"`
	Cells    map[string]string `json:"cells"`
}

// handleRows returns the visible rows, optionally paged with offset and
// limit query parameters.
func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	id, view, r, ok := s.view(w, r)
	if !ok {
		return
	}
	if isHTMX(r) {
		s.renderGrid(w, r, id, view)
		return
	}

	offset, limit, err := pageParams(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	rows, total, err := view.Rows(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	cols := view.VisibleColumns()
	resp := rowsResponse{
		Columns: make([]string, 0, len(cols)),
		Rows:    []rowPayload{},
		Visible: len(rows),
		Total:   total,
		Offset:  offset,
	}
	for _, c := range cols {
		if !c.Structural {
			resp.Columns = append(resp.Columns, c.ID)
		}
	}

	if offset > len(rows) {
		offset = len(rows)
	}
	page := rows[offset:]
	if limit > 0 && limit < len(page) {
		page = page[:limit]
	}
	for _, row := range page {
		p := rowPayload{
			Key:      row.Key,
			Selected: view.IsSelected(row.Key),
			Cells:    make(map[string]string, len(resp.Columns)),
		}
		for _, colID := range resp.Columns {
			p.Cells[colID] = core.Stringify(row.Value(colID))
		}
		resp.Rows = append(resp.Rows, p)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func pageParams(r *http.Request) (offset, limit int, err error) {
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{{"offset", &offset}, {"limit", &limit}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || n < 0 {
			return 0, 0, &core.ValidationError{Field: p.name, Value: raw, Message: "must be a non-negative integer"}
		}
		*p.dst = n
	}
	return offset, limit, nil
}

// handleSetFilter replaces the filter of one column. The body shape follows
// the column kind: text (text or numeric columns), values (enum columns) or
// from/to (date columns).
func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	id, view, r, ok := s.view(w, r)
	if !ok {
		return
	}
	col, err := column(view, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	in, err := readInput(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	value, err := filterValue(col, in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := view.SetFilter(col.ID, value); err != nil {
		s.respondError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Debug("filter set", "column", col.ID, "filter", value.String())
	s.respondView(w, r, id, view)
}

func filterValue(col core.Column, in input) (core.FilterValue, error) {
	switch col.Kind {
	case core.FieldEnum:
		values := in.list("values")
		if len(values) == 0 && in.has("value") {
			values = in.list("value")
		}
		for _, v := range values {
			if len(col.Options) > 0 && !col.HasOption(v) {
				return core.FilterValue{}, &core.ValidationError{Field: col.ID, Value: v, Message: "not an option of this column"}
			}
		}
		return core.EnumSelection(values...), nil
	case core.FieldDate:
		return core.ParseDateRange(col.ID, in.get("from"), in.get("to"))
	default:
		text := in.get("text")
		if text == "" {
			text = in.get("value")
		}
		return core.TextQuery(text), nil
	}
}

func (s *Server) handleClearFilter(w http.ResponseWriter, r *http.Request) {
	id, view, r, ok := s.view(w, r)
	if !ok {
		return
	}
	col, err := column(view, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	view.ClearFilter(col.ID)
	s.respondView(w, r, id, view)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	id, view, r, ok := s.view(w, r)
	if !ok {
		return
	}
	in, err := readInput(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	view.SetGlobalQuery(in.get("query"))
	s.respondView(w, r, id, view)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id, view, r, ok := s.view(w, r)
	if !ok {
		return
	}
	view.Reset()
	s.respondView(w, r, id, view)
}

// facetResponse lists one enum column's options with counts over the
// unfiltered rows.
type facetResponse struct {
	Column  string             `json:"column"`
	Label   string             `json:"label"`
	Options []core.FacetOption `json:"options"`
	Changed *bool              `json:"changed,omitempty"`
}

func facetOf(ctx context.Context, view *core.TableView, col core.Column) (facetResponse, error) {
	opts, err := view.Facets(ctx, col.ID)
	if err != nil {
		return facetResponse{}, err
	}
	return facetResponse{Column: col.ID, Label: col.Title(), Options: opts}, nil
}

func (s *Server) handleFacets(w http.ResponseWriter, r *http.Request) {
	_, view, r, ok := s.view(w, r)
	if !ok {
		return
	}
	out := []facetResponse{}
	for _, col := range view.FacetColumns() {
		f, err := facetOf(r.Context(), view, col)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		out = append(out, f)
	}
	writeJSON(w, r, http.StatusOK, out)
}

// enumColumn resolves {columnID} and requires it to be facetable.
func enumColumn(view *core.TableView, r *http.Request) (core.Column, error) {
	col, err := column(view, r)
	if err != nil {
		return core.Column{}, err
	}
	if col.Kind != core.FieldEnum || col.Structural {
		return core.Column{}, &core.ValidationError{Field: col.ID, Value: col.Kind.String(), Message: "column is not an enum column"}
	}
	return col, nil
}

func (s *Server) handleFacet(w http.ResponseWriter, r *http.Request) {
	_, view, r, ok := s.view(w, r)
	if !ok {
		return
	}
	col, err := enumColumn(view, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	f, err := facetOf(r.Context(), view, col)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, f)
}

// handleToggleFacet flips one option of an enum column's selection.
func (s *Server) handleToggleFacet(w http.ResponseWriter, r *http.Request) {
	id, view, r, ok := s.view(w, r)
	if !ok {
		return
	}
	col, err := enumColumn(view, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	in, err := readInput(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	value := in.get("value")
	if !in.has("value") {
		s.respondError(w, r, &core.ValidationError{Field: "value", Message: "option value is required"})
		return
	}

	changed := view.Toggle(col.ID, value)
	if isHTMX(r) {
		s.renderGrid(w, r, id, view)
		return
	}
	f, err := facetOf(r.Context(), view, col)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	f.Changed = &changed
	writeJSON(w, r, http.StatusOK, f)
}

func (s *Server) handleClearFacet(w http.ResponseWriter, r *http.Request) {
	id, view, r, ok := s.view(w, r)
	if !ok {
		return
	}
	col, err := enumColumn(view, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	view.ClearFacet(col.ID)
	s.respondView(w, r, id, view)
}

func (s *Server) handleSetVisibility(w http.ResponseWriter, r *http.Request) {
	id, view, r, ok := s.view(w, r)
	if !ok {
		return
	}
	in, err := readInput(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := view.SetColumnVisible(chi.URLParam(r, "columnID"), in.bool("visible")); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondView(w, r, id, view)
}

// selectionResponse lists the selected row keys.
type selectionResponse struct {
	Keys  []string `json:"keys"`
	Count int      `json:"count"`
}

func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	_, view, r, ok := s.view(w, r)
	if !ok {
		return
	}
	keys := view.SelectedKeys()
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, r, http.StatusOK, selectionResponse{Keys: keys, Count: len(keys)})
}

// handleSelect adds keys to the selection, or every visible row when
// all_visible is set.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	id, view, r, ok := s.view(w, r)
	if !ok {
		return
	}
	in, err := readInput(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if in.bool("all_visible") {
		if _, err := view.SelectVisible(r.Context()); err != nil {
			s.respondError(w, r, err)
			return
		}
	} else {
		keys := in.list("keys")
		if len(keys) == 0 {
			s.respondError(w, r, &core.ValidationError{Field: "keys", Message: "at least one row key is required"})
			return
		}
		view.Select(keys...)
	}
	s.respondView(w, r, id, view)
}

// handleDeselect removes keys from the selection, or clears it when no keys
// are given.
func (s *Server) handleDeselect(w http.ResponseWriter, r *http.Request) {
	id, view, r, ok := s.view(w, r)
	if !ok {
		return
	}
	in, err := readInput(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if keys := in.list("keys"); len(keys) > 0 {
		view.Deselect(keys...)
	} else {
		view.ClearSelection()
	}
	s.respondView(w, r, id, view)
}
