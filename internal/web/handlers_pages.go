package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/datagrid/internal/core"
	"github.com/JonMunkholm/datagrid/internal/export"
	"github.com/JonMunkholm/datagrid/internal/logging"
	"github.com/JonMunkholm/datagrid/internal/web/templates"
)

// handleDashboard lists the registered tables by group.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	var groups []templates.TableGroup
	for _, name := range core.Groups() {
		g := templates.TableGroup{Name: name}
		for _, def := range core.ByGroup(name) {
			g.Tables = append(g.Tables, templates.TableCard{
				Key:         def.Info.Key,
				Label:       def.Info.Label,
				Description: def.Info.Description,
				Columns:     len(def.DataColumns()),
			})
		}
		groups = append(groups, g)
	}
	renderHTML(w, r, templates.Dashboard(groups))
}

// handleTablePage renders a table page. A view already mounted for the same
// table is reused when its id is passed as ?view=, otherwise a new one is
// mounted.
func (s *Server) handleTablePage(w http.ResponseWriter, r *http.Request) {
	tableKey := chi.URLParam(r, "tableKey")

	var (
		id   = r.URL.Query().Get("view")
		view *core.TableView
	)
	if id != "" {
		if v, err := s.views.Get(id); err == nil && v.Table().Info.Key == tableKey {
			view = v
		}
	}
	if view == nil {
		var err error
		id, view, err = s.mount(tableKey)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
	}

	ctx := logging.WithViewID(r.Context(), id)
	data, err := s.gridData(ctx, id, view)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	renderHTML(w, r, templates.TablePage(data))
}

// mount creates a view over a registered table.
func (s *Server) mount(tableKey string) (string, *core.TableView, error) {
	def, ok := core.Get(tableKey)
	if !ok {
		return "", nil, fmt.Errorf("table %q: %w", tableKey, core.ErrUnknownTable)
	}
	src, err := s.deps.Sources.Source(tableKey)
	if err != nil {
		return "", nil, err
	}
	return s.views.Mount(def, src)
}

// gridData collects what the grid partial renders for a view.
func (s *Server) gridData(ctx context.Context, id string, view *core.TableView) (templates.GridData, error) {
	rows, total, err := view.Rows(ctx)
	if err != nil {
		return templates.GridData{}, err
	}

	def := view.Table()
	filters := view.Filters()
	d := templates.GridData{
		ViewID:        id,
		Table:         def.Info,
		Columns:       view.VisibleColumns(),
		AllColumns:    view.Columns(),
		Rows:          rows,
		Total:         total,
		Query:         filters.GlobalQuery(),
		DateColumn:    def.DateColumn,
		Filtered:      filters.IsFiltered(),
		Selected:      make(map[string]bool),
		SelectedCount: view.SelectedCount(),
	}

	for _, col := range view.FacetColumns() {
		opts, err := view.Facets(ctx, col.ID)
		if err != nil {
			return templates.GridData{}, err
		}
		d.Facets = append(d.Facets, templates.Facet{Column: col, Options: opts})
	}

	if def.DateColumn != "" {
		if fv, ok := filters.Get(def.DateColumn); ok && fv.Kind() == core.FilterDateRange {
			from, to := fv.Bounds()
			if !from.IsZero() {
				d.DateFrom = from.Format(core.DateLayout)
			}
			if !to.IsZero() {
				d.DateTo = to.Format(core.DateLayout)
			}
		}
	}

	for _, key := range view.SelectedKeys() {
		d.Selected[key] = true
	}
	for _, f := range export.Formats() {
		d.Formats = append(d.Formats, f.String())
	}
	return d, nil
}

// healthResponse is the body of /healthz.
type healthResponse struct {
	Status  string               `json:"status"`
	Tables  int                  `json:"tables"`
	Views   int                  `json:"views"`
	Exports export.LimiterStatus `json:"exports"`
	Jobs    int                  `json:"jobs_active"`
	Details any                  `json:"details,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "ok",
		Tables: core.TableCount(),
		Views:  s.views.Len(),
	}
	if s.deps.Limiter != nil {
		resp.Exports = s.deps.Limiter.Status()
	}
	if s.deps.Jobs != nil {
		resp.Jobs = s.deps.Jobs.Active()
	}
	if s.deps.Health != nil {
		resp.Details = s.deps.Health()
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// tableResponse describes a registered table in the API.
type tableResponse struct {
	Key         string           `json:"key"`
	Group       string           `json:"group"`
	Label       string           `json:"label"`
	Description string           `json:"description,omitempty"`
	KeyColumn   string           `json:"key_column,omitempty"`
	DateColumn  string           `json:"date_column,omitempty"`
	Columns     []columnResponse `json:"columns"`
}

type columnResponse struct {
	ID         string        `json:"id"`
	Label      string        `json:"label"`
	Kind       string        `json:"kind"`
	Visible    bool          `json:"visible"`
	Structural bool          `json:"structural,omitempty"`
	Options    []core.Option `json:"options,omitempty"`
}

func columnsResponse(cols []core.Column) []columnResponse {
	out := make([]columnResponse, len(cols))
	for i, c := range cols {
		out[i] = columnResponse{
			ID:         c.ID,
			Label:      c.Title(),
			Kind:       c.Kind.String(),
			Visible:    c.Visible,
			Structural: c.Structural,
			Options:    c.Options,
		}
	}
	return out
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	defs := core.All()
	out := make([]tableResponse, 0, len(defs))
	for _, def := range defs {
		out = append(out, tableResponse{
			Key:         def.Info.Key,
			Group:       def.Info.Group,
			Label:       def.Info.Label,
			Description: def.Info.Description,
			KeyColumn:   def.KeyColumn,
			DateColumn:  def.DateColumn,
			Columns:     columnsResponse(def.Columns),
		})
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleMountView(w http.ResponseWriter, r *http.Request) {
	id, view, err := s.mount(chi.URLParam(r, "tableKey"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	logging.FromContext(logging.WithViewID(r.Context(), id)).Info("view mounted", "table", view.Table().Info.Key)

	w.Header().Set("Location", "/api/views/"+id)
	writeJSON(w, r, http.StatusCreated, s.viewState(id, view))
}
