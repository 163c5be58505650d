package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/datagrid/internal/core"
	"github.com/JonMunkholm/datagrid/internal/export"
	"github.com/JonMunkholm/datagrid/internal/logging"
	"github.com/JonMunkholm/datagrid/internal/sink"
)

// exportRequest reads an export request from a form or JSON body. The
// filename is checked here so a bad name is rejected before any slot is
// taken or rows are copied.
func exportRequest(w http.ResponseWriter, r *http.Request, view *core.TableView) (export.Request, error) {
	in, err := readInput(w, r)
	if err != nil {
		return export.Request{}, err
	}

	format := export.FormatCSV
	if raw := in.get("format"); raw != "" {
		if format, err = export.ParseFormat(raw); err != nil {
			return export.Request{}, err
		}
	}
	if _, err := export.ValidateFilename(in.get("filename"), format); err != nil {
		return export.Request{}, err
	}

	title := strings.TrimSpace(in.get("title"))
	if title == "" {
		title = view.Table().Info.Label
	}
	return export.Request{
		Format:         format,
		Filename:       in.get("filename"),
		ExcludeColumns: in.list("exclude"),
		OnlySelected:   in.bool("only_selected"),
		Title:          title,
	}, nil
}

// handleExport renders the view's visible rows and streams the file back as
// a download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	_, view, r, ok := s.view(w, r)
	if !ok {
		return
	}
	req, err := exportRequest(w, r, view)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := r.Context()
	if s.cfg.Export.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Export.Timeout)
		defer cancel()
	}

	if err := s.deps.Limiter.Acquire(ctx); err != nil {
		s.respondError(w, r, err)
		return
	}
	defer s.deps.Limiter.Release()

	vs, err := view.Snapshot(ctx, req.ExcludeColumns, req.OnlySelected)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	rendered, err := s.deps.Engine.Render(ctx, export.FromView(req, vs))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	download := sink.NewHTTP(w)
	if _, err := s.deps.Engine.DeliverTo(ctx, rendered, download); err != nil {
		if download.Delivered() {
			logging.FromContext(ctx).Error("download interrupted", "filename", rendered.Filename, "error", err)
			return
		}
		s.respondError(w, r, err)
	}
}

// jobResponse is returned when a background export is accepted.
type jobResponse struct {
	JobID       string `json:"job_id"`
	StatusURL   string `json:"status_url"`
	DownloadURL string `json:"download_url"`
}

// handleStartExportJob snapshots the view and hands the export to the job
// manager. The result is copied to the archive when one is configured and
// then parked in memory for download, so a failed archive copy leaves
// nothing to download.
func (s *Server) handleStartExportJob(w http.ResponseWriter, r *http.Request) {
	_, view, r, ok := s.view(w, r)
	if !ok {
		return
	}
	req, err := exportRequest(w, r, view)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	vs, err := view.Snapshot(r.Context(), req.ExcludeColumns, req.OnlySelected)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	mem := sink.NewMemory()
	var target core.DownloadSink = mem
	if s.deps.Archive != nil {
		target = sink.Tee{s.deps.Archive, mem}
	}

	id, err := s.deps.Jobs.Start(r.Context(), export.FromView(req, vs), target)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.keepJobFile(id, mem)

	base := "/api/exports/" + id
	w.Header().Set("Location", base)
	writeJSON(w, r, http.StatusAccepted, jobResponse{
		JobID:       id,
		StatusURL:   base,
		DownloadURL: base + "/download",
	})
}

// keepJobFile records the memory sink of a job and forgets sinks of jobs
// the manager has already pruned.
func (s *Server) keepJobFile(id string, mem *sink.Memory) {
	s.jobFilesMu.Lock()
	defer s.jobFilesMu.Unlock()

	for known := range s.jobFiles {
		if _, err := s.deps.Jobs.Status(known); errors.Is(err, export.ErrJobNotFound) {
			delete(s.jobFiles, known)
		}
	}
	s.jobFiles[id] = mem
}

func (s *Server) jobFile(id string) (*sink.Memory, bool) {
	s.jobFilesMu.Lock()
	defer s.jobFilesMu.Unlock()
	mem, ok := s.jobFiles[id]
	return mem, ok
}

func (s *Server) handleListExportJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.deps.Jobs.List()
	if jobs == nil {
		jobs = []export.JobStatus{}
	}
	writeJSON(w, r, http.StatusOK, jobs)
}

func (s *Server) handleExportJobStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Jobs.Status(chi.URLParam(r, "jobID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, st)
}

// handleCancelExportJob cancels a queued or running job. Jobs that already
// finished or are delivering answer 409 with their current status.
func (s *Server) handleCancelExportJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	cancelled := s.deps.Jobs.Cancel(id)

	st, err := s.deps.Jobs.Status(id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	status := http.StatusOK
	if !cancelled {
		status = http.StatusConflict
	}
	writeJSON(w, r, status, st)
}

// handleDownloadExportJob serves the file of a finished job.
func (s *Server) handleDownloadExportJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	st, err := s.deps.Jobs.Status(id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if st.State != export.JobDone {
		err := &core.ValidationError{Field: "job", Value: string(st.State), Message: "export job has not finished"}
		s.respondErrorStatus(w, r, err, http.StatusConflict)
		return
	}

	mem, ok := s.jobFile(id)
	if !ok || st.Result == nil {
		s.respondError(w, r, fmt.Errorf("job %s file: %w", id, export.ErrJobNotFound))
		return
	}
	file, ok := mem.Get(st.Result.Filename)
	if !ok {
		s.respondError(w, r, fmt.Errorf("job %s file: %w", id, export.ErrJobNotFound))
		return
	}

	if err := sink.NewHTTP(w).Deliver(r.Context(), file.Name, file.Payload, file.MIMEType); err != nil {
		logging.FromContext(r.Context()).Error("job download failed", "export_job", id, "error", err)
	}
}
