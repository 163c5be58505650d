// Package export serializes a filtered table view to CSV, XLSX or PDF and
// hands the result to a download sink.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/JonMunkholm/datagrid/internal/core"
	"github.com/JonMunkholm/datagrid/internal/logging"
)

// checkEvery is how many rows an encoder writes between cancellation checks.
const checkEvery = 512

// ErrCancelled is returned when an export is abandoned before delivery.
var ErrCancelled = errors.New("export cancelled")

// ExportFailure reports a serialization or delivery error after validation
// passed. The sink never receives a partial payload.
type ExportFailure struct {
	Format   Format
	Filename string
	Stage    string // "encode" or "deliver"
	Err      error
}

func (e *ExportFailure) Error() string {
	return fmt.Sprintf("export failed: %s %s: %v", e.Stage, e.Filename, e.Err)
}

func (e *ExportFailure) Unwrap() error {
	return e.Err
}

// IsExportFailure reports whether err is, or wraps, an *ExportFailure.
func IsExportFailure(err error) bool {
	var ef *ExportFailure
	return errors.As(err, &ef)
}

// Encoder serializes a snapshot in one format.
type Encoder interface {
	Encode(ctx context.Context, w io.Writer, s *Snapshot) error
}

// Observer receives the outcome of every export, typically a metrics collector.
type Observer interface {
	ExportFinished(format, outcome string, bytes int, elapsed time.Duration)
}

// Rendered is an encoded export ready for delivery.
type Rendered struct {
	Format   Format
	Filename string
	MIMEType string
	Payload  []byte
	Rows     int
	Columns  int
	started  time.Time
}

// Result describes a delivered export.
type Result struct {
	Format   Format        `json:"format"`
	Filename string        `json:"filename"`
	MIMEType string        `json:"mime_type"`
	Bytes    int           `json:"bytes"`
	Rows     int           `json:"rows"`
	Columns  int           `json:"columns"`
	Duration time.Duration `json:"duration"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithEncoder replaces the encoder used for a format.
func WithEncoder(f Format, enc Encoder) Option {
	return func(e *Engine) { e.encoders[f] = enc }
}

// WithObserver attaches an export observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// Engine validates, encodes and delivers exports.
type Engine struct {
	sink     core.DownloadSink
	encoders map[Format]Encoder
	observer Observer
}

// NewEngine creates an engine delivering to sink.
func NewEngine(sink core.DownloadSink, opts ...Option) *Engine {
	e := &Engine{
		sink: sink,
		encoders: map[Format]Encoder{
			FormatCSV:  csvEncoder{},
			FormatXLSX: xlsxEncoder{},
			FormatPDF:  pdfEncoder{},
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export renders the snapshot and delivers it as "{filename}.{ext}".
// Validation errors are returned before any encoding work; encoding and
// delivery errors are returned as *ExportFailure.
func (e *Engine) Export(ctx context.Context, s *Snapshot) (*Result, error) {
	r, err := e.Render(ctx, s)
	if err != nil {
		return nil, err
	}
	return e.Deliver(ctx, r)
}

// Render validates the request and encodes the snapshot without delivering it.
func (e *Engine) Render(ctx context.Context, s *Snapshot) (*Rendered, error) {
	start := time.Now()
	filename, err := s.Request.validate()
	if err != nil {
		e.observe(s.Request.Format, "invalid", 0, start)
		return nil, err
	}

	enc, ok := e.encoders[s.Request.Format]
	if !ok {
		return nil, &core.ValidationError{Field: "format", Value: s.Request.Format.String(), Message: "unsupported export format"}
	}

	var buf bytes.Buffer
	if err := enc.Encode(ctx, &buf, s); err != nil {
		if ctx.Err() != nil {
			e.observe(s.Request.Format, "cancelled", 0, start)
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		e.observe(s.Request.Format, "failed", 0, start)
		return nil, &ExportFailure{Format: s.Request.Format, Filename: filename, Stage: "encode", Err: err}
	}

	return &Rendered{
		Format:   s.Request.Format,
		Filename: filename,
		MIMEType: s.Request.Format.MIMEType(),
		Payload:  buf.Bytes(),
		Rows:     len(s.Rows),
		Columns:  len(s.Columns),
		started:  start,
	}, nil
}

// Deliver hands a rendered export to the engine's sink. A cancelled ctx
// suppresses delivery.
func (e *Engine) Deliver(ctx context.Context, r *Rendered) (*Result, error) {
	return e.DeliverTo(ctx, r, e.sink)
}

// DeliverTo hands a rendered export to sink instead of the engine's own.
func (e *Engine) DeliverTo(ctx context.Context, r *Rendered, sink core.DownloadSink) (*Result, error) {
	if r.started.IsZero() {
		r.started = time.Now()
	}
	if err := ctx.Err(); err != nil {
		e.observe(r.Format, "cancelled", 0, r.started)
		return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	if sink == nil {
		return nil, &ExportFailure{Format: r.Format, Filename: r.Filename, Stage: "deliver", Err: errors.New("no download sink configured")}
	}

	if err := sink.Deliver(ctx, r.Filename, r.Payload, r.MIMEType); err != nil {
		e.observe(r.Format, "failed", 0, r.started)
		return nil, &ExportFailure{Format: r.Format, Filename: r.Filename, Stage: "deliver", Err: err}
	}

	res := &Result{
		Format:   r.Format,
		Filename: r.Filename,
		MIMEType: r.MIMEType,
		Bytes:    len(r.Payload),
		Rows:     r.Rows,
		Columns:  r.Columns,
		Duration: time.Since(r.started),
	}
	e.observe(r.Format, "success", res.Bytes, r.started)

	logging.FromContext(ctx).Info("export delivered",
		"filename", res.Filename,
		"format", res.Format.String(),
		"rows", res.Rows,
		"bytes", res.Bytes,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (e *Engine) observe(f Format, outcome string, n int, start time.Time) {
	if e.observer != nil {
		e.observer.ExportFinished(f.String(), outcome, n, time.Since(start))
	}
}
