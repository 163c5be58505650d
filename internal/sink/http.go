package sink

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"sync"

	"github.com/JonMunkholm/datagrid/internal/logging"
)

// HTTP delivers a payload as a browser download on a response writer.
// It is single use: one request, one file.
type HTTP struct {
	mu   sync.Mutex
	w    http.ResponseWriter
	sent bool
}

// NewHTTP wraps a response writer.
func NewHTTP(w http.ResponseWriter) *HTTP {
	return &HTTP{w: w}
}

// Deliver writes the download headers and payload.
func (s *HTTP) Deliver(ctx context.Context, filename string, payload []byte, mimeType string) error {
	if err := checkName(filename); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent {
		return ErrAlreadyDelivered
	}
	s.sent = true

	h := s.w.Header()
	h.Set("Content-Type", mimeType)
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	h.Set("Content-Length", strconv.Itoa(len(payload)))
	h.Set("Cache-Control", "no-store")
	h.Set("X-Content-Type-Options", "nosniff")
	s.w.WriteHeader(http.StatusOK)

	if _, err := s.w.Write(payload); err != nil {
		return fmt.Errorf("write download: %w", err)
	}
	logging.FromContext(ctx).Debug("download written", "filename", filename, "bytes", len(payload))
	return nil
}

// Delivered reports whether the response has been written.
func (s *HTTP) Delivered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}
