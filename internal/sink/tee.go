package sink

import (
	"context"

	"github.com/JonMunkholm/datagrid/internal/core"
)

// Tee delivers every payload to each sink in order and stops at the first
// failure. Sinks before the failing one keep the payload, so list the sink
// most likely to fail first.
type Tee []core.DownloadSink

// Deliver forwards the payload to every sink.
func (t Tee) Deliver(ctx context.Context, filename string, payload []byte, mimeType string) error {
	for _, s := range t {
		if s == nil {
			continue
		}
		if err := s.Deliver(ctx, filename, payload, mimeType); err != nil {
			return err
		}
	}
	return nil
}
