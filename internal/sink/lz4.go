package sink

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/JonMunkholm/datagrid/internal/core"
)

// LZ4MIMEType is the content type of compressed deliveries.
const LZ4MIMEType = "application/x-lz4"

// LZ4 compresses payloads into an LZ4 frame before handing them to the
// wrapped sink under "{filename}.lz4".
type LZ4 struct {
	next  core.DownloadSink
	level lz4.CompressionLevel
}

// NewLZ4 wraps next. A zero level uses the fast compressor.
func NewLZ4(next core.DownloadSink, level lz4.CompressionLevel) *LZ4 {
	return &LZ4{next: next, level: level}
}

// Deliver compresses payload and forwards it.
func (s *LZ4) Deliver(ctx context.Context, filename string, payload []byte, mimeType string) error {
	var buf bytes.Buffer
	if err := Compress(payload, &buf, s.level); err != nil {
		return fmt.Errorf("compress %s: %w", filename, err)
	}
	return s.next.Deliver(ctx, filename+".lz4", buf.Bytes(), LZ4MIMEType)
}

// Compress writes src to output as a single LZ4 frame.
func Compress(src []byte, output *bytes.Buffer, level lz4.CompressionLevel) error {
	zw := lz4.NewWriter(output)
	if err := zw.Apply(lz4.CompressionLevelOption(level)); err != nil {
		return err
	}
	if _, err := zw.Write(src); err != nil {
		return err
	}
	return zw.Close()
}

var lz4Levels = []lz4.CompressionLevel{
	lz4.Fast, lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4,
	lz4.Level5, lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
}

// ParseLZ4Level maps 0 (fast) through 9 (smallest) to a compression level.
func ParseLZ4Level(n int) (lz4.CompressionLevel, error) {
	if n < 0 || n >= len(lz4Levels) {
		return 0, fmt.Errorf("lz4 level %d out of range 0-9", n)
	}
	return lz4Levels[n], nil
}
