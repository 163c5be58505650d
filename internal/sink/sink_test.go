package sink

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/pierrec/lz4/v4"
)

func TestCheckName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"tasks.csv", false},
		{"Q1 report.pdf", false},
		{"", true},
		{".", true},
		{"..", true},
		{"../tasks.csv", true},
		{"a/b.csv", true},
		{`a\b.csv`, true},
	}

	for _, tt := range tests {
		err := checkName(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("checkName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestHTTP_Deliver(t *testing.T) {
	rec := httptest.NewRecorder()
	s := NewHTTP(rec)

	payload := []byte("title,status\n\"Fix bug\",DONE\n")
	if err := s.Deliver(context.Background(), "tasks.csv", payload, "text/csv; charset=utf-8"); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	if rec.Code != 200 {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename=tasks.csv` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/csv; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Content-Length"); got != strconv.Itoa(len(payload)) {
		t.Errorf("Content-Length = %q, want %d", got, len(payload))
	}
	if !bytes.Equal(rec.Body.Bytes(), payload) {
		t.Errorf("body = %q, want %q", rec.Body.String(), payload)
	}
	if !s.Delivered() {
		t.Error("Delivered() = false after delivery")
	}

	if err := s.Deliver(context.Background(), "again.csv", payload, "text/csv"); !errors.Is(err, ErrAlreadyDelivered) {
		t.Errorf("second Deliver() error = %v, want ErrAlreadyDelivered", err)
	}
}

func TestHTTP_QuotesUnusualFilenames(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := NewHTTP(rec).Deliver(context.Background(), "Q1 tasks.xlsx", []byte("x"), "application/octet-stream"); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="Q1 tasks.xlsx"` {
		t.Errorf("Content-Disposition = %q", got)
	}
}

func TestHTTP_CancelledContext(t *testing.T) {
	rec := httptest.NewRecorder()
	s := NewHTTP(rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Deliver(ctx, "tasks.csv", []byte("x"), "text/csv"); !errors.Is(err, context.Canceled) {
		t.Errorf("Deliver() error = %v, want context.Canceled", err)
	}
	if s.Delivered() || rec.Body.Len() != 0 {
		t.Error("cancelled delivery wrote a response")
	}
}

func TestDir_Deliver(t *testing.T) {
	root := filepath.Join(t.TempDir(), "exports")
	d, err := NewDir(root)
	if err != nil {
		t.Fatalf("NewDir() error = %v", err)
	}

	if err := d.Deliver(context.Background(), "tasks.csv", []byte("v1"), "text/csv"); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if err := d.Deliver(context.Background(), "tasks.csv", []byte("v2"), "text/csv"); err != nil {
		t.Fatalf("second Deliver() error = %v", err)
	}

	got, err := os.ReadFile(d.Path("tasks.csv"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("file content = %q, want %q", got, "v2")
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("directory holds %v, want only tasks.csv", names)
	}
}

func TestDir_RejectsPaths(t *testing.T) {
	d, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir() error = %v", err)
	}
	if err := d.Deliver(context.Background(), "../escape.csv", []byte("x"), "text/csv"); !errors.Is(err, ErrInvalidFilename) {
		t.Errorf("Deliver() error = %v, want ErrInvalidFilename", err)
	}
}

func TestDir_CancelledLeavesNoFile(t *testing.T) {
	d, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := d.Deliver(ctx, "tasks.csv", []byte("x"), "text/csv"); err == nil {
		t.Fatal("Deliver() with cancelled context succeeded")
	}
	entries, _ := os.ReadDir(d.Root())
	if len(entries) != 0 {
		t.Errorf("directory has %d entries, want 0", len(entries))
	}
}

func TestNewDir_RequiresRoot(t *testing.T) {
	if _, err := NewDir(""); err == nil {
		t.Error("NewDir(\"\") succeeded, want error")
	}
}

func TestLZ4_RoundTrip(t *testing.T) {
	mem := NewMemory()
	s := NewLZ4(mem, lz4.Level1)

	payload := bytes.Repeat([]byte("TASK-1,\"Fix bug\",DONE\n"), 200)
	if err := s.Deliver(context.Background(), "tasks.csv", payload, "text/csv"); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	f, ok := mem.Get("tasks.csv.lz4")
	if !ok {
		t.Fatalf("compressed file not delivered, have %d files", mem.Len())
	}
	if f.MIMEType != LZ4MIMEType {
		t.Errorf("MIMEType = %q, want %q", f.MIMEType, LZ4MIMEType)
	}
	if len(f.Payload) >= len(payload) {
		t.Errorf("compressed size %d not smaller than %d", len(f.Payload), len(payload))
	}

	got, err := io.ReadAll(lz4.NewReader(bytes.NewReader(f.Payload)))
	if err != nil {
		t.Fatalf("decompress error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("decompressed payload differs from original")
	}
}

func TestLZ4_InvalidLevel(t *testing.T) {
	s := NewLZ4(NewMemory(), lz4.CompressionLevel(3))
	if err := s.Deliver(context.Background(), "tasks.csv", []byte("x"), "text/csv"); err == nil {
		t.Error("Deliver() with invalid level succeeded")
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, ok := m.Last(); ok {
		t.Error("Last() on empty sink reported a file")
	}

	payload := []byte("a")
	m.Deliver(ctx, "one.csv", payload, "text/csv")
	m.Deliver(ctx, "two.pdf", []byte("b"), "application/pdf")
	m.Deliver(ctx, "one.csv", []byte("c"), "text/csv")
	payload[0] = 'z'

	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
	f, _ := m.Get("one.csv")
	if string(f.Payload) != "c" {
		t.Errorf("one.csv = %q, want %q", f.Payload, "c")
	}
	last, _ := m.Last()
	if last.Name != "two.pdf" {
		t.Errorf("Last().Name = %q, want two.pdf", last.Name)
	}

	files := m.Files()
	if len(files) != 2 || files[0].Name != "one.csv" || files[1].Name != "two.pdf" {
		t.Errorf("Files() order = %v", files)
	}
}

func TestParseLZ4Level(t *testing.T) {
	tests := []struct {
		in      int
		want    lz4.CompressionLevel
		wantErr bool
	}{
		{0, lz4.Fast, false},
		{1, lz4.Level1, false},
		{9, lz4.Level9, false},
		{-1, 0, true},
		{10, 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLZ4Level(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLZ4Level(%d) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLZ4Level(%d) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

type failingSink struct{ err error }

func (f failingSink) Deliver(context.Context, string, []byte, string) error { return f.err }

func TestTee(t *testing.T) {
	a, b := NewMemory(), NewMemory()
	if err := (Tee{a, nil, b}).Deliver(context.Background(), "t.csv", []byte("x"), "text/csv"); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if a.Len() != 1 || b.Len() != 1 {
		t.Errorf("deliveries = %d, %d, want 1, 1", a.Len(), b.Len())
	}

	boom := errors.New("disk full")
	c := NewMemory()
	err := (Tee{failingSink{boom}, c}).Deliver(context.Background(), "t.csv", []byte("x"), "text/csv")
	if !errors.Is(err, boom) {
		t.Errorf("Deliver() error = %v, want %v", err, boom)
	}
	if c.Len() != 0 {
		t.Error("sinks after a failure should not receive the payload")
	}

	d := NewMemory()
	if err := (Tee{d, failingSink{boom}}).Deliver(context.Background(), "t.csv", []byte("x"), "text/csv"); !errors.Is(err, boom) {
		t.Errorf("Deliver() error = %v, want %v", err, boom)
	}
	if d.Len() != 1 {
		t.Errorf("sink before the failure holds %d payloads, want 1", d.Len())
	}
}
