package source

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func TestSkipBOM(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"with BOM", append([]byte{0xEF, 0xBB, 0xBF}, "a,b\n"...), "a,b\n"},
		{"without BOM", []byte("a,b\n"), "a,b\n"},
		{"BOM only", []byte{0xEF, 0xBB, 0xBF}, ""},
		{"short input", []byte("a"), "a"},
		{"empty", nil, ""},
		{"partial BOM kept", []byte{0xEF, 0xBB, 'x'}, "\xEF\xBBx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(skipBOM(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUTF8Sanitizer(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"ascii", "hello", "hello"},
		{"valid multibyte", "héllo wörld ✓", "héllo wörld ✓"},
		{"invalid byte", "a\xffb", "a?b"},
		{"truncated sequence at end", "ab\xe2\x9c", "ab??"},
		{"lone continuation", "\x80x", "?x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(newUTF8Sanitizer(strings.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUTF8Sanitizer_SplitAcrossReads(t *testing.T) {
	input := "naïve café ✓ done"
	r := newUTF8Sanitizer(iotest.OneByteReader(strings.NewReader(input)))

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(got) != input {
		t.Errorf("got %q, want %q", got, input)
	}
}

func TestCleanInput_CountsRawBytes(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, "id\n1\n"...)
	r, counter := cleanInput(bytes.NewReader(raw))

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(got) != "id\n1\n" {
		t.Errorf("got %q", got)
	}
	if counter.n != int64(len(raw)) {
		t.Errorf("counted %d bytes, want %d", counter.n, len(raw))
	}
}
