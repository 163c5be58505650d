package source

// readers.go cleans CSV input while it streams: a leading UTF-8 byte order
// mark is dropped and invalid UTF-8 bytes become '?', so a spreadsheet
// export from any platform decodes without loading the file into memory.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// skipBOM returns a reader positioned after a leading byte order mark.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}
	return br
}

// utf8Sanitizer replaces each invalid UTF-8 byte with '?'. A multi-byte
// sequence split across reads is held back until the next read completes it.
type utf8Sanitizer struct {
	r      io.Reader
	raw    []byte // unread input; at most a partial sequence between fills
	outBuf []byte
	out    []byte // sanitized bytes not yet returned
	err    error
}

const sanitizeChunk = 32 * 1024

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{
		r:      r,
		raw:    make([]byte, 0, sanitizeChunk+utf8.UTFMax),
		outBuf: make([]byte, 0, sanitizeChunk+utf8.UTFMax),
	}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(s.out) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		s.fill()
	}
	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

func (s *utf8Sanitizer) fill() {
	held := len(s.raw)
	m, err := s.r.Read(s.raw[held : held+sanitizeChunk])
	data := s.raw[:held+m]
	s.err = err
	final := err != nil

	out := s.outBuf[:0]
	i := 0
	for i < len(data) {
		if data[i] < utf8.RuneSelf {
			out = append(out, data[i])
			i++
			continue
		}
		if !final && !utf8.FullRune(data[i:]) {
			break
		}
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			out = append(out, '?')
			i++
			continue
		}
		out = append(out, data[i:i+size]...)
		i += size
	}

	s.raw = append(s.raw[:0], data[i:]...)
	s.outBuf = out
	s.out = out
}

// countingReader tracks bytes read for load logging.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// cleanInput applies BOM skipping and UTF-8 sanitizing in that order, and
// counts the raw bytes consumed.
func cleanInput(r io.Reader) (io.Reader, *countingReader) {
	counter := &countingReader{r: r}
	return newUTF8Sanitizer(skipBOM(counter)), counter
}
