package core

// streaming.go cleans the byte stream before it reaches the CSV reader.
//
// Exports from spreadsheet tools often begin with a UTF-8 byte order mark and
// occasionally contain bytes from a legacy code page. Both would otherwise end
// up inside the first header name or a cell value. The readers here fix the
// stream in constant memory so large files never have to be buffered whole.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// NewBOMSkippingReader returns a reader that drops a leading UTF-8 BOM.
func NewBOMSkippingReader(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// UTF8Sanitizer replaces invalid UTF-8 bytes with '?' as data streams through.
// Multi-byte sequences split across reads are carried over to the next read.
type UTF8Sanitizer struct {
	r       io.Reader
	buf     []byte
	out     []byte // sanitized bytes not yet returned
	pending []byte // incomplete rune held for the next read
	err     error
}

// NewUTF8Sanitizer wraps r.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{
		r:       r,
		buf:     make([]byte, 32*1024),
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

// Read implements io.Reader.
func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
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

// fill reads the next chunk into buf and sanitizes it into out.
func (s *UTF8Sanitizer) fill() {
	k := copy(s.buf, s.pending)
	s.pending = s.pending[:0]

	n, err := s.r.Read(s.buf[k:])
	data := s.buf[:k+n]
	if err != nil {
		s.err = err
	} else if tail := incompleteTail(data); tail > 0 {
		s.pending = append(s.pending, data[len(data)-tail:]...)
		data = data[:len(data)-tail]
	}
	s.out = sanitize(data)
}

// sanitize rewrites data in place and returns the valid prefix.
func sanitize(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	w := 0
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			data[w] = '?'
			w++
			i++
			continue
		}
		copy(data[w:], data[i:i+size])
		w += size
		i += size
	}
	return data[:w]
}

// incompleteTail returns how many trailing bytes start a multi-byte rune
// that has not been fully read yet.
func incompleteTail(data []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(data); i++ {
		b := data[len(data)-i]
		if utf8.RuneStart(b) {
			if b < utf8.RuneSelf {
				return 0
			}
			if need := leadLen(b); need > i {
				return i
			}
			return 0
		}
	}
	return 0
}

// leadLen returns the encoded length announced by a UTF-8 lead byte.
func leadLen(b byte) int {
	switch {
	case b >= 0xF0:
		return 4
	case b >= 0xE0:
		return 3
	case b >= 0xC0:
		return 2
	default:
		return 1
	}
}

// cleanInput applies BOM removal then UTF-8 sanitization.
func cleanInput(r io.Reader) io.Reader {
	return NewUTF8Sanitizer(NewBOMSkippingReader(r))
}
