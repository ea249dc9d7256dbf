package protocol

import "bytes"

// Splitter extracts brace-delimited messages from a byte stream that may
// deliver them split across reads or surrounded by noise. Nested braces are
// not supported; canonical messages never contain them.
type Splitter struct {
	buf []byte
}

// Write appends p to the pending buffer. It never fails.
func (s *Splitter) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}

// Next returns the next complete message, if any. A '}' with no opening
// brace before it is discarded together with everything preceding it. When
// no '}' is buffered, only the bytes from the last '{' onward are kept.
func (s *Splitter) Next() (string, bool) {
	for {
		end := bytes.IndexByte(s.buf, '}')
		if end < 0 {
			if start := bytes.LastIndexByte(s.buf, '{'); start >= 0 {
				s.buf = append(s.buf[:0], s.buf[start:]...)
			} else {
				s.buf = s.buf[:0]
			}
			return "", false
		}
		start := bytes.LastIndexByte(s.buf[:end], '{')
		msg := string(s.buf[max(start, 0) : end+1])
		s.buf = append(s.buf[:0], s.buf[end+1:]...)
		if start >= 0 {
			return msg, true
		}
	}
}

// Pending returns the number of buffered bytes not yet returned.
func (s *Splitter) Pending() int {
	return len(s.buf)
}
