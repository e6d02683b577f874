package protocol

import "bytes"

// LineBuffer frames an inbound byte stream into newline-delimited
// lines. Bytes after the last newline are held until more data
// arrives, so lines split across serial reads reassemble correctly.
type LineBuffer struct {
	buf []byte
}

// Write appends raw bytes read from the transport.
func (l *LineBuffer) Write(p []byte) {
	l.buf = append(l.buf, p...)
}

// Next pops the next complete line, without its newline. The second
// return value is false when no complete line is buffered.
func (l *LineBuffer) Next() (string, bool) {
	i := bytes.IndexByte(l.buf, '\n')
	if i < 0 {
		return "", false
	}
	line := string(l.buf[:i])
	l.buf = l.buf[i+1:]
	return line, true
}

// Pending returns the number of buffered bytes not yet framed.
func (l *LineBuffer) Pending() int {
	return len(l.buf)
}
